package optimize

import "github.com/screenql/compiler/internal/ir"

// inlineParameters implements spec §4.4 pass 2. Every expression node
// marked IsParameter is folded into each filter/sort dependent that
// references it — each side/criterion is checked independently, fixing
// the symmetric overwrite bug spec §9 flags in the original
// implementation. A parameter node is removed once nothing references
// it any longer; if a non-filter, non-sort dependent (a math or
// aggregate operand, say) still holds it, it survives and is rendered
// via its own Rendered text at SQL emission time.
func inlineParameters(g *ir.Graph) {
	var paramIDs []ir.NodeID
	for _, n := range g.Nodes() {
		if en, ok := n.(*ir.ExpressionNode); ok && en.IsParameter {
			paramIDs = append(paramIDs, en.ID())
		}
	}

	for _, pid := range paramIDs {
		node, ok := g.Get(pid)
		if !ok {
			continue
		}
		en := node.(*ir.ExpressionNode)

		for _, depID := range g.FindDependents(pid) {
			dep := g.MustGet(depID)
			switch d := dep.(type) {
			case *ir.FilterNode:
				folded := false
				if d.Condition.Left.Kind == ir.SideInput && d.Condition.Left.InputNode == pid {
					d.Condition.Left = ir.FilterSide{Kind: ir.SideParameter, Parameter: en.Rendered}
					folded = true
				}
				if d.Condition.Right.Kind == ir.SideInput && d.Condition.Right.InputNode == pid {
					d.Condition.Right = ir.FilterSide{Kind: ir.SideParameter, Parameter: en.Rendered}
					folded = true
				}
				if folded {
					d.SetInputs(removeID(d.Inputs(), pid))
					d.Meta()["hasParameter"] = true
				}
			case *ir.SortNode:
				folded := false
				for i := range d.Criteria {
					if d.Criteria[i].Expression == pid {
						d.Criteria[i].Literal = en.Rendered
						d.Criteria[i].Expression = ""
						folded = true
					}
				}
				if folded {
					d.SetInputs(removeID(d.Inputs(), pid))
					d.Meta()["hasParameter"] = true
				}
			}
		}

		if len(g.FindDependents(pid)) == 0 {
			g.RemoveNode(pid)
		}
	}
}

func removeID(ids []ir.NodeID, target ir.NodeID) []ir.NodeID {
	out := make([]ir.NodeID, 0, len(ids))
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
