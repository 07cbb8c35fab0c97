package ir

// ReplaceNodeID rewrites every reference to old (in any node's Inputs(),
// in a filter condition's side, in a sort criterion's expression, or in
// a projection column's SourceNode/ExprNode) to instead point at
// replacement. When rewriting a filter side whose original carried a
// metric, the rewritten side's metric becomes alias if non-empty, else
// it is preserved (spec §4.1 "replace_node_id").
func (g *Graph) ReplaceNodeID(old, replacement NodeID, alias string) {
	for _, id := range g.order {
		if id == replacement {
			// The replacement node already carries its own correct
			// inputs; rewriting them here would self-reference old.
			continue
		}
		n := g.nodes[id]
		n.SetInputs(replaceIn(n.Inputs(), old, replacement))

		switch t := n.(type) {
		case *FilterNode:
			t.Condition.Left = replaceSide(t.Condition.Left, old, replacement, alias)
			t.Condition.Right = replaceSide(t.Condition.Right, old, replacement, alias)
		case *SortNode:
			for i := range t.Criteria {
				if t.Criteria[i].Expression == old {
					t.Criteria[i].Expression = replacement
				}
			}
		case *ProjectionNode:
			for i := range t.Columns {
				if t.Columns[i].SourceNode == old {
					t.Columns[i].SourceNode = replacement
				}
				if t.Columns[i].ExprNode == old {
					t.Columns[i].ExprNode = replacement
				}
			}
		case *JoinNode:
			for i := range t.Conditions {
				if t.Conditions[i].LeftSource == old {
					t.Conditions[i].LeftSource = replacement
				}
				if t.Conditions[i].RightSource == old {
					t.Conditions[i].RightSource = replacement
				}
			}
		}
	}
}

func replaceIn(ids []NodeID, old, replacement NodeID) []NodeID {
	changed := false
	for _, id := range ids {
		if id == old {
			changed = true
			break
		}
	}
	if !changed {
		return ids
	}
	out := make([]NodeID, 0, len(ids))
	seen := make(map[NodeID]bool, len(ids))
	for _, id := range ids {
		nid := id
		if nid == old {
			nid = replacement
		}
		if seen[nid] {
			continue
		}
		seen[nid] = true
		out = append(out, nid)
	}
	return out
}

func replaceSide(side FilterSide, old, replacement NodeID, alias string) FilterSide {
	if side.Kind != SideInput || side.InputNode != old {
		return side
	}
	side.InputNode = replacement
	if alias != "" {
		side.Metric = alias
	}
	return side
}
