package optimize

import (
	"github.com/screenql/compiler/internal/ir"
	"github.com/screenql/compiler/internal/model"
)

// removeDuplicateProjectionExpressions implements spec §4.4 pass 5. An
// expression node with exactly one input (a projection) and exactly
// one dependent is a candidate; if an earlier structurally-equal
// expression already survives, the duplicate and its private
// projection input are both removed and dependents rewired onto the
// earlier one.
func removeDuplicateProjectionExpressions(g *ir.Graph) {
	var candidates []ir.NodeID
	for _, n := range g.Nodes() {
		en, ok := n.(*ir.ExpressionNode)
		if !ok || len(en.Inputs()) != 1 {
			continue
		}
		if in, ok := g.Get(en.Inputs()[0]); !ok || in.Kind() != ir.KindProjection {
			continue
		}
		if len(g.FindDependents(en.ID())) != 1 {
			continue
		}
		candidates = append(candidates, en.ID())
	}

	var kept []ir.NodeID
	for _, id := range candidates {
		n, ok := g.Get(id)
		if !ok {
			continue
		}
		en := n.(*ir.ExpressionNode)

		var dup ir.NodeID
		for _, keptID := range kept {
			kn, ok := g.Get(keptID)
			if !ok {
				continue
			}
			if model.ExpressionsEqual(kn.(*ir.ExpressionNode).Expr, en.Expr) {
				dup = keptID
				break
			}
		}

		if dup == "" {
			kept = append(kept, id)
			continue
		}

		projID := en.Inputs()[0]
		g.ReplaceNodeID(id, dup, "")
		g.RemoveNode(id)
		if len(g.FindDependents(projID)) == 0 {
			g.RemoveNode(projID)
		}
	}
}
