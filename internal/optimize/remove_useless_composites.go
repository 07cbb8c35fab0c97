package optimize

import (
	"github.com/screenql/compiler/internal/ir"
	"github.com/screenql/compiler/internal/model"
)

// removeUselessComposites implements spec §4.4 pass 4. An `and`/`or`
// composite-filter over exactly one child is degenerate and is spliced
// out; a `not` composite always carries exactly one child by
// convention and is never degenerate, so it is left untouched.
func removeUselessComposites(g *ir.Graph) {
	var ids []ir.NodeID
	for _, n := range g.Nodes() {
		if n.Kind() == ir.KindCompositeFilter {
			ids = append(ids, n.ID())
		}
	}

	for _, id := range ids {
		n, ok := g.Get(id)
		if !ok {
			continue
		}
		cf := n.(*ir.CompositeFilterNode)
		if cf.Operator == model.LogicalNot || len(cf.Inputs()) != 1 {
			continue
		}
		child := cf.Inputs()[0]
		g.ReplaceNodeID(id, child, "")
		g.RemoveNode(id)
	}
}
