package optimize

import (
	"github.com/screenql/compiler/internal/ir"
	"github.com/screenql/compiler/internal/model"
)

// mergeFilters implements spec §4.4 pass 3. Filter/composite-filter
// nodes that share an identical sorted dependency-input list (e.g. two
// simple filters both bounding the same aggregate expression) are
// combined into one `and` composite over the group. The original nodes
// are not deleted — they remain as the new composite's children — only
// their former top-level references are rewired onto it.
func mergeFilters(g *ir.Graph) {
	groups := make(map[string][]ir.NodeID)
	var order []string
	for _, n := range g.Nodes() {
		if n.Kind() != ir.KindFilter && n.Kind() != ir.KindCompositeFilter {
			continue
		}
		key := fingerprintIDs(n.Inputs())
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], n.ID())
	}

	for _, key := range order {
		ids := groups[key]
		if len(ids) < 2 {
			continue
		}
		composite := ir.NewCompositeFilterNode(model.LogicalAnd, append([]ir.NodeID{}, ids...))
		newID := g.AddNode(composite)
		for _, old := range ids {
			g.ReplaceNodeID(old, newID, "")
		}
	}
}

func fingerprintIDs(ids []ir.NodeID) string {
	sorted := sortedCopy(ids)
	out := ""
	for i, id := range sorted {
		if i > 0 {
			out += "|"
		}
		out += string(id)
	}
	return out
}
