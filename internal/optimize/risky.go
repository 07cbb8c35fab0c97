package optimize

import (
	"reflect"

	"github.com/screenql/compiler/internal/config"
	"github.com/screenql/compiler/internal/ir"
)

// crossTablePrune implements spec §4.4 risky pass (a). When the graph
// touches exactly two source tables, one of them is `tickers`, every
// projection sourced from `tickers` only ever projects its `ticker`
// column, and every filter consuming those projections compares only
// the `ticker` metric, the join is redundant: `ticker` is present in
// both tables. The pass collapses all `tickers` references onto a
// single `ticker` projection off the other table and removes the
// `tickers` source (and the join node, now pointless) entirely.
func crossTablePrune(g *ir.Graph, cfg *config.Config) {
	var sources []ir.NodeID
	for _, n := range g.Nodes() {
		if n.Kind() == ir.KindSource {
			sources = append(sources, n.ID())
		}
	}
	if len(sources) != 2 {
		return
	}

	var tickersSrc, otherSrc ir.NodeID
	foundTickers := false
	for _, s := range sources {
		sn := g.MustGet(s).(*ir.SourceNode)
		if sn.Table == "tickers" {
			tickersSrc = s
			foundTickers = true
		} else {
			otherSrc = s
		}
	}
	if !foundTickers {
		return
	}

	var tickerProjs []ir.NodeID
	sawTickerColumn := false
	for _, n := range g.Nodes() {
		p, ok := n.(*ir.ProjectionNode)
		if !ok {
			continue
		}
		touches := false
		for _, c := range p.Columns {
			if c.SourceTable == "tickers" {
				touches = true
				if c.Name != "ticker" {
					return
				}
				sawTickerColumn = true
			}
		}
		if touches {
			tickerProjs = append(tickerProjs, p.ID())
		}
	}
	if !sawTickerColumn {
		return
	}
	tickerProjSet := toSet(tickerProjs)

	for _, n := range g.Nodes() {
		f, ok := n.(*ir.FilterNode)
		if !ok {
			continue
		}
		for _, side := range []ir.FilterSide{f.Condition.Left, f.Condition.Right} {
			if side.Kind == ir.SideInput && tickerProjSet[side.InputNode] && side.Metric != "ticker" {
				return
			}
		}
	}

	newCol := ir.ProjectionColumn{Name: "ticker", SourceNode: otherSrc, SourceTable: g.MustGet(otherSrc).(*ir.SourceNode).Table}
	newProjID := g.AddNode(ir.NewProjectionNode(otherSrc, []ir.ProjectionColumn{newCol}))

	for _, p := range tickerProjs {
		g.ReplaceNodeID(p, newProjID, "")
	}

	if joinID, ok := findJoin(g); ok {
		g.ReplaceNodeID(joinID, otherSrc, "")
		g.RemoveNode(joinID)
	}

	g.RemoveNode(tickersSrc)
	for _, p := range tickerProjs {
		g.RemoveNode(p)
	}
}

func toSet(ids []ir.NodeID) map[ir.NodeID]bool {
	out := make(map[ir.NodeID]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

// duplicateFilterRemoval implements spec §4.4 risky pass (b). Filters
// whose inputs are all projections are collapsed when another such
// filter has an identical, order-preserving input list and identical
// metadata.
func duplicateFilterRemoval(g *ir.Graph) {
	var candidates []ir.NodeID
	for _, n := range g.Nodes() {
		f, ok := n.(*ir.FilterNode)
		if !ok || !allProjections(g, f.Inputs()) {
			continue
		}
		candidates = append(candidates, f.ID())
	}

	var kept []ir.NodeID
	for _, id := range candidates {
		n, ok := g.Get(id)
		if !ok {
			continue
		}
		f := n.(*ir.FilterNode)

		var dup ir.NodeID
		for _, keptID := range kept {
			kn, ok := g.Get(keptID)
			if !ok {
				continue
			}
			kf := kn.(*ir.FilterNode)
			if idsEqualInOrder(kf.Inputs(), f.Inputs()) && reflect.DeepEqual(kf.Meta(), f.Meta()) {
				dup = keptID
				break
			}
		}

		if dup != "" {
			g.ReplaceNodeID(id, dup, "")
			g.RemoveNode(id)
		} else {
			kept = append(kept, id)
		}
	}
}

func allProjections(g *ir.Graph, ids []ir.NodeID) bool {
	for _, id := range ids {
		n, ok := g.Get(id)
		if !ok || n.Kind() != ir.KindProjection {
			return false
		}
	}
	return len(ids) > 0
}

func idsEqualInOrder(a, b []ir.NodeID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
