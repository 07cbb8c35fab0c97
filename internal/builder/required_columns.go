package builder

import (
	"github.com/screenql/compiler/internal/config"
	"github.com/screenql/compiler/internal/ir"
	"github.com/screenql/compiler/internal/model"
)

// RequiredColumns adds the always-include columns (and, where needed,
// the time column) every source node's table config demands, as
// projections marked IsRequiredProjection so the optimizer preserves
// them (spec §4.2 "Required-columns pass"). Run once after the initial
// build and join inference, and again after optimize() (spec §4.4).
func RequiredColumns(g *ir.Graph, cfg *config.Config) error {
	joinID, hasJoin := findJoin(g)

	var sourceIDs []ir.NodeID
	if hasJoin {
		sourceIDs = g.MustGet(joinID).(*ir.JoinNode).Inputs()
	} else {
		for _, n := range g.Nodes() {
			if n.Kind() == ir.KindSource {
				sourceIDs = append(sourceIDs, n.ID())
			}
		}
	}

	for _, srcID := range sourceIDs {
		srcNode, ok := g.Get(srcID)
		if !ok {
			continue
		}
		sn := srcNode.(*ir.SourceNode)
		table, ok := cfg.Table(sn.Table)
		if !ok {
			continue
		}

		target := srcID
		if hasJoin {
			target = joinID
		}

		already := projectedColumns(g, target)
		if hasJoin {
			for col := range projectedColumns(g, srcID) {
				already[col] = true
			}
		}

		for _, col := range table.AlwaysIncludeColumns {
			if already[col] {
				continue
			}
			addRequiredProjection(g, target, col, table.Name)
			already[col] = true
		}

		if table.TimeColumn != "" && !already[table.TimeColumn] && aggregateDependsOnSource(g, srcID) {
			addRequiredProjection(g, target, table.TimeColumn, table.Name)
		}
	}
	return nil
}

func findJoin(g *ir.Graph) (ir.NodeID, bool) {
	for _, n := range g.Nodes() {
		if n.Kind() == ir.KindJoin {
			return n.ID(), true
		}
	}
	return "", false
}

func projectedColumns(g *ir.Graph, sourceID ir.NodeID) map[string]bool {
	out := make(map[string]bool)
	for _, n := range g.Nodes() {
		p, ok := n.(*ir.ProjectionNode)
		if !ok {
			continue
		}
		for _, c := range p.Columns {
			if c.SourceNode == sourceID {
				out[c.Name] = true
			}
		}
	}
	return out
}

func addRequiredProjection(g *ir.Graph, sourceID ir.NodeID, column, table string) {
	col := ir.ProjectionColumn{Name: column, SourceNode: sourceID, IsRequiredProjection: true, SourceTable: table}
	g.AddNode(ir.NewProjectionNode(sourceID, []ir.ProjectionColumn{col}))
}

// aggregateDependsOnSource reports whether any aggregate expression
// node carrying a time range has srcID among its ancestor source nodes
// (walking through a join node transparently, since a join's inputs are
// still the original per-table sources).
func aggregateDependsOnSource(g *ir.Graph, srcID ir.NodeID) bool {
	for _, n := range g.Nodes() {
		en, ok := n.(*ir.ExpressionNode)
		if !ok {
			continue
		}
		agg, ok := en.Expr.(model.AggregateExpr)
		if !ok || agg.TimeRange == nil {
			continue
		}
		if ancestorSources(g, en.ID())[srcID] {
			return true
		}
	}
	return false
}

func ancestorSources(g *ir.Graph, id ir.NodeID) map[ir.NodeID]bool {
	result := make(map[ir.NodeID]bool)
	visited := make(map[ir.NodeID]bool)
	var walk func(id ir.NodeID)
	walk = func(id ir.NodeID) {
		if visited[id] {
			return
		}
		visited[id] = true
		n, ok := g.Get(id)
		if !ok {
			return
		}
		if n.Kind() == ir.KindSource {
			result[id] = true
		}
		for _, in := range n.Inputs() {
			walk(in)
		}
	}
	walk(id)
	return result
}
