// Package sqlgen translates an optimized compute graph into parameterized
// ClickHouse SQL (spec §4.5 "CTE planning", §4.6 "translation rules").
package sqlgen

import (
	"github.com/screenql/compiler/internal/config"
	"github.com/screenql/compiler/internal/ir"
	"github.com/screenql/compiler/internal/model"
	"github.com/screenql/compiler/internal/params"
)

// scope bundles everything a translation function needs to resolve a
// node: the graph it belongs to, the schema it resolves columns against,
// the parameter table constants are registered into, and the set of
// expression aliases that are window-function results in the current
// query (so filters/sorts referencing them know to target QUALIFY rather
// than WHERE).
type scope struct {
	g             *ir.Graph
	cfg           *config.Config
	params        *params.Table
	windowAliases map[string]bool
}

func newScope(g *ir.Graph, cfg *config.Config, pt *params.Table) *scope {
	s := &scope{g: g, cfg: cfg, params: pt, windowAliases: make(map[string]bool)}
	for _, n := range g.Nodes() {
		en, ok := n.(*ir.ExpressionNode)
		if !ok || en.Alias == "" {
			continue
		}
		if agg, ok := en.Expr.(model.AggregateExpr); ok && agg.TimeRange != nil {
			s.windowAliases[en.Alias] = true
		}
	}
	return s
}

// hasWindowFunctions reports whether any expression node in the graph
// lowers to a window function, which determines whether the emitted SQL
// wraps its body in a single base CTE (spec §4.5).
func hasWindowFunctions(g *ir.Graph) bool {
	for _, n := range g.Nodes() {
		en, ok := n.(*ir.ExpressionNode)
		if !ok {
			continue
		}
		if _, ok := en.Expr.(model.AggregateExpr); ok {
			return true
		}
	}
	return false
}
