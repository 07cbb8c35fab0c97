// Package optimize implements the six semantics-preserving graph
// rewrite passes of spec §4.4, run exactly once in sequence over the
// raw compute graph join inference produced.
package optimize

import (
	"github.com/screenql/compiler/internal/builder"
	"github.com/screenql/compiler/internal/config"
	"github.com/screenql/compiler/internal/ir"
	"github.com/screenql/compiler/internal/trace"
)

// Optimize runs the six passes in order, then re-runs the required
// columns pass so prior removals never leave a time-based aggregate
// without its time column (spec §4.4). tr may be nil (spec §A.2): each
// pass is bracketed by a trace event recording the graph's node count
// before and after, so a verbose compile shows exactly which passes
// collapsed the graph and by how much.
func Optimize(g *ir.Graph, cfg *config.Config, risky bool, tr *trace.Recorder) error {
	step(g, tr, "optimize/dedup-projections", func() { removeDuplicateProjections(g) })
	step(g, tr, "optimize/inline-parameters", func() { inlineParameters(g) })
	step(g, tr, "optimize/merge-filters", func() { mergeFilters(g) })
	step(g, tr, "optimize/remove-useless-composites", func() { removeUselessComposites(g) })
	step(g, tr, "optimize/dedup-projection-expressions", func() { removeDuplicateProjectionExpressions(g) })
	if risky {
		step(g, tr, "optimize/cross-table-prune", func() { crossTablePrune(g, cfg) })
		step(g, tr, "optimize/duplicate-filter-removal", func() { duplicateFilterRemoval(g) })
	}
	before := g.Len()
	if err := builder.RequiredColumns(g, cfg); err != nil {
		return err
	}
	tr.Record("optimize/required-columns", before, g.Len(), "")
	return nil
}

func step(g *ir.Graph, tr *trace.Recorder, phase string, run func()) {
	before := g.Len()
	run()
	tr.Record(phase, before, g.Len(), "")
}

func findJoin(g *ir.Graph) (ir.NodeID, bool) {
	for _, n := range g.Nodes() {
		if n.Kind() == ir.KindJoin {
			return n.ID(), true
		}
	}
	return "", false
}
