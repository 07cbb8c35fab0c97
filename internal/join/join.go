// Package join implements join inference (spec §4.3): introducing a
// single multi-way INNER JOIN over every source node the IR builder
// created, keyed by overlapping primary keys, and rewiring downstream
// references onto it.
package join

import (
	"sort"

	"github.com/screenql/compiler/internal/config"
	"github.com/screenql/compiler/internal/errs"
	"github.com/screenql/compiler/internal/ir"
)

// Infer is a no-op if g has at most one source node. Otherwise it emits
// one INNER join node over all source ids, with pairwise join
// conditions on any primary key shared by both tables, then rewires
// every former source reference to the join node (invariant: at most
// one join node, spec §3 invariant 4).
func Infer(g *ir.Graph, cfg *config.Config) error {
	var sources []ir.NodeID
	for _, n := range g.Nodes() {
		if n.Kind() == ir.KindSource {
			sources = append(sources, n.ID())
		}
	}
	if len(sources) <= 1 {
		return nil
	}

	var conditions []ir.JoinCondition
	for i := 0; i < len(sources); i++ {
		for j := i + 1; j < len(sources); j++ {
			a := g.MustGet(sources[i]).(*ir.SourceNode)
			b := g.MustGet(sources[j]).(*ir.SourceNode)
			ta, _ := cfg.Table(a.Table)
			tb, _ := cfg.Table(b.Table)
			pk, ok := sharedKey(ta.PrimaryKeys, tb.PrimaryKeys)
			if !ok {
				return &errs.NoCommonPrimaryKey{TableA: a.Table, TableB: b.Table}
			}
			conditions = append(conditions, ir.JoinCondition{
				LeftSource: sources[i], LeftKey: pk,
				RightSource: sources[j], RightKey: pk,
				Op: "=",
			})
		}
	}

	joinNode := ir.NewJoinNode(append([]ir.NodeID{}, sources...), conditions)
	joinID := g.AddNode(joinNode)

	for _, src := range sources {
		g.ReplaceNodeID(src, joinID, "")
	}
	return nil
}

// sharedKey returns the lexicographically first primary key present in
// both a and b, for deterministic output across runs.
func sharedKey(a, b []string) (string, bool) {
	bset := make(map[string]bool, len(b))
	for _, k := range b {
		bset[k] = true
	}
	keys := append([]string{}, a...)
	sort.Strings(keys)
	for _, k := range keys {
		if bset[k] {
			return k, true
		}
	}
	return "", false
}
