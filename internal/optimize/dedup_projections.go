package optimize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/screenql/compiler/internal/ir"
)

// removeDuplicateProjections implements spec §4.4 pass 1. Two
// projections are duplicates iff they share the same sorted input-id
// set, the same sorted column fingerprint, and their dependent nodes
// have equal input sets. Required projections (added by the
// required-columns pass) only merge with other required projections,
// so a user-authored projection is never silently absorbed into a
// bookkeeping one or vice versa.
func removeDuplicateProjections(g *ir.Graph) {
	dedupeProjectionRound(g, false)
	dedupeProjectionRound(g, true)
}

func dedupeProjectionRound(g *ir.Graph, required bool) {
	var ids []ir.NodeID
	for _, n := range g.Nodes() {
		p, ok := n.(*ir.ProjectionNode)
		if !ok || isRequiredProjection(p) != required {
			continue
		}
		ids = append(ids, p.ID())
	}

	var kept []ir.NodeID
	for _, id := range ids {
		p, ok := g.Get(id)
		if !ok {
			continue
		}
		pn := p.(*ir.ProjectionNode)
		var dup ir.NodeID
		for _, keptID := range kept {
			kp, ok := g.Get(keptID)
			if !ok {
				continue
			}
			if projectionsDuplicate(g, pn, kp.(*ir.ProjectionNode)) {
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

func isRequiredProjection(p *ir.ProjectionNode) bool {
	for _, c := range p.Columns {
		if c.IsRequiredProjection {
			return true
		}
	}
	return false
}

func projectionsDuplicate(g *ir.Graph, a, b *ir.ProjectionNode) bool {
	return sameIDSet(a.Inputs(), b.Inputs()) &&
		columnFingerprint(a) == columnFingerprint(b) &&
		sameDependentInputSets(g, a.ID(), b.ID())
}

// sameDependentInputSets implements spec §4.4 pass 1's "their dependent
// nodes have equal input sets" clause: merging a and b is only safe if
// the nodes consuming them line up structurally, not just a and b
// themselves. Each dependent's input set is fingerprinted with a's/b's
// own id normalized to a placeholder, so a dependent of a referencing a
// and a dependent of b referencing b still compare equal.
func sameDependentInputSets(g *ir.Graph, a, b ir.NodeID) bool {
	fa := dependentFingerprints(g, a)
	fb := dependentFingerprints(g, b)
	if len(fa) != len(fb) {
		return false
	}
	for i := range fa {
		if fa[i] != fb[i] {
			return false
		}
	}
	return true
}

func dependentFingerprints(g *ir.Graph, id ir.NodeID) []string {
	var entries []string
	for _, depID := range g.FindDependents(id) {
		dep, ok := g.Get(depID)
		if !ok {
			continue
		}
		normalized := make([]string, 0, len(dep.Inputs()))
		for _, in := range dep.Inputs() {
			if in == id {
				normalized = append(normalized, "<self>")
			} else {
				normalized = append(normalized, string(in))
			}
		}
		sort.Strings(normalized)
		entries = append(entries, fmt.Sprintf("%s:%s", dep.Kind(), strings.Join(normalized, ",")))
	}
	sort.Strings(entries)
	return entries
}

func sameIDSet(a, b []ir.NodeID) bool {
	if len(a) != len(b) {
		return false
	}
	sa := sortedCopy(a)
	sb := sortedCopy(b)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func sortedCopy(ids []ir.NodeID) []ir.NodeID {
	out := append([]ir.NodeID{}, ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func columnFingerprint(p *ir.ProjectionNode) string {
	entries := make([]string, 0, len(p.Columns))
	for _, c := range p.Columns {
		if c.ExprNode != "" {
			entries = append(entries, "expr:"+string(c.ExprNode))
		} else {
			entries = append(entries, "col:"+c.Name)
		}
	}
	sort.Strings(entries)
	return strings.Join(entries, "|")
}
