package diagram

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/screenql/compiler/internal/ir"
)

// RenderANSI renders the same diagram as Render but colorizes each node
// line by kind for terminal preview, mirroring the teacher's annotation
// renderer's severity coloring (here repurposed for node-kind coloring):
// cyan for sources, yellow for filters/composites, green for
// projections/expressions, blue for sort/limit/join structural nodes.
func RenderANSI(g *ir.Graph) string {
	renderID := assignRenderIDs(g)

	sourceColor := color.New(color.FgCyan)
	filterColor := color.New(color.FgYellow)
	dataColor := color.New(color.FgGreen)
	structColor := color.New(color.FgBlue)

	var nodeLines []string
	var edgeLines []string
	for _, n := range g.Nodes() {
		id := renderID[n.ID()]
		line := nodeLine(g, n, id)
		var painted string
		switch n.Kind() {
		case ir.KindSource:
			painted = sourceColor.Sprint(line)
		case ir.KindFilter, ir.KindCompositeFilter:
			painted = filterColor.Sprint(line)
		case ir.KindProjection, ir.KindExpression:
			painted = dataColor.Sprint(line)
		default:
			painted = structColor.Sprint(line)
		}
		nodeLines = append(nodeLines, sortKey(line)+"\x00"+painted)

		for _, in := range n.Inputs() {
			inID, ok := renderID[in]
			if !ok {
				continue
			}
			edge := fmt.Sprintf("%s --> %s", inID, id)
			edgeLines = append(edgeLines, edge)
		}
	}

	sort.Strings(nodeLines)
	sort.Strings(edgeLines)

	var b strings.Builder
	b.WriteString(color.New(color.Bold).Sprint("graph TD;"))
	b.WriteByte('\n')
	for _, l := range nodeLines {
		parts := strings.SplitN(l, "\x00", 2)
		b.WriteString(parts[len(parts)-1])
		b.WriteByte('\n')
	}
	for _, l := range edgeLines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// sortKey strips ANSI styling concerns from the sort comparison so
// colorized lines sort identically to Render's plain-text output.
func sortKey(plain string) string { return plain }
