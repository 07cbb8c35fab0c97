// Package diagram renders a compute graph as a human-readable flow
// diagram (spec §4.8): a fixed `graph TD;` header followed by sorted
// node and edge lines, Mermaid-flowchart-flavored but meant for terminal
// and log consumption rather than strict Mermaid parsing.
package diagram

import (
	"fmt"
	"sort"
	"strings"

	"github.com/screenql/compiler/internal/ir"
	"github.com/screenql/compiler/internal/model"
)

// Render produces the diagram text for g.
func Render(g *ir.Graph) string {
	renderID := assignRenderIDs(g)

	var nodeLines []string
	var edgeLines []string
	for _, n := range g.Nodes() {
		id := renderID[n.ID()]
		nodeLines = append(nodeLines, nodeLine(g, n, id))
		for _, in := range n.Inputs() {
			inID, ok := renderID[in]
			if !ok {
				continue
			}
			edgeLines = append(edgeLines, fmt.Sprintf("%s --> %s", inID, id))
		}
	}

	sort.Strings(nodeLines)
	sort.Strings(edgeLines)

	var b strings.Builder
	b.WriteString("graph TD;\n")
	for _, l := range nodeLines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	for _, l := range edgeLines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// assignRenderIDs maps every node id to its diagram token: a source
// node renders as its table name, suffixed `_2`, `_3`, … if the same
// table appears more than once; every other node renders as its own id.
func assignRenderIDs(g *ir.Graph) map[ir.NodeID]string {
	out := make(map[ir.NodeID]string, g.Len())
	tableCount := make(map[string]int)
	for _, n := range g.Nodes() {
		if sn, ok := n.(*ir.SourceNode); ok {
			tableCount[sn.Table]++
			id := sn.Table
			if tableCount[sn.Table] > 1 {
				id = fmt.Sprintf("%s_%d", sn.Table, tableCount[sn.Table])
			}
			out[n.ID()] = id
			continue
		}
		out[n.ID()] = string(n.ID())
	}
	return out
}

func nodeLine(g *ir.Graph, n ir.Node, id string) string {
	label := nodeLabel(g, n)
	switch n.Kind() {
	case ir.KindSource:
		return fmt.Sprintf("%s[(%s)]", id, label)
	case ir.KindFilter:
		return fmt.Sprintf("%s{%s}", id, label)
	case ir.KindCompositeFilter:
		return fmt.Sprintf("%s((%s))", id, label)
	case ir.KindProjection:
		return fmt.Sprintf("%s[[%s]]", id, label)
	case ir.KindExpression:
		return fmt.Sprintf("%s(%s)", id, label)
	case ir.KindSort:
		return fmt.Sprintf("%s[%s]", id, label)
	case ir.KindLimit:
		return fmt.Sprintf("%s([%s])", id, label)
	case ir.KindJoin:
		return fmt.Sprintf("%s{{%s}}", id, label)
	default:
		return fmt.Sprintf("%s[%s]", id, label)
	}
}

func nodeLabel(g *ir.Graph, n ir.Node) string {
	switch t := n.(type) {
	case *ir.SourceNode:
		return t.Table

	case *ir.FilterNode:
		left := sideLabel(g, t.Condition.Left)
		right := sideLabel(g, t.Condition.Right)
		return fmt.Sprintf("%s %s %s", left, filterOpLabel(t.Condition.Op), right)

	case *ir.CompositeFilterNode:
		return strings.ToUpper(string(t.Operator))

	case *ir.ProjectionNode:
		var names []string
		grouping := false
		for _, c := range t.Columns {
			label := c.Name
			if c.Alias != "" {
				label = c.Alias
			}
			names = append(names, label)
			if c.IsGrouping {
				grouping = true
			}
		}
		if grouping {
			return fmt.Sprintf("GROUP BY\\n%s", strings.Join(names, ", "))
		}
		return fmt.Sprintf("Project\\n%s", strings.Join(names, ", "))

	case *ir.ExpressionNode:
		return expressionLabel(t)

	case *ir.SortNode:
		var parts []string
		for _, c := range t.Criteria {
			parts = append(parts, fmt.Sprintf("%s %s", resolveLabel(g, c.Expression), strings.ToUpper(string(c.Direction))))
		}
		text := strings.Join(parts, ", ")
		if dim, ok := t.Meta()["groupDimension"].(string); ok && dim != "" {
			text = fmt.Sprintf("Top BY %s\\n%s", dim, text)
		}
		return text

	case *ir.LimitNode:
		text := fmt.Sprintf("Limit %d", t.Limit)
		if t.IsGrouped {
			text = fmt.Sprintf("%s BY %s", text, t.GroupDimension)
		}
		return text

	case *ir.JoinNode:
		if len(t.Conditions) == 0 {
			return "Join"
		}
		c := t.Conditions[0]
		return fmt.Sprintf("Join %s with %s on %s = %s",
			tableFor(g, c.LeftSource), tableFor(g, c.RightSource), c.LeftKey, c.RightKey)

	default:
		return string(n.ID())
	}
}

func expressionLabel(en *ir.ExpressionNode) string {
	switch expr := en.Expr.(type) {
	case model.ConstantExpr:
		return fmt.Sprintf("%v", expr.Value)
	case model.MetricExpr:
		if expr.Alias != "" {
			return expr.Alias
		}
		return expr.Metric
	case model.MathExpr:
		return string(expr.Operator)
	case model.AggregateExpr:
		alias := en.Alias
		if alias == "" {
			alias = string(expr.Aggregation)
		}
		return fmt.Sprintf("%s(%s)", expr.Aggregation, alias)
	default:
		return string(en.ID())
	}
}

func sideLabel(g *ir.Graph, side ir.FilterSide) string {
	switch side.Kind {
	case ir.SideInput:
		return resolveLabel(g, side.InputNode)
	case ir.SideParameter:
		return side.Parameter
	case ir.SideInline:
		if c, ok := side.Inline.(model.ConstantExpr); ok {
			return formatConstant(c.Value)
		}
		return "?"
	default:
		return "?"
	}
}

func formatConstant(v interface{}) string {
	switch t := v.(type) {
	case string:
		return fmt.Sprintf("%q", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func filterOpLabel(op model.FilterOp) string {
	switch op {
	case model.OpEq:
		return "="
	case model.OpNeq:
		return "!="
	case model.OpGt:
		return ">"
	case model.OpGte:
		return ">="
	case model.OpLt:
		return "<"
	case model.OpLte:
		return "<="
	case model.OpIn:
		return "IN"
	case model.OpNin:
		return "NOT IN"
	case model.OpContains:
		return "CONTAINS"
	case model.OpNContains:
		return "NOT CONTAINS"
	default:
		return string(op)
	}
}

// resolveLabel renders the alias-or-name a node should be referred to by
// in another node's label (mirrors the IR builder's own displayName
// logic, spec §4.2, kept independent here since diagram rendering must
// stay a pure, side-effect-free view over the graph).
func resolveLabel(g *ir.Graph, id ir.NodeID) string {
	n, ok := g.Get(id)
	if !ok {
		return string(id)
	}
	switch t := n.(type) {
	case *ir.ProjectionNode:
		if len(t.Columns) > 0 {
			c := t.Columns[0]
			if c.Alias != "" {
				return c.Alias
			}
			return c.Name
		}
	case *ir.ExpressionNode:
		if t.Alias != "" {
			return t.Alias
		}
		return expressionLabel(t)
	}
	return string(id)
}

func tableFor(g *ir.Graph, id ir.NodeID) string {
	if n, ok := g.Get(id); ok {
		if sn, ok := n.(*ir.SourceNode); ok {
			return sn.Table
		}
	}
	return string(id)
}
