package sqlgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/screenql/compiler/internal/config"
	"github.com/screenql/compiler/internal/ir"
	"github.com/screenql/compiler/internal/model"
	"github.com/screenql/compiler/internal/params"
)

// Emit translates an optimized compute graph into a single parameterized
// ClickHouse SQL statement (spec §4.5, §4.6). Constants the builder
// deferred to translation time (bare filter-value constants, spec §4.2)
// are registered into pt as they are encountered, so pt's final ordering
// interleaves build-time and translation-time parameters the way the
// query text references them.
//
// Queries containing at least one aggregate expression (every aggregate
// renders as a window function) are wrapped in a single base CTE: the window functions, their WHERE/QUALIFY predicates,
// and PREWHERE all live inside it, while GROUP BY/ORDER BY/LIMIT apply to
// the outer SELECT over the CTE's result set (spec §4.5 "CTE grouping").
// Queries with no window functions at all skip the CTE and emit one flat
// SELECT.
func Emit(g *ir.Graph, pt *params.Table, cfg *config.Config) (string, error) {
	s := newScope(g, cfg, pt)

	from, err := buildFrom(g)
	if err != nil {
		return "", err
	}
	prewhere := buildPrewhere(g)
	selectCols, selectWhere, err := buildSelect(s)
	if err != nil {
		return "", err
	}
	if len(selectCols) == 0 {
		return "", fmt.Errorf("sqlgen: query has no output columns")
	}
	where, qualify, filterWhere, err := buildFilters(s)
	if err != nil {
		return "", err
	}
	groupBy, limitByClause, limitClause := buildGroupAndLimits(g, cfg)
	orderBy, err := buildOrderBy(s)
	if err != nil {
		return "", err
	}

	allWhere := dedupeStrings(append(append(append([]string{}, where...), selectWhere...), filterWhere...))

	writeBody := func(b *strings.Builder, indent string) {
		fmt.Fprintf(b, "%sSELECT %s\n", indent, strings.Join(selectCols, ", "))
		fmt.Fprintf(b, "%sFROM %s\n", indent, from)
		if prewhere != "" {
			fmt.Fprintf(b, "%sPREWHERE %s\n", indent, prewhere)
		}
		if len(allWhere) > 0 {
			fmt.Fprintf(b, "%sWHERE %s\n", indent, strings.Join(allWhere, " AND "))
		}
		if len(qualify) > 0 {
			fmt.Fprintf(b, "%sQUALIFY %s\n", indent, strings.Join(qualify, " AND "))
		}
	}

	var b strings.Builder
	if hasWindowFunctions(g) {
		b.WriteString("WITH cte_0 AS (\n")
		writeBody(&b, "  ")
		b.WriteString(")\n")
		b.WriteString("SELECT *\nFROM cte_0")
	} else {
		writeBody(&b, "")
	}

	var tail strings.Builder
	if len(groupBy) > 0 {
		fmt.Fprintf(&tail, "\nGROUP BY %s", strings.Join(groupBy, ", "))
	}
	if len(orderBy) > 0 {
		fmt.Fprintf(&tail, "\nORDER BY %s", strings.Join(orderBy, ", "))
	}
	if limitByClause != "" {
		fmt.Fprintf(&tail, "\n%s", limitByClause)
	}
	if limitClause != "" {
		fmt.Fprintf(&tail, "\n%s", limitClause)
	}

	return strings.TrimRight(b.String(), "\n") + tail.String(), nil
}

func buildFrom(g *ir.Graph) (string, error) {
	for _, n := range g.Nodes() {
		if jn, ok := n.(*ir.JoinNode); ok {
			return buildJoinFrom(g, jn)
		}
	}
	for _, n := range g.Nodes() {
		if sn, ok := n.(*ir.SourceNode); ok {
			return sn.Table, nil
		}
	}
	return "", fmt.Errorf("sqlgen: query has no source table")
}

func buildJoinFrom(g *ir.Graph, join *ir.JoinNode) (string, error) {
	tableOf := make(map[ir.NodeID]string, len(join.Inputs()))
	for _, sid := range join.Inputs() {
		sn, ok := g.Get(sid)
		if !ok {
			continue
		}
		if s, ok := sn.(*ir.SourceNode); ok {
			tableOf[sid] = s.Table
		}
	}
	if len(join.Inputs()) == 0 {
		return "", fmt.Errorf("sqlgen: join node has no source inputs")
	}
	sql := tableOf[join.Inputs()[0]]
	for _, c := range join.Conditions {
		leftTable, rightTable := tableOf[c.LeftSource], tableOf[c.RightSource]
		if rightTable == "" {
			continue
		}
		sql += fmt.Sprintf(" %s JOIN %s ON %s.%s = %s.%s", join.JoinType, rightTable, leftTable, c.LeftKey, rightTable, c.RightKey)
	}
	return sql, nil
}

// buildPrewhere picks the widest time range across every time-ranged
// aggregate in the graph and emits a single PREWHERE bound against the
// time column of the first source node (in insertion order) that has one
// (spec §4.5 "PREWHERE selection").
func buildPrewhere(g *ir.Graph) string {
	var widest model.TimeRange
	for _, n := range g.Nodes() {
		en, ok := n.(*ir.ExpressionNode)
		if !ok {
			continue
		}
		agg, ok := en.Expr.(model.AggregateExpr)
		if !ok || agg.TimeRange == nil {
			continue
		}
		if widest == nil || agg.TimeRange.RangeSeconds() > widest.RangeSeconds() {
			widest = agg.TimeRange
		}
	}
	if widest == nil {
		return ""
	}

	var timeCol string
	for _, n := range g.Nodes() {
		if sn, ok := n.(*ir.SourceNode); ok && sn.TimeColumn != "" {
			timeCol = sn.TimeColumn
			break
		}
	}
	if timeCol == "" {
		return ""
	}
	return prewhereExpr(timeCol, widest)
}

func prewhereExpr(timeCol string, tr model.TimeRange) string {
	switch t := tr.(type) {
	case model.RelativeRange:
		return fmt.Sprintf("%s >= toDate(date_sub(now(), INTERVAL %d %s))", timeCol, t.Duration, t.Unit.SQL())
	case model.TradingRange:
		return fmt.Sprintf("%s >= toDate(date_sub(now(), INTERVAL %d %s))", timeCol, t.Duration, t.Unit.SQL())
	case model.AbsoluteRange:
		from := time.Unix(t.From-86400, 0).UTC().Format("2006-01-02")
		to := time.Unix(t.To, 0).UTC().Format("2006-01-02")
		return fmt.Sprintf("%s BETWEEN toDate('%s') AND toDate('%s')", timeCol, from, to)
	}
	return ""
}

// buildSelect renders the SELECT column list: every surviving projection
// column, then every math/aggregate expression node not purely feeding
// another expression as an operand (spec §4.5 "SELECT columns").
func buildSelect(s *scope) ([]string, []string, error) {
	var cols []string
	var extraWhere []string
	seen := make(map[string]bool)

	for _, n := range s.g.Nodes() {
		pn, ok := n.(*ir.ProjectionNode)
		if !ok {
			continue
		}
		for _, c := range pn.Columns {
			label := c.Alias
			if label == "" {
				label = c.Name
			}
			if seen[label] {
				continue
			}
			seen[label] = true
			text := c.Name
			if c.Alias != "" && c.Alias != c.Name {
				text += " AS " + c.Alias
			}
			cols = append(cols, text)
		}
	}

	for _, n := range s.g.Nodes() {
		en, ok := n.(*ir.ExpressionNode)
		if !ok {
			continue
		}
		switch en.Expr.(type) {
		case model.MathExpr, model.AggregateExpr:
		default:
			continue
		}
		if isOperandOnly(s.g, en.ID()) {
			continue
		}
		frag, err := translateExpr(s, en.ID(), false)
		if err != nil {
			return nil, nil, err
		}
		label := en.Alias
		if label == "" {
			label = frag.Column
		}
		if seen[label] {
			continue
		}
		seen[label] = true
		text := frag.Column
		if en.Alias != "" {
			text += " AS " + en.Alias
		}
		cols = append(cols, text)
		extraWhere = append(extraWhere, frag.Where...)
	}

	return cols, extraWhere, nil
}

// isOperandOnly reports whether id is consumed exclusively by other
// expression nodes (i.e. it is a private sub-expression, not itself a
// user-facing output column).
func isOperandOnly(g *ir.Graph, id ir.NodeID) bool {
	deps := g.FindDependents(id)
	if len(deps) == 0 {
		return false
	}
	for _, depID := range deps {
		if dep, ok := g.Get(depID); !ok || dep.Kind() != ir.KindExpression {
			return false
		}
	}
	return true
}

// buildFilters renders every terminal filter/composite-filter node,
// routing predicates that compare a window-function alias to QUALIFY and
// everything else to WHERE (spec §4.5 "WHERE vs QUALIFY").
func buildFilters(s *scope) (where, qualify, extraWhere []string, err error) {
	for _, n := range s.g.Nodes() {
		if !n.Terminal() {
			continue
		}
		if n.Kind() != ir.KindFilter && n.Kind() != ir.KindCompositeFilter {
			continue
		}
		res, terr := translateFilter(s, n.ID())
		if terr != nil {
			return nil, nil, nil, terr
		}
		if res.SQL == "" {
			continue
		}
		if res.TouchesWindow {
			qualify = append(qualify, res.SQL)
		} else {
			where = append(where, res.SQL)
		}
		extraWhere = append(extraWhere, res.Where...)
	}
	return where, qualify, extraWhere, nil
}

// buildGroupAndLimits collects GROUP BY dimensions and renders the
// LIMIT...BY and overall LIMIT clauses from the graph's limit nodes (spec
// §4.5 "GROUP BY", "LIMIT").
func buildGroupAndLimits(g *ir.Graph, cfg *config.Config) (groupBy []string, limitByClause, limitClause string) {
	seen := make(map[string]bool)
	for _, n := range g.Nodes() {
		ln, ok := n.(*ir.LimitNode)
		if !ok {
			continue
		}
		if ln.IsGrouped {
			dim := resolveDimensionColumn(cfg, ln.GroupDimension)
			if !seen[dim] {
				seen[dim] = true
				groupBy = append(groupBy, dim)
			}
			limitByClause = fmt.Sprintf("LIMIT %d BY %s", ln.Limit, dim)
			continue
		}
		if ln.Offset > 0 {
			limitClause = fmt.Sprintf("LIMIT %d OFFSET %d", ln.Limit, ln.Offset)
		} else {
			limitClause = fmt.Sprintf("LIMIT %d", ln.Limit)
		}
	}
	return groupBy, limitByClause, limitClause
}

func resolveDimensionColumn(cfg *config.Config, dim string) string {
	if m, ok := cfg.ResolveDimension(dim); ok {
		return m.Column
	}
	return dim
}

// buildOrderBy renders ORDER BY from the criteria of every terminal sort
// node and every grouped (top-N) sort node, in graph insertion order
// (spec §4.5 "ORDER BY").
func buildOrderBy(s *scope) ([]string, error) {
	var parts []string
	for _, n := range s.g.Nodes() {
		sn, ok := n.(*ir.SortNode)
		if !ok {
			continue
		}
		grouped, _ := sn.Meta()["isGrouped"].(bool)
		if !sn.Terminal() && !grouped {
			continue
		}
		for _, c := range sn.Criteria {
			var text string
			if c.Literal != "" {
				text = c.Literal
			} else {
				frag, err := translateExpr(s, c.Expression, true)
				if err != nil {
					return nil, err
				}
				text = frag.Column
			}
			dir := "ASC"
			if c.Direction == model.Desc {
				dir = "DESC"
			}
			parts = append(parts, fmt.Sprintf("%s %s", text, dir))
		}
	}
	return parts, nil
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
