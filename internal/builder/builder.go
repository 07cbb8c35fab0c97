// Package builder implements the IR builder (spec §4.2): lowering a
// validated UserQuery into a raw compute graph, then running join
// inference and the required-columns pass over it.
package builder

import (
	"fmt"

	"github.com/screenql/compiler/internal/config"
	"github.com/screenql/compiler/internal/errs"
	"github.com/screenql/compiler/internal/ir"
	"github.com/screenql/compiler/internal/join"
	"github.com/screenql/compiler/internal/model"
	"github.com/screenql/compiler/internal/params"
)

// Builder lowers UserQuery values against a fixed Config. Not safe for
// concurrent use across Build calls; construct one per compile call, or
// serialize calls to a shared instance.
type Builder struct {
	cfg     *config.Config
	graph   *ir.Graph
	params  *params.Table
	sources map[string]ir.NodeID
}

// New constructs a Builder bound to cfg.
func New(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg}
}

// Result is the output of a successful Build: the raw graph (before
// optimization) and the parameter table the builder began populating.
type Result struct {
	Graph  *ir.Graph
	Params *params.Table
}

// Build lowers q in the order spec §4.2 prescribes: filter, group_by,
// sort_by, a terminal limit node, join inference, required columns.
func (b *Builder) Build(q *model.UserQuery) (*Result, error) {
	b.graph = ir.NewGraph()
	b.params = params.NewTable()
	b.sources = make(map[string]ir.NodeID)

	if q.Filter != nil {
		if _, err := b.lowerFilter(q.Filter); err != nil {
			return nil, err
		}
	}
	if err := b.lowerGroupBy(q.GroupBy); err != nil {
		return nil, err
	}
	if err := b.lowerSortBy(q.SortBy); err != nil {
		return nil, err
	}
	if q.Limit != nil {
		b.graph.AddNode(ir.NewLimitNode("", *q.Limit))
	}
	if err := join.Infer(b.graph, b.cfg); err != nil {
		return nil, err
	}
	if err := RequiredColumns(b.graph, b.cfg); err != nil {
		return nil, err
	}

	return &Result{Graph: b.graph, Params: b.params}, nil
}

// --- Filter lowering -------------------------------------------------

func (b *Builder) lowerFilter(f model.Filter) (ir.NodeID, error) {
	switch v := f.(type) {
	case model.SimpleFilter:
		return b.lowerSimpleFilter(v)
	case model.CompositeFilter:
		return b.lowerCompositeFilter(v)
	default:
		return "", fmt.Errorf("builder: unknown filter type %T", f)
	}
}

func (b *Builder) lowerSimpleFilter(f model.SimpleFilter) (ir.NodeID, error) {
	left, leftInputs, err := b.lowerFilterTarget(f.Target)
	if err != nil {
		return "", err
	}
	right, rightInputs, err := b.lowerFilterValue(f.Value)
	if err != nil {
		return "", err
	}
	inputs := dedupeNodeIDs(append(append([]ir.NodeID{}, leftInputs...), rightInputs...))
	node := ir.NewFilterNode(inputs, ir.FilterCondition{Left: left, Right: right, Op: f.Op})
	return b.graph.AddNode(node), nil
}

func (b *Builder) lowerCompositeFilter(f model.CompositeFilter) (ir.NodeID, error) {
	children := make([]ir.NodeID, 0, len(f.Filters))
	for _, child := range f.Filters {
		id, err := b.lowerFilter(child)
		if err != nil {
			return "", err
		}
		children = append(children, id)
	}
	node := ir.NewCompositeFilterNode(f.Operator, dedupeNodeIDs(children))
	return b.graph.AddNode(node), nil
}

// lowerFilterTarget lowers a filter's target side, which always
// produces a backing node (spec §4.2 "the left side is always
// {input: targetNodeId, metric: …}").
func (b *Builder) lowerFilterTarget(e model.Expression) (ir.FilterSide, []ir.NodeID, error) {
	id, err := b.lowerExpression(e)
	if err != nil {
		return ir.FilterSide{}, nil, err
	}
	return ir.InputSide(id, b.displayName(id)), []ir.NodeID{id}, nil
}

// lowerFilterValue lowers a filter's value side. A bare constant is
// embedded as a raw inline Expression with no backing node; any other
// expression requires a subgraph (spec §4.2).
func (b *Builder) lowerFilterValue(e model.Expression) (ir.FilterSide, []ir.NodeID, error) {
	if c, ok := e.(model.ConstantExpr); ok {
		return ir.InlineSide(c), nil, nil
	}
	id, err := b.lowerExpression(e)
	if err != nil {
		return ir.FilterSide{}, nil, err
	}
	return ir.InputSide(id, b.displayName(id)), []ir.NodeID{id}, nil
}

// lowerFilterWithExtraInput lowers f, then adds extra to the resulting
// top-level filter/composite-filter node's inputs, establishing
// reachability from extra without otherwise altering f's semantics
// (used for metric/aggregate inline filters, spec §4.2).
func (b *Builder) lowerFilterWithExtraInput(f model.Filter, extra ir.NodeID) (ir.NodeID, error) {
	id, err := b.lowerFilter(f)
	if err != nil {
		return "", err
	}
	node := b.graph.MustGet(id)
	node.SetInputs(dedupeNodeIDs(append(append([]ir.NodeID{}, node.Inputs()...), extra)))
	if extraNode, ok := b.graph.Get(extra); ok {
		extraNode.SetTerminal(false)
	}
	return id, nil
}

// --- Expression lowering ----------------------------------------------

func (b *Builder) lowerExpression(e model.Expression) (ir.NodeID, error) {
	switch v := e.(type) {
	case model.ConstantExpr:
		return b.lowerConstant(v)
	case model.MetricExpr:
		return b.lowerMetric(v)
	case model.MathExpr:
		return b.lowerMath(v)
	case model.AggregateExpr:
		return b.lowerAggregate(v)
	default:
		return "", fmt.Errorf("builder: unknown expression type %T", e)
	}
}

func (b *Builder) lowerConstant(c model.ConstantExpr) (ir.NodeID, error) {
	text, err := b.params.CreateParameter(c.Value, "")
	if err != nil {
		return "", err
	}
	node := ir.NewExpressionNode(nil, c, "")
	node.IsParameter = true
	node.Rendered = text
	return b.graph.AddNode(node), nil
}

func (b *Builder) lowerMetric(m model.MetricExpr) (ir.NodeID, error) {
	mapping, ok := b.cfg.ResolveMetric(m.Metric)
	if !ok {
		return "", &errs.UnknownMetric{Name: m.Metric}
	}
	srcID := b.findOrCreateSource(mapping.Table)
	alias := m.Alias
	if alias == "" && m.Metric != mapping.Column {
		alias = m.Metric
	}
	col := ir.ProjectionColumn{Name: mapping.Column, Alias: alias, SourceNode: srcID, SourceTable: mapping.Table}
	projID := b.graph.AddNode(ir.NewProjectionNode(srcID, []ir.ProjectionColumn{col}))

	if m.Filter != nil {
		if _, err := b.lowerFilterWithExtraInput(m.Filter, projID); err != nil {
			return "", err
		}
	}
	return projID, nil
}

func (b *Builder) lowerMath(m model.MathExpr) (ir.NodeID, error) {
	inputs := make([]ir.NodeID, 0, len(m.Operands))
	for _, operand := range m.Operands {
		id, err := b.lowerExpression(operand)
		if err != nil {
			return "", err
		}
		inputs = append(inputs, id)
	}
	node := ir.NewExpressionNode(dedupeNodeIDs(inputs), m, m.Alias)
	return b.graph.AddNode(node), nil
}

func (b *Builder) lowerAggregate(a model.AggregateExpr) (ir.NodeID, error) {
	targetID, err := b.lowerExpression(a.Target)
	if err != nil {
		return "", err
	}
	if a.Filter != nil {
		if _, err := b.lowerFilterWithExtraInput(a.Filter, targetID); err != nil {
			return "", err
		}
		a.Filter = nil // lowered; null out so re-visiting this Expr never re-lowers it
	}
	if a.Alias == "" {
		a.Alias = b.autoAlias(a, targetID)
	}
	node := ir.NewExpressionNode([]ir.NodeID{targetID}, a, a.Alias)
	return b.graph.AddNode(node), nil
}

// autoAlias generates "<agg>_<targetAlias>[_<timeRangeSuffix>]",
// truncated to 65 chars (spec §4.2).
func (b *Builder) autoAlias(a model.AggregateExpr, targetID ir.NodeID) string {
	alias := fmt.Sprintf("%s_%s", a.Aggregation, b.displayName(targetID))
	if a.TimeRange != nil {
		if suffix := timeRangeSuffix(a.TimeRange); suffix != "" {
			alias = fmt.Sprintf("%s_%s", alias, suffix)
		}
	}
	if len(alias) > 65 {
		alias = alias[:65]
	}
	return alias
}

func timeRangeSuffix(tr model.TimeRange) string {
	switch t := tr.(type) {
	case model.RelativeRange:
		return fmt.Sprintf("%d%s", t.Duration, unitAbbrev(t.Unit))
	case model.TradingRange:
		return fmt.Sprintf("%d%s", t.Duration, unitAbbrev(t.Unit))
	default:
		return ""
	}
}

func unitAbbrev(u model.TimeUnit) string {
	switch u {
	case model.UnitSecond:
		return "s"
	case model.UnitMinute:
		return "m"
	case model.UnitHour:
		return "h"
	case model.UnitDay:
		return "d"
	case model.UnitWeek:
		return "w"
	case model.UnitMonth:
		return "mo"
	case model.UnitYear:
		return "y"
	default:
		return ""
	}
}

// displayName returns the alias or column name a lowered expression
// node should be referred to by elsewhere in the graph (a filter
// condition's metric field, a composed alias, a diagram label).
func (b *Builder) displayName(id ir.NodeID) string {
	n, ok := b.graph.Get(id)
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
	}
	return string(id)
}

// --- Grouping lowering --------------------------------------------------

func (b *Builder) lowerGroupBy(criteria []model.GroupCriterion) error {
	for _, gc := range criteria {
		if !gc.IsTopN() {
			if _, err := b.lowerGroupDimension(gc.Dimension); err != nil {
				return err
			}
			continue
		}
		if err := b.lowerTopNGroup(gc); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) lowerGroupDimension(name string) (ir.NodeID, error) {
	mapping, ok := b.cfg.ResolveDimension(name)
	if !ok {
		return "", &errs.GroupingDimensionNotFound{Name: name}
	}
	srcID := b.findOrCreateSource(mapping.Table)
	col := ir.ProjectionColumn{Name: mapping.Column, SourceNode: srcID, IsGrouping: true, SourceTable: mapping.Table}
	return b.graph.AddNode(ir.NewProjectionNode(srcID, []ir.ProjectionColumn{col})), nil
}

func (b *Builder) lowerTopNGroup(gc model.GroupCriterion) error {
	dimID, err := b.lowerGroupDimension(gc.Dimension)
	if err != nil {
		return err
	}

	orderExpr := dimID
	if gc.Expression != nil {
		orderExpr, err = b.lowerExpression(gc.Expression)
		if err != nil {
			return err
		}
	}

	sortNode := ir.NewSortNode(dedupeNodeIDs([]ir.NodeID{orderExpr}), []ir.SortCriterionIR{
		{Expression: orderExpr, Direction: model.Desc},
	})
	sortNode.Meta()["isGrouped"] = true
	sortNode.Meta()["groupDimension"] = gc.Dimension
	sortNode.Meta()["limit"] = gc.Limit
	sortID := b.graph.AddNode(sortNode)

	limitNode := ir.NewLimitNode(sortID, gc.Limit)
	limitNode.IsGrouped = true
	limitNode.GroupDimension = gc.Dimension
	b.graph.AddNode(limitNode)
	return nil
}

// --- Sort lowering -------------------------------------------------------

func (b *Builder) lowerSortBy(criteria []model.SortCriterion) error {
	if len(criteria) == 0 {
		return nil
	}
	sortCriteria := make([]ir.SortCriterionIR, 0, len(criteria))
	inputs := make([]ir.NodeID, 0, len(criteria))
	for _, c := range criteria {
		id, err := b.lowerExpression(c.Expression)
		if err != nil {
			return err
		}
		dir := c.Direction
		if dir == "" {
			dir = model.Desc
		}
		sortCriteria = append(sortCriteria, ir.SortCriterionIR{Expression: id, Direction: dir})
		inputs = append(inputs, id)
	}
	b.graph.AddNode(ir.NewSortNode(dedupeNodeIDs(inputs), sortCriteria))
	return nil
}

// --- shared helpers -------------------------------------------------------

func (b *Builder) findOrCreateSource(table string) ir.NodeID {
	if id, ok := b.sources[table]; ok {
		return id
	}
	t, _ := b.cfg.Table(table)
	id := b.graph.AddNode(ir.NewSourceNode(table, t.TimeColumn))
	b.sources[table] = id
	return id
}

func dedupeNodeIDs(ids []ir.NodeID) []ir.NodeID {
	seen := make(map[ir.NodeID]bool, len(ids))
	out := make([]ir.NodeID, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
