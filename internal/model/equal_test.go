package model_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/screenql/compiler/internal/model"
)

func TestExpressionsEqualConstant(t *testing.T) {
	a := model.ConstantExpr{Value: 5.0}
	b := model.ConstantExpr{Value: 5.0}
	c := model.ConstantExpr{Value: "5"}
	assert.True(t, model.ExpressionsEqual(a, b))
	assert.False(t, model.ExpressionsEqual(a, c))
}

func TestExpressionsEqualAggregateMatchesOnAliasTargetAndRange(t *testing.T) {
	a := model.AggregateExpr{
		Target:      model.MetricExpr{Metric: "close"},
		Aggregation: model.AggDiffPct,
		TimeRange:   model.RelativeRange{Duration: 30, Unit: model.UnitDay},
		Alias:       "return_30d",
	}
	b := model.AggregateExpr{
		Target:      model.MetricExpr{Metric: "close"},
		Aggregation: model.AggDiffPct,
		TimeRange:   model.RelativeRange{Duration: 30, Unit: model.UnitDay},
		Alias:       "return_30d",
	}
	assert.True(t, model.ExpressionsEqual(a, b))

	c := b
	c.TimeRange = model.RelativeRange{Duration: 7, Unit: model.UnitDay}
	assert.False(t, model.ExpressionsEqual(a, c))

	d := b
	d.Alias = "other_alias"
	assert.False(t, model.ExpressionsEqual(a, d))
}

func TestFiltersEqualComposite(t *testing.T) {
	left := model.SimpleFilter{Target: model.MetricExpr{Metric: "sector"}, Op: model.OpEq, Value: model.ConstantExpr{Value: "Technology"}}
	right := model.SimpleFilter{Target: model.MetricExpr{Metric: "sector"}, Op: model.OpEq, Value: model.ConstantExpr{Value: "Technology"}}

	a := model.CompositeFilter{Operator: model.LogicalAnd, Filters: []model.Filter{left}}
	b := model.CompositeFilter{Operator: model.LogicalAnd, Filters: []model.Filter{right}}
	assert.True(t, model.FiltersEqual(a, b))

	c := model.CompositeFilter{Operator: model.LogicalOr, Filters: []model.Filter{right}}
	assert.False(t, model.FiltersEqual(a, c))
}

func TestUserQueryJSONRoundTrip(t *testing.T) {
	limit := 50
	q := model.UserQuery{
		ID:   "q1",
		Name: "thirty day winners",
		Filter: model.SimpleFilter{
			Target: model.MetricExpr{Metric: "sector"},
			Op:     model.OpEq,
			Value:  model.ConstantExpr{Value: "Technology"},
		},
		GroupBy: []model.GroupCriterion{
			{Dimension: "sector"},
			{Dimension: "sector", Limit: 3, Expression: model.MetricExpr{Metric: "close"}},
		},
		SortBy: []model.SortCriterion{
			{Expression: model.MetricExpr{Metric: "close"}, Direction: model.Desc},
		},
		Limit: &limit,
	}

	raw, err := json.Marshal(q)
	assert.NoError(t, err)

	var roundTripped model.UserQuery
	assert.NoError(t, json.Unmarshal(raw, &roundTripped))

	assert.Equal(t, q.ID, roundTripped.ID)
	assert.Equal(t, q.Name, roundTripped.Name)
	assert.True(t, model.FiltersEqual(q.Filter, roundTripped.Filter))
	assert.Len(t, roundTripped.GroupBy, 2)
	assert.True(t, roundTripped.GroupBy[1].IsTopN())
	assert.Equal(t, *q.Limit, *roundTripped.Limit)
}
