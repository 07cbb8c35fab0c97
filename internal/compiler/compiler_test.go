package compiler_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenql/compiler/internal/compiler"
	"github.com/screenql/compiler/internal/config"
	"github.com/screenql/compiler/internal/model"
)

func intPtr(v int) *int { return &v }

// Scenario 1 (spec §8.1): sector eq Technology, limit 100.
func TestCompileSectorEqualsTechnologyWithLimit(t *testing.T) {
	q := &model.UserQuery{
		ID:   "q1",
		Name: "technology names",
		Filter: model.SimpleFilter{
			Target: model.MetricExpr{Metric: "sector"},
			Op:     model.OpEq,
			Value:  model.ConstantExpr{Value: "Technology"},
		},
		Limit: intPtr(100),
	}

	comp := compiler.New(config.Default())
	result, err := comp.Compile(q)
	require.NoError(t, err)

	assert.Contains(t, result.SQL, "tickers")
	assert.Contains(t, result.SQL, "{param_1: String}")
	assert.Contains(t, result.SQL, "LIMIT 100")

	ordered := result.Parameters.Ordered()
	require.Len(t, ordered, 1)
	assert.Equal(t, "Technology", ordered[0].Value)
}

// Scenario 2 (spec §8.2): 30-day return > 10%, sort desc, limit 50.
func TestCompileThirtyDayReturnQualifyAndSort(t *testing.T) {
	aggTarget := func() model.Expression {
		return model.AggregateExpr{
			Target:      model.MetricExpr{Metric: "close"},
			Aggregation: model.AggDiffPct,
			TimeRange:   model.RelativeRange{Duration: 30, Unit: model.UnitDay},
			Alias:       "return_30d",
		}
	}

	q := &model.UserQuery{
		ID:   "q2",
		Name: "thirty day winners",
		Filter: model.SimpleFilter{
			Target: aggTarget(),
			Op:     model.OpGt,
			Value:  model.ConstantExpr{Value: 0.10},
		},
		SortBy: []model.SortCriterion{
			{Expression: aggTarget(), Direction: model.Desc},
		},
		Limit: intPtr(50),
	}

	comp := compiler.New(config.Default())
	result, err := comp.Compile(q)
	require.NoError(t, err)

	assert.Contains(t, result.SQL, "WITH")
	assert.Contains(t, result.SQL, "last_value")
	assert.Contains(t, result.SQL, "first_value")
	assert.Contains(t, result.SQL, "nullIf(")
	assert.Contains(t, result.SQL, "QUALIFY")
	assert.Contains(t, result.SQL, "ORDER BY return_30d DESC")
	assert.Contains(t, result.SQL, "LIMIT 50")
}

// Scenario 3 (spec §8.3): top-3 per sector by 90-day price change, country =
// United States, active = 1, overall limit 100. A join is inferred between
// tickers and daily_agg on ticker.
func TestCompileTopNPerGroupWithJoin(t *testing.T) {
	q := &model.UserQuery{
		ID:   "q3",
		Name: "top sector movers",
		Filter: model.CompositeFilter{
			Operator: model.LogicalAnd,
			Filters: []model.Filter{
				model.SimpleFilter{Target: model.MetricExpr{Metric: "country"}, Op: model.OpEq, Value: model.ConstantExpr{Value: "United States"}},
				model.SimpleFilter{Target: model.MetricExpr{Metric: "active"}, Op: model.OpEq, Value: model.ConstantExpr{Value: true}},
			},
		},
		GroupBy: []model.GroupCriterion{
			{
				Dimension: "sector",
				Limit:     3,
				Expression: model.AggregateExpr{
					Target:      model.MetricExpr{Metric: "close"},
					Aggregation: model.AggDiffPct,
					TimeRange:   model.RelativeRange{Duration: 90, Unit: model.UnitDay},
				},
			},
		},
		Limit: intPtr(100),
	}

	comp := compiler.New(config.Default())
	result, err := comp.Compile(q)
	require.NoError(t, err)

	assert.Contains(t, result.SQL, "LIMIT 3 BY sector")
	assert.Contains(t, result.SQL, "GROUP BY sector")
	assert.Contains(t, result.SQL, "LIMIT 100")
	assert.Contains(t, result.SQL, "JOIN daily_agg")
}

// Scenario 3b (spec §8.3, risky variant): when every tickers-sourced
// projection and filter touches only the ticker column, the risky
// cross-table-prune pass collapses the join and only daily_agg remains.
func TestCompileRiskyPruneDropsRedundantJoin(t *testing.T) {
	q := &model.UserQuery{
		ID:   "q3b",
		Name: "single ticker movers",
		Filter: model.CompositeFilter{
			Operator: model.LogicalAnd,
			Filters: []model.Filter{
				model.SimpleFilter{Target: model.MetricExpr{Metric: "ticker"}, Op: model.OpEq, Value: model.ConstantExpr{Value: "AAPL"}},
				model.SimpleFilter{
					Target: model.AggregateExpr{
						Target:      model.MetricExpr{Metric: "close"},
						Aggregation: model.AggDiffPct,
						TimeRange:   model.RelativeRange{Duration: 90, Unit: model.UnitDay},
					},
					Op:    model.OpGt,
					Value: model.ConstantExpr{Value: 0.0},
				},
			},
		},
	}

	comp := compiler.New(config.Default(), compiler.WithRiskyOptimizations(true))
	result, err := comp.Compile(q)
	require.NoError(t, err)

	assert.NotContains(t, result.SQL, "JOIN")
	assert.Contains(t, result.SQL, "daily_agg")
}

// Scenario 4 (spec §8.4): composite AND of two filters on the same
// aggregate. Exactly one aggregate expression node should survive
// optimization, so the avg(close) window function appears once in the SQL.
func TestCompileCompositeAndOnSameAggregateDedupes(t *testing.T) {
	avgClose := func() model.Expression {
		return model.AggregateExpr{
			Target:      model.MetricExpr{Metric: "close"},
			Aggregation: model.AggAvg,
			TimeRange:   model.RelativeRange{Duration: 30, Unit: model.UnitDay},
			Alias:       "avg_close_30d",
		}
	}

	q := &model.UserQuery{
		ID:   "q4",
		Name: "avg close band",
		Filter: model.CompositeFilter{
			Operator: model.LogicalAnd,
			Filters: []model.Filter{
				model.SimpleFilter{Target: avgClose(), Op: model.OpGt, Value: model.ConstantExpr{Value: 100.0}},
				model.SimpleFilter{Target: avgClose(), Op: model.OpLt, Value: model.ConstantExpr{Value: 200.0}},
			},
		},
	}

	comp := compiler.New(config.Default())
	result, err := comp.Compile(q)
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(result.SQL, "avg(close)"))
	assert.Contains(t, result.SQL, "avg_close_30d > 100")
	assert.Contains(t, result.SQL, "avg_close_30d < 200")
}

// Scenario 5 (spec §8.5): absolute time range, diff_pct > 0. PREWHERE
// applies a one-day leeway on the lower bound.
func TestCompileAbsoluteTimeRangePrewhereLeeway(t *testing.T) {
	from := int64(1704067200) // 2024-01-01T00:00:00Z
	to := int64(1735603200)   // 2024-12-31T00:00:00Z

	q := &model.UserQuery{
		ID:   "q5",
		Name: "2024 performance",
		Filter: model.SimpleFilter{
			Target: model.AggregateExpr{
				Target:      model.MetricExpr{Metric: "close"},
				Aggregation: model.AggDiffPct,
				TimeRange:   model.AbsoluteRange{From: from, To: to},
			},
			Op:    model.OpGt,
			Value: model.ConstantExpr{Value: 0.0},
		},
	}

	comp := compiler.New(config.Default())
	result, err := comp.Compile(q)
	require.NoError(t, err)

	assert.Contains(t, result.SQL, "BETWEEN toDate('2023-12-31')")
	assert.Contains(t, result.SQL, "toDate('2024-12-31')")
}

// Scenario 6 (spec §8.6): math close/volume > 0.001. Numbers inline; no
// parameter is created for 0.001.
func TestCompileMathExpressionInlinesNumericLiteral(t *testing.T) {
	q := &model.UserQuery{
		ID:   "q6",
		Name: "liquidity ratio",
		Filter: model.SimpleFilter{
			Target: model.MathExpr{
				Operator: model.MathDiv,
				Operands: []model.Expression{
					model.MetricExpr{Metric: "close"},
					model.MetricExpr{Metric: "volume"},
				},
			},
			Op:    model.OpGt,
			Value: model.ConstantExpr{Value: 0.001},
		},
	}

	comp := compiler.New(config.Default())
	result, err := comp.Compile(q)
	require.NoError(t, err)

	assert.Contains(t, result.SQL, "(close / volume)")
	assert.Contains(t, result.SQL, "0.001")
	assert.Empty(t, result.Parameters.Ordered())
}

func TestCompileIsDeterministic(t *testing.T) {
	q := &model.UserQuery{
		ID:   "q7",
		Name: "determinism check",
		Filter: model.SimpleFilter{
			Target: model.MetricExpr{Metric: "sector"},
			Op:     model.OpEq,
			Value:  model.ConstantExpr{Value: "Energy"},
		},
		Limit: intPtr(10),
	}

	comp := compiler.New(config.Default())
	first, err := comp.Compile(q)
	require.NoError(t, err)
	second, err := comp.Compile(q)
	require.NoError(t, err)

	assert.Equal(t, first.SQL, second.SQL)
}
