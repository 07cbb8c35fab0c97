package sqlgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/screenql/compiler/internal/config"
	"github.com/screenql/compiler/internal/errs"
	"github.com/screenql/compiler/internal/ir"
	"github.com/screenql/compiler/internal/model"
)

// fragment is a translated expression: the SQL text standing in for the
// expression's value, plus any date-bound predicates the translation
// discovered along the way that must surface in the enclosing WHERE
// clause (spec §4.6 "aggregate translation").
type fragment struct {
	Column string
	Where  []string
}

// translateExpr renders node id's value. aliasOnly short-circuits to the
// node's alias when one exists, the behavior a filter or sort criterion
// wants: it references an already-selected column rather than
// re-deriving (and, for aggregates, re-computing) the underlying
// expression (spec §4.6).
func translateExpr(s *scope, id ir.NodeID, aliasOnly bool) (fragment, error) {
	n, ok := s.g.Get(id)
	if !ok {
		return fragment{}, &errs.DanglingReference{Input: string(id)}
	}

	switch t := n.(type) {
	case *ir.ProjectionNode:
		if len(t.Columns) == 0 {
			return fragment{}, fmt.Errorf("sqlgen: empty projection %s", id)
		}
		col := t.Columns[0]
		if aliasOnly && col.Alias != "" {
			return fragment{Column: col.Alias}, nil
		}
		return fragment{Column: col.Name}, nil

	case *ir.ExpressionNode:
		if aliasOnly && t.Alias != "" {
			return fragment{Column: t.Alias}, nil
		}
		switch expr := t.Expr.(type) {
		case model.ConstantExpr:
			text := t.Rendered
			if text == "" {
				var err error
				text, err = s.params.CreateParameter(expr.Value, "")
				if err != nil {
					return fragment{}, err
				}
			}
			return fragment{Column: text}, nil

		case model.MathExpr:
			return translateMath(s, t, expr)

		case model.AggregateExpr:
			return translateAggregate(s, t, expr)

		default:
			return fragment{}, fmt.Errorf("sqlgen: unrecognized expression %T", expr)
		}

	default:
		return fragment{}, fmt.Errorf("sqlgen: cannot translate node kind %s", n.Kind())
	}
}

func translateMath(s *scope, node *ir.ExpressionNode, expr model.MathExpr) (fragment, error) {
	var parts []string
	var where []string
	for _, inID := range node.Inputs() {
		operand, err := translateExpr(s, inID, false)
		if err != nil {
			return fragment{}, err
		}
		parts = append(parts, operand.Column)
		where = append(where, operand.Where...)
	}
	if len(parts) == 0 {
		return fragment{}, fmt.Errorf("sqlgen: math expression %s has no operands", node.ID())
	}
	return fragment{Column: renderMath(expr.Operator, parts), Where: where}, nil
}

func renderMath(op model.MathOperator, parts []string) string {
	switch op {
	case model.MathSqrt:
		return fmt.Sprintf("sqrt(%s)", parts[0])
	case model.MathAbs:
		return fmt.Sprintf("abs(%s)", parts[0])
	case model.MathLn:
		return fmt.Sprintf("ln(%s)", parts[0])
	case model.MathLog10:
		return fmt.Sprintf("log10(%s)", parts[0])
	case model.MathPow:
		if len(parts) < 2 {
			return fmt.Sprintf("pow(%s, 2)", parts[0])
		}
		return fmt.Sprintf("pow(%s, %s)", parts[0], parts[1])
	case model.MathMod:
		return fmt.Sprintf("(%s %% %s)", parts[0], parts[1])
	}
	sym := map[model.MathOperator]string{
		model.MathAdd: "+", model.MathSub: "-", model.MathMul: "*", model.MathDiv: "/",
		model.MathGt: ">", model.MathGte: ">=", model.MathLt: "<", model.MathLte: "<=",
		model.MathEq: "=", model.MathNeq: "!=",
	}[op]
	if sym == "" {
		sym = "+"
	}
	return "(" + strings.Join(parts, " "+sym+" ") + ")"
}

// translateAggregate renders an AggregateExpr as a ClickHouse window
// function over the partition/order implied by the target's originating
// table (spec §4.6 "aggregate translation"). A configured time range adds
// a date predicate the caller folds into the enclosing WHERE clause.
func translateAggregate(s *scope, node *ir.ExpressionNode, agg model.AggregateExpr) (fragment, error) {
	if len(node.Inputs()) == 0 {
		return fragment{}, fmt.Errorf("sqlgen: aggregate %s has no target", node.ID())
	}
	target, err := translateExpr(s, node.Inputs()[0], true)
	if err != nil {
		return fragment{}, err
	}

	table := findSourceTable(s.g, node.Inputs()[0])
	pk, timeCol := aggregateScopeInfo(s.cfg, table)
	partition := fmt.Sprintf("PARTITION BY %s ORDER BY %s", pk, timeCol)

	frame := "ROWS BETWEEN UNBOUNDED PRECEDING AND UNBOUNDED FOLLOWING"
	if tr, ok := agg.TimeRange.(model.TradingRange); ok && tr.Duration > 0 {
		frame = fmt.Sprintf("ROWS BETWEEN %d PRECEDING AND CURRENT ROW", tr.Duration-1)
	}

	col := target.Column
	var windowCol string
	switch agg.Aggregation {
	case model.AggFirst:
		windowCol = fmt.Sprintf("first_value(%s) OVER (%s %s)", col, partition, frame)
	case model.AggLast:
		windowCol = fmt.Sprintf("last_value(%s) OVER (%s %s)", col, partition, frame)
	case model.AggAvg, model.AggSum, model.AggMin, model.AggMax, model.AggCount:
		windowCol = fmt.Sprintf("%s(%s) OVER (%s)", string(agg.Aggregation), col, partition)
	case model.AggMedian:
		windowCol = fmt.Sprintf("quantile(0.5)(%s) OVER (%s)", col, partition)
	case model.AggPercentile:
		p := agg.Params["percentile"]
		windowCol = fmt.Sprintf("quantile(%v)(%s) OVER (%s)", p, col, partition)
	case model.AggStddev:
		windowCol = fmt.Sprintf("stddevPopStable(%s) OVER (%s)", col, partition)
	case model.AggVariance:
		windowCol = fmt.Sprintf("varPop(%s) OVER (%s)", col, partition)
	case model.AggDiff:
		windowCol = fmt.Sprintf("(last_value(%s) OVER (%s %s) - first_value(%s) OVER (%s %s))",
			col, partition, frame, col, partition, frame)
	case model.AggDiffPct:
		windowCol = fmt.Sprintf(
			"((last_value(%s) OVER (%s %s) - first_value(%s) OVER (%s %s)) / nullIf(first_value(%s) OVER (%s %s), 0) * 100)",
			col, partition, frame, col, partition, frame, col, partition, frame)
	case model.AggEma:
		decay := agg.Params["decay"]
		if decay == 0 {
			decay = 0.1
		}
		windowCol = fmt.Sprintf("exponentialMovingAverage(%v)(%s, %s) OVER (%s)", decay, col, timeCol, partition)
	default:
		return fragment{}, &errs.UnsupportedAggregation{Name: string(agg.Aggregation)}
	}

	var where []string
	where = append(where, target.Where...)
	if agg.TimeRange != nil {
		where = append(where, dateWhere(timeCol, agg.TimeRange))
	}
	return fragment{Column: windowCol, Where: where}, nil
}

// aggregateScopeInfo resolves the primary key and time column the window
// spec partitions/orders by, defaulting to the schema's conventional
// ticker/date pair when the source table cannot be determined (should not
// happen for a query that passed IR building).
func aggregateScopeInfo(cfg *config.Config, table string) (pk, timeCol string) {
	t, ok := cfg.Table(table)
	if !ok || len(t.PrimaryKeys) == 0 {
		return "ticker", "date"
	}
	tc := t.TimeColumn
	if tc == "" {
		tc = "date"
	}
	return t.PrimaryKeys[0], tc
}

// dateWhere renders the WHERE-clause date bound a time-ranged aggregate
// adds alongside its window function (spec §4.6).
func dateWhere(timeCol string, tr model.TimeRange) string {
	switch t := tr.(type) {
	case model.RelativeRange:
		return fmt.Sprintf("%s >= date_sub(now(), INTERVAL %d %s)", timeCol, t.Duration, t.Unit.SQL())
	case model.TradingRange:
		return fmt.Sprintf("%s >= date_sub(now(), INTERVAL %d %s)", timeCol, t.Duration, t.Unit.SQL())
	case model.AbsoluteRange:
		from := time.Unix(t.From, 0).UTC().Format("2006-01-02")
		to := time.Unix(t.To, 0).UTC().Format("2006-01-02")
		return fmt.Sprintf("%s BETWEEN toDate('%s') AND toDate('%s')", timeCol, from, to)
	}
	return ""
}

// findSourceTable walks down an expression subtree to the projection
// column that ultimately feeds it, returning the table it was sourced
// from (spec §4.6).
func findSourceTable(g *ir.Graph, id ir.NodeID) string {
	n, ok := g.Get(id)
	if !ok {
		return ""
	}
	switch t := n.(type) {
	case *ir.ProjectionNode:
		if len(t.Columns) > 0 {
			return t.Columns[0].SourceTable
		}
	case *ir.ExpressionNode:
		for _, in := range t.Inputs() {
			if tbl := findSourceTable(g, in); tbl != "" {
				return tbl
			}
		}
	}
	return ""
}
