package model

import "reflect"

// ExpressionsEqual implements the structural equality rules of spec §9:
// same kind, same alias, and variant-specific pointwise equality.
func ExpressionsEqual(a, b Expression) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case ConstantExpr:
		bv, ok := b.(ConstantExpr)
		return ok && reflect.DeepEqual(av.Value, bv.Value)
	case MetricExpr:
		bv, ok := b.(MetricExpr)
		return ok && av.Metric == bv.Metric && av.Alias == bv.Alias && filtersEqualOpt(av.Filter, bv.Filter)
	case MathExpr:
		bv, ok := b.(MathExpr)
		if !ok || av.Operator != bv.Operator || av.Alias != bv.Alias || len(av.Operands) != len(bv.Operands) {
			return false
		}
		for i := range av.Operands {
			if !ExpressionsEqual(av.Operands[i], bv.Operands[i]) {
				return false
			}
		}
		return true
	case AggregateExpr:
		bv, ok := b.(AggregateExpr)
		if !ok || av.Aggregation != bv.Aggregation || av.Alias != bv.Alias {
			return false
		}
		if !timeRangesEqualOpt(av.TimeRange, bv.TimeRange) {
			return false
		}
		if !ExpressionsEqual(av.Target, bv.Target) {
			return false
		}
		return filtersEqualOpt(av.Filter, bv.Filter)
	default:
		return false
	}
}

func timeRangesEqualOpt(a, b TimeRange) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type() != b.Type() {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func filtersEqualOpt(a, b Filter) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return FiltersEqual(a, b)
}

// FiltersEqual implements the structural equality rules of spec §9 for
// filters: simple filters match iff same operator and equal target/value;
// composite filters match iff same operator and pointwise equal children.
func FiltersEqual(a, b Filter) bool {
	switch av := a.(type) {
	case SimpleFilter:
		bv, ok := b.(SimpleFilter)
		return ok && av.Op == bv.Op && ExpressionsEqual(av.Target, bv.Target) && ExpressionsEqual(av.Value, bv.Value)
	case CompositeFilter:
		bv, ok := b.(CompositeFilter)
		if !ok || av.Operator != bv.Operator || len(av.Filters) != len(bv.Filters) {
			return false
		}
		for i := range av.Filters {
			if !FiltersEqual(av.Filters[i], bv.Filters[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
