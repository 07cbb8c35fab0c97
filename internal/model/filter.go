package model

import (
	"encoding/json"
	"fmt"
)

// FilterOp is the comparison operator of a SimpleFilter.
type FilterOp string

const (
	OpEq        FilterOp = "eq"
	OpNeq       FilterOp = "neq"
	OpGt        FilterOp = "gt"
	OpGte       FilterOp = "gte"
	OpLt        FilterOp = "lt"
	OpLte       FilterOp = "lte"
	OpIn        FilterOp = "in"
	OpNin       FilterOp = "nin"
	OpContains  FilterOp = "contains"
	OpNContains FilterOp = "ncontains"
)

// LogicalOp is the operator of a CompositeFilter.
type LogicalOp string

const (
	LogicalAnd LogicalOp = "and"
	LogicalOr  LogicalOp = "or"
	LogicalNot LogicalOp = "not"
)

// Filter is the recursive sum type of a UserQuery's predicate tree.
// Implementations are SimpleFilter and CompositeFilter.
type Filter interface {
	filter()
}

// SimpleFilter compares a target expression against a value expression.
type SimpleFilter struct {
	Target Expression `json:"target"`
	Op     FilterOp   `json:"op"`
	Value  Expression `json:"value"`
}

func (SimpleFilter) filter() {}

// CompositeFilter combines one or more child filters under and/or/not.
// By convention `not` carries exactly one child; `and`/`or` carry one or
// more.
type CompositeFilter struct {
	Operator LogicalOp `json:"operator"`
	Filters  []Filter  `json:"filters"`
}

func (CompositeFilter) filter() {}

// UnmarshalFilter decodes a Filter from its JSON representation,
// dispatching on the presence of a "filters" key (composite) vs an "op"
// key (simple).
func UnmarshalFilter(data []byte) (Filter, error) {
	var probe struct {
		Filters  json.RawMessage `json:"filters"`
		Operator LogicalOp       `json:"operator"`
		Op       FilterOp        `json:"op"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode filter: %w", err)
	}

	if len(probe.Filters) > 0 {
		var raws []json.RawMessage
		if err := json.Unmarshal(probe.Filters, &raws); err != nil {
			return nil, fmt.Errorf("decode composite filter children: %w", err)
		}
		children := make([]Filter, 0, len(raws))
		for _, raw := range raws {
			child, err := UnmarshalFilter(raw)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return CompositeFilter{Operator: probe.Operator, Filters: children}, nil
	}

	var simple struct {
		Target json.RawMessage `json:"target"`
		Op     FilterOp        `json:"op"`
		Value  json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &simple); err != nil {
		return nil, fmt.Errorf("decode simple filter: %w", err)
	}
	target, err := UnmarshalExpression(simple.Target)
	if err != nil {
		return nil, fmt.Errorf("decode filter target: %w", err)
	}
	value, err := UnmarshalExpression(simple.Value)
	if err != nil {
		return nil, fmt.Errorf("decode filter value: %w", err)
	}
	return SimpleFilter{Target: target, Op: simple.Op, Value: value}, nil
}
