package sqlgen

import (
	"fmt"
	"strings"

	"github.com/screenql/compiler/internal/ir"
	"github.com/screenql/compiler/internal/model"
)

// filterResult is a translated filter predicate plus the information the
// caller needs to route it: whether it compares a window-function alias
// (so it belongs in QUALIFY rather than WHERE) and any date-bound
// predicates surfaced by an aggregate operand.
type filterResult struct {
	SQL           string
	TouchesWindow bool
	Where         []string
}

// translateFilter renders a terminal (or nested) filter/composite-filter
// node's predicate (spec §4.6 "filter translation").
func translateFilter(s *scope, id ir.NodeID) (filterResult, error) {
	n, ok := s.g.Get(id)
	if !ok {
		return filterResult{}, fmt.Errorf("sqlgen: filter node %s not found", id)
	}

	switch f := n.(type) {
	case *ir.CompositeFilterNode:
		var parts []string
		var where []string
		touches := false
		for _, childID := range f.Inputs() {
			child, err := translateFilter(s, childID)
			if err != nil {
				return filterResult{}, err
			}
			if child.SQL == "" {
				continue
			}
			parts = append(parts, child.SQL)
			where = append(where, child.Where...)
			touches = touches || child.TouchesWindow
		}
		var sql string
		switch f.Operator {
		case model.LogicalNot:
			if len(parts) > 0 {
				sql = fmt.Sprintf("NOT (%s)", parts[0])
			}
		case model.LogicalOr:
			sql = strings.Join(wrapAll(parts), " OR ")
		default:
			sql = strings.Join(wrapAll(parts), " AND ")
		}
		return filterResult{SQL: sql, TouchesWindow: touches, Where: where}, nil

	case *ir.FilterNode:
		left, err := translateFilterSide(s, f.Condition.Left, f.Condition.Op)
		if err != nil {
			return filterResult{}, err
		}
		right, err := translateFilterSide(s, f.Condition.Right, f.Condition.Op)
		if err != nil {
			return filterResult{}, err
		}
		sql := fmt.Sprintf("%s %s %s", left.Column, filterOpSQL(f.Condition.Op), right.Column)
		touches := left.touchesWindow(s) || right.touchesWindow(s)
		where := append(append([]string{}, left.Where...), right.Where...)
		return filterResult{SQL: sql, TouchesWindow: touches, Where: where}, nil

	default:
		return filterResult{}, fmt.Errorf("sqlgen: unexpected filter node kind %s", n.Kind())
	}
}

func wrapAll(parts []string) []string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = "(" + p + ")"
	}
	return out
}

// sideResult is a translated FilterSide.
type sideResult struct {
	Column string
	Where  []string
	alias  string
}

func (r sideResult) touchesWindow(s *scope) bool {
	return r.alias != "" && s.windowAliases[r.alias]
}

// translateFilterSide renders one side of a FilterCondition (spec §4.6).
// A SideInline constant is parameterized here, at translation time,
// rather than at IR-build time: a bare-constant filter value carries no
// backing expression node (spec §4.2), so its parameter slot is only
// created once SQL emission actually needs the placeholder text.
func translateFilterSide(s *scope, side ir.FilterSide, op model.FilterOp) (sideResult, error) {
	switch side.Kind {
	case ir.SideInput:
		frag, err := translateExpr(s, side.InputNode, true)
		if err != nil {
			return sideResult{}, err
		}
		return sideResult{Column: frag.Column, Where: frag.Where, alias: frag.Column}, nil

	case ir.SideParameter:
		return sideResult{Column: side.Parameter}, nil

	case ir.SideInline:
		c, ok := side.Inline.(model.ConstantExpr)
		if !ok {
			return sideResult{}, fmt.Errorf("sqlgen: inline filter side must be a constant")
		}
		text, err := s.params.CreateParameter(c.Value, op)
		if err != nil {
			return sideResult{}, err
		}
		return sideResult{Column: text}, nil

	default:
		return sideResult{}, fmt.Errorf("sqlgen: unrecognized filter side kind %q", side.Kind)
	}
}

func filterOpSQL(op model.FilterOp) string {
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
		return "LIKE"
	case model.OpNContains:
		return "NOT LIKE"
	default:
		return "="
	}
}
