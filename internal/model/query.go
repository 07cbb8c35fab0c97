// Package model defines the JSON-facing shape of a screener UserQuery:
// the declarative input the compute-graph builder lowers into a graph.
package model

import "encoding/json"

// Status is the lifecycle state of a saved screener query. The core
// compiler does not interpret it; it is carried through as opaque
// metadata for the collaborator that persists queries.
type Status string

const (
	StatusActive    Status = "active"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// UserQuery is the validated, declarative input to the compiler.
type UserQuery struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Status   Status             `json:"status,omitempty"`
	Filter   Filter             `json:"filter"`
	GroupBy  []GroupCriterion   `json:"group_by,omitempty"`
	SortBy   []SortCriterion    `json:"sort_by,omitempty"`
	Limit    *int               `json:"limit,omitempty"`

	// Pass-through metadata. The compiler never reads these; they ride
	// along so the collaborator that issued the UserQuery can echo them
	// back unchanged.
	Description string          `json:"description,omitempty"`
	Markets     []string        `json:"markets,omitempty"`
	Schedule    json.RawMessage `json:"schedule,omitempty"`
}

// GroupCriterion is one entry of a UserQuery's group_by list. A plain
// dimension name lowers to a grouping projection; a criterion carrying
// Limit additionally encodes top-N-per-group via a sort+limit pair.
type GroupCriterion struct {
	Dimension  string
	Limit      int
	Expression Expression // optional ordering expression for top-N
}

// IsTopN reports whether this criterion encodes a top-N-per-group grouping
// (as opposed to a plain grouping dimension).
func (g GroupCriterion) IsTopN() bool { return g.Limit > 0 }

func (g *GroupCriterion) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		g.Dimension = plain
		return nil
	}

	var obj struct {
		Dimension  string          `json:"dimension"`
		Limit      int             `json:"limit"`
		Expression json.RawMessage `json:"expression,omitempty"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	g.Dimension = obj.Dimension
	g.Limit = obj.Limit
	if len(obj.Expression) > 0 {
		expr, err := UnmarshalExpression(obj.Expression)
		if err != nil {
			return err
		}
		g.Expression = expr
	}
	return nil
}

func (g GroupCriterion) MarshalJSON() ([]byte, error) {
	if !g.IsTopN() && g.Expression == nil {
		return json.Marshal(g.Dimension)
	}
	obj := struct {
		Dimension  string      `json:"dimension"`
		Limit      int         `json:"limit,omitempty"`
		Expression interface{} `json:"expression,omitempty"`
	}{Dimension: g.Dimension, Limit: g.Limit, Expression: g.Expression}
	return json.Marshal(obj)
}

// SortDirection is the direction of a SortCriterion.
type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// SortCriterion is one entry of a UserQuery's sort_by list.
type SortCriterion struct {
	Expression Expression    `json:"expression"`
	Direction  SortDirection `json:"direction"`
}

// UnmarshalJSON decodes a UserQuery, resolving the polymorphic Filter
// field via UnmarshalFilter.
func (q *UserQuery) UnmarshalJSON(data []byte) error {
	type alias UserQuery
	var raw struct {
		alias
		Filter json.RawMessage `json:"filter"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*q = UserQuery(raw.alias)
	f, err := UnmarshalFilter(raw.Filter)
	if err != nil {
		return err
	}
	q.Filter = f
	return nil
}

func (s *SortCriterion) UnmarshalJSON(data []byte) error {
	var obj struct {
		Expression json.RawMessage `json:"expression"`
		Direction  SortDirection   `json:"direction"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	expr, err := UnmarshalExpression(obj.Expression)
	if err != nil {
		return err
	}
	s.Expression = expr
	s.Direction = obj.Direction
	if s.Direction == "" {
		s.Direction = Desc
	}
	return nil
}
