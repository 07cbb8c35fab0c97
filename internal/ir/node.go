// Package ir defines the compute graph intermediate representation: the
// typed directed acyclic graph the IR builder lowers a UserQuery into,
// and that the join inferrer, optimizer, and SQL/diagram back ends all
// operate on (spec §3 "ComputeNode", §4.1).
package ir

import (
	"fmt"

	"github.com/screenql/compiler/internal/model"
)

// NodeID is a graph-unique, deterministically assigned node identifier
// of the form "<kind>_<counter>" (spec §4.1).
type NodeID string

// Kind discriminates the ComputeNode variants of spec §3.
type Kind string

const (
	KindSource          Kind = "source"
	KindProjection       Kind = "projection"
	KindExpression       Kind = "expression"
	KindFilter           Kind = "filter"
	KindCompositeFilter Kind = "composite-filter"
	KindSort             Kind = "sort"
	KindLimit            Kind = "limit"
	KindJoin             Kind = "join"
)

// Node is the common interface every ComputeNode variant satisfies. The
// graph owns nodes by id; nodes never hold references to each other
// except by NodeID (spec §9 "Graph ownership"), which is what lets
// Graph.ReplaceNodeID rewrite in place without aliasing hazards.
type Node interface {
	ID() NodeID
	Kind() Kind
	Inputs() []NodeID
	SetInputs(ids []NodeID)
	Terminal() bool
	SetTerminal(bool)
	Meta() map[string]interface{}

	setID(NodeID)
}

type base struct {
	id       NodeID
	kind     Kind
	inputs   []NodeID
	terminal bool
	metadata map[string]interface{}
}

func (b *base) ID() NodeID               { return b.id }
func (b *base) Kind() Kind               { return b.kind }
func (b *base) Inputs() []NodeID         { return b.inputs }
func (b *base) SetInputs(ids []NodeID)   { b.inputs = ids }
func (b *base) Terminal() bool           { return b.terminal }
func (b *base) SetTerminal(t bool)       { b.terminal = t }
func (b *base) setID(id NodeID)          { b.id = id }
func (b *base) Meta() map[string]interface{} {
	if b.metadata == nil {
		b.metadata = make(map[string]interface{})
	}
	return b.metadata
}

func newBase(kind Kind, inputs []NodeID) base {
	return base{kind: kind, inputs: inputs, terminal: true}
}

// SourceNode scans a configured table. Carries no inputs.
type SourceNode struct {
	base
	Table      string
	TimeColumn string
}

// NewSourceNode constructs a source node for Table.
func NewSourceNode(table, timeColumn string) *SourceNode {
	return &SourceNode{base: newBase(KindSource, nil), Table: table, TimeColumn: timeColumn}
}

// ProjectionColumn is one emitted column of a ProjectionNode: either a
// plain named column off SourceNode, or a computed column translating
// ExprNode.
type ProjectionColumn struct {
	Name       string
	Alias      string
	SourceNode NodeID
	ExprNode   NodeID
	IsGrouping bool
	IsRequiredProjection bool
	// SourceTable is the originating table name, recorded independently
	// of SourceNode so provenance survives join inference rewiring
	// SourceNode onto the join node (used by the optimizer's cross-table
	// prune pass, spec §4.4 risky pass (a)).
	SourceTable string
}

// ProjectionNode projects one or more columns from exactly one input
// (a source or join node).
type ProjectionNode struct {
	base
	Columns []ProjectionColumn
}

// NewProjectionNode constructs a projection over a single input node.
func NewProjectionNode(input NodeID, columns []ProjectionColumn) *ProjectionNode {
	return &ProjectionNode{base: newBase(KindProjection, []NodeID{input}), Columns: columns}
}

// ExpressionNode carries a full Expression AST to be translated to a SQL
// fragment. IsParameter marks a constant expression slated for folding
// into its dependents by the optimizer's "inline parameters" pass.
type ExpressionNode struct {
	base
	Expr        model.Expression
	Alias       string
	IsParameter bool
	// Rendered holds the already-created parameter placeholder or
	// inlined literal text for a constant expression node (spec §4.7).
	// It is computed once, at IR-build time, so parameter insertion
	// order matches build order regardless of when the optimizer folds
	// this node away.
	Rendered string
}

// NewExpressionNode constructs an expression node over the given
// dependency inputs (target/operands/filter nodes, as applicable).
func NewExpressionNode(inputs []NodeID, expr model.Expression, alias string) *ExpressionNode {
	return &ExpressionNode{base: newBase(KindExpression, inputs), Expr: expr, Alias: alias}
}

// FilterSideKind discriminates the three shapes a FilterCondition side
// can take (spec §3 "filter").
type FilterSideKind string

const (
	SideInput     FilterSideKind = "input"
	SideParameter FilterSideKind = "parameter"
	SideInline    FilterSideKind = "inline"
)

// FilterSide is one side of a FilterCondition.
type FilterSide struct {
	Kind      FilterSideKind
	InputNode NodeID            // SideInput
	Metric    string            // resolved metric/alias name, SideInput only
	Parameter string            // typed placeholder text, SideParameter only
	Inline    model.Expression  // SideInline only
}

// InputSide constructs a FilterSide referencing a dependency node.
func InputSide(node NodeID, metric string) FilterSide {
	return FilterSide{Kind: SideInput, InputNode: node, Metric: metric}
}

// InlineSide constructs a FilterSide carrying an inline Expression with
// no backing node.
func InlineSide(expr model.Expression) FilterSide {
	return FilterSide{Kind: SideInline, Inline: expr}
}

// FilterCondition is the comparison a FilterNode evaluates.
type FilterCondition struct {
	Left  FilterSide
	Right FilterSide
	Op    model.FilterOp
}

// FilterNode evaluates a single comparison between two sides.
type FilterNode struct {
	base
	Condition FilterCondition
}

// NewFilterNode constructs a filter node. inputs must list every
// dependency node referenced by cond's sides.
func NewFilterNode(inputs []NodeID, cond FilterCondition) *FilterNode {
	return &FilterNode{base: newBase(KindFilter, inputs), Condition: cond}
}

// CompositeFilterNode combines child filter/composite-filter nodes under
// a logical operator.
type CompositeFilterNode struct {
	base
	Operator model.LogicalOp
}

// NewCompositeFilterNode constructs a composite filter over the given
// child filter node ids.
func NewCompositeFilterNode(op model.LogicalOp, children []NodeID) *CompositeFilterNode {
	return &CompositeFilterNode{base: newBase(KindCompositeFilter, children), Operator: op}
}

// SortCriterionIR is one entry of a SortNode's ordering, in
// user-specified order.
type SortCriterionIR struct {
	Expression NodeID // resolved to a literal placeholder once parameters are inlined
	Literal    string
	Direction  model.SortDirection
}

// SortNode orders rows by one or more criteria.
type SortNode struct {
	base
	Criteria []SortCriterionIR
}

// NewSortNode constructs a sort node over the given deduplicated
// expression-node inputs.
func NewSortNode(inputs []NodeID, criteria []SortCriterionIR) *SortNode {
	return &SortNode{base: newBase(KindSort, inputs), Criteria: criteria}
}

// LimitNode bounds the result set. Offset/IsGrouped/GroupDimension are
// optional metadata (spec §3 "limit").
type LimitNode struct {
	base
	Limit          int
	Offset         int
	IsGrouped      bool
	GroupDimension string
}

// NewLimitNode constructs a limit node with 0 or 1 input.
func NewLimitNode(input NodeID, limit int) *LimitNode {
	var inputs []NodeID
	if input != "" {
		inputs = []NodeID{input}
	}
	return &LimitNode{base: newBase(KindLimit, inputs), Limit: limit}
}

// JoinType is the SQL join kind a JoinNode emits.
type JoinType string

const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
)

// JoinCondition is one pairwise equality condition of a JoinNode.
type JoinCondition struct {
	LeftSource  NodeID
	LeftKey     string
	RightSource NodeID
	RightKey    string
	Op          string
}

// JoinNode joins two or more source nodes.
type JoinNode struct {
	base
	JoinType   JoinType
	Conditions []JoinCondition
}

// NewJoinNode constructs a join node over ≥2 source node ids.
func NewJoinNode(sources []NodeID, conditions []JoinCondition) *JoinNode {
	return &JoinNode{base: newBase(KindJoin, sources), JoinType: JoinInner, Conditions: conditions}
}

// describe renders a compact debug representation of a node.
func describe(n Node) string {
	return fmt.Sprintf("%s(inputs=%v)", n.ID(), n.Inputs())
}
