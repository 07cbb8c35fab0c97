package join_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenql/compiler/internal/config"
	"github.com/screenql/compiler/internal/ir"
	"github.com/screenql/compiler/internal/join"
)

func TestInferIsNoOpWithOneSource(t *testing.T) {
	g := ir.NewGraph()
	g.AddNode(ir.NewSourceNode("tickers", ""))

	require.NoError(t, join.Infer(g, config.Default()))
	assert.Equal(t, 1, g.Len())
}

func TestInferJoinsOnSharedPrimaryKey(t *testing.T) {
	g := ir.NewGraph()
	tickersID := g.AddNode(ir.NewSourceNode("tickers", ""))
	dailyID := g.AddNode(ir.NewSourceNode("daily_agg", "date"))
	projID := g.AddNode(ir.NewProjectionNode(dailyID, []ir.ProjectionColumn{
		{Name: "close", SourceNode: dailyID, SourceTable: "daily_agg"},
	}))

	require.NoError(t, join.Infer(g, config.Default()))

	var joinNode *ir.JoinNode
	for _, n := range g.Nodes() {
		if jn, ok := n.(*ir.JoinNode); ok {
			joinNode = jn
		}
	}
	require.NotNil(t, joinNode)
	assert.ElementsMatch(t, []ir.NodeID{tickersID, dailyID}, joinNode.Inputs())
	require.Len(t, joinNode.Conditions, 1)
	assert.Equal(t, "ticker", joinNode.Conditions[0].LeftKey)

	proj, ok := g.Get(projID)
	require.True(t, ok)
	assert.Equal(t, joinNode.ID(), proj.(*ir.ProjectionNode).Columns[0].SourceNode)
}

func TestInferReturnsErrorWithoutSharedPrimaryKey(t *testing.T) {
	cfg := &config.Config{
		Tables: map[string]config.Table{
			"a": {Name: "a", PrimaryKeys: []string{"id_a"}},
			"b": {Name: "b", PrimaryKeys: []string{"id_b"}},
		},
	}
	g := ir.NewGraph()
	g.AddNode(ir.NewSourceNode("a", ""))
	g.AddNode(ir.NewSourceNode("b", ""))

	err := join.Infer(g, cfg)
	assert.Error(t, err)
}
