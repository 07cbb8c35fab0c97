package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenql/compiler/internal/errs"
	"github.com/screenql/compiler/internal/ir"
)

func TestAddNodeAssignsCounterBasedIDs(t *testing.T) {
	g := ir.NewGraph()
	src1 := g.AddNode(ir.NewSourceNode("tickers", ""))
	src2 := g.AddNode(ir.NewSourceNode("daily_agg", "date"))

	assert.Equal(t, ir.NodeID("source_1"), src1)
	assert.Equal(t, ir.NodeID("source_2"), src2)
}

func TestAddNodeFlipsInputsToNonTerminal(t *testing.T) {
	g := ir.NewGraph()
	srcID := g.AddNode(ir.NewSourceNode("tickers", ""))
	src, _ := g.Get(srcID)
	assert.True(t, src.Terminal())

	projID := g.AddNode(ir.NewProjectionNode(srcID, nil))
	src, _ = g.Get(srcID)
	assert.False(t, src.Terminal(), "source should no longer be terminal once referenced")

	proj, _ := g.Get(projID)
	assert.True(t, proj.Terminal())
}

func TestRemoveNodeRestoresTerminalWhenUnreferenced(t *testing.T) {
	g := ir.NewGraph()
	srcID := g.AddNode(ir.NewSourceNode("tickers", ""))
	projID := g.AddNode(ir.NewProjectionNode(srcID, nil))

	g.RemoveNode(projID)

	src, ok := g.Get(srcID)
	require.True(t, ok)
	assert.True(t, src.Terminal())
	assert.Equal(t, 1, g.Len())
}

func TestExecutionOrderRespectsDependencies(t *testing.T) {
	g := ir.NewGraph()
	srcID := g.AddNode(ir.NewSourceNode("tickers", ""))
	projID := g.AddNode(ir.NewProjectionNode(srcID, nil))
	g.AddNode(ir.NewLimitNode(projID, 10))

	order, err := g.ExecutionOrder()
	require.NoError(t, err)
	assert.Len(t, order, 3)

	pos := make(map[ir.NodeID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos[srcID], pos[projID])
	assert.Less(t, pos[projID], pos[ir.NodeID("limit_1")])
}

func TestExecutionOrderDetectsCycle(t *testing.T) {
	g := ir.NewGraph()
	srcID := g.AddNode(ir.NewSourceNode("tickers", ""))
	projID := g.AddNode(ir.NewProjectionNode(srcID, nil))

	proj, _ := g.Get(projID)
	proj.SetInputs(append(proj.Inputs(), projID))

	_, err := g.ExecutionOrder()
	require.Error(t, err)
	var cycleErr *errs.CycleDetected
	assert.ErrorAs(t, err, &cycleErr)
}

func TestReplaceNodeIDRewritesReferences(t *testing.T) {
	g := ir.NewGraph()
	srcID := g.AddNode(ir.NewSourceNode("tickers", ""))
	projID := g.AddNode(ir.NewProjectionNode(srcID, nil))
	limitID := g.AddNode(ir.NewLimitNode(projID, 10))

	replacement := g.AddNode(ir.NewProjectionNode(srcID, nil))
	g.ReplaceNodeID(projID, replacement, "")

	limitNode, ok := g.Get(limitID)
	require.True(t, ok)
	assert.Contains(t, limitNode.Inputs(), replacement)
	assert.NotContains(t, limitNode.Inputs(), projID)
}
