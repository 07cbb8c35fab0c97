package params_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenql/compiler/internal/model"
	"github.com/screenql/compiler/internal/params"
)

func TestCreateParameterInlinesNumbersAndBooleans(t *testing.T) {
	pt := params.NewTable()

	text, err := pt.CreateParameter(0.001, "")
	require.NoError(t, err)
	assert.Equal(t, "0.001", text)

	text, err = pt.CreateParameter(true, "")
	require.NoError(t, err)
	assert.Equal(t, "1", text)

	text, err = pt.CreateParameter(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "NULL", text)

	assert.Empty(t, pt.Ordered(), "numbers/booleans/nil never register a parameter slot")
}

func TestCreateParameterRegistersStringsInOrder(t *testing.T) {
	pt := params.NewTable()

	first, err := pt.CreateParameter("Technology", model.OpEq)
	require.NoError(t, err)
	assert.Equal(t, "{param_1: String}", first)

	second, err := pt.CreateParameter("Energy", model.OpEq)
	require.NoError(t, err)
	assert.Equal(t, "{param_2: String}", second)

	ordered := pt.Ordered()
	require.Len(t, ordered, 2)
	assert.Equal(t, "Technology", ordered[0].Value)
	assert.Equal(t, "Energy", ordered[1].Value)
}

func TestCreateParameterWrapsContainsValuesInWildcards(t *testing.T) {
	pt := params.NewTable()
	_, err := pt.CreateParameter("corp", model.OpContains)
	require.NoError(t, err)
	assert.Equal(t, "%corp%", pt.Ordered()[0].Value)
}

func TestCreateParameterRejectsMixedTypeArrays(t *testing.T) {
	pt := params.NewTable()
	_, err := pt.CreateParameter([]interface{}{"a", 1.0}, model.OpIn)
	assert.Error(t, err)
}

func TestCreateParameterEmptyArrayInlinesAsLiteral(t *testing.T) {
	pt := params.NewTable()
	text, err := pt.CreateParameter([]interface{}{}, model.OpIn)
	require.NoError(t, err)
	assert.Equal(t, "[]", text)
	assert.Empty(t, pt.Ordered())
}

func TestAsMapPreservesValues(t *testing.T) {
	pt := params.NewTable()
	_, _ = pt.CreateParameter("Technology", model.OpEq)
	m := pt.AsMap()
	assert.Equal(t, "Technology", m["param_1"])
}
