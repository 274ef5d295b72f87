package pooling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// one sequence of five subwords ("John", "lives", "in", "Pari", "s") with a
// two-dimensional hidden state
func encodedSequence() [][][]float32 {
	return [][][]float32{{
		{1, 10},
		{2, 20},
		{3, 30},
		{4, 40},
		{6, 60},
	}}
}

var fourTokenOffsets = [][][2]int{{{0, 1}, {1, 2}, {2, 3}, {3, 5}}}

func TestPoolTokensFirstSubword(t *testing.T) {
	pooled, err := PoolTokens(encodedSequence(), fourTokenOffsets, First)
	require.NoError(t, err)
	require.Len(t, pooled, 1)
	require.Len(t, pooled[0], 4)
	// the multi-subword token keeps its first subword's vector
	assert.Equal(t, []float32{4, 40}, pooled[0][3])
	assert.Equal(t, []float32{1, 10}, pooled[0][0])
}

func TestPoolTokensMean(t *testing.T) {
	pooled, err := PoolTokens(encodedSequence(), fourTokenOffsets, Mean)
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 50}, pooled[0][3])
	// single-subword spans are unchanged under mean
	assert.Equal(t, []float32{2, 20}, pooled[0][1])
}

func TestPoolTokensPadsToLargestTokenCount(t *testing.T) {
	encoded := [][][]float32{
		{{1, 1}, {2, 2}, {3, 3}},
		{{9, 9}},
	}
	offsets := [][][2]int{
		{{0, 1}, {1, 3}},
		{{0, 1}},
	}
	pooled, err := PoolTokens(encoded, offsets, First)
	require.NoError(t, err)
	require.Len(t, pooled[1], 2)
	assert.Equal(t, []float32{9, 9}, pooled[1][0])
	assert.Equal(t, []float32{0, 0}, pooled[1][1])
}

func TestPoolTokensRejectsBadSpan(t *testing.T) {
	_, err := PoolTokens(encodedSequence(), [][][2]int{{{0, 6}}}, First)
	assert.ErrorContains(t, err, "out of range")

	_, err = PoolTokens(encodedSequence(), [][][2]int{{{2, 2}}}, First)
	assert.Error(t, err)
}

func TestPoolTokensRejectsMismatchedOffsets(t *testing.T) {
	_, err := PoolTokens(encodedSequence(), nil, First)
	assert.Error(t, err)
}

func TestMergeHiddenStatesSumsLastLayers(t *testing.T) {
	layers := [][][][]float32{
		{{{1, 1}}},
		{{{2, 2}}},
		{{{3, 3}}},
	}
	merged, err := MergeHiddenStates(layers, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 5}, merged[0][0])
}

func TestMergeHiddenStatesLastLayerOnly(t *testing.T) {
	layers := [][][][]float32{
		{{{1, 1}}},
		{{{2, 2}}},
	}
	merged, err := MergeHiddenStates(layers, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 2}, merged[0][0])

	merged, err = MergeHiddenStates(layers, 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 2}, merged[0][0])
}

func TestMergeHiddenStatesValidation(t *testing.T) {
	_, err := MergeHiddenStates(nil, 1)
	assert.Error(t, err)

	layers := [][][][]float32{{{{1}}}}
	_, err = MergeHiddenStates(layers, 5)
	assert.Error(t, err)
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	layers := [][][][]float32{
		{{{1}}},
		{{{2}}},
	}
	_, err := MergeHiddenStates(layers, 2)
	require.NoError(t, err)
	assert.Equal(t, float32(2), layers[1][0][0][0])
}
