package datasets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textbatch/textbatch/samples"
	"github.com/textbatch/textbatch/vocabulary"
)

func intPtr(i int) *int { return &i }

func TestNormalizeTokensAlignsSubwordSpans(t *testing.T) {
	tk := newStubTokenizer(map[string]int{"Paris": 2})
	vocab := labelVocabulary("O", "LOC")
	sample := &samples.TokensSample{
		Tokens: []string{"John", "lives", "in", "Paris"},
		Labels: []string{"O", "O", "O", "LOC"},
	}

	element, err := normalizeTokens(sample, tk, vocab)
	require.NoError(t, err)

	// Paris expands into two subwords, so five ids cover four tokens
	assert.Len(t, element.Fields[FieldInputIDs], 5)
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 5}}, element.TokenOffsets)
	assert.Len(t, element.Fields[FieldLabels], 4)

	// spans never overlap and strictly advance
	previousEnd := 0
	for _, span := range element.TokenOffsets {
		assert.Equal(t, previousEnd, span[0])
		assert.Greater(t, span[1], span[0])
		previousEnd = span[1]
	}
}

func TestNormalizeTokensSparseTarget(t *testing.T) {
	tk := newStubTokenizer(nil)
	vocab := labelVocabulary("O", "LOC")
	sample := &samples.TokensSample{
		Tokens: []string{"John", "lives", "in", "Paris"},
		Labels: []string{"O", "O", "O", "LOC"},
		Target: []int{0, 3},
	}

	element, err := normalizeTokens(sample, tk, vocab)
	require.NoError(t, err)
	assert.Len(t, element.Fields[FieldLabels], 2)
	assert.Len(t, element.TokenOffsets, 4)
}

func TestNormalizeTokensRejectsOutOfRangeTarget(t *testing.T) {
	tk := newStubTokenizer(nil)
	sample := &samples.TokensSample{
		Tokens: []string{"a", "b"},
		Labels: []string{"O", "O"},
		Target: []int{5},
	}

	_, err := normalizeTokens(sample, tk, labelVocabulary("O"))
	assert.ErrorContains(t, err, "out of range")
}

func TestNormalizeTokensRejectsUnknownLabel(t *testing.T) {
	tk := newStubTokenizer(nil)
	sample := &samples.TokensSample{
		Tokens: []string{"a"},
		Labels: []string{"MISSING"},
	}

	_, err := normalizeTokens(sample, tk, labelVocabulary("O"))
	assert.ErrorContains(t, err, "not present in vocabulary")
}

func TestNormalizeSequenceScalarLabel(t *testing.T) {
	tk := newStubTokenizer(nil)
	vocab := labelVocabulary("neg", "pos")
	sample := &samples.SequenceSample{Sequence: "good movie", Label: strPtr("pos")}

	element, err := normalizeSequence(sample, tk, vocab)
	require.NoError(t, err)
	assert.Len(t, element.Fields[FieldInputIDs], 2)
	require.Len(t, element.Fields[FieldLabels], 1)

	expected, ok := vocab.GetIdx(vocabulary.Labels, "pos")
	require.True(t, ok)
	assert.Equal(t, int64(expected), element.Fields[FieldLabels][0])
}

func TestNormalizeSequenceUnlabeled(t *testing.T) {
	tk := newStubTokenizer(nil)
	sample := &samples.SequenceSample{Sequence: "good movie"}

	element, err := normalizeSequence(sample, tk, labelVocabulary("pos"))
	require.NoError(t, err)
	assert.NotContains(t, element.Fields, FieldLabels)
}

func TestNormalizeSentencePairCarriesTypeIDs(t *testing.T) {
	tk := newStubTokenizer(nil)
	sample := &samples.SentencePairSample{
		Sentence1: "a b",
		Sentence2: "c",
		Label:     strPtr("entailment"),
	}

	element, err := normalizeSentencePair(sample, tk, labelVocabulary("entailment"))
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0, 1}, element.Fields[FieldTokenTypeIDs])
	assert.Len(t, element.Fields[FieldLabels], 1)
}

func TestNormalizeQAConvertsGoldCharSpan(t *testing.T) {
	tk := newStubTokenizer(map[string]int{"Paris": 2})
	sample := &samples.QASample{
		Context:   "John lives in Paris",
		Question:  "where",
		CharStart: intPtr(14),
		CharEnd:   intPtr(19),
	}

	element, err := normalizeQA(sample, tk)
	require.NoError(t, err)
	// Paris covers subwords 3 and 4 of the context segment
	assert.Equal(t, []int64{3}, element.Fields[FieldStartPosition])
	assert.Equal(t, []int64{4}, element.Fields[FieldEndPosition])
	assert.NotEmpty(t, element.Word2Chars)
}

func TestNormalizeQASpanOutsideContextDropsPositions(t *testing.T) {
	tk := newStubTokenizer(nil)
	sample := &samples.QASample{
		Context:   "short context",
		Question:  "where",
		CharStart: intPtr(500),
		CharEnd:   intPtr(510),
	}

	element, err := normalizeQA(sample, tk)
	require.NoError(t, err)
	assert.NotContains(t, element.Fields, FieldStartPosition)
	assert.NotContains(t, element.Fields, FieldEndPosition)
	// the sample still batches for inference
	assert.NotEmpty(t, element.Fields[FieldInputIDs])
}

func TestNormalizeQAWithoutGoldSpan(t *testing.T) {
	tk := newStubTokenizer(nil)
	sample := &samples.QASample{Context: "some context", Question: "what"}

	element, err := normalizeQA(sample, tk)
	require.NoError(t, err)
	assert.NotContains(t, element.Fields, FieldStartPosition)
	assert.Contains(t, element.Fields, FieldTokenTypeIDs)
}

func TestNormalizeRejectsWrongSampleKind(t *testing.T) {
	tk := newStubTokenizer(nil)
	vocab := labelVocabulary("pos")

	_, err := normalizeSequence(&samples.QASample{}, tk, vocab)
	assert.Error(t, err)

	_, err = normalizeTokens(&samples.SequenceSample{}, tk, vocab)
	assert.Error(t, err)

	_, err = normalizeQA(&samples.SequenceSample{}, tk)
	assert.Error(t, err)
}
