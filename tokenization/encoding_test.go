package tokenization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pairEncoding mimics a BERT-style pair encoding of the words
// "in Paris" (context, Paris split in two) and "where" (question):
// [CLS] in Pari s [SEP] where [SEP]
func pairEncoding() *Encoding {
	return &Encoding{
		IDs:               []uint32{101, 11, 12, 13, 102, 21, 102},
		TypeIDs:           []uint32{0, 0, 0, 0, 0, 1, 1},
		AttentionMask:     []uint32{1, 1, 1, 1, 1, 1, 1},
		SpecialTokensMask: []uint32{1, 0, 0, 0, 1, 0, 1},
		Tokens:            []string{"[CLS]", "in", "Pari", "s", "[SEP]", "where", "[SEP]"},
		Offsets:           [][2]uint{{0, 0}, {0, 2}, {3, 7}, {7, 8}, {0, 0}, {0, 5}, {0, 0}},
		Words:             []int{-1, 0, 1, 1, -1, 0, -1},
	}
}

func TestWordSpans(t *testing.T) {
	encoding := &Encoding{
		IDs:   []uint32{1, 2, 3, 4},
		Words: []int{0, 1, 1, 2},
	}
	spans, err := encoding.WordSpans(3)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 1}, {1, 3}, {3, 4}}, spans)
}

func TestWordSpansMissingWord(t *testing.T) {
	encoding := &Encoding{
		IDs:   []uint32{1, 2},
		Words: []int{0, 2},
	}
	_, err := encoding.WordSpans(3)
	assert.ErrorContains(t, err, "produced no subwords")
}

func TestWordSpansNonContiguous(t *testing.T) {
	encoding := &Encoding{
		IDs:   []uint32{1, 2, 3},
		Words: []int{0, 1, 0},
	}
	_, err := encoding.WordSpans(2)
	assert.ErrorContains(t, err, "non-contiguous")
}

func TestCharToSubwordStaysInSegment(t *testing.T) {
	encoding := pairEncoding()

	// character 4 of the context lands inside "Pari"
	idx, ok := encoding.CharToSubword(4, 0)
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	// the question's characters resolve only against segment 1
	idx, ok = encoding.CharToSubword(1, 1)
	require.True(t, ok)
	assert.Equal(t, 5, idx)
}

func TestCharToSubwordSkipsSpecialTokens(t *testing.T) {
	encoding := pairEncoding()
	// [CLS] carries a degenerate (0, 0) offset and must never match
	idx, ok := encoding.CharToSubword(0, 0)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestCharToSubwordOutOfRange(t *testing.T) {
	encoding := pairEncoding()

	_, ok := encoding.CharToSubword(100, 0)
	assert.False(t, ok)

	_, ok = encoding.CharToSubword(-1, 0)
	assert.False(t, ok)

	// the gap between "in" and "Pari" is covered by no subword
	_, ok = encoding.CharToSubword(2, 0)
	assert.False(t, ok)
}

func TestEncodingLength(t *testing.T) {
	assert.Equal(t, 7, pairEncoding().Length())
	assert.Equal(t, 0, (&Encoding{}).Length())
}
