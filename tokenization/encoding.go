package tokenization

import "fmt"

// Encoding holds the result of running the subword tokenizer on one input.
type Encoding struct {
	// IDs are the subword ids, special tokens included.
	IDs []uint32
	// TypeIDs distinguish the two segments of a pair encoding.
	TypeIDs []uint32
	// AttentionMask is 1 for every real subword.
	AttentionMask []uint32
	// SpecialTokensMask is 1 for special tokens such as [CLS] and [SEP].
	SpecialTokensMask []uint32
	// Tokens are the subword strings.
	Tokens []string
	// Offsets are the per-subword character spans in the source text,
	// relative to the segment the subword belongs to.
	Offsets [][2]uint
	// Words maps each subword to the index of the input word it was
	// produced from, or -1 for special tokens.
	Words []int
}

// Length returns the number of subwords in the encoding.
func (e *Encoding) Length() int { return len(e.IDs) }

// WordSpans maps each of numWords input words to its covering subword span
// [start, end). Spans are contiguous, non-empty, non-overlapping and
// strictly increasing. An error is returned when any word produced no
// subwords, which invalidates the whole encoding for token alignment.
func (e *Encoding) WordSpans(numWords int) ([][2]int, error) {
	spans := make([][2]int, numWords)
	for i := range spans {
		spans[i] = [2]int{-1, -1}
	}
	for j, w := range e.Words {
		if w < 0 || w >= numWords {
			continue
		}
		if spans[w][0] == -1 {
			spans[w] = [2]int{j, j + 1}
			continue
		}
		if j != spans[w][1] {
			return nil, fmt.Errorf("word %d maps to non-contiguous subwords", w)
		}
		spans[w][1] = j + 1
	}
	for i, span := range spans {
		if span[0] == -1 {
			return nil, fmt.Errorf("word %d produced no subwords", i)
		}
	}
	return spans, nil
}

// CharToSubword returns the index of the subword covering character
// position char within the given segment, skipping special tokens. The
// second return value is false when the character falls outside every
// subword, e.g. because the segment was truncated.
func (e *Encoding) CharToSubword(char int, segment uint32) (int, bool) {
	if char < 0 {
		return 0, false
	}
	for j := range e.IDs {
		if e.TypeIDs[j] != segment || e.SpecialTokensMask[j] != 0 {
			continue
		}
		if uint(char) >= e.Offsets[j][0] && uint(char) < e.Offsets[j][1] {
			return j, true
		}
	}
	return 0, false
}

// Encoder is the tokenizer contract the dataset layer depends on. It is
// satisfied by Tokenizer and by test stubs.
type Encoder interface {
	// EncodeText tokenizes a single raw text.
	EncodeText(text string) (*Encoding, error)
	// EncodePair tokenizes two texts jointly into one sequence with
	// segment type ids.
	EncodePair(a, b string) (*Encoding, error)
	// EncodeWords tokenizes a pre-split word sequence, retaining the
	// subword-to-word map.
	EncodeWords(words []string) (*Encoding, error)
	// PadID is the id used to right-pad subword id sequences.
	PadID() uint32
	// MaxLength is the maximum sequence length the downstream encoder
	// supports.
	MaxLength() int
}
