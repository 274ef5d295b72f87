package datasets

import (
	"fmt"
	"strings"

	"github.com/textbatch/textbatch/tokenization"
)

// stubTokenizer is a deterministic word-level tokenizer for tests. Words
// split on whitespace; each word expands into the number of subwords given
// by fanout (default 1), with character offsets spread over the chunks.
type stubTokenizer struct {
	fanout    map[string]int
	vocab     map[string]uint32
	maxLength int
}

func newStubTokenizer(fanout map[string]int) *stubTokenizer {
	return &stubTokenizer{
		fanout:    fanout,
		vocab:     map[string]uint32{},
		maxLength: 512,
	}
}

func (s *stubTokenizer) PadID() uint32 { return 0 }

func (s *stubTokenizer) MaxLength() int { return s.maxLength }

func (s *stubTokenizer) id(subword string) uint32 {
	if id, ok := s.vocab[subword]; ok {
		return id
	}
	id := uint32(len(s.vocab) + 1) // 0 is the pad id
	s.vocab[subword] = id
	return id
}

func (s *stubTokenizer) EncodeText(text string) (*tokenization.Encoding, error) {
	return s.encodeSegment(strings.Fields(text), 0, nil)
}

func (s *stubTokenizer) EncodePair(a, b string) (*tokenization.Encoding, error) {
	encoding, err := s.encodeSegment(strings.Fields(a), 0, nil)
	if err != nil {
		return nil, err
	}
	return s.encodeSegment(strings.Fields(b), 1, encoding)
}

func (s *stubTokenizer) EncodeWords(words []string) (*tokenization.Encoding, error) {
	for i, word := range words {
		if word == "" {
			return nil, fmt.Errorf("word %d is empty", i)
		}
	}
	return s.encodeSegment(words, 0, nil)
}

// encodeSegment appends the subwords of words to encoding (nil starts a new
// one), stamping the given segment type id. Character offsets restart at 0
// for every segment and are based on single-space joining.
func (s *stubTokenizer) encodeSegment(words []string, typeID uint32, encoding *tokenization.Encoding) (*tokenization.Encoding, error) {
	if encoding == nil {
		encoding = &tokenization.Encoding{}
	}
	charPos := 0
	for w, word := range words {
		pieces := s.fanout[word]
		if pieces < 1 {
			pieces = 1
		}
		if pieces > len(word) {
			pieces = len(word)
		}
		chunk := (len(word) + pieces - 1) / pieces
		for c := 0; c < len(word); c += chunk {
			end := c + chunk
			if end > len(word) {
				end = len(word)
			}
			encoding.IDs = append(encoding.IDs, s.id(word[c:end]))
			encoding.TypeIDs = append(encoding.TypeIDs, typeID)
			encoding.AttentionMask = append(encoding.AttentionMask, 1)
			encoding.SpecialTokensMask = append(encoding.SpecialTokensMask, 0)
			encoding.Tokens = append(encoding.Tokens, word[c:end])
			encoding.Offsets = append(encoding.Offsets, [2]uint{uint(charPos + c), uint(charPos + end)})
			encoding.Words = append(encoding.Words, w)
		}
		charPos += len(word) + 1
	}
	return encoding, nil
}
