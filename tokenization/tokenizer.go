package tokenization

import (
	"bytes"
	"fmt"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"

	"github.com/textbatch/textbatch/util/fileutil"
	"github.com/textbatch/textbatch/util/safeconv"
)

const defaultMaxLength = 512

// Tokenizer wraps a HuggingFace-format subword tokenizer loaded from a
// tokenizer.json file.
type Tokenizer struct {
	tk        *tokenizer.Tokenizer
	padID     uint32
	maxLength int
}

// Option configures a Tokenizer.
type Option func(t *Tokenizer)

// WithPadID overrides the pad id detected from the tokenizer vocabulary.
func WithPadID(padID uint32) Option {
	return func(t *Tokenizer) {
		t.padID = padID
	}
}

// WithMaxLength sets the maximum sequence length supported by the model the
// tokenizer feeds.
func WithMaxLength(maxLength int) Option {
	return func(t *Tokenizer) {
		t.maxLength = maxLength
	}
}

// FromFile loads a tokenizer from a tokenizer.json path. Local paths and
// remote URLs supported by the file system abstraction both work.
func FromFile(path string, opts ...Option) (*Tokenizer, error) {
	tokenizerBytes, err := fileutil.ReadFileBytes(path)
	if err != nil {
		return nil, err
	}
	return FromBytes(tokenizerBytes, opts...)
}

// FromBytes loads a tokenizer from the contents of a tokenizer.json file.
func FromBytes(tokenizerBytes []byte, opts ...Option) (*Tokenizer, error) {
	tk, err := pretrained.FromReader(bytes.NewReader(tokenizerBytes))
	if err != nil {
		return nil, err
	}
	t := &Tokenizer{tk: tk, maxLength: defaultMaxLength}
	if id, ok := tk.TokenToId("[PAD]"); ok {
		t.padID = safeconv.Int64ToUint32(int64(id))
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Tokenizer) PadID() uint32 { return t.padID }

func (t *Tokenizer) MaxLength() int { return t.maxLength }

// VocabSize returns the size of the subword vocabulary.
func (t *Tokenizer) VocabSize() int {
	return int(t.tk.GetVocabSize(false))
}

func (t *Tokenizer) EncodeText(text string) (*Encoding, error) {
	output, err := t.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, err
	}
	return convertEncoding(output), nil
}

func (t *Tokenizer) EncodePair(a, b string) (*Encoding, error) {
	output, err := t.tk.EncodePair(a, b, true)
	if err != nil {
		return nil, err
	}
	return convertEncoding(output), nil
}

func (t *Tokenizer) EncodeWords(words []string) (*Encoding, error) {
	for i, word := range words {
		if word == "" {
			return nil, fmt.Errorf("word %d is empty", i)
		}
	}
	input := tokenizer.NewSingleEncodeInput(tokenizer.NewInputSequence(words))
	output, err := t.tk.Encode(input, true)
	if err != nil {
		return nil, err
	}
	return convertEncoding(output), nil
}

// Decode turns subword ids back into a string, skipping special tokens.
func (t *Tokenizer) Decode(ids []uint32) string {
	intIDs := make([]int, len(ids))
	for i, id := range ids {
		intIDs[i] = int(id)
	}
	return t.tk.Decode(intIDs, true)
}

func convertEncoding(output *tokenizer.Encoding) *Encoding {
	words := make([]int, len(output.Words))
	copy(words, output.Words)
	return &Encoding{
		IDs:               safeconv.IntSliceToUint32Slice(output.Ids),
		TypeIDs:           safeconv.IntSliceToUint32Slice(output.TypeIds),
		AttentionMask:     safeconv.IntSliceToUint32Slice(output.AttentionMask),
		SpecialTokensMask: safeconv.IntSliceToUint32Slice(output.SpecialTokenMask),
		Tokens:            output.Tokens,
		Offsets:           safeconv.IntOffsetsToUintPairs(output.Offsets),
		Words:             words,
	}
}
