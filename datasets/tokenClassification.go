package datasets

import (
	"fmt"
	"strings"

	"github.com/textbatch/textbatch/samples"
	"github.com/textbatch/textbatch/tokenization"
	"github.com/textbatch/textbatch/vocabulary"
)

// TokensDataset normalizes TokensSamples for token-level labeling. The
// pre-split tokens are encoded in split-input mode and every token is
// aligned to its covering subword span; a token the tokenizer cannot map to
// any subword invalidates the whole sample.
type TokensDataset struct {
	*Dataset
}

func NewTokensDataset(source samples.Iterator, tk tokenization.Encoder, vocab *vocabulary.Vocabulary, config Config) (*TokensDataset, error) {
	if err := requireLabelVocabulary(vocab); err != nil {
		return nil, err
	}
	if config.MaxLength <= 0 {
		config.MaxLength = tk.MaxLength()
	}
	collator := NewCollator(tk.PadID(), map[string]FieldRole{
		FieldInputIDs:      RoleTokenIDs,
		FieldAttentionMask: RoleMask,
		FieldLabels:        RoleTokenLabels,
	})
	normalize := func(sample samples.Sample) (*Element, error) {
		return normalizeTokens(sample, tk, vocab)
	}
	base, err := newDataset(source, normalize, collator, config)
	if err != nil {
		return nil, err
	}
	return &TokensDataset{Dataset: base}, nil
}

func normalizeTokens(sample samples.Sample, tk tokenization.Encoder, vocab *vocabulary.Vocabulary) (*Element, error) {
	tokensSample, ok := sample.(*samples.TokensSample)
	if !ok {
		return nil, fmt.Errorf("expected a tokens sample, got %s", sample.Kind())
	}
	encoding, err := tk.EncodeWords(tokensSample.Tokens)
	if err != nil {
		return nil, fmt.Errorf("tokenization failed for tokens: %s: %w", strings.Join(tokensSample.Tokens, " | "), err)
	}
	tokenOffsets, err := encoding.WordSpans(len(tokensSample.Tokens))
	if err != nil {
		return nil, fmt.Errorf("tokenization failed for tokens: %s: %w", strings.Join(tokensSample.Tokens, " | "), err)
	}
	element := &Element{
		Fields:       baseFields(encoding, false),
		TokenOffsets: tokenOffsets,
		Sample:       tokensSample,
	}
	if tokensSample.Labels != nil {
		// only the target tokens carry a label to be scored, which allows
		// sparse labeling of long sequences
		target := tokensSample.TargetIndices()
		labels := make([]int64, 0, len(target))
		for _, tokenIdx := range target {
			if tokenIdx < 0 || tokenIdx >= len(tokensSample.Labels) {
				return nil, fmt.Errorf("target index %d out of range for %d labels", tokenIdx, len(tokensSample.Labels))
			}
			idx, err := lookupLabel(vocab, tokensSample.Labels[tokenIdx])
			if err != nil {
				return nil, err
			}
			labels = append(labels, idx)
		}
		element.Fields[FieldLabels] = labels
	}
	return element, nil
}
