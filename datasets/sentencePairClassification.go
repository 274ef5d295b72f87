package datasets

import (
	"fmt"

	"github.com/textbatch/textbatch/samples"
	"github.com/textbatch/textbatch/tokenization"
	"github.com/textbatch/textbatch/vocabulary"
)

// SentencePairDataset normalizes SentencePairSamples: the two texts are
// tokenized jointly into one sequence with segment type ids.
type SentencePairDataset struct {
	*Dataset
}

func NewSentencePairDataset(source samples.Iterator, tk tokenization.Encoder, vocab *vocabulary.Vocabulary, config Config) (*SentencePairDataset, error) {
	if err := requireLabelVocabulary(vocab); err != nil {
		return nil, err
	}
	if config.MaxLength <= 0 {
		config.MaxLength = tk.MaxLength()
	}
	collator := NewCollator(tk.PadID(), map[string]FieldRole{
		FieldInputIDs:      RoleTokenIDs,
		FieldAttentionMask: RoleMask,
		FieldTokenTypeIDs:  RoleTypeIDs,
		FieldLabels:        RoleScalar,
	})
	normalize := func(sample samples.Sample) (*Element, error) {
		return normalizeSentencePair(sample, tk, vocab)
	}
	base, err := newDataset(source, normalize, collator, config)
	if err != nil {
		return nil, err
	}
	return &SentencePairDataset{Dataset: base}, nil
}

func normalizeSentencePair(sample samples.Sample, tk tokenization.Encoder, vocab *vocabulary.Vocabulary) (*Element, error) {
	pairSample, ok := sample.(*samples.SentencePairSample)
	if !ok {
		return nil, fmt.Errorf("expected a sentence-pair sample, got %s", sample.Kind())
	}
	encoding, err := tk.EncodePair(pairSample.Sentence1, pairSample.Sentence2)
	if err != nil {
		return nil, fmt.Errorf("tokenization failed for pair %q / %q: %w", pairSample.Sentence1, pairSample.Sentence2, err)
	}
	element := &Element{
		Fields: baseFields(encoding, true),
		Sample: pairSample,
	}
	if pairSample.Label != nil {
		idx, err := lookupLabel(vocab, *pairSample.Label)
		if err != nil {
			return nil, err
		}
		element.Fields[FieldLabels] = []int64{idx}
	}
	return element, nil
}
