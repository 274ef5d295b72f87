package datasets

import (
	"fmt"

	"github.com/textbatch/textbatch/samples"
	"github.com/textbatch/textbatch/tokenization"
	"github.com/textbatch/textbatch/vocabulary"
)

// SequenceDataset normalizes SequenceSamples for sentence-level
// classification: one subword sequence per sample, one scalar label.
type SequenceDataset struct {
	*Dataset
}

func NewSequenceDataset(source samples.Iterator, tk tokenization.Encoder, vocab *vocabulary.Vocabulary, config Config) (*SequenceDataset, error) {
	if err := requireLabelVocabulary(vocab); err != nil {
		return nil, err
	}
	if config.MaxLength <= 0 {
		config.MaxLength = tk.MaxLength()
	}
	collator := NewCollator(tk.PadID(), map[string]FieldRole{
		FieldInputIDs:      RoleTokenIDs,
		FieldAttentionMask: RoleMask,
		FieldLabels:        RoleScalar,
	})
	normalize := func(sample samples.Sample) (*Element, error) {
		return normalizeSequence(sample, tk, vocab)
	}
	base, err := newDataset(source, normalize, collator, config)
	if err != nil {
		return nil, err
	}
	return &SequenceDataset{Dataset: base}, nil
}

func normalizeSequence(sample samples.Sample, tk tokenization.Encoder, vocab *vocabulary.Vocabulary) (*Element, error) {
	sequenceSample, ok := sample.(*samples.SequenceSample)
	if !ok {
		return nil, fmt.Errorf("expected a sequence sample, got %s", sample.Kind())
	}
	encoding, err := tk.EncodeText(sequenceSample.Sequence)
	if err != nil {
		return nil, fmt.Errorf("tokenization failed for sequence %q: %w", sequenceSample.Sequence, err)
	}
	element := &Element{
		Fields: baseFields(encoding, false),
		Sample: sequenceSample,
	}
	if sequenceSample.Label != nil {
		idx, err := lookupLabel(vocab, *sequenceSample.Label)
		if err != nil {
			return nil, err
		}
		element.Fields[FieldLabels] = []int64{idx}
	}
	return element, nil
}

// baseFields converts the id and mask sequences shared by every task, and
// optionally the segment type ids of pair encodings.
func baseFields(encoding *tokenization.Encoding, withTypeIDs bool) map[string][]int64 {
	fields := map[string][]int64{
		FieldInputIDs:      widenUint32(encoding.IDs),
		FieldAttentionMask: widenUint32(encoding.AttentionMask),
	}
	if withTypeIDs {
		fields[FieldTokenTypeIDs] = widenUint32(encoding.TypeIDs)
	}
	return fields
}

func widenUint32(values []uint32) []int64 {
	out := make([]int64, len(values))
	for i, v := range values {
		out[i] = int64(v)
	}
	return out
}

func lookupLabel(vocab *vocabulary.Vocabulary, label string) (int64, error) {
	idx, ok := vocab.GetIdx(vocabulary.Labels, label)
	if !ok {
		return 0, fmt.Errorf("label %q not present in vocabulary", label)
	}
	return int64(idx), nil
}

func requireLabelVocabulary(vocab *vocabulary.Vocabulary) error {
	if vocab == nil || !vocab.HasNamespace(vocabulary.Labels) {
		return fmt.Errorf("a vocabulary with a %q namespace is required", vocabulary.Labels)
	}
	return nil
}
