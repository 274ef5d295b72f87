package datasets

import (
	"fmt"

	"github.com/textbatch/textbatch/samples"
	"github.com/textbatch/textbatch/tokenization"
)

// QADataset normalizes QASamples for extractive question answering. Context
// and question are tokenized jointly with the context as the first segment;
// gold character spans are converted to subword positions restricted to the
// context segment. A gold span that falls outside the tokenized context
// (e.g. because of truncation) simply leaves the position fields absent.
type QADataset struct {
	*Dataset
}

// NewQADataset builds the QA dataset. No vocabulary is needed: the targets
// are subword positions, not labels.
func NewQADataset(source samples.Iterator, tk tokenization.Encoder, config Config) (*QADataset, error) {
	if config.MaxLength <= 0 {
		config.MaxLength = tk.MaxLength()
	}
	collator := NewCollator(tk.PadID(), map[string]FieldRole{
		FieldInputIDs:      RoleTokenIDs,
		FieldAttentionMask: RoleMask,
		FieldTokenTypeIDs:  RoleTypeIDs,
		FieldStartPosition: RoleScalar,
		FieldEndPosition:   RoleScalar,
	})
	normalize := func(sample samples.Sample) (*Element, error) {
		return normalizeQA(sample, tk)
	}
	base, err := newDataset(source, normalize, collator, config)
	if err != nil {
		return nil, err
	}
	return &QADataset{Dataset: base}, nil
}

func normalizeQA(sample samples.Sample, tk tokenization.Encoder) (*Element, error) {
	qaSample, ok := sample.(*samples.QASample)
	if !ok {
		return nil, fmt.Errorf("expected a qa sample, got %s", sample.Kind())
	}
	encoding, err := tk.EncodePair(qaSample.Context, qaSample.Question)
	if err != nil {
		return nil, fmt.Errorf("tokenization failed for context %q: %w", qaSample.Context, err)
	}
	element := &Element{
		Fields:     baseFields(encoding, true),
		Word2Chars: encoding.Offsets,
		Sample:     qaSample,
	}
	if qaSample.CharStart != nil && qaSample.CharEnd != nil {
		start, okStart := encoding.CharToSubword(*qaSample.CharStart, 0)
		end, okEnd := encoding.CharToSubword(*qaSample.CharEnd-1, 0)
		if okStart && okEnd {
			element.Fields[FieldStartPosition] = []int64{int64(start)}
			element.Fields[FieldEndPosition] = []int64{int64(end)}
		}
		// otherwise the span was truncated away: no gold positions for
		// this sample, which is a loss-time condition and not an error
	}
	return element, nil
}
