package samples

import "io"

// Kind identifies the task variant a sample belongs to.
type Kind int

const (
	KindSequence Kind = iota
	KindSentencePair
	KindTokens
	KindQA
)

func (k Kind) String() string {
	switch k {
	case KindSequence:
		return "sequence"
	case KindSentencePair:
		return "sentence-pair"
	case KindTokens:
		return "tokens"
	case KindQA:
		return "qa"
	}
	return "unknown"
}

// Sample is one input element of the data pipeline. Exactly one concrete
// variant is behind the interface; fields that do not apply to a variant are
// nil rather than defaulted.
type Sample interface {
	Kind() Kind
}

// SequenceSample is a single piece of raw text with an optional
// sentence-level label.
type SequenceSample struct {
	Sequence string  `json:"sequence"`
	Label    *string `json:"label,omitempty"`
}

func (s *SequenceSample) Kind() Kind { return KindSequence }

// SentencePairSample is a pair of texts with an optional pair-level label.
type SentencePairSample struct {
	Sentence1 string  `json:"sentence1"`
	Sentence2 string  `json:"sentence2"`
	Label     *string `json:"label,omitempty"`
}

func (s *SentencePairSample) Kind() Kind { return KindSentencePair }

// TokensSample is a pre-split token sequence with optional per-token labels.
// Target lists the token indices that carry a label to be scored; a nil
// Target with non-nil Labels means every token is a target.
type TokensSample struct {
	Tokens []string `json:"tokens"`
	Labels []string `json:"labels,omitempty"`
	Target []int    `json:"target,omitempty"`
}

func (s *TokensSample) Kind() Kind { return KindTokens }

// TargetIndices returns the indices of the tokens whose labels are scored.
func (s *TokensSample) TargetIndices() []int {
	if s.Target != nil {
		return s.Target
	}
	indices := make([]int, len(s.Tokens))
	for i := range indices {
		indices[i] = i
	}
	return indices
}

// QASample is a question over a context, with an optional gold answer given
// as the character span [CharStart, CharEnd) in the context.
type QASample struct {
	Context   string `json:"context"`
	Question  string `json:"question"`
	CharStart *int   `json:"char_start,omitempty"`
	CharEnd   *int   `json:"char_end,omitempty"`
}

func (s *QASample) Kind() Kind { return KindQA }

// Iterator is an ordered, possibly very large source of samples. Next
// returns io.EOF once the source is exhausted; Reset rewinds the source to
// the beginning for another pass.
type Iterator interface {
	Next() (Sample, error)
	Reset() error
	Close() error
}

// SliceIterator iterates over an in-memory slice of samples.
type SliceIterator struct {
	samples []Sample
	cursor  int
}

func NewSliceIterator(samples []Sample) *SliceIterator {
	return &SliceIterator{samples: samples}
}

func (s *SliceIterator) Next() (Sample, error) {
	if s.cursor >= len(s.samples) {
		return nil, io.EOF
	}
	sample := s.samples[s.cursor]
	s.cursor++
	return sample, nil
}

func (s *SliceIterator) Reset() error {
	s.cursor = 0
	return nil
}

func (s *SliceIterator) Close() error { return nil }
