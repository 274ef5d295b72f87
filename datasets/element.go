package datasets

import (
	"github.com/textbatch/textbatch/samples"
)

// Field names shared by every task. The collator dispatches its padding
// strategy on these names.
const (
	FieldInputIDs      = "input_ids"
	FieldAttentionMask = "attention_mask"
	FieldTokenTypeIDs  = "token_type_ids"
	FieldLabels        = "labels"
	FieldStartPosition = "start_position"
	FieldEndPosition   = "end_position"
)

// LabelIgnoreIndex marks label positions excluded from loss and metrics,
// matching the conventional cross-entropy ignore index.
const LabelIgnoreIndex = -100

// Element is one normalized sample, immutable once yielded. Tensorable
// fields live in Fields keyed by field name; fields that are never batched
// into tensors (offset maps, character maps, the original sample) are typed.
type Element struct {
	Fields map[string][]int64
	// TokenOffsets maps each input token to its covering subword span
	// [start, end). Token-labeling task only.
	TokenOffsets [][2]int
	// Word2Chars holds per-subword character spans. QA task only.
	Word2Chars [][2]uint
	// Sample is the back-reference used to re-attach predictions.
	Sample samples.Sample
}

// Length is the batching key: the number of subwords in the element.
func (e *Element) Length() int {
	return len(e.Fields[FieldInputIDs])
}
