// Package textbatch prepares heterogeneous natural-language samples for a
// pretrained subword encoder and maps the encoder's subword-level outputs
// back to sample-level predictions.
//
// The pipeline is: sample iterator -> per-task dataset (tokenization and
// normalization, token-budget batching, field collation) -> external
// encoder and classification head -> prediction mapping in this package.
// The encoder itself is a collaborator: anything that turns the collated
// input tensors into logits or hidden states can sit behind it.
package textbatch

import (
	"fmt"

	"github.com/textbatch/textbatch/datasets"
	"github.com/textbatch/textbatch/samples"
	"github.com/textbatch/textbatch/util/vectorutil"
	"github.com/textbatch/textbatch/vocabulary"
)

// SequencePrediction attaches a predicted label to the sample it was
// computed for. It covers both the sequence and the sentence-pair tasks.
type SequencePrediction struct {
	Sample samples.Sample
	Label  string
	Score  float32
}

// TokenPrediction attaches one predicted label per input token.
type TokenPrediction struct {
	Sample *samples.TokensSample
	Labels []string
	Scores []float32
}

// SpanPrediction attaches a predicted answer as a character span in the
// context. CharStart and CharEnd are -1 when the predicted subword position
// falls outside the character map.
type SpanPrediction struct {
	Sample    *samples.QASample
	CharStart int
	CharEnd   int
}

// MapSequencePredictions converts per-sample logits (batch x classes) into
// labeled predictions, re-attached to the original samples in batch order.
func MapSequencePredictions(batch *datasets.Batch, logits [][]float32, vocab *vocabulary.Vocabulary) ([]SequencePrediction, error) {
	if len(logits) != batch.Size {
		return nil, fmt.Errorf("got %d logit rows for a batch of %d", len(logits), batch.Size)
	}
	predictions := make([]SequencePrediction, batch.Size)
	for i, row := range logits {
		idx, _, err := vectorutil.ArgMax(row)
		if err != nil {
			return nil, err
		}
		label, ok := vocab.GetElem(vocabulary.Labels, idx)
		if !ok {
			return nil, fmt.Errorf("predicted index %d has no vocabulary entry", idx)
		}
		predictions[i] = SequencePrediction{
			Sample: batch.Samples[i],
			Label:  label,
			Score:  vectorutil.SoftMax(row)[idx],
		}
	}
	return predictions, nil
}

// MapTokenPredictions converts pooled per-token logits
// (batch x tokens x classes) into one label per input token. Positions
// beyond a sample's true token count exist only because of batch padding
// and are dropped.
func MapTokenPredictions(batch *datasets.Batch, logits [][][]float32, vocab *vocabulary.Vocabulary) ([]TokenPrediction, error) {
	if len(logits) != batch.Size {
		return nil, fmt.Errorf("got %d logit rows for a batch of %d", len(logits), batch.Size)
	}
	predictions := make([]TokenPrediction, batch.Size)
	for i, rows := range logits {
		tokensSample, ok := batch.Samples[i].(*samples.TokensSample)
		if !ok {
			return nil, fmt.Errorf("batch element %d is not a tokens sample", i)
		}
		tokenCount := len(batch.TokenOffsets[i])
		if tokenCount > len(rows) {
			return nil, fmt.Errorf("batch element %d has %d tokens but only %d logit rows", i, tokenCount, len(rows))
		}
		labels := make([]string, tokenCount)
		scores := make([]float32, tokenCount)
		for t := 0; t < tokenCount; t++ {
			idx, _, err := vectorutil.ArgMax(rows[t])
			if err != nil {
				return nil, err
			}
			label, ok := vocab.GetElem(vocabulary.Labels, idx)
			if !ok {
				return nil, fmt.Errorf("predicted index %d has no vocabulary entry", idx)
			}
			labels[t] = label
			scores[t] = vectorutil.SoftMax(rows[t])[idx]
		}
		predictions[i] = TokenPrediction{Sample: tokensSample, Labels: labels, Scores: scores}
	}
	return predictions, nil
}

// MapSpanPredictions converts start/end position logits
// (each batch x sequence) into character spans over the original context,
// using the per-subword character map retained at normalization time.
func MapSpanPredictions(batch *datasets.Batch, startLogits, endLogits [][]float32) ([]SpanPrediction, error) {
	if len(startLogits) != batch.Size || len(endLogits) != batch.Size {
		return nil, fmt.Errorf("got %d/%d logit rows for a batch of %d", len(startLogits), len(endLogits), batch.Size)
	}
	predictions := make([]SpanPrediction, batch.Size)
	for i := range startLogits {
		qaSample, ok := batch.Samples[i].(*samples.QASample)
		if !ok {
			return nil, fmt.Errorf("batch element %d is not a qa sample", i)
		}
		start, _, err := vectorutil.ArgMax(startLogits[i])
		if err != nil {
			return nil, err
		}
		end, _, err := vectorutil.ArgMax(endLogits[i])
		if err != nil {
			return nil, err
		}
		word2chars := batch.Word2Chars[i]
		charStart, charEnd := -1, -1
		if start < len(word2chars) {
			charStart = int(word2chars[start][0])
		}
		if end < len(word2chars) {
			charEnd = int(word2chars[end][1])
		}
		predictions[i] = SpanPrediction{Sample: qaSample, CharStart: charStart, CharEnd: charEnd}
	}
	return predictions, nil
}
