// Package pooling merges per-subword encoder outputs back into per-token
// vectors using the token-to-subword offset maps produced by the dataset
// layer.
package pooling

import "fmt"

// Strategy selects how a token's subword span is reduced to one vector.
type Strategy int

const (
	// First selects the vector of the first subword in the span.
	First Strategy = iota
	// Mean averages the vectors of the span.
	Mean
)

func (s Strategy) String() string {
	switch s {
	case First:
		return "first"
	case Mean:
		return "mean"
	}
	return "unknown"
}

// MergeHiddenStates sums the last n encoder layers elementwise. The layers
// slice is ordered from the first to the last layer; n <= 1 returns the
// final layer unchanged.
func MergeHiddenStates(layers [][][][]float32, n int) ([][][]float32, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("no hidden states to merge")
	}
	last := layers[len(layers)-1]
	if n <= 1 {
		return last, nil
	}
	if n > len(layers) {
		return nil, fmt.Errorf("cannot merge the last %d layers of %d", n, len(layers))
	}
	merged := make([][][]float32, len(last))
	for i, sequence := range last {
		merged[i] = make([][]float32, len(sequence))
		for j, vector := range sequence {
			summed := make([]float32, len(vector))
			copy(summed, vector)
			merged[i][j] = summed
		}
	}
	for _, layer := range layers[len(layers)-n : len(layers)-1] {
		for i := range merged {
			for j := range merged[i] {
				for k, v := range layer[i][j] {
					merged[i][j][k] += v
				}
			}
		}
	}
	return merged, nil
}

// PoolTokens reduces each token's subword span to a single vector, turning
// batch x subwords x hidden encoder output into batch x tokens x hidden.
// Rows are zero-padded to the largest token count in the batch; the padded
// token positions carry no signal and are excluded downstream via the label
// ignore index.
func PoolTokens(encoded [][][]float32, tokenOffsets [][][2]int, strategy Strategy) ([][][]float32, error) {
	if len(encoded) != len(tokenOffsets) {
		return nil, fmt.Errorf("got %d encoded sequences but %d offset maps", len(encoded), len(tokenOffsets))
	}
	maxTokens := 0
	for _, offsets := range tokenOffsets {
		if len(offsets) > maxTokens {
			maxTokens = len(offsets)
		}
	}
	pooled := make([][][]float32, len(encoded))
	for i, sequence := range encoded {
		hidden := 0
		if len(sequence) > 0 {
			hidden = len(sequence[0])
		}
		pooled[i] = make([][]float32, maxTokens)
		for t := range pooled[i] {
			pooled[i][t] = make([]float32, hidden)
		}
		for t, span := range tokenOffsets[i] {
			start, end := span[0], span[1]
			if start < 0 || end <= start || end > len(sequence) {
				return nil, fmt.Errorf("sequence %d token %d: span [%d, %d) out of range for %d subwords", i, t, start, end, len(sequence))
			}
			switch strategy {
			case First:
				copy(pooled[i][t], sequence[start])
			case Mean:
				for j := start; j < end; j++ {
					for k, v := range sequence[j] {
						pooled[i][t][k] += v
					}
				}
				width := float32(end - start)
				for k := range pooled[i][t] {
					pooled[i][t][k] /= width
				}
			default:
				return nil, fmt.Errorf("pooling strategy %s not recognized", strategy)
			}
		}
	}
	return pooled, nil
}
