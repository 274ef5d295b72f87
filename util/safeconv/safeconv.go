package safeconv

import "math"

// IntSliceToUint32Slice converts a slice of int to uint32 with clamping to avoid overflow/underflow.
func IntSliceToUint32Slice(input []int) []uint32 {
	out := make([]uint32, len(input))
	for i, v := range input {
		if v < 0 {
			out[i] = 0
		} else if v > math.MaxUint32 {
			out[i] = math.MaxUint32
		} else {
			out[i] = uint32(v)
		}
	}
	return out
}

// Int64ToUint32 converts int64 to uint32 with clamping into [0, MaxUint32].
func Int64ToUint32(v int64) uint32 {
	if v < 0 {
		return 0
	}
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}

// IntOffsetsToUintPairs converts tokenizer offsets from [][]int to [][2]uint
// with clamping of negative values to 0.
func IntOffsetsToUintPairs(input [][]int) [][2]uint {
	out := make([][2]uint, len(input))
	for i, pair := range input {
		var a, b int
		if len(pair) > 0 {
			a = pair[0]
		}
		if len(pair) > 1 {
			b = pair[1]
		}
		if a < 0 {
			a = 0
		}
		if b < 0 {
			b = 0
		}
		out[i] = [2]uint{uint(a), uint(b)} // #nosec G115 both a and b are clamped to be non-negative above, so int->uint is safe here.
	}
	return out
}
