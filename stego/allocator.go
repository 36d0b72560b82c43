package stego

import (
	"fmt"
	"math"
)

// Range is a half-open byte range [Start, End) of the payload
type Range struct {
	Start int
	End   int
}

func (r Range) Len() int {
	return r.End - r.Start
}

// EvenWeights splits 100% evenly across n carriers
func EvenWeights(n int) []float64 {
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 100.0 / float64(n)
	}
	return weights
}

// Allocate assigns each carrier a contiguous range of a payload of the given
// length. Weights are percentages; they are normalized when they do not add up
// to 100. The last carrier in use absorbs any rounding drift, and when there
// are more carriers than bytes the surplus carriers get empty ranges.
func Allocate(length int, weights []float64) ([]Range, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("%w: no carriers", ErrInvalidWeights)
	}
	if length < 0 {
		return nil, fmt.Errorf("invalid payload length %d", length)
	}

	sum := 0.0
	for i, w := range weights {
		if math.IsNaN(w) || w < 0 || w > 100 {
			return nil, fmt.Errorf("%w: weight %d is %v, must be within [0,100]", ErrInvalidWeights, i, w)
		}
		sum += w
	}

	normalized := make([]float64, len(weights))
	for i, w := range weights {
		if sum == 0 {
			normalized[i] = 100.0 / float64(len(weights))
		} else {
			normalized[i] = w * 100 / sum
		}
	}

	effective := min(len(weights), max(length, 1))

	ranges := make([]Range, len(weights))
	offset := 0
	for i := 0; i < effective-1; i++ {
		size := int(math.Round(float64(length) * normalized[i] / 100))
		size = min(size, length-offset)
		ranges[i] = Range{Start: offset, End: offset + size}
		offset += size
	}
	ranges[effective-1] = Range{Start: offset, End: length}
	for i := effective; i < len(weights); i++ {
		ranges[i] = Range{Start: length, End: length}
	}
	return ranges, nil
}
