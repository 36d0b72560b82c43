package stego

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCapacityExceeded is returned when the bits to embed do not fit the carrier
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrMalformedFrame is returned when an extracted frame is missing or inconsistent
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrInvalidWeights is returned for an empty carrier list or out of range weights
	ErrInvalidWeights = errors.New("invalid weights")
)

// IncompleteError reports the ordinals that could not be recovered during reassembly.
type IncompleteError struct {
	Total   uint32
	Missing []uint32
}

func (e *IncompleteError) Error() string {
	parts := make([]string, len(e.Missing))
	for i, ord := range e.Missing {
		parts[i] = fmt.Sprintf("%d", ord)
	}
	return fmt.Sprintf("missing %d of %d chunks (ordinals %s)", len(e.Missing), e.Total, strings.Join(parts, ","))
}

func (e *IncompleteError) Unwrap() error {
	return ErrMalformedFrame
}
