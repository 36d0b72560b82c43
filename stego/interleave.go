package stego

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

func randomUint64() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// NewSeed draws a fresh interleaver seed
func NewSeed() (uint64, error) {
	return randomUint64()
}

// Scramble merges the front half of payload (in order) with the back half
// (from its end) following the choice sequence of a SplitMix64 seeded with
// seed. One choice is drawn per output byte; once a half runs dry the other
// half is used regardless of the choice.
func Scramble(payload []byte, seed uint64) []byte {
	n := len(payload)
	split := (n + 1) / 2
	rng := NewSplitMix64(seed)

	out := make([]byte, n)
	front, back := 0, n-1
	for i := range n {
		fromFront := rng.Bit()
		if front >= split {
			fromFront = false
		} else if back < split {
			fromFront = true
		}

		if fromFront {
			out[i] = payload[front]
			front++
		} else {
			out[i] = payload[back]
			back--
		}
	}
	return out
}

// Unscramble inverts Scramble for the same seed
func Unscramble(scrambled []byte, seed uint64, length int) ([]byte, error) {
	if len(scrambled) != length {
		return nil, fmt.Errorf("scrambled payload is %d bytes, expected %d", len(scrambled), length)
	}

	split := (length + 1) / 2
	rng := NewSplitMix64(seed)

	out := make([]byte, length)
	front, back := 0, length-1
	for i := range length {
		fromFront := rng.Bit()
		if front >= split {
			fromFront = false
		} else if back < split {
			fromFront = true
		}

		if fromFront {
			out[front] = scrambled[i]
			front++
		} else {
			out[back] = scrambled[i]
			back--
		}
	}
	return out, nil
}
