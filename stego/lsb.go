// Package stego to implement LSB embedding and multi-carrier chunking
package stego

import (
	"fmt"
)

// MaxLSBBits is the widest bit group a single sample can hold
const MaxLSBBits = 8

// Channel embeds and extracts bits in the bottom k bits of successive samples.
// Samples are treated as plain 8-bit integers; what they mean (audio, pixels,
// frame bytes) is up to the carrier adapter that produced them.
type Channel struct {
	lsbBits int
	mask    byte
}

func NewChannel(lsbBits int) (*Channel, error) {
	if lsbBits < 1 || lsbBits > MaxLSBBits {
		return nil, fmt.Errorf("lsb bits must be between 1 and %d, got %d", MaxLSBBits, lsbBits)
	}
	return &Channel{
		lsbBits: lsbBits,
		mask:    byte((1 << lsbBits) - 1),
	}, nil
}

func (ch *Channel) LSBBits() int {
	return ch.lsbBits
}

// Capacity returns the number of embeddable bit positions in samples
func (ch *Channel) Capacity(samples []byte) int {
	return len(samples) * ch.lsbBits
}

// CapacityBytes returns how many whole bytes fit in samples
func (ch *Channel) CapacityBytes(samples []byte) int {
	return ch.Capacity(samples) / 8
}

// Embed writes bits (one 0/1 value per element) into samples in place.
// Bit j of each group of k bits lands in bit position j of its sample.
func (ch *Channel) Embed(samples []byte, bits []byte) error {
	capacity := ch.Capacity(samples)
	if len(bits) > capacity {
		return fmt.Errorf("%w: need %d bits, carrier holds %d", ErrCapacityExceeded, len(bits), capacity)
	}

	bitIndex := 0
	for pos := 0; bitIndex < len(bits); pos++ {
		// Pack up to k bits for this sample; a short final group keeps the
		// untouched low bits of the sample as they were.
		var value, used byte
		for j := 0; j < ch.lsbBits && bitIndex < len(bits); j++ {
			value |= (bits[bitIndex] & 1) << j
			used |= 1 << j
			bitIndex++
		}
		samples[pos] = (samples[pos] & ^used) | value
	}
	return nil
}

// Extract reads up to maxBits bits from the same positions Embed writes to
func (ch *Channel) Extract(samples []byte, maxBits int) []byte {
	return ch.extractRange(samples, 0, maxBits)
}

func (ch *Channel) extractRange(samples []byte, startBit, count int) []byte {
	capacity := ch.Capacity(samples)
	if startBit >= capacity || count <= 0 {
		return []byte{}
	}
	if startBit+count > capacity {
		count = capacity - startBit
	}

	bits := make([]byte, count)
	for i := range count {
		bitPos := startBit + i
		sample := samples[bitPos/ch.lsbBits] & ch.mask
		bits[i] = (sample >> (bitPos % ch.lsbBits)) & 1
	}
	return bits
}

// EmbedBytes embeds data MSB first
func (ch *Channel) EmbedBytes(samples []byte, data []byte) error {
	return ch.Embed(samples, bytesToBits(data))
}

// ExtractBytes reads n bytes starting offset bytes into the embedded stream
func (ch *Channel) ExtractBytes(samples []byte, offset, n int) ([]byte, error) {
	if offset < 0 || n < 0 {
		return nil, fmt.Errorf("invalid extraction range %d+%d", offset, n)
	}
	available := ch.CapacityBytes(samples)
	if offset+n > available {
		return nil, fmt.Errorf("%w: need %d bytes, carrier holds %d", ErrCapacityExceeded, offset+n, available)
	}
	return bitsToBytes(ch.extractRange(samples, offset*8, n*8)), nil
}

func bytesToBits(data []byte) []byte {
	bits := make([]byte, 0, len(data)*8)
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			bits = append(bits, (b>>i)&1)
		}
	}
	return bits
}

func bitsToBytes(bits []byte) []byte {
	bytes := make([]byte, 0, len(bits)/8)
	for i := 0; i+8 <= len(bits); i += 8 {
		var b byte
		for j := range 8 {
			b = (b << 1) | (bits[i+j] & 1)
		}
		bytes = append(bytes, b)
	}
	return bytes
}
