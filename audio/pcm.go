// Package audio adapts audio containers to LSB carriers. Every adapter
// exposes the low byte of each PCM sample (or, for the ancillary mode, the
// bytes of the MP3 ancillary region) as one embedding element.
package audio

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Metadata describes decoded PCM
type Metadata struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   float64
}

func (m Metadata) describe() map[string]string {
	return map[string]string{
		"sample_rate": strconv.Itoa(m.SampleRate),
		"channels":    strconv.Itoa(m.Channels),
		"bit_depth":   strconv.Itoa(m.BitDepth),
		"duration":    strconv.FormatFloat(m.Duration, 'f', 2, 64),
	}
}

// lowBytes returns the low byte of every sample
func lowBytes(data []int) []byte {
	out := make([]byte, len(data))
	for i, s := range data {
		out[i] = byte(s)
	}
	return out
}

// withLowByte replaces the low byte of a sample. Signed 8-bit samples are
// sign-extended so the result stays in range.
func withLowByte(sample int, b byte, bitDepth int, signed bool) int {
	if bitDepth == 8 && signed {
		return int(int8(b))
	}
	return sample&^0xFF | int(b)
}

// encodeWAV writes buf as a PCM WAV file. wav.NewEncoder needs an
// io.WriteSeeker, so the file is built in a temp file and read back.
func encodeWAV(buf *audio.IntBuffer, bitDepth int) ([]byte, error) {
	tempFile, err := os.CreateTemp("", "stego_*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tempFile.Name())
	defer tempFile.Close()

	encoder := wav.NewEncoder(tempFile, buf.Format.SampleRate, bitDepth, buf.Format.NumChannels, 1)
	if err := encoder.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to encode WAV: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to close WAV encoder: %w", err)
	}

	if _, err := tempFile.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind WAV data: %w", err)
	}
	wavData, err := io.ReadAll(tempFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV data: %w", err)
	}
	return wavData, nil
}

// pcm16ToInts converts 16-bit little-endian PCM to samples
func pcm16ToInts(pcmData []byte) ([]int, error) {
	if len(pcmData)%2 != 0 {
		return nil, fmt.Errorf("PCM data length must be even for 16-bit samples")
	}
	samples := make([]int, len(pcmData)/2)
	for i := range samples {
		samples[i] = int(int16(uint16(pcmData[i*2]) | uint16(pcmData[i*2+1])<<8))
	}
	return samples, nil
}
