package audio

import (
	"bytes"
	"testing"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func synthFLAC(t *testing.T, blocks, blockSize int) []byte {
	t.Helper()
	info := &meta.StreamInfo{
		BlockSizeMin:  uint16(blockSize),
		BlockSizeMax:  uint16(blockSize),
		SampleRate:    44100,
		NChannels:     2,
		BitsPerSample: 16,
		NSamples:      uint64(blocks * blockSize),
	}

	var buf bytes.Buffer
	enc, err := flac.NewEncoder(&buf, info)
	require.NoError(t, err)

	for n := range blocks {
		f := &frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: true,
				BlockSize:         uint16(blockSize),
				SampleRate:        44100,
				Channels:          frame.ChannelsLR,
				BitsPerSample:     16,
				Num:               uint64(n),
			},
		}
		for ch := range 2 {
			samples := make([]int32, blockSize)
			for i := range samples {
				samples[i] = int32((i*37+ch*1000+n)%60000 - 30000)
			}
			f.Subframes = append(f.Subframes, &frame.Subframe{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   samples,
				NSamples:  blockSize,
			})
		}
		require.NoError(t, enc.WriteFrame(f))
	}
	require.NoError(t, enc.Close())
	return buf.Bytes()
}

func TestFLACRoundTrip(t *testing.T) {
	original := synthFLAC(t, 3, 256)
	adapter := NewFLACAdapter()
	require.True(t, adapter.Sniff(original))

	raw, err := adapter.Decode(original)
	require.NoError(t, err)
	require.Len(t, raw.Samples, 3*256*2)
	assert.Equal(t, 16, raw.BitDepth)

	for i := range raw.Samples {
		raw.Samples[i] = byte(i * 13)
	}
	expected := append([]byte(nil), raw.Samples...)

	out, err := adapter.Encode(raw)
	require.NoError(t, err)

	again, err := adapter.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, expected, again.Samples)

	md := adapter.Describe(out)
	assert.Equal(t, "44100", md["sample_rate"])
	assert.Equal(t, "768", md["samples"])
}
