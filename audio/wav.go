package audio

import (
	"bytes"
	"fmt"

	"multicarrier-stego/carrier"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

type pcmContext struct {
	buf      *audio.IntBuffer
	bitDepth int
	signed   bool
}

// WAVAdapter embeds into the low byte of every PCM sample of a WAV file
type WAVAdapter struct{}

func NewWAVAdapter() *WAVAdapter {
	return &WAVAdapter{}
}

func (a *WAVAdapter) Name() string { return "wav" }
func (a *WAVAdapter) Category() carrier.Category { return carrier.Audio }
func (a *WAVAdapter) Extensions() []string { return []string{".wav"} }

func (a *WAVAdapter) Sniff(data []byte) bool {
	return len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func (a *WAVAdapter) decode(data []byte) (*wav.Decoder, *audio.IntBuffer, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, nil, fmt.Errorf("%w: not a valid WAV file", carrier.ErrUnsupportedFormat)
	}
	if decoder.WavAudioFormat != wavFormatPCM && decoder.WavAudioFormat != wavFormatExtensible {
		return nil, nil, fmt.Errorf("%w: WAV audio format %d is not integer PCM", carrier.ErrUnsupportedFormat, decoder.WavAudioFormat)
	}
	switch decoder.BitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, nil, fmt.Errorf("%w: %d-bit WAV", carrier.ErrUnsupportedFormat, decoder.BitDepth)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read WAV samples: %w", err)
	}
	return decoder, buf, nil
}

func (a *WAVAdapter) Decode(data []byte) (*carrier.Raw, error) {
	decoder, buf, err := a.decode(data)
	if err != nil {
		return nil, err
	}

	return &carrier.Raw{
		Samples:  lowBytes(buf.Data),
		BitDepth: int(decoder.BitDepth),
		Ext:      ".wav",
		Context:  &pcmContext{
			buf:      buf,
			bitDepth: int(decoder.BitDepth),
			// 8-bit WAV is unsigned
			signed: decoder.BitDepth != 8,
		},
	}, nil
}

func (a *WAVAdapter) Encode(raw *carrier.Raw) ([]byte, error) {
	ctx, ok := raw.Context.(*pcmContext)
	if !ok {
		return nil, fmt.Errorf("wav: raw buffer was not produced by this adapter")
	}
	return encodePCM(ctx, raw.Samples)
}

func (a *WAVAdapter) Describe(data []byte) map[string]string {
	decoder, buf, err := a.decode(data)
	if err != nil {
		return nil
	}
	return metadataOf(buf, int(decoder.BitDepth)).describe()
}

func metadataOf(buf *audio.IntBuffer, bitDepth int) Metadata {
	md := Metadata{
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		BitDepth:   bitDepth,
	}
	if md.SampleRate > 0 && md.Channels > 0 {
		md.Duration = float64(len(buf.Data)/md.Channels) / float64(md.SampleRate)
	}
	return md
}

// encodePCM writes samples back into the low bytes and emits a WAV file
func encodePCM(ctx *pcmContext, samples []byte) ([]byte, error) {
	if len(samples) != len(ctx.buf.Data) {
		return nil, fmt.Errorf("expected %d samples, got %d", len(ctx.buf.Data), len(samples))
	}

	data := make([]int, len(ctx.buf.Data))
	for i, s := range ctx.buf.Data {
		data[i] = withLowByte(s, samples[i], ctx.bitDepth, ctx.signed)
	}

	out := &audio.IntBuffer{
		Format:         ctx.buf.Format,
		Data:           data,
		SourceBitDepth: ctx.bitDepth,
	}
	return encodeWAV(out, ctx.bitDepth)
}
