package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"multicarrier-stego/carrier"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

type flacContext struct {
	info   *meta.StreamInfo
	blocks []*meta.Block
	frames []*frame.Frame
}

// FLACAdapter embeds into the low byte of every decoded FLAC sample. Frames
// are written back with verbatim subframes, so the output is lossless but
// larger than the input.
type FLACAdapter struct{}

func NewFLACAdapter() *FLACAdapter {
	return &FLACAdapter{}
}

func (a *FLACAdapter) Name() string { return "flac" }
func (a *FLACAdapter) Category() carrier.Category { return carrier.Audio }
func (a *FLACAdapter) Extensions() []string { return []string{".flac"} }

func (a *FLACAdapter) Sniff(data []byte) bool {
	return len(data) >= 4 && string(data[:4]) == "fLaC"
}

func (a *FLACAdapter) Decode(data []byte) (*carrier.Raw, error) {
	stream, err := flac.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", carrier.ErrUnsupportedFormat, err)
	}
	defer stream.Close()

	if stream.Info.BitsPerSample < 8 {
		return nil, fmt.Errorf("%w: %d-bit FLAC", carrier.ErrUnsupportedFormat, stream.Info.BitsPerSample)
	}

	ctx := &flacContext{info: stream.Info}
	for _, block := range stream.Blocks {
		// seek points would be stale once frames are re-encoded
		if block.Header.Type == meta.TypeSeekTable {
			continue
		}
		ctx.blocks = append(ctx.blocks, block)
	}

	var samples []byte
	for {
		f, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse FLAC frame: %w", err)
		}
		for _, sub := range f.Subframes {
			for _, s := range sub.Samples {
				samples = append(samples, byte(s))
			}
		}
		ctx.frames = append(ctx.frames, f)
	}

	return &carrier.Raw{Samples: samples, BitDepth: int(stream.Info.BitsPerSample), Ext: ".flac", Context: ctx}, nil
}

func (a *FLACAdapter) Encode(raw *carrier.Raw) ([]byte, error) {
	ctx, ok := raw.Context.(*flacContext)
	if !ok {
		return nil, fmt.Errorf("flac: raw buffer was not produced by this adapter")
	}

	info := *ctx.info
	// the original checksum no longer matches the samples; zero means unknown
	info.MD5sum = [16]byte{}

	var out bytes.Buffer
	encoder, err := flac.NewEncoder(&out, &info, ctx.blocks...)
	if err != nil {
		return nil, fmt.Errorf("failed to create FLAC encoder: %w", err)
	}

	bps := int(info.BitsPerSample)
	idx := 0
	for _, f := range ctx.frames {
		if len(f.Subframes) == 2 {
			f.Channels = frame.ChannelsLR
		}
		for _, sub := range f.Subframes {
			if idx+len(sub.Samples) > len(raw.Samples) {
				return nil, fmt.Errorf("flac: sample buffer too short")
			}
			for i, s := range sub.Samples {
				sub.Samples[i] = int32(withLowByte(int(s), raw.Samples[idx], bps, true))
				idx++
			}
			sub.Pred = frame.PredVerbatim
			sub.Wasted = 0
		}
		if err := encoder.WriteFrame(f); err != nil {
			return nil, fmt.Errorf("failed to write FLAC frame: %w", err)
		}
	}
	if idx != len(raw.Samples) {
		return nil, fmt.Errorf("flac: expected %d samples, got %d", idx, len(raw.Samples))
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to close FLAC encoder: %w", err)
	}
	return out.Bytes(), nil
}

func (a *FLACAdapter) Describe(data []byte) map[string]string {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	defer stream.Close()

	md := Metadata{
		SampleRate: int(stream.Info.SampleRate),
		Channels:   int(stream.Info.NChannels),
		BitDepth:   int(stream.Info.BitsPerSample),
	}
	if md.SampleRate > 0 {
		md.Duration = float64(stream.Info.NSamples) / float64(md.SampleRate)
	}
	desc := md.describe()
	desc["samples"] = strconv.FormatUint(stream.Info.NSamples, 10)
	return desc
}
