package audio

import (
	"bytes"
	"fmt"
	"strconv"

	"multicarrier-stego/carrier"
	"multicarrier-stego/mp3parser"
)

type ancillaryContext struct {
	file *mp3parser.MP3File
	free [][]int
}

// MP3AncillaryAdapter keeps the MP3 bitstream and embeds only in main data
// area bytes that no frame's main data covers (ancillary data and stuffing).
// Capacity is small but the carrier stays a playable MP3.
type MP3AncillaryAdapter struct{}

func NewMP3AncillaryAdapter() *MP3AncillaryAdapter {
	return &MP3AncillaryAdapter{}
}

func (a *MP3AncillaryAdapter) Name() string { return "mp3-ancillary" }
func (a *MP3AncillaryAdapter) Category() carrier.Category { return carrier.Audio }
func (a *MP3AncillaryAdapter) Extensions() []string { return []string{".mp3"} }

func (a *MP3AncillaryAdapter) Sniff(data []byte) bool {
	return sniffMP3(data)
}

func (a *MP3AncillaryAdapter) Decode(data []byte) (*carrier.Raw, error) {
	file, err := mp3parser.ParseMP3File(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", carrier.ErrUnsupportedFormat, err)
	}

	free, err := mp3parser.FreeBytes(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", carrier.ErrUnsupportedFormat, err)
	}

	var samples []byte
	for i, frame := range file.Frames {
		for _, off := range free[i] {
			samples = append(samples, frame.Data[off])
		}
	}
	ctx := &ancillaryContext{file: file, free: free}

	return &carrier.Raw{Samples: samples, Ext: ".mp3", Context: ctx}, nil
}

func (a *MP3AncillaryAdapter) Encode(raw *carrier.Raw) ([]byte, error) {
	ctx, ok := raw.Context.(*ancillaryContext)
	if !ok {
		return nil, fmt.Errorf("mp3-ancillary: raw buffer was not produced by this adapter")
	}

	out := &mp3parser.MP3File{
		ID3v2:     ctx.file.ID3v2,
		ID3v2Data: ctx.file.ID3v2Data,
		Trailer:   ctx.file.Trailer,
		Frames:    make([]*mp3parser.MP3Frame, len(ctx.file.Frames)),
	}

	offset := 0
	for i, frame := range ctx.file.Frames {
		free := ctx.free[i]
		if offset+len(free) > len(raw.Samples) {
			return nil, fmt.Errorf("mp3-ancillary: sample buffer too short at frame %d", i)
		}
		data := bytes.Clone(frame.Data)
		for j, off := range free {
			data[off] = raw.Samples[offset+j]
		}
		out.Frames[i] = &mp3parser.MP3Frame{
			Header:      frame.Header,
			HeaderBytes: frame.HeaderBytes,
			Data:        data,
		}
		offset += len(free)
	}
	if offset != len(raw.Samples) {
		return nil, fmt.Errorf("mp3-ancillary: expected %d samples, got %d", offset, len(raw.Samples))
	}

	return mp3parser.WriteMP3File(out)
}

func (a *MP3AncillaryAdapter) Describe(data []byte) map[string]string {
	md := map[string]string{}
	if file, err := mp3parser.ParseMP3File(data); err == nil {
		md["frames"] = strconv.Itoa(len(file.Frames))
		md["sample_rate"] = strconv.Itoa(file.Frames[0].Header.SampleRate)
		md["bitrate"] = strconv.Itoa(file.Frames[0].Header.Bitrate)
		if file.ID3v1 != nil && file.ID3v1.Title != "" {
			md["title"] = file.ID3v1.Title
		}
	}
	for k, v := range describeID3(data) {
		md[k] = v
	}
	return md
}
