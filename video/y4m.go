// Package video adapts video to LSB carriers. Raw YUV4MPEG2 streams are
// handled natively; other containers are transcoded through ffmpeg.
package video

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"multicarrier-stego/carrier"
)

const (
	y4mMagic       = "YUV4MPEG2"
	y4mFrameMarker = "FRAME"
)

// Y4M is a parsed YUV4MPEG2 stream
type Y4M struct {
	Width      int
	Height     int
	Colorspace string
	// Header is the raw stream header line without the newline
	Header string
	Frames []Y4MFrame
}

// Y4MFrame holds one frame's parameter string and its planar data
type Y4MFrame struct {
	Params string
	Data   []byte
}

// frameSize is the byte size of one 8-bit frame for the colorspace
func frameSize(width, height int, colorspace string) (int, error) {
	luma := width * height
	cw, ch := (width+1)/2, (height+1)/2
	switch colorspace {
	case "", "420", "420jpeg", "420paldv", "420mpeg2":
		return luma + 2*cw*ch, nil
	case "422":
		return luma + 2*cw*height, nil
	case "444":
		return 3 * luma, nil
	case "mono":
		return luma, nil
	default:
		return 0, fmt.Errorf("%w: y4m colorspace C%s", carrier.ErrUnsupportedFormat, colorspace)
	}
}

func ParseY4M(data []byte) (*Y4M, error) {
	nl := bytes.IndexByte(data, '\n')
	if nl < 0 || !bytes.HasPrefix(data, []byte(y4mMagic+" ")) {
		return nil, fmt.Errorf("%w: missing YUV4MPEG2 header", carrier.ErrUnsupportedFormat)
	}

	v := &Y4M{Header: string(data[:nl])}
	for _, field := range strings.Fields(v.Header)[1:] {
		var err error
		switch field[0] {
		case 'W':
			v.Width, err = strconv.Atoi(field[1:])
		case 'H':
			v.Height, err = strconv.Atoi(field[1:])
		case 'C':
			v.Colorspace = field[1:]
		}
		if err != nil {
			return nil, fmt.Errorf("%w: bad y4m header field %q", carrier.ErrUnsupportedFormat, field)
		}
	}
	if v.Width <= 0 || v.Height <= 0 {
		return nil, fmt.Errorf("%w: y4m header has no frame size", carrier.ErrUnsupportedFormat)
	}

	size, err := frameSize(v.Width, v.Height, v.Colorspace)
	if err != nil {
		return nil, err
	}

	pos := nl + 1
	for pos < len(data) {
		end := bytes.IndexByte(data[pos:], '\n')
		if end < 0 || !bytes.HasPrefix(data[pos:], []byte(y4mFrameMarker)) {
			return nil, fmt.Errorf("malformed y4m frame header at offset %d", pos)
		}
		params := string(data[pos+len(y4mFrameMarker) : pos+end])
		pos += end + 1
		if pos+size > len(data) {
			return nil, fmt.Errorf("truncated y4m frame at offset %d", pos)
		}
		v.Frames = append(v.Frames, Y4MFrame{
			Params: params,
			Data:   data[pos : pos+size],
		})
		pos += size
	}
	if len(v.Frames) == 0 {
		return nil, fmt.Errorf("%w: y4m stream has no frames", carrier.ErrUnsupportedFormat)
	}
	return v, nil
}

// Bytes serializes the stream
func (v *Y4M) Bytes() []byte {
	var buf bytes.Buffer
	buf.WriteString(v.Header)
	buf.WriteByte('\n')
	for _, f := range v.Frames {
		buf.WriteString(y4mFrameMarker)
		buf.WriteString(f.Params)
		buf.WriteByte('\n')
		buf.Write(f.Data)
	}
	return buf.Bytes()
}

// samples concatenates every frame's planes
func (v *Y4M) samples() []byte {
	var out []byte
	for _, f := range v.Frames {
		out = append(out, f.Data...)
	}
	return out
}

// withSamples returns a copy of the stream carrying samples as frame data
func (v *Y4M) withSamples(samples []byte) (*Y4M, error) {
	out := &Y4M{
		Width:      v.Width,
		Height:     v.Height,
		Colorspace: v.Colorspace,
		Header:     v.Header,
		Frames:     make([]Y4MFrame, len(v.Frames)),
	}
	offset := 0
	for i, f := range v.Frames {
		if offset+len(f.Data) > len(samples) {
			return nil, fmt.Errorf("y4m: sample buffer too short")
		}
		out.Frames[i] = Y4MFrame{Params: f.Params, Data: samples[offset : offset+len(f.Data)]}
		offset += len(f.Data)
	}
	if offset != len(samples) {
		return nil, fmt.Errorf("y4m: expected %d samples, got %d", offset, len(samples))
	}
	return out, nil
}

func (v *Y4M) describe() map[string]string {
	cs := v.Colorspace
	if cs == "" {
		cs = "420"
	}
	return map[string]string{
		"width":      strconv.Itoa(v.Width),
		"height":     strconv.Itoa(v.Height),
		"colorspace": cs,
		"frames":     strconv.Itoa(len(v.Frames)),
	}
}

// Y4MAdapter embeds into every byte of every raw frame
type Y4MAdapter struct{}

func NewY4MAdapter() *Y4MAdapter {
	return &Y4MAdapter{}
}

func (a *Y4MAdapter) Name() string { return "y4m" }
func (a *Y4MAdapter) Category() carrier.Category { return carrier.Video }
func (a *Y4MAdapter) Extensions() []string { return []string{".y4m"} }

func (a *Y4MAdapter) Sniff(data []byte) bool {
	return bytes.HasPrefix(data, []byte(y4mMagic+" "))
}

func (a *Y4MAdapter) Decode(data []byte) (*carrier.Raw, error) {
	v, err := ParseY4M(data)
	if err != nil {
		return nil, err
	}
	return &carrier.Raw{Samples: v.samples(), Ext: ".y4m", Context: v}, nil
}

func (a *Y4MAdapter) Encode(raw *carrier.Raw) ([]byte, error) {
	v, ok := raw.Context.(*Y4M)
	if !ok {
		return nil, fmt.Errorf("y4m: raw buffer was not produced by this adapter")
	}
	out, err := v.withSamples(raw.Samples)
	if err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (a *Y4MAdapter) Describe(data []byte) map[string]string {
	v, err := ParseY4M(data)
	if err != nil {
		return nil
	}
	return v.describe()
}
