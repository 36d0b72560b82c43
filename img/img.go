// Package img adapts raster images to LSB carriers. Every pixel contributes
// its red, green and blue channels as three embedding elements; alpha is
// left alone.
package img

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strconv"

	"multicarrier-stego/carrier"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

const channelsPerPixel = 3

type imageContext struct {
	pix *image.NRGBA
}

// Adapter handles one image format. Lossy or palette based formats are
// decoded and written back as PNG, since re-encoding them would destroy the
// embedded bits.
type Adapter struct {
	name   string
	exts   []string
	magic  func([]byte) bool
	decode func(io.Reader) (image.Image, error)
	encode func(io.Writer, image.Image) error
	outExt string
}

func encodePNG(w io.Writer, m image.Image) error {
	enc := &png.Encoder{CompressionLevel: png.BestCompression}
	return enc.Encode(w, m)
}

func NewPNGAdapter() *Adapter {
	return &Adapter{
		name:   "png",
		exts:   []string{".png"},
		magic:  hasPrefix("\x89PNG\r\n\x1a\n"),
		decode: png.Decode,
		encode: encodePNG,
		outExt: ".png",
	}
}

func NewBMPAdapter() *Adapter {
	return &Adapter{
		name:   "bmp",
		exts:   []string{".bmp"},
		magic:  hasPrefix("BM"),
		decode: bmp.Decode,
		encode: bmp.Encode,
		outExt: ".bmp",
	}
}

func NewTIFFAdapter() *Adapter {
	return &Adapter{
		name:   "tiff",
		exts:   []string{".tiff", ".tif"},
		magic:  func(b []byte) bool { return hasPrefix("II*\x00")(b) || hasPrefix("MM\x00*")(b) },
		decode: tiff.Decode,
		encode: func(w io.Writer, m image.Image) error {
			return tiff.Encode(w, m, &tiff.Options{Compression: tiff.Deflate})
		},
		outExt: ".tiff",
	}
}

func NewJPEGAdapter() *Adapter {
	return &Adapter{
		name:   "jpeg",
		exts:   []string{".jpg", ".jpeg"},
		magic:  hasPrefix("\xFF\xD8\xFF"),
		decode: jpeg.Decode,
		encode: encodePNG,
		outExt: ".png",
	}
}

// NewGIFAdapter reads the first frame only
func NewGIFAdapter() *Adapter {
	return &Adapter{
		name:   "gif",
		exts:   []string{".gif"},
		magic:  hasPrefix("GIF8"),
		decode: gif.Decode,
		encode: encodePNG,
		outExt: ".png",
	}
}

func NewWebPAdapter() *Adapter {
	return &Adapter{
		name: "webp",
		exts: []string{".webp"},
		magic: func(b []byte) bool {
			return len(b) >= 12 && string(b[:4]) == "RIFF" && string(b[8:12]) == "WEBP"
		},
		decode: webp.Decode,
		encode: encodePNG,
		outExt: ".png",
	}
}

// All returns one adapter per supported image format
func All() []carrier.Adapter {
	return []carrier.Adapter{
		NewPNGAdapter(),
		NewBMPAdapter(),
		NewTIFFAdapter(),
		NewJPEGAdapter(),
		NewGIFAdapter(),
		NewWebPAdapter(),
	}
}

func hasPrefix(prefix string) func([]byte) bool {
	return func(b []byte) bool {
		return bytes.HasPrefix(b, []byte(prefix))
	}
}

func (a *Adapter) Name() string { return a.name }
func (a *Adapter) Category() carrier.Category { return carrier.Image }
func (a *Adapter) Extensions() []string { return a.exts }
func (a *Adapter) Sniff(data []byte) bool { return a.magic(data) }

func (a *Adapter) load(data []byte) (*image.NRGBA, error) {
	src, err := a.decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s: %v", carrier.ErrUnsupportedFormat, a.name, err)
	}
	bounds := src.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), src, bounds.Min, draw.Src)
	return nrgba, nil
}

func (a *Adapter) Decode(data []byte) (*carrier.Raw, error) {
	pix, err := a.load(data)
	if err != nil {
		return nil, err
	}

	w, h := pix.Rect.Dx(), pix.Rect.Dy()
	samples := make([]byte, 0, w*h*channelsPerPixel)
	for y := range h {
		row := pix.Pix[y*pix.Stride : y*pix.Stride+w*4]
		for x := 0; x < len(row); x += 4 {
			samples = append(samples, row[x], row[x+1], row[x+2])
		}
	}

	return &carrier.Raw{
		Samples: samples,
		Ext:     a.outExt,
		Context: &imageContext{pix: pix},
	}, nil
}

func (a *Adapter) Encode(raw *carrier.Raw) ([]byte, error) {
	ctx, ok := raw.Context.(*imageContext)
	if !ok {
		return nil, fmt.Errorf("%s: raw buffer was not produced by this adapter", a.name)
	}

	w, h := ctx.pix.Rect.Dx(), ctx.pix.Rect.Dy()
	if len(raw.Samples) != w*h*channelsPerPixel {
		return nil, fmt.Errorf("%s: expected %d samples, got %d", a.name, w*h*channelsPerPixel, len(raw.Samples))
	}

	out := image.NewNRGBA(ctx.pix.Rect)
	copy(out.Pix, ctx.pix.Pix)
	i := 0
	for y := range h {
		row := out.Pix[y*out.Stride : y*out.Stride+w*4]
		for x := 0; x < len(row); x += 4 {
			row[x], row[x+1], row[x+2] = raw.Samples[i], raw.Samples[i+1], raw.Samples[i+2]
			i += channelsPerPixel
		}
	}

	var buf bytes.Buffer
	if err := a.encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", a.outExt, err)
	}
	return buf.Bytes(), nil
}

func (a *Adapter) Describe(data []byte) map[string]string {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	return map[string]string{
		"format": format,
		"width":  strconv.Itoa(cfg.Width),
		"height": strconv.Itoa(cfg.Height),
		"output": a.outExt,
	}
}
