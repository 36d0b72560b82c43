// Package carrier defines the boundary between media containers and the LSB core
package carrier

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned when no adapter can handle a carrier
var ErrUnsupportedFormat = errors.New("unsupported carrier format")

type Category int

const (
	Other Category = iota
	Audio
	Image
	Video
)

func (c Category) String() string {
	switch c {
	case Audio:
		return "audio"
	case Image:
		return "image"
	case Video:
		return "video"
	default:
		return "other"
	}
}

// Raw is a carrier decoded into addressable embedding elements. Samples holds
// one byte per element (the low byte of an audio sample, a pixel channel, a
// video frame byte); Context is whatever the adapter needs to rebuild the
// container from modified Samples.
type Raw struct {
	Samples  []byte
	// BitDepth is the width of the signal each element belongs to, e.g. 16
	// for 16-bit PCM whose low bytes are in Samples. Zero means 8.
	BitDepth int
	// Ext is the extension of the container Encode produces, e.g. ".wav"
	Ext      string
	Context  any
}

// Adapter converts one container format to and from Raw.
type Adapter interface {
	Name() string
	Category() Category
	// Extensions lists lower-case extensions including the dot
	Extensions() []string
	// Sniff reports whether data looks like this adapter's format
	Sniff(data []byte) bool
	Decode(data []byte) (*Raw, error)
	Encode(raw *Raw) ([]byte, error)
}

// Describer is implemented by adapters that can report container metadata
type Describer interface {
	Describe(data []byte) map[string]string
}

var categories = map[Category][]string{
	Image: {"png", "jpg", "jpeg", "gif", "bmp", "tiff", "tif", "webp"},
	Audio: {
		"wav", "flac", "alac", "aif", "aiff", "dsf", "pcm",
		"mp3", "aac", "m4a", "ogg", "opus",
	},
	Video: {"mp4", "avi", "mov", "mkv", "flv", "webm", "wmv", "m4v", "y4m"},
}

// Categorize classifies a file by its extension, case-insensitively
func Categorize(filename string) Category {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	for category, exts := range categories {
		for _, e := range exts {
			if e == ext {
				return category
			}
		}
	}
	return Other
}

// OutputName derives the stego carrier's file name from the input name
func OutputName(filename string, raw *Raw) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	ext := raw.Ext
	if ext == "" {
		ext = filepath.Ext(filename)
	}
	return base + "_stego" + ext
}
