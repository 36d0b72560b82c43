package carrier

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	name  string
	magic string
	exts  []string
}

func (f fakeAdapter) Name() string { return f.name }
func (f fakeAdapter) Category() Category { return Other }
func (f fakeAdapter) Extensions() []string { return f.exts }
func (f fakeAdapter) Sniff(data []byte) bool {
	return f.magic != "" && bytes.HasPrefix(data, []byte(f.magic))
}
func (f fakeAdapter) Decode(data []byte) (*Raw, error) { return &Raw{Samples: data}, nil }
func (f fakeAdapter) Encode(raw *Raw) ([]byte, error) { return raw.Samples, nil }

func TestCategorize(t *testing.T) {
	tests := map[string]Category{
		"photo.PNG":      Image,
		"a/b/scan.tif":   Image,
		"song.flac":      Audio,
		"voice.Mp3":      Audio,
		"clip.mkv":       Video,
		"raw.y4m":        Video,
		"notes.txt":      Other,
		"no_extension":   Other,
		"archive.tar.gz": Other,
	}
	for name, want := range tests {
		assert.Equal(t, want, Categorize(name), name)
	}
	assert.Equal(t, "audio", Audio.String())
	assert.Equal(t, "other", Category(42).String())
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "song_stego.wav", OutputName("dir/song.mp3", &Raw{Ext: ".wav"}))
	assert.Equal(t, "pic_stego.bmp", OutputName("pic.bmp", &Raw{}))
}

func TestRegistryLookup(t *testing.T) {
	wav := fakeAdapter{name: "wav", magic: "RIFF", exts: []string{".wav"}}
	png := fakeAdapter{name: "png", magic: "\x89PNG", exts: []string{".png"}}
	video := fakeAdapter{name: "video", exts: []string{".mp4"}}
	r := NewRegistry(wav, png)
	r.Register(video)
	assert.Len(t, r.Adapters(), 3)

	// content wins over a misleading extension
	a, err := r.Lookup("image.wav", []byte("\x89PNG...."))
	require.NoError(t, err)
	assert.Equal(t, "png", a.Name())

	a, err = r.Lookup("CLIP.MP4", []byte("????"))
	require.NoError(t, err)
	assert.Equal(t, "video", a.Name())

	_, err = r.Lookup("notes.txt", []byte("hello"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = r.Lookup("noext", nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestStagingPublish(t *testing.T) {
	dir := t.TempDir()
	s := NewStaging()
	a, b := filepath.Join(dir, "a.bin"), filepath.Join(dir, "b.bin")

	require.NoError(t, s.Stage(a, []byte("first")))
	require.NoError(t, s.Stage(b, []byte("second")))
	assert.Error(t, s.Stage(a, []byte("again")))

	// nothing visible before publishing
	assert.NoFileExists(t, a)
	assert.NoFileExists(t, b)

	published, err := s.Publish()
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, published)

	content, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), content)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestStagingDiscard(t *testing.T) {
	dir := t.TempDir()
	s := NewStaging()
	require.NoError(t, s.Stage(filepath.Join(dir, "a.bin"), []byte("x")))
	require.NoError(t, s.Discard())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	published, err := s.Publish()
	require.NoError(t, err)
	assert.Empty(t, published)
}

func TestStageMissingDir(t *testing.T) {
	s := NewStaging()
	err := s.Stage(filepath.Join(t.TempDir(), "missing", "a.bin"), []byte("x"))
	assert.Error(t, err)
}

func TestWriteAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
	require.NoError(t, WriteAtomic(path, []byte("new")))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), content)
}

func TestCalculatePSNR(t *testing.T) {
	original := []byte{10, 20, 30, 40}
	assert.True(t, math.IsInf(CalculatePSNR(original, original, 8), 1))
	assert.Equal(t, 0.0, CalculatePSNR(original, original[:2], 8))
	assert.Equal(t, 0.0, CalculatePSNR(nil, nil, 8))

	// every sample off by one: MSE 1, PSNR = 20*log10(255)
	psnr := CalculatePSNR(original, []byte{11, 21, 31, 41}, 8)
	assert.InDelta(t, 48.13, psnr, 0.01)
	assert.Equal(t, psnr, CalculatePSNR(original, []byte{11, 21, 31, 41}, 0))

	assert.True(t, ValidatePSNR(psnr, 40))
	assert.False(t, ValidatePSNR(psnr, 50))
	assert.True(t, ValidatePSNR(math.Inf(1), 1000))
}

func TestCalculatePSNRScalesWithBitDepth(t *testing.T) {
	// five low bits flipped on every low byte of 16-bit samples
	original := []byte{0, 0, 0, 0}
	stego := []byte{31, 31, 31, 31}

	assert.InDelta(t, 18.30, CalculatePSNR(original, stego, 8), 0.01)
	wide := CalculatePSNR(original, stego, 16)
	assert.InDelta(t, 66.50, wide, 0.01)
	assert.True(t, ValidatePSNR(wide, 30))
	assert.InDelta(t, 20*math.Log10(65535), CalculatePSNR(original, []byte{1, 1, 1, 1}, 16), 0.01)
}
