package video

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"multicarrier-stego/carrier"
)

// FFmpegAdapter handles compressed video containers. The first video stream
// is decoded to 4:4:4 raw frames and the stego carrier is written as FFV1 in
// Matroska, which is lossless, so the embedded bytes survive. Audio tracks
// are not carried over.
type FFmpegAdapter struct {
	binary string
}

func NewFFmpegAdapter(binary string) *FFmpegAdapter {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegAdapter{binary: binary}
}

// Available reports whether the ffmpeg binary can be run
func (a *FFmpegAdapter) Available() error {
	cmd := exec.Command(a.binary, "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg not available at %q: %w", a.binary, err)
	}
	return nil
}

func (a *FFmpegAdapter) Name() string { return "ffmpeg" }
func (a *FFmpegAdapter) Category() carrier.Category { return carrier.Video }

func (a *FFmpegAdapter) Extensions() []string {
	return []string{".mp4", ".avi", ".mov", ".mkv", ".flv", ".webm", ".wmv", ".m4v"}
}

func (a *FFmpegAdapter) Sniff(data []byte) bool {
	switch {
	case bytes.HasPrefix(data, []byte{0x1A, 0x45, 0xDF, 0xA3}): // matroska, webm
		return true
	case len(data) >= 8 && string(data[4:8]) == "ftyp": // mp4, mov, m4v
		return true
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "AVI ":
		return true
	case bytes.HasPrefix(data, []byte("FLV\x01")):
		return true
	case bytes.HasPrefix(data, []byte{0x30, 0x26, 0xB2, 0x75, 0x8E, 0x66, 0xCF, 0x11}): // asf
		return true
	}
	return false
}

// run executes ffmpeg in a scratch directory holding input under inName
func (a *FFmpegAdapter) run(input []byte, inName, outName string, args ...string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "stego_video_*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, inName)
	outPath := filepath.Join(dir, outName)
	if err := os.WriteFile(inPath, input, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write temp input: %w", err)
	}

	full := append([]string{"-v", "error", "-nostdin", "-y", "-i", inPath}, args...)
	full = append(full, outPath)

	var stderr bytes.Buffer
	cmd := exec.Command(a.binary, full...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed (ffmpeg installed?): %v: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ffmpeg output: %w", err)
	}
	return out, nil
}

func (a *FFmpegAdapter) toY4M(data []byte) (*Y4M, error) {
	out, err := a.run(data, "input", "frames.y4m",
		"-map", "0:v:0", "-pix_fmt", "yuv444p", "-f", "yuv4mpegpipe")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", carrier.ErrUnsupportedFormat, err)
	}
	return ParseY4M(out)
}

func (a *FFmpegAdapter) Decode(data []byte) (*carrier.Raw, error) {
	v, err := a.toY4M(data)
	if err != nil {
		return nil, err
	}
	return &carrier.Raw{Samples: v.samples(), Ext: ".mkv", Context: v}, nil
}

func (a *FFmpegAdapter) Encode(raw *carrier.Raw) ([]byte, error) {
	v, ok := raw.Context.(*Y4M)
	if !ok {
		return nil, fmt.Errorf("ffmpeg: raw buffer was not produced by a video adapter")
	}
	stego, err := v.withSamples(raw.Samples)
	if err != nil {
		return nil, err
	}
	return a.run(stego.Bytes(), "frames.y4m", "stego.mkv",
		"-c:v", "ffv1", "-level", "3", "-pix_fmt", "yuv444p", "-f", "matroska")
}

func (a *FFmpegAdapter) Describe(data []byte) map[string]string {
	v, err := a.toY4M(data)
	if err != nil {
		return nil
	}
	return v.describe()
}
