package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, int64(64<<20), cfg.MaxUploadBytes())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stego.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9090"
lsb_bits: 3
mp3_mode: ancillary
allowed_origins:
  - https://a.example
  - https://b.example
`), 0o644))

	t.Setenv("PORT", "")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 3, cfg.LSBBits)
	assert.Equal(t, MP3ModeAncillary, cfg.MP3Mode)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	// untouched keys keep their defaults
	assert.Equal(t, 64, cfg.MaxUploadMB)
	assert.Equal(t, "ffmpeg", cfg.FFmpeg)
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"PORT":                  "7000",
		"STEGO_ALLOWED_ORIGINS": "https://x.example, https://y.example,",
		"STEGO_LSB_BITS":        "2",
		"STEGO_MAX_UPLOAD_MB":   "8",
		"STEGO_MP3_MODE":        "ANCILLARY",
		"STEGO_FFMPEG":          "/opt/ffmpeg",
	}
	cfg := Default()
	require.NoError(t, cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))

	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, []string{"https://x.example", "https://y.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 2, cfg.LSBBits)
	assert.Equal(t, 8, cfg.MaxUploadMB)
	assert.Equal(t, MP3ModeAncillary, cfg.MP3Mode)
	assert.Equal(t, "/opt/ffmpeg", cfg.FFmpeg)
	require.NoError(t, cfg.Validate())
}

func TestEnvBadNumber(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		if k == "STEGO_LSB_BITS" {
			return "many", true
		}
		return "", false
	})
	assert.ErrorContains(t, err, "STEGO_LSB_BITS")
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"lsb bits too low":  func(c *Config) { c.LSBBits = 0 },
		"lsb bits too high": func(c *Config) { c.LSBBits = 9 },
		"no port":           func(c *Config) { c.Port = "" },
		"bad mp3 mode":      func(c *Config) { c.MP3Mode = "lame" },
		"no upload room":    func(c *Config) { c.MaxUploadMB = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lsb_bits: [1, 2"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
