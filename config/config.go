// Package config loads service configuration from an optional YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	MP3ModePCM       = "pcm"
	MP3ModeAncillary = "ancillary"
)

type Config struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// default bits per sample when a request does not say
	LSBBits     int `yaml:"lsb_bits"`
	MaxUploadMB int `yaml:"max_upload_mb"`

	// pcm re-emits MP3 carriers as WAV, ancillary keeps MP3 and embeds in
	// the frame ancillary bytes
	MP3Mode string `yaml:"mp3_mode"`
	FFmpeg  string `yaml:"ffmpeg"`

	// stego carriers below this PSNR are logged as a warning
	MinPSNR float64 `yaml:"min_psnr"`
}

func Default() *Config {
	return &Config{
		Port:           "8080",
		AllowedOrigins: []string{"http://localhost:3000"},
		LSBBits:        1,
		MaxUploadMB:    64,
		MP3Mode:        MP3ModePCM,
		FFmpeg:         "ffmpeg",
		MinPSNR:        30,
	}
}

// Load reads path (if not empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		c.Port = v
	}
	if v, ok := lookup("STEGO_ALLOWED_ORIGINS"); ok && v != "" {
		c.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, origin)
			}
		}
	}
	if v, ok := lookup("STEGO_LSB_BITS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("STEGO_LSB_BITS: %w", err)
		}
		c.LSBBits = n
	}
	if v, ok := lookup("STEGO_MAX_UPLOAD_MB"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("STEGO_MAX_UPLOAD_MB: %w", err)
		}
		c.MaxUploadMB = n
	}
	if v, ok := lookup("STEGO_MP3_MODE"); ok && v != "" {
		c.MP3Mode = strings.ToLower(v)
	}
	if v, ok := lookup("STEGO_FFMPEG"); ok && v != "" {
		c.FFmpeg = v
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.LSBBits < 1 || c.LSBBits > 8 {
		errs = append(errs, fmt.Errorf("lsb_bits must be between 1 and 8, got %d", c.LSBBits))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_mb must be positive, got %d", c.MaxUploadMB))
	}
	if c.MP3Mode != MP3ModePCM && c.MP3Mode != MP3ModeAncillary {
		errs = append(errs, fmt.Errorf("mp3_mode must be %q or %q, got %q", MP3ModePCM, MP3ModeAncillary, c.MP3Mode))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// MaxUploadBytes is the multipart memory limit
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
