// Package config provides configuration management for the encbench tool.
package config

import (
	"errors"
	"flag"
	"fmt"

	"github.com/savid/ramenc/codecs"
	"github.com/savid/ramenc/pixel"
)

var (
	// ErrCodecRequired is returned when no encoder name is provided.
	ErrCodecRequired = errors.New("codec name is required")
	// ErrInvalidDimensions is returned when width or height is unusable.
	ErrInvalidDimensions = errors.New("invalid frame dimensions")
	// ErrInvalidFormat is returned when the pixel format is unknown.
	ErrInvalidFormat = errors.New("invalid pixel format")
	// ErrInvalidFPS is returned when the frame rate is not positive.
	ErrInvalidFPS = errors.New("frame rate must be positive")
	// ErrInvalidFrames is returned when the frame count is not positive.
	ErrInvalidFrames = errors.New("frame count must be positive")
	// ErrInvalidQuality is returned when the quality name is unknown.
	ErrInvalidQuality = errors.New("invalid quality")
	// ErrInvalidRateControl is returned when the rate-control name is unknown.
	ErrInvalidRateControl = errors.New("invalid rate control")
	// ErrInvalidLogLevel is returned when log level is invalid.
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// Config holds the benchmark configuration.
type Config struct {
	Codec       string
	Width       int
	Height      int
	Format      string
	Align       int
	BitRate     int64
	FPS         int
	GOP         int
	Quality     string
	RateControl string
	Threads     int
	GPU         int
	Frames      int
	LogLevel    string
}

// New creates a new configuration instance by parsing command-line flags.
func New() (*Config, error) {
	cfg := &Config{}

	flag.StringVar(&cfg.Codec, "codec", "", "Encoder name, e.g. libx264, h264_vaapi, h264_nvenc (required)")
	flag.IntVar(&cfg.Width, "width", 1280, "Frame width in pixels")
	flag.IntVar(&cfg.Height, "height", 720, "Frame height in pixels")
	flag.StringVar(&cfg.Format, "format", "i420", "Input pixel format (i420, nv12)")
	flag.IntVar(&cfg.Align, "align", 0, "Plane byte alignment (0 = engine default)")
	flag.Int64Var(&cfg.BitRate, "bitrate", 2_000_000, "Target bitrate in bits per second")
	flag.IntVar(&cfg.FPS, "fps", 30, "Frame rate")
	flag.IntVar(&cfg.GOP, "gop", 0, "Key-frame interval in frames (0 = engine default)")
	flag.StringVar(&cfg.Quality, "quality", "default", "Quality level (default, low, medium, high)")
	flag.StringVar(&cfg.RateControl, "rate-control", "default", "Rate control (default, cbr, vbr)")
	flag.IntVar(&cfg.Threads, "threads", 0, "Encoder thread count (0 = engine default)")
	flag.IntVar(&cfg.GPU, "gpu", -1, "Hardware adapter ordinal (-1 = automatic)")
	flag.IntVar(&cfg.Frames, "frames", 300, "Number of synthetic frames to encode")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	flag.Parse()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Codec == "" {
		return ErrCodecRequired
	}

	format, err := c.PixelFormat()
	if err != nil {
		return err
	}

	if !format.ValidDimensions(c.Width, c.Height) {
		return fmt.Errorf("%w: %dx%d for %s", ErrInvalidDimensions, c.Width, c.Height, format)
	}

	if c.FPS <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidFPS, c.FPS)
	}

	if c.Frames <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidFrames, c.Frames)
	}

	if _, err := c.QualityLevel(); err != nil {
		return err
	}

	if _, err := c.RateControlPolicy(); err != nil {
		return err
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("%w: %s (must be debug, info, warn, or error)", ErrInvalidLogLevel, c.LogLevel)
	}

	return nil
}

// PixelFormat resolves the configured pixel format name.
func (c *Config) PixelFormat() (pixel.Format, error) {
	format, err := pixel.ParseFormat(c.Format)
	if err != nil {
		return pixel.FormatUnknown, fmt.Errorf("%w: %s", ErrInvalidFormat, c.Format)
	}
	return format, nil
}

// QualityLevel resolves the configured quality name.
func (c *Config) QualityLevel() (codecs.Quality, error) {
	switch c.Quality {
	case "default", "":
		return codecs.QualityDefault, nil
	case "low":
		return codecs.QualityLow, nil
	case "medium":
		return codecs.QualityMedium, nil
	case "high":
		return codecs.QualityHigh, nil
	default:
		return codecs.QualityDefault, fmt.Errorf("%w: %s (must be default, low, medium, or high)", ErrInvalidQuality, c.Quality)
	}
}

// RateControlPolicy resolves the configured rate-control name.
func (c *Config) RateControlPolicy() (codecs.RateControl, error) {
	switch c.RateControl {
	case "default", "":
		return codecs.RateControlDefault, nil
	case "cbr":
		return codecs.RateControlCBR, nil
	case "vbr":
		return codecs.RateControlVBR, nil
	default:
		return codecs.RateControlDefault, fmt.Errorf("%w: %s (must be default, cbr, or vbr)", ErrInvalidRateControl, c.RateControl)
	}
}
