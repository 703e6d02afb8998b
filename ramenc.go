// Package ramenc implements a synchronous video frame encoding
// session: raw planar pictures go in, codec-native packets come out
// through a callback, in presentation-time order. A session owns one
// codec engine instance, one CPU working frame and, for hardware
// back-ends, one device context with a single pooled hardware frame.
//
// Sessions provide no internal locking: the caller serializes all
// operations on one session. Independent sessions share nothing and
// may run concurrently.
package ramenc

import (
	"errors"
	"fmt"

	"github.com/savid/ramenc/adapters"
	"github.com/savid/ramenc/codecs"
	"github.com/savid/ramenc/engine"
	"github.com/savid/ramenc/pixel"
	"github.com/sirupsen/logrus"
)

// MinBitRate is the smallest explicit bitrate passed through to the
// engine. Configured bitrates below it leave the engine's internal
// default in place.
const MinBitRate = 1000

var (
	// ErrInvalidConfig is returned by New for an unusable configuration.
	ErrInvalidConfig = errors.New("invalid session configuration")
	// ErrSessionClosed is returned for any operation on a closed session.
	ErrSessionClosed = errors.New("session closed")
	// ErrShortBuffer is returned by Encode when the supplied buffer is
	// smaller than the session's frame layout requires.
	ErrShortBuffer = errors.New("frame buffer shorter than required layout")
	// ErrBitrateUnsupported is returned by SetBitrate for codec
	// families that cannot renegotiate bitrate on an open encoder.
	ErrBitrateUnsupported = errors.New("codec family does not support live bitrate changes")
)

// Packet is one compressed frame handed to the session callback. Data
// is valid only for the duration of the call and must be copied if
// retained. PTS is the frame's millisecond offset from the session's
// first produced packet and never decreases.
type Packet struct {
	Data []byte
	PTS  int64
	Key  bool
}

// PacketFunc receives packets synchronously from within Encode, in
// production order, which follows input timestamp order.
type PacketFunc func(Packet)

// Config describes one encoder session. It is immutable after New.
type Config struct {
	// Codec is the engine encoder name, e.g. "libx264", "h264_vaapi",
	// "h264_nvenc".
	Codec string
	// Width and Height are the frame dimensions in pixels. Both must
	// be divisible by the format's subsampling factor.
	Width  int
	Height int
	// Format is the input pixel format.
	Format pixel.Format
	// Align is the plane byte alignment; 0 selects the engine default.
	Align int
	// BitRate is the target bitrate in bits per second. Values below
	// MinBitRate leave the engine's internal default.
	BitRate int64
	// TimeBaseNum and TimeBaseDen define the encoder timebase; the
	// frame rate is its reciprocal.
	TimeBaseNum int
	TimeBaseDen int
	// GOP is the key-frame interval in frames; 0 leaves the engine
	// default.
	GOP int
	// Quality selects the family-specific quality mapping.
	Quality codecs.Quality
	// RateControl selects the family-specific rate-control mapping.
	RateControl codecs.RateControl
	// Threads is the engine thread count; 0 leaves the engine default.
	Threads int
	// GPU is the hardware adapter ordinal; negative values leave
	// selection to the adapter strategy.
	GPU int
	// OnPacket receives every produced packet. Required.
	OnPacket PacketFunc

	// Engine overrides the codec engine; nil selects the libavcodec
	// engine.
	Engine engine.Engine
	// Adapter overrides the hardware adapter selection strategy; nil
	// selects adapters.NewSystem.
	Adapter adapters.Selector
	// Logger overrides the logger; nil selects the standard logger.
	Logger *logrus.Logger
}

func (c Config) validate() error {
	if c.Codec == "" {
		return fmt.Errorf("%w: codec name required", ErrInvalidConfig)
	}
	if c.OnPacket == nil {
		return fmt.Errorf("%w: packet callback required", ErrInvalidConfig)
	}
	if c.Format.Planes() == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, pixel.ErrUnsupportedFormat)
	}
	if !c.Format.ValidDimensions(c.Width, c.Height) {
		return fmt.Errorf("%w: dimensions %dx%d invalid for %s", ErrInvalidConfig, c.Width, c.Height, c.Format)
	}
	if c.TimeBaseNum <= 0 || c.TimeBaseDen <= 0 {
		return fmt.Errorf("%w: timebase %d/%d", ErrInvalidConfig, c.TimeBaseNum, c.TimeBaseDen)
	}
	return nil
}

// baseOptions apply to every session: no frame reordering, low-delay
// output with per-stream headers, and limited-range SMPTE170M color
// parameters matching conventional conferencing pipelines.
func baseOptions() map[string]string {
	return map[string]string{
		"bf":              "0",
		"flags":           "+low_delay",
		"flags2":          "+local_header",
		"color_range":     "tv",
		"colorspace":      "smpte170m",
		"color_primaries": "smpte170m",
		"color_trc":       "smpte170m",
	}
}
