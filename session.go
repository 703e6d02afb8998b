package ramenc

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/savid/ramenc/adapters"
	"github.com/savid/ramenc/codecs"
	"github.com/savid/ramenc/engine"
	"github.com/savid/ramenc/engine/ffmpeg"
	"github.com/savid/ramenc/pixel"
	"github.com/sirupsen/logrus"
)

type sessionState int

const (
	stateInitialized sessionState = iota
	stateEncoding
	stateClosed
)

// Session is one live encoder. All methods must be called from a
// single goroutine; see the package documentation.
type Session struct {
	id       string
	cfg      Config
	family   codecs.Descriptor
	codec    engine.Codec
	layout   pixel.Layout
	log      *logrus.Entry
	pkt      engine.Packet
	firstMS  int64
	anchored bool
	state    sessionState
}

// New opens an encoder session. On any failure everything allocated so
// far is released before the error is returned; a failed New leaves no
// partial session behind.
func New(cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	family := codecs.Detect(cfg.Codec)

	opts := baseOptions()
	for k, v := range family.Options(cfg.Quality, cfg.RateControl, cfg.GPU) {
		opts[k] = v
	}

	var bitrate int64
	if cfg.BitRate >= MinBitRate {
		bitrate = cfg.BitRate
		if family.MirrorMaxRate {
			opts["maxrate"] = strconv.FormatInt(bitrate, 10)
		}
	}

	var hw *engine.Hardware
	if family.Hardware != nil {
		selector := cfg.Adapter
		if selector == nil {
			selector = adapters.NewSystem(logger)
		}
		hw = &engine.Hardware{
			DeviceType: family.Hardware.DeviceType,
			Surface:    family.Hardware.Surface,
			Device:     selector.Select(family.Hardware.DeviceType, family.Hardware.Vendor, cfg.GPU),
			PoolSize:   1,
		}
	}

	eng := cfg.Engine
	if eng == nil {
		eng = ffmpeg.New()
	}

	codec, err := eng.Open(engine.Config{
		Name:     cfg.Codec,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Format:   cfg.Format,
		Align:    cfg.Align,
		BitRate:  bitrate,
		TimeBase: engine.Rational{Num: cfg.TimeBaseNum, Den: cfg.TimeBaseDen},
		GOP:      cfg.GOP,
		Threads:  cfg.Threads,
		Options:  opts,
		Hardware: hw,
	})
	if err != nil {
		logger.WithError(err).WithField("codec", cfg.Codec).Error("Failed to open encoder")
		return nil, fmt.Errorf("open encoder %s: %w", cfg.Codec, err)
	}

	layout, err := pixel.LayoutFor(cfg.Format, cfg.Height, codec.Strides())
	if err != nil {
		_ = codec.Close()
		return nil, fmt.Errorf("derive frame layout: %w", err)
	}

	s := &Session{
		id:     uuid.NewString(),
		cfg:    cfg,
		family: family,
		codec:  codec,
		layout: layout,
	}
	s.log = logger.WithFields(logrus.Fields{
		"session": s.id,
		"codec":   cfg.Codec,
		"family":  family.Name,
		"size":    fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
	})
	s.log.Debug("Encoder session opened")
	return s, nil
}

// ID returns the session's identifier, as used in its log fields.
func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Layout returns the frame layout the session requires for Encode.
// Strides come from the engine's own frame allocation and may exceed a
// caller's pre-session layout guess.
func (s *Session) Layout() pixel.Layout {
	if s == nil {
		return pixel.Layout{}
	}
	l := pixel.Layout{
		Strides: make([]int, len(s.layout.Strides)),
		Offsets: make([]int, len(s.layout.Offsets)),
		Length:  s.layout.Length,
	}
	copy(l.Strides, s.layout.Strides)
	copy(l.Offsets, s.layout.Offsets)
	return l
}

// Encode submits one frame read from buf at the caller's millisecond
// timestamp and drains every packet the engine has ready, invoking the
// callback once per packet before pulling the next. Zero callbacks is
// a valid, successful outcome while the engine is still buffering. A
// failed Encode leaves the session usable for subsequent frames.
func (s *Session) Encode(buf []byte, ms int64) error {
	if s == nil || s.state == stateClosed {
		return ErrSessionClosed
	}
	if len(buf) < s.layout.Length {
		return fmt.Errorf("%w: have %d, need %d", ErrShortBuffer, len(buf), s.layout.Length)
	}
	s.state = stateEncoding

	if err := s.codec.Submit(buf, s.layout, ms); err != nil {
		s.log.WithError(err).WithField("ms", ms).Error("Frame submission failed")
		return fmt.Errorf("submit frame: %w", err)
	}
	return s.drain()
}

// drain pulls completed packets until the engine reports that nothing
// further is ready, which is a normal condition distinct from failure.
func (s *Session) drain() error {
	for {
		err := s.codec.NextPacket(&s.pkt)
		if errors.Is(err, engine.ErrNotReady) {
			return nil
		}
		if err != nil {
			s.log.WithError(err).Error("Packet drain failed")
			return fmt.Errorf("receive packet: %w", err)
		}
		if !s.anchored {
			s.firstMS = s.pkt.Time
			s.anchored = true
		}
		s.cfg.OnPacket(Packet{
			Data: s.pkt.Data,
			PTS:  s.pkt.Time - s.firstMS,
			Key:  s.pkt.Key,
		})
	}
}

// SetBitrate renegotiates the target bitrate on the open encoder. Only
// codec families with live bitrate support accept it; for all others
// the session state is left untouched.
func (s *Session) SetBitrate(bitrate int64) error {
	if s == nil || s.state == stateClosed {
		return ErrSessionClosed
	}
	if !s.family.LiveBitrate {
		return fmt.Errorf("%w: %s", ErrBitrateUnsupported, s.family.Name)
	}
	if err := s.codec.SetBitRate(bitrate); err != nil {
		return fmt.Errorf("set bitrate: %w", err)
	}
	s.log.WithField("bitrate", bitrate).Debug("Bitrate updated")
	return nil
}

// Close releases the session's engine resources in reverse acquisition
// order. It is idempotent and safe on a nil session; any operation
// after Close reports ErrSessionClosed rather than crashing.
func (s *Session) Close() error {
	if s == nil || s.state == stateClosed {
		return nil
	}
	s.state = stateClosed
	err := s.codec.Close()
	s.log.Debug("Encoder session closed")
	if err != nil {
		return fmt.Errorf("close encoder: %w", err)
	}
	return nil
}
