// Package engine defines the contract between an encoding session and
// the codec engine that performs the actual compression. The session
// configures and drives an engine; it never implements one.
package engine

import (
	"errors"

	"github.com/savid/ramenc/pixel"
)

var (
	// ErrNotReady is returned by Codec.NextPacket when the engine has
	// accepted input but has no completed packet to hand out yet. It is
	// a normal condition, not a failure.
	ErrNotReady = errors.New("engine: no packet ready")
	// ErrUnknownCodec is returned by Engine.Open when the codec name
	// does not resolve to an encoder.
	ErrUnknownCodec = errors.New("engine: unknown codec")
	// ErrCodecClosed is returned for any operation on a closed codec.
	ErrCodecClosed = errors.New("engine: codec closed")
)

// Rational is an exact num/den fraction, used for the encoder timebase.
type Rational struct {
	Num int
	Den int
}

// Hardware describes the accelerator back-end a codec must be bound to
// before it is opened. The engine owns the device handle and a frame
// pool of PoolSize concurrently live frames for the codec's lifetime.
type Hardware struct {
	// DeviceType is the engine's name for the back-end, e.g. "vaapi",
	// "cuda", "d3d11va".
	DeviceType string
	// Surface is the hardware surface pixel format name.
	Surface string
	// Device selects a physical adapter. Empty selects the back-end's
	// default device.
	Device string
	// PoolSize is the number of hardware frames to pool.
	PoolSize int
}

// Config carries everything an engine needs to open one encoder.
type Config struct {
	Name     string
	Width    int
	Height   int
	Format   pixel.Format
	Align    int
	BitRate  int64 // bits per second; 0 leaves the engine default
	TimeBase Rational
	GOP      int // 0 leaves the engine default
	Threads  int
	// Options holds codec-private and generic engine options, already
	// resolved for the codec family being opened.
	Options map[string]string
	// Hardware is nil for software encoders.
	Hardware *Hardware
}

// Packet is one unit of compressed output. Data is owned by the codec
// and valid only until the next NextPacket or Close call; Time is the
// timestamp of the source frame the packet was produced from, as
// passed to Submit.
type Packet struct {
	Data []byte
	Time int64
	Key  bool
}

// Codec is one opened encoder instance. Implementations are not safe
// for concurrent use; callers serialize all operations.
type Codec interface {
	// Strides reports the engine-chosen per-plane byte strides of the
	// working frame. Planes may be padded beyond the logical width.
	Strides() []int
	// Submit encodes one picture read from buf according to layout,
	// stamped with the caller's millisecond timestamp. The buffer is
	// only read for the duration of the call and is never mutated.
	Submit(buf []byte, layout pixel.Layout, ms int64) error
	// NextPacket fills p with the next completed packet, releasing the
	// storage of the previously returned one, or returns ErrNotReady
	// when nothing further is available right now.
	NextPacket(p *Packet) error
	// SetBitRate renegotiates the target bitrate on the open encoder.
	SetBitRate(bitrate int64) error
	// Close releases every engine resource. It is idempotent.
	Close() error
}

// Engine opens codecs by encoder name.
type Engine interface {
	Open(cfg Config) (Codec, error)
}
