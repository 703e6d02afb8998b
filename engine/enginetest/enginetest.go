// Package enginetest provides a deterministic in-memory codec engine
// for exercising session logic without a codec library.
package enginetest

import (
	"fmt"

	"github.com/savid/ramenc/engine"
	"github.com/savid/ramenc/pixel"
)

// Engine is a scripted engine.Engine. The zero value opens codecs that
// produce one packet per submitted frame with no buffering delay.
type Engine struct {
	// OpenErr, when set, is returned by Open.
	OpenErr error
	// Delay is how many frames the codec buffers before producing its
	// first packet. Buffered frames drain in submission order.
	Delay int
	// KeyInterval marks every n-th packet as a key-frame. The first
	// packet is always a key-frame regardless.
	KeyInterval int
	// LiveBitrate reports whether SetBitRate succeeds.
	LiveBitrate bool
	// SubmitErr, when set, is returned by every Submit.
	SubmitErr error
	// ReceiveErr, when set, is returned by NextPacket once a packet
	// would otherwise be available.
	ReceiveErr error

	// LastConfig records the Config most recently passed to Open.
	LastConfig engine.Config
	// Codec is the most recently opened codec.
	Codec *Codec
}

// Open records cfg and returns a scripted codec.
func (e *Engine) Open(cfg engine.Config) (engine.Codec, error) {
	if e.OpenErr != nil {
		return nil, e.OpenErr
	}
	e.LastConfig = cfg
	strides, err := pixel.Strides(cfg.Format, cfg.Width, cfg.Align)
	if err != nil {
		return nil, err
	}
	layout, err := pixel.LayoutFor(cfg.Format, cfg.Height, strides)
	if err != nil {
		return nil, err
	}
	e.Codec = &Codec{eng: e, strides: strides, minLen: layout.Length}
	return e.Codec, nil
}

// Codec is the scripted codec opened by Engine.
type Codec struct {
	eng     *Engine
	strides []int
	minLen  int

	pending  []int64 // timestamps of frames buffered inside the codec
	ready    []engine.Packet
	produced int
	payload  []byte // reused packet storage, mirrors engine ownership

	// Bitrates records every successful SetBitRate call.
	Bitrates []int64
	// Submitted counts frames accepted by Submit.
	Submitted int
	// Closed counts Close calls.
	Closed int
}

// Strides implements engine.Codec.
func (c *Codec) Strides() []int { return c.strides }

// Submit implements engine.Codec. Once more than Delay frames have been
// buffered, each submission moves the oldest buffered frame to the
// ready queue, so packet timestamps propagate in submission order.
func (c *Codec) Submit(buf []byte, layout pixel.Layout, ms int64) error {
	if c.Closed > 0 {
		return engine.ErrCodecClosed
	}
	if c.eng.SubmitErr != nil {
		return c.eng.SubmitErr
	}
	if len(buf) < layout.Length {
		return fmt.Errorf("enginetest: buffer %d shorter than layout %d", len(buf), layout.Length)
	}
	c.Submitted++
	c.pending = append(c.pending, ms)
	for len(c.pending) > c.eng.Delay {
		ts := c.pending[0]
		c.pending = c.pending[1:]
		c.ready = append(c.ready, engine.Packet{Time: ts, Key: c.isKey(c.produced)})
		c.produced++
	}
	return nil
}

func (c *Codec) isKey(index int) bool {
	if index == 0 {
		return true
	}
	return c.eng.KeyInterval > 0 && index%c.eng.KeyInterval == 0
}

// NextPacket implements engine.Codec. The payload handed out is a small
// synthetic bitstream reused across calls, mirroring the real engine's
// ownership contract: it is only valid until the next call.
func (c *Codec) NextPacket(p *engine.Packet) error {
	if c.Closed > 0 {
		return engine.ErrCodecClosed
	}
	if len(c.ready) == 0 {
		return engine.ErrNotReady
	}
	if c.eng.ReceiveErr != nil {
		return c.eng.ReceiveErr
	}
	next := c.ready[0]
	c.ready = c.ready[1:]

	c.payload = c.payload[:0]
	c.payload = append(c.payload, byte(next.Time), byte(next.Time>>8), byte(next.Time>>16), byte(next.Time>>24))
	if next.Key {
		c.payload = append(c.payload, 'K')
	}

	p.Data = c.payload
	p.Time = next.Time
	p.Key = next.Key
	return nil
}

// SetBitRate implements engine.Codec.
func (c *Codec) SetBitRate(bitrate int64) error {
	if c.Closed > 0 {
		return engine.ErrCodecClosed
	}
	if !c.eng.LiveBitrate {
		return fmt.Errorf("enginetest: bitrate renegotiation not supported")
	}
	c.Bitrates = append(c.Bitrates, bitrate)
	return nil
}

// Close implements engine.Codec.
func (c *Codec) Close() error {
	c.Closed++
	c.pending = nil
	c.ready = nil
	return nil
}
