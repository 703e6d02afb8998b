// Package ffmpeg implements the engine contract on top of libavcodec
// through the go-astiav bindings.
package ffmpeg

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/savid/ramenc/engine"
	"github.com/savid/ramenc/pixel"
)

// Engine opens libavcodec encoders.
type Engine struct{}

// New creates the libavcodec engine.
func New() *Engine { return &Engine{} }

// Open implements engine.Engine. Allocation follows a strict order:
// hardware device and frame pool are bound to the codec context before
// it is opened, and any failure unwinds everything allocated so far.
func (Engine) Open(cfg engine.Config) (engine.Codec, error) {
	enc := astiav.FindEncoderByName(cfg.Name)
	if enc == nil {
		return nil, fmt.Errorf("%w: %s", engine.ErrUnknownCodec, cfg.Name)
	}

	cc := astiav.AllocCodecContext(enc)
	if cc == nil {
		return nil, errors.New("ffmpeg: alloc codec context failed")
	}

	align := cfg.Align
	if align <= 0 {
		align = pixel.DefaultAlign
	}
	c := &codec{cc: cc, align: align}
	ok := false
	defer func() {
		if !ok {
			_ = c.Close()
		}
	}()

	swFormat, err := pixelFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	if cfg.Hardware != nil {
		if err := c.bindHardware(cfg, swFormat); err != nil {
			return nil, err
		}
	}

	c.frame = astiav.AllocFrame()
	if c.frame == nil {
		return nil, errors.New("ffmpeg: alloc frame failed")
	}
	c.frame.SetWidth(cfg.Width)
	c.frame.SetHeight(cfg.Height)
	c.frame.SetPixelFormat(swFormat)
	if err := c.frame.AllocBuffer(align); err != nil {
		return nil, fmt.Errorf("ffmpeg: alloc frame buffer: %w", err)
	}

	c.pkt = astiav.AllocPacket()
	if c.pkt == nil {
		return nil, errors.New("ffmpeg: alloc packet failed")
	}

	cc.SetWidth(cfg.Width)
	cc.SetHeight(cfg.Height)
	if c.hw != nil {
		surface, err := surfaceFormat(cfg.Hardware.Surface)
		if err != nil {
			return nil, err
		}
		cc.SetPixelFormat(surface)
	} else {
		cc.SetPixelFormat(swFormat)
	}
	cc.SetTimeBase(astiav.NewRational(cfg.TimeBase.Num, cfg.TimeBase.Den))
	cc.SetFramerate(astiav.NewRational(cfg.TimeBase.Den, cfg.TimeBase.Num))
	if cfg.GOP > 0 {
		cc.SetGopSize(cfg.GOP)
	}
	if cfg.BitRate > 0 {
		cc.SetBitRate(cfg.BitRate)
	}
	if cfg.Threads > 0 {
		cc.SetThreadCount(cfg.Threads)
	}

	opts := astiav.NewDictionary()
	defer opts.Free()
	for k, v := range cfg.Options {
		if err := opts.Set(k, v, astiav.NewDictionaryFlags()); err != nil {
			return nil, fmt.Errorf("ffmpeg: set option %s=%s: %w", k, v, err)
		}
	}

	if err := cc.Open(enc, opts); err != nil {
		return nil, fmt.Errorf("ffmpeg: open %s: %w", cfg.Name, err)
	}

	ls := c.frame.Linesize()
	c.strides = make([]int, cfg.Format.Planes())
	copy(c.strides, ls[:len(c.strides)])

	ok = true
	return c, nil
}

// codec is one opened libavcodec encoder and its owned frames.
type codec struct {
	cc      *astiav.CodecContext
	frame   *astiav.Frame // CPU working frame
	hwFrame *astiav.Frame // pooled hardware frame, nil on the software path
	hw      *hardwareContext
	pkt     *astiav.Packet
	strides []int
	align   int
	closed  bool
}

// Strides implements engine.Codec.
func (c *codec) Strides() []int { return c.strides }

// Submit implements engine.Codec.
func (c *codec) Submit(buf []byte, layout pixel.Layout, ms int64) error {
	if c.closed {
		return engine.ErrCodecClosed
	}

	// The encoder may still hold references to the previous backing
	// store; it must be given a fresh one rather than mutate it.
	if err := c.frame.MakeWritable(); err != nil {
		return fmt.Errorf("ffmpeg: make frame writable: %w", err)
	}
	if err := c.frame.Data().SetBytes(buf[:layout.Length], c.align); err != nil {
		return fmt.Errorf("ffmpeg: fill frame: %w", err)
	}
	c.frame.SetPts(ms)

	target := c.frame
	if c.hwFrame != nil {
		if err := c.frame.TransferHardwareData(c.hwFrame); err != nil {
			return fmt.Errorf("ffmpeg: hardware upload: %w", err)
		}
		c.hwFrame.SetPts(ms)
		target = c.hwFrame
	}

	if err := c.cc.SendFrame(target); err != nil {
		return fmt.Errorf("ffmpeg: send frame: %w", err)
	}
	return nil
}

// NextPacket implements engine.Codec. The previously returned packet's
// storage is released before the next one is pulled.
func (c *codec) NextPacket(p *engine.Packet) error {
	if c.closed {
		return engine.ErrCodecClosed
	}
	c.pkt.Unref()
	if err := c.cc.ReceivePacket(c.pkt); err != nil {
		if errors.Is(err, astiav.ErrEagain) {
			return engine.ErrNotReady
		}
		return fmt.Errorf("ffmpeg: receive packet: %w", err)
	}
	p.Data = c.pkt.Data()
	p.Time = c.pkt.Pts()
	p.Key = c.pkt.Flags().Has(astiav.PacketFlagKey)
	return nil
}

// SetBitRate implements engine.Codec.
func (c *codec) SetBitRate(bitrate int64) error {
	if c.closed {
		return engine.ErrCodecClosed
	}
	c.cc.SetBitRate(bitrate)
	return nil
}

// Close implements engine.Codec. Resources are released in reverse
// acquisition order; calling it twice is safe.
func (c *codec) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.pkt != nil {
		c.pkt.Free()
		c.pkt = nil
	}
	if c.frame != nil {
		c.frame.Free()
		c.frame = nil
	}
	if c.hwFrame != nil {
		c.hwFrame.Free()
		c.hwFrame = nil
	}
	if c.hw != nil {
		c.hw.free()
		c.hw = nil
	}
	if c.cc != nil {
		c.cc.Free()
		c.cc = nil
	}
	return nil
}

// pixelFormat maps a core format onto the engine's software format.
func pixelFormat(f pixel.Format) (astiav.PixelFormat, error) {
	switch f {
	case pixel.I420:
		return astiav.PixelFormatYuv420P, nil
	case pixel.NV12:
		return astiav.PixelFormatNv12, nil
	default:
		return astiav.PixelFormatNone, fmt.Errorf("%w: %s", pixel.ErrUnsupportedFormat, f)
	}
}

// surfaceFormat resolves a hardware surface format by name.
func surfaceFormat(name string) (astiav.PixelFormat, error) {
	pf := astiav.FindPixelFormatByName(name)
	if pf == astiav.PixelFormatNone {
		return astiav.PixelFormatNone, fmt.Errorf("ffmpeg: unknown surface format %q", name)
	}
	return pf, nil
}
