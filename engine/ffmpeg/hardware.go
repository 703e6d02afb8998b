package ffmpeg

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/savid/ramenc/engine"
)

// hardwareContext owns the device handle and frame pool of one
// hardware-backed codec. It is never shared across codecs.
type hardwareContext struct {
	device *astiav.HardwareDeviceContext
	frames *astiav.HardwareFramesContext
}

func (h *hardwareContext) free() {
	if h.frames != nil {
		h.frames.Free()
		h.frames = nil
	}
	if h.device != nil {
		h.device.Free()
		h.device = nil
	}
}

// bindHardware opens the device, allocates the frame pool, binds it to
// the codec context and acquires the session's one hardware frame. The
// pool must be bound before the codec context is opened, since the
// encoder configures its pipeline from the frames context. A failure at
// any step leaves nothing allocated: the surrounding Open unwinds the
// partial codec through Close.
func (c *codec) bindHardware(cfg engine.Config, swFormat astiav.PixelFormat) error {
	hw := cfg.Hardware

	deviceType := astiav.FindHardwareDeviceTypeByName(hw.DeviceType)
	if deviceType == astiav.HardwareDeviceTypeNone {
		return fmt.Errorf("ffmpeg: unknown hardware device type %q", hw.DeviceType)
	}
	surface, err := surfaceFormat(hw.Surface)
	if err != nil {
		return err
	}

	device, err := astiav.CreateHardwareDeviceContext(deviceType, hw.Device, nil, 0)
	if err != nil {
		return fmt.Errorf("ffmpeg: create %s device %q: %w", hw.DeviceType, hw.Device, err)
	}
	c.hw = &hardwareContext{device: device}

	frames := astiav.AllocHardwareFramesContext(device)
	if frames == nil {
		return errors.New("ffmpeg: alloc hardware frames context failed")
	}
	c.hw.frames = frames

	frames.SetHardwarePixelFormat(surface)
	frames.SetSoftwarePixelFormat(swFormat)
	frames.SetWidth(cfg.Width)
	frames.SetHeight(cfg.Height)
	frames.SetInitialPoolSize(hw.PoolSize)
	if err := frames.Initialize(); err != nil {
		return fmt.Errorf("ffmpeg: initialize hardware frame pool: %w", err)
	}

	c.cc.SetHardwareFramesContext(frames)

	c.hwFrame = astiav.AllocFrame()
	if c.hwFrame == nil {
		return errors.New("ffmpeg: alloc hardware frame failed")
	}
	if err := c.hwFrame.AllocHardwareBuffer(frames); err != nil {
		return fmt.Errorf("ffmpeg: acquire hardware frame: %w", err)
	}
	return nil
}
