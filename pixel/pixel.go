// Package pixel describes the raw picture formats the encoder core
// accepts and computes their per-plane memory layouts.
package pixel

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned for any format the layout
	// calculator does not know.
	ErrUnsupportedFormat = errors.New("unsupported pixel format")
	// ErrInvalidDimensions is returned when width or height is not
	// positive or not divisible by the format's subsampling factor.
	ErrInvalidDimensions = errors.New("invalid frame dimensions")
	// ErrInvalidStrides is returned when a stride table does not match
	// the format's plane count or contains a non-positive stride.
	ErrInvalidStrides = errors.New("invalid stride table")
)

// Format identifies a planar 4:2:0 pixel layout.
type Format int

const (
	// FormatUnknown is the zero value and never valid.
	FormatUnknown Format = iota
	// I420 is 4:2:0 planar: a full-resolution luma plane followed by
	// two quarter-resolution chroma planes.
	I420
	// NV12 is 4:2:0 semi-planar: a full-resolution luma plane followed
	// by one half-height plane of interleaved chroma pairs.
	NV12
)

// String returns the conventional name of the format.
func (f Format) String() string {
	switch f {
	case I420:
		return "i420"
	case NV12:
		return "nv12"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Planes returns the number of planes the format stores, or 0 for an
// unsupported format.
func (f Format) Planes() int {
	switch f {
	case I420:
		return 3
	case NV12:
		return 2
	default:
		return 0
	}
}

// ValidDimensions reports whether width and height are positive and
// divisible by the format's 4:2:0 subsampling factor.
func (f Format) ValidDimensions(width, height int) bool {
	if f.Planes() == 0 {
		return false
	}
	return width > 0 && height > 0 && width%2 == 0 && height%2 == 0
}

// ParseFormat maps a format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "i420", "yuv420p":
		return I420, nil
	case "nv12":
		return NV12, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}
