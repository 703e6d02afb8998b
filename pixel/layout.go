package pixel

import "fmt"

// DefaultAlign is the plane alignment used when a caller passes a
// non-positive alignment. It matches the default chosen by common
// codec engines for CPU-resident frames.
const DefaultAlign = 32

// Layout describes how the planes of one frame map into a single
// contiguous buffer. Offsets[i] is the byte offset of plane i, with
// Offsets[0] always 0; offsets increase monotonically and each plane
// ends where the next begins, so the last plane ends at Length.
type Layout struct {
	Strides []int
	Offsets []int
	Length  int
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

// Strides returns the per-plane byte strides a frame of the given
// format and width would use at the requested alignment. Planes may be
// padded beyond the logical width. A non-positive align selects
// DefaultAlign.
func Strides(f Format, width, align int) ([]int, error) {
	if align <= 0 {
		align = DefaultAlign
	}
	if width <= 0 || width%2 != 0 {
		return nil, fmt.Errorf("%w: width %d", ErrInvalidDimensions, width)
	}
	switch f {
	case I420:
		luma := alignUp(width, align)
		chroma := alignUp(width/2, align)
		return []int{luma, chroma, chroma}, nil
	case NV12:
		luma := alignUp(width, align)
		return []int{luma, luma}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}

// LayoutFor derives the plane offsets and total buffer length for a
// frame of the given format and height from an engine-chosen stride
// table. It is the layout a live session reports, where strides come
// from the engine's own frame allocation.
func LayoutFor(f Format, height int, strides []int) (Layout, error) {
	if height <= 0 || height%2 != 0 {
		return Layout{}, fmt.Errorf("%w: height %d", ErrInvalidDimensions, height)
	}
	planes := f.Planes()
	if planes == 0 {
		return Layout{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
	if len(strides) < planes {
		return Layout{}, fmt.Errorf("%w: %d strides for %d planes", ErrInvalidStrides, len(strides), planes)
	}
	for i := 0; i < planes; i++ {
		if strides[i] <= 0 {
			return Layout{}, fmt.Errorf("%w: plane %d stride %d", ErrInvalidStrides, i, strides[i])
		}
	}

	l := Layout{
		Strides: make([]int, planes),
		Offsets: make([]int, planes),
	}
	copy(l.Strides, strides[:planes])

	switch f {
	case I420:
		l.Offsets[1] = l.Strides[0] * height
		l.Offsets[2] = l.Offsets[1] + l.Strides[1]*height/2
		l.Length = l.Offsets[2] + l.Strides[2]*height/2
	case NV12:
		l.Offsets[1] = l.Strides[0] * height
		l.Length = l.Offsets[1] + l.Strides[1]*height/2
	}
	return l, nil
}

// ComputeLayout computes the full frame layout for a format, size and
// alignment without a live session, so callers can size upload buffers
// before creating one. The strides a session actually requires may
// differ when the engine picks extra padding; use the layout returned
// at session creation for live submissions.
func ComputeLayout(f Format, width, height, align int) (Layout, error) {
	if !f.ValidDimensions(width, height) {
		if f.Planes() == 0 {
			return Layout{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
		}
		return Layout{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	strides, err := Strides(f, width, align)
	if err != nil {
		return Layout{}, err
	}
	return LayoutFor(f, height, strides)
}
