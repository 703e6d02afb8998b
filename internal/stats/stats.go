// Package stats accumulates rolling encode statistics over a fixed
// window of produced packets.
package stats

// Sample records one produced packet.
type Sample struct {
	PTS   int64 // milliseconds since the first packet
	Bytes int
	Key   bool
}

// Window is a circular window over the most recent packets. It is not
// safe for concurrent use; callers feed it from the same goroutine
// that drives the encoder session.
type Window struct {
	samples  []Sample
	size     int
	writePos int
	filled   bool

	packets   int64
	bytes     int64
	keyframes int64
}

// NewWindow creates a window retaining the last size packets.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = 1
	}
	return &Window{
		samples: make([]Sample, size),
		size:    size,
	}
}

// Record adds one packet sample, evicting the oldest when the window
// is full.
func (w *Window) Record(s Sample) {
	w.samples[w.writePos] = s
	w.writePos = (w.writePos + 1) % w.size
	if w.writePos == 0 {
		w.filled = true
	}

	w.packets++
	w.bytes += int64(s.Bytes)
	if s.Key {
		w.keyframes++
	}
}

// Len returns the number of samples currently in the window.
func (w *Window) Len() int {
	if w.filled {
		return w.size
	}
	return w.writePos
}

// Packets returns the total packet count since the window was created.
func (w *Window) Packets() int64 { return w.packets }

// Bytes returns the total payload bytes since the window was created.
func (w *Window) Bytes() int64 { return w.bytes }

// Keyframes returns the total key-frame count since the window was
// created.
func (w *Window) Keyframes() int64 { return w.keyframes }

// span returns the oldest and newest samples in the window.
func (w *Window) span() (oldest, newest Sample, ok bool) {
	n := w.Len()
	if n < 2 {
		return Sample{}, Sample{}, false
	}
	start := 0
	if w.filled {
		start = w.writePos
	}
	oldest = w.samples[start]
	newest = w.samples[(start+n-1)%w.size]
	return oldest, newest, true
}

// BitRate returns the bitrate in bits per second across the window, or
// 0 when fewer than two packets span it.
func (w *Window) BitRate() float64 {
	oldest, newest, ok := w.span()
	if !ok || newest.PTS <= oldest.PTS {
		return 0
	}
	var bits int64
	n := w.Len()
	start := 0
	if w.filled {
		start = w.writePos
	}
	for i := 0; i < n; i++ {
		bits += int64(w.samples[(start+i)%w.size].Bytes) * 8
	}
	return float64(bits) / (float64(newest.PTS-oldest.PTS) / 1000.0)
}

// FPS returns the packet rate per second across the window, or 0 when
// fewer than two packets span it.
func (w *Window) FPS() float64 {
	oldest, newest, ok := w.span()
	if !ok || newest.PTS <= oldest.PTS {
		return 0
	}
	return float64(w.Len()-1) / (float64(newest.PTS-oldest.PTS) / 1000.0)
}
