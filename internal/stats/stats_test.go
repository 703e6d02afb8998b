package stats

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestWindowCounters(t *testing.T) {
	w := NewWindow(4)
	w.Record(Sample{PTS: 0, Bytes: 100, Key: true})
	w.Record(Sample{PTS: 33, Bytes: 50})
	w.Record(Sample{PTS: 66, Bytes: 50})

	if got := w.Packets(); got != 3 {
		t.Errorf("Packets() = %d, want 3", got)
	}
	if got := w.Bytes(); got != 200 {
		t.Errorf("Bytes() = %d, want 200", got)
	}
	if got := w.Keyframes(); got != 1 {
		t.Errorf("Keyframes() = %d, want 1", got)
	}
	if got := w.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
}

func TestWindowEviction(t *testing.T) {
	w := NewWindow(2)
	w.Record(Sample{PTS: 0, Bytes: 10})
	w.Record(Sample{PTS: 100, Bytes: 10})
	w.Record(Sample{PTS: 200, Bytes: 10})

	if got := w.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
	// Totals keep counting past the window.
	if got := w.Packets(); got != 3 {
		t.Errorf("Packets() = %d, want 3", got)
	}
	// Window rate covers only the retained span of 100ms.
	if got := w.FPS(); !almostEqual(got, 10) {
		t.Errorf("FPS() = %f, want 10", got)
	}
}

func TestWindowBitRate(t *testing.T) {
	w := NewWindow(8)
	// 1000 bytes over one second: 8000 bits per second.
	w.Record(Sample{PTS: 0, Bytes: 500})
	w.Record(Sample{PTS: 1000, Bytes: 500})

	if got := w.BitRate(); !almostEqual(got, 8000) {
		t.Errorf("BitRate() = %f, want 8000", got)
	}
}

func TestWindowDegenerateSpans(t *testing.T) {
	w := NewWindow(4)
	if got := w.BitRate(); got != 0 {
		t.Errorf("empty BitRate() = %f, want 0", got)
	}
	w.Record(Sample{PTS: 0, Bytes: 100})
	if got := w.FPS(); got != 0 {
		t.Errorf("single-sample FPS() = %f, want 0", got)
	}
	// Identical timestamps cannot form a span.
	w.Record(Sample{PTS: 0, Bytes: 100})
	if got := w.BitRate(); got != 0 {
		t.Errorf("zero-span BitRate() = %f, want 0", got)
	}
}

func TestWindowMinimumSize(t *testing.T) {
	w := NewWindow(0)
	w.Record(Sample{PTS: 0, Bytes: 1})
	if got := w.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}
