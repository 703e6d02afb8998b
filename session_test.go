package ramenc

import (
	"errors"
	"io"
	"testing"

	"github.com/savid/ramenc/adapters"
	"github.com/savid/ramenc/codecs"
	"github.com/savid/ramenc/engine"
	"github.com/savid/ramenc/engine/enginetest"
	"github.com/savid/ramenc/pixel"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testConfig(eng engine.Engine, onPacket PacketFunc) Config {
	return Config{
		Codec:       "libx264",
		Width:       64,
		Height:      64,
		Format:      pixel.I420,
		Align:       32,
		TimeBaseNum: 1,
		TimeBaseDen: 30,
		GOP:         30,
		OnPacket:    onPacket,
		Engine:      eng,
		Adapter:     adapters.Fixed(""),
		Logger:      testLogger(),
	}
}

func frameBuffer(t *testing.T, s *Session) []byte {
	t.Helper()
	return make([]byte, s.Layout().Length)
}

func TestSessionTimestampOrdering(t *testing.T) {
	eng := &enginetest.Engine{}
	var got []Packet
	s, err := New(testConfig(eng, func(p Packet) { got = append(got, p) }))
	require.NoError(t, err)
	defer s.Close()

	buf := frameBuffer(t, s)
	for _, ms := range []int64{100, 133, 166} {
		require.NoError(t, s.Encode(buf, ms))
	}

	require.Len(t, got, 3)
	assert.Equal(t, int64(0), got[0].PTS, "first packet anchors the timeline")
	assert.True(t, got[0].Key, "first packet is a key-frame")
	last := int64(-1)
	for i, p := range got {
		assert.GreaterOrEqual(t, p.PTS, last, "packet %d pts decreased", i)
		last = p.PTS
	}
	assert.Equal(t, int64(33), got[1].PTS)
	assert.Equal(t, int64(66), got[2].PTS)
}

func TestSessionDelayedEngineBuffering(t *testing.T) {
	// An engine that buffers two frames before its first packet: the
	// first two submissions succeed with zero callbacks, and the first
	// packet still carries the first frame's timestamp.
	eng := &enginetest.Engine{Delay: 2}
	var got []Packet
	s, err := New(testConfig(eng, func(p Packet) { got = append(got, p) }))
	require.NoError(t, err)
	defer s.Close()

	buf := frameBuffer(t, s)
	require.NoError(t, s.Encode(buf, 1000))
	require.NoError(t, s.Encode(buf, 1033))
	assert.Empty(t, got, "buffering frames must not invoke the callback")

	require.NoError(t, s.Encode(buf, 1066))
	require.Len(t, got, 1)
	assert.Equal(t, int64(0), got[0].PTS, "anchor is the first frame's timestamp, not the third's")
}

func TestSessionShortBuffer(t *testing.T) {
	eng := &enginetest.Engine{}
	calls := 0
	s, err := New(testConfig(eng, func(Packet) { calls++ }))
	require.NoError(t, err)
	defer s.Close()

	short := make([]byte, s.Layout().Length-1)
	err = s.Encode(short, 0)
	require.ErrorIs(t, err, ErrShortBuffer)
	assert.Zero(t, calls)
	assert.Zero(t, eng.Codec.Submitted, "no partial state reaches the engine")

	// The session stays usable.
	require.NoError(t, s.Encode(frameBuffer(t, s), 33))
	assert.Equal(t, 1, calls)
}

func TestSessionScenarioNV12(t *testing.T) {
	// 64x64 semi-planar, alignment 32, 500 kbit/s, timebase 1/30,
	// effectively unbounded GOP; three frames at 0, 33 and 66 ms.
	eng := &enginetest.Engine{}
	var got []Packet
	cfg := testConfig(eng, func(p Packet) { got = append(got, p) })
	cfg.Format = pixel.NV12
	cfg.BitRate = 500000
	cfg.GOP = 9999
	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()

	buf := frameBuffer(t, s)
	for _, ms := range []int64{0, 33, 66} {
		require.NoError(t, s.Encode(buf, ms))
	}

	require.NotEmpty(t, got)
	assert.Equal(t, int64(0), got[0].PTS)
	keyframes := 0
	for _, p := range got {
		if p.Key {
			keyframes++
		}
	}
	assert.GreaterOrEqual(t, keyframes, 1)
	assert.Equal(t, int64(500000), eng.LastConfig.BitRate)
}

func TestSessionBitrateGate(t *testing.T) {
	// Bitrates below the threshold leave the engine default.
	eng := &enginetest.Engine{}
	cfg := testConfig(eng, func(Packet) {})
	cfg.BitRate = 999
	s, err := New(cfg)
	require.NoError(t, err)
	assert.Zero(t, eng.LastConfig.BitRate)
	s.Close()

	cfg.BitRate = MinBitRate
	s, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(MinBitRate), eng.LastConfig.BitRate)
	s.Close()

	// qsv mirrors an explicit bitrate into the max-rate cap.
	cfg.Codec = "h264_qsv"
	cfg.BitRate = 2_000_000
	s, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "2000000", eng.LastConfig.Options["maxrate"])
	s.Close()
}

func TestSessionFamilyOptions(t *testing.T) {
	eng := &enginetest.Engine{LiveBitrate: true}
	cfg := testConfig(eng, func(Packet) {})
	cfg.Codec = "h264_nvenc"
	cfg.Quality = codecs.QualityHigh
	cfg.RateControl = codecs.RateControlCBR
	cfg.GPU = 1
	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()

	opts := eng.LastConfig.Options
	assert.Equal(t, "p7", opts["preset"])
	assert.Equal(t, "cbr", opts["rc"])
	assert.Equal(t, "1", opts["gpu"])

	// Session-wide guarantees ride along for every family.
	assert.Equal(t, "0", opts["bf"])
	assert.Equal(t, "+low_delay", opts["flags"])
	assert.Equal(t, "+local_header", opts["flags2"])
	assert.Equal(t, "smpte170m", opts["colorspace"])
	assert.Equal(t, "tv", opts["color_range"])
}

func TestSessionHardwareConfig(t *testing.T) {
	eng := &enginetest.Engine{}
	cfg := testConfig(eng, func(Packet) {})
	cfg.Codec = "h264_vaapi"
	cfg.Adapter = adapters.Fixed("/dev/dri/renderD129")
	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()

	hw := eng.LastConfig.Hardware
	require.NotNil(t, hw)
	assert.Equal(t, "vaapi", hw.DeviceType)
	assert.Equal(t, "vaapi", hw.Surface)
	assert.Equal(t, "/dev/dri/renderD129", hw.Device)
	assert.Equal(t, 1, hw.PoolSize, "a session keeps exactly one hardware frame in flight")
}

func TestSessionSoftwareHasNoHardwareConfig(t *testing.T) {
	eng := &enginetest.Engine{}
	s, err := New(testConfig(eng, func(Packet) {}))
	require.NoError(t, err)
	defer s.Close()
	assert.Nil(t, eng.LastConfig.Hardware)
}

func TestSessionSetBitrate(t *testing.T) {
	// vaapi has no live bitrate support; the session must refuse
	// without touching the engine.
	eng := &enginetest.Engine{}
	cfg := testConfig(eng, func(Packet) {})
	cfg.Codec = "h264_vaapi"
	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()

	err = s.SetBitrate(1_000_000)
	require.ErrorIs(t, err, ErrBitrateUnsupported)
	assert.Empty(t, eng.Codec.Bitrates)

	// Encoding still works afterwards.
	require.NoError(t, s.Encode(frameBuffer(t, s), 0))

	// nvenc renegotiates live.
	eng = &enginetest.Engine{LiveBitrate: true}
	cfg = testConfig(eng, func(Packet) {})
	cfg.Codec = "h264_nvenc"
	s, err = New(cfg)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetBitrate(750_000))
	assert.Equal(t, []int64{750_000}, eng.Codec.Bitrates)
}

func TestSessionEncodeErrorRecoverable(t *testing.T) {
	eng := &enginetest.Engine{}
	calls := 0
	s, err := New(testConfig(eng, func(Packet) { calls++ }))
	require.NoError(t, err)
	defer s.Close()

	eng.SubmitErr = errors.New("upload failed")
	buf := frameBuffer(t, s)
	require.Error(t, s.Encode(buf, 0))
	assert.Zero(t, calls)

	// The failed submission does not poison the session.
	eng.SubmitErr = nil
	require.NoError(t, s.Encode(buf, 33))
	assert.Equal(t, 1, calls)
}

func TestSessionCloseIdempotent(t *testing.T) {
	eng := &enginetest.Engine{}
	s, err := New(testConfig(eng, func(Packet) {}))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, eng.Codec.Closed, "engine released exactly once")

	require.ErrorIs(t, s.Encode(frameBuffer(t, s), 0), ErrSessionClosed)
	require.ErrorIs(t, s.SetBitrate(500_000), ErrSessionClosed)

	var nilSession *Session
	require.NoError(t, nilSession.Close())
	require.ErrorIs(t, nilSession.Encode(nil, 0), ErrSessionClosed)
}

func TestSessionOpenFailure(t *testing.T) {
	eng := &enginetest.Engine{OpenErr: engine.ErrUnknownCodec}
	cfg := testConfig(eng, func(Packet) {})
	_, err := New(cfg)
	require.ErrorIs(t, err, engine.ErrUnknownCodec)
}

func TestSessionConfigValidation(t *testing.T) {
	eng := &enginetest.Engine{}
	base := testConfig(eng, func(Packet) {})

	cases := map[string]func(*Config){
		"missing codec":    func(c *Config) { c.Codec = "" },
		"missing callback": func(c *Config) { c.OnPacket = nil },
		"unknown format":   func(c *Config) { c.Format = pixel.FormatUnknown },
		"odd width":        func(c *Config) { c.Width = 63 },
		"zero height":      func(c *Config) { c.Height = 0 },
		"bad timebase":     func(c *Config) { c.TimeBaseDen = 0 },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		_, err := New(cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig, name)
	}
}

func TestSessionLayoutMatchesEngineStrides(t *testing.T) {
	eng := &enginetest.Engine{}
	s, err := New(testConfig(eng, func(Packet) {}))
	require.NoError(t, err)
	defer s.Close()

	l := s.Layout()
	require.Equal(t, eng.Codec.Strides(), l.Strides)
	want, err := pixel.LayoutFor(pixel.I420, 64, l.Strides)
	require.NoError(t, err)
	assert.Equal(t, want.Length, l.Length)
	assert.Equal(t, want.Offsets, l.Offsets)

	// The returned layout is a copy; mutating it must not affect the
	// session.
	l.Strides[0] = 1
	assert.NotEqual(t, 1, s.Layout().Strides[0])
}
