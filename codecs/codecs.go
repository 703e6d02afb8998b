// Package codecs describes the encoder families the session can drive
// and maps the abstract quality, rate-control and latency knobs onto
// each family's native option names. A family that does not map a knob
// silently leaves the engine default; that is not an error.
package codecs

import (
	"strconv"
	"strings"
)

// Quality is an abstract output quality level.
type Quality int

// Quality levels, from engine default to best.
const (
	QualityDefault Quality = iota
	QualityLow
	QualityMedium
	QualityHigh
)

// String returns the level name.
func (q Quality) String() string {
	switch q {
	case QualityLow:
		return "low"
	case QualityMedium:
		return "medium"
	case QualityHigh:
		return "high"
	default:
		return "default"
	}
}

// RateControl is an abstract rate-control policy.
type RateControl int

// Rate-control policies.
const (
	RateControlDefault RateControl = iota
	RateControlCBR
	RateControlVBR
)

// String returns the policy name.
func (rc RateControl) String() string {
	switch rc {
	case RateControlCBR:
		return "cbr"
	case RateControlVBR:
		return "vbr"
	default:
		return "default"
	}
}

// Vendor identifies a GPU vendor an encoder family prefers.
type Vendor int

// Known vendors.
const (
	VendorAny Vendor = iota
	VendorNVIDIA
	VendorIntel
	VendorAMD
)

// Hardware names the accelerator back-end a family encodes through.
// Families without a Hardware entry consume CPU-resident frames
// directly, even when the encoder itself runs on dedicated silicon.
type Hardware struct {
	DeviceType string // engine hardware device type name
	Surface    string // hardware surface pixel format name
	Vendor     Vendor // adapter vendor to prefer when several exist
}

// Option is one native engine option.
type Option struct {
	Key   string
	Value string
}

// Descriptor is one codec family's capability record.
type Descriptor struct {
	// Name identifies the family in logs and errors.
	Name string
	// Match lists encoder-name substrings that select this family.
	Match []string
	// Hardware is non-nil when frames must be uploaded to a device
	// surface before encoding.
	Hardware *Hardware
	// LiveBitrate reports whether the family supports bitrate
	// renegotiation on an open encoder.
	LiveBitrate bool
	// MirrorMaxRate mirrors an explicit bitrate into the engine's
	// max-rate cap.
	MirrorMaxRate bool
	// Latency holds the family's low-latency options, applied to every
	// session.
	Latency []Option
	// Quality maps abstract quality levels to a native option.
	Quality map[Quality]Option
	// RateControl maps abstract rate-control policies to a native
	// option.
	RateControl map[RateControl]Option
	// GPUKey is the native option carrying the adapter ordinal, empty
	// when the family does not select adapters by option.
	GPUKey string
	// ForceHardware holds options pinning the encoder to hardware.
	ForceHardware []Option
}

// families is ordered; the first matching descriptor wins.
var families = []Descriptor{
	{
		Name:        "nvenc",
		Match:       []string{"nvenc"},
		Hardware:    &Hardware{DeviceType: "cuda", Surface: "cuda", Vendor: VendorNVIDIA},
		LiveBitrate: true,
		Latency:     []Option{{"delay", "0"}, {"zerolatency", "1"}},
		Quality: map[Quality]Option{
			QualityHigh:   {"preset", "p7"},
			QualityMedium: {"preset", "p4"},
			QualityLow:    {"preset", "p1"},
		},
		RateControl: map[RateControl]Option{
			RateControlCBR: {"rc", "cbr"},
			RateControlVBR: {"rc", "vbr"},
		},
		GPUKey: "gpu",
	},
	{
		Name:        "amf",
		Match:       []string{"amf"},
		LiveBitrate: true,
		Latency:     []Option{{"usage", "ultralowlatency"}},
		Quality: map[Quality]Option{
			QualityHigh:   {"quality", "quality"},
			QualityMedium: {"quality", "balanced"},
			QualityLow:    {"quality", "speed"},
		},
		RateControl: map[RateControl]Option{
			RateControlCBR: {"rc", "cbr"},
			RateControlVBR: {"rc", "vbr_latency"},
		},
	},
	{
		Name:          "qsv",
		Match:         []string{"qsv"},
		MirrorMaxRate: true,
		Latency:       []Option{{"async_depth", "1"}},
		Quality: map[Quality]Option{
			QualityHigh:   {"preset", "veryslow"},
			QualityMedium: {"preset", "medium"},
			QualityLow:    {"preset", "veryfast"},
		},
	},
	{
		Name:     "vaapi",
		Match:    []string{"vaapi"},
		Hardware: &Hardware{DeviceType: "vaapi", Surface: "vaapi", Vendor: VendorAny},
		Latency:  []Option{{"async_depth", "1"}},
		RateControl: map[RateControl]Option{
			RateControlCBR: {"rc_mode", "CBR"},
			RateControlVBR: {"rc_mode", "VBR"},
		},
	},
	{
		Name:          "videotoolbox",
		Match:         []string{"videotoolbox"},
		Latency:       []Option{{"realtime", "1"}},
		ForceHardware: []Option{{"allow_sw", "0"}},
	},
	{
		Name:          "mediafoundation",
		Match:         []string{"_mf"},
		ForceHardware: []Option{{"hw_encoding", "1"}},
	},
	{
		Name:    "x264",
		Match:   []string{"libx264"},
		Latency: []Option{{"tune", "zerolatency"}},
		Quality: map[Quality]Option{
			QualityHigh:   {"preset", "medium"},
			QualityMedium: {"preset", "veryfast"},
			QualityLow:    {"preset", "ultrafast"},
		},
	},
	{
		Name:    "x265",
		Match:   []string{"libx265"},
		Latency: []Option{{"tune", "zerolatency"}},
		Quality: map[Quality]Option{
			QualityHigh:   {"preset", "medium"},
			QualityMedium: {"preset", "veryfast"},
			QualityLow:    {"preset", "ultrafast"},
		},
	},
}

// generic covers encoder names no family claims: every knob is left at
// the engine default.
var generic = Descriptor{Name: "generic"}

// Detect resolves the family descriptor for an encoder name.
func Detect(codecName string) Descriptor {
	for _, d := range families {
		for _, m := range d.Match {
			if strings.Contains(codecName, m) {
				return d
			}
		}
	}
	return generic
}

// Options assembles the family's native options for the requested
// quality, rate-control policy and adapter ordinal. Knobs the family
// does not map are omitted.
func (d Descriptor) Options(q Quality, rc RateControl, gpu int) map[string]string {
	opts := make(map[string]string)
	for _, o := range d.Latency {
		opts[o.Key] = o.Value
	}
	if o, ok := d.Quality[q]; ok {
		opts[o.Key] = o.Value
	}
	if o, ok := d.RateControl[rc]; ok {
		opts[o.Key] = o.Value
	}
	if d.GPUKey != "" && gpu >= 0 {
		opts[d.GPUKey] = strconv.Itoa(gpu)
	}
	for _, o := range d.ForceHardware {
		opts[o.Key] = o.Value
	}
	return opts
}
