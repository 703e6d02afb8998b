// Package adapters resolves which physical accelerator device a
// hardware-backed encoder session should open.
package adapters

import (
	"os/exec"
	"sort"
	"strconv"

	"github.com/savid/ramenc/codecs"
	"github.com/sirupsen/logrus"
)

// Selector resolves a device string for a hardware back-end. The empty
// string selects the back-end's default device; selection failures fall
// back to it rather than failing session creation.
type Selector interface {
	Select(deviceType string, vendor codecs.Vendor, gpu int) string
}

// System is the default Selector. It probes DRM render nodes for
// VA-API back-ends and the NVIDIA management tool for CUDA ordinals.
type System struct {
	// DRIDir is the render-node directory, /dev/dri by default.
	DRIDir string

	logger      *logrus.Logger
	probeNVIDIA func() bool
}

// NewSystem creates the default adapter selection strategy.
func NewSystem(logger *logrus.Logger) *System {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &System{
		DRIDir:      "/dev/dri",
		logger:      logger,
		probeNVIDIA: nvidiaPresent,
	}
}

// Select implements Selector.
func (s *System) Select(deviceType string, vendor codecs.Vendor, gpu int) string {
	switch deviceType {
	case "vaapi":
		nodes := s.renderNodes()
		if len(nodes) == 0 {
			s.logger.Debug("No accessible render nodes, using default VA-API device")
			return ""
		}
		if gpu >= 0 && gpu < len(nodes) {
			return nodes[gpu]
		}
		return nodes[0]

	case "cuda", "d3d11va":
		if gpu >= 0 {
			return strconv.Itoa(gpu)
		}
		if vendor == codecs.VendorNVIDIA && s.probeNVIDIA() {
			return "0"
		}
		return ""

	default:
		return ""
	}
}

// renderNodes lists the accessible DRM render nodes in stable order.
func (s *System) renderNodes() []string {
	nodes := accessibleRenderNodes(s.DRIDir)
	sort.Strings(nodes)
	return nodes
}

// nvidiaPresent reports whether the NVIDIA management tool sees at
// least one adapter.
func nvidiaPresent() bool {
	return exec.Command("nvidia-smi", "-L").Run() == nil
}

// Fixed is a Selector that always returns the same device string. It
// is useful when the caller already knows the device to open.
type Fixed string

// Select implements Selector.
func (f Fixed) Select(string, codecs.Vendor, int) string { return string(f) }
