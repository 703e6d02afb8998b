//go:build !unix

package adapters

// accessibleRenderNodes is empty on platforms without DRM render nodes;
// VA-API selection falls back to the default device there.
func accessibleRenderNodes(string) []string { return nil }
