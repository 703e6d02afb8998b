//go:build unix

package adapters

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

// accessibleRenderNodes globs dir for DRM render nodes the process can
// open for reading and writing.
func accessibleRenderNodes(dir string) []string {
	matches, err := filepath.Glob(filepath.Join(dir, "renderD*"))
	if err != nil {
		return nil
	}
	var nodes []string
	for _, node := range matches {
		if unix.Access(node, unix.R_OK|unix.W_OK) == nil {
			nodes = append(nodes, node)
		}
	}
	return nodes
}
