// Package paths provides utilities for local destination paths.
package paths

import (
	"fmt"
	"path/filepath"
)

// Target is one item to be written under a local directory.
type Target struct {
	ID        int64  // Server id of the item
	Name      string // Original name
	LocalPath string // Full local destination path
}

// ResolveCollisions makes every LocalPath unique. When several targets share
// a LocalPath, each gets its ID appended before the extension:
//
//	output.png, output.png -> output_12.png, output_15.png
//
// The slice is modified in place. The second result counts the targets that
// were renamed.
func ResolveCollisions(targets []Target) ([]Target, int) {
	if len(targets) == 0 {
		return targets, 0
	}

	byPath := make(map[string][]int)
	for i, t := range targets {
		byPath[t.LocalPath] = append(byPath[t.LocalPath], i)
	}

	renamed := 0
	for path, indices := range byPath {
		if len(indices) <= 1 {
			continue
		}
		renamed += len(indices)
		ext := filepath.Ext(path)
		base := path[:len(path)-len(ext)]
		for _, idx := range indices {
			targets[idx].LocalPath = fmt.Sprintf("%s_%d%s", base, targets[idx].ID, ext)
		}
	}
	return targets, renamed
}
