// Package localfs lists and walks the local directories a user uploads from.
package localfs

import (
	"path/filepath"
	"strings"
)

// IsHidden reports whether the base name of path starts with a dot.
func IsHidden(path string) bool {
	return IsHiddenName(filepath.Base(path))
}

// IsHiddenName is IsHidden for a bare name. "." and ".." are not hidden.
func IsHiddenName(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}
