// Package pathutil resolves the local paths users type on the command line.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveAbsolutePath expands a leading ~, makes path absolute and resolves
// symlinks in its longest existing prefix. The remainder need not exist.
// An empty path resolves to the working directory.
func ResolveAbsolutePath(path string) (string, error) {
	if path == "" {
		return os.Getwd()
	}

	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved, nil
	}

	current := absPath
	var remainder []string
	for {
		if _, err := os.Stat(current); err == nil {
			resolved, err := filepath.EvalSymlinks(current)
			if err != nil {
				resolved = current
			}
			for i := len(remainder) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, remainder[i])
			}
			return resolved, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return absPath, nil
		}
		remainder = append(remainder, filepath.Base(current))
		current = parent
	}
}
