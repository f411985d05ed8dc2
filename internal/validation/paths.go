// Package validation checks names and local paths taken from the server.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateFilename rejects names that could address anything other than a
// single entry: empty names, null bytes, path separators and "." or "..".
func ValidateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	if strings.ContainsRune(filename, 0) {
		return fmt.Errorf("filename contains null byte: %q", filename)
	}
	if strings.ContainsAny(filename, `/\`) {
		return fmt.Errorf("filename cannot contain path separators: %s", filename)
	}
	if filename == "." || filename == ".." {
		return fmt.Errorf("filename cannot be %q", filename)
	}
	return nil
}

// ValidatePathInDirectory returns an error if path, resolved against
// baseDir when relative, lies outside baseDir.
func ValidatePathInDirectory(path string, baseDir string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if baseDir == "" {
		return fmt.Errorf("base directory cannot be empty")
	}

	base, err := filepath.Abs(filepath.Clean(baseDir))
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}

	resolved := filepath.Clean(path)
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(base, resolved)
	}

	rel, err := filepath.Rel(base, resolved)
	if err != nil {
		return fmt.Errorf("failed to compute relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s (base: %s)", path, baseDir)
	}
	return nil
}
