// Package diskspace checks free space on the file system a download is
// written to.
package diskspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	ustrings "github.com/capiweb/capishare/internal/util/strings"
)

// DefaultSafetyMargin asks for 10% more than the payload size.
const DefaultSafetyMargin = 1.1

// InsufficientSpaceError indicates that there is not enough disk space available.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space for %s: need %s, have %s available",
		e.Path, ustrings.FormatBytes(e.RequiredBytes), ustrings.FormatBytes(e.AvailableBytes))
}

// Check returns an InsufficientSpaceError when the file system holding dir
// has less than requiredBytes*safetyMargin free. dir need not exist yet.
// When free space cannot be determined the check passes.
func Check(dir string, requiredBytes int64, safetyMargin float64) error {
	if requiredBytes <= 0 {
		return nil
	}
	available, ok := availableBytes(nearestExisting(dir))
	if !ok {
		return nil
	}

	required := int64(float64(requiredBytes) * safetyMargin)
	if available < required {
		return &InsufficientSpaceError{
			Path:           dir,
			RequiredBytes:  required,
			AvailableBytes: available,
		}
	}
	return nil
}

// Available returns the free bytes on the file system holding dir, or 0 if
// unknown.
func Available(dir string) int64 {
	n, ok := availableBytes(nearestExisting(dir))
	if !ok {
		return 0
	}
	return n
}

// IsInsufficientSpaceError reports whether err wraps an InsufficientSpaceError.
func IsInsufficientSpaceError(err error) bool {
	var e *InsufficientSpaceError
	return errors.As(err, &e)
}

// nearestExisting walks up from dir to the first directory that exists.
func nearestExisting(dir string) string {
	dir = filepath.Clean(dir)
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
