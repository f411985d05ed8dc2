package diskspace

import (
	"fmt"
	"path/filepath"
	"testing"
)

func TestCheck(t *testing.T) {
	dir := t.TempDir()

	t.Run("SmallFile", func(t *testing.T) {
		if err := Check(dir, 1024, DefaultSafetyMargin); err != nil {
			t.Errorf("Expected no error for small file, got: %v", err)
		}
	})

	t.Run("ZeroSize", func(t *testing.T) {
		if err := Check(dir, 0, DefaultSafetyMargin); err != nil {
			t.Errorf("Expected no error for empty file, got: %v", err)
		}
	})

	t.Run("HugeFile", func(t *testing.T) {
		if Available(dir) == 0 {
			t.Skip("Could not determine available space")
		}
		err := Check(dir, 1<<62, DefaultSafetyMargin)
		if !IsInsufficientSpaceError(err) {
			t.Fatalf("Expected InsufficientSpaceError, got: %v", err)
		}
		wrapped := fmt.Errorf("download: %w", err)
		if !IsInsufficientSpaceError(wrapped) {
			t.Error("wrapped error not recognised")
		}
	})

	t.Run("MissingDirectory", func(t *testing.T) {
		missing := filepath.Join(dir, "a", "b", "c")
		if err := Check(missing, 1024, DefaultSafetyMargin); err != nil {
			t.Errorf("Expected the nearest existing parent to be checked, got: %v", err)
		}
		if Available(missing) != Available(dir) {
			t.Error("missing directory should report its parent's free space")
		}
	})
}

func TestNearestExisting(t *testing.T) {
	dir := t.TempDir()
	if got := nearestExisting(filepath.Join(dir, "x", "y")); got != dir {
		t.Errorf("nearestExisting() = %q, want %q", got, dir)
	}
}

func TestInsufficientSpaceErrorMessage(t *testing.T) {
	err := &InsufficientSpaceError{Path: "/data", RequiredBytes: 2048, AvailableBytes: 1024}
	want := "insufficient disk space for /data: need 2.0 KiB, have 1.0 KiB available"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
