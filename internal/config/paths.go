package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// ThumbnailCacheDirectory returns the directory thumbnails are written to
// when the thumbs command runs without --out.
//
// Locations:
//   - Windows: %LOCALAPPDATA%\capishare\thumbnails
//   - Unix: $XDG_CACHE_HOME/capishare/thumbnails (usually ~/.cache)
func ThumbnailCacheDirectory() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "capishare-thumbnails")
			}
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, "capishare", "thumbnails")
	}

	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "capishare-thumbnails")
	}
	return filepath.Join(cacheDir, "capishare", "thumbnails")
}

// EnsureDirectory creates dir with owner-only permissions if it doesn't exist.
func EnsureDirectory(dir string) error {
	return os.MkdirAll(dir, 0700)
}
