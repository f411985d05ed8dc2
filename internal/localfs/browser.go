package localfs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileEntry is one entry of a local directory.
type FileEntry struct {
	Path    string
	Name    string
	Size    int64 // 0 for directories
	IsDir   bool
	ModTime time.Time
}

// ListDirectory returns the entries of path, directories first, each group
// sorted by name without regard to case.
func ListDirectory(path string, opts ListOptions) ([]FileEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	result := make([]FileEntry, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !opts.IncludeHidden && IsHiddenName(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed since ReadDir
			continue
		}
		e := FileEntry{
			Path:    filepath.Join(path, name),
			Name:    name,
			IsDir:   entry.IsDir(),
			ModTime: info.ModTime(),
		}
		if !e.IsDir {
			e.Size = info.Size()
		}
		result = append(result, e)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].IsDir != result[j].IsDir {
			return result[i].IsDir
		}
		return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
	})
	return result, nil
}

// CollectFiles expands roots into the regular files they contain. A file
// root is returned as is; a directory root is walked recursively in lexical
// order. Unreadable subdirectories are skipped. The walk stops when ctx is
// done.
func CollectFiles(ctx context.Context, roots []string, opts WalkOptions) ([]string, error) {
	var files []string
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				if d != nil && d.IsDir() && path != root {
					return filepath.SkipDir
				}
				return err
			}
			if path != root && !opts.IncludeHidden && IsHiddenName(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}
	return files, nil
}
