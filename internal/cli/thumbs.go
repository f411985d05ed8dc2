package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/capiweb/capishare/internal/assets"
	"github.com/capiweb/capishare/internal/config"
	"github.com/capiweb/capishare/internal/models"
	"github.com/capiweb/capishare/internal/progress"
	"github.com/capiweb/capishare/internal/services"
	"github.com/capiweb/capishare/internal/util/filter"
	"github.com/capiweb/capishare/internal/util/paths"
	"github.com/capiweb/capishare/internal/util/sanitize"
)

// newThumbsCmd creates the 'thumbs' command.
func newThumbsCmd() *cobra.Command {
	var outDir string
	var timeout time.Duration
	var flt *filter.Config

	cmd := &cobra.Command{
		Use:   "thumbs [folder-id]",
		Short: "Fetch thumbnails of the images in a folder",
		Long: `Fetch the thumbnails of every image in a folder through the shared
asset loader and write them to --out. Requests are spaced and capped the
same way the interactive browser loads them; failed fetches are retried
until --timeout.

Example:
  capishare thumbs 42 --out ./thumbs`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var arg string
			if len(args) == 1 {
				arg = args[0]
			}
			folder, err := parseFolderArg(arg)
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = config.ThumbnailCacheDirectory()
			}
			if err := config.EnsureDirectory(outDir); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := context.WithTimeout(GetContext(), timeout)
			defer cancel()

			nav, err := openNavigator(ctx, app, folder)
			if err != nil {
				return err
			}

			targets := thumbnailTargets(filter.Files(nav.Snapshot().Listing.Files, *flt), outDir)
			if len(targets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No images in this folder")
				return nil
			}

			written, err := fetchThumbnails(ctx, app, targets, progress.NewReporter(false))
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d of %d thumbnails to %s\n", written, len(targets), outDir)
			return err
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default: the user cache directory)")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Give up after this long")
	flt = filterFlags(cmd)

	return cmd
}

type thumbTarget struct {
	file *models.File
	path string
}

// thumbnailTargets picks the image files and gives each a unique local path.
func thumbnailTargets(files []*models.File, dir string) []thumbTarget {
	var list []paths.Target
	byID := make(map[int64]*models.File)
	for _, f := range files {
		if !models.IsImage(f.Filename) {
			continue
		}
		name := sanitize.FileName(f.Filename, fmt.Sprintf("file-%d", f.ID))
		list = append(list, paths.Target{ID: f.ID, Name: name, LocalPath: filepath.Join(dir, name)})
		byID[f.ID] = f
	}
	list, _ = paths.ResolveCollisions(list)

	out := make([]thumbTarget, len(list))
	for i, t := range list {
		out[i] = thumbTarget{file: byID[t.ID], path: t.LocalPath}
	}
	return out
}

// fetchThumbnails starts one consumer per target and waits until all are
// written or ctx is done. It returns the number written.
func fetchThumbnails(ctx context.Context, app *services.App, targets []thumbTarget, r progress.Reporter) (int, error) {
	logger := GetLogger()
	r.Start(int64(len(targets)), "thumbnails")

	var (
		mu      sync.Mutex
		written int
		failed  error
	)
	done := make(chan struct{}, len(targets))
	consumers := make([]*assets.Consumer, 0, len(targets))
	defer func() {
		for _, c := range consumers {
			c.Close()
		}
	}()

	for _, t := range targets {
		c := app.Thumbnail(t.file, nil, func(data []byte) {
			err := os.WriteFile(t.path, data, 0644)
			mu.Lock()
			if err != nil {
				logger.Warn().Err(err).Str("path", t.path).Msg("Failed to write thumbnail")
				if failed == nil {
					failed = err
				}
			} else {
				written++
				r.Update(int64(written))
			}
			mu.Unlock()
			done <- struct{}{}
		})
		consumers = append(consumers, c)
		c.Start(nil)
	}

	for range targets {
		select {
		case <-done:
		case <-ctx.Done():
			mu.Lock()
			n := written
			mu.Unlock()
			r.Error(ctx.Err())
			return n, fmt.Errorf("thumbnails incomplete: %w", ctx.Err())
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if failed != nil {
		r.Error(failed)
		return written, failed
	}
	r.Finish()
	return written, nil
}
