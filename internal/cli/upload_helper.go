package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/capiweb/capishare/internal/localfs"
	"github.com/capiweb/capishare/internal/pathutil"
	"github.com/capiweb/capishare/internal/util/filter"
)

// newUploadCmd creates the 'upload' command.
func newUploadCmd() *cobra.Command {
	var target string
	var overall bool
	var recursive bool
	var hidden bool
	var flt *filter.Config

	cmd := &cobra.Command{
		Use:   "upload <file> [file...]",
		Short: "Upload files",
		Long: `Upload one or more local files. All files start at once and are
reported as one batch.

Examples:
  # Upload to the scope root
  capishare upload report.pdf photo.jpg

  # Upload into folder 42 with a single overall progress bar
  capishare upload *.dat --to 42 --overall

  # Upload the .dat files below ./results, skipping dot files
  capishare upload -r ./results --include '*.dat' --to 42`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folderID, err := parseFolderArg(target)
			if err != nil {
				return err
			}

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			sub := subscribeTransfers(app)
			defer app.EventBus().Unsubscribe(sub)

			paths, err := expandUploadPaths(GetContext(), args, recursive, hidden)
			if err != nil {
				return err
			}
			if recursive {
				paths = filter.Paths(paths, *flt)
				if len(paths) == 0 {
					return fmt.Errorf("no files match the filter")
				}
			}

			batch, err := app.Upload(paths, folderID)
			if err != nil {
				return err
			}
			GetLogger().Info().Str("batch", batch.ID).Int("files", batch.Len()).Str("folder", target).Msg("Starting upload")

			res, err := followBatch(GetContext(), app, sub, batch, overall)
			if err != nil {
				return fmt.Errorf("upload interrupted: %w", err)
			}
			return batchError(batch.Kind, res)
		},
	}

	cmd.Flags().StringVar(&target, "to", "", "Destination folder id (default: scope root)")
	cmd.Flags().BoolVar(&overall, "overall", false, "Show one overall progress bar instead of one bar per file")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Upload the files inside directories")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "With --recursive, include dot files")
	flt = filterFlags(cmd)

	return cmd
}

// expandUploadPaths resolves each argument to an absolute path. With
// recursive set, directories are replaced by the files below them; without
// it they are passed through and rejected by the upload.
func expandUploadPaths(ctx context.Context, args []string, recursive, hidden bool) ([]string, error) {
	paths := make([]string, 0, len(args))
	for _, a := range args {
		p, err := pathutil.ResolveAbsolutePath(a)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", a, err)
		}
		paths = append(paths, p)
	}
	if !recursive {
		return paths, nil
	}
	files, err := localfs.CollectFiles(ctx, paths, localfs.WalkOptions{IncludeHidden: hidden})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to upload")
	}
	return files, nil
}
