package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/capiweb/capishare/internal/pathutil"
)

// newDownloadCmd creates the 'download' command.
func newDownloadCmd() *cobra.Command {
	var parent, outDir string
	var fileIDs, folderIDs []int64
	var overall bool

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download files and folders",
		Long: `Download items of one folder. A single file is saved as is, a single
folder as a zip. Several items are fetched as one zip archive.

Examples:
  capishare download --file 1234
  capishare download --in 42 --file 1234 --folder 43 --out ./results`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(fileIDs) == 0 && len(folderIDs) == 0 {
				return fmt.Errorf("nothing to download: use --file or --folder")
			}
			folderID, err := parseFolderArg(parent)
			if err != nil {
				return err
			}

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()
			if outDir != "" {
				dir, err := pathutil.ResolveAbsolutePath(outDir)
				if err != nil {
					return fmt.Errorf("failed to resolve %s: %w", outDir, err)
				}
				app.Config().DownloadDir = dir
			}

			ctx := GetContext()
			nav, err := openNavigator(ctx, app, folderID)
			if err != nil {
				return err
			}
			if err := selectNodes(nav, fileIDs, folderIDs); err != nil {
				return err
			}

			sub := subscribeTransfers(app)
			defer app.EventBus().Unsubscribe(sub)

			dl := app.BatchDownloader()
			if err := nav.BulkDownload(ctx, dl); err != nil {
				return err
			}
			batch := dl.Batch()
			GetLogger().Info().Str("batch", batch.ID).Str("dir", app.Config().DownloadDir).Msg("Starting download")

			res, err := followBatch(ctx, app, sub, batch, overall)
			if err != nil {
				return fmt.Errorf("download interrupted: %w", err)
			}
			return batchError(batch.Kind, res)
		},
	}

	cmd.Flags().StringVar(&parent, "in", "", "Folder containing the items (default: scope root)")
	cmd.Flags().Int64SliceVar(&fileIDs, "file", nil, "File id to download (repeatable)")
	cmd.Flags().Int64SliceVar(&folderIDs, "folder", nil, "Folder id to download (repeatable)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Destination directory (default: configured download_dir)")
	cmd.Flags().BoolVar(&overall, "overall", false, "Show one overall progress bar")

	return cmd
}
