package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/capiweb/capishare/internal/api"
	"github.com/capiweb/capishare/internal/constants"
	"github.com/capiweb/capishare/internal/logging"
	"github.com/capiweb/capishare/internal/transfer"
)

// UploadRunner streams a local file to the server as a multipart POST.
type UploadRunner struct {
	client *api.Client
	logger *logging.Logger
}

// NewUploadRunner creates an UploadRunner.
func NewUploadRunner(client *api.Client, logger *logging.Logger) *UploadRunner {
	return &UploadRunner{client: client, logger: logging.OrNop(logger)}
}

// Run uploads task.Payload.LocalPath into task.Payload.FolderID.
func (r *UploadRunner) Run(ctx context.Context, task transfer.TaskInfo, progress transfer.ProgressFunc) error {
	f, err := os.Open(task.Payload.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", task.Payload.LocalPath, err)
	}
	defer f.Close()

	size := task.Payload.Size
	if size <= 0 {
		if info, err := f.Stat(); err == nil {
			size = info.Size()
		}
	}

	file, err := r.client.UploadFile(ctx, api.UploadRequest{
		Filename: task.Name,
		Body:     f,
		Size:     size,
		FolderID: task.Payload.FolderID,
	}, api.ProgressFunc(progress))
	if err != nil {
		return err
	}

	r.logger.Debug().Int64("file_id", file.ID).Str("name", task.Name).Msg("Upload stored")
	return nil
}

// DownloadRunner fetches a file or a folder zip into Payload.Dest. Archive
// payloads are handed to the ArchiveRunner.
type DownloadRunner struct {
	client  *api.Client
	archive *ArchiveRunner
	logger  *logging.Logger
}

// NewDownloadRunner creates a DownloadRunner.
func NewDownloadRunner(client *api.Client, logger *logging.Logger) *DownloadRunner {
	logger = logging.OrNop(logger)
	return &DownloadRunner{
		client:  client,
		archive: &ArchiveRunner{client: client, logger: logger},
		logger:  logger,
	}
}

// Run downloads task.Payload.URL.
func (r *DownloadRunner) Run(ctx context.Context, task transfer.TaskInfo, progress transfer.ProgressFunc) error {
	if task.Payload.ItemType == transfer.ItemArchive {
		return r.archive.Run(ctx, task, progress)
	}
	return writePartial(task.Payload.Dest, func(w io.Writer) error {
		_, err := r.client.Download(ctx, task.Payload.URL, w, api.ProgressFunc(progress))
		return err
	})
}

// ArchiveRunner requests one zip of several files and folders.
type ArchiveRunner struct {
	client *api.Client
	logger *logging.Logger
}

// Run posts download_multiple with the payload id lists.
func (r *ArchiveRunner) Run(ctx context.Context, task transfer.TaskInfo, progress transfer.ProgressFunc) error {
	return writePartial(task.Payload.Dest, func(w io.Writer) error {
		_, err := r.client.DownloadMultiple(ctx, task.Payload.FileIDs, task.Payload.FolderIDs, w, api.ProgressFunc(progress))
		return err
	})
}

// writePartial writes into dest.part and renames it to dest once fill
// succeeds. The partial file is removed on failure.
func writePartial(dest string, fill func(w io.Writer) error) error {
	if dest == "" {
		return fmt.Errorf("download destination is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	part := dest + constants.PartialFileSuffix
	f, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", part, err)
	}

	err = fill(f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close %s: %w", part, closeErr)
	}
	if err != nil {
		os.Remove(part)
		return err
	}

	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return fmt.Errorf("failed to move download into place: %w", err)
	}
	return nil
}
