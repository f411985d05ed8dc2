package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/capiweb/capishare/internal/assets"
	"github.com/capiweb/capishare/internal/diskspace"
	"github.com/capiweb/capishare/internal/models"
	"github.com/capiweb/capishare/internal/navigator"
	"github.com/capiweb/capishare/internal/transfer"
	"github.com/capiweb/capishare/internal/util/sanitize"
	"github.com/capiweb/capishare/internal/validation"
)

func (a *App) destination(name string) string {
	return filepath.Join(a.config.DownloadDir, name)
}

// FilePayload describes a direct download of one file.
func (a *App) FilePayload(file *models.File) transfer.Payload {
	name := sanitize.FileName(file.Filename, fmt.Sprintf("file-%d", file.ID))
	return transfer.Payload{
		Name:     name,
		URL:      a.client.FileDownloadURL(file.ID),
		Dest:     a.destination(name),
		ItemType: transfer.ItemFile,
	}
}

// FolderPayload describes the zip download of one folder.
func (a *App) FolderPayload(folder *models.Folder) transfer.Payload {
	name := sanitize.FileName(folder.Name, fmt.Sprintf("folder-%d", folder.ID)) + ".zip"
	return transfer.Payload{
		Name:     name,
		URL:      a.client.FolderDownloadURL(folder.ID),
		Dest:     a.destination(name),
		ItemType: transfer.ItemFolder,
	}
}

// ArchivePayload describes one zip of several files and folders.
func (a *App) ArchivePayload(name string, fileIDs, folderIDs []int64) transfer.Payload {
	name = sanitize.FileName(name, "archive.zip")
	return transfer.Payload{
		Name:      name,
		Dest:      a.destination(name),
		ItemType:  transfer.ItemArchive,
		FileIDs:   append([]int64(nil), fileIDs...),
		FolderIDs: append([]int64(nil), folderIDs...),
	}
}

// EnqueueDownloads starts the payloads as one download batch. Every
// destination must lie inside the download directory.
func (a *App) EnqueueDownloads(payloads []transfer.Payload) (Batch, error) {
	if a.isClosed() {
		return Batch{}, ErrClosed
	}
	for _, p := range payloads {
		if err := validation.ValidatePathInDirectory(p.Dest, a.config.DownloadDir); err != nil {
			return Batch{}, fmt.Errorf("refusing to download %s: %w", p.Name, err)
		}
	}
	return a.enqueue(transfer.KindDownload, payloads)
}

func (a *App) enqueue(kind transfer.Kind, payloads []transfer.Payload) (Batch, error) {
	if a.isClosed() {
		return Batch{}, ErrClosed
	}
	if len(payloads) == 0 {
		return Batch{}, ErrNothingToTransfer
	}
	id, tasks := a.transfers.For(kind).Enqueue(payloads)
	return Batch{Kind: kind, ID: id, Tasks: tasks}, nil
}

// checkArchive warns when a compressed file carries executables. The
// download proceeds either way.
func (a *App) checkArchive(ctx context.Context, file *models.File) {
	if !models.IsArchive(file.Filename) {
		return
	}
	info, err := a.client.CheckArchive(ctx, file.ID)
	if err != nil {
		a.logger.Debug().Err(err).Int64("file_id", file.ID).Msg("Archive check failed")
		return
	}
	if info.HasExecutables {
		a.logger.Warn().
			Str("file", file.Filename).
			Strs("executables", info.ExecutableFiles).
			Msg("Archive contains executable files")
	}
}

func (a *App) downloadFile(ctx context.Context, file *models.File) (Batch, error) {
	if err := diskspace.Check(a.config.DownloadDir, file.Size, diskspace.DefaultSafetyMargin); err != nil {
		return Batch{}, err
	}
	a.checkArchive(ctx, file)
	return a.EnqueueDownloads([]transfer.Payload{a.FilePayload(file)})
}

// DownloadFile enqueues a single file download.
func (a *App) DownloadFile(ctx context.Context, file *models.File) error {
	_, err := a.downloadFile(ctx, file)
	return err
}

// DownloadFolder enqueues the zip download of a folder.
func (a *App) DownloadFolder(ctx context.Context, folder *models.Folder) error {
	_, err := a.EnqueueDownloads([]transfer.Payload{a.FolderPayload(folder)})
	return err
}

// DownloadArchive enqueues one zip of several files and folders.
func (a *App) DownloadArchive(ctx context.Context, name string, fileIDs, folderIDs []int64) error {
	_, err := a.EnqueueDownloads([]transfer.Payload{a.ArchivePayload(name, fileIDs, folderIDs)})
	return err
}

// BatchDownloader is a navigator.Downloader that remembers the batch it
// started, so the caller can follow it.
type BatchDownloader struct {
	app   *App
	batch Batch
}

var _ navigator.Downloader = (*BatchDownloader)(nil)

// BatchDownloader returns a recording downloader bound to a.
func (a *App) BatchDownloader() *BatchDownloader {
	return &BatchDownloader{app: a}
}

// Batch returns the last batch started, or the zero Batch.
func (d *BatchDownloader) Batch() Batch {
	return d.batch
}

func (d *BatchDownloader) record(b Batch, err error) error {
	if err == nil {
		d.batch = b
	}
	return err
}

func (d *BatchDownloader) DownloadFile(ctx context.Context, file *models.File) error {
	return d.record(d.app.downloadFile(ctx, file))
}

func (d *BatchDownloader) DownloadFolder(ctx context.Context, folder *models.Folder) error {
	return d.record(d.app.EnqueueDownloads([]transfer.Payload{d.app.FolderPayload(folder)}))
}

func (d *BatchDownloader) DownloadArchive(ctx context.Context, name string, fileIDs, folderIDs []int64) error {
	return d.record(d.app.EnqueueDownloads([]transfer.Payload{d.app.ArchivePayload(name, fileIDs, folderIDs)}))
}

// Upload enqueues the local files as one upload batch into folderID.
// Every path is checked before anything is enqueued.
func (a *App) Upload(paths []string, folderID *int64) (Batch, error) {
	payloads := make([]transfer.Payload, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return Batch{}, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if info.IsDir() {
			return Batch{}, fmt.Errorf("%s: %w", p, ErrIsDirectory)
		}
		var folder *int64
		if folderID != nil {
			folder = models.ID(*folderID)
		}
		payloads = append(payloads, transfer.Payload{
			Name:      filepath.Base(p),
			LocalPath: p,
			Size:      info.Size(),
			FolderID:  folder,
		})
	}
	return a.enqueue(transfer.KindUpload, payloads)
}

// Fetcher returns the API client as an asset fetcher.
func (a *App) Fetcher() assets.Fetcher {
	return assets.FetcherFunc(a.client.FetchAsset)
}

// Thumbnail creates a loader consumer for an image file, or nil when the
// file has no thumbnail.
func (a *App) Thumbnail(file *models.File, onLoading func(bool), onLoaded func([]byte)) *assets.Consumer {
	if !models.IsImage(file.Filename) {
		return nil
	}
	return assets.NewConsumer(a.loader, assets.ThumbnailURL(file.ID), a.Fetcher(), onLoading, onLoaded)
}
