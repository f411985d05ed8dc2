package navigator

import (
	"context"
	"errors"
	"fmt"

	"github.com/capiweb/capishare/internal/models"
	"github.com/capiweb/capishare/internal/state"
	"github.com/capiweb/capishare/internal/tree"
)

// Downloader starts downloads on behalf of BulkDownload.
type Downloader interface {
	DownloadFile(ctx context.Context, file *models.File) error
	DownloadFolder(ctx context.Context, folder *models.Folder) error
	DownloadArchive(ctx context.Context, name string, fileIDs, folderIDs []int64) error
}

// ToggleSelection flips node in the selection and reports whether the view
// is in selection mode afterwards.
func (n *Navigator) ToggleSelection(node models.Node) bool {
	return n.view.ToggleSelection(node.Kind(), node.NodeID())
}

// ClearSelection empties the selection.
func (n *Navigator) ClearSelection() {
	n.view.ClearSelection()
}

// Selection returns a copy of the selection.
func (n *Navigator) Selection() state.SelectionSet {
	return n.view.Selection()
}

// BulkDelete deletes every selected file, then every selected folder, one
// at a time. Failures do not stop the loop; they are joined into the
// returned error and the listing is reloaded.
func (n *Navigator) BulkDelete(ctx context.Context) (int, error) {
	sel := n.view.Selection()
	if !sel.InSelectionMode() {
		return 0, invalid("delete", ErrEmptySelection)
	}

	var errs []error
	succeeded := 0
	for _, id := range sel.FileIDs() {
		if err := n.api.DeleteFile(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("file %d: %w", id, err))
			continue
		}
		succeeded++
		n.view.UpdateListing(func(l tree.Listing) tree.Listing { return l.RemoveFile(id) })
	}
	for _, id := range sel.FolderIDs() {
		if err := n.api.DeleteFolder(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("folder %d: %w", id, err))
			continue
		}
		succeeded++
		n.view.UpdateListing(func(l tree.Listing) tree.Listing { return l.RemoveFolder(id) })
	}
	n.view.ClearSelection()

	if len(errs) > 0 {
		n.logger.Warn().Int("failed", len(errs)).Int("succeeded", succeeded).Msg("bulk delete finished with errors")
		n.forceRefresh(ctx)
		return succeeded, errors.Join(errs...)
	}
	return succeeded, nil
}

// BulkDownload downloads the selection: a single item directly, several
// items as one archive.
func (n *Navigator) BulkDownload(ctx context.Context, dl Downloader) error {
	sel := n.view.Selection()
	count := sel.Count()
	if count == 0 {
		return invalid("download", ErrEmptySelection)
	}

	var err error
	if count > 1 {
		name := fmt.Sprintf("archive_%d_items.zip", count)
		err = dl.DownloadArchive(ctx, name, sel.FileIDs(), sel.FolderIDs())
	} else {
		err = n.downloadOne(ctx, dl, sel)
	}
	if err != nil {
		return err
	}
	n.view.ClearSelection()
	return nil
}

func (n *Navigator) downloadOne(ctx context.Context, dl Downloader, sel state.SelectionSet) error {
	listing := n.view.Listing()
	if ids := sel.FileIDs(); len(ids) == 1 {
		file := listing.FindFile(ids[0])
		if file == nil {
			return invalid("download", ErrNotInListing)
		}
		return dl.DownloadFile(ctx, file)
	}
	folder := listing.FindFolder(sel.FolderIDs()[0])
	if folder == nil {
		return invalid("download", ErrNotInListing)
	}
	return dl.DownloadFolder(ctx, folder)
}

// SetSort changes the display order.
func (n *Navigator) SetSort(opts tree.SortOptions) {
	n.view.SetSort(opts)
}

// Sorted returns the current listing in display order.
func (n *Navigator) Sorted() []models.Node {
	return n.view.Sorted()
}

// OpenContextMenu opens the context menu at (x, y) on node, or on the
// background when node is nil.
func (n *Navigator) OpenContextMenu(x, y int, node models.Node) {
	n.view.OpenContextMenu(state.NewContextMenu(x, y, node))
}

// CloseContextMenu closes the context menu.
func (n *Navigator) CloseContextMenu() {
	n.view.CloseContextMenu()
}
