package navigator

import (
	"context"
	"fmt"

	"github.com/capiweb/capishare/internal/models"
	"github.com/capiweb/capishare/internal/tree"
	"github.com/capiweb/capishare/internal/util/sanitize"
	"github.com/capiweb/capishare/internal/validation"
)

func validateName(op, name string) (string, error) {
	name = sanitize.Name(name)
	if name == "" {
		return "", invalid(op, ErrEmptyName)
	}
	if err := validation.ValidateFilename(name); err != nil {
		return "", invalid(op, fmt.Errorf("%w: %v", ErrInvalidName, err))
	}
	return name, nil
}

// validateMove rejects moves that cannot succeed. It may fetch ancestors of
// the target but never mutates anything.
func (n *Navigator) validateMove(ctx context.Context, node models.Node, target *int64) error {
	inCurrent := models.SameID(n.view.CurrentFolderID(), target) && n.view.Listing().Contains(node.Kind(), node.NodeID())
	if inCurrent || models.SameID(node.Parent(), target) {
		return invalid("move", ErrAlreadyInTarget)
	}
	if node.Kind() != models.KindFolder || target == nil {
		return nil
	}
	if *target == node.NodeID() {
		return invalid("move", ErrMoveIntoSelf)
	}

	inside, err := tree.IsDescendantOrSelf(ctx, n.api, node.NodeID(), *target, n.opts.MaxDepth)
	if err != nil {
		return fmt.Errorf("failed to check folder ancestry: %w", err)
	}
	if inside {
		return invalid("move", ErrMoveIntoDescendant)
	}
	return nil
}

// Move moves node into the folder target (nil for the scope root). On
// success the node leaves the current listing; on failure the listing is
// reloaded.
func (n *Navigator) Move(ctx context.Context, node models.Node, target *int64) error {
	if err := n.validateMove(ctx, node, target); err != nil {
		return err
	}

	var err error
	if node.Kind() == models.KindFolder {
		err = n.api.MoveFolderToFolder(ctx, node.NodeID(), target)
	} else {
		err = n.api.MoveFileToFolder(ctx, node.NodeID(), target)
	}
	if err != nil {
		n.forceRefresh(ctx)
		return fmt.Errorf("failed to move %s %d: %w", node.Kind(), node.NodeID(), err)
	}

	n.logger.Info().Str("kind", string(node.Kind())).Int64("id", node.NodeID()).Str("target", models.FormatID(target)).Msg("moved")
	n.view.UpdateListing(func(l tree.Listing) tree.Listing { return l.Remove(node) })
	n.view.Deselect(node.Kind(), node.NodeID())
	return nil
}

// Drop is the pointer drag-and-drop path. Dropping onto a file is ignored.
func (n *Navigator) Drop(ctx context.Context, node models.Node, target models.Node) error {
	if target == nil || target.Kind() != models.KindFolder {
		return nil
	}
	return n.Move(ctx, node, models.ID(target.NodeID()))
}

// CreateFolder creates name inside the current folder.
func (n *Navigator) CreateFolder(ctx context.Context, name string) (*models.Folder, error) {
	name, err := validateName("create folder", name)
	if err != nil {
		return nil, err
	}

	folder, err := n.api.CreateFolder(ctx, name, n.view.CurrentFolderID())
	if err != nil {
		n.forceRefresh(ctx)
		return nil, err
	}
	n.view.UpdateListing(func(l tree.Listing) tree.Listing { return l.AddFolder(folder) })
	return folder, nil
}

// RenameFile renames a file of the current listing.
func (n *Navigator) RenameFile(ctx context.Context, id int64, name string) error {
	name, err := validateName("rename file", name)
	if err != nil {
		return err
	}

	file, err := n.api.RenameFile(ctx, id, name)
	if err != nil {
		n.forceRefresh(ctx)
		return err
	}
	if file != nil && file.Filename != "" {
		name = file.Filename
	}
	n.view.UpdateListing(func(l tree.Listing) tree.Listing { return l.RenameFile(id, name) })
	return nil
}

// RenameFolder renames a folder of the current listing.
func (n *Navigator) RenameFolder(ctx context.Context, id int64, name string) error {
	name, err := validateName("rename folder", name)
	if err != nil {
		return err
	}

	folder, err := n.api.RenameFolder(ctx, id, name)
	if err != nil {
		n.forceRefresh(ctx)
		return err
	}
	if folder != nil && folder.Name != "" {
		name = folder.Name
	}
	n.view.UpdateListing(func(l tree.Listing) tree.Listing { return l.RenameFolder(id, name) })
	return nil
}

// DeleteFile deletes a file.
func (n *Navigator) DeleteFile(ctx context.Context, id int64) error {
	if err := n.api.DeleteFile(ctx, id); err != nil {
		n.forceRefresh(ctx)
		return err
	}
	n.view.UpdateListing(func(l tree.Listing) tree.Listing { return l.RemoveFile(id) })
	n.view.Deselect(models.KindFile, id)
	return nil
}

// DeleteFolder deletes a folder and everything in it.
func (n *Navigator) DeleteFolder(ctx context.Context, id int64) error {
	if err := n.api.DeleteFolder(ctx, id); err != nil {
		n.forceRefresh(ctx)
		return err
	}
	n.view.UpdateListing(func(l tree.Listing) tree.Listing { return l.RemoveFolder(id) })
	n.view.Deselect(models.KindFolder, id)
	return nil
}

// MarkFileViewed flags a file as viewed. The flag is set locally first and
// rolled back if the server rejects it.
func (n *Navigator) MarkFileViewed(ctx context.Context, id int64) error {
	file := n.view.Listing().FindFile(id)
	if file == nil {
		return invalid("mark viewed", ErrNotInListing)
	}
	if file.IsViewed {
		return nil
	}

	n.view.UpdateListing(func(l tree.Listing) tree.Listing { return l.SetFileViewed(id, true) })
	if err := n.api.MarkFileViewed(ctx, id); err != nil {
		n.view.UpdateListing(func(l tree.Listing) tree.Listing { return l.SetFileViewed(id, false) })
		return fmt.Errorf("failed to mark file %d viewed: %w", id, err)
	}
	return nil
}

// UnreadCount returns the number of files in the current listing not yet viewed.
func (n *Navigator) UnreadCount() int {
	return n.view.Listing().UnreadCount()
}
