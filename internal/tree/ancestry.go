package tree

import (
	"context"
	"errors"
	"fmt"

	"github.com/capiweb/capishare/internal/models"
)

var (
	// ErrAncestryLoop means the server returned a parent chain that revisits a folder.
	ErrAncestryLoop = errors.New("folder ancestry contains a loop")
	// ErrDepthExceeded means the chain is deeper than the walk allows.
	ErrDepthExceeded = errors.New("folder ancestry exceeds maximum depth")
)

// FolderSource fetches single folders by id.
type FolderSource interface {
	GetFolder(ctx context.Context, id int64) (*models.Folder, error)
}

// AncestorChain returns the folder id followed by each ancestor up to the
// scope root. Folders are fetched one at a time.
func AncestorChain(ctx context.Context, src FolderSource, id int64, maxDepth int) ([]*models.Folder, error) {
	folder, err := src.GetFolder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch folder %d: %w", id, err)
	}
	return walkUp(ctx, src, folder, maxDepth)
}

// walkUp extends the chain from an already fetched folder.
func walkUp(ctx context.Context, src FolderSource, start *models.Folder, maxDepth int) ([]*models.Folder, error) {
	chain := []*models.Folder{start}
	seen := map[int64]bool{start.ID: true}

	cur := start
	for cur.ParentID != nil {
		if len(chain) >= maxDepth {
			return chain, ErrDepthExceeded
		}
		pid := *cur.ParentID
		if seen[pid] {
			return chain, fmt.Errorf("%w at folder %d", ErrAncestryLoop, pid)
		}
		parent, err := src.GetFolder(ctx, pid)
		if err != nil {
			return chain, fmt.Errorf("failed to fetch folder %d: %w", pid, err)
		}
		seen[pid] = true
		chain = append(chain, parent)
		cur = parent
	}
	return chain, nil
}

// IsDescendantOrSelf reports whether targetID is ancestorID or lies below it.
// The walk starts at the target and fetches parents until it reaches the root
// or finds ancestorID.
func IsDescendantOrSelf(ctx context.Context, src FolderSource, ancestorID, targetID int64, maxDepth int) (bool, error) {
	seen := make(map[int64]bool)
	cur := targetID
	for depth := 0; ; depth++ {
		if cur == ancestorID {
			return true, nil
		}
		if depth >= maxDepth {
			return false, ErrDepthExceeded
		}
		if seen[cur] {
			return false, fmt.Errorf("%w at folder %d", ErrAncestryLoop, cur)
		}
		seen[cur] = true

		folder, err := src.GetFolder(ctx, cur)
		if err != nil {
			return false, fmt.Errorf("failed to fetch folder %d: %w", cur, err)
		}
		if folder.ParentID == nil {
			return false, nil
		}
		cur = *folder.ParentID
	}
}

// BuildBreadcrumbs returns the path from the scope root to target. A nil
// target yields only the root. When an ancestor cannot be fetched the path
// degrades to root followed by target.
func BuildBreadcrumbs(ctx context.Context, src FolderSource, scope models.Scope, target *models.Folder, maxDepth int) []models.Breadcrumb {
	root := models.RootBreadcrumb(scope)
	if target == nil {
		return []models.Breadcrumb{root}
	}

	chain, err := walkUp(ctx, src, target, maxDepth)
	if err != nil {
		return []models.Breadcrumb{root, crumb(target)}
	}

	crumbs := make([]models.Breadcrumb, 0, len(chain)+1)
	crumbs = append(crumbs, root)
	for i := len(chain) - 1; i >= 0; i-- {
		crumbs = append(crumbs, crumb(chain[i]))
	}
	return crumbs
}

func crumb(f *models.Folder) models.Breadcrumb {
	return models.Breadcrumb{ID: models.ID(f.ID), Name: f.Name}
}
