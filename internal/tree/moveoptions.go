package tree

import (
	"context"
	"fmt"

	"github.com/capiweb/capishare/internal/logging"
	"github.com/capiweb/capishare/internal/models"
)

// FolderLister lists the direct subfolders of a folder.
type FolderLister interface {
	ListFolders(ctx context.Context, parentID *int64, scope models.Scope) ([]*models.Folder, error)
}

// FlattenMoveOptions lists every folder of scope as a move target. The folder
// tree is fetched breadth-first, then emitted depth-first so each folder is
// followed by its subfolders. The root comes first at depth 0.
//
// A failed listing below the root leaves that subtree empty; a failed root
// listing is returned as an error.
func FlattenMoveOptions(ctx context.Context, lister FolderLister, scope models.Scope, logger *logging.Logger) ([]models.MoveOption, error) {
	logger = logging.OrNop(logger)

	children := make(map[int64][]*models.Folder)
	rootFolders, err := lister.ListFolders(ctx, nil, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list root folders: %w", err)
	}

	visited := make(map[int64]bool)
	queue := make([]*models.Folder, 0, len(rootFolders))
	queue = append(queue, rootFolders...)
	for len(queue) > 0 {
		folder := queue[0]
		queue = queue[1:]
		if visited[folder.ID] {
			continue
		}
		visited[folder.ID] = true

		subs, err := lister.ListFolders(ctx, models.ID(folder.ID), scope)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Debug().Int64("folder", folder.ID).Err(err).Msg("skipping unreadable folder")
			continue
		}
		children[folder.ID] = subs
		for _, s := range subs {
			if !visited[s.ID] {
				queue = append(queue, s)
			}
		}
	}

	options := []models.MoveOption{{Name: scope.RootLabel(), Depth: 0}}
	emitted := make(map[int64]bool)
	var traverse func(folders []*models.Folder, depth int)
	traverse = func(folders []*models.Folder, depth int) {
		for _, f := range folders {
			if emitted[f.ID] {
				continue
			}
			emitted[f.ID] = true
			options = append(options, models.MoveOption{ID: models.ID(f.ID), Name: f.Name, Depth: depth})
			traverse(children[f.ID], depth+1)
		}
	}
	traverse(rootFolders, 1)
	return options, nil
}
