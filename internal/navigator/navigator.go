// Package navigator implements folder navigation over the remote resource
// tree: loading listings, breadcrumbs, move validation, selection and bulk
// operations. State lives in a state.FolderView that frontends observe.
package navigator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/capiweb/capishare/internal/constants"
	"github.com/capiweb/capishare/internal/events"
	"github.com/capiweb/capishare/internal/logging"
	"github.com/capiweb/capishare/internal/metrics"
	"github.com/capiweb/capishare/internal/models"
	"github.com/capiweb/capishare/internal/state"
	"github.com/capiweb/capishare/internal/tree"
)

// API is the part of the REST client the navigator needs.
type API interface {
	tree.FolderSource
	tree.FolderLister
	ListFiles(ctx context.Context, folderID *int64, scope models.Scope) ([]*models.File, error)
	CreateFolder(ctx context.Context, name string, parentID *int64) (*models.Folder, error)
	RenameFolder(ctx context.Context, id int64, name string) (*models.Folder, error)
	RenameFile(ctx context.Context, id int64, name string) (*models.File, error)
	DeleteFolder(ctx context.Context, id int64) error
	DeleteFile(ctx context.Context, id int64) error
	MoveFileToFolder(ctx context.Context, id int64, folderID *int64) error
	MoveFolderToFolder(ctx context.Context, id int64, parentID *int64) error
	MarkFolderContentsViewed(ctx context.Context, id int64) error
	MarkFileViewed(ctx context.Context, id int64) error
}

// Options tunes navigator timing. Zero values take the defaults.
type Options struct {
	// MinLoading is the minimum time the view stays in the loading state.
	MinLoading time.Duration
	// NavigateDebounce suppresses a repeated navigation to the same folder.
	NavigateDebounce time.Duration
	// MaxDepth bounds ancestor walks.
	MaxDepth int
	// Now is the clock used for debouncing.
	Now func() time.Time
}

// DefaultOptions returns the standard timings.
func DefaultOptions() Options {
	return Options{
		MinLoading:       constants.MinLoadingDuration,
		NavigateDebounce: constants.NavigateDebounce,
		MaxDepth:         constants.MaxAncestorDepth,
		Now:              time.Now,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinLoading == 0 {
		o.MinLoading = d.MinLoading
	}
	if o.NavigateDebounce == 0 {
		o.NavigateDebounce = d.NavigateDebounce
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = d.MaxDepth
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

// Navigator drives a FolderView against the API.
type Navigator struct {
	api      API
	view     *state.FolderView
	eventBus *events.EventBus
	logger   *logging.Logger
	opts     Options

	mu         sync.Mutex
	generation uint64
	lastTarget string
	lastNavAt  time.Time
}

// New creates a navigator positioned at the root of scope. Call Refresh to
// load the first listing.
func New(api API, scope models.Scope, eventBus *events.EventBus, logger *logging.Logger, opts Options) *Navigator {
	return &Navigator{
		api:      api,
		view:     state.NewFolderView(scope, eventBus),
		eventBus: eventBus,
		logger:   logging.OrNop(logger).Named("navigator"),
		opts:     opts.withDefaults(),
	}
}

// View returns the observable state.
func (n *Navigator) View() *state.FolderView {
	return n.view
}

// Snapshot returns a deep copy of the current state.
func (n *Navigator) Snapshot() state.ViewSnapshot {
	return n.view.Snapshot()
}

func navKey(scope models.Scope, folder *models.Folder) string {
	if folder == nil {
		return string(scope) + ":root"
	}
	return fmt.Sprintf("%s:%d", scope, folder.ID)
}

// NavigateTo enters folder (nil for the scope root). explicitPath, when
// given, is used as the breadcrumb path; otherwise it is rebuilt by walking
// the folder's ancestors.
func (n *Navigator) NavigateTo(ctx context.Context, folder *models.Folder, explicitPath []models.Breadcrumb) error {
	n.mu.Lock()
	scope, leaving := n.view.Location()
	key := navKey(scope, folder)
	now := n.opts.Now()
	if key == n.lastTarget && now.Sub(n.lastNavAt) < n.opts.NavigateDebounce {
		n.mu.Unlock()
		return ErrNavigationDebounced
	}
	n.lastTarget = key
	n.lastNavAt = now
	n.generation++
	gen := n.generation

	var target *models.Folder
	if folder != nil {
		target = folder.Clone()
	}
	crumbs := explicitPath
	if len(crumbs) == 0 {
		crumbs = []models.Breadcrumb{models.RootBreadcrumb(scope)}
	}
	n.view.Enter(scope, target, append([]models.Breadcrumb(nil), crumbs...))
	n.mu.Unlock()

	if leaving != nil && (folder == nil || leaving.ID != folder.ID) {
		n.markFolderViewed(ctx, leaving.ID)
	}

	if len(explicitPath) == 0 && target != nil {
		built := tree.BuildBreadcrumbs(ctx, n.api, scope, target, n.opts.MaxDepth)
		if n.current(gen) {
			n.view.SetBreadcrumbs(built)
		}
	}

	return n.load(ctx, gen)
}

// markFolderViewed tells the server a folder's contents were seen. It does
// not wait for the answer and failures are only logged.
func (n *Navigator) markFolderViewed(ctx context.Context, id int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.MarkViewedTimeout)
	go func() {
		defer cancel()
		if err := n.api.MarkFolderContentsViewed(ctx, id); err != nil {
			n.logger.Debug().Int64("folder", id).Err(err).Msg("failed to mark folder contents viewed")
		}
	}()
}

// NavigateToID resolves id and enters it. A nil id enters the scope root.
func (n *Navigator) NavigateToID(ctx context.Context, id *int64) error {
	if id == nil {
		return n.NavigateTo(ctx, nil, nil)
	}
	folder, err := n.api.GetFolder(ctx, *id)
	if err != nil {
		return fmt.Errorf("failed to open folder %d: %w", *id, err)
	}
	return n.NavigateTo(ctx, folder, nil)
}

// Refresh reloads the current folder.
func (n *Navigator) Refresh(ctx context.Context) error {
	return n.load(ctx, n.nextGeneration())
}

// Reset returns to the root of the current scope.
func (n *Navigator) Reset(ctx context.Context) error {
	scope, _ := n.view.Location()
	return n.SetScope(ctx, scope)
}

// SetScope switches scope and enters its root.
func (n *Navigator) SetScope(ctx context.Context, scope models.Scope) error {
	n.mu.Lock()
	n.generation++
	gen := n.generation
	n.lastTarget = ""
	n.view.Enter(scope, nil, []models.Breadcrumb{models.RootBreadcrumb(scope)})
	n.mu.Unlock()

	return n.load(ctx, gen)
}

func (n *Navigator) nextGeneration() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.generation++
	return n.generation
}

func (n *Navigator) current(gen uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.generation == gen
}

// load fetches files and folders of the current location together and
// publishes them as one listing. Results of a superseded load are dropped.
func (n *Navigator) load(ctx context.Context, gen uint64) error {
	n.mu.Lock()
	if n.generation != gen {
		n.mu.Unlock()
		return nil
	}
	scope, folder := n.view.Location()
	n.view.SetLoading(true)
	n.mu.Unlock()

	var folderID *int64
	if folder != nil {
		folderID = models.ID(folder.ID)
	}
	start := time.Now()

	var files []*models.File
	var folders []*models.Folder
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		files, err = n.api.ListFiles(gctx, folderID, scope)
		return err
	})
	g.Go(func() error {
		var err error
		folders, err = n.api.ListFolders(gctx, folderID, scope)
		return err
	})
	err := g.Wait()

	// Not tied to ctx: the indicator always stays up for the full minimum.
	if wait := n.opts.MinLoading - time.Since(start); wait > 0 {
		time.Sleep(wait)
	}
	metrics.RecordNavigatorLoad(time.Since(start))

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.generation != gen {
		n.logger.Debug().Uint64("generation", gen).Msg("dropping stale listing")
		return nil
	}

	if err != nil {
		n.view.SetError(fmt.Errorf("failed to list %s: %w", models.FormatID(folderID), err))
		n.view.SetLoading(false)
		return err
	}

	n.view.SetListing(tree.Listing{Files: files, Folders: folders})
	n.view.SetLoading(false)
	return nil
}

// forceRefresh reconciles local state with the server after a failed
// mutation. Its own failure is only logged.
func (n *Navigator) forceRefresh(ctx context.Context) {
	if err := n.Refresh(ctx); err != nil {
		n.logger.Warn().Err(err).Msg("refresh after failed mutation also failed")
	}
}

// Watch refreshes the view whenever an upload batch finishes. It blocks
// until ctx is done or the event bus is closed.
func (n *Navigator) Watch(ctx context.Context) {
	if n.eventBus == nil {
		<-ctx.Done()
		return
	}
	ch := n.eventBus.Subscribe(events.EventBatchAllCompleted, events.EventBatchPartialCompleted)
	defer n.eventBus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			batch, isBatch := ev.(*events.BatchEvent)
			if !isBatch || batch.Kind != events.KindUpload {
				continue
			}
			if err := n.Refresh(ctx); err != nil && ctx.Err() == nil {
				n.logger.Warn().Err(err).Str("batch", batch.BatchID).Msg("refresh after upload failed")
			}
		}
	}
}

// MoveOptions lists every folder of the current scope as a move target.
func (n *Navigator) MoveOptions(ctx context.Context) ([]models.MoveOption, error) {
	scope, _ := n.view.Location()
	return tree.FlattenMoveOptions(ctx, n.api, scope, n.logger)
}
