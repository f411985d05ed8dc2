package state

import (
	"sync"

	"github.com/capiweb/capishare/internal/events"
	"github.com/capiweb/capishare/internal/models"
	"github.com/capiweb/capishare/internal/tree"
)

// FolderView is the observable state of the folder browser: the current
// location, its listing, the loading flag, the selection and the context menu.
// Thread-safe. Events are published after the lock is released.
type FolderView struct {
	eventBus *events.EventBus

	scope       models.Scope
	folder      *models.Folder
	breadcrumbs []models.Breadcrumb
	listing     tree.Listing
	loading     bool
	selection   SelectionSet
	menu        ContextMenu
	sort        tree.SortOptions
	lastError   error

	mu sync.RWMutex
}

// NewFolderView creates a view positioned at the root of scope.
func NewFolderView(scope models.Scope, eventBus *events.EventBus) *FolderView {
	return &FolderView{
		eventBus:    eventBus,
		scope:       scope,
		breadcrumbs: []models.Breadcrumb{models.RootBreadcrumb(scope)},
		selection:   NewSelectionSet(),
		sort:        tree.DefaultSortOptions(),
	}
}

// mutate applies fn under the write lock and publishes an event of type t
// with the resulting snapshot.
func (v *FolderView) mutate(t events.EventType, fn func()) {
	v.mu.Lock()
	fn()
	snap := v.snapshotLocked()
	v.mu.Unlock()

	if v.eventBus != nil {
		v.eventBus.Publish(NewViewEvent(t, snap))
	}
}

// Snapshot returns a deep copy of the current state.
func (v *FolderView) Snapshot() ViewSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snapshotLocked()
}

func (v *FolderView) snapshotLocked() ViewSnapshot {
	snap := ViewSnapshot{
		Scope:       v.scope,
		Breadcrumbs: append([]models.Breadcrumb(nil), v.breadcrumbs...),
		Listing:     v.listing.Clone(),
		Loading:     v.loading,
		Selection:   v.selection.Clone(),
		Menu:        v.menu,
		Sort:        v.sort,
		Err:         v.lastError,
	}
	if v.folder != nil {
		snap.Folder = v.folder.Clone()
	}
	switch n := v.menu.Node.(type) {
	case *models.File:
		snap.Menu.Node = n.Clone()
	case *models.Folder:
		snap.Menu.Node = n.Clone()
	}
	return snap
}

// Listing returns the current listing. Listings are never mutated in place,
// so the result is safe to read without copying.
func (v *FolderView) Listing() tree.Listing {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.listing
}

// SetListing replaces the listing and clears the last error.
func (v *FolderView) SetListing(l tree.Listing) {
	v.mutate(EventViewChanged, func() {
		v.listing = l
		v.lastError = nil
	})
}

// UpdateListing replaces the listing with fn applied to it, atomically.
func (v *FolderView) UpdateListing(fn func(tree.Listing) tree.Listing) {
	v.mutate(EventViewChanged, func() {
		v.listing = fn(v.listing)
	})
}

// SetLoading sets the loading flag.
func (v *FolderView) SetLoading(loading bool) {
	v.mutate(EventViewLoading, func() {
		v.loading = loading
	})
}

// IsLoading reports whether a load is in progress.
func (v *FolderView) IsLoading() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.loading
}

// SetError records a failed load or mutation.
func (v *FolderView) SetError(err error) {
	v.mutate(EventViewError, func() {
		v.lastError = err
	})
}

// Err returns the last recorded error.
func (v *FolderView) Err() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.lastError
}

// Enter moves the view to folder (nil for the scope root) with the given
// breadcrumbs. The listing and selection are emptied and the menu closed.
func (v *FolderView) Enter(scope models.Scope, folder *models.Folder, crumbs []models.Breadcrumb) {
	v.mutate(EventViewChanged, func() {
		v.scope = scope
		v.folder = folder
		v.breadcrumbs = crumbs
		v.listing = tree.Listing{}
		v.selection.Clear()
		v.menu = ContextMenu{}
	})
}

// SetBreadcrumbs replaces the breadcrumb path.
func (v *FolderView) SetBreadcrumbs(crumbs []models.Breadcrumb) {
	v.mutate(EventViewChanged, func() {
		v.breadcrumbs = crumbs
	})
}

// Location returns the scope and current folder (nil at the root).
func (v *FolderView) Location() (models.Scope, *models.Folder) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.scope, v.folder
}

// CurrentFolderID returns the current folder id, nil at the root.
func (v *FolderView) CurrentFolderID() *int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.folder == nil {
		return nil
	}
	return models.ID(v.folder.ID)
}

// Breadcrumbs returns a copy of the breadcrumb path.
func (v *FolderView) Breadcrumbs() []models.Breadcrumb {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]models.Breadcrumb(nil), v.breadcrumbs...)
}

// ToggleSelection toggles node and returns whether the view is in selection mode afterwards.
func (v *FolderView) ToggleSelection(kind models.NodeKind, id int64) bool {
	var mode bool
	v.mutate(EventSelectionChanged, func() {
		v.selection.Toggle(kind, id)
		mode = v.selection.InSelectionMode()
	})
	return mode
}

// Deselect removes one node from the selection.
func (v *FolderView) Deselect(kind models.NodeKind, id int64) {
	v.mutate(EventSelectionChanged, func() {
		v.selection.Remove(kind, id)
	})
}

// ClearSelection empties the selection.
func (v *FolderView) ClearSelection() {
	v.mutate(EventSelectionChanged, func() {
		v.selection.Clear()
	})
}

// Selection returns a copy of the selection.
func (v *FolderView) Selection() SelectionSet {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.selection.Clone()
}

// OpenContextMenu opens the menu.
func (v *FolderView) OpenContextMenu(menu ContextMenu) {
	v.mutate(EventContextMenuChanged, func() {
		v.menu = menu
	})
}

// CloseContextMenu closes the menu.
func (v *FolderView) CloseContextMenu() {
	v.mutate(EventContextMenuChanged, func() {
		v.menu = ContextMenu{}
	})
}

// ContextMenu returns the current menu state.
func (v *FolderView) ContextMenu() ContextMenu {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.menu
}

// SetSort changes the display order.
func (v *FolderView) SetSort(opts tree.SortOptions) {
	v.mutate(EventViewChanged, func() {
		v.sort = opts
	})
}

// Sort returns the current sort options.
func (v *FolderView) Sort() tree.SortOptions {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.sort
}

// Sorted returns the listing in display order.
func (v *FolderView) Sorted() []models.Node {
	v.mu.RLock()
	l, opts := v.listing, v.sort
	v.mu.RUnlock()
	return tree.Sort(l, opts)
}
