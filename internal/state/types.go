// Package state provides observable state containers for the folder browser.
// Containers publish an event after every change so any frontend (the CLI
// shell today) can subscribe and redraw.
package state

import (
	"github.com/capiweb/capishare/internal/events"
	"github.com/capiweb/capishare/internal/models"
	"github.com/capiweb/capishare/internal/tree"
)

// State event types
const (
	EventViewChanged        events.EventType = "view_changed"
	EventViewLoading        events.EventType = "view_loading"
	EventViewError          events.EventType = "view_error"
	EventSelectionChanged   events.EventType = "selection_changed"
	EventContextMenuChanged events.EventType = "context_menu_changed"
)

// ViewSnapshot is a deep copy of a FolderView. It shares nothing with the view.
type ViewSnapshot struct {
	Scope       models.Scope
	Folder      *models.Folder // nil at the scope root
	Breadcrumbs []models.Breadcrumb
	Listing     tree.Listing
	Loading     bool
	Selection   SelectionSet
	Menu        ContextMenu
	Sort        tree.SortOptions
	Err         error
}

// SelectionMode reports whether at least one node is selected.
func (s ViewSnapshot) SelectionMode() bool {
	return s.Selection.InSelectionMode()
}

// UnreadCount returns the number of listed files not yet viewed.
func (s ViewSnapshot) UnreadCount() int {
	return s.Listing.UnreadCount()
}

// ViewEvent carries the snapshot taken right after a change.
type ViewEvent struct {
	events.BaseEvent
	Snapshot ViewSnapshot
}

// NewViewEvent creates a ViewEvent of type t.
func NewViewEvent(t events.EventType, snap ViewSnapshot) *ViewEvent {
	return &ViewEvent{BaseEvent: events.NewBase(t), Snapshot: snap}
}
