// Package transfer runs concurrent uploads and downloads and reports their
// aggregate progress. One Coordinator exists per transfer kind.
package transfer

import (
	"context"
	"time"

	"github.com/capiweb/capishare/internal/events"
)

// Kind is the transfer direction.
type Kind string

const (
	KindUpload   Kind = events.KindUpload
	KindDownload Kind = events.KindDownload
)

// State is the lifecycle state of a task. Terminal states are never left.
type State string

const (
	StatePending   State = "pending"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateError     State = "error"
	StateCancelled State = "cancelled"
)

// IsTerminal reports whether s is completed, error or cancelled.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateError || s == StateCancelled
}

// StateLabel returns the display label of state for kind: the active state
// reads "uploading" or "downloading".
func StateLabel(kind Kind, state State) string {
	if state != StateActive {
		return string(state)
	}
	if kind == KindUpload {
		return "uploading"
	}
	return "downloading"
}

// ItemType is what a download fetches.
type ItemType string

const (
	ItemFile    ItemType = "file"
	ItemFolder  ItemType = "folder"
	ItemArchive ItemType = "archive"
)

// Payload describes one transfer. Uploads use LocalPath, Size and FolderID;
// downloads use URL, Dest and ItemType, plus the id lists for archives.
type Payload struct {
	Name string

	LocalPath string
	Size      int64
	FolderID  *int64

	URL       string
	Dest      string
	ItemType  ItemType
	FileIDs   []int64
	FolderIDs []int64
}

// TaskInfo is a read-only copy of a task.
type TaskInfo struct {
	ID        string
	Name      string
	Kind      Kind
	Payload   Payload
	State     State
	Progress  int // 0 to 100
	Loaded    int64
	Total     int64 // -1 when unknown
	Speed     string
	Error     string
	BatchID   string
	CreatedAt time.Time
}

// Label returns the display label of the task state.
func (t TaskInfo) Label() string {
	return StateLabel(t.Kind, t.State)
}

// ProgressFunc receives transferred and total bytes. total is -1 when unknown.
type ProgressFunc func(loaded, total int64)

// Runner performs the transport of a single task. It must return promptly
// once ctx is cancelled.
type Runner interface {
	Run(ctx context.Context, task TaskInfo, progress ProgressFunc) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, task TaskInfo, progress ProgressFunc) error

func (f RunnerFunc) Run(ctx context.Context, task TaskInfo, progress ProgressFunc) error {
	return f(ctx, task, progress)
}

// task is the mutable record behind a TaskInfo, guarded by the coordinator mutex.
type task struct {
	info       TaskInfo
	cancel     context.CancelFunc
	lastLoaded int64
	lastSample time.Time
}

func (t *task) snapshot() TaskInfo {
	info := t.info
	info.Payload.FileIDs = append([]int64(nil), t.info.Payload.FileIDs...)
	info.Payload.FolderIDs = append([]int64(nil), t.info.Payload.FolderIDs...)
	if t.info.Payload.FolderID != nil {
		id := *t.info.Payload.FolderID
		info.Payload.FolderID = &id
	}
	return info
}
