// Package services wires the API client, the transfer coordinators, the
// asset loader and the navigators into one application root. It is
// frontend-agnostic: the CLI and the interactive shell both drive it.
package services

import (
	"errors"

	"github.com/capiweb/capishare/internal/transfer"
)

var (
	// ErrIsDirectory is returned when a directory is passed for upload.
	ErrIsDirectory = errors.New("cannot upload a directory")
	// ErrNothingToTransfer is returned for an empty upload or download request.
	ErrNothingToTransfer = errors.New("nothing to transfer")
	// ErrClosed is returned once the App has been closed.
	ErrClosed = errors.New("application closed")
)

// Batch identifies a set of tasks enqueued together.
type Batch struct {
	Kind  transfer.Kind
	ID    string
	Tasks []transfer.TaskInfo
}

// Len returns the number of tasks in the batch.
func (b Batch) Len() int {
	return len(b.Tasks)
}
