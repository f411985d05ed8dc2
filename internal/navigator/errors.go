package navigator

import (
	"errors"
	"fmt"
)

// Validation failures. They are raised before any request is sent.
var (
	ErrAlreadyInTarget    = errors.New("item is already in the target folder")
	ErrMoveIntoSelf       = errors.New("cannot move a folder into itself")
	ErrMoveIntoDescendant = errors.New("cannot move a folder into one of its subfolders")
	ErrEmptyName          = errors.New("name must not be empty")
	ErrInvalidName        = errors.New("invalid name")
	ErrEmptySelection     = errors.New("nothing selected")
	ErrNotInListing       = errors.New("item is not in the current folder")
)

// ErrNavigationDebounced is returned when the same folder is requested again
// inside the debounce window.
var ErrNavigationDebounced = errors.New("navigation debounced")

// ValidationError is a rejected request that never reached the server.
type ValidationError struct {
	Op  string
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(op string, err error) error {
	return &ValidationError{Op: op, Err: err}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
