package workspace

import "errors"

var (
	// ErrWindowNotFound is returned when a window id is unknown.
	ErrWindowNotFound = errors.New("window not found")

	// ErrDuplicateWindow is returned when a window id is already in use.
	ErrDuplicateWindow = errors.New("window id already exists")

	// ErrNoOutputs is returned when an output layout is empty.
	ErrNoOutputs = errors.New("no outputs")
)
