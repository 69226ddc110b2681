package script

import "errors"

var (
	// ErrScriptTimeout is returned when a script exceeds its time budget.
	ErrScriptTimeout = errors.New("script timed out")

	// ErrClosed is returned when the filter has been closed.
	ErrClosed = errors.New("script filter closed")
)
