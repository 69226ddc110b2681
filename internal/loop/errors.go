package loop

import "errors"

// ErrAlreadyRunning is returned when Run is called on a running loop.
var ErrAlreadyRunning = errors.New("event loop already running")
