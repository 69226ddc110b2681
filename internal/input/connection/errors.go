package connection

import (
	"errors"
	"fmt"
)

// Sentinel errors for connection operations.
var (
	// ErrNotSetup is returned when an operation needs a running connection.
	ErrNotSetup = errors.New("input connection not set up")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("input connection closed")

	// ErrNoDeviceContext is returned by sources that cannot access the
	// device directory at all.
	ErrNoDeviceContext = errors.New("input device context unavailable")
)

// DeviceError records a failure on a single device.
type DeviceError struct {
	Path string
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("input device %s: %s: %v", e.Path, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeviceError) Unwrap() error {
	return e.Err
}
