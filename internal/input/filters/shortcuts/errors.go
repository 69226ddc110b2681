package shortcuts

import "errors"

var (
	// ErrUnknownAction is returned when an action name has no handler.
	ErrUnknownAction = errors.New("unknown action")

	// ErrDuplicateBinding is returned when two bindings use the same combo.
	ErrDuplicateBinding = errors.New("duplicate shortcut")
)
