package remote

import "errors"

var (
	// ErrNotOpen is returned by Run before Open succeeded.
	ErrNotOpen = errors.New("remote input server not open")

	// ErrMalformed is returned for messages that are not JSON objects.
	ErrMalformed = errors.New("malformed message")

	// ErrUnknownMessage is returned for an unknown message type.
	ErrUnknownMessage = errors.New("unknown message type")

	// ErrMissingField is returned when a required field is absent.
	ErrMissingField = errors.New("missing field")

	// ErrInvalidField is returned when a field has the wrong type or value.
	ErrInvalidField = errors.New("invalid field")
)
