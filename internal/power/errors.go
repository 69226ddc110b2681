package power

import "errors"

var (
	// ErrNotInitialized is returned by operations that need Init first.
	ErrNotInitialized = errors.New("power manager not initialized")

	// ErrNoBacklight is returned when no backlight device is configured.
	ErrNoBacklight = errors.New("no backlight device")

	// ErrInvalidBrightness is returned when sysfs holds a value that is
	// not a non-negative integer.
	ErrInvalidBrightness = errors.New("invalid brightness value")
)
