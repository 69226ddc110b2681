package connection

import (
	"fmt"

	"github.com/dshills/waystorm/internal/geom"
	"github.com/dshills/waystorm/internal/input"
)

// EventType identifies a raw event collected by a Source.
type EventType uint8

const (
	// EventDeviceAdded announces a new device and its capabilities.
	EventDeviceAdded EventType = iota
	// EventDeviceRemoved announces that a device went away.
	EventDeviceRemoved
	// EventKeyboardKey is a key press, release or repeat.
	EventKeyboardKey
	// EventPointerButton is a pointer button press or release.
	EventPointerButton
	// EventPointerMotion is relative pointer motion.
	EventPointerMotion
	// EventPointerMotionAbsolute is absolute pointer motion in normalized
	// device coordinates.
	EventPointerMotionAbsolute
	// EventPointerAxis is a scroll event.
	EventPointerAxis
	// EventTouchDown is a new contact in normalized device coordinates.
	EventTouchDown
	// EventTouchMotion is contact motion in normalized device coordinates.
	EventTouchMotion
	// EventTouchUp is a lifted contact.
	EventTouchUp
	// EventTouchFrame ends a set of simultaneous touch events.
	EventTouchFrame
	// EventTouchCancel aborts all contacts of the device.
	EventTouchCancel
)

var eventTypeNames = [...]string{
	EventDeviceAdded:           "device-added",
	EventDeviceRemoved:         "device-removed",
	EventKeyboardKey:           "keyboard-key",
	EventPointerButton:         "pointer-button",
	EventPointerMotion:         "pointer-motion",
	EventPointerMotionAbsolute: "pointer-motion-absolute",
	EventPointerAxis:           "pointer-axis",
	EventTouchDown:             "touch-down",
	EventTouchMotion:           "touch-motion",
	EventTouchUp:               "touch-up",
	EventTouchFrame:            "touch-frame",
	EventTouchCancel:           "touch-cancel",
}

// String returns a string representation of the event type.
func (t EventType) String() string {
	if int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return fmt.Sprintf("event(%d)", uint8(t))
}

// IsDeviceEvent reports whether t is a device lifecycle event.
func (t EventType) IsDeviceEvent() bool {
	return t == EventDeviceAdded || t == EventDeviceRemoved
}

// NoOutput marks an absolute event that is not bound to a specific output.
const NoOutput = -1

// Event is a raw event as produced by a Source. Only the fields relevant
// to Type are set.
type Event struct {
	Type   EventType
	Device string
	// Time is the event time in milliseconds.
	Time uint32

	// Caps lists the device capabilities for device events.
	Caps []input.Capability

	Key      uint32
	KeyState input.KeyState

	Button      uint32
	ButtonState input.ButtonState

	// Delta is the relative motion for EventPointerMotion.
	Delta geom.Point

	Axis      input.Axis
	AxisDelta float64

	// TouchID is the contact id for touch events.
	TouchID int32
	// Norm is the normalized position (0..1 on each axis) for absolute
	// pointer and touch events. Values outside 0..1 are allowed.
	Norm geom.Point
	// Output binds an absolute event to an output index, or NoOutput.
	Output int
}
