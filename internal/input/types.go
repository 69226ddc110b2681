package input

import (
	"github.com/dshills/waystorm/internal/geom"
)

// KeyState is the state of a key after a key event.
type KeyState uint8

const (
	// KeyReleased indicates the key went up.
	KeyReleased KeyState = iota
	// KeyPressed indicates the key went down.
	KeyPressed
	// KeyRepeated indicates an autorepeat of a held key.
	KeyRepeated
)

// String returns a string representation of the key state.
func (s KeyState) String() string {
	switch s {
	case KeyReleased:
		return "released"
	case KeyPressed:
		return "pressed"
	case KeyRepeated:
		return "repeated"
	default:
		return "unknown"
	}
}

// ButtonState is the state of a pointer button.
type ButtonState uint8

const (
	// ButtonReleased indicates the button went up.
	ButtonReleased ButtonState = iota
	// ButtonPressed indicates the button went down.
	ButtonPressed
)

// String returns a string representation of the button state.
func (s ButtonState) String() string {
	if s == ButtonPressed {
		return "pressed"
	}
	return "released"
}

// Axis identifies a scroll axis.
type Axis uint8

const (
	// AxisVertical is the vertical scroll axis.
	AxisVertical Axis = iota
	// AxisHorizontal is the horizontal scroll axis.
	AxisHorizontal
)

// String returns a string representation of the axis.
func (a Axis) String() string {
	if a == AxisHorizontal {
		return "horizontal"
	}
	return "vertical"
}

// Capability is a class of input device.
type Capability uint8

const (
	// CapKeyboard is set when at least one keyboard is attached.
	CapKeyboard Capability = iota
	// CapPointer is set when at least one pointer device is attached.
	CapPointer
	// CapTouch is set when at least one touch device is attached.
	CapTouch
)

// Capabilities lists every capability in a stable order.
var Capabilities = []Capability{CapKeyboard, CapPointer, CapTouch}

// String returns a string representation of the capability.
func (c Capability) String() string {
	switch c {
	case CapKeyboard:
		return "keyboard"
	case CapPointer:
		return "pointer"
	case CapTouch:
		return "touch"
	default:
		return "unknown"
	}
}

// Linux button codes as found in input-event-codes.h.
const (
	BtnLeft   uint32 = 0x110
	BtnRight  uint32 = 0x111
	BtnMiddle uint32 = 0x112
	BtnSide   uint32 = 0x113
	BtnExtra  uint32 = 0x114
)

// KeyEvent is a normalized keyboard event. Key is a Linux key code.
// Time is in milliseconds.
type KeyEvent struct {
	Key   uint32
	State KeyState
	Time  uint32
}

// PointerButtonEvent is a normalized pointer button event.
// Pos is the pointer position at the time of the event.
type PointerButtonEvent struct {
	Button uint32
	State  ButtonState
	Pos    geom.Point
	Time   uint32
}

// PointerMotionEvent is a normalized pointer motion event.
// For relative motion Delta holds the device delta and Pos the resulting
// position; for absolute motion Delta is zero.
type PointerMotionEvent struct {
	Pos      geom.Point
	Delta    geom.Point
	Absolute bool
	Time     uint32
}

// PointerAxisEvent is a normalized scroll event.
type PointerAxisEvent struct {
	Axis  Axis
	Delta float64
	Time  uint32
}

// TouchEvent is a normalized touch down, motion or up event.
// Pos is in global screen coordinates. Up events carry the last known
// position of the contact.
type TouchEvent struct {
	ID   int32
	Pos  geom.Point
	Time uint32
}
