// Package backend holds the input sources that stand in for real evdev
// devices: a terminal, a nested window and a remote websocket feed. Every
// backend is a connection.Source, so its events take the same path through
// the connection queue as hardware events.
package backend

import (
	"context"
	"time"

	"github.com/dshills/waystorm/internal/geom"
	"github.com/dshills/waystorm/internal/input"
	"github.com/dshills/waystorm/internal/input/connection"
	"github.com/dshills/waystorm/internal/input/key"
)

// Backend is an input source with a name.
type Backend interface {
	connection.Source
	Name() string
}

// MainThread is implemented by backends that must own the main goroutine,
// such as windowed ones. RunMain blocks until ctx is done or the window
// is closed.
type MainThread interface {
	RunMain(ctx context.Context) error
}

// Emitter turns high level input into raw events for one device.
type Emitter struct {
	sink   connection.Sink
	device string
	caps   []input.Capability
	start  time.Time
	now    func() time.Time
}

// NewEmitter creates an emitter that pushes events for device into sink.
func NewEmitter(sink connection.Sink, device string) *Emitter {
	return &Emitter{
		sink:   sink,
		device: device,
		start:  time.Now(),
		now:    time.Now,
	}
}

// Device returns the device name.
func (e *Emitter) Device() string { return e.device }

// Time returns milliseconds since the emitter was created.
func (e *Emitter) Time() uint32 {
	return uint32(e.now().Sub(e.start).Milliseconds())
}

func (e *Emitter) push(ev connection.Event) {
	ev.Device = e.device
	ev.Time = e.Time()
	e.sink.Push(ev)
}

// Added announces the device with the given capabilities.
func (e *Emitter) Added(caps ...input.Capability) {
	e.caps = append([]input.Capability(nil), caps...)
	e.push(connection.Event{Type: connection.EventDeviceAdded, Caps: e.caps})
}

// Removed announces that the device went away, with the capabilities it
// was added with.
func (e *Emitter) Removed() {
	e.push(connection.Event{Type: connection.EventDeviceRemoved, Caps: e.caps})
	e.caps = nil
}

// Key emits a single key event.
func (e *Emitter) Key(code key.Code, state input.KeyState) {
	e.push(connection.Event{
		Type:     connection.EventKeyboardKey,
		Key:      uint32(code),
		KeyState: state,
	})
}

var modifierKeys = []struct {
	mod  key.Modifier
	code key.Code
}{
	{key.ModCtrl, key.CodeLeftCtrl},
	{key.ModAlt, key.CodeLeftAlt},
	{key.ModShift, key.CodeLeftShift},
	{key.ModMeta, key.CodeLeftMeta},
}

// Tap emits a press and release of code with mods held around it.
// Modifiers are released in reverse order.
func (e *Emitter) Tap(code key.Code, mods key.Modifier) {
	for _, m := range modifierKeys {
		if mods.Has(m.mod) {
			e.Key(m.code, input.KeyPressed)
		}
	}
	e.Key(code, input.KeyPressed)
	e.Key(code, input.KeyReleased)
	for i := len(modifierKeys) - 1; i >= 0; i-- {
		if mods.Has(modifierKeys[i].mod) {
			e.Key(modifierKeys[i].code, input.KeyReleased)
		}
	}
}

// Button emits a pointer button event.
func (e *Emitter) Button(button uint32, state input.ButtonState) {
	e.push(connection.Event{
		Type:        connection.EventPointerButton,
		Button:      button,
		ButtonState: state,
	})
}

// Motion emits relative pointer motion.
func (e *Emitter) Motion(delta geom.Point) {
	e.push(connection.Event{Type: connection.EventPointerMotion, Delta: delta})
}

// MotionAbsolute emits absolute pointer motion in normalized coordinates.
func (e *Emitter) MotionAbsolute(norm geom.Point, output int) {
	e.push(connection.Event{
		Type:   connection.EventPointerMotionAbsolute,
		Norm:   norm,
		Output: output,
	})
}

// Axis emits a scroll event.
func (e *Emitter) Axis(axis input.Axis, delta float64) {
	e.push(connection.Event{
		Type:      connection.EventPointerAxis,
		Axis:      axis,
		AxisDelta: delta,
	})
}

// TouchDown emits a new contact.
func (e *Emitter) TouchDown(id int32, norm geom.Point, output int) {
	e.push(connection.Event{
		Type:    connection.EventTouchDown,
		TouchID: id,
		Norm:    norm,
		Output:  output,
	})
}

// TouchMotion emits contact motion.
func (e *Emitter) TouchMotion(id int32, norm geom.Point, output int) {
	e.push(connection.Event{
		Type:    connection.EventTouchMotion,
		TouchID: id,
		Norm:    norm,
		Output:  output,
	})
}

// TouchUp emits a lifted contact.
func (e *Emitter) TouchUp(id int32) {
	e.push(connection.Event{Type: connection.EventTouchUp, TouchID: id})
}

// TouchFrame ends a group of touch events.
func (e *Emitter) TouchFrame() {
	e.push(connection.Event{Type: connection.EventTouchFrame})
}

// TouchCancel aborts every contact of the device.
func (e *Emitter) TouchCancel() {
	e.push(connection.Event{Type: connection.EventTouchCancel})
}
