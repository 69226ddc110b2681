package input

import (
	"github.com/dshills/waystorm/internal/geom"
)

// ScreenGeometry describes the output layout in global coordinates.
type ScreenGeometry interface {
	// Outputs returns the output rectangles in output index order.
	Outputs() []geom.Rect
}

// Window is a client window as seen by the input pipeline.
// Implementations must be comparable; pointer types are expected.
type Window interface {
	ID() string
	Geometry() geom.Rect
	IsActive() bool
}

// WindowLookup resolves windows for focus and activation.
type WindowLookup interface {
	// WindowAt returns the topmost window accepting input at p, or nil.
	WindowAt(p geom.Point) Window
	// ActiveWindow returns the active window, or nil.
	ActiveWindow() Window
	// Activate makes w the active window.
	Activate(w Window)
}

// LifetimeNotifier reports client destruction so focus references can be
// dropped.
type LifetimeNotifier interface {
	OnWindowDestroyed(fn func(Window))
}

// ActivationNotifier reports window activation.
type ActivationNotifier interface {
	OnWindowActivated(fn func(Window))
}

// Delivery receives events that no filter handled. Positions are local to
// the target window.
type Delivery interface {
	Key(target Window, ev KeyEvent)
	PointerButton(target Window, ev PointerButtonEvent, local geom.Point)
	PointerMotion(target Window, ev PointerMotionEvent, local geom.Point)
	PointerAxis(target Window, ev PointerAxisEvent)
	TouchDown(target Window, ev TouchEvent, local geom.Point)
	TouchMotion(target Window, ev TouchEvent, local geom.Point)
	TouchUp(target Window, ev TouchEvent)
	TouchFrame(target Window)
	TouchCancel(target Window)
}

// NopDelivery drops every event.
type NopDelivery struct{}

func (NopDelivery) Key(Window, KeyEvent) {}
func (NopDelivery) PointerButton(Window, PointerButtonEvent, geom.Point) {}
func (NopDelivery) PointerMotion(Window, PointerMotionEvent, geom.Point) {}
func (NopDelivery) PointerAxis(Window, PointerAxisEvent) {}
func (NopDelivery) TouchDown(Window, TouchEvent, geom.Point) {}
func (NopDelivery) TouchMotion(Window, TouchEvent, geom.Point) {}
func (NopDelivery) TouchUp(Window, TouchEvent) {}
func (NopDelivery) TouchFrame(Window) {}
func (NopDelivery) TouchCancel(Window) {}

// Poster runs functions later on the main loop.
type Poster interface {
	Post(fn func())
}
