package workspace

import (
	"github.com/dshills/waystorm/internal/geom"
)

// Window is a client window tracked by a Workspace.
type Window struct {
	ws *Workspace

	id           string
	title        string
	geometry     geom.Rect
	active       bool
	acceptsInput bool
}

// ID returns the window id.
func (w *Window) ID() string { return w.id }

// Title returns the window title.
func (w *Window) Title() string {
	w.ws.mu.RLock()
	defer w.ws.mu.RUnlock()
	return w.title
}

// Geometry returns the frame rectangle in global coordinates.
func (w *Window) Geometry() geom.Rect {
	w.ws.mu.RLock()
	defer w.ws.mu.RUnlock()
	return w.geometry
}

// IsActive reports whether the window is the active window.
func (w *Window) IsActive() bool {
	w.ws.mu.RLock()
	defer w.ws.mu.RUnlock()
	return w.active
}

// AcceptsInput reports whether the window takes pointer and touch input.
func (w *Window) AcceptsInput() bool {
	w.ws.mu.RLock()
	defer w.ws.mu.RUnlock()
	return w.acceptsInput
}

// SetAcceptsInput marks the window as taking input or being click-through.
func (w *Window) SetAcceptsInput(v bool) {
	w.ws.mu.Lock()
	defer w.ws.mu.Unlock()
	w.acceptsInput = v
}

// SetTitle updates the window title.
func (w *Window) SetTitle(title string) {
	w.ws.mu.Lock()
	defer w.ws.mu.Unlock()
	w.title = title
}

func (w *Window) String() string {
	return w.id
}
