// Package workspace is an in-memory window stacking model. It answers the
// window lookups the input pipeline needs and reports window destruction.
package workspace

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/waystorm/internal/geom"
	"github.com/dshills/waystorm/internal/input"
)

// Workspace holds the output layout and the window stack, bottom to top.
//
// Workspace is safe for concurrent use. Destruction callbacks run without
// the lock held.
type Workspace struct {
	mu      sync.RWMutex
	outputs []geom.Rect
	stack   []*Window
	byID    map[string]*Window
	active  *Window

	destroyed []func(input.Window)
	activated []func(input.Window)
}

// New creates a workspace over the given outputs.
func New(outputs []geom.Rect) *Workspace {
	ws := &Workspace{
		byID: make(map[string]*Window),
	}
	ws.outputs = append(ws.outputs, outputs...)
	return ws
}

// Outputs returns a copy of the output rectangles in index order.
func (ws *Workspace) Outputs() []geom.Rect {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	out := make([]geom.Rect, len(ws.outputs))
	copy(out, ws.outputs)
	return out
}

// SetOutputs replaces the output layout.
func (ws *Workspace) SetOutputs(outputs []geom.Rect) error {
	if len(outputs) == 0 {
		return ErrNoOutputs
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.outputs = append(ws.outputs[:0:0], outputs...)
	return nil
}

// AddWindow maps a new window on top of the stack and activates it.
func (ws *Workspace) AddWindow(title string, geo geom.Rect) *Window {
	w, _ := ws.AddWindowWithID(uuid.New().String(), title, geo)
	return w
}

// AddWindowWithID is AddWindow with a caller-chosen id.
func (ws *Workspace) AddWindowWithID(id, title string, geo geom.Rect) (*Window, error) {
	ws.mu.Lock()
	if _, exists := ws.byID[id]; exists {
		ws.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateWindow, id)
	}
	w := &Window{
		ws:           ws,
		id:           id,
		title:        title,
		geometry:     geo,
		acceptsInput: true,
	}
	ws.byID[id] = w
	ws.stack = append(ws.stack, w)
	callbacks := ws.activateLocked(w)
	ws.mu.Unlock()

	notify(callbacks, w)
	return w, nil
}

// Window returns the window with the given id, or nil.
func (ws *Workspace) Window(id string) *Window {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.byID[id]
}

// Windows returns the stack, bottom to top.
func (ws *Workspace) Windows() []*Window {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	out := make([]*Window, len(ws.stack))
	copy(out, ws.stack)
	return out
}

// Len returns the number of windows.
func (ws *Workspace) Len() int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return len(ws.stack)
}

// Move sets the geometry of the window with the given id.
func (ws *Workspace) Move(id string, geo geom.Rect) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	w, ok := ws.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrWindowNotFound, id)
	}
	w.geometry = geo
	return nil
}

// Raise moves the window with the given id to the top of the stack.
func (ws *Workspace) Raise(id string) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	w, ok := ws.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrWindowNotFound, id)
	}
	ws.raiseLocked(w)
	return nil
}

// WindowAt returns the topmost window that accepts input at p.
func (ws *Workspace) WindowAt(p geom.Point) input.Window {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	for i := len(ws.stack) - 1; i >= 0; i-- {
		w := ws.stack[i]
		if w.acceptsInput && w.geometry.Contains(p) {
			return w
		}
	}
	return nil
}

// ActiveWindow returns the active window, or nil.
func (ws *Workspace) ActiveWindow() input.Window {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	if ws.active == nil {
		return nil
	}
	return ws.active
}

// Activate makes w the active window and raises it. Windows from another
// workspace are ignored.
func (ws *Workspace) Activate(w input.Window) {
	win, ok := w.(*Window)
	if !ok || win == nil {
		return
	}
	ws.mu.Lock()
	if ws.byID[win.id] != win {
		ws.mu.Unlock()
		return
	}
	callbacks := ws.activateLocked(win)
	ws.mu.Unlock()

	notify(callbacks, win)
}

// Destroy unmaps the window with the given id and notifies destruction
// listeners.
func (ws *Workspace) Destroy(id string) error {
	ws.mu.Lock()
	w, ok := ws.byID[id]
	if !ok {
		ws.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrWindowNotFound, id)
	}
	delete(ws.byID, id)
	for i, sw := range ws.stack {
		if sw == w {
			ws.stack = append(ws.stack[:i], ws.stack[i+1:]...)
			break
		}
	}
	if ws.active == w {
		ws.active = nil
		w.active = false
	}
	callbacks := make([]func(input.Window), len(ws.destroyed))
	copy(callbacks, ws.destroyed)
	ws.mu.Unlock()

	notify(callbacks, w)
	return nil
}

// OnWindowDestroyed registers fn to run after a window is destroyed.
func (ws *Workspace) OnWindowDestroyed(fn func(input.Window)) {
	if fn == nil {
		return
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.destroyed = append(ws.destroyed, fn)
}

// OnWindowActivated registers fn to run after a window becomes active.
func (ws *Workspace) OnWindowActivated(fn func(input.Window)) {
	if fn == nil {
		return
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.activated = append(ws.activated, fn)
}

func (ws *Workspace) activateLocked(w *Window) []func(input.Window) {
	ws.raiseLocked(w)
	if ws.active == w {
		return nil
	}
	if ws.active != nil {
		ws.active.active = false
	}
	ws.active = w
	w.active = true
	callbacks := make([]func(input.Window), len(ws.activated))
	copy(callbacks, ws.activated)
	return callbacks
}

func (ws *Workspace) raiseLocked(w *Window) {
	for i, sw := range ws.stack {
		if sw == w {
			ws.stack = append(ws.stack[:i], ws.stack[i+1:]...)
			break
		}
	}
	ws.stack = append(ws.stack, w)
}

func notify(callbacks []func(input.Window), w input.Window) {
	for _, fn := range callbacks {
		fn(w)
	}
}
