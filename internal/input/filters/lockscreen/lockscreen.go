// Package lockscreen provides the input filter that keeps input away from
// clients while the session is locked.
package lockscreen

import (
	"sync/atomic"

	"github.com/dshills/waystorm/internal/input"
	"github.com/dshills/waystorm/internal/input/key"
)

// Locker reports the lock state.
type Locker interface {
	IsLocked() bool
}

// State is a Locker toggled by the session.
type State struct {
	locked atomic.Bool
}

// IsLocked implements Locker.
func (s *State) IsLocked() bool { return s.locked.Load() }

// Lock locks the session.
func (s *State) Lock() { s.locked.Store(true) }

// Unlock unlocks the session.
func (s *State) Unlock() { s.locked.Store(false) }

// Filter consumes all input while locked. The power key passes so the
// backlight can still be toggled.
type Filter struct {
	locker Locker
}

// New creates a lock screen filter.
func New(locker Locker) *Filter {
	return &Filter{locker: locker}
}

func (f *Filter) Name() string { return "lockscreen" }

func (f *Filter) KeyEvent(ev input.KeyEvent) bool {
	if key.Code(ev.Key) == key.CodePower {
		return false
	}
	return f.locker.IsLocked()
}

func (f *Filter) PointerButton(input.PointerButtonEvent) bool { return f.locker.IsLocked() }
func (f *Filter) PointerMotion(input.PointerMotionEvent) bool { return f.locker.IsLocked() }
func (f *Filter) PointerAxis(input.PointerAxisEvent) bool { return f.locker.IsLocked() }
func (f *Filter) TouchDown(input.TouchEvent) bool { return f.locker.IsLocked() }
func (f *Filter) TouchMotion(input.TouchEvent) bool { return f.locker.IsLocked() }
func (f *Filter) TouchUp(input.TouchEvent) bool { return f.locker.IsLocked() }
