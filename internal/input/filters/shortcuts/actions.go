package shortcuts

import (
	"fmt"
	"sort"
	"sync"
)

// Invoker runs named actions.
type Invoker interface {
	Invoke(action string) error
}

// Actions is a registry of named actions. It is safe for concurrent use.
type Actions struct {
	mu       sync.RWMutex
	handlers map[string]func() error
}

// NewActions creates an empty registry.
func NewActions() *Actions {
	return &Actions{handlers: make(map[string]func() error)}
}

// Register adds or replaces the handler for name.
func (a *Actions) Register(name string, fn func() error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[name] = fn
}

// Has reports whether name is registered.
func (a *Actions) Has(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.handlers[name]
	return ok
}

// Names returns the registered action names, sorted.
func (a *Actions) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.handlers))
	for n := range a.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Invoke runs the handler for action.
func (a *Actions) Invoke(action string) error {
	a.mu.RLock()
	fn, ok := a.handlers[action]
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	return fn()
}
