// Package shortcuts provides the global shortcut filter. A key press that
// matches a bound combo is consumed together with its repeats and its
// release, and the bound action runs later on the main loop.
package shortcuts

import (
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/dshills/waystorm/internal/input"
	"github.com/dshills/waystorm/internal/input/key"
)

// Binding maps a key combo to an action name.
type Binding struct {
	// Keys is the combo, e.g. "Meta+L" or "<C-A-Delete>".
	Keys string `toml:"keys" yaml:"keys"`

	// Action is the name passed to the Invoker.
	Action string `toml:"action" yaml:"action"`
}

// Filter matches key presses against the bound combos.
type Filter struct {
	input.BaseFilter

	invoker Invoker
	poster  input.Poster
	logger  logrus.FieldLogger

	bindings map[key.Combo]Binding
	mods     *key.Tracker
	grabbed  map[key.Code]struct{}
}

// Option configures a Filter.
type Option func(*Filter)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(f *Filter) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates a shortcut filter without bindings.
func New(invoker Invoker, poster input.Poster, opts ...Option) *Filter {
	l := logrus.New()
	l.SetOutput(io.Discard)
	f := &Filter{
		invoker:  invoker,
		poster:   poster,
		logger:   l,
		bindings: make(map[key.Combo]Binding),
		mods:     key.NewTracker(),
		grabbed:  make(map[key.Code]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name implements input.Named.
func (f *Filter) Name() string {
	return "shortcuts"
}

// SetBindings replaces the binding table. Bindings that fail to parse or
// collide with an earlier binding are skipped and reported in the
// returned error; the rest are installed.
func (f *Filter) SetBindings(bindings []Binding) error {
	var result *multierror.Error
	table := make(map[key.Combo]Binding, len(bindings))
	for _, b := range bindings {
		combo, err := key.Parse(b.Keys)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("shortcut %q: %w", b.Keys, err))
			continue
		}
		if prev, exists := table[combo]; exists {
			result = multierror.Append(result, fmt.Errorf("shortcut %q: %w: already bound to %q", b.Keys, ErrDuplicateBinding, prev.Action))
			continue
		}
		table[combo] = b
	}
	f.bindings = table
	return result.ErrorOrNil()
}

// Bindings returns the number of installed bindings.
func (f *Filter) Bindings() int {
	return len(f.bindings)
}

// CapabilityChanged implements input.CapabilityWatcher. The releases of
// keys held when the last keyboard goes away never arrive, so modifier
// and grab state is dropped.
func (f *Filter) CapabilityChanged(c input.Capability, present bool) {
	if c != input.CapKeyboard || present {
		return
	}
	f.mods.Reset()
	clear(f.grabbed)
}

func (f *Filter) KeyEvent(ev input.KeyEvent) bool {
	code := key.Code(ev.Key)
	switch ev.State {
	case input.KeyPressed:
		if f.mods.Update(code, true) {
			return false
		}
		b, ok := f.bindings[key.Combo{Code: code, Modifiers: f.mods.Modifiers()}]
		if !ok {
			return false
		}
		f.grabbed[code] = struct{}{}
		f.run(b)
		return true
	case input.KeyRepeated:
		_, ok := f.grabbed[code]
		return ok
	default:
		f.mods.Update(code, false)
		if _, ok := f.grabbed[code]; ok {
			delete(f.grabbed, code)
			return true
		}
		return false
	}
}

func (f *Filter) run(b Binding) {
	f.logger.WithFields(logrus.Fields{
		"keys":   b.Keys,
		"action": b.Action,
	}).Debug("shortcut triggered")
	f.poster.Post(func() {
		if err := f.invoker.Invoke(b.Action); err != nil {
			f.logger.WithError(err).WithField("action", b.Action).Warn("shortcut action failed")
		}
	})
}
