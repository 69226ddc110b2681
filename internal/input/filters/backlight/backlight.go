// Package backlight provides the input filter that guards a blanked
// display. While the backlight is off it swallows input, and it turns the
// backlight back on for a pointer action, a double tap or the power key.
package backlight

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dshills/waystorm/internal/input"
	"github.com/dshills/waystorm/internal/input/key"
)

// DefaultDoubleTapInterval is the maximum time between the first touch
// down and the second touch up of a double tap.
const DefaultDoubleTapInterval = 400 * time.Millisecond

// Backlight is the display power state the filter guards.
type Backlight interface {
	IsBacklightOff() bool
	ToggleBlankOutput()
}

// Filter swallows input while the backlight is off. Install it with
// FilterChain.Prepend so it runs before every other filter.
//
// Toggling is never done inline: it is posted to the main loop because
// it may change the filter chain.
type Filter struct {
	input.BaseFilter

	backlight Backlight
	poster    input.Poster
	logger    logrus.FieldLogger
	now       func() time.Time

	taps     tapTracker
	contacts []int32
}

// Option configures a Filter.
type Option func(*Filter)

// WithInterval sets the double tap interval.
func WithInterval(d time.Duration) Option {
	return func(f *Filter) {
		if d > 0 {
			f.taps.interval = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(f *Filter) {
		if now != nil {
			f.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(f *Filter) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates a backlight filter.
func New(backlight Backlight, poster input.Poster, opts ...Option) *Filter {
	l := logrus.New()
	l.SetOutput(io.Discard)
	f := &Filter{
		backlight: backlight,
		poster:    poster,
		logger:    l,
		now:       time.Now,
		taps:      tapTracker{interval: DefaultDoubleTapInterval},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name implements input.Named.
func (f *Filter) Name() string {
	return "backlight"
}

// SetInterval changes the double tap interval. Non-positive values are
// ignored.
func (f *Filter) SetInterval(d time.Duration) {
	if d > 0 {
		f.taps.interval = d
	}
}

// Interval returns the double tap interval.
func (f *Filter) Interval() time.Duration {
	return f.taps.interval
}

func (f *Filter) KeyEvent(ev input.KeyEvent) bool {
	if key.Code(ev.Key) == key.CodePower && ev.State == input.KeyReleased {
		f.toggle("power_key")
		return true
	}
	return f.backlight.IsBacklightOff()
}

func (f *Filter) PointerButton(input.PointerButtonEvent) bool {
	return f.wakeOnPointer("pointer_button")
}

func (f *Filter) PointerMotion(input.PointerMotionEvent) bool {
	return f.wakeOnPointer("pointer_motion")
}

func (f *Filter) PointerAxis(input.PointerAxisEvent) bool {
	return f.wakeOnPointer("pointer_axis")
}

func (f *Filter) TouchDown(ev input.TouchEvent) bool {
	if !f.backlight.IsBacklightOff() {
		return false
	}
	if len(f.contacts) == 0 {
		now := f.now()
		switch {
		case !f.taps.valid():
			f.taps.start(now)
		case f.taps.within(now):
			f.taps.secondTap = true
		default:
			// too slow, this is a new first tap
			f.taps.start(now)
		}
	} else {
		f.taps.invalidate()
	}
	f.contacts = append(f.contacts, ev.ID)
	return true
}

func (f *Filter) TouchUp(ev input.TouchEvent) bool {
	f.removeContact(ev.ID)
	if !f.backlight.IsBacklightOff() {
		return false
	}
	if len(f.contacts) == 0 && f.taps.valid() && f.taps.secondTap {
		if f.taps.within(f.now()) {
			f.toggle("double_tap")
		}
		f.taps.invalidate()
	}
	return true
}

func (f *Filter) TouchMotion(input.TouchEvent) bool {
	return f.backlight.IsBacklightOff()
}

// TouchCanceled drops contact and tap state.
func (f *Filter) TouchCanceled() {
	f.contacts = f.contacts[:0]
	f.taps.invalidate()
}

func (f *Filter) wakeOnPointer(reason string) bool {
	if !f.backlight.IsBacklightOff() {
		return false
	}
	f.toggle(reason)
	return true
}

func (f *Filter) toggle(reason string) {
	f.logger.WithField("reason", reason).Debug("toggling backlight")
	f.poster.Post(f.backlight.ToggleBlankOutput)
}

func (f *Filter) removeContact(id int32) {
	kept := f.contacts[:0]
	for _, c := range f.contacts {
		if c != id {
			kept = append(kept, c)
		}
	}
	f.contacts = kept
}
