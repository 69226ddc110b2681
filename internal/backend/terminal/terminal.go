// Package terminal feeds keyboard and mouse input from a terminal into the
// compositor. Terminals only report key presses, so each key arrives as a
// press and release pair.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"

	"github.com/dshills/waystorm/internal/backend"
	"github.com/dshills/waystorm/internal/geom"
	"github.com/dshills/waystorm/internal/input"
	"github.com/dshills/waystorm/internal/input/connection"
	"github.com/dshills/waystorm/internal/input/key"
)

// Device names used for the emitted events.
const (
	KeyboardDevice = "terminal-keyboard"
	MouseDevice    = "terminal-mouse"
)

// Wheel steps are reported with this delta, matching one mouse wheel
// click on most pointer devices.
const wheelStep = 15.0

// ErrNotOpen is returned by Run before Open succeeded.
var ErrNotOpen = errors.New("terminal not open")

// Backend reads a tcell screen.
type Backend struct {
	logger logrus.FieldLogger

	mu      sync.Mutex
	screen  tcell.Screen
	opened  bool
	width   int
	height  int
	buttons tcell.ButtonMask
	cursor  geom.Point
}

// Option configures a Backend.
type Option func(*Backend)

// WithScreen uses s instead of the controlling terminal.
func WithScreen(s tcell.Screen) Option {
	return func(b *Backend) {
		b.screen = s
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a terminal backend.
func New(opts ...Option) *Backend {
	l := logrus.New()
	l.SetOutput(io.Discard)
	b := &Backend{logger: l}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns "terminal".
func (b *Backend) Name() string { return "terminal" }

// Open initializes the screen and enables mouse reporting.
func (b *Backend) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.opened {
		return nil
	}
	if b.screen == nil {
		s, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("%w: %v", connection.ErrNoDeviceContext, err)
		}
		b.screen = s
	}
	if err := b.screen.Init(); err != nil {
		return fmt.Errorf("%w: %v", connection.ErrNoDeviceContext, err)
	}
	b.screen.EnableMouse()
	b.screen.HideCursor()
	b.width, b.height = b.screen.Size()
	b.opened = true
	return nil
}

// Run polls the screen until ctx is done.
func (b *Backend) Run(ctx context.Context, sink connection.Sink) error {
	b.mu.Lock()
	screen, opened := b.screen, b.opened
	b.mu.Unlock()
	if !opened {
		return ErrNotOpen
	}

	kbd := backend.NewEmitter(sink, KeyboardDevice)
	mouse := backend.NewEmitter(sink, MouseDevice)
	kbd.Added(input.CapKeyboard)
	mouse.Added(input.CapPointer)
	defer func() {
		kbd.Removed()
		mouse.Removed()
	}()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = screen.PostEvent(tcell.NewEventInterrupt(nil))
		case <-stop:
		}
	}()

	for {
		ev := screen.PollEvent()
		if ev == nil {
			return nil
		}
		switch e := ev.(type) {
		case *tcell.EventInterrupt:
			if ctx.Err() != nil {
				return nil
			}
		case *tcell.EventResize:
			w, h := e.Size()
			b.mu.Lock()
			b.width, b.height = w, h
			b.mu.Unlock()
		case *tcell.EventKey:
			b.handleKey(kbd, e)
		case *tcell.EventMouse:
			b.handleMouse(mouse, e)
		}
	}
}

// SetGrab is a no-op; a terminal is never shared.
func (b *Backend) SetGrab(bool) error { return nil }

// Close restores the terminal.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.opened {
		return nil
	}
	b.opened = false
	b.screen.Fini()
	return nil
}

func (b *Backend) handleKey(e *backend.Emitter, ev *tcell.EventKey) {
	code, mods, ok := convertKey(ev)
	if !ok {
		b.logger.WithField("key", ev.Name()).Debug("unmapped terminal key")
		return
	}
	e.Tap(code, mods)
}

func (b *Backend) handleMouse(e *backend.Emitter, ev *tcell.EventMouse) {
	x, y := ev.Position()
	mask := ev.Buttons()

	b.mu.Lock()
	w, h := b.width, b.height
	prev := b.buttons
	b.buttons = mask & (tcell.ButtonPrimary | tcell.ButtonSecondary | tcell.ButtonMiddle)
	moved := false
	pos := normalize(x, y, w, h)
	if pos != b.cursor {
		b.cursor = pos
		moved = true
	}
	b.mu.Unlock()

	if moved {
		e.MotionAbsolute(pos, connection.NoOutput)
	}
	for _, m := range buttonMap {
		was, is := prev&m.mask != 0, mask&m.mask != 0
		switch {
		case is && !was:
			e.Button(m.button, input.ButtonPressed)
		case was && !is:
			e.Button(m.button, input.ButtonReleased)
		}
	}
	switch {
	case mask&tcell.WheelUp != 0:
		e.Axis(input.AxisVertical, -wheelStep)
	case mask&tcell.WheelDown != 0:
		e.Axis(input.AxisVertical, wheelStep)
	}
	switch {
	case mask&tcell.WheelLeft != 0:
		e.Axis(input.AxisHorizontal, -wheelStep)
	case mask&tcell.WheelRight != 0:
		e.Axis(input.AxisHorizontal, wheelStep)
	}
}

var buttonMap = []struct {
	mask   tcell.ButtonMask
	button uint32
}{
	{tcell.ButtonPrimary, input.BtnLeft},
	{tcell.ButtonSecondary, input.BtnRight},
	{tcell.ButtonMiddle, input.BtnMiddle},
}

// normalize maps a cell to the center of its normalized area.
func normalize(x, y, w, h int) geom.Point {
	if w <= 0 || h <= 0 {
		return geom.Point{}
	}
	return geom.Pt((float64(x)+0.5)/float64(w), (float64(y)+0.5)/float64(h))
}

func convertMods(m tcell.ModMask) key.Modifier {
	var mods key.Modifier
	if m&tcell.ModShift != 0 {
		mods |= key.ModShift
	}
	if m&tcell.ModCtrl != 0 {
		mods |= key.ModCtrl
	}
	if m&tcell.ModAlt != 0 {
		mods |= key.ModAlt
	}
	if m&tcell.ModMeta != 0 {
		mods |= key.ModMeta
	}
	return mods
}

// convertKey maps a terminal key event to a key code and the modifiers
// held with it.
func convertKey(ev *tcell.EventKey) (key.Code, key.Modifier, bool) {
	mods := convertMods(ev.Modifiers())
	k := ev.Key()

	if k == tcell.KeyRune {
		code, shift, ok := key.CodeForRune(ev.Rune())
		if shift {
			mods |= key.ModShift
		}
		return code, mods, ok
	}
	if code, ok := namedKey(k); ok {
		return code, mods, true
	}
	if k >= tcell.KeyCtrlA && k <= tcell.KeyCtrlZ {
		code, _, ok := key.CodeForRune(rune('a' + int(k-tcell.KeyCtrlA)))
		return code, mods | key.ModCtrl, ok
	}
	return key.CodeNone, mods, false
}

func namedKey(k tcell.Key) (key.Code, bool) {
	switch k {
	case tcell.KeyEnter:
		return key.CodeEnter, true
	case tcell.KeyTab:
		return key.CodeTab, true
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return key.CodeBackspace, true
	case tcell.KeyEscape:
		return key.CodeEsc, true
	case tcell.KeyDelete:
		return key.CodeDelete, true
	case tcell.KeyInsert:
		return key.CodeInsert, true
	case tcell.KeyHome:
		return key.CodeHome, true
	case tcell.KeyEnd:
		return key.CodeEnd, true
	case tcell.KeyPgUp:
		return key.CodePageUp, true
	case tcell.KeyPgDn:
		return key.CodePageDown, true
	case tcell.KeyUp:
		return key.CodeUp, true
	case tcell.KeyDown:
		return key.CodeDown, true
	case tcell.KeyLeft:
		return key.CodeLeft, true
	case tcell.KeyRight:
		return key.CodeRight, true
	case tcell.KeyF1:
		return key.CodeF1, true
	case tcell.KeyF2:
		return key.CodeF2, true
	case tcell.KeyF3:
		return key.CodeF3, true
	case tcell.KeyF4:
		return key.CodeF4, true
	case tcell.KeyF5:
		return key.CodeF5, true
	case tcell.KeyF6:
		return key.CodeF6, true
	case tcell.KeyF7:
		return key.CodeF7, true
	case tcell.KeyF8:
		return key.CodeF8, true
	case tcell.KeyF9:
		return key.CodeF9, true
	case tcell.KeyF10:
		return key.CodeF10, true
	case tcell.KeyF11:
		return key.CodeF11, true
	case tcell.KeyF12:
		return key.CodeF12, true
	}
	return key.CodeNone, false
}
