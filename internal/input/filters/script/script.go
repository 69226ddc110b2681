// Package script provides an input filter whose policy is written in Lua.
//
// A script defines any of the global hooks below; a hook returning true
// consumes the event.
//
//	function on_key(code, state) end          -- state: "pressed", "released", "repeated"
//	function on_pointer_button(button, state, x, y) end
//	function on_touch_down(id, x, y) end
//
// The wm table exposes wm.log(msg [, level]), wm.action(name) and
// wm.key_name(code). Only the base, table, string and math libraries are
// available.
package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/waystorm/internal/input"
	"github.com/dshills/waystorm/internal/input/key"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 50 * time.Millisecond

// Invoker runs named actions.
type Invoker interface {
	Invoke(action string) error
}

// Filter runs Lua hooks for key, pointer button and touch down events.
// Hooks run on the caller's goroutine; actions requested by a script are
// posted to the main loop.
type Filter struct {
	input.BaseFilter

	mu      sync.Mutex
	state   *lua.LState
	closed  bool
	timeout time.Duration
	invoker Invoker
	poster  input.Poster
	logger  logrus.FieldLogger
}

// Option configures a Filter.
type Option func(*Filter)

// WithTimeout sets the per-call time budget.
func WithTimeout(d time.Duration) Option {
	return func(f *Filter) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithLogger sets the logger used for wm.log and hook failures.
func WithLogger(l logrus.FieldLogger) Option {
	return func(f *Filter) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates a script filter with an empty script.
func New(invoker Invoker, poster input.Poster, opts ...Option) *Filter {
	l := logrus.New()
	l.SetOutput(io.Discard)
	f := &Filter{
		timeout: DefaultTimeout,
		invoker: invoker,
		poster:  poster,
		logger:  l,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.state = newState()
	f.installAPI()
	return f
}

func newState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

// Name implements input.Named.
func (f *Filter) Name() string {
	return "script"
}

// LoadFile runs the script at path, defining its hooks.
func (f *Filter) LoadFile(path string) error {
	return f.load(func(L *lua.LState) error { return L.DoFile(path) })
}

// LoadString runs code, defining its hooks.
func (f *Filter) LoadString(code string) error {
	return f.load(func(L *lua.LState) error { return L.DoString(code) })
}

func (f *Filter) load(run func(*lua.LState) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	return f.withTimeout(func() error { return run(f.state) })
}

// Reload replaces the Lua state and runs the script at path in it. On
// failure the previous state stays in place.
func (f *Filter) Reload(path string) error {
	next := newState()
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		next.Close()
		return ErrClosed
	}
	prev := f.state
	f.state = next
	f.installAPI()
	err := f.withTimeout(func() error { return next.DoFile(path) })
	if err != nil {
		f.state = prev
		f.mu.Unlock()
		next.Close()
		return err
	}
	f.mu.Unlock()
	prev.Close()
	return nil
}

// Close releases the Lua state.
func (f *Filter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.state.Close()
	return nil
}

func (f *Filter) KeyEvent(ev input.KeyEvent) bool {
	return f.hook("on_key", lua.LNumber(ev.Key), lua.LString(ev.State.String()))
}

func (f *Filter) PointerButton(ev input.PointerButtonEvent) bool {
	return f.hook("on_pointer_button",
		lua.LNumber(ev.Button), lua.LString(ev.State.String()),
		lua.LNumber(ev.Pos.X), lua.LNumber(ev.Pos.Y))
}

func (f *Filter) TouchDown(ev input.TouchEvent) bool {
	return f.hook("on_touch_down", lua.LNumber(ev.ID), lua.LNumber(ev.Pos.X), lua.LNumber(ev.Pos.Y))
}

// hook calls a global hook if the script defines one. Errors are logged
// and the event passes.
func (f *Filter) hook(name string, args ...lua.LValue) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	fn := f.state.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return false
	}

	top := f.state.GetTop()
	defer f.state.SetTop(top)
	err := f.withTimeout(func() error {
		return f.state.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...)
	})
	if err != nil {
		f.logger.WithError(err).WithField("hook", name).Warn("script hook failed")
		return false
	}
	return lua.LVAsBool(f.state.Get(-1))
}

func (f *Filter) withTimeout(run func() error) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	f.state.SetContext(ctx)
	defer f.state.RemoveContext()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	err = run()
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %v", ErrScriptTimeout, f.timeout, err)
	}
	return err
}

func (f *Filter) installAPI() {
	L := f.state
	wm := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"log":      f.luaLog,
		"action":   f.luaAction,
		"key_name": luaKeyName,
	})
	L.SetField(wm, "BTN_LEFT", lua.LNumber(input.BtnLeft))
	L.SetField(wm, "BTN_RIGHT", lua.LNumber(input.BtnRight))
	L.SetField(wm, "BTN_MIDDLE", lua.LNumber(input.BtnMiddle))
	L.SetField(wm, "KEY_POWER", lua.LNumber(key.CodePower))
	L.SetGlobal("wm", wm)
}

func (f *Filter) luaLog(L *lua.LState) int {
	msg := L.CheckString(1)
	level := L.OptString(2, "info")
	entry := f.logger.WithField("source", "script")
	switch level {
	case "debug":
		entry.Debug(msg)
	case "warn":
		entry.Warn(msg)
	case "error":
		entry.Error(msg)
	default:
		entry.Info(msg)
	}
	return 0
}

func (f *Filter) luaAction(L *lua.LState) int {
	name := L.CheckString(1)
	f.poster.Post(func() {
		if err := f.invoker.Invoke(name); err != nil {
			f.logger.WithError(err).WithField("action", name).Warn("script action failed")
		}
	})
	return 0
}

func luaKeyName(L *lua.LState) int {
	code := L.CheckInt(1)
	L.Push(lua.LString(key.Code(code).String()))
	return 1
}
