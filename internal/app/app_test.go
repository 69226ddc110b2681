package app

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/waystorm/internal/config"
	"github.com/dshills/waystorm/internal/geom"
	"github.com/dshills/waystorm/internal/input"
	"github.com/dshills/waystorm/internal/input/connection"
	"github.com/dshills/waystorm/internal/input/key"
)

type fakeSource struct {
	mu     sync.Mutex
	sink   chan connection.Sink
	closed bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{sink: make(chan connection.Sink, 1)}
}

func (s *fakeSource) Open(context.Context) error { return nil }

func (s *fakeSource) Run(ctx context.Context, sink connection.Sink) error {
	s.sink <- sink
	<-ctx.Done()
	return nil
}

func (s *fakeSource) SetGrab(bool) error { return nil }

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestApp(t *testing.T, mutate func(*config.Config)) (*Application, *fakeSource) {
	t.Helper()
	cfg := config.Default()
	cfg.Shortcuts = []config.ShortcutConfig{
		{Keys: "Meta+Q", Action: "quit"},
		{Keys: "Meta+L", Action: "session.lock"},
	}
	if mutate != nil {
		mutate(cfg)
	}
	src := newFakeSource()
	app, err := New(Options{
		Config:    cfg,
		Logger:    quietLogger(),
		Source:    src,
		Backlight: memfs.New(),
	})
	require.NoError(t, err)
	return app, src
}

func startApp(t *testing.T, app *Application, src *fakeSource) (connection.Sink, <-chan error) {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- app.Run(context.Background()) }()
	select {
	case sink := <-src.sink:
		return sink, errc
	case <-time.After(2 * time.Second):
		t.Fatal("source was not started")
		return nil, nil
	}
}

func tap(sink connection.Sink, mod, code key.Code) {
	for _, ev := range []struct {
		code  key.Code
		state input.KeyState
	}{
		{mod, input.KeyPressed},
		{code, input.KeyPressed},
		{code, input.KeyReleased},
		{mod, input.KeyReleased},
	} {
		sink.Push(connection.Event{
			Type:     connection.EventKeyboardKey,
			Device:   "kbd",
			Key:      uint32(ev.code),
			KeyState: ev.state,
		})
	}
}

// onLoop runs fn on the main loop and waits for it.
func onLoop(app *Application, fn func()) {
	done := make(chan struct{})
	app.Loop().Post(func() {
		defer close(done)
		fn()
	})
	<-done
}

func filterNames(app *Application) []string {
	var names []string
	for _, f := range app.Redirection().Chain().Filters() {
		if n, ok := f.(input.Named); ok {
			names = append(names, n.Name())
		}
	}
	return names
}

func TestNew_FilterOrder(t *testing.T) {
	app, _ := newTestApp(t, nil)
	assert.Equal(t, []string{"backlight", "lockscreen", "shortcuts", "activation"}, filterNames(app))
}

func TestNew_ScriptFilter(t *testing.T) {
	path := t.TempDir() + "/filter.lua"
	require.NoError(t, os.WriteFile(path, []byte("function on_key(code, state) return false end\n"), 0o644))

	app, _ := newTestApp(t, func(c *config.Config) { c.Script.Path = path })
	assert.Equal(t, []string{"backlight", "lockscreen", "shortcuts", "script", "activation"}, filterNames(app))
	require.NoError(t, app.Shutdown())
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := config.Default()
	_, err := New(Options{
		Config:    cfg,
		Backend:   "wayland",
		Logger:    quietLogger(),
		Backlight: memfs.New(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownBackend))

	var initErr *InitError
	require.True(t, errors.As(err, &initErr))
	assert.Equal(t, "backend", initErr.Component)
}

func TestNew_BadScriptCleansUp(t *testing.T) {
	path := t.TempDir() + "/broken.lua"
	require.NoError(t, os.WriteFile(path, []byte("function (\n"), 0o644))

	cfg := config.Default()
	cfg.Script.Path = path
	_, err := New(Options{
		Config:    cfg,
		Logger:    quietLogger(),
		Source:    newFakeSource(),
		Backlight: memfs.New(),
	})
	var initErr *InitError
	require.True(t, errors.As(err, &initErr))
	assert.Equal(t, "script", initErr.Component)
}

func TestRun_ShortcutQuits(t *testing.T) {
	app, src := newTestApp(t, nil)
	sink, errc := startApp(t, app, src)

	sink.Push(connection.Event{Type: connection.EventDeviceAdded, Device: "kbd", Caps: []input.Capability{input.CapKeyboard}})
	tap(sink, key.CodeLeftMeta, key.CodeQ)

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("quit shortcut did not stop the application")
	}
	assert.True(t, src.isClosed())
	assert.True(t, app.Redirection().HasCapability(input.CapKeyboard))
	assert.True(t, app.Power().IsBacklightOff(), "shutdown blanks the outputs")
}

func TestRun_LockShortcut(t *testing.T) {
	app, src := newTestApp(t, nil)
	sink, errc := startApp(t, app, src)

	tap(sink, key.CodeLeftMeta, key.CodeL)
	require.Eventually(t, app.IsLocked, 2*time.Second, 10*time.Millisecond)

	// Locked: the quit shortcut is swallowed by the lock screen.
	tap(sink, key.CodeLeftMeta, key.CodeQ)
	select {
	case <-errc:
		t.Fatal("shortcut ran while locked")
	case <-time.After(100 * time.Millisecond):
	}

	app.Quit()
	require.NoError(t, <-errc)
}

func TestRun_Twice(t *testing.T) {
	app, src := newTestApp(t, nil)
	_, errc := startApp(t, app, src)

	assert.ErrorIs(t, app.Run(context.Background()), ErrAlreadyRunning)

	app.Quit()
	require.NoError(t, <-errc)
	<-app.Done()
}

func TestRun_SuspendAndResume(t *testing.T) {
	app, src := newTestApp(t, nil)
	sink, errc := startApp(t, app, src)

	sink.Push(connection.Event{Type: connection.EventDeviceAdded, Device: "kbd", Caps: []input.Capability{input.CapKeyboard}})
	require.Eventually(t, func() bool {
		var ok bool
		onLoop(app, func() { ok = app.Connection().HasKeyboard() })
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	var suspended, resumed bool
	onLoop(app, func() {
		require.NoError(t, app.Actions().Invoke("input.suspend"))
		suspended = app.Connection().IsSuspended()
		require.NoError(t, app.Actions().Invoke("input.resume"))
		resumed = !app.Connection().IsSuspended()
	})
	assert.True(t, suspended)
	assert.True(t, resumed)

	app.Quit()
	require.NoError(t, <-errc)
}

func TestRun_SuspendReleasesModifiers(t *testing.T) {
	app, src := newTestApp(t, nil)
	sink, errc := startApp(t, app, src)

	sink.Push(connection.Event{Type: connection.EventDeviceAdded, Device: "kbd", Caps: []input.Capability{input.CapKeyboard}})
	sink.Push(connection.Event{Type: connection.EventKeyboardKey, Device: "kbd", Key: uint32(key.CodeLeftMeta), KeyState: input.KeyPressed})
	onLoop(app, func() { require.NoError(t, app.Actions().Invoke("input.suspend")) })

	// Dropped while suspended.
	sink.Push(connection.Event{Type: connection.EventKeyboardKey, Device: "kbd", Key: uint32(key.CodeLeftMeta), KeyState: input.KeyReleased})
	onLoop(app, func() { require.NoError(t, app.Actions().Invoke("input.resume")) })

	sink.Push(connection.Event{Type: connection.EventKeyboardKey, Device: "kbd", Key: uint32(key.CodeL), KeyState: input.KeyPressed})
	sink.Push(connection.Event{Type: connection.EventKeyboardKey, Device: "kbd", Key: uint32(key.CodeL), KeyState: input.KeyReleased})
	// Twice: a triggered action would be posted behind the first one.
	onLoop(app, func() {})
	onLoop(app, func() {})
	assert.False(t, app.IsLocked(), "a bare L is not Meta+L")

	app.Quit()
	require.NoError(t, <-errc)
}

func TestActions_Registered(t *testing.T) {
	app, _ := newTestApp(t, nil)
	for _, name := range []string{
		"session.lock", "session.unlock", "backlight.toggle",
		"output.on", "output.off", "input.suspend", "input.resume", "window.close", "config.reload", "quit",
	} {
		assert.True(t, app.Actions().Has(name), name)
	}
}

func TestActions_WindowClose(t *testing.T) {
	app, _ := newTestApp(t, nil)
	ws := app.Workspace()
	w := ws.AddWindow("term", ws.Outputs()[0])

	require.NoError(t, app.Actions().Invoke("window.close"))
	assert.Nil(t, ws.Window(w.ID()))
	require.NoError(t, app.Actions().Invoke("window.close"), "no active window is not an error")
}

func metricValue(t *testing.T, app *Application, name string) float64 {
	t.Helper()
	families, err := app.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		m := f.GetMetric()[0]
		if c := m.GetCounter(); c != nil {
			return c.GetValue()
		}
		return m.GetGauge().GetValue()
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestActions_DPMS(t *testing.T) {
	app, _ := newTestApp(t, nil)
	assert.Equal(t, 1.0, metricValue(t, app, "waystorm_output_blanked"), "outputs start blanked")

	require.NoError(t, app.Power().Init())
	require.False(t, app.Power().IsBacklightOff())

	require.NoError(t, app.Actions().Invoke("output.off"))
	assert.True(t, app.Power().IsBacklightOff())
	require.NoError(t, app.Actions().Invoke("output.off"))
	assert.True(t, app.Power().IsBacklightOff())
	require.NoError(t, app.Actions().Invoke("output.on"))
	assert.False(t, app.Power().IsBacklightOff())

	// Init and the two real changes.
	assert.Equal(t, 3.0, metricValue(t, app, "waystorm_output_blank_changes_total"))
	assert.Equal(t, 0.0, metricValue(t, app, "waystorm_output_blanked"))
	require.NoError(t, app.Shutdown())
}

func TestNew_ConfiguredWindows(t *testing.T) {
	app, _ := newTestApp(t, func(c *config.Config) {
		c.Windows = []config.WindowConfig{
			{Title: "panel", Y: 984, Width: 1280, Height: 40},
			{Title: "osd", X: 100, Y: 100, Width: 200, Height: 200, Passthrough: true},
		}
	})
	ws := app.Workspace()
	require.Equal(t, 2, ws.Len())

	assert.NotNil(t, ws.WindowAt(geom.Pt(10, 1000)))
	assert.Nil(t, ws.WindowAt(geom.Pt(150, 150)), "passthrough window takes no input")

	w := ws.AddWindow("term", geom.R(0, 0, 640, 480))
	assert.Equal(t, input.Window(w), app.Redirection().KeyboardFocus(), "keyboard focus follows activation")
}

func TestActions_LockUnlock(t *testing.T) {
	app, _ := newTestApp(t, func(c *config.Config) { c.Lock.Locked = true })
	assert.True(t, app.IsLocked())

	require.NoError(t, app.Actions().Invoke("session.unlock"))
	assert.False(t, app.IsLocked())
	require.NoError(t, app.Actions().Invoke("session.lock"))
	assert.True(t, app.IsLocked())
}

func TestReload(t *testing.T) {
	app, _ := newTestApp(t, nil)

	next := config.Default()
	next.Shortcuts = []config.ShortcutConfig{{Keys: "Meta+Enter", Action: "quit"}}
	next.Input.DoubleTapInterval = config.Duration(250 * time.Millisecond)
	next.Outputs = append(next.Outputs, config.OutputConfig{Name: "right", X: 1280, Width: 800, Height: 600})

	app.Reload(next)

	assert.Same(t, next, app.Config())
	assert.Equal(t, 1, app.shortcuts.Bindings())
	assert.Equal(t, 250*time.Millisecond, app.backlight.Interval())
	assert.Len(t, app.Workspace().Outputs(), 2)
	assert.Equal(t, 2080.0, app.Redirection().Bounds().Size().W)
}

func TestShutdown_Idempotent(t *testing.T) {
	app, _ := newTestApp(t, nil)
	require.NoError(t, app.Shutdown())
	require.NoError(t, app.Shutdown())
}
