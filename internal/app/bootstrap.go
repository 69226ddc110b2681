package app

import (
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/dshills/waystorm/internal/backend/nested"
	"github.com/dshills/waystorm/internal/backend/remote"
	"github.com/dshills/waystorm/internal/backend/terminal"
	"github.com/dshills/waystorm/internal/config"
	"github.com/dshills/waystorm/internal/input"
	"github.com/dshills/waystorm/internal/input/connection"
	"github.com/dshills/waystorm/internal/input/connection/linuxinput"
	"github.com/dshills/waystorm/internal/input/filters/backlight"
	"github.com/dshills/waystorm/internal/input/filters/lockscreen"
	"github.com/dshills/waystorm/internal/input/filters/script"
	"github.com/dshills/waystorm/internal/input/filters/shortcuts"
	"github.com/dshills/waystorm/internal/loop"
	"github.com/dshills/waystorm/internal/power"
	"github.com/dshills/waystorm/internal/workspace"
)

// bootstrapper handles component initialization with proper cleanup on failure.
type bootstrapper struct {
	app       *Application
	opts      Options
	initOrder []string
}

// newBootstrapper creates a new bootstrapper for the application.
func newBootstrapper(app *Application, opts Options) *bootstrapper {
	return &bootstrapper{
		app:       app,
		opts:      opts,
		initOrder: make([]string, 0, 10),
	}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap() error {
	steps := []func() error{
		b.initConfig,
		b.initLogger,
		b.initLoop,
		b.initWorkspace,
		b.initPower,
		b.initRedirection,
		b.initFilters,
		b.initSource,
		b.initConnection,
		b.initActions,
		b.initWatcher,
		b.initMetrics,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			b.cleanup()
			return err
		}
	}
	return nil
}

// initConfig loads the configuration and applies command line overrides.
func (b *bootstrapper) initConfig() error {
	cfg := b.opts.Config
	if cfg == nil {
		var err error
		cfg, err = config.Load(b.opts.ConfigPath)
		if err != nil {
			return &InitError{Component: "config", Err: err}
		}
	}
	if b.opts.LogLevel != "" {
		cfg.Log.Level = b.opts.LogLevel
	}
	if b.opts.Backend != "" {
		cfg.Backend.Type = b.opts.Backend
	}
	b.app.cfg = cfg
	return nil
}

// initLogger builds the process logger. The terminal backend owns the
// screen, so without a log file its logs are discarded.
func (b *bootstrapper) initLogger() error {
	if b.opts.Logger != nil {
		b.app.logger = b.opts.Logger
		return nil
	}
	logger, closer, err := NewLogger(b.app.cfg.Log)
	if err != nil {
		return &InitError{Component: "logger", Err: err}
	}
	if b.app.cfg.Backend.Type == config.BackendTerminal && b.app.cfg.Log.File == "" {
		logger.SetOutput(io.Discard)
	}
	b.app.logger = logger
	b.app.logCloser = closer
	b.initOrder = append(b.initOrder, "logger")
	return nil
}

func (b *bootstrapper) initLoop() error {
	b.app.loop = loop.New(loop.WithLogger(WithComponent(b.app.logger, "loop")))
	b.app.registry = NewRegistry()
	registerLoopMetrics(b.app.registry, b.app.loop)
	return nil
}

// initWorkspace creates the window model with the configured windows.
func (b *bootstrapper) initWorkspace() error {
	b.app.workspace = workspace.New(b.app.cfg.OutputRects())
	for _, wc := range b.app.cfg.Windows {
		w := b.app.workspace.AddWindow(wc.Title, wc.Rect())
		w.SetAcceptsInput(!wc.Passthrough)
	}
	b.app.lock = &lockscreen.State{}
	if b.app.cfg.Lock.Locked {
		b.app.lock.Lock()
	}
	return nil
}

// initPower creates the power manager. Outputs stay blanked until Run
// calls Init.
func (b *bootstrapper) initPower() error {
	fs := b.opts.Backlight
	if fs == nil {
		dir := b.app.cfg.Power.SysfsDir
		if dir == "" {
			dir = power.SysfsBacklightDir
		}
		fs = osfs.New(dir)
	}
	b.app.power = power.NewManager(b.app.cfg.Power.Backlight,
		power.WithLogger(WithComponent(b.app.logger, "power")),
		power.WithFilesystem(fs),
	)
	registerPowerMetrics(b.app.registry, b.app.power)
	b.initOrder = append(b.initOrder, "power")
	return nil
}

func (b *bootstrapper) initRedirection() error {
	ws := b.app.workspace
	b.app.redirection = input.NewRedirection(ws, ws,
		input.WithLogger(WithComponent(b.app.logger, "input")),
		input.WithMetrics(input.NewMetrics(b.app.registry)),
		input.WithDelivery(newLogDelivery(WithComponent(b.app.logger, "delivery"))),
		input.WithLifetime(ws),
		input.WithActivation(ws),
	)
	return nil
}

// initFilters installs the filters ahead of window activation, in this
// order: backlight, lock screen, shortcuts, script.
func (b *bootstrapper) initFilters() error {
	cfg := b.app.cfg
	chain := b.app.redirection.Chain()
	b.app.actions = shortcuts.NewActions()

	if cfg.Script.Path != "" {
		f := script.New(b.app.actions, b.app.loop,
			script.WithTimeout(cfg.Script.Timeout.D()),
			script.WithLogger(WithComponent(b.app.logger, "script")),
		)
		if err := f.LoadFile(cfg.Script.Path); err != nil {
			_ = f.Close()
			return &InitError{Component: "script", Err: err}
		}
		b.app.script = f
		b.initOrder = append(b.initOrder, "script")
		chain.Prepend(f)
	}

	b.app.shortcuts = shortcuts.New(b.app.actions, b.app.loop,
		shortcuts.WithLogger(WithComponent(b.app.logger, "shortcuts")),
	)
	if err := b.app.shortcuts.SetBindings(bindings(cfg)); err != nil {
		b.app.logger.WithError(err).Warn("some shortcuts were skipped")
	}
	chain.Prepend(b.app.shortcuts)

	chain.Prepend(lockscreen.New(b.app.lock))

	b.app.backlight = backlight.New(b.app.power, b.app.loop,
		backlight.WithInterval(cfg.Input.DoubleTapInterval.D()),
		backlight.WithLogger(WithComponent(b.app.logger, "backlight")),
	)
	chain.Prepend(b.app.backlight)
	return nil
}

// initSource creates the input source for the configured backend.
func (b *bootstrapper) initSource() error {
	if b.opts.Source != nil {
		b.app.source = b.opts.Source
		return nil
	}
	cfg := b.app.cfg
	logger := WithComponent(b.app.logger, "backend")

	switch cfg.Backend.Type {
	case config.BackendNative:
		b.app.source = linuxinput.NewSource(
			linuxinput.WithDir(cfg.Input.Dir),
			linuxinput.WithSourceLogger(logger),
			linuxinput.WithDeviceFilter(cfg.Input.Devices),
		)
	case config.BackendTerminal:
		b.app.source = terminal.New(terminal.WithLogger(logger))
	case config.BackendNested:
		size := b.app.redirection.Bounds().Size()
		b.app.source = nested.New(int(size.W), int(size.H),
			nested.WithTitle(cfg.Backend.Title),
			nested.WithScene(&scene{workspace: b.app.workspace, power: b.app.power}),
			nested.WithLogger(logger),
		)
	case config.BackendRemote:
		b.app.source = remote.NewServer(cfg.Backend.Listen, remote.WithLogger(logger))
	default:
		return &InitError{Component: "backend", Err: fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend.Type)}
	}
	return nil
}

func (b *bootstrapper) initConnection() error {
	app := b.app
	app.connection = connection.New(app.source,
		connection.WithLogger(WithComponent(app.logger, "connection")),
		connection.WithWakeFunc(func() {
			app.loop.Post(func() { app.connection.ProcessEvents() })
		}),
		connection.WithGrab(app.cfg.Input.Grab),
		connection.WithRegisterer(app.registry),
		connection.WithDeviceOutputs(app.cfg.Input.DeviceOutputs),
	)
	app.applyOutputs()
	app.connection.AddObserver(app.redirection)
	b.initOrder = append(b.initOrder, "connection")
	return nil
}

// initActions registers the actions shortcuts and scripts can invoke.
func (b *bootstrapper) initActions() error {
	app := b.app
	a := app.actions
	a.Register("session.lock", func() error {
		app.lock.Lock()
		return nil
	})
	a.Register("session.unlock", func() error {
		app.lock.Unlock()
		return nil
	})
	a.Register("backlight.toggle", func() error {
		app.power.ToggleBlankOutput()
		return nil
	})
	a.Register("output.on", func() error {
		app.power.RequestDPMS(true)
		return nil
	})
	a.Register("output.off", func() error {
		app.power.RequestDPMS(false)
		return nil
	})
	a.Register("input.suspend", func() error {
		app.Suspend()
		return nil
	})
	a.Register("input.resume", func() error {
		app.Resume()
		return nil
	})
	a.Register("window.close", func() error {
		w := app.workspace.ActiveWindow()
		if w == nil {
			return nil
		}
		return app.workspace.Destroy(w.ID())
	})
	a.Register("config.reload", func() error {
		go app.reloadFile()
		return nil
	})
	a.Register("quit", func() error {
		app.Quit()
		return nil
	})
	return nil
}

func (b *bootstrapper) initWatcher() error {
	if !b.opts.Watch || b.opts.ConfigPath == "" {
		return nil
	}
	w, err := config.NewWatcher(b.opts.ConfigPath, b.app.onConfigChange,
		config.WithWatcherLogger(WithComponent(b.app.logger, "config")),
	)
	if err != nil {
		return &InitError{Component: "config watcher", Err: err}
	}
	b.app.watcher = w
	b.initOrder = append(b.initOrder, "watcher")
	return nil
}

func (b *bootstrapper) initMetrics() error {
	addr := b.app.cfg.Metrics.Listen
	if addr == "" {
		return nil
	}
	m, err := StartMetricsServer(addr, b.app.registry, WithComponent(b.app.logger, "metrics"))
	if err != nil {
		return &InitError{Component: "metrics", Err: err}
	}
	b.app.metrics = m
	b.initOrder = append(b.initOrder, "metrics")
	return nil
}

// cleanup performs cleanup in reverse initialization order.
// Called when bootstrap fails partway through.
func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		b.cleanupComponent(b.initOrder[i])
	}
}

// cleanupComponent cleans up a single component.
func (b *bootstrapper) cleanupComponent(component string) {
	var err error
	switch component {
	case "metrics":
		err = b.app.metrics.srv.Close()
		<-b.app.metrics.done
		b.app.metrics = nil
	case "watcher":
		err = b.app.watcher.Close()
		b.app.watcher = nil
	case "connection":
		err = b.app.connection.Close()
	case "script":
		err = b.app.script.Close()
		b.app.script = nil
	case "power":
		err = b.app.power.Close()
	case "logger":
		err = b.app.logCloser.Close()
		b.app.logCloser = nil
	}
	if err != nil && b.app.logger != nil {
		b.app.logger.WithError(err).WithField("component", component).Warn("cleanup failed")
	}
}
