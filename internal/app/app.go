// Package app provides the main application structure and coordination
// for the waystorm input server. It wires the device connection, input
// redirection, filters and power management together and manages the
// application lifecycle.
package app

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/dshills/waystorm/internal/backend"
	"github.com/dshills/waystorm/internal/config"
	"github.com/dshills/waystorm/internal/input"
	"github.com/dshills/waystorm/internal/input/connection"
	"github.com/dshills/waystorm/internal/input/filters/backlight"
	"github.com/dshills/waystorm/internal/input/filters/lockscreen"
	"github.com/dshills/waystorm/internal/input/filters/script"
	"github.com/dshills/waystorm/internal/input/filters/shortcuts"
	"github.com/dshills/waystorm/internal/loop"
	"github.com/dshills/waystorm/internal/power"
	"github.com/dshills/waystorm/internal/workspace"
)

// shutdownTimeout bounds the graceful part of Shutdown.
const shutdownTimeout = 5 * time.Second

// Application is the central coordinator for all waystorm components.
// It manages component lifecycles, wiring, and the main event loop.
type Application struct {
	mu sync.Mutex

	// Core infrastructure
	cfg       *config.Config
	logger    *logrus.Logger
	logCloser io.Closer
	registry  *prometheus.Registry
	loop      *loop.Loop

	// Desktop model
	workspace *workspace.Workspace
	power     *power.Manager
	lock      *lockscreen.State

	// Input pipeline
	redirection *input.Redirection
	connection  *connection.Connection
	source      connection.Source
	actions     *shortcuts.Actions
	backlight   *backlight.Filter
	shortcuts   *shortcuts.Filter
	script      *script.Filter

	// Outer surfaces
	watcher *config.Watcher
	metrics *MetricsServer

	// State
	running atomic.Bool
	stopped atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	// Options
	opts Options
}

// Options configures the application.
type Options struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string

	// LogLevel overrides the configured log level.
	LogLevel string

	// Backend overrides the configured backend type.
	Backend string

	// Watch reloads the configuration file when it changes.
	Watch bool

	// Config is used instead of loading ConfigPath.
	Config *config.Config

	// Logger is used instead of building one from the configuration.
	Logger *logrus.Logger

	// Source is used instead of the configured backend.
	Source connection.Source

	// Backlight is the sysfs backlight class directory.
	Backlight billy.Filesystem

	// Signals enables process signal handling in Run.
	Signals bool
}

// New creates a new Application with the given options.
func New(opts Options) (*Application, error) {
	app := &Application{
		opts: opts,
		done: make(chan struct{}),
	}

	if err := newBootstrapper(app, opts).bootstrap(); err != nil {
		return nil, err
	}

	return app, nil
}

// Config returns the active configuration.
func (app *Application) Config() *config.Config {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.cfg
}

// Logger returns the application logger.
func (app *Application) Logger() *logrus.Logger { return app.logger }

// Registry returns the metrics registry.
func (app *Application) Registry() *prometheus.Registry { return app.registry }

// Loop returns the main loop.
func (app *Application) Loop() *loop.Loop { return app.loop }

// Workspace returns the window model.
func (app *Application) Workspace() *workspace.Workspace { return app.workspace }

// Redirection returns the input redirection.
func (app *Application) Redirection() *input.Redirection { return app.redirection }

// Connection returns the device connection.
func (app *Application) Connection() *connection.Connection { return app.connection }

// Power returns the power manager.
func (app *Application) Power() *power.Manager { return app.power }

// Actions returns the action registry used by shortcuts and scripts.
func (app *Application) Actions() *shortcuts.Actions { return app.actions }

// IsLocked reports whether the session is locked.
func (app *Application) IsLocked() bool { return app.lock.IsLocked() }

// IsRunning reports whether Run is active.
func (app *Application) IsRunning() bool { return app.running.Load() }

// Done is closed when Run returns.
func (app *Application) Done() <-chan struct{} { return app.done }

// Run sets up the device connection and runs the main loop until ctx is
// canceled or the quit action runs. Backends that need the main goroutine
// get it; the loop then runs on a second goroutine.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(app.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	app.mu.Lock()
	app.ctx = ctx
	app.cancel = cancel
	app.mu.Unlock()

	logger := WithComponent(app.logger, "app")

	if err := app.power.Init(); err != nil {
		logger.WithError(err).Warn("power init failed")
	}
	if err := app.connection.Setup(ctx); err != nil {
		// Retried on resume.
		logger.WithError(err).Error("input setup failed")
	}

	var wg sync.WaitGroup
	if app.watcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.watcher.Run(ctx); err != nil {
				logger.WithError(err).Warn("config watcher stopped")
			}
		}()
	}
	if app.opts.Signals {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.handleSignals(ctx)
		}()
	}

	var runErr error
	if mt, ok := app.source.(backend.MainThread); ok {
		loopErr := make(chan error, 1)
		go func() { loopErr <- app.loop.Run(ctx) }()
		runErr = mt.RunMain(ctx)
		cancel()
		if err := <-loopErr; runErr == nil {
			runErr = err
		}
	} else {
		runErr = app.loop.Run(ctx)
	}
	cancel()
	wg.Wait()

	if err := app.Shutdown(); err != nil {
		return multierror.Append(runErr, err).ErrorOrNil()
	}
	return runErr
}

// Quit stops Run.
func (app *Application) Quit() {
	app.mu.Lock()
	cancel := app.cancel
	app.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Shutdown releases every component in reverse initialization order.
// It is called by Run and is safe to call again.
func (app *Application) Shutdown() error {
	if !app.stopped.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var result *multierror.Error
	if app.metrics != nil {
		if err := app.metrics.Shutdown(ctx); err != nil {
			result = multierror.Append(result, NewComponentError("metrics", "shutdown", err))
		}
		app.metrics = nil
	}
	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil {
			result = multierror.Append(result, NewComponentError("config", "close watcher", err))
		}
		app.watcher = nil
	}
	if app.connection != nil {
		if err := app.connection.Close(); err != nil {
			result = multierror.Append(result, NewComponentError("connection", "close", err))
		}
	}
	if app.script != nil {
		if err := app.script.Close(); err != nil {
			result = multierror.Append(result, NewComponentError("script", "close", err))
		}
		app.script = nil
	}
	if app.power != nil {
		if err := app.power.Close(); err != nil {
			result = multierror.Append(result, NewComponentError("power", "close", err))
		}
	}
	if ctx.Err() != nil {
		result = multierror.Append(result, ErrShutdownTimeout)
	}
	if app.logCloser != nil {
		if err := app.logCloser.Close(); err != nil {
			result = multierror.Append(result, NewComponentError("log", "close", err))
		}
		app.logCloser = nil
	}
	return result.ErrorOrNil()
}

// Suspend releases the input devices, e.g. on a session switch.
func (app *Application) Suspend() {
	app.connection.Deactivate()
}

// Resume takes the input devices back. A connection whose setup failed is
// set up again first.
func (app *Application) Resume() {
	app.mu.Lock()
	ctx := app.ctx
	app.mu.Unlock()
	if ctx != nil {
		if err := app.connection.Setup(ctx); err != nil {
			WithComponent(app.logger, "app").WithError(err).Error("input setup failed")
			return
		}
	}
	app.connection.Resume()
}

// Reload applies cfg to the running components: output layout, shortcut
// table, double tap interval and script. Must run on the main loop.
func (app *Application) Reload(cfg *config.Config) {
	logger := WithComponent(app.logger, "app")

	if err := app.workspace.SetOutputs(cfg.OutputRects()); err != nil {
		logger.WithError(err).Warn("outputs not applied")
	} else {
		app.applyOutputs()
	}
	if err := app.shortcuts.SetBindings(bindings(cfg)); err != nil {
		logger.WithError(err).Warn("some shortcuts were skipped")
	}
	app.backlight.SetInterval(cfg.Input.DoubleTapInterval.D())
	if app.script != nil && cfg.Script.Path != "" {
		if err := app.script.Reload(cfg.Script.Path); err != nil {
			logger.WithError(err).Warn("script reload failed")
		}
	}

	app.mu.Lock()
	app.cfg = cfg
	app.mu.Unlock()
	logger.Info("configuration reloaded")
}

// reloadFile re-reads the configuration file and applies it.
func (app *Application) reloadFile() {
	if app.opts.ConfigPath == "" {
		return
	}
	cfg, err := config.Load(app.opts.ConfigPath)
	app.onConfigChange(cfg, err)
}

func (app *Application) onConfigChange(cfg *config.Config, err error) {
	if err != nil {
		WithComponent(app.logger, "app").WithError(err).Warn("configuration not reloaded")
		return
	}
	app.loop.Post(func() { app.Reload(cfg) })
}

func (app *Application) applyOutputs() {
	outputs := app.workspace.Outputs()
	app.connection.SetOutputs(outputs)
	app.connection.SetScreenSize(app.redirection.Bounds().Size())
}

// handleSignals maps process signals to session actions until ctx is done.
// SIGUSR1 suspends input, SIGUSR2 resumes it, SIGHUP reloads the
// configuration and SIGINT or SIGTERM stop the application.
func (app *Application) handleSignals(ctx context.Context) {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(ch)

	logger := WithComponent(app.logger, "app")
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-ch:
			logger.WithField("signal", sig.String()).Info("signal received")
			switch sig {
			case syscall.SIGUSR1:
				app.loop.Post(app.Suspend)
			case syscall.SIGUSR2:
				app.loop.Post(app.Resume)
			case syscall.SIGHUP:
				go app.reloadFile()
			default:
				app.Quit()
				return
			}
		}
	}
}

func bindings(cfg *config.Config) []shortcuts.Binding {
	out := make([]shortcuts.Binding, 0, len(cfg.Shortcuts))
	for _, s := range cfg.Shortcuts {
		out = append(out, shortcuts.Binding{Keys: s.Keys, Action: s.Action})
	}
	return out
}
