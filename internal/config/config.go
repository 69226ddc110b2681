package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/dshills/waystorm/internal/geom"
)

// Backend types.
const (
	BackendNative   = "native"
	BackendTerminal = "terminal"
	BackendNested   = "nested"
	BackendRemote   = "remote"
)

// Config is the complete waystorm configuration.
type Config struct {
	Log       LogConfig        `toml:"log" yaml:"log"`
	Backend   BackendConfig    `toml:"backend" yaml:"backend"`
	Input     InputConfig      `toml:"input" yaml:"input"`
	Outputs   []OutputConfig   `toml:"outputs" yaml:"outputs"`
	Windows   []WindowConfig   `toml:"windows" yaml:"windows"`
	Shortcuts []ShortcutConfig `toml:"shortcuts" yaml:"shortcuts"`
	Script    ScriptConfig     `toml:"script" yaml:"script"`
	Power     PowerConfig      `toml:"power" yaml:"power"`
	Metrics   MetricsConfig    `toml:"metrics" yaml:"metrics"`
	Lock      LockConfig       `toml:"lock" yaml:"lock"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" yaml:"level"`
	// Format is "text" or "json".
	Format string `toml:"format" yaml:"format"`
	// File is the log file path; empty means stderr.
	File string `toml:"file" yaml:"file"`
}

// BackendConfig selects where input comes from.
type BackendConfig struct {
	// Type is one of native, terminal, nested, remote.
	Type string `toml:"type" yaml:"type"`
	// Listen is the address of the remote backend's WebSocket server.
	Listen string `toml:"listen" yaml:"listen"`
	// Title is the nested backend's window title.
	Title string `toml:"title" yaml:"title"`
}

// InputConfig configures native input devices and input policy.
type InputConfig struct {
	// Dir is the evdev device directory.
	Dir string `toml:"dir" yaml:"dir"`
	// Devices restricts the opened devices to these names or paths.
	// Empty means every device.
	Devices []string `toml:"devices" yaml:"devices"`
	// Grab requests exclusive access to opened devices.
	Grab bool `toml:"grab" yaml:"grab"`
	// DoubleTapInterval is the maximum duration of a double tap.
	DoubleTapInterval Duration `toml:"double_tap_interval" yaml:"double_tap_interval"`
	// DeviceOutputs maps a device name to the output index its absolute
	// coordinates cover.
	DeviceOutputs map[string]int `toml:"device_outputs" yaml:"device_outputs"`
}

// OutputConfig is one output rectangle in global coordinates.
type OutputConfig struct {
	Name   string `toml:"name" yaml:"name"`
	X      int    `toml:"x" yaml:"x"`
	Y      int    `toml:"y" yaml:"y"`
	Width  int    `toml:"width" yaml:"width"`
	Height int    `toml:"height" yaml:"height"`
}

// WindowConfig places a window at startup, such as a panel or an
// on-screen keyboard.
type WindowConfig struct {
	Title  string `toml:"title" yaml:"title"`
	X      int    `toml:"x" yaml:"x"`
	Y      int    `toml:"y" yaml:"y"`
	Width  int    `toml:"width" yaml:"width"`
	Height int    `toml:"height" yaml:"height"`
	// Passthrough makes the window ignore pointer and touch input.
	Passthrough bool `toml:"passthrough" yaml:"passthrough"`
}

// Rect returns the window frame as a rectangle.
func (w WindowConfig) Rect() geom.Rect {
	return geom.R(float64(w.X), float64(w.Y), float64(w.Width), float64(w.Height))
}

// ShortcutConfig binds a key combo to an action.
type ShortcutConfig struct {
	Keys   string `toml:"keys" yaml:"keys"`
	Action string `toml:"action" yaml:"action"`
}

// ScriptConfig configures the Lua input filter.
type ScriptConfig struct {
	// Path is the Lua file; empty disables the filter.
	Path    string   `toml:"path" yaml:"path"`
	Timeout Duration `toml:"timeout" yaml:"timeout"`
}

// PowerConfig configures output blanking.
type PowerConfig struct {
	// Backlight is the device name under the sysfs backlight class.
	Backlight string `toml:"backlight" yaml:"backlight"`
	// SysfsDir overrides /sys/class/backlight.
	SysfsDir string `toml:"sysfs_dir" yaml:"sysfs_dir"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the HTTP address; empty disables the endpoint.
	Listen string `toml:"listen" yaml:"listen"`
}

// LockConfig configures the session lock.
type LockConfig struct {
	// Locked starts the session locked.
	Locked bool `toml:"locked" yaml:"locked"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Backend: BackendConfig{
			Type:   BackendNative,
			Listen: "127.0.0.1:7411",
			Title:  "waystorm",
		},
		Input: InputConfig{
			Dir:               "/dev/input",
			DoubleTapInterval: Duration(400 * time.Millisecond),
		},
		Outputs: []OutputConfig{
			{Name: "default", Width: 1280, Height: 1024},
		},
		Script: ScriptConfig{
			Timeout: Duration(50 * time.Millisecond),
		},
	}
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var result *multierror.Error

	switch c.Backend.Type {
	case BackendNative, BackendTerminal, BackendNested, BackendRemote:
	default:
		result = multierror.Append(result, &ValidationError{Path: "backend.type", Value: c.Backend.Type, Err: ErrUnknownBackend})
	}

	if len(c.Outputs) == 0 {
		result = multierror.Append(result, &ValidationError{Path: "outputs", Value: 0, Err: ErrNoOutputs})
	}
	for i, o := range c.Outputs {
		if o.Width <= 0 || o.Height <= 0 {
			result = multierror.Append(result, &ValidationError{
				Path:  fmt.Sprintf("outputs[%d]", i),
				Value: fmt.Sprintf("%dx%d", o.Width, o.Height),
				Err:   ErrInvalidOutput,
			})
		}
	}
	for i, w := range c.Windows {
		if w.Width <= 0 || w.Height <= 0 {
			result = multierror.Append(result, &ValidationError{
				Path:  fmt.Sprintf("windows[%d]", i),
				Value: fmt.Sprintf("%dx%d", w.Width, w.Height),
				Err:   ErrInvalidWindow,
			})
		}
	}
	for name, idx := range c.Input.DeviceOutputs {
		if idx < 0 || idx >= len(c.Outputs) {
			result = multierror.Append(result, &ValidationError{Path: "input.device_outputs." + name, Value: idx, Err: ErrInvalidOutput})
		}
	}

	if c.Input.DoubleTapInterval <= 0 {
		result = multierror.Append(result, &ValidationError{Path: "input.double_tap_interval", Value: c.Input.DoubleTapInterval, Err: ErrInvalidInterval})
	}
	if c.Script.Timeout <= 0 {
		result = multierror.Append(result, &ValidationError{Path: "script.timeout", Value: c.Script.Timeout, Err: ErrInvalidInterval})
	}

	return result.ErrorOrNil()
}

// Duration is a time.Duration written as a string such as "400ms".
type Duration time.Duration

// D returns d as a time.Duration.
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Rect returns the output as a rectangle.
func (o OutputConfig) Rect() geom.Rect {
	return geom.R(float64(o.X), float64(o.Y), float64(o.Width), float64(o.Height))
}

// OutputRects returns the configured outputs as rectangles in index order.
func (c *Config) OutputRects() []geom.Rect {
	rects := make([]geom.Rect, len(c.Outputs))
	for i, o := range c.Outputs {
		rects[i] = o.Rect()
	}
	return rects
}
