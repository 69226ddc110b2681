package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/waystorm/internal/geom"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func noEnv(string) (string, bool) { return "", false }

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Input.DoubleTapInterval.D() != 400*time.Millisecond {
		t.Errorf("DoubleTapInterval = %v, want 400ms", cfg.Input.DoubleTapInterval)
	}
}

func TestLoadFileTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[log]
level = "debug"

[input]
grab = true
double_tap_interval = "250ms"
device_outputs = { "ft5x06" = 1 }

[[outputs]]
name = "left"
width = 1280
height = 1024

[[outputs]]
name = "right"
x = 1280
width = 1280
height = 1024

[[shortcuts]]
keys = "Meta+L"
action = "session.lock"
`)
	cfg := Default()
	if err := LoadFile(cfg, path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want default kept", cfg.Log.Format)
	}
	if !cfg.Input.Grab {
		t.Error("Input.Grab = false")
	}
	if cfg.Input.DoubleTapInterval.D() != 250*time.Millisecond {
		t.Errorf("DoubleTapInterval = %v", cfg.Input.DoubleTapInterval)
	}
	if cfg.Input.DeviceOutputs["ft5x06"] != 1 {
		t.Errorf("DeviceOutputs = %v", cfg.Input.DeviceOutputs)
	}
	rects := cfg.OutputRects()
	if len(rects) != 2 || rects[1] != geom.R(1280, 0, 1280, 1024) {
		t.Errorf("OutputRects() = %v", rects)
	}
	if len(cfg.Shortcuts) != 1 || cfg.Shortcuts[0].Action != "session.lock" {
		t.Errorf("Shortcuts = %v", cfg.Shortcuts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadFileYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
backend:
  type: remote
  listen: ":9000"
script:
  path: /etc/waystorm/filter.lua
  timeout: 20ms
`)
	cfg := Default()
	if err := LoadFile(cfg, path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Backend.Type != BackendRemote || cfg.Backend.Listen != ":9000" {
		t.Errorf("Backend = %+v", cfg.Backend)
	}
	if cfg.Script.Timeout.D() != 20*time.Millisecond {
		t.Errorf("Script.Timeout = %v", cfg.Script.Timeout)
	}
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"syntax", "bad.toml", "[log\nlevel = 1"},
		{"unknown key", "unknown.toml", "[log]\ncolour = true\n"},
		{"bad duration", "dur.toml", "[input]\ndouble_tap_interval = \"soon\"\n"},
		{"yaml unknown key", "bad.yaml", "log:\n  colour: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := LoadFile(Default(), writeFile(t, tt.file, tt.content))
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("LoadFile error = %v, want *ParseError", err)
			}
			if !strings.Contains(perr.Error(), tt.file) {
				t.Errorf("error %q does not name the file", perr.Error())
			}
		})
	}
}

func TestLoadFileUnsupportedFormat(t *testing.T) {
	err := LoadFile(Default(), writeFile(t, "config.json", "{}"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	prev := lookupEnv
	lookupEnv = noEnv
	defer func() { lookupEnv = prev }()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.Type != BackendNative {
		t.Errorf("Backend.Type = %q", cfg.Backend.Type)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"WAYSTORM_LOG_LEVEL":           "warn",
		"WAYSTORM_BACKEND":             "terminal",
		"WAYSTORM_METRICS_LISTEN":      ":9100",
		"WAYSTORM_INPUT_GRAB":          "yes",
		"WAYSTORM_DOUBLE_TAP_INTERVAL": "300ms",
		"WAYSTORM_LOCKED":              "1",
	}
	lookup := func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}

	cfg := Default()
	if err := ApplyEnv(cfg, lookup); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Log.Level != "warn" || cfg.Backend.Type != BackendTerminal || cfg.Metrics.Listen != ":9100" {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.Input.Grab || !cfg.Lock.Locked {
		t.Error("boolean overrides not applied")
	}
	if cfg.Input.DoubleTapInterval.D() != 300*time.Millisecond {
		t.Errorf("DoubleTapInterval = %v", cfg.Input.DoubleTapInterval)
	}
}

func TestApplyEnvInvalid(t *testing.T) {
	lookup := func(name string) (string, bool) {
		if name == "WAYSTORM_INPUT_GRAB" {
			return "maybe", true
		}
		return "", false
	}
	err := ApplyEnv(Default(), lookup)
	var eerr *EnvError
	if !errors.As(err, &eerr) || eerr.Name != "WAYSTORM_INPUT_GRAB" {
		t.Errorf("ApplyEnv error = %v, want EnvError for WAYSTORM_INPUT_GRAB", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Backend.Type = "x11"
	cfg.Outputs = []OutputConfig{{Width: 0, Height: 100}}
	cfg.Input.DoubleTapInterval = 0
	cfg.Input.DeviceOutputs = map[string]int{"touch": 3}

	err := cfg.Validate()
	for _, want := range []error{ErrUnknownBackend, ErrInvalidOutput, ErrInvalidInterval} {
		if !errors.Is(err, want) {
			t.Errorf("Validate() = %v, want %v", err, want)
		}
	}

	cfg = Default()
	cfg.Outputs = nil
	if err := cfg.Validate(); !errors.Is(err, ErrNoOutputs) {
		t.Errorf("Validate() = %v, want ErrNoOutputs", err)
	}
}

func TestWindows(t *testing.T) {
	path := writeFile(t, "config.toml", `
[[windows]]
title = "panel"
y = 984
width = 1280
height = 40

[[windows]]
title = "osd"
x = 400
y = 400
width = 480
height = 200
passthrough = true
`)
	cfg := Default()
	if err := LoadFile(cfg, path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(cfg.Windows) != 2 {
		t.Fatalf("Windows = %+v", cfg.Windows)
	}
	if got := cfg.Windows[0].Rect(); got != geom.R(0, 984, 1280, 40) {
		t.Errorf("Windows[0].Rect() = %v", got)
	}
	if cfg.Windows[0].Passthrough || !cfg.Windows[1].Passthrough {
		t.Errorf("Passthrough = %v, %v", cfg.Windows[0].Passthrough, cfg.Windows[1].Passthrough)
	}

	cfg.Windows[1].Height = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("Validate() = %v, want ErrInvalidWindow", err)
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1.5s")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	text, _ := d.MarshalText()
	if string(text) != "1.5s" {
		t.Errorf("MarshalText() = %q", text)
	}
	if err := d.UnmarshalText([]byte("later")); err == nil {
		t.Error("UnmarshalText(later) should fail")
	}
}
