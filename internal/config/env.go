package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "WAYSTORM_"

// LookupFunc looks up an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(name string) (string, bool)

// envSetters maps each supported environment variable to its setting.
var envSetters = map[string]func(c *Config, v string) error{
	"WAYSTORM_LOG_LEVEL": func(c *Config, v string) error {
		c.Log.Level = v
		return nil
	},
	"WAYSTORM_LOG_FORMAT": func(c *Config, v string) error {
		c.Log.Format = v
		return nil
	},
	"WAYSTORM_LOG_FILE": func(c *Config, v string) error {
		c.Log.File = v
		return nil
	},
	"WAYSTORM_BACKEND": func(c *Config, v string) error {
		c.Backend.Type = v
		return nil
	},
	"WAYSTORM_REMOTE_LISTEN": func(c *Config, v string) error {
		c.Backend.Listen = v
		return nil
	},
	"WAYSTORM_METRICS_LISTEN": func(c *Config, v string) error {
		c.Metrics.Listen = v
		return nil
	},
	"WAYSTORM_INPUT_DIR": func(c *Config, v string) error {
		c.Input.Dir = v
		return nil
	},
	"WAYSTORM_INPUT_GRAB": func(c *Config, v string) error {
		b, err := parseBool(v)
		c.Input.Grab = b
		return err
	},
	"WAYSTORM_DOUBLE_TAP_INTERVAL": func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		c.Input.DoubleTapInterval = Duration(d)
		return err
	},
	"WAYSTORM_SCRIPT": func(c *Config, v string) error {
		c.Script.Path = v
		return nil
	},
	"WAYSTORM_BACKLIGHT": func(c *Config, v string) error {
		c.Power.Backlight = v
		return nil
	},
	"WAYSTORM_LOCKED": func(c *Config, v string) error {
		b, err := parseBool(v)
		c.Lock.Locked = b
		return err
	},
}

// ApplyEnv applies WAYSTORM_* overrides found through lookup. Empty
// values are treated as set.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	for _, name := range EnvNames() {
		v, ok := lookup(name)
		if !ok {
			continue
		}
		if err := envSetters[name](cfg, v); err != nil {
			return &EnvError{Name: name, Value: v, Err: err}
		}
	}
	return nil
}

// EnvNames returns the supported environment variables, sorted.
func EnvNames() []string {
	names := make([]string, 0, len(envSetters))
	for n := range envSetters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %s", strconv.Quote(s))
}
