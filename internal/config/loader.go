package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load builds the configuration from defaults, the file at path and the
// process environment, then validates it. An empty path or a missing
// file leaves the defaults in place.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := LoadFile(cfg, path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if err := ApplyEnv(cfg, lookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile decodes the file at path over cfg. Keys absent from the file
// keep their current values; unknown keys are an error.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return Decode(cfg, path, bytes.NewReader(data))
}

// Decode decodes r over cfg. The format is chosen by the extension of
// name: .yaml and .yml are YAML, anything else is TOML.
func Decode(cfg *Config, name string, r io.Reader) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return decodeYAML(cfg, name, r)
	case ".toml", "", ".conf":
		return decodeTOML(cfg, name, r)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

func decodeTOML(cfg *Config, name string, r io.Reader) error {
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	err := dec.Decode(cfg)
	if err == nil {
		return nil
	}

	perr := &ParseError{Path: name, Message: err.Error(), Err: err}
	var derr *toml.DecodeError
	var serr *toml.StrictMissingError
	switch {
	case errors.As(err, &derr):
		perr.Line, perr.Column = derr.Position()
	case errors.As(err, &serr) && len(serr.Errors) > 0:
		perr.Line, perr.Column = serr.Errors[0].Position()
		perr.Message = "unknown key " + strings.Join(serr.Errors[0].Key(), ".")
	}
	return perr
}

func decodeYAML(cfg *Config, name string, r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &ParseError{Path: name, Message: err.Error(), Err: err}
	}
	return nil
}

var lookupEnv LookupFunc = os.LookupEnv

// DefaultPath returns the default configuration file location,
// $XDG_CONFIG_HOME/waystorm/config.toml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "waystorm", "config.toml")
}
