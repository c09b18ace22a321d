// Package config loads regen settings from regen.toml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/roach88/regen/internal/ir"
)

const (
	// ConfigFile is looked up in the working directory and its parents.
	ConfigFile = "regen.toml"

	// EnvConfig overrides the lookup with an explicit path.
	EnvConfig = "REGEN_CONFIG"
)

// Config represents the regen configuration
type Config struct {
	// Database is the SQLite path used by --db when the flag is omitted.
	Database string `toml:"database"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`

	// Tolerance is the descriptor tolerance used when diffing identity maps.
	Tolerance float64 `toml:"tolerance"`

	// DefaultFormat is the CLI output format, text or json.
	DefaultFormat string `toml:"default_format"`

	path string // file the config was read from; empty for defaults
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:      "info",
		Tolerance:     ir.DescriptorTolerance,
		DefaultFormat: "text",
	}
}

// Find returns the path of regen.toml, walking up from dir.
// Returns fs.ErrNotExist if there is none.
func Find(dir string) (string, error) {
	for {
		p := filepath.Join(dir, ConfigFile)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fs.ErrNotExist
		}
		dir = parent
	}
}

// Load reads the configuration.
//
// With an explicit path the file must exist. Otherwise REGEN_CONFIG is
// consulted, then regen.toml is searched from the working directory up;
// if nothing is found the defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		found, err := Find(cwd)
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		if err != nil {
			return nil, err
		}
		path = found
	}
	return LoadFile(path)
}

// LoadFile reads the configuration at path. Unset keys keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	cfg.path = path
	// Relative database paths are relative to the config file.
	if cfg.Database != "" && !filepath.IsAbs(cfg.Database) {
		cfg.Database = filepath.Join(filepath.Dir(path), cfg.Database)
	}
	return cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %g", c.Tolerance)
	}
	switch c.DefaultFormat {
	case "text", "json":
	default:
		return fmt.Errorf("default_format must be text or json, got %q", c.DefaultFormat)
	}
	return nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Path returns the file the configuration was read from, or "" for
// defaults.
func (c *Config) Path() string {
	return c.path
}

// Level returns the slog level for LogLevel.
func (c *Config) Level() slog.Level {
	lvl, _ := ParseLevel(c.LogLevel)
	return lvl
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
