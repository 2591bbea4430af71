// Package config holds the tool-level configuration file: which engine
// command to run, the optional subcommand shim, and default output behavior.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/balebuild/bale/pkg/bundler"
	"github.com/balebuild/bale/pkg/execs"
)

// Config is the parsed tool configuration.
type Config struct {
	// Engine is the bundling engine command.
	Engine execs.Command `yaml:"engine"`
	// Shim is an optional host-runtime shim prepended to subcommand spawns.
	Shim string `yaml:"shim,omitempty"`
	// Quiet suppresses non-error status output by default.
	Quiet bool `yaml:"quiet,omitempty"`
	// Verbose enables resolution-phase status output by default.
	Verbose bool `yaml:"verbose,omitempty"`
}

// NewConfig returns the default configuration.
func NewConfig() *Config {
	return &Config{
		Engine: execs.NewCommand(bundler.DefaultEngineCommand),
	}
}

// GetPath returns the default configuration file path.
func GetPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}

		base = filepath.Join(home, ".config")
	}

	return filepath.Join(base, "bale", "config.yaml")
}

// Load reads the configuration at path, layering it over defaults. A missing
// file returns the defaults with [os.ErrNotExist] wrapped, so callers can
// degrade gracefully.
func Load(path string) (*Config, error) {
	c := NewConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}

	err = yaml.Unmarshal(data, c)
	if err != nil {
		return NewConfig(), fmt.Errorf("parse config %q: %w", path, err)
	}

	if c.Engine.Command == "" {
		c.Engine.Command = bundler.DefaultEngineCommand
	}

	return c, nil
}

// WriteDefault writes the default configuration to path unless a file
// already exists there.
func WriteDefault(path string) error {
	if path == "" {
		return errors.New("empty config path")
	}

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}

	err = os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(NewConfig())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}

	err = os.WriteFile(path, data, 0o644)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
