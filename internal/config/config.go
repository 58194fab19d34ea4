// Package config handles ratefit configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds job-server settings.
type ServerConfig struct {
	Addr          string `yaml:"addr"`
	CheckpointDir string `yaml:"checkpoint_dir"`
}

// CalibrationConfig holds the default calibration settings.
type CalibrationConfig struct {
	X0      float64 `yaml:"x0"`
	H0      float64 `yaml:"h0"`
	Tol     float64 `yaml:"tol"`
	Beta    float64 `yaml:"beta"`
	Horizon float64 `yaml:"horizon"`

	Optimizer string  `yaml:"optimizer"` // imfilter, mayfly
	Restarts  int     `yaml:"restarts"`
	Seed      int64   `yaml:"seed"`
	Span      float64 `yaml:"span"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the default configuration: recover beta = 1 over a
// horizon of 5, starting from 1.5.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          ":8080",
			CheckpointDir: "./data",
		},
		Calibration: CalibrationConfig{
			X0:        1.5,
			H0:        0.1,
			Tol:       1e-7,
			Beta:      1.0,
			Horizon:   5.0,
			Optimizer: "imfilter",
			Restarts:  0,
			Seed:      42,
			Span:      2.0,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// Validate checks field ranges, returning an error naming the offending
// field.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}
	if c.Calibration.H0 <= 0 {
		return fmt.Errorf("calibration.h0 must be positive, got %g", c.Calibration.H0)
	}
	if c.Calibration.Tol < 0 {
		return fmt.Errorf("calibration.tol must be non-negative, got %g", c.Calibration.Tol)
	}
	if c.Calibration.Horizon <= 0 {
		return fmt.Errorf("calibration.horizon must be positive, got %g", c.Calibration.Horizon)
	}
	if c.Calibration.Restarts < 0 {
		return fmt.Errorf("calibration.restarts must be non-negative, got %d", c.Calibration.Restarts)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}

// Load loads configuration from a file. Fields absent from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault loads config from path, or returns the default if the
// path is empty or the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	return Load(path)
}

// Save saves configuration to a file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultPath returns the default config file path. A config/
// subdirectory takes precedence when it holds a ratefit.yaml.
func DefaultPath() string {
	if _, err := os.Stat("config/ratefit.yaml"); err == nil {
		return "config/ratefit.yaml"
	}
	return "ratefit.yaml"
}

// Init creates a default config file if it doesn't exist.
func Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil // already exists
	}

	return Default().Save(path)
}
