// Package config provides configuration management for the datatree CLI.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/datatree/internal/adapter"
)

// Default configuration values.
const (
	DefaultStateFile     = ".datatree/state.db"
	DefaultOutput        = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultParallelism   = 1
	DefaultWatchDebounce = 200 * time.Millisecond
	DefaultSourceType    = "duckdb"
)

// Config holds all CLI configuration options.
type Config struct {
	OutputFormat  string        `koanf:"output"`
	Verbose       bool          `koanf:"verbose"`
	LogLevel      slog.Level    `koanf:"log_level"`
	Parallelism   int           `koanf:"parallelism"`
	StatePath     string        `koanf:"state_path"`
	WatchDebounce time.Duration `koanf:"watch_debounce"`
	Source        SourceConfig  `koanf:"source"`
}

// SourceConfig configures the SQL source used by the load command.
type SourceConfig struct {
	Type     string            `koanf:"type"`
	DSN      string            `koanf:"dsn"`
	Path     string            `koanf:"path"`
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	Database string            `koanf:"database"`
	User     string            `koanf:"user"`
	Password string            `koanf:"password"`
	Dim      string            `koanf:"dim"`
	Options  map[string]string `koanf:"options"`
}

// AdapterConfig converts the source section to an adapter configuration.
func (s SourceConfig) AdapterConfig() *adapter.Config {
	return &adapter.Config{
		Type:     s.Type,
		DSN:      s.DSN,
		Path:     s.Path,
		Host:     s.Host,
		Port:     s.Port,
		Database: s.Database,
		Username: s.User,
		Password: s.Password,
		Options:  s.Options,
	}
}

// Level returns the effective log level. Verbose forces debug.
func (c *Config) Level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	return c.LogLevel
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.OutputFormat {
	case "", "auto", "text", "markdown", "json":
	default:
		return fmt.Errorf("invalid output format %q (expected auto, text, markdown or json)", c.OutputFormat)
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative, got %d", c.Parallelism)
	}
	if c.WatchDebounce < 0 {
		return fmt.Errorf("watch_debounce must not be negative, got %s", c.WatchDebounce)
	}
	if c.Source.Type != "" && !adapter.Supported(c.Source.Type) {
		return &adapter.UnknownAdapterError{Type: c.Source.Type, Available: adapter.Types()}
	}
	return nil
}
