package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"maxis/internal/schema"
)

// Config holds all maxis configuration.
type Config struct {
	Name string `yaml:"name"`

	// Host session behaviour
	Host HostConfig `yaml:"host"`

	// Extra panel schemas and code tables layered over the built-in ones
	Schemas PathsConfig `yaml:"schemas"`
	Codecs  PathsConfig `yaml:"codecs"`

	// Write audit trail
	Journal JournalConfig `yaml:"journal"`

	// Parallel sessions
	Sessions SessionsConfig `yaml:"sessions"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// HostConfig configures how the binder drives a session.
type HostConfig struct {
	MaxPageTurns     int    `yaml:"max_page_turns"`
	OperationTimeout string `yaml:"operation_timeout"` // per binder operation
	SlowOperation    string `yaml:"slow_operation"`    // warn past this
	WarningToken     string `yaml:"warning_token"`
}

// PathsConfig lists extra YAML files.
type PathsConfig struct {
	Paths []string `yaml:"paths,omitempty"`
}

// JournalConfig configures the write journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// SessionsConfig configures the session executor.
type SessionsConfig struct {
	Parallelism int `yaml:"parallelism"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name: "maxis",

		Host: HostConfig{
			MaxPageTurns:     50,
			OperationTimeout: "2m",
			SlowOperation:    "10s",
			WarningToken:     "WARNING",
		},

		Journal: JournalConfig{
			Enabled: true,
			Path:    ".maxis/journal.db",
		},

		Sessions: SessionsConfig{
			Parallelism: 2,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
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
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("MAXIS_JOURNAL_DB"); path != "" {
		c.Journal.Path = path
	}
	if level := os.Getenv("MAXIS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if v := os.Getenv("MAXIS_MAX_PAGE_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Host.MaxPageTurns = n
		}
	}
}

// GetOperationTimeout returns the per-operation timeout as a duration.
func (c *Config) GetOperationTimeout() time.Duration {
	d, err := time.ParseDuration(c.Host.OperationTimeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// GetSlowOperation returns the duration past which an operation is logged
// as slow.
func (c *Config) GetSlowOperation() time.Duration {
	d, err := time.ParseDuration(c.Host.SlowOperation)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// Layout returns the host screen conventions with configured overrides.
func (c *Config) Layout() schema.Layout {
	l := schema.DefaultLayout()
	if c.Host.WarningToken != "" {
		l.WarningToken = c.Host.WarningToken
	}
	return l
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Host.MaxPageTurns <= 0 {
		return fmt.Errorf("host.max_page_turns must be positive, got %d", c.Host.MaxPageTurns)
	}
	if c.Host.OperationTimeout != "" {
		if _, err := time.ParseDuration(c.Host.OperationTimeout); err != nil {
			return fmt.Errorf("invalid host.operation_timeout %q: %w", c.Host.OperationTimeout, err)
		}
	}
	if c.Host.SlowOperation != "" {
		if _, err := time.ParseDuration(c.Host.SlowOperation); err != nil {
			return fmt.Errorf("invalid host.slow_operation %q: %w", c.Host.SlowOperation, err)
		}
	}
	if c.Sessions.Parallelism <= 0 {
		return fmt.Errorf("sessions.parallelism must be positive, got %d", c.Sessions.Parallelism)
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal.path is required when the journal is enabled")
	}

	validLevel := false
	for _, l := range ValidLogLevels {
		if c.Logging.Level == l {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid logging level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid logging format: %s (valid: json, text)", c.Logging.Format)
	}

	return nil
}

// IsJournalEnabled returns whether writes are journaled.
func (c *Config) IsJournalEnabled() bool {
	return c.Journal.Enabled
}
