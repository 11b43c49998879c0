// Package config loads vigil configuration with layered precedence:
// hardcoded defaults, then the user config, then the project config,
// then VIGIL_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Config represents the complete vigil configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Watch   WatchConfig   `yaml:"watch" json:"watch"`
	Journal JournalConfig `yaml:"journal" json:"journal"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Log     LogConfig     `yaml:"log" json:"log"`
}

// WatchConfig configures classification and delivery timing.
// Durations are strings ("200ms", "2s") so YAML round-trips cleanly.
type WatchConfig struct {
	// Pattern narrows delivery to matching root-relative paths.
	Pattern string `yaml:"pattern" json:"pattern"`

	// Ignore lists gitignore-style patterns whose paths are excluded
	// from observation entirely.
	Ignore []string `yaml:"ignore" json:"ignore"`

	// Debounce is the quiet period before a path's classification is final.
	Debounce string `yaml:"debounce" json:"debounce"`

	// Correlation bounds how far apart the two halves of a rename may land.
	Correlation string `yaml:"correlation" json:"correlation"`

	// AggregationTick is how long same-category flushes pool into one batch.
	AggregationTick string `yaml:"aggregation_tick" json:"aggregation_tick"`

	// PollInterval is the scan interval for the polling backend.
	PollInterval string `yaml:"poll_interval" json:"poll_interval"`

	// BufferSize is the raw event channel buffer.
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`
}

// JournalConfig configures batch persistence.
type JournalConfig struct {
	// Enabled turns on journaling of delivered batches.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Path is the journal database location.
	Path string `yaml:"path" json:"path"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled serves /metrics while a watch runs.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Addr is the listen address for the metrics server.
	Addr string `yaml:"addr" json:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" json:"level"`
	// File overrides the default log file location.
	File string `yaml:"file" json:"file"`
}

// NewConfig creates a Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Watch: WatchConfig{
			Pattern:         "",
			Debounce:        "200ms",
			Correlation:     "50ms",
			AggregationTick: "25ms",
			PollInterval:    "2s",
			BufferSize:      1024,
		},
		Journal: JournalConfig{
			Enabled: false,
			Path:    DefaultJournalPath(),
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
	}
}

// DefaultJournalPath returns the default journal database location.
func DefaultJournalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".vigil", "journal.db")
	}
	return filepath.Join(home, ".vigil", "journal.db")
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/vigil/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/vigil/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vigil", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "vigil", "config.yaml")
	}
	return filepath.Join(home, ".config", "vigil", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()

	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// Load loads configuration for the given directory.
// Precedence, lowest to highest:
//  1. Hardcoded defaults
//  2. User config (~/.config/vigil/config.yaml)
//  3. Project config (.vigil.yaml in dir)
//  4. Environment variables (VIGIL_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .vigil.yaml or .vigil.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".vigil.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".vigil.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine, defaults carry.
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Watch
	if other.Watch.Pattern != "" {
		c.Watch.Pattern = other.Watch.Pattern
	}
	if len(other.Watch.Ignore) > 0 {
		c.Watch.Ignore = other.Watch.Ignore
	}
	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if other.Watch.Correlation != "" {
		c.Watch.Correlation = other.Watch.Correlation
	}
	if other.Watch.AggregationTick != "" {
		c.Watch.AggregationTick = other.Watch.AggregationTick
	}
	if other.Watch.PollInterval != "" {
		c.Watch.PollInterval = other.Watch.PollInterval
	}
	if other.Watch.BufferSize != 0 {
		c.Watch.BufferSize = other.Watch.BufferSize
	}

	// Journal. Enabled is boolean, so it only merges when the section
	// carries some other signal that it was actually written.
	if other.Journal.Enabled || other.Journal.Path != "" {
		c.Journal.Enabled = other.Journal.Enabled
	}
	if other.Journal.Path != "" {
		c.Journal.Path = other.Journal.Path
	}

	// Metrics, same boolean caveat.
	if other.Metrics.Enabled || other.Metrics.Addr != "" {
		c.Metrics.Enabled = other.Metrics.Enabled
	}
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.File != "" {
		c.Log.File = other.Log.File
	}
}

// applyEnvOverrides applies VIGIL_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VIGIL_PATTERN"); v != "" {
		c.Watch.Pattern = v
	}
	if v := os.Getenv("VIGIL_IGNORE"); v != "" {
		var patterns []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				patterns = append(patterns, p)
			}
		}
		c.Watch.Ignore = patterns
	}
	if v := os.Getenv("VIGIL_DEBOUNCE"); v != "" {
		c.Watch.Debounce = v
	}
	if v := os.Getenv("VIGIL_CORRELATION"); v != "" {
		c.Watch.Correlation = v
	}
	if v := os.Getenv("VIGIL_AGGREGATION_TICK"); v != "" {
		c.Watch.AggregationTick = v
	}
	if v := os.Getenv("VIGIL_POLL_INTERVAL"); v != "" {
		c.Watch.PollInterval = v
	}
	if v := os.Getenv("VIGIL_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Watch.BufferSize = n
		}
	}

	if v := os.Getenv("VIGIL_JOURNAL_ENABLED"); v != "" {
		c.Journal.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("VIGIL_JOURNAL_PATH"); v != "" {
		c.Journal.Path = v
	}

	if v := os.Getenv("VIGIL_METRICS_ENABLED"); v != "" {
		c.Metrics.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("VIGIL_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}

	if v := os.Getenv("VIGIL_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("VIGIL_LOG_FILE"); v != "" {
		c.Log.File = v
	}
}

// DebounceDuration parses the debounce window, falling back to the default.
func (w WatchConfig) DebounceDuration() time.Duration {
	return parseDuration(w.Debounce, 200*time.Millisecond)
}

// CorrelationDuration parses the rename correlation window.
func (w WatchConfig) CorrelationDuration() time.Duration {
	return parseDuration(w.Correlation, 50*time.Millisecond)
}

// AggregationTickDuration parses the dispatcher aggregation tick.
func (w WatchConfig) AggregationTickDuration() time.Duration {
	return parseDuration(w.AggregationTick, 25*time.Millisecond)
}

// PollIntervalDuration parses the polling backend scan interval.
func (w WatchConfig) PollIntervalDuration() time.Duration {
	return parseDuration(w.PollInterval, 2*time.Second)
}

// parseDuration parses s, returning fallback for empty or invalid input.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Watch.Pattern != "" {
		if !doublestar.ValidatePattern(c.Watch.Pattern) {
			return fmt.Errorf("watch.pattern is not a valid glob: %q", c.Watch.Pattern)
		}
	}

	for _, d := range []struct {
		name  string
		value string
	}{
		{"watch.debounce", c.Watch.Debounce},
		{"watch.correlation", c.Watch.Correlation},
		{"watch.aggregation_tick", c.Watch.AggregationTick},
		{"watch.poll_interval", c.Watch.PollInterval},
	} {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%s is not a valid duration: %q", d.name, d.value)
		}
		if parsed < 0 {
			return fmt.Errorf("%s must not be negative, got %s", d.name, d.value)
		}
	}

	if c.Watch.BufferSize < 0 {
		return fmt.Errorf("watch.buffer_size must be non-negative, got %d", c.Watch.BufferSize)
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal.path is required when journal.enabled is true")
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics.enabled is true")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("log.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Log.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// FindProjectRoot finds the project root directory by walking up from
// startDir looking for a .git directory or a .vigil.yaml/.yml file.
// Falls back to startDir when nothing is found.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}

		if fileExists(filepath.Join(currentDir, ".vigil.yaml")) ||
			fileExists(filepath.Join(currentDir, ".vigil.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
