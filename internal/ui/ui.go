// Package ui provides terminal renderers for the live event feed and
// journal statistics.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/vigilfs/vigil/internal/watch"
)

// BatchEvent is one delivered batch, ready for display.
type BatchEvent struct {
	Category watch.Category
	Paths    []string
	Time     time.Time
}

// ErrorEvent represents an error surfaced while watching.
type ErrorEvent struct {
	Path   string
	Err    error
	IsWarn bool
}

// CategoryCount is a per-category tally for the session summary.
type CategoryCount struct {
	Category watch.Category
	Batches  int
	Paths    int
}

// SessionStats contains the final watch session summary.
type SessionStats struct {
	Batches     int
	Paths       int
	Duration    time.Duration
	Errors      int
	Warnings    int
	Backend     string
	PerCategory []CategoryCount
}

// Renderer defines the interface for event feed display.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// ShowBatch displays a delivered batch.
	ShowBatch(event BatchEvent)

	// AddError adds an error to display.
	AddError(event ErrorEvent)

	// Complete marks rendering as complete with summary.
	Complete(stats SessionStats)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the feed renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	Root       string // Watched root path to display in header
	Pattern    string // Active glob pattern to display in header
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithRoot sets the watched root path to display in the header.
func WithRoot(root string) ConfigOption {
	return func(c *Config) {
		c.Root = root
	}
}

// WithPattern sets the glob pattern to display in the header.
func WithPattern(pattern string) ConfigOption {
	return func(c *Config) {
		c.Pattern = pattern
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{
		Output:     output,
		ForcePlain: false,
		NoColor:    false,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

// NewRenderer creates an appropriate renderer based on config and environment.
// It returns a feed TUI for interactive terminals, and a plain text renderer
// for CI environments, pipes, or when --plain is specified.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain {
		return NewPlainRenderer(cfg)
	}

	if !IsTTY(cfg.Output) {
		return NewPlainRenderer(cfg)
	}

	if DetectCI() {
		return NewPlainRenderer(cfg)
	}

	feed, err := NewFeedRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}

	return feed
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}

	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
