package watch

import (
	"errors"
	"time"
)

// Options configures a watch session. The zero value of every boolean
// selects the common case: recursive, files and directories both
// observed.
type Options struct {
	// Root is the directory to watch. Required.
	Root string

	// Pattern narrows delivery to matching root-relative paths using
	// doublestar glob syntax. Empty matches every path.
	Pattern string

	// NonRecursive restricts the watch to the root's direct children.
	NonRecursive bool

	// IgnoreFiles drops events for regular files.
	IgnoreFiles bool

	// IgnoreDirs drops events for directories.
	IgnoreDirs bool

	// IgnorePatterns excludes paths from observation using gitignore
	// syntax (e.g. ".git/", "node_modules/", "*.tmp"). Unlike Pattern,
	// which narrows delivery, ignored directories are never registered
	// with the OS or descended into at all.
	IgnorePatterns []string

	// DebounceWindow is the quiet period after a path's last raw event
	// before its classification is final. Default: 200ms
	DebounceWindow time.Duration

	// CorrelationWindow bounds how long the two halves of a rename may
	// be separated and still pair. Default: 50ms
	CorrelationWindow time.Duration

	// AggregationTick is how long the dispatcher collects same-category
	// flushes into one batch. Default: 25ms
	AggregationTick time.Duration

	// JitterWindow suppresses duplicate raw notifications.
	// Default: 10ms
	JitterWindow time.Duration

	// PollInterval is the scan interval when the polling source is in
	// use. Default: 2s
	PollInterval time.Duration

	// EventBufferSize is the raw event channel buffer. Default: 1024
	EventBufferSize int
}

// DefaultOptions returns the default session options.
// Root and Pattern are left for the caller.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:    200 * time.Millisecond,
		CorrelationWindow: 50 * time.Millisecond,
		AggregationTick:   25 * time.Millisecond,
		JitterWindow:      10 * time.Millisecond,
		PollInterval:      2 * time.Second,
		EventBufferSize:   1024,
	}
}

// Validate validates the options and returns an error if invalid.
func (o Options) Validate() error {
	if o.Root == "" {
		return errors.New("watch root is required")
	}
	if o.IgnoreFiles && o.IgnoreDirs {
		return errors.New("ignoring both files and directories leaves nothing to watch")
	}
	if o.DebounceWindow < 0 {
		return errors.New("debounce window must not be negative")
	}
	if o.CorrelationWindow < 0 {
		return errors.New("correlation window must not be negative")
	}
	if o.AggregationTick < 0 {
		return errors.New("aggregation tick must not be negative")
	}
	if o.JitterWindow < 0 {
		return errors.New("jitter window must not be negative")
	}
	if o.PollInterval < 0 {
		return errors.New("poll interval must not be negative")
	}
	if o.EventBufferSize < 0 {
		return errors.New("event buffer size must not be negative")
	}
	return nil
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.CorrelationWindow == 0 {
		o.CorrelationWindow = defaults.CorrelationWindow
	}
	if o.AggregationTick == 0 {
		o.AggregationTick = defaults.AggregationTick
	}
	if o.JitterWindow == 0 {
		o.JitterWindow = defaults.JitterWindow
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}
