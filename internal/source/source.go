// Package source adapts OS filesystem notifications into a stream of
// normalized raw events. Platform quirks (rename event pairs, duplicate
// notifications, missing read events) are absorbed here so downstream
// consumers see one uniform event vocabulary regardless of backend.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/vigilfs/vigil/internal/gitignore"
)

// Kind identifies the low-level filesystem operation behind a raw event.
type Kind int

const (
	// KindCreate indicates a new file or directory appeared.
	KindCreate Kind = iota
	// KindWrite indicates an existing file's content changed.
	KindWrite
	// KindRemove indicates a file or directory was deleted.
	KindRemove
	// KindRenameFrom indicates a path was moved away; the path names the
	// source of the move.
	KindRenameFrom
	// KindRenameTo indicates a path was moved into place; the path names
	// the destination of the move.
	KindRenameTo
	// KindRead indicates a file was read without modification.
	// Only the polling backend can produce it.
	KindRead
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "CREATE"
	case KindWrite:
		return "WRITE"
	case KindRemove:
		return "REMOVE"
	case KindRenameFrom:
		return "RENAME_FROM"
	case KindRenameTo:
		return "RENAME_TO"
	case KindRead:
		return "READ"
	default:
		return "UNKNOWN"
	}
}

// RawEvent is a single normalized filesystem notification.
type RawEvent struct {
	// Path is the absolute path the event concerns.
	Path string

	// RenamedFrom is the absolute source path of the move for
	// rename-to events. Empty for every other kind.
	RenamedFrom string

	// Kind is the normalized operation.
	Kind Kind

	// IsDir indicates if the event is for a directory. Best-effort for
	// remove and rename-from events, where the path no longer exists.
	IsDir bool

	// Time is when the event was observed.
	Time time.Time
}

// ErrUnavailable indicates the watch root cannot be observed at all:
// it does not exist, is not a directory, or the OS facility refused it.
// Fatal at start; never retried.
var ErrUnavailable = errors.New("watch source unavailable")

// Source defines the interface for raw event production.
type Source interface {
	// Attach resolves the root and registers it with the backend.
	// Registration is complete when Attach returns: changes occurring
	// after a successful Attach are observable once Start drains them.
	// Returns an error wrapping ErrUnavailable if the root cannot be
	// observed.
	Attach(root string) error

	// Start delivers events until Stop is called or the context is
	// cancelled. Attach must have succeeded first.
	Start(ctx context.Context) error

	// Stop stops the source and releases resources.
	// Safe to call multiple times.
	Stop() error

	// Events returns the channel of raw events.
	// The channel is closed when the source stops.
	Events() <-chan RawEvent

	// Errors returns the channel of transient errors.
	// The source keeps running after sending here.
	Errors() <-chan error

	// Dropped reports events discarded because the event buffer was full.
	Dropped() uint64

	// Name identifies the backend ("notify" or "poll") for logging.
	Name() string
}

// Options configures source behavior.
type Options struct {
	// Recursive watches the whole subtree instead of the root alone.
	Recursive bool

	// Ignore excludes paths from observation entirely: ignored
	// directories are never registered or descended into, and events
	// for ignored paths are dropped at the source. Nil ignores nothing.
	Ignore *gitignore.Matcher

	// CorrelationWindow bounds how long after a rename-from a create may
	// arrive and still be treated as the destination of that move.
	// Default: 50ms
	CorrelationWindow time.Duration

	// JitterWindow suppresses duplicate (path, kind) notifications that
	// arrive within this span. Default: 10ms
	JitterWindow time.Duration

	// PollInterval is the scan interval for the polling backend.
	// Default: 2s
	PollInterval time.Duration

	// EventBufferSize is the size of the event channel buffer.
	// Default: 1024
	EventBufferSize int
}

// DefaultOptions returns the default source options.
func DefaultOptions() Options {
	return Options{
		Recursive:         true,
		CorrelationWindow: 50 * time.Millisecond,
		JitterWindow:      10 * time.Millisecond,
		PollInterval:      2 * time.Second,
		EventBufferSize:   1024,
	}
}

// WithDefaults returns options with defaults applied for zero values.
// Recursive is left as given; callers decide it explicitly.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.CorrelationWindow == 0 {
		o.CorrelationWindow = defaults.CorrelationWindow
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

// New returns the best source available on this host: the OS notification
// backend when it initializes, the polling backend otherwise.
func New(opts Options) Source {
	if n, err := NewNotify(opts); err == nil {
		return n
	}
	return NewPoll(opts)
}
