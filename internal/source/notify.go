package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
)

// dedupCacheSize bounds the recent-event cache used for duplicate
// suppression. Entries age out by LRU order; correctness only needs the
// hot set of paths receiving bursts.
const dedupCacheSize = 512

// Notify implements Source on top of the OS notification facility via
// fsnotify. Rename pairs are normalized here: the OS reports the
// destination of a move as a plain create, so a create observed within
// the correlation window after a rename-from is re-emitted as rename-to
// carrying the source path. Pairing is first-in-first-out, matching the
// order the OS reports interleaved moves.
type Notify struct {
	fw           *fsnotify.Watcher
	opts         Options
	root         string
	events       chan RawEvent
	errors       chan error
	stopCh       chan struct{}
	recent       *lru.Cache[string, time.Time]
	pendingMoves []moveRecord
	mu           sync.RWMutex
	stopped      bool
	dropped      atomic.Uint64
}

// moveRecord is a rename-from awaiting its destination.
type moveRecord struct {
	path string
	at   time.Time
}

var _ Source = (*Notify)(nil)

// NewNotify creates the notification-based source.
// Fails if the OS facility cannot be initialized; callers fall back to
// the polling source (see New).
func NewNotify(opts Options) (*Notify, error) {
	opts = opts.WithDefaults()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("init fsnotify: %w", err)
	}

	recent, err := lru.New[string, time.Time](dedupCacheSize)
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("init dedup cache: %w", err)
	}

	return &Notify{
		fw:     fw,
		opts:   opts,
		events: make(chan RawEvent, opts.EventBufferSize),
		errors: make(chan error, 10),
		stopCh: make(chan struct{}),
		recent: recent,
	}, nil
}

// Attach resolves the root and registers it, recursively when
// configured, with the OS watcher. The OS queues events for registered
// directories from this point on, so nothing that happens after a
// successful Attach is missed even if Start runs later.
func (n *Notify) Attach(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	n.root = absRoot

	info, err := os.Stat(absRoot)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: not a directory: %s", ErrUnavailable, absRoot)
	}

	if err := n.addRoot(); err != nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	return nil
}

// Start drains the OS event queue until Stop or context cancellation.
func (n *Notify) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			_ = n.Stop()
			return ctx.Err()
		case <-n.stopCh:
			return nil
		case event, ok := <-n.fw.Events:
			if !ok {
				return nil
			}
			n.handleEvent(event)
		case err, ok := <-n.fw.Errors:
			if !ok {
				return nil
			}
			n.emitError(err)
		}
	}
}

// addRoot registers the root, and when recursive every directory under
// it, with the OS watcher.
func (n *Notify) addRoot() error {
	if !n.opts.Recursive {
		return n.fw.Add(n.root)
	}

	return filepath.WalkDir(n.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == n.root {
				return err
			}
			return nil // Skip subtrees we cannot access
		}
		if !d.IsDir() {
			return nil
		}
		if path != n.root && n.ignored(path, true, false) {
			return fs.SkipDir
		}
		return n.fw.Add(path)
	})
}

// handleEvent converts one fsnotify event into a raw event.
func (n *Notify) handleEvent(event fsnotify.Event) {
	var kind Kind
	switch {
	case event.Op&fsnotify.Create != 0:
		kind = KindCreate
	case event.Op&fsnotify.Write != 0:
		kind = KindWrite
	case event.Op&fsnotify.Remove != 0:
		kind = KindRemove
	case event.Op&fsnotify.Rename != 0:
		kind = KindRenameFrom
	case event.Op&fsnotify.Chmod != 0:
		// Metadata-only changes carry no watch semantics
		return
	default:
		return
	}

	now := time.Now()
	if n.isDuplicate(event.Name, kind, now) {
		return
	}

	// The OS no longer knows anything about removed or moved-away
	// paths, so IsDir stays false for those.
	isDir := false
	gone := true
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
		gone = false
	}

	if n.ignored(event.Name, isDir, gone) {
		return
	}

	var renamedFrom string
	switch kind {
	case KindCreate:
		if from, ok := n.takePendingMove(now); ok {
			kind = KindRenameTo
			renamedFrom = from
		}
		// New directories join the watch while running
		if isDir && n.opts.Recursive {
			_ = n.fw.Add(event.Name)
		}
	case KindRenameFrom:
		n.pendingMoves = append(n.pendingMoves, moveRecord{path: event.Name, at: now})
	}

	n.emit(RawEvent{
		Path:        event.Name,
		RenamedFrom: renamedFrom,
		Kind:        kind,
		IsDir:       isDir,
		Time:        now,
	})
}

// ignored reports whether path is excluded from observation. Paths that
// no longer exist cannot be stat'ed, so they are checked as directories
// too: leaking a remove for an ignored directory is worse than hiding
// one for a file that shares its name.
func (n *Notify) ignored(path string, isDir, gone bool) bool {
	if n.opts.Ignore == nil {
		return false
	}
	rel, err := filepath.Rel(n.root, path)
	if err != nil || rel == "." {
		return false
	}
	if n.opts.Ignore.Match(rel, isDir) {
		return true
	}
	return gone && n.opts.Ignore.Match(rel, true)
}

// isDuplicate reports whether the same (path, kind) was already seen
// within the jitter window, recording this sighting either way.
func (n *Notify) isDuplicate(path string, kind Kind, now time.Time) bool {
	key := path + "\x00" + kind.String()
	last, ok := n.recent.Get(key)
	n.recent.Add(key, now)
	return ok && now.Sub(last) < n.opts.JitterWindow
}

// takePendingMove consumes the oldest live rename-from record, returning
// its source path. Records older than the correlation window belong to
// moves out of the watched tree and are discarded.
func (n *Notify) takePendingMove(now time.Time) (string, bool) {
	cutoff := now.Add(-n.opts.CorrelationWindow)
	i := 0
	for i < len(n.pendingMoves) && n.pendingMoves[i].at.Before(cutoff) {
		i++
	}
	n.pendingMoves = n.pendingMoves[i:]

	if len(n.pendingMoves) == 0 {
		return "", false
	}
	from := n.pendingMoves[0].path
	n.pendingMoves = n.pendingMoves[1:]
	return from, true
}

// emit sends an event to the output channel without blocking the OS
// event loop. The read lock is held across the send so a concurrent
// Stop cannot close the channel between the check and the send.
func (n *Notify) emit(ev RawEvent) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.stopped {
		return
	}

	select {
	case n.events <- ev:
	default:
		count := n.dropped.Add(1)
		slog.Warn("event buffer full, dropping event",
			slog.String("path", ev.Path),
			slog.String("kind", ev.Kind.String()),
			slog.Uint64("total_dropped", count),
		)
	}
}

// emitError sends a transient error to the error channel.
func (n *Notify) emitError(err error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.stopped {
		return
	}

	select {
	case n.errors <- err:
	default:
	}
}

// Stop stops the source and releases resources.
func (n *Notify) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stopped {
		return nil
	}

	n.stopped = true
	close(n.stopCh)
	_ = n.fw.Close()
	close(n.events)
	close(n.errors)
	return nil
}

// Events returns the channel of raw events.
func (n *Notify) Events() <-chan RawEvent {
	return n.events
}

// Errors returns the channel of transient errors.
func (n *Notify) Errors() <-chan error {
	return n.errors
}

// Name identifies the backend.
func (n *Notify) Name() string {
	return "notify"
}

// Dropped returns the number of events dropped due to buffer overflow.
func (n *Notify) Dropped() uint64 {
	return n.dropped.Load()
}
