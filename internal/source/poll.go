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
)

// Poll implements Source by periodically scanning the watched tree and
// diffing against the previous snapshot. Used as a fallback when the OS
// notification facility is unavailable, and the only backend able to
// report reads: a file whose access time advanced while content stayed
// put was read by someone.
//
// Moves are beyond a snapshot diff; they surface as remove plus create.
type Poll struct {
	opts    Options
	state   map[string]snapshot
	events  chan RawEvent
	errors  chan error
	stopCh  chan struct{}
	mu      sync.RWMutex
	stopped bool
	root    string
	dropped atomic.Uint64
}

type snapshot struct {
	modTime  time.Time
	size     int64
	isDir    bool
	readTime time.Time
}

var _ Source = (*Poll)(nil)

// NewPoll creates the polling source.
func NewPoll(opts Options) *Poll {
	opts = opts.WithDefaults()
	return &Poll{
		opts:   opts,
		state:  make(map[string]snapshot),
		events: make(chan RawEvent, opts.EventBufferSize),
		errors: make(chan error, 10),
		stopCh: make(chan struct{}),
	}
}

// Attach resolves the root and takes the baseline snapshot; no events
// are emitted for pre-existing files. Changes after a successful Attach
// surface on a later scan, so nothing between Attach and Start is lost.
func (p *Poll) Attach(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	p.root = absRoot

	info, err := os.Stat(absRoot)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: not a directory: %s", ErrUnavailable, absRoot)
	}

	if err := p.scan(); err != nil {
		return fmt.Errorf("%w: initial scan: %s", ErrUnavailable, err)
	}
	return nil
}

// Start diffs the tree on every tick until Stop or context cancellation.
func (p *Poll) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			if err := p.detectChanges(); err != nil {
				p.emitError(err)
			}
		}
	}
}

// walk visits every observed path under the root. Non-recursive mode
// still sees the root's direct children, directories included, but
// never descends into them.
func (p *Poll) walk(fn func(path, rel string, info fs.FileInfo)) error {
	return filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip entries we cannot access
		}

		rel, err := filepath.Rel(p.root, path)
		if err != nil || rel == "." {
			return nil
		}

		// Ignored paths never enter the snapshot, so their removal
		// produces no events either.
		if p.opts.Ignore.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		fn(path, rel, info)

		if !p.opts.Recursive && d.IsDir() {
			return fs.SkipDir
		}
		return nil
	})
}

// scan records the current state of the tree.
func (p *Poll) scan() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.walk(func(path, rel string, info fs.FileInfo) {
		p.state[rel] = p.snapshotOf(path, info)
	})
}

func (p *Poll) snapshotOf(path string, info fs.FileInfo) snapshot {
	s := snapshot{
		modTime: info.ModTime(),
		size:    info.Size(),
		isDir:   info.IsDir(),
	}
	// Directory access times churn under our own scans, so read
	// detection applies to regular files only.
	if !s.isDir {
		s.readTime = accessTime(path)
	}
	return s
}

// detectChanges diffs the tree against the previous snapshot and emits
// events for the differences.
func (p *Poll) detectChanges() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	current := make(map[string]snapshot, len(p.state))

	err := p.walk(func(path, rel string, info fs.FileInfo) {
		snap := p.snapshotOf(path, info)
		current[rel] = snap

		prev, exists := p.state[rel]
		switch {
		case !exists:
			p.emit(RawEvent{Path: path, Kind: KindCreate, IsDir: snap.isDir, Time: now})
		case prev.modTime != snap.modTime || prev.size != snap.size:
			p.emit(RawEvent{Path: path, Kind: KindWrite, IsDir: snap.isDir, Time: now})
		case !snap.isDir && snap.readTime.After(prev.readTime):
			p.emit(RawEvent{Path: path, Kind: KindRead, IsDir: false, Time: now})
		}
	})
	if err != nil {
		return fmt.Errorf("walk tree for changes: %w", err)
	}

	for rel, prev := range p.state {
		if _, exists := current[rel]; !exists {
			p.emit(RawEvent{
				Path:  filepath.Join(p.root, rel),
				Kind:  KindRemove,
				IsDir: prev.isDir,
				Time:  now,
			})
		}
	}

	p.state = current
	return nil
}

// emit sends an event to the events channel.
// Must be called with the lock held.
func (p *Poll) emit(ev RawEvent) {
	if p.stopped {
		return
	}

	select {
	case p.events <- ev:
	default:
		count := p.dropped.Add(1)
		slog.Warn("poll buffer full, dropping event",
			slog.String("path", ev.Path),
			slog.String("kind", ev.Kind.String()),
			slog.Uint64("total_dropped", count),
		)
	}
}

// emitError sends a transient error to the error channel. The read lock
// is held across the send so a concurrent Stop cannot close the channel
// between the check and the send.
func (p *Poll) emitError(err error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return
	}

	select {
	case p.errors <- err:
	default:
	}
}

// Stop stops the polling source.
func (p *Poll) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}

	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns the channel of raw events.
func (p *Poll) Events() <-chan RawEvent {
	return p.events
}

// Errors returns the channel of transient errors.
func (p *Poll) Errors() <-chan error {
	return p.errors
}

// Dropped returns the number of events dropped due to buffer overflow.
func (p *Poll) Dropped() uint64 {
	return p.dropped.Load()
}

// Name identifies the backend.
func (p *Poll) Name() string {
	return "poll"
}
