package watch

import (
	"sort"
	"time"

	"github.com/vigilfs/vigil/internal/source"
)

// classifier reduces each path's raw event run to one category per
// debounce window. Events for the same path within the window merge:
//
//   - CREATE + WRITE            = ADDED (the file is still new)
//   - CREATE + REMOVE           = nothing (it never really existed)
//   - WRITE  + REMOVE           = REMOVED
//   - REMOVE + CREATE           = CHANGED (replaced in place)
//   - RENAME_FROM + RENAME_TO   = RENAMED under the destination
//   - READ never overrides another pending category
//
// A rename-from absorbs any unflushed state for its source path: a file
// created and moved inside one window reports only the move. A
// rename-from left unpaired past the correlation window degrades to a
// removal of the source, unless the source was itself born within the
// window, in which case nothing is reported.
//
// Driven solely by the session's ingest goroutine; no internal locking.
type classifier struct {
	window      time.Duration
	correlation time.Duration
	pending     map[string]*pendingEntry
	origins     map[string]renameOrigin
	seq         uint64
}

// pendingEntry is a path's transient state between first sighting and
// flush. At most one exists per relative path.
type pendingEntry struct {
	rel         string
	category    Category
	renamedFrom string
	firstSeen   time.Time
	deadline    time.Time
	seq         uint64
}

// renameOrigin records a rename-from awaiting its rename-to, keyed by
// the source's relative path.
type renameOrigin struct {
	at time.Time

	// bornInWindow marks sources that absorbed an unflushed ADDED;
	// if the rename never pairs, expiry cancels instead of reporting
	// a removal.
	bornInWindow bool
}

// classified is one flushed classification handed to the dispatcher.
type classified struct {
	rel         string
	category    Category
	renamedFrom string
}

func newClassifier(window, correlation time.Duration) *classifier {
	return &classifier{
		window:      window,
		correlation: correlation,
		pending:     make(map[string]*pendingEntry),
		origins:     make(map[string]renameOrigin),
	}
}

// observe folds one raw event into the pending state. from is the
// move's source relative path for rename-to events, empty when the
// source fell outside the filtered set.
func (c *classifier) observe(rel, from string, kind source.Kind, at time.Time) {
	c.expireOrigins(at)

	switch kind {
	case source.KindCreate:
		c.onCreate(rel, at)
	case source.KindWrite:
		c.onWrite(rel, at)
	case source.KindRemove:
		c.onRemove(rel, at)
	case source.KindRenameFrom:
		c.onRenameFrom(rel, at)
	case source.KindRenameTo:
		c.onRenameTo(rel, from, at)
	case source.KindRead:
		c.onRead(rel, at)
	}
}

// track upserts the entry for rel with the given category, restarting
// its debounce deadline.
func (c *classifier) track(rel string, cat Category, at time.Time) *pendingEntry {
	e, ok := c.pending[rel]
	if !ok {
		c.seq++
		e = &pendingEntry{rel: rel, firstSeen: at, seq: c.seq}
		c.pending[rel] = e
	}
	e.category = cat
	e.renamedFrom = ""
	e.deadline = at.Add(c.window)
	return e
}

func (c *classifier) onCreate(rel string, at time.Time) {
	e, ok := c.pending[rel]
	if !ok {
		c.track(rel, CategoryAdded, at)
		return
	}

	switch e.category {
	case CategoryRemoved:
		// Removed then recreated inside the window: replaced in place
		e.category = CategoryChanged
		e.renamedFrom = ""
	case CategoryRead:
		e.category = CategoryChanged
	}
	e.deadline = at.Add(c.window)
}

func (c *classifier) onWrite(rel string, at time.Time) {
	e, ok := c.pending[rel]
	if !ok {
		c.track(rel, CategoryChanged, at)
		return
	}

	switch e.category {
	case CategoryAdded, CategoryRenamed:
		// Content arriving right after a birth or move is part of it
	default:
		e.category = CategoryChanged
		e.renamedFrom = ""
	}
	e.deadline = at.Add(c.window)
}

func (c *classifier) onRemove(rel string, at time.Time) {
	e, ok := c.pending[rel]
	if ok && e.category == CategoryAdded {
		// Born and gone inside one window
		delete(c.pending, rel)
		return
	}
	c.track(rel, CategoryRemoved, at)
}

func (c *classifier) onRenameFrom(rel string, at time.Time) {
	born := false
	if e, ok := c.pending[rel]; ok {
		born = e.category == CategoryAdded
		delete(c.pending, rel)
	}
	c.origins[rel] = renameOrigin{at: at, bornInWindow: born}
}

func (c *classifier) onRenameTo(rel, from string, at time.Time) {
	_, paired := c.origins[from]
	if paired {
		delete(c.origins, from)
	}
	if !paired {
		// The source never passed the filter, so from the caller's
		// point of view this path simply appeared
		c.onCreate(rel, at)
		return
	}
	e := c.track(rel, CategoryRenamed, at)
	e.renamedFrom = from
}

func (c *classifier) onRead(rel string, at time.Time) {
	e, ok := c.pending[rel]
	if !ok {
		c.track(rel, CategoryRead, at)
		return
	}
	// Reads never downgrade pending state, but they do extend the
	// quiet period
	e.deadline = at.Add(c.window)
}

// expireOrigins settles rename-from records whose correlation window
// has closed: the destination never showed up inside the filtered set,
// so the source is gone.
func (c *classifier) expireOrigins(now time.Time) {
	cutoff := now.Add(-c.correlation)
	for from, o := range c.origins {
		if !o.at.Before(cutoff) {
			continue
		}
		delete(c.origins, from)

		if e, ok := c.pending[from]; ok {
			// The source path was recreated after the move away; the
			// implied removal happened first, so a pre-existing file
			// was replaced, not added.
			if !o.bornInWindow && e.category == CategoryAdded {
				e.category = CategoryChanged
			}
			continue
		}
		if !o.bornInWindow {
			c.track(from, CategoryRemoved, o.at)
		}
	}
}

// sweep flushes every entry whose debounce deadline has passed, in
// deadline order with arrival order breaking ties.
func (c *classifier) sweep(now time.Time) []classified {
	c.expireOrigins(now)

	var due []*pendingEntry
	for _, e := range c.pending {
		if !e.deadline.After(now) {
			due = append(due, e)
		}
	}
	if len(due) == 0 {
		return nil
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].seq < due[j].seq
		}
		return due[i].deadline.Before(due[j].deadline)
	})

	out := make([]classified, 0, len(due))
	for _, e := range due {
		delete(c.pending, e.rel)
		out = append(out, classified{rel: e.rel, category: e.category, renamedFrom: e.renamedFrom})
	}
	return out
}

// nextDeadline reports the earliest moment sweep could have work.
func (c *classifier) nextDeadline() (time.Time, bool) {
	var min time.Time
	found := false
	for _, e := range c.pending {
		if !found || e.deadline.Before(min) {
			min = e.deadline
			found = true
		}
	}
	for _, o := range c.origins {
		if d := o.at.Add(c.correlation); !found || d.Before(min) {
			min = d
			found = true
		}
	}
	return min, found
}

// pendingCount reports how many paths are awaiting their window.
func (c *classifier) pendingCount() int {
	return len(c.pending)
}
