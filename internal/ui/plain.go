package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// PlainRenderer outputs plain text events (for CI/pipes).
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	errors []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{
		out: cfg.Output,
	}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// ShowBatch implements Renderer.
// Format: HH:MM:SS.mmm CATEGORY path[, path...]
func (r *PlainRenderer) ShowBatch(event BatchEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	when := event.Time
	if when.IsZero() {
		when = time.Now()
	}

	_, _ = fmt.Fprintf(r.out, "%s %-8s %s\n",
		when.Format("15:04:05.000"),
		strings.ToUpper(event.Category.String()),
		strings.Join(event.Paths, ", "))
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}

	if event.Path != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.Path, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats SessionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Watch complete: %d batches, %d paths in %s",
		stats.Batches, stats.Paths, stats.Duration.Round(100*time.Millisecond))

	if stats.Errors > 0 || stats.Warnings > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d errors, %d warnings)", stats.Errors, stats.Warnings)
	}

	_, _ = fmt.Fprintln(r.out)

	if len(stats.PerCategory) > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "Category Breakdown:")
		for _, cc := range stats.PerCategory {
			_, _ = fmt.Fprintf(r.out, "  %-8s %d batches, %d paths\n",
				cc.Category.String()+":", cc.Batches, cc.Paths)
		}
	}

	if stats.Backend != "" {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintf(r.out, "Backend: %s\n", stats.Backend)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}
