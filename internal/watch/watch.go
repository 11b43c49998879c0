// Package watch turns raw filesystem events into debounced, semantically
// classified batches delivered to per-category handlers. It is the core
// of the service: the source package produces raw events, the filter
// package narrows them to a glob, and this package owns classification,
// batching, dispatch, and session lifecycle.
package watch

import (
	"fmt"
	"sort"
)

// Category is the semantic classification of a path's net change over
// one debounce window.
type Category int

const (
	// CategoryAdded indicates a path now exists that did not before.
	CategoryAdded Category = iota
	// CategoryRead indicates a path was read without modification.
	// Backend-dependent; only the polling source produces it.
	CategoryRead
	// CategoryRemoved indicates a path no longer exists.
	CategoryRemoved
	// CategoryChanged indicates an existing path's content changed.
	CategoryChanged
	// CategoryRenamed indicates a path moved within the watched tree;
	// batches carry the destination path.
	CategoryRenamed
)

// String returns the handler-table name of the category.
func (c Category) String() string {
	switch c {
	case CategoryAdded:
		return "added"
	case CategoryRead:
		return "read"
	case CategoryRemoved:
		return "removed"
	case CategoryChanged:
		return "changed"
	case CategoryRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Categories returns all categories in delivery order.
func Categories() []Category {
	return []Category{CategoryAdded, CategoryRead, CategoryRemoved, CategoryChanged, CategoryRenamed}
}

// ParseCategory resolves a handler-table name to its category.
func ParseCategory(name string) (Category, error) {
	for _, c := range Categories() {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", name)
}

// Batch is one delivery unit: every path that settled into the same
// category within one aggregation tick, in flush order. Paths are
// root-relative and slash-separated.
type Batch struct {
	Category Category
	Paths    []string
}

// Handlers holds the caller's optional per-category callbacks. A nil
// handler silently drops that category's batches. Handlers run on the
// dispatch goroutine, never concurrently with each other, and must not
// call Session.Stop synchronously.
type Handlers struct {
	Added   func(paths []string)
	Read    func(paths []string)
	Removed func(paths []string)
	Changed func(paths []string)
	Renamed func(paths []string)
}

// forCategory returns the handler registered for c, or nil.
func (h Handlers) forCategory(c Category) func([]string) {
	switch c {
	case CategoryAdded:
		return h.Added
	case CategoryRead:
		return h.Read
	case CategoryRemoved:
		return h.Removed
	case CategoryChanged:
		return h.Changed
	case CategoryRenamed:
		return h.Renamed
	default:
		return nil
	}
}

// HandlerMap converts a name-keyed handler table into Handlers.
// Names follow Category.String; unknown names are rejected.
func HandlerMap(m map[string]func(paths []string)) (Handlers, error) {
	var h Handlers

	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fn := m[name]
		c, err := ParseCategory(name)
		if err != nil {
			return Handlers{}, err
		}
		switch c {
		case CategoryAdded:
			h.Added = fn
		case CategoryRead:
			h.Read = fn
		case CategoryRemoved:
			h.Removed = fn
		case CategoryChanged:
			h.Changed = fn
		case CategoryRenamed:
			h.Renamed = fn
		}
	}
	return h, nil
}
