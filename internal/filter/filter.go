// Package filter narrows a watch to paths matching a glob pattern.
// Matching happens on root-relative, slash-separated paths, so a pattern
// behaves identically wherever the root lives and on every platform.
package filter

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalidPattern indicates the glob pattern does not compile.
// Fatal at session start; never retried.
var ErrInvalidPattern = errors.New("invalid watch pattern")

// Filter matches absolute paths under a root against a glob pattern.
// Stateless after construction and safe for concurrent use.
type Filter struct {
	root    string
	pattern string
}

// New compiles pattern for paths under root. An empty pattern matches
// every path under the root.
//
// Patterns use doublestar syntax: `*` within a segment, `**` across
// segments, and `{a,b}` alternation, e.g. `**/*.{json*,bin}`.
func New(root, pattern string) (*Filter, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}

	return &Filter{root: absRoot, pattern: pattern}, nil
}

// Root returns the absolute watch root.
func (f *Filter) Root() string {
	return f.root
}

// Pattern returns the pattern as given.
func (f *Filter) Pattern() string {
	return f.pattern
}

// Match reports whether absPath matches the pattern, returning the
// root-relative slash path when it does. The root itself and paths
// outside the root never match.
func (f *Filter) Match(absPath string) (string, bool) {
	rel, err := filepath.Rel(f.root, absPath)
	if err != nil {
		return "", false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}

	rel = filepath.ToSlash(rel)
	if f.pattern == "" {
		return rel, true
	}

	ok, err := doublestar.Match(f.pattern, rel)
	if err != nil || !ok {
		return "", false
	}
	return rel, true
}
