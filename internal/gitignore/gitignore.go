package gitignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Matcher holds compiled exclusion rules. The zero value and nil both
// match nothing.
type Matcher struct {
	rules []rule
}

// rule is one compiled gitignore pattern.
type rule struct {
	regex    *regexp.Regexp
	negation bool // pattern started with !
	dirOnly  bool // pattern ended with /
	anchored bool // pattern contained a / before its last character
}

// New compiles the given patterns into a Matcher. Empty lines and
// comments are skipped, so a gitignore file's lines can be passed
// through unfiltered.
func New(patterns ...string) *Matcher {
	m := &Matcher{}
	for _, p := range patterns {
		m.add(p)
	}
	return m
}

// ReadPatterns reads a gitignore-format file and returns its patterns,
// one per line, comments and blank lines removed.
func ReadPatterns(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ignore file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") && !strings.HasPrefix(line, `\#`) {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ignore file: %w", err)
	}
	return patterns, nil
}

// add compiles one pattern into the rule list.
func (m *Matcher) add(pattern string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || (strings.HasPrefix(pattern, "#") && !strings.HasPrefix(pattern, `\#`)) {
		return
	}

	var r rule

	// Escaped leading # or ! is a literal; bare ! negates the rule.
	switch {
	case strings.HasPrefix(pattern, `\#`), strings.HasPrefix(pattern, `\!`):
		pattern = pattern[1:]
	case strings.HasPrefix(pattern, "!"):
		r.negation = true
		pattern = pattern[1:]
	}

	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}

	// A separator anywhere but the end anchors the pattern to the root;
	// "doc/frotz" means /doc/frotz, not **/doc/frotz.
	if strings.HasPrefix(pattern, "/") {
		r.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	} else if strings.Contains(pattern, "/") && !strings.HasPrefix(pattern, "**/") {
		r.anchored = true
	}

	r.regex = regexp.MustCompile("^" + translate(pattern) + "$")
	m.rules = append(m.rules, r)
}

// Match reports whether the rules exclude relPath. relPath must be
// relative to the directory the patterns were written for, using either
// separator. The last matching rule decides, so negations can rescue
// paths an earlier rule excluded.
func (m *Matcher) Match(relPath string, isDir bool) bool {
	if m == nil {
		return false
	}

	relPath = filepath.ToSlash(relPath)
	excluded := false
	for _, r := range m.rules {
		if r.matches(relPath, isDir) {
			excluded = !r.negation
		}
	}
	return excluded
}

// matches reports whether one rule applies to relPath.
func (r rule) matches(relPath string, isDir bool) bool {
	parts := strings.Split(relPath, "/")

	if r.anchored {
		if r.regex.MatchString(relPath) {
			return !r.dirOnly || isDir
		}
		// A dir-only anchored rule also claims everything beneath the
		// directory it names.
		if r.dirOnly {
			for i := 1; i < len(parts); i++ {
				if r.regex.MatchString(strings.Join(parts[:i], "/")) {
					return true
				}
			}
		}
		return false
	}

	if r.dirOnly {
		// "build/" excludes any directory named build and its contents.
		for i, part := range parts {
			if r.regex.MatchString(part) {
				return i < len(parts)-1 || isDir
			}
		}
		return false
	}

	// Unanchored rules try the basename, the whole path, and each
	// component, matching git's floating-pattern behavior.
	if r.regex.MatchString(parts[len(parts)-1]) || r.regex.MatchString(relPath) {
		return true
	}
	for _, part := range parts[:len(parts)-1] {
		if r.regex.MatchString(part) {
			return true
		}
	}
	return false
}

// translate converts a gitignore pattern into regexp source. The output
// always compiles: unrecognized constructs degrade to literals.
func translate(pattern string) string {
	var out strings.Builder

	for i := 0; i < len(pattern); {
		switch c := pattern[i]; c {
		case '*':
			switch {
			case strings.HasPrefix(pattern[i:], "**/"):
				out.WriteString("(?:.*/)?")
				i += 3
			case pattern[i:] == "**":
				out.WriteString(".*")
				i += 2
			default:
				// Consecutive asterisks anywhere else count as plain
				// single-segment wildcards, as git treats them.
				out.WriteString("[^/]*")
				i++
			}
		case '?':
			out.WriteString("[^/]")
			i++
		case '[':
			class := ""
			end := strings.IndexByte(pattern[i:], ']')
			if end > 1 {
				class = pattern[i : i+end+1]
				if strings.HasPrefix(class, "[!") {
					class = "[^" + class[2:]
				}
				if _, err := regexp.Compile(class); err != nil {
					class = ""
				}
			}
			if class != "" {
				out.WriteString(class)
				i += end + 1
			} else {
				out.WriteString(regexp.QuoteMeta("["))
				i++
			}
		case '\\':
			if i+1 < len(pattern) {
				out.WriteString(regexp.QuoteMeta(string(pattern[i+1])))
				i += 2
			} else {
				out.WriteString(regexp.QuoteMeta(`\`))
				i++
			}
		default:
			out.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}

	return out.String()
}
