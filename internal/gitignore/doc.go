// Package gitignore matches paths against gitignore-syntax exclusion
// rules, as documented at https://git-scm.com/docs/gitignore.
//
// Supported syntax:
//   - Wildcards (*, ?, character classes)
//   - Double-star patterns (**/build, logs/**)
//   - Rooted patterns (/dist)
//   - Directory-only patterns (node_modules/)
//   - Negation (!keep.log), later rules winning
//
// A Matcher is immutable once built; construct it fully before sharing
// it across goroutines. A nil Matcher matches nothing:
//
//	m := gitignore.New(".git/", "node_modules/", "*.tmp")
//	if m.Match("src/cache.tmp", false) {
//	    // path is excluded from observation
//	}
package gitignore
