// Package gitignore matches slash-separated paths against gitignore
// syntax: *, ?, **, character classes, rooted and directory-only
// patterns, negation, and patterns scoped to a nested .gitignore.
//
//	m := gitignore.New("*.log", "!keep.log", "/build/")
//	m.AddFromFile("src/.gitignore", "src")
//	if m.Match("src/tmp/out.log", false) {
//	    // skip
//	}
//
// The same matcher serves the configured exclude patterns, such as
// "**/node_modules/**".
package gitignore
