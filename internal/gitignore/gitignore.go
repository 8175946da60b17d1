package gitignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Matcher holds compiled patterns. The last matching pattern decides,
// so a later negation re-includes a path. Safe for concurrent use.
type Matcher struct {
	mu       sync.RWMutex
	patterns []pattern
}

type pattern struct {
	raw      string
	re       *regexp.Regexp
	negate   bool
	dirOnly  bool
	anchored bool   // contains a slash: matched against the whole path
	base     string // directory of the .gitignore that declared it
}

// New returns a matcher holding patterns.
func New(patterns ...string) *Matcher {
	m := &Matcher{}
	for _, p := range patterns {
		m.AddPattern(p)
	}
	return m
}

// AddPattern adds one gitignore line. Blank lines, comments and lines
// that do not compile are ignored.
func (m *Matcher) AddPattern(line string) {
	m.AddPatternWithBase(line, "")
}

// AddPatternWithBase adds a line that only applies below base, a
// slash-separated directory relative to the walk root.
func (m *Matcher) AddPatternWithBase(line, base string) {
	p, ok := compile(line, filepath.ToSlash(base))
	if !ok {
		return
	}
	m.mu.Lock()
	m.patterns = append(m.patterns, p)
	m.mu.Unlock()
}

// AddFromFile reads patterns from a .gitignore file.
func (m *Matcher) AddFromFile(path, base string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open gitignore: %w", err)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m.AddPatternWithBase(sc.Text(), base)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read gitignore: %w", err)
	}
	return nil
}

// Len returns the number of compiled patterns.
func (m *Matcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.patterns)
}

// Match reports whether path, relative to the walk root, is ignored.
// A path inside an ignored directory is ignored too.
func (m *Matcher) Match(path string, isDir bool) bool {
	path = strings.TrimPrefix(filepath.ToSlash(path), "./")

	m.mu.RLock()
	defer m.mu.RUnlock()

	ignored := false
	for i := range m.patterns {
		if m.patterns[i].match(path, isDir) {
			ignored = !m.patterns[i].negate
		}
	}
	return ignored
}

func (p *pattern) match(path string, isDir bool) bool {
	if p.base != "" {
		if !strings.HasPrefix(path, p.base+"/") {
			return false
		}
		path = strings.TrimPrefix(path, p.base+"/")
	}

	parts := strings.Split(path, "/")
	for i := range parts {
		// Every component but the last is a directory.
		candidateIsDir := i < len(parts)-1 || isDir
		if p.dirOnly && !candidateIsDir {
			continue
		}
		subject := parts[i]
		if p.anchored {
			subject = strings.Join(parts[:i+1], "/")
		}
		if p.re.MatchString(subject) {
			return true
		}
	}
	return false
}

func compile(line, base string) (pattern, bool) {
	escapedSpace := strings.HasSuffix(line, `\ `)
	line = strings.TrimSpace(line)
	if escapedSpace {
		line = strings.TrimSuffix(line, `\`) + " "
	}
	if line == "" || strings.HasPrefix(line, "#") {
		return pattern{}, false
	}

	p := pattern{raw: line, base: strings.Trim(base, "/")}
	switch {
	case strings.HasPrefix(line, `\#`), strings.HasPrefix(line, `\!`):
		line = line[1:]
	case strings.HasPrefix(line, "!"):
		p.negate = true
		line = line[1:]
	}

	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.anchored = true
		line = strings.TrimLeft(line, "/")
	}
	if strings.Contains(line, "/") {
		p.anchored = true
	}
	if line == "" {
		return pattern{}, false
	}

	re, err := regexp.Compile("^" + translate(line) + "$")
	if err != nil {
		return pattern{}, false
	}
	p.re = re
	return p, true
}

// translate turns glob syntax into a regular expression. A trailing /**
// also matches the directory itself, so walkers can prune it.
func translate(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); i++ {
		rest := glob[i:]
		switch {
		case strings.HasPrefix(rest, "**/"):
			b.WriteString("(?:.*/)?")
			i += 2
		case rest == "/**":
			b.WriteString("(?:/.*)?")
			i += 2
		case strings.HasPrefix(rest, "**"):
			b.WriteString(".*")
			i++
		case glob[i] == '*':
			b.WriteString("[^/]*")
		case glob[i] == '?':
			b.WriteString("[^/]")
		case glob[i] == '[':
			end := strings.IndexByte(glob[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := glob[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i += end + 1
		case glob[i] == '\\' && i+1 < len(glob):
			b.WriteString(regexp.QuoteMeta(glob[i+1 : i+2]))
			i++
		default:
			b.WriteString(regexp.QuoteMeta(glob[i : i+1]))
		}
	}
	return b.String()
}
