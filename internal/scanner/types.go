// Package scanner walks a directory tree and yields the files eligible
// for indexing, honouring .gitignore files and exclude patterns.
package scanner

import (
	"path/filepath"
	"strings"
	"time"
)

// Kind classifies an eligible file by how it is chunked.
type Kind string

const (
	KindMarkdown Kind = "markdown"
	KindCode     Kind = "code"
)

// DefaultExtensions are the file extensions indexed by default.
var DefaultExtensions = []string{"md", "rs", "go", "py", "js", "ts"}

// FileInfo describes a discovered file.
type FileInfo struct {
	Path    string // root joined with RelPath, as walked
	RelPath string // relative to the root, slash-separated
	AbsPath string
	Size    int64
	ModTime time.Time
	Ext     string // lower-case, without the dot
	Kind    Kind
}

// Options configures a scan.
type Options struct {
	// Root is the directory to walk. Empty means ".".
	Root string

	// Extensions restricts files by extension, without the dot.
	// Empty means DefaultExtensions.
	Extensions []string

	// Exclude holds gitignore-syntax patterns relative to Root.
	Exclude []string

	// RespectGitignore reads .gitignore files found during the walk.
	RespectGitignore bool

	// MaxFileSize skips larger files. Zero means no limit.
	MaxFileSize int64
}

// Result is one item streamed by Scan.
type Result struct {
	File  *FileInfo
	Error error
}

// Ext returns the lower-case extension of path without the dot.
func Ext(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// KindOf returns the chunking kind for an extension.
func KindOf(ext string) Kind {
	switch strings.ToLower(ext) {
	case "md", "markdown":
		return KindMarkdown
	}
	return KindCode
}
