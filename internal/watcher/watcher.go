package watcher

import "time"

// Operation is the kind of change reported for a path.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
	// OpGitignoreChange reports an edited .gitignore file.
	OpGitignoreChange
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpGitignoreChange:
		return "GITIGNORE_CHANGE"
	}
	return "UNKNOWN"
}

// FileEvent is one change, after coalescing.
type FileEvent struct {
	// Path is relative to the watched root and slash-separated.
	Path      string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// Filter reports whether a root-relative path should be watched.
type Filter func(relPath string, isDir bool) bool

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet period before a batch is emitted.
	Debounce time.Duration

	// BufferSize is the number of batches buffered for the consumer.
	BufferSize int

	// Filter drops paths it rejects. Nil accepts everything.
	Filter Filter
}

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 100
	}
	return o
}
