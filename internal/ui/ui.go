// Package ui displays indexing progress: a bubbletea view on interactive
// terminals and one line per changed file everywhere else.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/Michaol/RustRAG/internal/output"
)

// Outcome values carried by ProgressEvent. They match the sync counters.
const (
	OutcomeAdded   = "added"
	OutcomeUpdated = "updated"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// ProgressEvent reports one file handled by a directory sync. Its fields
// mirror index.Progress so either converts to the other.
type ProgressEvent struct {
	Path    string
	Outcome string
	Done    int
	Total   int
	Err     error
}

// Summary is shown when a sync finishes.
type Summary struct {
	Added    int
	Updated  int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// Renderer displays sync progress.
type Renderer interface {
	// Start begins rendering. It must be called before Update.
	Start(ctx context.Context) error

	// Update records one handled file.
	Update(event ProgressEvent)

	// Complete shows the final summary.
	Complete(sum Summary)

	// Stop releases the terminal. It is safe to call more than once.
	Stop() error
}

// Config configures a Renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	Root       string // directory shown in the header

	// Interrupt is called when the user presses Ctrl-C in the TUI, which
	// puts the terminal in raw mode and so receives no SIGINT.
	Interrupt func()
}

// NewRenderer returns the TUI renderer for interactive terminals and the
// plain renderer for pipes, CI and when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !output.IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// DetectCI reports whether a common CI environment variable is set.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, ok := os.LookupEnv(v); ok {
			return true
		}
	}
	return false
}

func styles(noColor bool) output.Styles {
	if noColor || output.DetectNoColor() {
		return output.NoColorStyles()
	}
	return output.DefaultStyles()
}
