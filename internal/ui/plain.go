package ui

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Michaol/RustRAG/internal/output"
)

// PlainRenderer prints one line per added, updated or failed file.
// Skipped files are only counted.
type PlainRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	styles  output.Styles
	tracker *Tracker
}

// NewPlainRenderer creates a plain text renderer. Color is used only when
// the output is a terminal.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	noColor := cfg.NoColor || !output.IsTTY(cfg.Output)
	return &PlainRenderer{out: cfg.Output, styles: styles(noColor), tracker: NewTracker()}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// Update implements Renderer.
func (r *PlainRenderer) Update(ev ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.Update(ev)
	var tag string
	switch ev.Outcome {
	case OutcomeAdded:
		tag = r.styles.Success.Render("[ADD]")
	case OutcomeUpdated:
		tag = r.styles.Success.Render("[UPD]")
	case OutcomeFailed:
		tag = r.styles.Error.Render("[FAIL]")
	default:
		return
	}
	line := fmt.Sprintf("%s %d/%d %s", tag, ev.Done, ev.Total, ev.Path)
	if ev.Err != nil {
		line += ": " + ev.Err.Error()
	}
	_, _ = fmt.Fprintln(r.out, line)
}

// Complete implements Renderer. The caller prints the summary.
func (r *PlainRenderer) Complete(sum Summary) {}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

// Snapshot returns the progress seen so far.
func (r *PlainRenderer) Snapshot() Snapshot {
	return r.tracker.Snapshot()
}
