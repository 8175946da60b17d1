package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/Michaol/RustRAG/internal/watcher"
)

// Coordinator applies watcher batches to the index rooted at Root.
type Coordinator struct {
	engine *Engine
	root   string
	mu     sync.Mutex
}

// NewCoordinator creates a coordinator. root must be the same string
// given to IndexDirectory, so document keys line up.
func NewCoordinator(engine *Engine, root string) *Coordinator {
	return &Coordinator{engine: engine, root: root}
}

// Filter reports whether the watcher should pass a root-relative path on.
// It mirrors the scanner's eligibility rules.
func (c *Coordinator) Filter(relPath string, isDir bool) bool {
	opts := c.engine.ScanOptions(c.root)
	if isDir {
		return c.engine.Scanner().EligibleDir(opts, relPath)
	}
	return c.engine.Scanner().Eligible(opts, relPath)
}

// ApplyResult counts what one batch did.
type ApplyResult struct {
	Indexed int
	Removed int
	Failed  int
}

// HandleEvents applies a batch. A failing event is logged and skipped;
// only context cancellation aborts the batch.
func (c *Coordinator) HandleEvents(ctx context.Context, events []watcher.FileEvent) (ApplyResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var res ApplyResult
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := c.handleEvent(ctx, ev, &res); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			res.Failed++
			slog.Warn("watch_event_failed",
				slog.String("path", ev.Path),
				slog.String("operation", ev.Operation.String()),
				slog.String("error", err.Error()))
		}
	}

	slog.Info("watch_batch_applied",
		slog.Int("events", len(events)),
		slog.Int("indexed", res.Indexed),
		slog.Int("removed", res.Removed),
		slog.Int("failed", res.Failed))
	return res, nil
}

func (c *Coordinator) handleEvent(ctx context.Context, ev watcher.FileEvent, res *ApplyResult) error {
	path := filepath.Join(c.root, filepath.FromSlash(ev.Path))
	slog.Debug("watch_event",
		slog.String("path", ev.Path),
		slog.String("operation", ev.Operation.String()),
		slog.Bool("is_dir", ev.IsDir))

	switch ev.Operation {
	case watcher.OpCreate, watcher.OpModify:
		if ev.IsDir {
			return nil
		}
		err := c.engine.IndexFile(ctx, path)
		if errors.Is(err, fs.ErrNotExist) {
			// Gone again before the batch was applied.
			return c.remove(ctx, path, res)
		}
		if err != nil {
			return err
		}
		res.Indexed++
		return nil

	case watcher.OpDelete:
		if ev.IsDir {
			n, err := c.engine.RemoveTree(ctx, path)
			res.Removed += n
			return err
		}
		return c.remove(ctx, path, res)

	case watcher.OpGitignoreChange:
		return c.reconcile(ctx, res)
	}
	return nil
}

func (c *Coordinator) remove(ctx context.Context, path string, res *ApplyResult) error {
	ok, err := c.engine.RemoveFile(ctx, path)
	if ok {
		res.Removed++
	}
	return err
}

// reconcile rereads ignore rules, drops documents that became ignored and
// indexes files that became visible.
func (c *Coordinator) reconcile(ctx context.Context, res *ApplyResult) error {
	c.engine.Scanner().InvalidateGitignoreCache()

	removed, err := c.engine.Prune(ctx, c.root)
	res.Removed += removed
	if err != nil {
		return err
	}
	sr, err := c.engine.IndexDirectory(ctx, c.root, false)
	res.Indexed += sr.Indexed
	res.Failed += sr.Failed
	return err
}
