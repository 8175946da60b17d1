package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrStopped is returned by Start after Stop.
var ErrStopped = errors.New("watcher stopped")

// Watcher watches a directory tree recursively through fsnotify.
type Watcher struct {
	opts      Options
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	events    chan []FileEvent
	errors    chan error
	stopCh    chan struct{}

	mu      sync.Mutex
	root    string
	dirs    map[string]bool // watched directories, root-relative
	stopped bool

	dropped atomic.Uint64
}

// New creates a Watcher. Call Start to begin watching.
func New(opts Options) (*Watcher, error) {
	opts = opts.withDefaults()
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		opts:      opts,
		fsw:       fsw,
		debouncer: NewDebouncer(opts.Debounce),
		events:    make(chan []FileEvent, opts.BufferSize),
		errors:    make(chan error, 16),
		stopCh:    make(chan struct{}),
		dirs:      make(map[string]bool),
	}, nil
}

// Start watches root until ctx is cancelled or Stop is called. It blocks.
func (w *Watcher) Start(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrStopped
	}
	w.root = abs
	w.mu.Unlock()

	if err := w.addRecursive(abs, false); err != nil {
		return fmt.Errorf("add directories to watcher: %w", err)
	}
	slog.Debug("watch_started", slog.String("root", abs), slog.Int("dirs", w.watchedDirs()))

	go w.forward()

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

// Events returns debounced batches of changes.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns watcher errors. Errors are dropped when nobody reads.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// DroppedBatches returns how many batches were discarded because the
// consumer fell behind.
func (w *Watcher) DroppedBatches() uint64 {
	return w.dropped.Load()
}

// Stop releases the watcher and closes Events and Errors. Safe to call
// more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.stopCh)
	w.mu.Unlock()

	_ = w.fsw.Close()
	w.debouncer.Stop()
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, ok := w.rel(ev.Name)
	if !ok {
		return
	}

	if filepath.Base(ev.Name) == ".gitignore" {
		if ev.Op&fsnotify.Chmod == ev.Op {
			return
		}
		w.debouncer.Add(FileEvent{Path: rel, Operation: OpGitignoreChange, Timestamp: time.Now()})
		return
	}

	switch {
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// A rename reports the old name; the new name arrives as Create.
		isDir := w.forgetDir(rel)
		if !w.accept(rel, isDir) {
			return
		}
		w.debouncer.Add(FileEvent{Path: rel, Operation: OpDelete, IsDir: isDir, Timestamp: time.Now()})

	case ev.Op&fsnotify.Create != 0:
		info, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if !w.accept(rel, true) {
				return
			}
			// Files written before the watch was added produce no event.
			if err := w.addRecursive(ev.Name, true); err != nil {
				w.emitError(err)
			}
			return
		}
		if w.accept(rel, false) {
			w.debouncer.Add(FileEvent{Path: rel, Operation: OpCreate, Timestamp: time.Now()})
		}

	case ev.Op&fsnotify.Write != 0:
		if w.isDir(rel) || !w.accept(rel, false) {
			return
		}
		w.debouncer.Add(FileEvent{Path: rel, Operation: OpModify, Timestamp: time.Now()})
	}
}

// addRecursive watches dir and every accepted directory below it. With
// announce set, regular files found on the way are reported as created.
func (w *Watcher) addRecursive(dir string, announce bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, ok := w.rel(path)
		if !ok {
			return nil
		}
		if !d.IsDir() {
			if announce && d.Type().IsRegular() && w.accept(rel, false) {
				w.debouncer.Add(FileEvent{Path: rel, Operation: OpCreate, Timestamp: time.Now()})
			}
			return nil
		}
		if rel != "" && (d.Name() == ".git" || !w.accept(rel, true)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		w.mu.Lock()
		w.dirs[rel] = true
		w.mu.Unlock()
		return nil
	})
}

func (w *Watcher) accept(rel string, isDir bool) bool {
	return w.opts.Filter == nil || w.opts.Filter(rel, isDir)
}

// rel converts an absolute event path into a slash-separated path
// relative to the root; the root itself maps to "".
func (w *Watcher) rel(path string) (string, bool) {
	w.mu.Lock()
	root := w.root
	w.mu.Unlock()
	r, err := filepath.Rel(root, path)
	if err != nil {
		return "", false
	}
	if r == "." {
		return "", true
	}
	return filepath.ToSlash(r), true
}

func (w *Watcher) isDir(rel string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirs[rel]
}

// forgetDir drops rel and its subdirectories from the watched set and
// reports whether rel was a watched directory.
func (w *Watcher) forgetDir(rel string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirs[rel] {
		return false
	}
	prefix := rel + "/"
	for d := range w.dirs {
		if d == rel || (len(d) > len(prefix) && d[:len(prefix)] == prefix) {
			delete(w.dirs, d)
		}
	}
	return true
}

func (w *Watcher) watchedDirs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirs)
}

func (w *Watcher) forward() {
	defer close(w.events)
	defer close(w.errors)
	for batch := range w.debouncer.Output() {
		select {
		case w.events <- batch:
		default:
			n := w.dropped.Add(1)
			slog.Warn("watch_buffer_full",
				slog.Int("batch_size", len(batch)),
				slog.Uint64("total_dropped_batches", n))
		}
	}
}

func (w *Watcher) emitError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
		slog.Warn("watch_error", slog.String("error", err.Error()))
	}
}
