package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Michaol/RustRAG/internal/index"
	"github.com/Michaol/RustRAG/internal/output"
	"github.com/Michaol/RustRAG/internal/store"
	"github.com/Michaol/RustRAG/internal/watcher"
)

type watchOptions struct {
	force bool
}

func newWatchCmd(s *session) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Keep the index in sync with a directory",
		Long: `Index a directory, then watch it and re-index files as they change.
Deleted files and directories are removed from the index, and a changed
.gitignore re-evaluates the whole tree. Stop with Ctrl-C.

Changes are applied in batches once the tree has been quiet for
index.watch_debounce.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			root := "."
			if len(args) == 1 {
				root = args[0]
			} else if docs := s.cfg.Paths.Documents; len(docs) > 0 {
				root = docs[0]
			}
			return runWatch(ctx, cmd, s, root, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.force, "force", false, "Re-index every file before watching")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, s *session, root string, opts watchOptions) error {
	debounce, err := s.cfg.WatchDebounce()
	if err != nil {
		return err
	}

	dbPath := s.dbPath()
	if dbPath != store.MemoryPath {
		lock := index.NewFileLock(dbPath)
		if err := lock.Lock(ctx); err != nil {
			return err
		}
		defer func() { _ = lock.Unlock() }()
	}

	st, err := s.openStore(false)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	embedder, err := s.newEmbedder()
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	engine, err := s.newEngine(st, embedder, nil)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	res, err := engine.IndexDirectory(ctx, root, opts.force)
	if err != nil {
		return fmt.Errorf("initial index of %s: %w", root, err)
	}
	out.Successf("Indexed %d files (%d unchanged, %d failed)", res.Indexed, res.Skipped, res.Failed)

	coord := index.NewCoordinator(engine, root)
	w, err := watcher.New(watcher.Options{Debounce: debounce, Filter: coord.Filter})
	if err != nil {
		return err
	}

	startErr := make(chan error, 1)
	go func() { startErr <- w.Start(ctx, root) }()
	out.Status("", fmt.Sprintf("watching %s (Ctrl-C to stop)", root))

	err = applyBatches(ctx, out, coord, w, startErr)
	w.Stop()
	if dropped := w.DroppedBatches(); dropped > 0 {
		slog.Warn("watch_batches_dropped", slog.Uint64("count", dropped))
	}
	if errors.Is(err, context.Canceled) {
		out.Status("", "stopped")
		return nil
	}
	return err
}

// applyBatches feeds watcher batches to the coordinator until the watcher
// stops or ctx ends.
func applyBatches(ctx context.Context, out *output.Writer, coord *index.Coordinator, w *watcher.Watcher, started <-chan error) error {
	events, errs := w.Events(), w.Errors()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-started:
			if err != nil {
				return err
			}
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("watch_error", slog.String("error", err.Error()))
		case batch, ok := <-events:
			if !ok {
				return ctx.Err()
			}
			res, err := coord.HandleEvents(ctx, batch)
			if err != nil {
				return err
			}
			if res.Indexed+res.Removed+res.Failed > 0 {
				out.Status("", fmt.Sprintf("updated %d, removed %d, failed %d", res.Indexed, res.Removed, res.Failed))
			}
		}
	}
}
