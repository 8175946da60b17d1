package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Michaol/RustRAG/internal/index"
	"github.com/Michaol/RustRAG/internal/output"
	"github.com/Michaol/RustRAG/internal/store"
	"github.com/Michaol/RustRAG/internal/ui"
)

type indexOptions struct {
	force  bool
	prune  bool
	plain  bool
	format string
}

// indexReport is the JSON form of an index run.
type indexReport struct {
	Roots   []string         `json:"roots"`
	Result  index.SyncResult `json:"result"`
	Pruned  int              `json:"pruned"`
	DBPath  string           `json:"db_path"`
	Elapsed string           `json:"elapsed"`
}

func newIndexCmd(s *session) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index [dir...]",
		Short: "Index markdown and source files",
		Long: `Index every eligible file under the given directories. Without
arguments the directories listed in paths.documents are indexed.

Unchanged files (same modification time) are skipped unless --force is set.
With --prune, documents whose files no longer exist are removed.

On a terminal a live progress view is shown; elsewhere, or with --plain,
each added, updated or failed file is printed on its own line.

Examples:
  rustrag index
  rustrag index ./docs ./src --force
  rustrag index . --prune --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIndex(ctx, cmd, s, s.indexRoots(args), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.force, "force", false, "Re-index files even when unchanged")
	cmd.Flags().BoolVar(&opts.prune, "prune", false, "Remove documents whose files are gone")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Print progress as plain lines")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatText, "Output format: text, json")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, s *session, roots []string, opts indexOptions) error {
	format, err := parseFormat(opts.format)
	if err != nil {
		return err
	}
	start := time.Now()

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

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// JSON output stays machine readable, so progress is text only.
	var renderer ui.Renderer
	var progress func(index.Progress)
	if format == formatText {
		renderer = ui.NewRenderer(ui.Config{
			Output:     cmd.ErrOrStderr(),
			ForcePlain: opts.plain,
			Root:       strings.Join(roots, " "),
			Interrupt:  cancel,
		})
		if err := renderer.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = renderer.Stop() }()
		progress = func(p index.Progress) { renderer.Update(ui.ProgressEvent(p)) }
	}

	engine, err := s.newEngine(st, embedder, progress)
	if err != nil {
		return err
	}

	report := indexReport{Roots: roots, DBPath: dbPath}
	for _, root := range roots {
		res, err := engine.IndexDirectory(ctx, root, opts.force)
		if err != nil {
			return fmt.Errorf("index %s: %w", root, err)
		}
		report.Result = addResults(report.Result, res)

		if opts.prune {
			n, err := engine.Prune(ctx, root)
			if err != nil {
				return fmt.Errorf("prune %s: %w", root, err)
			}
			report.Pruned += n
		}
	}
	elapsed := time.Since(start)
	report.Result.Duration = elapsed
	report.Elapsed = elapsed.Round(time.Millisecond).String()

	slog.Info("index_command_complete",
		slog.Int("roots", len(roots)),
		slog.Int("indexed", report.Result.Indexed),
		slog.Int("failed", report.Result.Failed),
		slog.Int("pruned", report.Pruned),
		slog.Duration("duration", elapsed))

	out := output.New(cmd.OutOrStdout())
	if format == formatJSON {
		return out.JSON(report)
	}

	r := report.Result
	renderer.Complete(ui.Summary{
		Added:    r.Added,
		Updated:  r.Updated,
		Skipped:  r.Skipped,
		Failed:   r.Failed,
		Duration: elapsed,
	})
	_ = renderer.Stop()

	out.Successf("Indexed %d files (%d added, %d updated, %d unchanged) in %s",
		r.Indexed, r.Added, r.Updated, r.Skipped, report.Elapsed)
	if report.Pruned > 0 {
		out.Status("", fmt.Sprintf("removed %d stale documents", report.Pruned))
	}
	if r.Failed > 0 {
		out.Warningf("%d files failed, see the log for details", r.Failed)
	}
	return nil
}

func addResults(a, b index.SyncResult) index.SyncResult {
	return index.SyncResult{
		Added:   a.Added + b.Added,
		Updated: a.Updated + b.Updated,
		Skipped: a.Skipped + b.Skipped,
		Failed:  a.Failed + b.Failed,
		Indexed: a.Indexed + b.Indexed,
	}
}
