package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Michaol/RustRAG/internal/output"
	"github.com/Michaol/RustRAG/internal/preflight"
	"github.com/Michaol/RustRAG/internal/store"
)

type doctorOptions struct {
	verbose bool
	offline bool
	format  string
}

// doctorReport is the JSON form of a doctor run.
type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

// doctorError reports critical check failures after the results are shown.
type doctorError struct {
	failed int
}

func (e *doctorError) Error() string {
	return fmt.Sprintf("system check failed (%d critical)", e.failed)
}

func newDoctorCmd(s *session) *cobra.Command {
	var opts doctorOptions

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment and diagnose problems",
		Long: `Run diagnostics for the configured project.

Checks:
  - Disk space and write access where the database lives
  - Open file limit (watch needs one descriptor per directory)
  - The vector search extension
  - The existing index, if any, against the configured dimensions
  - The embedding provider, unless --offline is set

Examples:
  rustrag doctor
  rustrag doctor --offline --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDoctor(ctx, cmd, s, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show check details")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Skip the embedding provider check")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatText, "Output format: text, json")

	return cmd
}

func runDoctor(ctx context.Context, cmd *cobra.Command, s *session, opts doctorOptions) error {
	format, err := parseFormat(opts.format)
	if err != nil {
		return err
	}

	checks := []preflight.Option{
		preflight.WithVerbose(opts.verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
		preflight.WithCheck("vector_extension", true, checkVectorExtension),
		preflight.WithCheck("index", true, s.checkIndex),
	}
	if !opts.offline {
		checks = append(checks, preflight.WithCheck("embedder", true, s.checkEmbedder))
	}
	checker := preflight.New(checks...)

	results := checker.RunAll(ctx, existingDir(s.dataDir()))

	if format == formatJSON {
		if err := output.New(cmd.OutOrStdout()).JSON(doctorReport{
			Status: checker.SummaryStatus(results),
			Checks: results,
		}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	var failed int
	for _, r := range results {
		if r.IsCritical() {
			failed++
		}
	}
	if failed > 0 {
		return &doctorError{failed: failed}
	}
	return nil
}

// dataDir is the directory holding the database, or the project root for
// an in-memory database.
func (s *session) dataDir() string {
	path := s.dbPath()
	if path == store.MemoryPath {
		return s.root
	}
	return filepath.Dir(path)
}

// existingDir returns dir or its nearest existing ancestor. The database
// directory is only created by the first index run.
func existingDir(dir string) string {
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

func checkVectorExtension(context.Context) (string, error) {
	if _, err := store.InitVectorExtension(); err != nil {
		return "", err
	}
	return "OK", nil
}

func (s *session) checkIndex(ctx context.Context) (string, error) {
	path := s.dbPath()
	if path != store.MemoryPath {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return "", &preflight.Warning{Message: fmt.Sprintf("no index at %s, run 'rustrag index'", path)}
		}
	}
	st, err := s.openStore(true)
	if err != nil {
		return "", err
	}
	defer func() { _ = st.Close() }()

	stats, err := st.Stats(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d documents, %d chunks, %d dimensions", stats.Documents, stats.Chunks, stats.Dimensions), nil
}

func (s *session) checkEmbedder(ctx context.Context) (string, error) {
	embedder, err := s.newEmbedder()
	if err != nil {
		return "", err
	}
	defer func() { _ = embedder.Close() }()

	vec, err := embedder.Embed(ctx, "rustrag doctor")
	if err != nil {
		return "", err
	}
	if len(vec) != s.cfg.Embeddings.Dimensions {
		return "", fmt.Errorf("provider returned %d dimensions, configured %d", len(vec), s.cfg.Embeddings.Dimensions)
	}
	e := s.cfg.Embeddings
	return fmt.Sprintf("%s %s (%d dimensions)", e.Provider, e.Model, len(vec)), nil
}
