// Package cmd provides the CLI commands for RustRAG.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Michaol/RustRAG/internal/config"
	"github.com/Michaol/RustRAG/internal/logging"
	"github.com/Michaol/RustRAG/internal/profiling"
	"github.com/Michaol/RustRAG/internal/telemetry"
	"github.com/Michaol/RustRAG/pkg/version"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	debug       bool
	configDir   string
	metricsFile string
	profile     profiling.Options
}

// session is the per-invocation state built by the root pre-run hook.
type session struct {
	cfg     *config.Config
	root    string
	metrics *telemetry.Metrics

	profiler       *profiling.Session
	loggingCleanup func()
}

// NewRootCmd creates the root command for the rustrag CLI.
func NewRootCmd() *cobra.Command {
	var opts globalOptions
	s := &session{}

	cmd := &cobra.Command{
		Use:   "rustrag",
		Short: "Local semantic index over prose and source code",
		Long: `RustRAG indexes markdown documents and source code (Go, Rust, Python,
TypeScript, JavaScript) into a local SQLite vector store and answers
similarity queries against it.

Typical use:
  rustrag index ./docs ./src
  rustrag search "how are chunks embedded"
  rustrag relations Open --direction incoming`,
		Version:      version.Version,
		SilenceUsage: true,
	}
	cmd.SetVersionTemplate("rustrag version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.configDir, "config", "", "Directory holding .rustrag.yaml (default: project root)")
	cmd.PersistentFlags().StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to file on exit")
	cmd.PersistentFlags().StringVar(&opts.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return s.start(opts)
	}
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		return s.stop(opts)
	}

	cmd.AddCommand(newIndexCmd(s))
	cmd.AddCommand(newSearchCmd(s))
	cmd.AddCommand(newParseCmd(s))
	cmd.AddCommand(newRelationsCmd(s))
	cmd.AddCommand(newDocumentsCmd(s))
	cmd.AddCommand(newStatsCmd(s))
	cmd.AddCommand(newWatchCmd(s))
	cmd.AddCommand(newLogsCmd(s))
	cmd.AddCommand(newDoctorCmd(s))
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// start loads configuration, then starts logging and profiling.
func (s *session) start(opts globalOptions) error {
	root := opts.configDir
	if root == "" {
		r, err := config.FindProjectRoot(".")
		if err != nil {
			return err
		}
		root = r
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	s.cfg = cfg
	s.root = root
	s.metrics = telemetry.New()

	logCfg := logging.Config{
		Level:     cfg.Logging.Level,
		FilePath:  cfg.Logging.FilePath,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	}
	if logCfg.FilePath == "" {
		logCfg.FilePath = logging.DefaultLogPath()
	}
	if opts.debug {
		logCfg.Level = "debug"
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	s.loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("cli_started",
		slog.String("version", version.Version),
		slog.String("root", root),
		slog.String("log_file", logCfg.FilePath))

	if opts.profile.Enabled() {
		p, err := profiling.Start(opts.profile)
		if err != nil {
			return err
		}
		s.profiler = p
	}
	return nil
}

// stop flushes profiles and metrics and closes the log file.
func (s *session) stop(opts globalOptions) error {
	var firstErr error
	if err := s.profiler.Stop(); err != nil {
		firstErr = err
	}
	s.profiler = nil

	if opts.metricsFile != "" {
		if err := s.metrics.WriteTextfile(opts.metricsFile); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.loggingCleanup != nil {
		slog.Debug("cli_finished")
		s.loggingCleanup()
		s.loggingCleanup = nil
	}
	return firstErr
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
