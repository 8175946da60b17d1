package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	rerrors "github.com/Michaol/RustRAG/internal/errors"
	"github.com/Michaol/RustRAG/internal/logging"
	"github.com/Michaol/RustRAG/internal/output"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	noColor bool
	file    string
}

func newLogsCmd(s *session) *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the RustRAG log",
		Long: `Show recent entries of the RustRAG log file, optionally filtered by
level or pattern. With -f, keep printing new entries until Ctrl-C.

Examples:
  rustrag logs
  rustrag logs -n 100 --level warn
  rustrag logs -f --filter "sync_"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runLogs(ctx, cmd, s, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only show lines matching this regular expression")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.file, "file", "", "Log file (default: logging.file_path or ~/.rustrag/logs/rustrag.log)")

	return cmd
}

func runLogs(ctx context.Context, cmd *cobra.Command, s *session, opts logsOptions) error {
	path := opts.file
	if path == "" {
		path = s.cfg.Logging.FilePath
	}
	if path == "" {
		path = logging.DefaultLogPath()
	}

	cfg := logging.ViewerConfig{
		Level:   opts.level,
		NoColor: opts.noColor || !output.IsTTY(cmd.OutOrStdout()) || output.DetectNoColor(),
	}
	if opts.filter != "" {
		re, err := regexp.Compile(opts.filter)
		if err != nil {
			return rerrors.InputError(fmt.Sprintf("invalid filter pattern %q", opts.filter), err)
		}
		cfg.Pattern = re
	}
	viewer := logging.NewViewer(cfg)
	w := cmd.OutOrStdout()

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	for _, e := range entries {
		_, _ = fmt.Fprintln(w, viewer.Format(e))
	}
	if !opts.follow {
		return nil
	}

	followed := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)
	go func() { errCh <- viewer.Follow(ctx, path, followed) }()
	for {
		select {
		case e := <-followed:
			_, _ = fmt.Fprintln(w, viewer.Format(e))
		case err := <-errCh:
			return err
		}
	}
}
