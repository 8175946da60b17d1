package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	rerrors "github.com/Michaol/RustRAG/internal/errors"
	"github.com/Michaol/RustRAG/internal/output"
	"github.com/Michaol/RustRAG/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	topK    int
	dir     string
	pattern string
	format  string // "text", "json"
	symbols bool   // match symbol names instead of embeddings
	prefix  string
}

func newSearchCmd(s *session) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index by semantic similarity",
		Long: `Embed the query and rank stored chunks by cosine similarity.

--dir keeps documents under a directory and --pattern matches file names
with * and ? wildcards. --symbols looks the query terms up in code symbol
names instead.

Examples:
  rustrag search "retry with backoff"
  rustrag search "open the database" --dir internal/store --top-k 3
  rustrag search "parser" --pattern "*.rs" --format json
  rustrag search ParseFile --symbols`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, s, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Maximum number of results (default: search.top_k)")
	cmd.Flags().StringVarP(&opts.dir, "dir", "d", "", "Only search documents under this directory")
	cmd.Flags().StringVarP(&opts.pattern, "pattern", "p", "", "Only search files matching this glob")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatText, "Output format: text, json")
	cmd.Flags().BoolVar(&opts.symbols, "symbols", false, "Match query terms against symbol names")
	cmd.Flags().StringVar(&opts.prefix, "query-prefix", "", `Prefix added to the query before embedding (e.g. "query: ")`)

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, s *session, query string, opts searchOptions) error {
	format, err := parseFormat(opts.format)
	if err != nil {
		return err
	}
	topK := opts.topK
	if topK == 0 {
		topK = s.cfg.Search.TopK
	}
	if topK < 0 {
		return rerrors.New(rerrors.ErrCodeInvalidTopK, "--top-k must be positive", nil)
	}

	st, err := s.openStore(true)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	slog.Info("search_started", slog.Int("top_k", topK), slog.Bool("symbols", opts.symbols))

	var results []search.Result
	if opts.symbols {
		engine, err := search.NewEngine(st, nil, search.WithMetrics(s.metrics))
		if err != nil {
			return err
		}
		results, err = engine.SearchSymbols(ctx, query, topK)
		if err != nil {
			return err
		}
	} else {
		embedder, err := s.newEmbedder()
		if err != nil {
			return err
		}
		defer func() { _ = embedder.Close() }()

		engine, err := search.NewEngine(st, embedder,
			search.WithMetrics(s.metrics),
			search.WithQueryPrefix(opts.prefix))
		if err != nil {
			return err
		}
		results, err = engine.SearchText(ctx, query, topK, search.Filter{
			Directory:   opts.dir,
			FilePattern: opts.pattern,
		})
		if err != nil {
			return err
		}
	}

	out := output.New(cmd.OutOrStdout())
	if format == formatJSON {
		if results == nil {
			results = []search.Result{}
		}
		return out.JSON(results)
	}
	out.SearchResults(results)
	return nil
}
