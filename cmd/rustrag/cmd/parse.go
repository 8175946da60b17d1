package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Michaol/RustRAG/internal/chunk"
	rerrors "github.com/Michaol/RustRAG/internal/errors"
	"github.com/Michaol/RustRAG/internal/output"
)

type parseOptions struct {
	relations bool
	format    string
}

// parseReport is the JSON form of a parsed file.
type parseReport struct {
	File       string               `json:"file"`
	Language   string               `json:"language,omitempty"`
	Symbols    []chunk.CodeChunk    `json:"symbols,omitempty"`
	TextChunks []chunk.TextChunk    `json:"text_chunks,omitempty"`
	Relations  []chunk.CodeRelation `json:"relations,omitempty"`
}

func newParseCmd(s *session) *cobra.Command {
	var opts parseOptions

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Show how a file would be chunked",
		Long: `Parse a single file without touching the index. Source files are split
into symbols (functions, methods, classes, structs, interfaces); markdown
is split into paragraph-bounded chunks of index.chunk_size runes.

Examples:
  rustrag parse internal/store/sqlite.go
  rustrag parse src/lib.rs --relations
  rustrag parse README.md --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd.Context(), cmd, s, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.relations, "relations", false, "Also extract call, import and inherit relations")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatText, "Output format: text, json")

	return cmd
}

func runParse(ctx context.Context, cmd *cobra.Command, s *session, path string, opts parseOptions) error {
	format, err := parseFormat(opts.format)
	if err != nil {
		return err
	}
	report := parseReport{File: path}
	markdown := strings.EqualFold(filepath.Ext(path), ".md")

	if markdown {
		data, err := os.ReadFile(path)
		if err != nil {
			return rerrors.IOError(fmt.Sprintf("read %s", path), err)
		}
		report.TextChunks, err = chunk.ChunkText(string(data), s.cfg.Index.ChunkSize)
		if err != nil {
			return err
		}
	} else if err := parseCode(ctx, path, opts.relations, &report); err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if format == formatJSON {
		return out.JSON(report)
	}
	if markdown {
		out.TextChunks(report.TextChunks)
		return nil
	}
	out.Chunks(report.Symbols)
	if opts.relations {
		out.Status("", "")
		out.CodeRelations(report.Relations)
	}
	return nil
}

func parseCode(ctx context.Context, path string, withRelations bool, report *parseReport) error {
	registry, err := chunk.DefaultRegistry()
	if err != nil {
		return err
	}
	lang, ok := registry.GetByPath(path)
	if !ok {
		return rerrors.New(rerrors.ErrCodeUnsupportedLanguage, "unsupported language: "+path, nil)
	}
	report.Language = lang.Name()

	source, err := os.ReadFile(path)
	if err != nil {
		return rerrors.IOError(fmt.Sprintf("read %s", path), err)
	}
	symbols, err := chunk.NewExtractor(registry).ParseSource(ctx, path, source)
	if err != nil {
		return err
	}
	report.Symbols = symbols
	if !withRelations {
		return nil
	}

	rels, err := chunk.NewRelationExtractor(registry).ExtractChunks(ctx, source, lang.Name(), path, symbols)
	if err != nil {
		return err
	}
	for _, r := range rels {
		report.Relations = append(report.Relations, r...)
	}
	return nil
}
