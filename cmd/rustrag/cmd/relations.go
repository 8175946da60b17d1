package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Michaol/RustRAG/internal/chunk"
	rerrors "github.com/Michaol/RustRAG/internal/errors"
	"github.com/Michaol/RustRAG/internal/output"
	"github.com/Michaol/RustRAG/internal/store"
)

type relationsOptions struct {
	direction string
	relType   string
	format    string
}

func newRelationsCmd(s *session) *cobra.Command {
	var opts relationsOptions

	cmd := &cobra.Command{
		Use:   "relations <symbol>",
		Short: "Query the code graph around a symbol",
		Long: `List call, import and inherit edges touching an indexed symbol.

Outgoing edges start at the symbol, incoming edges point at it.

Examples:
  rustrag relations Open
  rustrag relations Open --direction incoming --type calls
  rustrag relations Server --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelations(cmd.Context(), cmd, s, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.direction, "direction", store.DirectionBoth, "Edge direction: incoming, outgoing, both")
	cmd.Flags().StringVarP(&opts.relType, "type", "t", "", "Relation type: calls, imports, inherits (default: all)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatText, "Output format: text, json")

	return cmd
}

func runRelations(ctx context.Context, cmd *cobra.Command, s *session, symbol string, opts relationsOptions) error {
	if strings.TrimSpace(symbol) == "" {
		return rerrors.InputError("symbol must not be empty", nil)
	}
	format, err := parseFormat(opts.format)
	if err != nil {
		return err
	}
	switch opts.direction {
	case store.DirectionIncoming, store.DirectionOutgoing, store.DirectionBoth:
	default:
		return rerrors.InputError(fmt.Sprintf("unknown direction %q (want incoming, outgoing or both)", opts.direction), nil)
	}
	if opts.relType != "" {
		if _, ok := chunk.ParseRelationType(opts.relType); !ok {
			return rerrors.InputError(fmt.Sprintf("unknown relation type %q (want calls, imports or inherits)", opts.relType), nil)
		}
	}

	st, err := s.openStore(true)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	rels, err := st.FindSymbolRelations(ctx, symbol, opts.direction, opts.relType)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if format == formatJSON {
		if rels == nil {
			rels = []store.Relation{}
		}
		return out.JSON(rels)
	}
	out.Relations(rels)
	return nil
}
