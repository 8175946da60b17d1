package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Michaol/RustRAG/internal/index"
	"github.com/Michaol/RustRAG/internal/output"
	"github.com/Michaol/RustRAG/internal/store"
)

func newDocumentsCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "List or delete indexed documents",
	}
	cmd.AddCommand(newDocumentsListCmd(s))
	cmd.AddCommand(newDocumentsDeleteCmd(s))
	return cmd
}

func newDocumentsListCmd(s *session) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDocumentsList(cmd.Context(), cmd, s, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "Output format: text, json")
	return cmd
}

func runDocumentsList(ctx context.Context, cmd *cobra.Command, s *session, format string) error {
	format, err := parseFormat(format)
	if err != nil {
		return err
	}
	st, err := s.openStore(true)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	docs, err := st.Documents(ctx)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if format == formatJSON {
		if docs == nil {
			docs = []store.DocumentInfo{}
		}
		return out.JSON(docs)
	}
	out.Documents(docs)
	return nil
}

func newDocumentsDeleteCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <file>...",
		Short: "Delete documents from the index",
		Long: `Delete documents with their chunks, vectors, metadata and relations.
Names are matched as stored, after cleaning to forward slashes.

Example:
  rustrag documents delete docs/old.md src/legacy.go`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocumentsDelete(cmd.Context(), cmd, s, args)
		},
	}
}

func runDocumentsDelete(ctx context.Context, cmd *cobra.Command, s *session, names []string) error {
	st, err := s.openStore(true)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	out := output.New(cmd.OutOrStdout())
	for _, name := range names {
		key := index.DocumentKey(name)
		deleted, err := st.DeleteDocument(ctx, key)
		if err != nil {
			return err
		}
		if deleted {
			out.Successf("deleted %s", key)
		} else {
			out.Warningf("not indexed: %s", key)
		}
	}
	return nil
}
