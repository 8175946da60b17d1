package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Michaol/RustRAG/internal/output"
)

func newStatsCmd(s *session) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := parseFormat(format)
			if err != nil {
				return err
			}
			st, err := s.openStore(true)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			stats, err := st.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if format == formatJSON {
				return out.JSON(stats)
			}
			out.Status("", "database     "+s.dbPath())
			out.Stats(stats)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "Output format: text, json")
	return cmd
}
