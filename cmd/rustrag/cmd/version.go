package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Michaol/RustRAG/internal/output"
	"github.com/Michaol/RustRAG/pkg/version"
)

// newVersionCmd creates the version command. It skips the root hooks so it
// works without a readable configuration.
func newVersionCmd() *cobra.Command {
	var jsonOutput bool
	var shortOutput bool

	noop := func(*cobra.Command, []string) error { return nil }

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print version information including git commit, build date, and Go version.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if shortOutput {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Short())
				return err
			}
			if jsonOutput {
				return output.New(cmd.OutOrStdout()).JSON(version.GetInfo())
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err
		},
		PersistentPreRunE:  noop,
		PersistentPostRunE: noop,
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	cmd.Flags().BoolVar(&shortOutput, "short", false, "Output only the version number")

	return cmd
}
