package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Michaol/RustRAG/configs"
	"github.com/Michaol/RustRAG/internal/config"
	rerrors "github.com/Michaol/RustRAG/internal/errors"
	"github.com/Michaol/RustRAG/internal/output"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a commented .rustrag.yaml",
		Long: `Write the default project configuration, with every setting commented,
to .rustrag.yaml in dir (default: current directory).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
		// init must work where the existing configuration does not load.
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing .rustrag.yaml")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	path := filepath.Join(dir, config.ProjectConfigName)
	if _, err := os.Stat(path); err == nil && !force {
		return rerrors.InputError(fmt.Sprintf("%s already exists (use --force to overwrite)", path), nil)
	}
	if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return rerrors.IOError(fmt.Sprintf("write %s", path), err)
	}
	output.New(cmd.OutOrStdout()).Successf("Created %s", path)
	return nil
}
