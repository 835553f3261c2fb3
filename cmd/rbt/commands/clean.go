package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/rbt/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the store, cache and workspaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, _ := cmd.Flags().GetString("file")
			rootDir, _ := cmd.Flags().GetString("root-dir")
			workspaces, _ := cmd.Flags().GetBool("workspaces")

			return c.app.Clean(cmd.Context(), app.CleanOptions{
				File:       file,
				RootDir:    rootDir,
				Workspaces: workspaces,
			})
		},
	}

	cmd.Flags().BoolP("workspaces", "w", false, "Only remove job workspaces")

	return cmd
}
