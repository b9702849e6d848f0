package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meow-stack/runscope/internal/status"
)

var rootsJSON bool

var rootsCmd = &cobra.Command{
	Use:   "roots",
	Short: "Show configured storage roots and whether they are reachable",
	Args:  cobra.NoArgs,
	RunE:  runRoots,
}

func init() {
	rootsCmd.Flags().BoolVar(&rootsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(rootsCmd)
}

func runRoots(cmd *cobra.Command, args []string) error {
	repo, ctx, cleanup, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	statuses := repo.CheckRoots(ctx)
	if rootsJSON {
		return writeJSON(cmd.OutOrStdout(), statuses)
	}
	fmt.Fprint(cmd.OutOrStdout(), status.FormatRoots(statuses, status.FormatOptions{NoColor: noColor}))
	return nil
}
