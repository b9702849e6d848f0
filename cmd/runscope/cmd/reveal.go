package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var revealCopy int

var revealCmd = &cobra.Command{
	Use:   "reveal <run-id> [path]",
	Short: "Show a run folder or artifact in the file manager",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runReveal,
}

func init() {
	revealCmd.Flags().IntVar(&revealCopy, "copy", 0, "copy index to reveal (0 = authoritative)")
	rootCmd.AddCommand(revealCmd)
}

func runReveal(cmd *cobra.Command, args []string) error {
	repo, ctx, cleanup, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	target, err := repo.Reveal(ctx, args[0], optionalPath(args), selectCopy(revealCopy))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Revealed %s\n", target.Path)
	return nil
}
