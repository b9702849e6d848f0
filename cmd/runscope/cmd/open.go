package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var openCopy int

var openCmd = &cobra.Command{
	Use:   "open <run-id> [path]",
	Short: "Open a run folder or artifact in the default viewer",
	Long: `Hand a run folder or one of its artifacts to the system viewer.

Without a path the run directory itself is opened.

Examples:
  runscope open r100
  runscope open r100 out/figure.png`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runOpen,
}

func init() {
	openCmd.Flags().IntVar(&openCopy, "copy", 0, "copy index to open (0 = authoritative)")
	rootCmd.AddCommand(openCmd)
}

func runOpen(cmd *cobra.Command, args []string) error {
	repo, ctx, cleanup, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	target, err := repo.Open(ctx, args[0], optionalPath(args), selectCopy(openCopy))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Opened %s\n", target.Path)
	return nil
}

// optionalPath returns the relative path argument, or "" for the run
// directory.
func optionalPath(args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return ""
}
