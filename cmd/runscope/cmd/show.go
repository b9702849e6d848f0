package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meow-stack/runscope/internal/artifact"
	"github.com/meow-stack/runscope/internal/status"
	"github.com/meow-stack/runscope/internal/types"
)

var (
	showCopy      int
	showJSON      bool
	showArtifacts bool
	showQuiet     bool
)

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show details of a run",
	Long: `Show the summary of a run: status, timing, size and location.

When the run exists in more than one root, every copy is listed and the
authoritative one is marked with '*'. Use --copy to inspect a shadowed copy.

Examples:
  runscope show r100
  runscope show r100 --copy 1      # The first shadowed copy
  runscope show r100 --artifacts   # Include an artifact kind breakdown
  runscope show r100 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().IntVar(&showCopy, "copy", 0, "copy index to inspect (0 = authoritative)")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "output as JSON")
	showCmd.Flags().BoolVarP(&showArtifacts, "artifacts", "a", false, "include artifact breakdown")
	showCmd.Flags().BoolVarP(&showQuiet, "quiet", "q", false, "minimal output")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	repo, ctx, cleanup, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	id := args[0]
	sel := selectCopy(showCopy)

	sum, err := repo.Stats(ctx, id, sel)
	if err != nil {
		return err
	}
	copies, err := repo.ResolveAll(ctx, id)
	if err != nil {
		return err
	}

	var arts []types.Artifact
	if showArtifacts {
		arts, err = repo.Artifacts(ctx, id, artifact.Filter{}, sel)
		if err != nil {
			return err
		}
	}

	detail := status.NewRunDetail(sum, copies, arts)
	if showJSON {
		return writeJSON(cmd.OutOrStdout(), detail)
	}

	fmt.Fprint(cmd.OutOrStdout(), status.FormatRunDetail(detail, status.FormatOptions{
		NoColor: noColor,
		Quiet:   showQuiet,
	}))
	return nil
}
