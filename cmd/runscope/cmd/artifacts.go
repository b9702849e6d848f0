package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/meow-stack/runscope/internal/artifact"
	"github.com/meow-stack/runscope/internal/status"
	"github.com/meow-stack/runscope/internal/types"
)

var (
	artifactsCopy    int
	artifactsInclude []string
	artifactsExclude []string
	artifactsJSON    bool
)

var artifactsCmd = &cobra.Command{
	Use:     "artifacts <run-id>",
	Aliases: []string{"files"},
	Short:   "List the files of a run",
	Long: `List every file in a run directory with its kind and size.

Patterns use doublestar syntax ('**' crosses directories) and match paths
relative to the run directory. Excludes win over includes.

Examples:
  runscope artifacts r100
  runscope artifacts r100 --include '**/*.log'
  runscope artifacts r100 --exclude 'out/**' --json`,
	Args: cobra.ExactArgs(1),
	RunE: runArtifacts,
}

func init() {
	artifactsCmd.Flags().IntVar(&artifactsCopy, "copy", 0, "copy index to inspect (0 = authoritative)")
	artifactsCmd.Flags().StringSliceVar(&artifactsInclude, "include", nil, "only paths matching these patterns")
	artifactsCmd.Flags().StringSliceVar(&artifactsExclude, "exclude", nil, "skip paths matching these patterns")
	artifactsCmd.Flags().BoolVar(&artifactsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(artifactsCmd)
}

func runArtifacts(cmd *cobra.Command, args []string) error {
	repo, ctx, cleanup, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	filter := artifact.Filter{Include: artifactsInclude, Exclude: artifactsExclude}
	arts, err := repo.Artifacts(ctx, args[0], filter, selectCopy(artifactsCopy))
	if err != nil {
		return err
	}

	if artifactsJSON {
		if arts == nil {
			arts = []types.Artifact{}
		}
		return writeJSON(cmd.OutOrStdout(), arts)
	}

	if len(arts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No artifacts")
		return nil
	}

	now := time.Now()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tKIND\tSIZE\tMODIFIED")
	for _, a := range arts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			a.RelPath, a.Kind, status.FormatSize(a.SizeBytes), status.FormatAge(a.ModTime, now))
	}
	return w.Flush()
}
