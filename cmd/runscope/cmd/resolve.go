package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/meow-stack/runscope/internal/types"
)

var (
	resolveAll  bool
	resolveJSON bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <run-id>",
	Short: "Print the directory a run ID resolves to",
	Long: `Print the absolute directory of the authoritative copy of a run.

With --all, every copy is printed in precedence order together with the
kind of root it lives in.

Examples:
  cd "$(runscope resolve r100)"
  runscope resolve r100 --all`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().BoolVarP(&resolveAll, "all", "a", false, "print every copy")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	repo, ctx, cleanup, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()

	if !resolveAll {
		run, err := repo.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		if resolveJSON {
			return writeJSON(out, run)
		}
		fmt.Fprintln(out, run.Dir)
		return nil
	}

	runs, err := repo.ResolveAll(ctx, args[0])
	if err != nil {
		return err
	}
	if resolveJSON {
		return writeJSON(out, runs)
	}
	return printCopies(cmd, runs)
}

func printCopies(cmd *cobra.Command, runs []types.ResolvedRun) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COPY\tROOT\tDIR")
	for i, r := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i, r.Root.Kind, r.Dir)
	}
	return w.Flush()
}
