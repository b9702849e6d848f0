package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meow-stack/runscope/internal/repository"
	"github.com/meow-stack/runscope/internal/rundiff"
	"github.com/meow-stack/runscope/internal/status"
	"github.com/meow-stack/runscope/internal/types"
)

var (
	diffDetail    string
	diffInclude   []string
	diffExclude   []string
	diffUnchanged bool
	diffJSON      bool
	diffExitCode  bool
)

var diffCmd = &cobra.Command{
	Use:   "diff <run-a> [run-b]",
	Short: "Compare the artifacts of two runs",
	Long: `Compare two runs path by path. Each path is reported as added, removed,
modified or unchanged; content is hashed only when sizes match.

With a single run ID, the authoritative copy is compared against the first
shadowed copy in a legacy root.

With --detail, print a unified line diff of one text artifact instead.

Examples:
  runscope diff r050 r100
  runscope diff r050 r100 --include '**/*.log'
  runscope diff r050 r100 --detail stdout.log
  runscope diff r100                    # Primary copy vs legacy copy`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().StringVar(&diffDetail, "detail", "", "print a line diff of this artifact")
	diffCmd.Flags().StringSliceVar(&diffInclude, "include", nil, "only compare paths matching these patterns")
	diffCmd.Flags().StringSliceVar(&diffExclude, "exclude", nil, "skip paths matching these patterns")
	diffCmd.Flags().BoolVar(&diffUnchanged, "unchanged", false, "also list unchanged paths")
	diffCmd.Flags().BoolVar(&diffJSON, "json", false, "output as JSON")
	diffCmd.Flags().BoolVar(&diffExitCode, "exit-code", false, "exit non-zero when the runs differ")
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	repo, ctx, cleanup, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	opts := rundiff.Options{Include: diffInclude, Exclude: diffExclude}

	if diffDetail != "" {
		if len(args) != 2 {
			return fmt.Errorf("--detail needs two run IDs")
		}
		text, err := repo.DiffDetail(ctx, args[0], args[1], diffDetail)
		if err != nil {
			return err
		}
		fmt.Fprint(out, text)
		return nil
	}

	var entries []types.DiffEntry
	labelA, labelB := args[0], ""
	if len(args) == 2 {
		labelB = args[1]
		entries, err = repo.Diff(ctx, args[0], args[1], opts)
	} else {
		labelA = args[0] + " [0]"
		labelB = args[0] + " [1]"
		entries, err = repo.DiffCopies(ctx, args[0], repository.Authoritative, repository.Copy(1), opts)
	}
	if err != nil {
		return err
	}

	report := status.NewDiffReport(labelA, labelB, entries)
	if diffJSON {
		if err := writeJSON(out, report); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, status.FormatDiffReport(report, status.FormatOptions{
			NoColor:   noColor,
			Unchanged: diffUnchanged,
		}))
	}

	if diffExitCode && report.Counts.Changed() {
		return errRunsDiffer
	}
	return nil
}

var errRunsDiffer = errors.New("runs differ")
