package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/meow-stack/runscope/internal/index"
	"github.com/meow-stack/runscope/internal/status"
	"github.com/meow-stack/runscope/internal/types"
)

var (
	lsStatus []string
	lsLimit  int
	lsJSON   bool
	lsLong   bool
	lsIDs    bool
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List runs across all roots",
	Long: `List every run visible in the primary and legacy roots, newest first.

A run ID present in several roots is listed once, from the root with the
highest precedence. Roots that cannot be read are reported as warnings and
the remaining roots are still listed.

Examples:
  runscope ls                    # Table of all runs
  runscope ls --status=error     # Only failed runs
  runscope ls -n 10              # Ten newest runs
  runscope ls --ids              # IDs only, no metadata reads
  runscope ls --json             # Machine-readable output`,
	Args: cobra.NoArgs,
	RunE: runLs,
}

func init() {
	lsCmd.Flags().StringSliceVar(&lsStatus, "status", nil, "filter by status (ok, error, needs_retry, ...)")
	lsCmd.Flags().IntVarP(&lsLimit, "limit", "n", 0, "show at most N runs")
	lsCmd.Flags().BoolVar(&lsJSON, "json", false, "output as JSON")
	lsCmd.Flags().BoolVarP(&lsLong, "long", "l", false, "multi-line output per run")
	lsCmd.Flags().BoolVar(&lsIDs, "ids", false, "print run IDs only")
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	repo, ctx, cleanup, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()

	if lsIDs {
		listing, err := repo.ListRuns(ctx)
		if err != nil {
			return err
		}
		warnUnavailable(cmd.ErrOrStderr(), listing)
		if lsJSON {
			return writeJSON(out, listing)
		}
		for _, id := range listing.IDs {
			fmt.Fprintln(out, id)
		}
		return nil
	}

	filter := index.Filter{Limit: lsLimit}
	for _, s := range lsStatus {
		filter.Status = append(filter.Status, types.ParseRunStatus(s))
	}

	sums, listing, err := repo.Summaries(ctx, filter)
	if err != nil {
		return err
	}
	warnUnavailable(cmd.ErrOrStderr(), listing)

	if lsJSON {
		type lsJSONOutput struct {
			Runs        []types.RunSummary  `json:"runs"`
			Unavailable []index.RootFailure `json:"unavailable,omitempty"`
		}
		if sums == nil {
			sums = []types.RunSummary{}
		}
		return writeJSON(out, lsJSONOutput{Runs: sums, Unavailable: listing.Unavailable})
	}

	if len(sums) == 0 {
		if len(lsStatus) > 0 {
			fmt.Fprintf(out, "No %s runs\n", strings.Join(lsStatus, "/"))
		} else {
			fmt.Fprintln(out, "No runs found")
		}
		return nil
	}

	if lsLong {
		fmt.Fprint(out, status.FormatRunList(sums, status.FormatOptions{NoColor: noColor}))
		return nil
	}

	return printRunsTable(cmd, sums)
}

func printRunsTable(cmd *cobra.Command, sums []types.RunSummary) error {
	now := time.Now()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tSTARTED\tDURATION\tSIZE\tROOT\tSUBJECT")

	for _, s := range sums {
		duration := "-"
		if d := s.Duration(); d > 0 {
			duration = d.Round(time.Second).String()
		}
		root := string(s.RootKind)
		if s.Overlap {
			root += "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Status, status.FormatAge(s.StartedAt, now), duration,
			status.FormatSize(s.SizeBytes), root, s.Subject)
	}

	return w.Flush()
}
