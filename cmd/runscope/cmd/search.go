package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meow-stack/runscope/internal/logsearch"
	"github.com/meow-stack/runscope/internal/types"
)

var (
	searchLog        string
	searchIgnoreCase bool
	searchRegex      bool
	searchAllLines   bool
	searchCount      bool
	searchJSON       bool
	searchCopy       int
)

var searchCmd = &cobra.Command{
	Use:   "search <run-id> <pattern>",
	Short: "Search a run's log",
	Long: `Scan a log of a run line by line and print matching lines with their
1-based line numbers.

The pattern is a literal substring unless --regex is given. Matches never
overlap; each line reports every match left to right.

Examples:
  runscope search r100 ERROR
  runscope search r100 'timeout|refused' -E -i
  runscope search r100 ERROR --log logs/step1.log --count
  runscope search r100 ERROR --json          # One JSON object per line`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchLog, "log", "stdout.log", "log path relative to the run directory")
	searchCmd.Flags().BoolVarP(&searchIgnoreCase, "ignore-case", "i", false, "case-insensitive match")
	searchCmd.Flags().BoolVarP(&searchRegex, "regex", "E", false, "treat the pattern as a regular expression")
	searchCmd.Flags().BoolVar(&searchAllLines, "all-lines", false, "print every line, not only matches")
	searchCmd.Flags().BoolVarP(&searchCount, "count", "c", false, "print only the number of matching lines")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output JSON lines")
	searchCmd.Flags().IntVar(&searchCopy, "copy", 0, "copy index to search (0 = authoritative)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	repo, ctx, cleanup, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := logsearch.Options{
		MatchesOnly: !searchAllLines,
		IgnoreCase:  searchIgnoreCase,
		Regex:       searchRegex,
	}
	out := cmd.OutOrStdout()

	if searchCount {
		n, err := repo.Count(ctx, args[0], searchLog, args[1], opts, selectCopy(searchCopy))
		if err != nil {
			return err
		}
		fmt.Fprintln(out, n)
		return nil
	}

	enc := json.NewEncoder(out)
	for m, err := range repo.Search(ctx, args[0], searchLog, args[1], opts, selectCopy(searchCopy)) {
		if err != nil {
			return err
		}
		if searchJSON {
			if err := enc.Encode(m); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(out, "%d:%s\n", m.LineNumber, highlight(m))
	}
	return nil
}

// highlight wraps every match span in color codes.
func highlight(m types.LogMatch) string {
	if noColor || len(m.Spans) == 0 {
		return m.LineText
	}
	var b strings.Builder
	last := 0
	for _, s := range m.Spans {
		b.WriteString(m.LineText[last:s.Start])
		b.WriteString("\033[1;31m")
		b.WriteString(m.LineText[s.Start:s.End])
		b.WriteString("\033[0m")
		last = s.End
	}
	b.WriteString(m.LineText[last:])
	return b.String()
}
