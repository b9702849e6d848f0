package cmd

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

var (
	catCopy   int
	catPretty bool
)

var catCmd = &cobra.Command{
	Use:   "cat <run-id> <path>",
	Short: "Print an artifact to stdout",
	Long: `Stream an artifact of a run to stdout.

The path is relative to the run directory. Paths that would leave the run
directory, including through symlinks, are rejected.

With --pretty, JSON content is indented; anything that does not parse as
JSON is printed unchanged.

Examples:
  runscope cat r100 stdout.log
  runscope cat r100 result.json --pretty
  runscope cat r100 result.json --copy 1`,
	Args: cobra.ExactArgs(2),
	RunE: runCat,
}

func init() {
	catCmd.Flags().IntVar(&catCopy, "copy", 0, "copy index to read (0 = authoritative)")
	catCmd.Flags().BoolVar(&catPretty, "pretty", false, "indent JSON content")
	rootCmd.AddCommand(catCmd)
}

func runCat(cmd *cobra.Command, args []string) error {
	repo, ctx, cleanup, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	rc, err := repo.Read(ctx, args[0], args[1], selectCopy(catCopy))
	if err != nil {
		return err
	}
	defer rc.Close()

	if !catPretty {
		_, err = io.Copy(cmd.OutOrStdout(), rc)
		return err
	}

	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(prettyJSON(data))
	return err
}

// prettyJSON indents data when it is valid JSON and returns it unchanged
// otherwise.
func prettyJSON(data []byte) []byte {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(data), "", "  "); err != nil {
		return data
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}
