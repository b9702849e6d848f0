package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	copyTo   string
	copyCopy int
)

var copyCmd = &cobra.Command{
	Use:   "copy <run-id> [path]",
	Short: "Copy an artifact's path to the clipboard, or the artifact to a folder",
	Long: `Without --to, place the absolute path of the run folder or artifact on
the clipboard. With --to, copy the artifact into the given directory under
its own name. Existing files are never overwritten and destinations inside
the run directory are rejected.

Examples:
  runscope copy r100                       # Run folder path to clipboard
  runscope copy r100 result.json           # Artifact path to clipboard
  runscope copy r100 result.json --to ~/tmp`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCopy,
}

func init() {
	copyCmd.Flags().StringVar(&copyTo, "to", "", "directory to copy the artifact into")
	copyCmd.Flags().IntVar(&copyCopy, "copy", 0, "copy index to use (0 = authoritative)")
	rootCmd.AddCommand(copyCmd)
}

func runCopy(cmd *cobra.Command, args []string) error {
	repo, ctx, cleanup, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	rel := optionalPath(args)
	sel := selectCopy(copyCopy)

	if copyTo == "" {
		target, err := repo.CopyPath(ctx, args[0], rel, sel)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Copied path %s\n", target.Path)
		return nil
	}

	if rel == "" {
		return fmt.Errorf("copy --to needs an artifact path")
	}
	dest, err := repo.CopyTo(ctx, args[0], rel, copyTo, sel)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Copied to %s\n", dest)
	return nil
}
