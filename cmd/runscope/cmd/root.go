package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/meow-stack/runscope/internal/artifact"
	"github.com/meow-stack/runscope/internal/config"
	"github.com/meow-stack/runscope/internal/index"
	"github.com/meow-stack/runscope/internal/launcher"
	"github.com/meow-stack/runscope/internal/logging"
	"github.com/meow-stack/runscope/internal/repository"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"

	// Global flags
	verbose    bool
	workDir    string
	configPath string
	noColor    bool
)

// newHandoff builds the desktop handoff used by open, reveal and copy.
// Tests replace it with a recorder.
var newHandoff = func() artifact.Handoff {
	return launcher.NewSystem()
}

var rootCmd = &cobra.Command{
	Use:   "runscope",
	Short: "Browse run output across current and legacy roots",
	Long: `runscope is a read-only browser over run output directories.

Runs are discovered under a primary root (the current out_base_dir) and any
number of legacy roots. When the same run ID exists in more than one root,
the primary copy is authoritative and the others are reported as overlaps.

Configuration is read from ~/.runscope/config.toml, then
.runscope/config.toml in the working directory, then the
RUNSCOPE_PRIMARY_ROOT, RUNSCOPE_LEGACY_ROOTS and RUNSCOPE_LOG_LEVEL
environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&workDir, "workdir", "C", "", "working directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: layered .runscope/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colors")

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("runscope {{.Version}}\n")
}

// getWorkDir returns the effective working directory.
func getWorkDir() (string, error) {
	if workDir != "" {
		return filepath.Abs(workDir)
	}
	return os.Getwd()
}

// loadConfig loads layered configuration, applies environment overrides
// and validates the result. It also returns the directory relative paths
// are resolved against.
func loadConfig() (*config.Config, string, error) {
	dir, err := getWorkDir()
	if err != nil {
		return nil, "", fmt.Errorf("getting working directory: %w", err)
	}

	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFromDir(dir)
	}
	if err != nil {
		return nil, "", err
	}

	cfg.ApplyEnv(os.LookupEnv)
	if verbose {
		cfg.Logging.Level = config.LogLevelDebug
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, dir, nil
}

// openRepository builds the repository for a command. The returned context
// carries the command's logger; the close function releases the log file,
// if any.
func openRepository(cmd *cobra.Command) (*repository.Repository, context.Context, func(), error) {
	cfg, dir, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	logger, closer, err := logging.NewFromConfig(cfg, dir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening log: %w", err)
	}
	cleanup := func() {
		if closer != nil {
			closer.Close()
		}
	}

	repo, err := repository.New(cfg, newHandoff(), logger)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	ctx := logging.IntoContext(commandContext(cmd), logger.With("command", cmd.Name()))
	return repo, ctx, cleanup, nil
}

// commandContext returns the command's context, or a background context
// when the command is invoked directly.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// selectCopy maps a --copy flag value to a selector.
func selectCopy(n int) repository.Selector {
	if n <= 0 {
		return repository.Authoritative
	}
	return repository.Copy(n)
}

// warnUnavailable reports roots that contributed nothing to a listing.
func warnUnavailable(w io.Writer, listing index.Listing) {
	for _, f := range listing.Unavailable {
		fmt.Fprintf(w, "warning: %s root %s unavailable: %s\n", f.Root.Kind, f.Root.Path, f.Reason)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
