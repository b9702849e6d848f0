package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var configJSON bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after layering files and environment overrides.
Root paths must be absolute; a relative root from any source is rejected.
The log file path is shown resolved against the working directory.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&configJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(configCmd)
}

// effectiveConfig is the printable view of a loaded configuration.
type effectiveConfig struct {
	WorkDir      string   `json:"workdir"`
	PrimaryRoot  string   `json:"primary_root"`
	LegacyRoots  []string `json:"legacy_roots"`
	RootTimeout  string   `json:"root_timeout"`
	IORetryDelay string   `json:"io_retry_delay"`
	HashWorkers  int      `json:"hash_workers"`
	LogLevel     string   `json:"log_level"`
	LogFormat    string   `json:"log_format"`
	LogFile      string   `json:"log_file,omitempty"`
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, dir, err := loadConfig()
	if err != nil {
		return err
	}

	view := effectiveConfig{
		WorkDir:      dir,
		PrimaryRoot:  cfg.PrimaryRoot(),
		LegacyRoots:  cfg.LegacyRoots(),
		RootTimeout:  cfg.Repository.RootTimeout.String(),
		IORetryDelay: cfg.Repository.IORetryDelay.String(),
		HashWorkers:  cfg.Repository.HashWorkers,
		LogLevel:     string(cfg.Logging.Level),
		LogFormat:    string(cfg.Logging.Format),
		LogFile:      cfg.LogFile(dir),
	}

	if configJSON {
		return writeJSON(cmd.OutOrStdout(), view)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "workdir\t%s\n", view.WorkDir)
	fmt.Fprintf(w, "roots.primary\t%s\n", view.PrimaryRoot)
	for i, p := range view.LegacyRoots {
		fmt.Fprintf(w, "roots.legacy[%d]\t%s\n", i, p)
	}
	fmt.Fprintf(w, "repository.root_timeout\t%s\n", view.RootTimeout)
	fmt.Fprintf(w, "repository.io_retry_delay\t%s\n", view.IORetryDelay)
	fmt.Fprintf(w, "repository.hash_workers\t%d\n", view.HashWorkers)
	fmt.Fprintf(w, "logging.level\t%s\n", view.LogLevel)
	fmt.Fprintf(w, "logging.format\t%s\n", view.LogFormat)
	if view.LogFile != "" {
		fmt.Fprintf(w, "logging.file\t%s\n", view.LogFile)
	}
	return w.Flush()
}
