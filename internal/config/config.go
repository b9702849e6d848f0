package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	rerrors "github.com/meow-stack/runscope/internal/errors"
)

// Environment variables that override file configuration.
const (
	EnvPrimaryRoot = "RUNSCOPE_PRIMARY_ROOT"
	EnvLegacyRoots = "RUNSCOPE_LEGACY_ROOTS"
	EnvLogLevel    = "RUNSCOPE_LOG_LEVEL"
)

// DirName is the per-project and per-user configuration directory.
const DirName = ".runscope"

// LogLevel specifies the logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat specifies the log output format.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// RootsConfig names the storage roots runs are discovered under.
type RootsConfig struct {
	// Primary is the current output directory (out_base_dir). Required.
	Primary string `toml:"primary"`

	// Legacy roots in precedence order. A legacy root that has been pruned
	// from disk is not an error.
	Legacy []string `toml:"legacy"`
}

// RepositoryConfig holds resolution-layer tuning.
type RepositoryConfig struct {
	// RootTimeout bounds every filesystem access against a single root.
	RootTimeout time.Duration `toml:"root_timeout"`

	// IORetryDelay is the pause before the single retry of a failed
	// listing or stat read.
	IORetryDelay time.Duration `toml:"io_retry_delay"`

	// HashWorkers bounds concurrent content hashing during diffs.
	HashWorkers int `toml:"hash_workers"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  LogLevel  `toml:"level"`
	Format LogFormat `toml:"format"`
	File   string    `toml:"file"`
}

// Config is the main configuration struct for runscope.
type Config struct {
	Version    string           `toml:"version"`
	Roots      RootsConfig      `toml:"roots"`
	Repository RepositoryConfig `toml:"repository"`
	Logging    LoggingConfig    `toml:"logging"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Version: "1",
		Repository: RepositoryConfig{
			RootTimeout:  2 * time.Second,
			IORetryDelay: 50 * time.Millisecond,
			HashWorkers:  4,
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
			File:   "",
		},
	}
}

// Load loads configuration from file, merging with defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if no config file
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from the standard locations in a directory.
// Applies in order: defaults -> ~/.runscope/config.toml -> .runscope/config.toml
// Later configs override earlier ones (project-level takes precedence).
func LoadFromDir(dir string) (*Config, error) {
	cfg := Default()

	home, err := os.UserHomeDir()
	if err == nil {
		globalConfig := filepath.Join(home, DirName, "config.toml")
		if data, err := os.ReadFile(globalConfig); err == nil {
			if _, err := toml.Decode(string(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing global config: %w", err)
			}
		}
	}

	projectConfig := filepath.Join(dir, DirName, "config.toml")
	if data, err := os.ReadFile(projectConfig); err == nil {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing project config: %w", err)
		}
	}

	return cfg, nil
}

// ApplyEnv overlays environment overrides onto the configuration.
// lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvPrimaryRoot); ok && strings.TrimSpace(v) != "" {
		c.Roots.Primary = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLegacyRoots); ok && strings.TrimSpace(v) != "" {
		var legacy []string
		for _, p := range filepath.SplitList(v) {
			if p = strings.TrimSpace(p); p != "" {
				legacy = append(legacy, p)
			}
		}
		c.Roots.Legacy = legacy
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		c.Logging.Level = LogLevel(strings.ToLower(strings.TrimSpace(v)))
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Version == "" {
		return rerrors.ConfigMissingField("version")
	}
	if c.PrimaryRoot() == "" {
		return rerrors.ConfigMissingField("roots.primary")
	}
	if !filepath.IsAbs(c.PrimaryRoot()) {
		return rerrors.ConfigInvalidValue("roots.primary", c.Roots.Primary, "must be an absolute path")
	}
	for i, p := range c.LegacyRoots() {
		if !filepath.IsAbs(p) {
			return rerrors.ConfigInvalidValue("roots.legacy", p, "must be an absolute path").
				WithDetail("index", i)
		}
	}
	if c.Repository.RootTimeout <= 0 {
		return rerrors.ConfigInvalidValue("repository.root_timeout", c.Repository.RootTimeout, "must be positive")
	}
	if c.Repository.IORetryDelay < 0 {
		return rerrors.ConfigInvalidValue("repository.io_retry_delay", c.Repository.IORetryDelay, "must not be negative")
	}
	if c.Repository.HashWorkers <= 0 {
		return rerrors.ConfigInvalidValue("repository.hash_workers", c.Repository.HashWorkers, "must be positive")
	}
	switch c.Logging.Level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, "":
	default:
		return rerrors.ConfigInvalidValue("logging.level", c.Logging.Level, "must be debug, info, warn or error")
	}
	switch c.Logging.Format {
	case LogFormatJSON, LogFormatText, "":
	default:
		return rerrors.ConfigInvalidValue("logging.format", c.Logging.Format, "must be json or text")
	}
	return nil
}

// PrimaryRoot returns the primary root path. Roots are taken verbatim from
// files and the environment alike; Validate requires them to be absolute.
func (c *Config) PrimaryRoot() string {
	return strings.TrimSpace(c.Roots.Primary)
}

// LegacyRoots returns the non-blank legacy root paths in order.
func (c *Config) LegacyRoots() []string {
	out := make([]string, 0, len(c.Roots.Legacy))
	for _, p := range c.Roots.Legacy {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LogFile returns the absolute log file path, or "" if file logging is off.
func (c *Config) LogFile(baseDir string) string {
	if c.Logging.File == "" {
		return ""
	}
	if filepath.IsAbs(c.Logging.File) {
		return c.Logging.File
	}
	return filepath.Join(baseDir, c.Logging.File)
}
