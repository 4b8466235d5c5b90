// Package config defines the epicflow configuration, loaded via viper
// from config files, environment variables, and flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/epicflow/epicflow/internal/logging"
	"github.com/epicflow/epicflow/internal/parallel"
	"github.com/epicflow/epicflow/internal/worktree"
)

// Config represents the complete epicflow configuration.
type Config struct {
	Registry RegistryConfig `mapstructure:"registry"`
	Worktree WorktreeConfig `mapstructure:"worktree"`
	Parallel ParallelConfig `mapstructure:"parallel"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// RegistryConfig controls where the epic registry lives.
type RegistryConfig struct {
	// Path is the registry document path, relative to the project root.
	Path string `mapstructure:"path"`
	// ProjectName seeds new registries created by `epic init`.
	ProjectName string `mapstructure:"project_name"`
	// GitHubRepo is the "owner/repo" slug for issue linkage.
	GitHubRepo string `mapstructure:"github_repo"`
}

// WorktreeConfig controls worktree placement and branching.
type WorktreeConfig struct {
	// Dir is where worktrees are created (default: ".worktrees").
	Dir string `mapstructure:"dir"`
	// BaseBranch is the branch new worktrees start from (default: "dev").
	BaseBranch string `mapstructure:"base_branch"`
}

// ParallelConfig controls the viability analyzer thresholds.
type ParallelConfig struct {
	// MinFiles is the minimum file count for parallel execution.
	MinFiles int `mapstructure:"min_files"`
	// MinDomains is the minimum number of distinct domains.
	MinDomains int `mapstructure:"min_domains"`
	// MaxOverlap is the maximum file overlap percentage.
	MaxOverlap float64 `mapstructure:"max_overlap"`
	// RulesFile optionally replaces the built-in domain rules (YAML).
	RulesFile string `mapstructure:"rules_file"`
	// ExcludePatterns drops matching files from analysis (glob syntax).
	ExcludePatterns []string `mapstructure:"exclude_patterns"`
}

// CleanupConfig controls worktree retirement.
type CleanupConfig struct {
	// MaxAgeDays is the abandoned-worktree threshold for `worktree sweep`.
	MaxAgeDays int `mapstructure:"max_age_days"`
	// DeleteBranches deletes feature branches during bulk cleanup.
	DeleteBranches bool `mapstructure:"delete_branches"`
}

// LoggingConfig controls the structured log output.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level"`
	// Dir is the log directory; empty logs to stderr.
	Dir string `mapstructure:"dir"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Registry: RegistryConfig{
			Path: ".tasks/epic_registry.json",
		},
		Worktree: WorktreeConfig{
			Dir:        worktree.DefaultWorktreeDir,
			BaseBranch: worktree.DefaultBaseBranch,
		},
		Parallel: ParallelConfig{
			MinFiles:        parallel.DefaultMinFiles,
			MinDomains:      parallel.DefaultMinDomains,
			MaxOverlap:      parallel.DefaultMaxOverlap,
			ExcludePatterns: []string{},
		},
		Cleanup: CleanupConfig{
			MaxAgeDays:     worktree.DefaultMaxAgeDays,
			DeleteBranches: false,
		},
		Logging: LoggingConfig{
			Level: logging.LevelInfo,
			Dir:   "",
		},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("registry.path", defaults.Registry.Path)
	viper.SetDefault("registry.project_name", defaults.Registry.ProjectName)
	viper.SetDefault("registry.github_repo", defaults.Registry.GitHubRepo)

	viper.SetDefault("worktree.dir", defaults.Worktree.Dir)
	viper.SetDefault("worktree.base_branch", defaults.Worktree.BaseBranch)

	viper.SetDefault("parallel.min_files", defaults.Parallel.MinFiles)
	viper.SetDefault("parallel.min_domains", defaults.Parallel.MinDomains)
	viper.SetDefault("parallel.max_overlap", defaults.Parallel.MaxOverlap)
	viper.SetDefault("parallel.rules_file", defaults.Parallel.RulesFile)
	viper.SetDefault("parallel.exclude_patterns", defaults.Parallel.ExcludePatterns)

	viper.SetDefault("cleanup.max_age_days", defaults.Cleanup.MaxAgeDays)
	viper.SetDefault("cleanup.delete_branches", defaults.Cleanup.DeleteBranches)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// Validate checks the configuration for inconsistencies. All problems are
// returned, not just the first.
func (c *Config) Validate() []error {
	var errs []error

	if c.Parallel.MinFiles < 1 {
		errs = append(errs, fmt.Errorf("parallel.min_files must be at least 1, got %d", c.Parallel.MinFiles))
	}
	if c.Parallel.MinDomains < 1 {
		errs = append(errs, fmt.Errorf("parallel.min_domains must be at least 1, got %d", c.Parallel.MinDomains))
	}
	if c.Parallel.MaxOverlap < 0 || c.Parallel.MaxOverlap > 100 {
		errs = append(errs, fmt.Errorf("parallel.max_overlap must be between 0 and 100, got %v", c.Parallel.MaxOverlap))
	}
	if c.Cleanup.MaxAgeDays < 1 {
		errs = append(errs, fmt.Errorf("cleanup.max_age_days must be at least 1, got %d", c.Cleanup.MaxAgeDays))
	}

	level := strings.ToUpper(c.Logging.Level)
	valid := false
	for _, l := range logging.ValidLevels() {
		if level == l {
			valid = true
			break
		}
	}
	if !valid {
		errs = append(errs, fmt.Errorf("logging.level must be one of %v, got %q", logging.ValidLevels(), c.Logging.Level))
	}

	return errs
}

// ValidationErrors aggregates config validation failures.
type ValidationErrors []error

func (v ValidationErrors) Error() string {
	if len(v) == 1 {
		return "invalid configuration: " + v[0].Error()
	}
	msgs := make([]string, len(v))
	for i, err := range v {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid configuration (%d problems): %s", len(v), strings.Join(msgs, "; "))
}

// AnalyzerOptions converts the parallel section into analyzer options.
func (c *Config) AnalyzerOptions() parallel.Options {
	return parallel.Options{
		MinFiles:        c.Parallel.MinFiles,
		MinDomains:      c.Parallel.MinDomains,
		MaxOverlap:      c.Parallel.MaxOverlap,
		RulesFile:       c.Parallel.RulesFile,
		ExcludePatterns: c.Parallel.ExcludePatterns,
	}
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "epicflow")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".epicflow"
	}
	return filepath.Join(home, ".config", "epicflow")
}

// ConfigFile returns the path to the user config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
