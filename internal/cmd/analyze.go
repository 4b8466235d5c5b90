package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/epicflow/epicflow/internal/config"
	"github.com/epicflow/epicflow/internal/parallel"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file-tasks.md>",
	Short: "Analyze a file-task document for parallel execution viability",
	Long: `Analyze extracts the files an epic will create or modify from its
task document, classifies them into domains, and decides whether the
work can be split across parallel worktrees.

The plan is written to stdout as JSON. The exit code is 0 when parallel
execution is viable and 1 when sequential execution is recommended, so
the result can gate workflow steps directly.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().Int("min-files", parallel.DefaultMinFiles, "minimum files for parallel execution")
	analyzeCmd.Flags().Int("min-domains", parallel.DefaultMinDomains, "minimum distinct domains")
	analyzeCmd.Flags().Float64("max-overlap", parallel.DefaultMaxOverlap, "maximum file overlap percentage")
	analyzeCmd.Flags().String("rules", "", "YAML file replacing the built-in domain rules")
	analyzeCmd.Flags().StringSlice("exclude", nil, "glob patterns for files to ignore")

	_ = viper.BindPFlag("parallel.min_files", analyzeCmd.Flags().Lookup("min-files"))
	_ = viper.BindPFlag("parallel.min_domains", analyzeCmd.Flags().Lookup("min-domains"))
	_ = viper.BindPFlag("parallel.max_overlap", analyzeCmd.Flags().Lookup("max-overlap"))
	_ = viper.BindPFlag("parallel.rules_file", analyzeCmd.Flags().Lookup("rules"))
	_ = viper.BindPFlag("parallel.exclude_patterns", analyzeCmd.Flags().Lookup("exclude"))
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	analyzer, err := parallel.NewAnalyzer(cfg.AnalyzerOptions(), log)
	if err != nil {
		return err
	}

	plan := analyzer.Analyze(args[0])
	if err := printJSON(plan); err != nil {
		return err
	}

	if !plan.Viable {
		_ = log.Close()
		os.Exit(1)
	}
	return nil
}
