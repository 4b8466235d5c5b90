package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/epicflow/epicflow/internal/config"
	"github.com/epicflow/epicflow/internal/conflict"
	"github.com/epicflow/epicflow/internal/worktree"
)

var worktreeCmd = &cobra.Command{
	Use:     "worktree",
	Aliases: []string{"wt"},
	Short:   "Manage git worktrees for parallel epic execution",
}

var worktreeCreateCmd = &cobra.Command{
	Use:   "create <epic-id> <task-name>",
	Short: "Create an isolated worktree with its own feature branch",
	Args:  cobra.ExactArgs(2),
	RunE:  runWorktreeCreate,
}

var worktreeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked worktrees",
	RunE:  runWorktreeList,
}

var worktreeUpdateCmd = &cobra.Command{
	Use:   "update <name> <status>",
	Short: "Update a worktree's lifecycle status",
	Args:  cobra.ExactArgs(2),
	RunE:  runWorktreeUpdate,
}

var worktreeCleanupCmd = &cobra.Command{
	Use:   "cleanup [name]",
	Short: "Remove worktrees and archive their metadata",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWorktreeCleanup,
}

var worktreeSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Force-clean abandoned worktrees past the age threshold",
	RunE:  runWorktreeSweep,
}

var worktreeArchivesCmd = &cobra.Command{
	Use:   "archives",
	Short: "List archived worktree records",
	RunE:  runWorktreeArchives,
}

var worktreeWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch active worktrees for cross-worktree file conflicts",
	RunE:  runWorktreeWatch,
}

var (
	worktreeCreateBase string

	worktreeListEpic   string
	worktreeListStatus string
	worktreeListJSON   bool
	worktreeListVerify bool

	worktreeUpdateAgent    string
	worktreeUpdateError    string
	worktreeUpdateCommits  []string
	worktreeUpdateSubIssue int

	worktreeCleanupEpic          string
	worktreeCleanupAll           bool
	worktreeCleanupForce         bool
	worktreeCleanupDeleteBranch  bool
	worktreeCleanupIncludeActive bool

	worktreeSweepMaxAge int

	worktreeArchivesEpic string
)

func init() {
	rootCmd.AddCommand(worktreeCmd)
	worktreeCmd.AddCommand(worktreeCreateCmd, worktreeListCmd, worktreeUpdateCmd,
		worktreeCleanupCmd, worktreeSweepCmd, worktreeArchivesCmd, worktreeWatchCmd)

	worktreeCreateCmd.Flags().StringVar(&worktreeCreateBase, "base", "", "base branch (default from config)")

	worktreeListCmd.Flags().StringVar(&worktreeListEpic, "epic", "", "filter by epic ID")
	worktreeListCmd.Flags().StringVar(&worktreeListStatus, "status", "", "filter by status")
	worktreeListCmd.Flags().BoolVar(&worktreeListJSON, "json", false, "output JSON")
	worktreeListCmd.Flags().BoolVar(&worktreeListVerify, "verify", false, "cross-check records against git's worktree list")

	worktreeUpdateCmd.Flags().StringVar(&worktreeUpdateAgent, "agent", "", "assigned agent ID")
	worktreeUpdateCmd.Flags().StringVar(&worktreeUpdateError, "error", "", "error details for failed status")
	worktreeUpdateCmd.Flags().StringSliceVar(&worktreeUpdateCommits, "commits", nil, "commit hashes to record")
	worktreeUpdateCmd.Flags().IntVar(&worktreeUpdateSubIssue, "sub-issue", 0, "linked GitHub sub-issue number")

	worktreeCleanupCmd.Flags().StringVar(&worktreeCleanupEpic, "epic", "", "clean all terminal worktrees for an epic")
	worktreeCleanupCmd.Flags().BoolVar(&worktreeCleanupAll, "all", false, "clean all terminal worktrees")
	worktreeCleanupCmd.Flags().BoolVarP(&worktreeCleanupForce, "force", "f", false, "clean non-terminal worktrees too")
	worktreeCleanupCmd.Flags().BoolVar(&worktreeCleanupDeleteBranch, "delete-branch", false, "delete the feature branch")
	worktreeCleanupCmd.Flags().BoolVar(&worktreeCleanupIncludeActive, "include-active", false, "with --all, also clean active worktrees")

	worktreeSweepCmd.Flags().IntVar(&worktreeSweepMaxAge, "max-age-days", 0, "age threshold (default from config)")

	worktreeArchivesCmd.Flags().StringVar(&worktreeArchivesEpic, "epic", "", "filter by epic ID")
}

func runWorktreeCreate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if worktreeCreateBase != "" {
		cfg.Worktree.BaseBranch = worktreeCreateBase
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	mgr, err := newManager(cfg, log)
	if err != nil {
		return err
	}

	meta, err := mgr.Create(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	successf("Created worktree %s", meta.Name)
	fmt.Printf("  path:   %s\n", meta.Path)
	fmt.Printf("  branch: %s\n", meta.Branch)
	return nil
}

func runWorktreeList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	mgr, err := newManager(cfg, nil)
	if err != nil {
		return err
	}

	list, err := mgr.List(worktree.ListFilter{
		EpicID: worktreeListEpic,
		Status: worktree.Status(worktreeListStatus),
	})
	if err != nil {
		return err
	}

	// With --verify, cross-check each record against what git actually
	// has registered; records git no longer knows about are marked stale.
	gitPaths := map[string]bool{}
	if worktreeListVerify {
		gitList, err := mgr.GitWorktrees(cmd.Context())
		if err != nil {
			return err
		}
		for _, gw := range gitList {
			gitPaths[gw.Path] = true
		}
	}

	if worktreeListJSON {
		return printJSON(list)
	}
	if len(list) == 0 {
		fmt.Println(dimStyle.Render("No worktrees tracked."))
		return nil
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-40s %-12s %-10s %s", "NAME", "STATUS", "EPIC", "BRANCH")))
	for _, meta := range list {
		line := fmt.Sprintf("%-40s %-12s %-10s %s", meta.Name, meta.Status, meta.EpicID, meta.Branch)
		if worktreeListVerify && !gitPaths[meta.Path] {
			line += warnStyle.Render("  [stale]")
		}
		fmt.Println(line)
	}
	return nil
}

func runWorktreeUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	mgr, err := newManager(cfg, log)
	if err != nil {
		return err
	}

	var opts []worktree.UpdateOption
	if worktreeUpdateAgent != "" {
		opts = append(opts, worktree.WithAgent(worktreeUpdateAgent))
	}
	if worktreeUpdateError != "" {
		opts = append(opts, worktree.WithError(worktreeUpdateError))
	}
	if len(worktreeUpdateCommits) > 0 {
		opts = append(opts, worktree.WithCommits(worktreeUpdateCommits...))
	}
	if worktreeUpdateSubIssue > 0 {
		opts = append(opts, worktree.WithSubIssue(worktreeUpdateSubIssue))
	}

	meta, err := mgr.UpdateStatus(args[0], worktree.Status(args[1]), opts...)
	if err != nil {
		return err
	}
	successf("%s is now %s", meta.Name, meta.Status)
	return nil
}

func runWorktreeCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	mgr, err := newManager(cfg, log)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	deleteBranch := worktreeCleanupDeleteBranch || cfg.Cleanup.DeleteBranches

	switch {
	case len(args) == 1:
		err := mgr.Cleanup(ctx, args[0], worktree.CleanupOptions{
			DeleteBranch: deleteBranch,
			Force:        worktreeCleanupForce,
		})
		if err != nil {
			return err
		}
		successf("Cleaned up %s", args[0])
		return nil

	case worktreeCleanupEpic != "":
		stats, err := mgr.CleanupEpic(ctx, worktreeCleanupEpic, deleteBranch)
		if err != nil {
			return err
		}
		printCleanupStats(stats)
		return nil

	case worktreeCleanupAll:
		stats, err := mgr.CleanupAll(ctx, worktreeCleanupIncludeActive, deleteBranch)
		if err != nil {
			return err
		}
		printCleanupStats(stats)
		return nil
	}

	return fmt.Errorf("specify a worktree name, --epic, or --all")
}

func printCleanupStats(stats worktree.CleanupStats) {
	if stats.Failed > 0 {
		warnf("Cleaned %d/%d worktrees (%d failed)", stats.Cleaned, stats.Total, stats.Failed)
		return
	}
	successf("Cleaned %d/%d worktrees", stats.Cleaned, stats.Total)
}

func runWorktreeSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	mgr, err := newManager(cfg, log)
	if err != nil {
		return err
	}

	maxAge := worktreeSweepMaxAge
	if maxAge <= 0 {
		maxAge = cfg.Cleanup.MaxAgeDays
	}

	stats, err := mgr.CleanupAbandoned(cmd.Context(), maxAge)
	if err != nil {
		return err
	}
	if stats.Total == 0 {
		fmt.Println(dimStyle.Render("No abandoned worktrees."))
		return nil
	}
	printCleanupStats(stats)
	return nil
}

func runWorktreeArchives(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	mgr, err := newManager(cfg, nil)
	if err != nil {
		return err
	}

	archived, err := mgr.Store().ListArchived()
	if err != nil {
		return err
	}

	var filtered []*worktree.Metadata
	for _, meta := range archived {
		if worktreeArchivesEpic != "" && meta.EpicID != worktreeArchivesEpic {
			continue
		}
		filtered = append(filtered, meta)
	}

	if len(filtered) == 0 {
		fmt.Println(dimStyle.Render("No archived worktrees."))
		return nil
	}
	return printJSON(filtered)
}

func runWorktreeWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	mgr, err := newManager(cfg, log)
	if err != nil {
		return err
	}

	list, err := mgr.List(worktree.ListFilter{})
	if err != nil {
		return err
	}

	detector, err := conflict.NewDetector(log)
	if err != nil {
		return err
	}
	defer detector.Stop()

	watched := 0
	for _, meta := range list {
		if !meta.Status.IsActive() {
			continue
		}
		if err := detector.Watch(meta.Name, meta.Path); err != nil {
			warnf("cannot watch %s: %v", meta.Name, err)
			continue
		}
		watched++
	}
	if watched == 0 {
		fmt.Println(dimStyle.Render("No active worktrees to watch."))
		return nil
	}

	detector.OnConflict(func(conflicts []conflict.FileConflict) {
		for _, c := range conflicts {
			fmt.Println(errorStyle.Render(fmt.Sprintf(
				"CONFLICT %s modified in: %s", c.RelativePath, strings.Join(c.Worktrees, ", "))))
		}
	})
	detector.Start()

	fmt.Printf("Watching %d worktrees for conflicting modifications. Ctrl-C to stop.\n", watched)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return nil
}
