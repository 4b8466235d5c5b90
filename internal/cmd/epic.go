package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/epicflow/epicflow/internal/config"
	"github.com/epicflow/epicflow/internal/epic"
	"github.com/epicflow/epicflow/internal/worktree"
)

var epicCmd = &cobra.Command{
	Use:   "epic",
	Short: "Manage the epic registry",
}

var epicInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the epic registry for this project",
	RunE:  runEpicInit,
}

var epicAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new epic",
	RunE:  runEpicAdd,
}

var epicListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered epics",
	RunE:  runEpicList,
}

var epicStatusCmd = &cobra.Command{
	Use:   "status <epic-id> <status>",
	Short: "Update an epic's lifecycle status",
	Args:  cobra.ExactArgs(2),
	RunE:  runEpicStatus,
}

var epicNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the next epic to implement",
	RunE:  runEpicNext,
}

var epicOrderCmd = &cobra.Command{
	Use:   "order",
	Short: "Print epics in dependency-respecting order",
	RunE:  runEpicOrder,
}

var epicCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the dependency graph for cycles",
	RunE:  runEpicCheck,
}

var epicGitHubCmd = &cobra.Command{
	Use:   "github <epic-id> <issue-number>",
	Short: "Link an epic to its GitHub issue",
	Args:  cobra.ExactArgs(2),
	RunE:  runEpicGitHub,
}

var (
	epicInitProject string
	epicInitRepo    string

	epicAddTitle          string
	epicAddTags           []string
	epicAddBlockedBy      []string
	epicAddBlocks         []string
	epicAddIntegratesWith []string

	epicListStatus string
	epicListJSON   bool

	epicGitHubURL string
)

func init() {
	rootCmd.AddCommand(epicCmd)
	epicCmd.AddCommand(epicInitCmd, epicAddCmd, epicListCmd, epicStatusCmd, epicNextCmd, epicOrderCmd, epicCheckCmd, epicGitHubCmd)

	epicInitCmd.Flags().StringVar(&epicInitProject, "project", "", "project name (default: repository directory name)")
	epicInitCmd.Flags().StringVar(&epicInitRepo, "github-repo", "", "GitHub repository slug (owner/repo)")

	epicAddCmd.Flags().StringVar(&epicAddTitle, "title", "", "epic title (required)")
	epicAddCmd.Flags().StringSliceVar(&epicAddTags, "tags", nil, "tags, including an optional priority (critical|high|medium|low)")
	epicAddCmd.Flags().StringSliceVar(&epicAddBlockedBy, "blocked-by", nil, "epic IDs that must be implemented first")
	epicAddCmd.Flags().StringSliceVar(&epicAddBlocks, "blocks", nil, "epic IDs this epic blocks")
	epicAddCmd.Flags().StringSliceVar(&epicAddIntegratesWith, "integrates-with", nil, "epic IDs this epic integrates with")
	_ = epicAddCmd.MarkFlagRequired("title")

	epicListCmd.Flags().StringVar(&epicListStatus, "status", "", "filter by status")
	epicListCmd.Flags().BoolVar(&epicListJSON, "json", false, "output JSON")

	epicGitHubCmd.Flags().StringVar(&epicGitHubURL, "url", "", "issue URL")
}

func runEpicInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	path := registryPath(cfg)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("registry already exists at %s", path)
	}

	project := epicInitProject
	if project == "" {
		project = cfg.Registry.ProjectName
	}
	if project == "" {
		if root, err := worktree.FindGitRoot("."); err == nil {
			project = filepath.Base(root)
		}
	}
	repo := epicInitRepo
	if repo == "" {
		repo = cfg.Registry.GitHubRepo
	}

	if _, err := epic.Create(project, path, repo, log); err != nil {
		return err
	}
	successf("Initialized epic registry at %s", path)
	return nil
}

func runEpicAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	reg, err := loadRegistry(cfg, log)
	if err != nil {
		return err
	}

	slug := worktree.SanitizeName(epicAddTitle)
	id := reg.GenerateEpicID()
	e := &epic.Epic{
		ID:          id,
		Number:      reg.NextEpicNumber(),
		Title:       epicAddTitle,
		Slug:        slug,
		Status:      epic.StatusDefined,
		CreatedDate: time.Now().UTC().Format("2006-01-02"),
		Directory:   filepath.Join(".tasks", "epics", id+"-"+slug),
		Tags:        append([]string{}, epicAddTags...),
		Dependencies: epic.Dependencies{
			Blocks:         append([]string{}, epicAddBlocks...),
			BlockedBy:      append([]string{}, epicAddBlockedBy...),
			IntegratesWith: append([]string{}, epicAddIntegratesWith...),
		},
	}

	if err := reg.AddEpic(e); err != nil {
		return err
	}
	if cycle := reg.FindCycle(); cycle != nil {
		return fmt.Errorf("adding %s would create a dependency cycle: %s", id, strings.Join(cycle, " -> "))
	}
	if err := reg.Save(); err != nil {
		return err
	}

	successf("Added %s: %s", id, epicAddTitle)
	return nil
}

func runEpicList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	reg, err := loadRegistry(cfg, nil)
	if err != nil {
		return err
	}

	epics := reg.Data.Epics
	if epicListStatus != "" {
		epics = reg.EpicsByStatus(epic.Status(epicListStatus))
	}

	if epicListJSON {
		return printJSON(epics)
	}

	if len(epics) == 0 {
		fmt.Println(dimStyle.Render("No epics registered."))
		return nil
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-10s %-12s %-10s %s", "ID", "STATUS", "CREATED", "TITLE")))
	for _, e := range epics {
		line := fmt.Sprintf("%-10s %-12s %-10s %s", e.ID, e.Status, e.CreatedDate, e.Title)
		if reg.IsBlocked(e.ID) {
			line += warnStyle.Render("  [blocked]")
		}
		fmt.Println(line)
	}

	s := reg.Data.Statistics
	fmt.Println(dimStyle.Render(fmt.Sprintf(
		"%d epics: %d defined, %d prepared, %d ready, %d implemented, %d archived",
		s.TotalEpics, s.Defined, s.Prepared, s.Ready, s.Implemented, s.Archived)))
	return nil
}

func runEpicStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	reg, err := loadRegistry(cfg, log)
	if err != nil {
		return err
	}

	if err := reg.UpdateStatus(args[0], epic.Status(args[1])); err != nil {
		return err
	}
	if err := reg.Save(); err != nil {
		return err
	}

	successf("%s is now %s", args[0], args[1])
	return nil
}

func runEpicNext(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	reg, err := loadRegistry(cfg, nil)
	if err != nil {
		return err
	}

	next := reg.SelectNext()
	if next == nil {
		var blockedReady []*epic.Epic
		for _, e := range reg.BlockedEpics() {
			if e.Status == epic.StatusReady {
				blockedReady = append(blockedReady, e)
			}
		}
		if len(blockedReady) > 0 {
			warnf("No epic is ready: %d ready epics are blocked.", len(blockedReady))
			for _, e := range blockedReady {
				fmt.Printf("  %s blocked by %s\n", e.ID, strings.Join(e.Dependencies.BlockedBy, ", "))
			}
			return nil
		}
		fmt.Println(dimStyle.Render("No ready epics."))
		return nil
	}

	fmt.Printf("%s  %s\n", headerStyle.Render(next.ID), next.Title)
	if len(next.Tags) > 0 {
		fmt.Println(dimStyle.Render("tags: " + strings.Join(next.Tags, ", ")))
	}
	return nil
}

func runEpicOrder(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	reg, err := loadRegistry(cfg, nil)
	if err != nil {
		return err
	}

	order, err := reg.TopologicalSort()
	if err != nil {
		if cycle := reg.FindCycle(); cycle != nil {
			return fmt.Errorf("dependency cycle: %s", strings.Join(cycle, " -> "))
		}
		return err
	}

	for i, id := range order {
		e := reg.Get(id)
		fmt.Printf("%2d. %-10s %-12s %s\n", i+1, id, e.Status, e.Title)
	}
	return nil
}

func runEpicGitHub(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	reg, err := loadRegistry(cfg, log)
	if err != nil {
		return err
	}

	number, err := strconv.Atoi(args[1])
	if err != nil || number <= 0 {
		return fmt.Errorf("invalid issue number %q", args[1])
	}

	if err := reg.UpdateGitHub(args[0], number, epicGitHubURL); err != nil {
		return err
	}
	if err := reg.Save(); err != nil {
		return err
	}

	successf("Linked %s to issue #%d", args[0], number)
	return nil
}

func runEpicCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	reg, err := loadRegistry(cfg, nil)
	if err != nil {
		return err
	}

	if cycle := reg.FindCycle(); cycle != nil {
		fmt.Println(errorStyle.Render("Dependency cycle: " + strings.Join(cycle, " -> ")))
		os.Exit(1)
	}

	successf("Dependency graph is acyclic (%d epics).", len(reg.Data.Epics))
	return nil
}
