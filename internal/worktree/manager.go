package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/epicflow/epicflow/internal/errors"
	"github.com/epicflow/epicflow/internal/logging"
)

// DefaultWorktreeDir is the worktree root relative to the repository root.
const DefaultWorktreeDir = ".worktrees"

// DefaultBaseBranch is the branch worktrees are created from.
const DefaultBaseBranch = "dev"

// Config holds manager settings.
type Config struct {
	// RepoRoot is the git repository root.
	RepoRoot string
	// WorktreeDir is where worktrees live; relative paths are resolved
	// against RepoRoot. Defaults to ".worktrees".
	WorktreeDir string
	// BaseBranch is the branch new worktrees start from. Defaults to "dev".
	BaseBranch string
}

// Manager creates, tracks, and retires git worktrees for epic tasks.
type Manager struct {
	cfg    Config
	runner Runner
	store  *Store
	log    *logging.Logger
}

// NewManager builds a Manager. A nil runner uses the real git binary.
func NewManager(cfg Config, runner Runner, log *logging.Logger) (*Manager, error) {
	if cfg.RepoRoot == "" {
		root, err := FindGitRoot(".")
		if err != nil {
			return nil, err
		}
		cfg.RepoRoot = root
	}
	if cfg.WorktreeDir == "" {
		cfg.WorktreeDir = DefaultWorktreeDir
	}
	if !filepath.IsAbs(cfg.WorktreeDir) {
		cfg.WorktreeDir = filepath.Join(cfg.RepoRoot, cfg.WorktreeDir)
	}
	if cfg.BaseBranch == "" {
		cfg.BaseBranch = DefaultBaseBranch
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if log == nil {
		log = logging.NopLogger()
	}

	return &Manager{
		cfg:    cfg,
		runner: runner,
		store:  NewStore(cfg.WorktreeDir, log),
		log:    log.WithComponent("worktree"),
	}, nil
}

// Store exposes the metadata store for read-side consumers.
func (m *Manager) Store() *Store {
	return m.store
}

// WorktreeDir returns the resolved worktree root directory.
func (m *Manager) WorktreeDir() string {
	return m.cfg.WorktreeDir
}

// GitWorktrees queries git for the worktrees it has registered, the
// on-disk counterpart to the metadata store's view.
func (m *Manager) GitWorktrees(ctx context.Context) ([]GitWorktree, error) {
	return ListGitWorktrees(ctx, m.runner, m.cfg.RepoRoot)
}

// Create makes an isolated worktree with its own feature branch for an
// epic task. The metadata record is written only after git succeeds, so a
// failed creation leaves no dangling record.
func (m *Manager) Create(ctx context.Context, epicID, taskName string) (*Metadata, error) {
	if err := os.MkdirAll(m.cfg.WorktreeDir, 0755); err != nil {
		return nil, fmt.Errorf("create worktree root: %w", err)
	}

	name, branch := GenerateName(epicID, taskName)
	path := filepath.Join(m.cfg.WorktreeDir, name)
	log := m.log.WithEpic(epicID).With("worktree", name)

	log.Info("creating worktree", "path", path, "branch", branch, "base", m.cfg.BaseBranch)

	out, err := m.runner.Run(ctx, m.cfg.RepoRoot,
		"worktree", "add", path, "-b", branch, m.cfg.BaseBranch)
	if err != nil {
		log.Error("worktree creation failed", "error", err, "output", out)
		var gitErr *errors.GitError
		if errors.As(err, &gitErr) {
			return nil, gitErr.WithBranch(branch)
		}
		return nil, err
	}

	meta := &Metadata{
		Name:       name,
		EpicID:     epicID,
		TaskName:   taskName,
		Path:       path,
		Branch:     branch,
		BaseBranch: m.cfg.BaseBranch,
		Status:     StatusCreated,
		CreatedAt:  time.Now().UTC(),
		Commits:    []string{},
	}
	if err := m.store.Save(meta); err != nil {
		return nil, err
	}

	log.Info("created worktree", "path", path, "branch", branch)
	return meta, nil
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	EpicID string
	Status Status
}

// List returns tracked worktrees matching the filter, newest first.
func (m *Manager) List(filter ListFilter) ([]*Metadata, error) {
	all, err := m.store.List()
	if err != nil {
		return nil, err
	}

	var result []*Metadata
	for _, meta := range all {
		if filter.EpicID != "" && meta.EpicID != filter.EpicID {
			continue
		}
		if filter.Status != "" && meta.Status != filter.Status {
			continue
		}
		result = append(result, meta)
	}
	return result, nil
}

// Get loads metadata for a worktree by name.
func (m *Manager) Get(name string) (*Metadata, error) {
	return m.store.Load(name)
}

// Exists reports whether a worktree is tracked and its directory is
// present on disk.
func (m *Manager) Exists(name string) bool {
	meta, err := m.store.Load(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(meta.Path)
	return err == nil
}

// UpdateOption mutates metadata during a status update.
type UpdateOption func(*Metadata)

// WithAgent records the agent assigned to the worktree.
func WithAgent(agentID string) UpdateOption {
	return func(m *Metadata) { m.AgentID = agentID }
}

// WithError records failure details.
func WithError(message string) UpdateOption {
	return func(m *Metadata) { m.ErrorMessage = message }
}

// WithCommits appends commit hashes created in the worktree.
func WithCommits(hashes ...string) UpdateOption {
	return func(m *Metadata) { m.Commits = append(m.Commits, hashes...) }
}

// WithSubIssue links the GitHub sub-issue tracking this task.
func WithSubIssue(number int) UpdateOption {
	return func(m *Metadata) { m.GitHubSubIssue = number }
}

// UpdateStatus transitions a worktree to a new lifecycle state and
// persists the change. Entering assigned, completed/failed, merged, or
// cleaned stamps the matching timestamp once.
func (m *Manager) UpdateStatus(name string, status Status, opts ...UpdateOption) (*Metadata, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownStatus, status)
	}

	meta, err := m.store.Load(name)
	if err != nil {
		return nil, err
	}

	old := meta.Status
	meta.Status = status

	now := time.Now().UTC()
	switch {
	case status == StatusAssigned && meta.AssignedAt == nil:
		meta.AssignedAt = &now
	case (status == StatusCompleted || status == StatusFailed) && meta.CompletedAt == nil:
		meta.CompletedAt = &now
	case status == StatusMerged && meta.MergedAt == nil:
		meta.MergedAt = &now
	case status == StatusCleaned && meta.CleanedAt == nil:
		meta.CleanedAt = &now
	}

	for _, opt := range opts {
		opt(meta)
	}

	if err := m.store.Save(meta); err != nil {
		return nil, err
	}

	m.log.Info("updated worktree status",
		"worktree", name, "from", string(old), "to", string(status))
	return meta, nil
}
