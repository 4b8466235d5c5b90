package worktree

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/epicflow/epicflow/internal/errors"
)

// Runner executes git commands. The manager and cleanup operations go
// through this interface so tests can substitute a fake without touching a
// real repository.
type Runner interface {
	// Run executes git with the given arguments in dir and returns the
	// combined output.
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// ExecRunner runs git via os/exec.
type ExecRunner struct{}

// Run executes the git command and returns combined stdout/stderr. A
// non-zero exit is returned as a GitError carrying the output.
func (ExecRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		return output, errors.NewGitError("git "+strings.Join(args, " "), err).
			WithPath(dir).
			WithOutput(output)
	}
	return output, nil
}

// GitWorktree is one entry from `git worktree list --porcelain`.
type GitWorktree struct {
	Path   string
	Branch string
	Commit string
}

// ListGitWorktrees queries git directly for all registered worktrees.
// This is the source of truth for what actually exists on disk, as
// opposed to the metadata store's view.
func ListGitWorktrees(ctx context.Context, runner Runner, repoRoot string) ([]GitWorktree, error) {
	out, err := runner.Run(ctx, repoRoot, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parsePorcelain(out), nil
}

func parsePorcelain(out string) []GitWorktree {
	var worktrees []GitWorktree
	var current *GitWorktree

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "worktree "):
			if current != nil {
				worktrees = append(worktrees, *current)
			}
			current = &GitWorktree{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "branch "):
			if current != nil {
				current.Branch = strings.TrimPrefix(line, "branch ")
			}
		case strings.HasPrefix(line, "HEAD "):
			if current != nil {
				current.Commit = strings.TrimPrefix(line, "HEAD ")
			}
		}
	}
	if current != nil {
		worktrees = append(worktrees, *current)
	}
	return worktrees
}

// FindGitRoot walks up from dir looking for a .git entry. Returns
// ErrNotGitRepository if none is found.
func FindGitRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(abs, ".git")); err == nil {
			return abs, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", errors.ErrNotGitRepository
		}
		abs = parent
	}
}
