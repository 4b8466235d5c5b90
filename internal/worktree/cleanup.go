package worktree

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/epicflow/epicflow/internal/errors"
)

// DefaultMaxAgeDays is how long an active worktree may sit untouched
// before the abandoned sweep reclaims it.
const DefaultMaxAgeDays = 7

// CleanupOptions control a single worktree cleanup.
type CleanupOptions struct {
	// DeleteBranch removes the feature branch after the worktree.
	DeleteBranch bool
	// Force cleans worktrees in non-terminal states and tolerates
	// uncommitted changes.
	Force bool
}

// CleanupStats aggregates a bulk cleanup run.
type CleanupStats struct {
	Total   int `json:"total"`
	Cleaned int `json:"cleaned"`
	Failed  int `json:"failed"`
}

// Cleanup removes a worktree, archives its metadata, and deletes the
// active record. Worktrees in non-terminal states are refused unless
// forced. A worktree with no metadata record is not an error: cleanup is
// idempotent.
func (m *Manager) Cleanup(ctx context.Context, name string, opts CleanupOptions) error {
	meta, err := m.store.Load(name)
	if err != nil {
		if errors.IsNotFound(err) {
			m.log.Warn("no metadata for worktree, nothing to clean", "worktree", name)
			return nil
		}
		return err
	}

	if !meta.Status.IsTerminal() && !opts.Force {
		return fmt.Errorf("worktree %s is in state %q: %w", name, meta.Status, errors.ErrNotTerminalState)
	}

	log := m.log.WithEpic(meta.EpicID).With("worktree", name)
	log.Info("cleaning up worktree", "force", opts.Force, "delete_branch", opts.DeleteBranch)

	if _, err := os.Stat(meta.Path); err == nil {
		args := []string{"worktree", "remove", meta.Path}
		if opts.Force {
			args = append(args, "--force")
		}
		if _, err := m.runner.Run(ctx, m.cfg.RepoRoot, args...); err != nil {
			if !opts.Force {
				return err
			}
			// Forced cleanup falls back to removing the directory by hand
			// and letting git prune its bookkeeping.
			log.Warn("git worktree remove failed, removing directory manually", "error", err)
			if rmErr := os.RemoveAll(meta.Path); rmErr != nil {
				return fmt.Errorf("manual worktree removal: %w", rmErr)
			}
			if _, pruneErr := m.runner.Run(ctx, m.cfg.RepoRoot, "worktree", "prune"); pruneErr != nil {
				log.Warn("worktree prune failed", "error", pruneErr)
			}
		}
	} else {
		log.Warn("worktree directory missing", "path", meta.Path)
	}

	if opts.DeleteBranch {
		flag := "-d"
		if opts.Force {
			flag = "-D"
		}
		if _, err := m.runner.Run(ctx, m.cfg.RepoRoot, "branch", flag, meta.Branch); err != nil {
			if !opts.Force {
				return err
			}
			log.Warn("branch deletion failed", "branch", meta.Branch, "error", err)
		}
	}

	now := time.Now().UTC()
	meta.Status = StatusCleaned
	meta.CleanedAt = &now
	if err := m.store.Archive(meta); err != nil {
		return err
	}
	if err := m.store.Delete(name); err != nil {
		return err
	}

	log.Info("cleanup complete")
	return nil
}

// CleanupEpic retires every terminal worktree belonging to an epic.
// Individual failures are counted, not fatal: one stuck worktree must not
// block the rest of the sweep.
func (m *Manager) CleanupEpic(ctx context.Context, epicID string, deleteBranches bool) (CleanupStats, error) {
	all, err := m.List(ListFilter{EpicID: epicID})
	if err != nil {
		return CleanupStats{}, err
	}
	return m.cleanupBatch(ctx, cleanable(all, false), CleanupOptions{DeleteBranch: deleteBranches}), nil
}

// CleanupAll retires worktrees across all epics. With includeActive, even
// in-flight worktrees are forcibly removed.
func (m *Manager) CleanupAll(ctx context.Context, includeActive, deleteBranches bool) (CleanupStats, error) {
	all, err := m.List(ListFilter{})
	if err != nil {
		return CleanupStats{}, err
	}
	return m.cleanupBatch(ctx, cleanable(all, includeActive), CleanupOptions{
		DeleteBranch: deleteBranches,
		Force:        includeActive,
	}), nil
}

// CleanupAbandoned force-removes active worktrees that have seen no
// lifecycle progress for more than maxAgeDays. Branches are deleted: an
// abandoned branch has nothing worth keeping.
func (m *Manager) CleanupAbandoned(ctx context.Context, maxAgeDays int) (CleanupStats, error) {
	if maxAgeDays <= 0 {
		maxAgeDays = DefaultMaxAgeDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -maxAgeDays)

	all, err := m.List(ListFilter{})
	if err != nil {
		return CleanupStats{}, err
	}

	var abandoned []*Metadata
	for _, meta := range all {
		if !meta.Status.IsActive() {
			continue
		}
		if lastActivity(meta).Before(cutoff) {
			abandoned = append(abandoned, meta)
		}
	}

	for _, meta := range abandoned {
		m.log.Warn("worktree abandoned",
			"worktree", meta.Name,
			"status", string(meta.Status),
			"age_days", int(time.Since(meta.CreatedAt).Hours()/24))
	}

	return m.cleanupBatch(ctx, abandoned, CleanupOptions{DeleteBranch: true, Force: true}), nil
}

func (m *Manager) cleanupBatch(ctx context.Context, targets []*Metadata, opts CleanupOptions) CleanupStats {
	stats := CleanupStats{Total: len(targets)}
	for _, meta := range targets {
		if err := m.Cleanup(ctx, meta.Name, opts); err != nil {
			m.log.Error("cleanup failed", "worktree", meta.Name, "error", err)
			stats.Failed++
			continue
		}
		stats.Cleaned++
	}
	m.log.Info("bulk cleanup complete", "total", stats.Total, "cleaned", stats.Cleaned, "failed", stats.Failed)
	return stats
}

// cleanable picks the worktrees a bulk sweep may touch. Already-cleaned
// records have no directory left, so only completed, merged, and failed
// count as terminal targets.
func cleanable(all []*Metadata, includeActive bool) []*Metadata {
	if includeActive {
		return all
	}
	var result []*Metadata
	for _, meta := range all {
		switch meta.Status {
		case StatusCompleted, StatusMerged, StatusFailed:
			result = append(result, meta)
		}
	}
	return result
}

// lastActivity is the most recent lifecycle timestamp on the record.
func lastActivity(m *Metadata) time.Time {
	if m.CompletedAt != nil {
		return *m.CompletedAt
	}
	if m.AssignedAt != nil {
		return *m.AssignedAt
	}
	return m.CreatedAt
}
