package conflict

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/epicflow/epicflow/internal/logging"
	"github.com/epicflow/epicflow/internal/parallel"
)

// FileClaim records a worktree's ownership of a file path.
type FileClaim struct {
	Path      string    `json:"path"`
	Worktree  string    `json:"worktree"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// ClaimRegistry tracks advisory file ownership across parallel worktrees.
// Tasks claim their plan files before execution; a claim held elsewhere
// means the plan's domain split was wrong and the overlap surfaces before
// any work is lost.
//
// All methods are safe for concurrent use.
type ClaimRegistry struct {
	mu     sync.RWMutex
	claims map[string]FileClaim // path -> claim
	log    *logging.Logger
}

// NewClaimRegistry creates an empty registry.
func NewClaimRegistry(log *logging.Logger) *ClaimRegistry {
	if log == nil {
		log = logging.NopLogger()
	}
	return &ClaimRegistry{
		claims: make(map[string]FileClaim),
		log:    log.WithComponent("claims"),
	}
}

// Claim asserts ownership of a path. Claiming a path you already own is a
// no-op; a path owned by another worktree is an error.
func (r *ClaimRegistry) Claim(worktreeName, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.claims[path]; ok {
		if existing.Worktree == worktreeName {
			return nil
		}
		return fmt.Errorf("file %s already claimed by worktree %s", path, existing.Worktree)
	}

	r.claims[path] = FileClaim{
		Path:      path,
		Worktree:  worktreeName,
		ClaimedAt: time.Now().UTC(),
	}
	r.log.Debug("claimed file", "worktree", worktreeName, "path", path)
	return nil
}

// ClaimPlan claims every file of each task in a parallel plan for its
// worktree. On any collision nothing is claimed: a plan either fits
// entirely or is rejected.
func (r *ClaimRegistry) ClaimPlan(plan *parallel.Plan, worktreeByDomain map[string]string) error {
	if plan == nil || plan.ParallelPlan == nil {
		return fmt.Errorf("no parallel plan to claim")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Validate before mutating.
	for domain, task := range plan.ParallelPlan {
		worktreeName, ok := worktreeByDomain[domain]
		if !ok {
			return fmt.Errorf("no worktree assigned for domain %s", domain)
		}
		for _, f := range task.Files {
			if existing, held := r.claims[f]; held && existing.Worktree != worktreeName {
				return fmt.Errorf("file %s already claimed by worktree %s", f, existing.Worktree)
			}
		}
	}

	now := time.Now().UTC()
	total := 0
	for domain, task := range plan.ParallelPlan {
		worktreeName := worktreeByDomain[domain]
		for _, f := range task.Files {
			r.claims[f] = FileClaim{Path: f, Worktree: worktreeName, ClaimedAt: now}
			total++
		}
	}

	r.log.Info("claimed plan files", "files", total, "domains", len(plan.ParallelPlan))
	return nil
}

// Owner returns the worktree holding a path, if any.
func (r *ClaimRegistry) Owner(path string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	claim, ok := r.claims[path]
	if !ok {
		return "", false
	}
	return claim.Worktree, true
}

// Release drops a claim. Only the owner may release it.
func (r *ClaimRegistry) Release(worktreeName, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	claim, ok := r.claims[path]
	if !ok {
		return nil
	}
	if claim.Worktree != worktreeName {
		return fmt.Errorf("file %s is claimed by worktree %s, not %s", path, claim.Worktree, worktreeName)
	}

	delete(r.claims, path)
	r.log.Debug("released file", "worktree", worktreeName, "path", path)
	return nil
}

// ReleaseAll drops every claim held by a worktree, typically on cleanup.
func (r *ClaimRegistry) ReleaseAll(worktreeName string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	released := 0
	for path, claim := range r.claims {
		if claim.Worktree == worktreeName {
			delete(r.claims, path)
			released++
		}
	}

	if released > 0 {
		r.log.Info("released all claims", "worktree", worktreeName, "count", released)
	}
	return released
}

// ClaimsBy returns the paths held by a worktree, sorted.
func (r *ClaimRegistry) ClaimsBy(worktreeName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var paths []string
	for path, claim := range r.claims {
		if claim.Worktree == worktreeName {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

// Len returns the total number of active claims.
func (r *ClaimRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.claims)
}
