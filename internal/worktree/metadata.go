// Package worktree manages the lifecycle of git worktrees used for
// parallel epic execution: creation with isolated feature branches,
// metadata tracking, status transitions, and cleanup with archival.
package worktree

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/epicflow/epicflow/internal/errors"
	"github.com/epicflow/epicflow/internal/flock"
	"github.com/epicflow/epicflow/internal/logging"
)

// Status is a worktree lifecycle state.
type Status string

const (
	StatusCreated    Status = "created"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusMerged     Status = "merged"
	StatusCleaned    Status = "cleaned"
	// StatusConflict marks a worktree whose branch could not be merged.
	StatusConflict Status = "conflict"
)

// ValidStatuses returns all worktree lifecycle states.
func ValidStatuses() []Status {
	return []Status{
		StatusCreated, StatusAssigned, StatusInProgress,
		StatusCompleted, StatusFailed, StatusMerged,
		StatusCleaned, StatusConflict,
	}
}

// IsValid reports whether s is a known lifecycle state.
func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusAssigned, StatusInProgress,
		StatusCompleted, StatusFailed, StatusMerged,
		StatusCleaned, StatusConflict:
		return true
	}
	return false
}

// IsTerminal reports whether a worktree in this state may be cleaned up
// without forcing.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusMerged, StatusFailed, StatusCleaned:
		return true
	}
	return false
}

// IsActive reports whether the worktree may still have an agent working
// in it.
func (s Status) IsActive() bool {
	switch s {
	case StatusCreated, StatusAssigned, StatusInProgress:
		return true
	}
	return false
}

// Metadata tracks a worktree from creation through cleanup. It is
// persisted as one JSON file per worktree under the metadata directory.
type Metadata struct {
	// Name is the unique worktree identifier, e.g. "EPIC-007-api-a3f2b1c4".
	Name     string `json:"name"`
	EpicID   string `json:"epic_id"`
	TaskName string `json:"task_name"`
	// Path is the absolute worktree directory.
	Path       string `json:"path"`
	Branch     string `json:"branch"`
	BaseBranch string `json:"base_branch"`
	AgentID    string `json:"agent_id,omitempty"`
	Status     Status `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	MergedAt    *time.Time `json:"merged_at,omitempty"`
	CleanedAt   *time.Time `json:"cleaned_at,omitempty"`

	GitHubSubIssue int `json:"github_sub_issue,omitempty"`

	// Commits lists hashes created in the worktree, recorded by the
	// executing agent.
	Commits []string `json:"commits"`
	// ErrorMessage holds failure details when Status is failed.
	ErrorMessage string `json:"error_message,omitempty"`
}

// Store persists worktree metadata as JSON files under
// {root}/.metadata, with archived snapshots in {root}/.metadata/archived.
type Store struct {
	root string
	log  *logging.Logger
}

// NewStore creates a metadata store rooted at the worktree directory.
func NewStore(root string, log *logging.Logger) *Store {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Store{root: root, log: log.WithComponent("worktree")}
}

func (s *Store) metadataDir() string {
	return filepath.Join(s.root, ".metadata")
}

func (s *Store) archiveDir() string {
	return filepath.Join(s.metadataDir(), "archived")
}

func (s *Store) metadataPath(name string) string {
	return filepath.Join(s.metadataDir(), name+".json")
}

// Save writes metadata atomically: temp file plus rename, guarded by an
// advisory lock so concurrent orchestration processes cannot interleave
// partial writes.
func (s *Store) Save(m *Metadata) error {
	if err := os.MkdirAll(s.metadataDir(), 0755); err != nil {
		return fmt.Errorf("create metadata directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	path := s.metadataPath(m.Name)
	fl := flock.New(path + ".lock")
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquire metadata lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}

	s.log.Debug("saved metadata", "name", m.Name, "status", string(m.Status))
	return nil
}

// Load reads metadata for a worktree. Returns ErrWorktreeNotFound if no
// record exists.
func (s *Store) Load(name string) (*Metadata, error) {
	return s.loadFile(s.metadataPath(name))
}

func (s *Store) loadFile(path string) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("worktree", strings.TrimSuffix(filepath.Base(path), ".json"))
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", path, err)
	}
	return &m, nil
}

// Delete removes the active metadata record and the lock file Save left
// beside it. Missing records are not an error: cleanup must be idempotent.
func (s *Store) Delete(name string) error {
	path := s.metadataPath(name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove metadata: %w", err)
	}
	if err := os.Remove(path + ".lock"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove metadata lock: %w", err)
	}
	return nil
}

// List loads all metadata records, newest first. Unreadable records are
// skipped with a warning so one corrupt file cannot hide the rest.
func (s *Store) List() ([]*Metadata, error) {
	entries, err := os.ReadDir(s.metadataDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read metadata directory: %w", err)
	}

	var result []*Metadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		m, err := s.loadFile(filepath.Join(s.metadataDir(), entry.Name()))
		if err != nil {
			s.log.Warn("skipping unreadable metadata", "file", entry.Name(), "error", err)
			continue
		}
		result = append(result, m)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Archive snapshots metadata into the archive directory with a timestamped
// filename, preserving the historical record after cleanup.
func (s *Store) Archive(m *Metadata) error {
	if err := os.MkdirAll(s.archiveDir(), 0755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	path := filepath.Join(s.archiveDir(), fmt.Sprintf("%s-%s.json", m.Name, stamp))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}

	s.log.Info("archived metadata", "name", m.Name, "archive", filepath.Base(path))
	return nil
}

// ListArchived loads archived records, most recently retired first.
func (s *Store) ListArchived() ([]*Metadata, error) {
	entries, err := os.ReadDir(s.archiveDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read archive directory: %w", err)
	}

	var result []*Metadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		m, err := s.loadFile(filepath.Join(s.archiveDir(), entry.Name()))
		if err != nil {
			s.log.Warn("skipping unreadable archive", "file", entry.Name(), "error", err)
			continue
		}
		result = append(result, m)
	}

	sort.Slice(result, func(i, j int) bool {
		return retiredAt(result[i]).After(retiredAt(result[j]))
	})
	return result, nil
}

// retiredAt picks the most meaningful timestamp for archive ordering.
func retiredAt(m *Metadata) time.Time {
	if m.CleanedAt != nil {
		return *m.CleanedAt
	}
	if m.CompletedAt != nil {
		return *m.CompletedAt
	}
	return m.CreatedAt
}
