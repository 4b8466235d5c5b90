package epic

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/epicflow/epicflow/internal/errors"
	"github.com/epicflow/epicflow/internal/flock"
	"github.com/epicflow/epicflow/internal/logging"
)

// DefaultRegistryFile is the registry path relative to the project root.
const DefaultRegistryFile = ".tasks/epic_registry.json"

// Registry manages project-level epic tracking. It is the sole mutator of
// epic status and number fields: callers must go through its operations
// rather than editing epics directly and expecting persistence.
//
// Usage:
//
//	reg, err := epic.Load(path, logger)
//	e := reg.Get("EPIC-001")
//	err = reg.UpdateStatus("EPIC-001", epic.StatusImplemented)
//	err = reg.Save()
type Registry struct {
	Data *RegistryData

	path string
	log  *logging.Logger
}

// Load reads a registry document from disk. Returns ErrRegistryNotFound
// if the file does not exist.
func Load(path string, log *logging.Logger) (*Registry, error) {
	if log == nil {
		log = logging.NopLogger()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("registry", path)
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var data RegistryData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	if data.Epics == nil {
		data.Epics = []*Epic{}
	}

	return &Registry{Data: &data, path: path, log: log.WithComponent("registry")}, nil
}

// Create initializes a new registry document at path and persists it.
func Create(projectName, path, githubRepo string, log *logging.Logger) (*Registry, error) {
	if log == nil {
		log = logging.NopLogger()
	}
	now := time.Now().UTC().Format(time.RFC3339)

	data := &RegistryData{
		SchemaVersion:  SchemaVersion,
		ProjectName:    projectName,
		MasterSpecPath: ".tasks/master_spec.md",
		Created:        now,
		LastUpdated:    now,
		GitHubRepo:     githubRepo,
		NextEpicNumber: 1,
		Epics:          []*Epic{},
	}

	reg := &Registry{Data: data, path: path, log: log.WithComponent("registry")}
	if err := reg.Save(); err != nil {
		return nil, err
	}
	return reg, nil
}

// Path returns the registry document path.
func (r *Registry) Path() string {
	return r.path
}

// Save persists the registry. Statistics are recomputed and last_updated
// is stamped before writing. The write is atomic: data goes to a temporary
// file first, then is renamed into place, with an advisory flock held for
// cross-process safety.
func (r *Registry) Save() error {
	r.recalculateStatistics()
	r.Data.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(r.Data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}

	fl := flock.New(r.path + ".lock")
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquire registry lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}

	r.log.Debug("registry saved", "path", r.path, "epics", len(r.Data.Epics))
	return nil
}

// recalculateStatistics rebuilds the per-status counts from the epic list.
func (r *Registry) recalculateStatistics() {
	var stats Statistics
	stats.TotalEpics = len(r.Data.Epics)

	for _, e := range r.Data.Epics {
		switch e.Status {
		case StatusDefined:
			stats.Defined++
		case StatusPrepared:
			stats.Prepared++
		case StatusReady:
			stats.Ready++
		case StatusImplemented:
			stats.Implemented++
		case StatusArchived:
			stats.Archived++
		}
	}

	r.Data.Statistics = stats
}

// AddEpic registers a new epic. The epic's ID must be unique and its
// number must equal the registry's next_epic_number counter; the counter
// is advanced on success.
func (r *Registry) AddEpic(e *Epic) error {
	if r.Get(e.ID) != nil {
		return errors.NewValidationError(
			fmt.Sprintf("epic %s already exists in registry", e.ID),
			errors.ErrEpicExists,
		)
	}
	if e.Number != r.Data.NextEpicNumber {
		return errors.NewValidationError(
			fmt.Sprintf("epic number mismatch: expected %d, got %d", r.Data.NextEpicNumber, e.Number),
			errors.ErrEpicNumberMismatch,
		)
	}

	r.Data.Epics = append(r.Data.Epics, e)
	r.Data.NextEpicNumber++
	r.log.Info("added epic", "epic_id", e.ID, "number", e.Number)
	return nil
}

// Get returns the epic with the given ID, or nil if not registered.
func (r *Registry) Get(epicID string) *Epic {
	for _, e := range r.Data.Epics {
		if e.ID == epicID {
			return e
		}
	}
	return nil
}

// UpdateStatus moves an epic to the given status. Entering prepared or
// implemented stamps the corresponding date field once; an existing stamp
// is never overwritten.
func (r *Registry) UpdateStatus(epicID string, status Status) error {
	e := r.Get(epicID)
	if e == nil {
		return errors.NewNotFoundError("epic", epicID)
	}
	if !status.IsValid() {
		return errors.NewValidationError(fmt.Sprintf("invalid epic status %q", status), nil).WithField("status")
	}

	oldStatus := e.Status
	e.Status = status

	today := time.Now().UTC().Format("2006-01-02")
	switch {
	case status == StatusPrepared && e.PreparedDate == "":
		e.PreparedDate = today
	case status == StatusImplemented && e.ImplementedDate == "":
		e.ImplementedDate = today
	}

	r.log.Info("updated epic status", "epic_id", epicID, "from", string(oldStatus), "to", string(status))
	return nil
}

// UpdateGitHub records the GitHub issue linked to an epic.
func (r *Registry) UpdateGitHub(epicID string, issueNumber int, issueURL string) error {
	e := r.Get(epicID)
	if e == nil {
		return errors.NewNotFoundError("epic", epicID)
	}

	e.GitHubIssue = issueNumber
	e.GitHubURL = issueURL
	r.log.Info("updated epic github issue", "epic_id", epicID, "issue", issueNumber)
	return nil
}

// EpicsByStatus returns all epics with the given status.
func (r *Registry) EpicsByStatus(status Status) []*Epic {
	var result []*Epic
	for _, e := range r.Data.Epics {
		if e.Status == status {
			result = append(result, e)
		}
	}
	return result
}

// NextEpicNumber returns the number the next registered epic must carry.
func (r *Registry) NextEpicNumber() int {
	return r.Data.NextEpicNumber
}

// GenerateEpicID returns the ID for the next epic, e.g. "EPIC-004".
func (r *Registry) GenerateEpicID() string {
	return fmt.Sprintf("EPIC-%03d", r.Data.NextEpicNumber)
}
