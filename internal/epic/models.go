// Package epic implements the epic registry: a versioned, file-backed store
// of epics with dependency edges, plus the graph algorithms and selection
// policy used to decide which epic is implemented next.
package epic

// Status is an epic lifecycle state.
type Status string

const (
	// StatusDefined means the epic spec exists but has not been prepared.
	StatusDefined Status = "defined"
	// StatusPrepared means the epic's task breakdown exists.
	StatusPrepared Status = "prepared"
	// StatusReady means the epic passed preflight checks and can be selected.
	StatusReady Status = "ready"
	// StatusImplemented means the epic's workflow executed successfully.
	StatusImplemented Status = "implemented"
	// StatusArchived means the epic was deprecated or cancelled.
	StatusArchived Status = "archived"
)

// ValidStatuses returns all epic lifecycle states.
func ValidStatuses() []Status {
	return []Status{StatusDefined, StatusPrepared, StatusReady, StatusImplemented, StatusArchived}
}

// IsValid reports whether s is a known lifecycle state.
func (s Status) IsValid() bool {
	switch s {
	case StatusDefined, StatusPrepared, StatusReady, StatusImplemented, StatusArchived:
		return true
	}
	return false
}

// Dependencies holds an epic's relationships to other epics.
type Dependencies struct {
	// Blocks lists epic IDs this epic blocks.
	Blocks []string `json:"blocks"`
	// BlockedBy lists epic IDs that must be implemented before this epic.
	BlockedBy []string `json:"blocked_by"`
	// IntegratesWith lists epic IDs this epic integrates with.
	IntegratesWith []string `json:"integrates_with"`
}

// Epic is a trackable unit of work with a lifecycle status and dependency
// edges to other epics.
type Epic struct {
	// ID is the unique, stable epic identifier (e.g. "EPIC-001").
	ID string `json:"epic_id"`
	// Number is the sequential epic number assigned at registration.
	Number int    `json:"epic_number"`
	Title  string `json:"title"`
	// Slug is the URL-safe slug used for the epic's directory name.
	Slug   string `json:"slug"`
	Status Status `json:"status"`

	// Dates are YYYY-MM-DD strings. PreparedDate and ImplementedDate are
	// stamped once on the corresponding status transition and never
	// overwritten.
	CreatedDate     string `json:"created_date"`
	PreparedDate    string `json:"prepared_date,omitempty"`
	ImplementedDate string `json:"implemented_date,omitempty"`

	// Directory is the relative path to the epic's storage directory.
	Directory string `json:"directory"`

	// GitHub issue linkage; carried as data, synced by an external collaborator.
	GitHubIssue int    `json:"github_issue,omitempty"`
	GitHubURL   string `json:"github_url,omitempty"`

	// Execution stats recorded after implementation.
	ExecutionMode string `json:"execution_mode,omitempty"` // "sequential" or "parallel"
	FilesCreated  int    `json:"files_created,omitempty"`
	FilesModified int    `json:"files_modified,omitempty"`

	// Knowledge capture.
	PostMortem       string `json:"post_mortem,omitempty"`
	IntegrationNotes string `json:"integration_notes,omitempty"`

	// Tags categorize the epic; priority tags (critical/high/medium/low)
	// drive selection order.
	Tags         []string     `json:"tags"`
	Dependencies Dependencies `json:"dependencies"`
}

// Statistics holds per-status epic counts. It is recomputed on every save
// and never trusted as externally mutable.
type Statistics struct {
	TotalEpics  int `json:"total_epics"`
	Defined     int `json:"defined"`
	Prepared    int `json:"prepared"`
	Ready       int `json:"ready"`
	Implemented int `json:"implemented"`
	Archived    int `json:"archived"`
}

// Coverage tracks how much of the master specification is covered by epics.
type Coverage struct {
	TotalRequirements     int      `json:"total_requirements"`
	CoveredByEpics        int      `json:"covered_by_epics"`
	CoveragePercentage    float64  `json:"coverage_percentage"`
	UncoveredRequirements []string `json:"uncovered_requirements"`
}

// SchemaVersion is the registry document schema version.
const SchemaVersion = "2.0"

// RegistryData is the root registry document persisted as a single
// versioned JSON file per project.
type RegistryData struct {
	SchemaVersion  string     `json:"schema_version"`
	ProjectName    string     `json:"project_name"`
	MasterSpecPath string     `json:"master_spec_path"`
	Created        string     `json:"created"`      // ISO 8601
	LastUpdated    string     `json:"last_updated"` // ISO 8601
	GitHubRepo     string     `json:"github_repo,omitempty"`
	NextEpicNumber int        `json:"next_epic_number"`
	Statistics     Statistics `json:"statistics"`
	Epics          []*Epic    `json:"epics"`
	Coverage       *Coverage  `json:"master_spec_coverage,omitempty"`
}
