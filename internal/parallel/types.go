// Package parallel analyzes an epic's file-task document to decide whether
// its implementation can be split across concurrent worktrees. The decision
// is a pure function of the declared file set: enough files, enough distinct
// domains, and low enough overlap between domains.
package parallel

// Default viability thresholds.
const (
	DefaultMinFiles   = 5
	DefaultMinDomains = 2
	DefaultMaxOverlap = 30.0
)

// Recommendation values emitted in a Plan.
const (
	RecommendParallel   = "parallel"
	RecommendSequential = "sequential"
)

// Options control the viability thresholds and file filtering.
type Options struct {
	// MinFiles is the minimum file count for parallel execution.
	MinFiles int
	// MinDomains is the minimum number of non-"other" domains.
	MinDomains int
	// MaxOverlap is the maximum allowed file overlap percentage.
	MaxOverlap float64
	// ExcludePatterns are glob patterns; matching files are dropped during
	// extraction (e.g. "vendor/**", "*.lock").
	ExcludePatterns []string
	// RulesFile optionally points to a YAML file overriding the built-in
	// domain classification rules.
	RulesFile string
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{
		MinFiles:   DefaultMinFiles,
		MinDomains: DefaultMinDomains,
		MaxOverlap: DefaultMaxOverlap,
	}
}

// Task is one domain's slice of a parallel execution plan.
type Task struct {
	Files           []string `json:"files"`
	TaskDescription string   `json:"task_description"`
}

// Plan is the result of a viability analysis. It is serialized as JSON for
// downstream workflow tooling; field names are part of that contract.
type Plan struct {
	Viable                bool                `json:"viable"`
	Reason                string              `json:"reason"`
	FileCount             int                 `json:"file_count"`
	DomainCount           int                 `json:"domain_count"`
	Domains               map[string][]string `json:"domains"`
	FileOverlapPercentage float64             `json:"file_overlap_percentage"`
	Recommendation        string              `json:"recommendation"`
	// ParallelPlan maps domain to its task; nil when not viable.
	ParallelPlan map[string]*Task `json:"parallel_plan"`
}
