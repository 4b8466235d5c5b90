package parallel

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/gobwas/glob"

	"github.com/epicflow/epicflow/internal/logging"
)

// Analyzer decides parallel viability for file-task documents.
// Construct with NewAnalyzer; the zero value is not usable.
type Analyzer struct {
	opts     Options
	rules    []Rule
	excludes []glob.Glob
	log      *logging.Logger
}

// NewAnalyzer builds an Analyzer from options. Exclude patterns are
// compiled up front and a custom rules file, if configured, replaces the
// built-in domain rules.
func NewAnalyzer(opts Options, log *logging.Logger) (*Analyzer, error) {
	if log == nil {
		log = logging.NopLogger()
	}

	excludes, err := CompileExcludes(opts.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("compile exclude patterns: %w", err)
	}

	rules := DefaultRules()
	if opts.RulesFile != "" {
		rules, err = LoadRules(opts.RulesFile)
		if err != nil {
			return nil, err
		}
	}

	return &Analyzer{
		opts:     opts,
		rules:    rules,
		excludes: excludes,
		log:      log.WithComponent("analyzer"),
	}, nil
}

// Classify assigns a file to the first matching domain, or DomainOther.
func (a *Analyzer) Classify(file string) string {
	for _, rule := range a.rules {
		for _, p := range rule.Patterns {
			if p.MatchString(file) {
				return rule.Domain
			}
		}
	}
	return DomainOther
}

// ClassifyFiles buckets files by domain.
func (a *Analyzer) ClassifyFiles(files []string) map[string][]string {
	domains := make(map[string][]string)
	for _, f := range files {
		d := a.Classify(f)
		domains[d] = append(domains[d], f)
	}
	return domains
}

// overlapPercentage is the share of files whose path matches more than one
// domain's rules. Classification assigns each file a single domain, so this
// is a heuristic for shared infrastructure: a file matching both backend
// and tests patterns is likely touched by both parallel tasks.
func (a *Analyzer) overlapPercentage(files []string) float64 {
	if len(files) == 0 {
		return 0.0
	}

	shared := 0
	for _, f := range files {
		matching := 0
		for _, rule := range a.rules {
			for _, p := range rule.Patterns {
				if p.MatchString(f) {
					matching++
					break
				}
			}
		}
		if matching > 1 {
			shared++
		}
	}

	pct := float64(shared) / float64(len(files)) * 100
	return math.Round(pct*10) / 10
}

var taskDescriptions = map[string]string{
	"backend":   "Backend API implementation",
	"frontend":  "Frontend UI implementation",
	"database":  "Database schema and migrations",
	"tests":     "Test suite implementation",
	"docs":      "Documentation updates",
	DomainOther: "Additional implementation tasks",
}

func describeTask(domain string, fileCount int) string {
	desc, ok := taskDescriptions[domain]
	if !ok {
		desc = "Implementation tasks"
	}
	plural := "s"
	if fileCount == 1 {
		plural = ""
	}
	return fmt.Sprintf("%s (%d file%s)", desc, fileCount, plural)
}

// Analyze reads the file-task document at path and returns the viability
// plan. Errors degrade to a non-viable sequential plan rather than failing:
// a missing or unparseable document simply means parallel execution cannot
// be justified.
func (a *Analyzer) Analyze(path string) *Plan {
	raw, err := os.ReadFile(path)
	if err != nil {
		reason := fmt.Sprintf("Error reading file tasks: %v", err)
		if os.IsNotExist(err) {
			reason = fmt.Sprintf("File not found: %s", path)
		}
		a.log.Warn("analysis degraded to sequential", "path", path, "error", err)
		return &Plan{
			Viable:         false,
			Reason:         reason,
			Domains:        map[string][]string{},
			Recommendation: RecommendSequential,
		}
	}

	return a.AnalyzeContent(string(raw))
}

// AnalyzeContent runs the viability analysis on an in-memory document.
func (a *Analyzer) AnalyzeContent(content string) *Plan {
	files := ExtractFiles(content, a.excludes)
	domains := a.ClassifyFiles(files)

	// The "other" bucket holds unclassifiable files; it cannot be handed to
	// a parallel task and does not count toward the domain minimum.
	analysisDomains := make(map[string][]string, len(domains))
	for d, fs := range domains {
		if d != DomainOther {
			analysisDomains[d] = fs
		}
	}

	fileCount := len(files)
	domainCount := len(analysisDomains)
	overlap := a.overlapPercentage(files)

	var failed []string
	if fileCount < a.opts.MinFiles {
		failed = append(failed, fmt.Sprintf("too few files (%d < %d)", fileCount, a.opts.MinFiles))
	}
	if domainCount < a.opts.MinDomains {
		failed = append(failed, fmt.Sprintf("too few domains (%d < %d)", domainCount, a.opts.MinDomains))
	}
	if overlap > a.opts.MaxOverlap {
		failed = append(failed, fmt.Sprintf("high overlap (%.1f%% > %.1f%%)", overlap, a.opts.MaxOverlap))
	}
	viable := len(failed) == 0

	plan := &Plan{
		Viable:                viable,
		FileCount:             fileCount,
		DomainCount:           domainCount,
		Domains:               domains,
		FileOverlapPercentage: overlap,
		Recommendation:        RecommendSequential,
	}

	if viable {
		plan.Reason = fmt.Sprintf("%d files across %d domains with %.1f%% overlap",
			fileCount, domainCount, overlap)
		plan.Recommendation = RecommendParallel
		plan.ParallelPlan = make(map[string]*Task, len(analysisDomains))
		for domain, domainFiles := range analysisDomains {
			plan.ParallelPlan[domain] = &Task{
				Files:           domainFiles,
				TaskDescription: describeTask(domain, len(domainFiles)),
			}
		}
	} else {
		plan.Reason = "Not viable: " + strings.Join(failed, ", ")
	}

	a.log.Info("viability analysis complete",
		"viable", viable,
		"files", fileCount,
		"domains", domainCount,
		"overlap_pct", overlap,
		"recommendation", plan.Recommendation)
	return plan
}
