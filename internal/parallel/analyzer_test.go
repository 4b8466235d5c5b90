package parallel

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/epicflow/epicflow/internal/logging"
)

func newTestAnalyzer(t *testing.T, opts Options) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(opts, logging.NopLogger())
	if err != nil {
		t.Fatalf("NewAnalyzer() error = %v", err)
	}
	return a
}

func taskDoc(files ...string) string {
	var b strings.Builder
	b.WriteString("# File Tasks\n\n")
	for _, f := range files {
		b.WriteString("- `" + f + "` - implementation\n")
	}
	return b.String()
}

func TestClassify(t *testing.T) {
	a := newTestAnalyzer(t, DefaultOptions())

	tests := []struct {
		file string
		want string
	}{
		{"src/backend/auth.py", "backend"},
		{"api/routes.py", "backend"},
		{"user.service.py", "backend"},
		{"src/components/App.tsx", "frontend"},
		{"pages/index.vue", "frontend"},
		{"widget.jsx", "frontend"},
		{"migrations/001_init.sql", "database"},
		{"schemas/user.json", "database"},
		{"tests/test_auth.py", "tests"},
		{"auth_test.py", "tests"},
		{"docs/guide.md", "docs"},
		{"README.md", "docs"},
		{"scripts/build.sh", "other"},
		{"Makefile.in", "other"},
		// Precedence: earlier domains win for multi-matching paths.
		{"src/api/client.spec.ts", "backend"},
		{"tests/app.test.ts", "frontend"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			if got := a.Classify(tt.file); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.file, got, tt.want)
			}
		})
	}
}

func TestAnalyzeViable(t *testing.T) {
	a := newTestAnalyzer(t, DefaultOptions())
	plan := a.AnalyzeContent(taskDoc(
		"src/api/routes.py",
		"src/api/models.py",
		"src/components/App.tsx",
		"src/components/Nav.tsx",
		"migrations/001_init.sql",
	))

	if !plan.Viable {
		t.Fatalf("plan not viable: %s", plan.Reason)
	}
	if plan.Recommendation != RecommendParallel {
		t.Errorf("Recommendation = %q, want %q", plan.Recommendation, RecommendParallel)
	}
	if plan.FileCount != 5 || plan.DomainCount != 3 {
		t.Errorf("counts = (%d files, %d domains), want (5, 3)", plan.FileCount, plan.DomainCount)
	}
	if plan.FileOverlapPercentage != 0.0 {
		t.Errorf("overlap = %v, want 0.0", plan.FileOverlapPercentage)
	}
	if plan.Reason != "5 files across 3 domains with 0.0% overlap" {
		t.Errorf("Reason = %q", plan.Reason)
	}

	backend := plan.ParallelPlan["backend"]
	if backend == nil {
		t.Fatal("parallel plan missing backend task")
	}
	if backend.TaskDescription != "Backend API implementation (2 files)" {
		t.Errorf("backend description = %q", backend.TaskDescription)
	}
	if len(backend.Files) != 2 {
		t.Errorf("backend files = %v", backend.Files)
	}
	if _, ok := plan.ParallelPlan[DomainOther]; ok {
		t.Error("other bucket must not get a parallel task")
	}
}

func TestAnalyzeNotViable(t *testing.T) {
	a := newTestAnalyzer(t, DefaultOptions())

	t.Run("too few files", func(t *testing.T) {
		plan := a.AnalyzeContent(taskDoc("src/api/a.py", "docs/b.md"))
		if plan.Viable {
			t.Fatal("plan unexpectedly viable")
		}
		if !strings.Contains(plan.Reason, "too few files (2 < 5)") {
			t.Errorf("Reason = %q", plan.Reason)
		}
		if plan.Recommendation != RecommendSequential {
			t.Errorf("Recommendation = %q", plan.Recommendation)
		}
		if plan.ParallelPlan != nil {
			t.Error("non-viable plan must not carry parallel tasks")
		}
	})

	t.Run("single domain", func(t *testing.T) {
		plan := a.AnalyzeContent(taskDoc(
			"src/api/a.py", "src/api/b.py", "src/api/c.py", "src/api/d.py", "src/api/e.py",
		))
		if plan.Viable {
			t.Fatal("plan unexpectedly viable")
		}
		if !strings.Contains(plan.Reason, "too few domains (1 < 2)") {
			t.Errorf("Reason = %q", plan.Reason)
		}
	})

	t.Run("high overlap", func(t *testing.T) {
		// The two .test.ts files match both frontend and tests patterns:
		// 2 of 5 files shared = 40% overlap.
		plan := a.AnalyzeContent(taskDoc(
			"tests/app.test.ts",
			"tests/nav.test.ts",
			"src/api/routes.py",
			"src/api/users.py",
			"migrations/init.sql",
		))
		if plan.Viable {
			t.Fatal("plan unexpectedly viable")
		}
		if plan.FileOverlapPercentage != 40.0 {
			t.Errorf("overlap = %v, want 40.0", plan.FileOverlapPercentage)
		}
		if !strings.Contains(plan.Reason, "high overlap (40.0% > 30.0%)") {
			t.Errorf("Reason = %q", plan.Reason)
		}
	})

	t.Run("multiple failures listed", func(t *testing.T) {
		plan := a.AnalyzeContent(taskDoc("src/api/a.py"))
		if !strings.Contains(plan.Reason, "too few files") || !strings.Contains(plan.Reason, "too few domains") {
			t.Errorf("Reason = %q, want both criteria", plan.Reason)
		}
	})
}

func TestAnalyzeOverlapBoundary(t *testing.T) {
	// Exactly at the threshold (3 of 10 files shared = 30.0%) is viable:
	// only strictly greater overlap fails.
	files := []string{
		"tests/a.test.ts",
		"tests/b.test.ts",
		"tests/c.test.ts",
	}
	for _, f := range []string{"f1", "f2", "f3", "f4", "f5", "f6", "f7"} {
		files = append(files, "src/api/"+f+".py")
	}

	a := newTestAnalyzer(t, DefaultOptions())
	plan := a.AnalyzeContent(taskDoc(files...))
	if plan.FileOverlapPercentage != 30.0 {
		t.Fatalf("overlap = %v, want 30.0", plan.FileOverlapPercentage)
	}
	if !plan.Viable {
		t.Errorf("plan at overlap boundary not viable: %s", plan.Reason)
	}
}

func TestAnalyzeMissingFile(t *testing.T) {
	a := newTestAnalyzer(t, DefaultOptions())
	plan := a.Analyze(filepath.Join(t.TempDir(), "missing", "file-tasks.md"))

	if plan.Viable {
		t.Fatal("missing file produced a viable plan")
	}
	if !strings.HasPrefix(plan.Reason, "File not found:") {
		t.Errorf("Reason = %q", plan.Reason)
	}
	if plan.Recommendation != RecommendSequential {
		t.Errorf("Recommendation = %q", plan.Recommendation)
	}
	if plan.FileCount != 0 || plan.DomainCount != 0 {
		t.Errorf("counts = (%d, %d), want zeros", plan.FileCount, plan.DomainCount)
	}
}

func TestAnalyzeEmptyDocument(t *testing.T) {
	a := newTestAnalyzer(t, DefaultOptions())
	plan := a.AnalyzeContent("no file mentions here\n")
	if plan.Viable {
		t.Fatal("empty document produced a viable plan")
	}
	if plan.FileOverlapPercentage != 0.0 {
		t.Errorf("overlap = %v, want 0.0 for empty set", plan.FileOverlapPercentage)
	}
}

func TestCustomThresholds(t *testing.T) {
	opts := DefaultOptions()
	opts.MinFiles = 2
	opts.MinDomains = 2

	a := newTestAnalyzer(t, opts)
	plan := a.AnalyzeContent(taskDoc("src/api/a.py", "docs/b.md"))
	if !plan.Viable {
		t.Errorf("plan with relaxed thresholds not viable: %s", plan.Reason)
	}
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	yamlDoc := `- domain: golang
  patterns:
    - "\\.go$"
    - "^cmd/"
- domain: proto
  patterns:
    - "\\.proto$"
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0644); err != nil {
		t.Fatal(err)
	}

	opts := DefaultOptions()
	opts.RulesFile = path
	a := newTestAnalyzer(t, opts)

	if got := a.Classify("internal/epic/registry.go"); got != "golang" {
		t.Errorf("Classify(.go) = %q, want golang", got)
	}
	if got := a.Classify("api/service.proto"); got != "proto" {
		t.Errorf("Classify(.proto) = %q, want proto", got)
	}
	// Built-in rules are fully replaced.
	if got := a.Classify("docs/guide.md"); got != DomainOther {
		t.Errorf("Classify(.md) = %q, want other", got)
	}
}

func TestLoadRulesErrors(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) string {
		t.Helper()
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "absent.yaml")},
		{"empty rules", write("empty.yaml", "[]\n")},
		{"reserved domain", write("reserved.yaml", "- domain: other\n  patterns: [\"x\"]\n")},
		{"bad pattern", write("badre.yaml", "- domain: x\n  patterns: [\"[unclosed\"]\n")},
		{"bad yaml", write("bad.yaml", "{not yaml")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadRules(tt.path); err == nil {
				t.Error("LoadRules() succeeded, want error")
			}
		})
	}
}
