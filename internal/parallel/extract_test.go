package parallel

import (
	"testing"
)

func TestExtractFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "backtick list items",
			content: "- `src/api/routes.py` - API routes\n- `src/models/user.py` - User model\n",
			want:    []string{"src/api/routes.py", "src/models/user.py"},
		},
		{
			name:    "bare list items",
			content: "- src/api/routes.py\n- docs/guide.md\n",
			want:    []string{"docs/guide.md", "src/api/routes.py"},
		},
		{
			name:    "headers",
			content: "### src/backend/service.py\n\nSome body text.\n\n## tests/test_service.py\n",
			want:    []string{"src/backend/service.py", "tests/test_service.py"},
		},
		{
			name:    "bold mentions",
			content: "Modify **src/api/routes.py** and **frontend/App.tsx** together.\n",
			want:    []string{"frontend/App.tsx", "src/api/routes.py"},
		},
		{
			name:    "code block paths",
			content: "```python\n# src/services/auth.py\nimport os\n```\n",
			want:    []string{"src/services/auth.py"},
		},
		{
			name:    "code block skips method calls",
			content: "```\nclient.get.call()\nsrc/api/client.py\n```\n",
			want:    []string{"src/api/client.py"},
		},
		{
			name:    "deduplicates across patterns",
			content: "### src/api/routes.py\n- `src/api/routes.py` - routes\n**src/api/routes.py**\n",
			want:    []string{"src/api/routes.py"},
		},
		{
			name:    "dotfiles and short names are dropped",
			content: "- .gitignore\n- a.b\n- src/ok/file.py\n",
			want:    []string{"src/ok/file.py"},
		},
		{
			name:    "no files",
			content: "Just prose with no file mentions.\n",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractFiles(tt.content, nil)
			if !equalStrings(got, tt.want) {
				t.Errorf("ExtractFiles() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractFilesSorted(t *testing.T) {
	content := "- `z/last.py` - z\n- `a/first.py` - a\n- `m/middle.py` - m\n"
	got := ExtractFiles(content, nil)
	want := []string{"a/first.py", "m/middle.py", "z/last.py"}
	if !equalStrings(got, want) {
		t.Errorf("ExtractFiles() = %v, want sorted %v", got, want)
	}
}

func TestExtractFilesExcludes(t *testing.T) {
	content := "- `vendor/lib/dep.py` - vendored\n- `src/api/routes.py` - ours\n- `poetry.lock` - lockfile\n"

	excludes, err := CompileExcludes([]string{"vendor/**", "*.lock"})
	if err != nil {
		t.Fatalf("CompileExcludes() error = %v", err)
	}

	got := ExtractFiles(content, excludes)
	want := []string{"src/api/routes.py"}
	if !equalStrings(got, want) {
		t.Errorf("ExtractFiles() = %v, want %v", got, want)
	}
}

func TestCompileExcludesInvalid(t *testing.T) {
	if _, err := CompileExcludes([]string{"[unclosed"}); err == nil {
		t.Error("CompileExcludes() accepted an invalid pattern")
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
