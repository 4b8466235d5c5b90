package parallel

import (
	"regexp"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Extraction patterns for file-task documents. Each targets one markdown
// convention used to mention a file:
//
//  1. "- `path/to/file.py` - Description"
//  2. "- path/to/file.py"
//  3. fenced code blocks containing paths
//  4. headers like "### src/backend/service.py"
//  5. bold mentions like "**src/api/routes.py**"
var (
	backtickItemPattern = regexp.MustCompile("-\\s+`([^`]+)`\\s*-")
	bareItemPattern     = regexp.MustCompile("-\\s+([^\\s`]+\\.[a-zA-Z0-9]+)")
	codeBlockPattern    = regexp.MustCompile("```[a-z]*\\n([^`]+)```")
	codeBlockFile       = regexp.MustCompile(`([a-zA-Z0-9_\-./]+\.[a-zA-Z0-9]+)`)
	headerPattern       = regexp.MustCompile("(?m)^#{1,4}\\s+([^\\s`#]+\\.[a-zA-Z0-9]+)")
	boldPattern         = regexp.MustCompile(`\*\*([^\s*]+\.[a-zA-Z0-9]+)\*\*`)
)

// ExtractFiles pulls the set of file paths mentioned in a file-task
// document. The result is deduplicated and sorted so the downstream
// analysis is deterministic regardless of mention order. Files matching
// any exclude glob are dropped.
func ExtractFiles(content string, excludes []glob.Glob) []string {
	found := make(map[string]struct{})

	for _, m := range backtickItemPattern.FindAllStringSubmatch(content, -1) {
		found[m[1]] = struct{}{}
	}
	for _, m := range bareItemPattern.FindAllStringSubmatch(content, -1) {
		found[m[1]] = struct{}{}
	}
	for _, block := range codeBlockPattern.FindAllStringSubmatch(content, -1) {
		for _, m := range codeBlockFile.FindAllStringSubmatch(block[1], -1) {
			// A path inside a code block needs a directory separator or a
			// single dot; this drops method calls like "client.get()".
			candidate := m[1]
			if strings.Contains(candidate, "/") || strings.Count(candidate, ".") == 1 {
				found[candidate] = struct{}{}
			}
		}
	}
	for _, m := range headerPattern.FindAllStringSubmatch(content, -1) {
		found[m[1]] = struct{}{}
	}
	for _, m := range boldPattern.FindAllStringSubmatch(content, -1) {
		found[m[1]] = struct{}{}
	}

	var files []string
	for f := range found {
		f = strings.TrimSpace(f)
		if len(f) <= 3 || !strings.Contains(f, ".") || strings.HasPrefix(f, ".") {
			continue
		}
		if matchesAny(f, excludes) {
			continue
		}
		files = append(files, f)
	}

	sort.Strings(files)
	return files
}

func matchesAny(path string, excludes []glob.Glob) bool {
	for _, g := range excludes {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// CompileExcludes compiles exclude glob patterns with '/' as the path
// separator, so "vendor/**" matches nested paths but "vendor/*" does not.
func CompileExcludes(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, err
		}
		globs = append(globs, g)
	}
	return globs, nil
}
