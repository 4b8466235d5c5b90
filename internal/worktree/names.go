package worktree

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	invalidChars = regexp.MustCompile(`[^a-zA-Z0-9\s-]`)
	whitespace   = regexp.MustCompile(`\s+`)
	hyphenRuns   = regexp.MustCompile(`-+`)
)

// SanitizeName converts a task name into a slug usable in worktree and
// branch names: special characters stripped, whitespace collapsed to
// hyphens, lowercased.
//
//	SanitizeName("Backend API Implementation") == "backend-api-implementation"
//	SanitizeName("Fix Bug #123 (Critical!)") == "fix-bug-123-critical"
func SanitizeName(name string) string {
	s := invalidChars.ReplaceAllString(name, "")
	s = whitespace.ReplaceAllString(s, "-")
	s = hyphenRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return strings.ToLower(s)
}

// GenerateName returns a unique worktree name and its feature branch for
// an epic task. The name carries a random suffix so repeated tasks for the
// same epic never collide; the branch is stable per epic and task.
//
//	name:   EPIC-007-backend-api-a3f2b1c4
//	branch: feature/EPIC-007/backend-api
func GenerateName(epicID, taskName string) (name, branch string) {
	slug := SanitizeName(taskName)
	suffix := uuid.NewString()[:8]
	name = epicID + "-" + slug + "-" + suffix
	branch = "feature/" + epicID + "/" + slug
	return name, branch
}
