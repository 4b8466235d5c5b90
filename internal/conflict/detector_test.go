package conflict

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := NewDetector(nil)
	if err != nil {
		t.Fatalf("NewDetector() error = %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func TestDetectorStartStop(t *testing.T) {
	d := newTestDetector(t)
	d.Start()
	time.Sleep(10 * time.Millisecond)
	d.Stop()
	// Stop is idempotent.
	d.Stop()
}

func TestWatchValidation(t *testing.T) {
	d := newTestDetector(t)

	t.Run("missing path", func(t *testing.T) {
		err := d.Watch("wt-1", filepath.Join(t.TempDir(), "absent"))
		if err == nil || !strings.Contains(err.Error(), "does not exist") {
			t.Errorf("Watch() error = %v, want path-does-not-exist", err)
		}
	})

	t.Run("path is a file", func(t *testing.T) {
		f := filepath.Join(t.TempDir(), "plain-file")
		if err := os.WriteFile(f, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		err := d.Watch("wt-1", f)
		if err == nil || !strings.Contains(err.Error(), "not a directory") {
			t.Errorf("Watch() error = %v, want not-a-directory", err)
		}
	})

	t.Run("valid directory", func(t *testing.T) {
		if err := d.Watch("wt-1", t.TempDir()); err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	})
}

// twoWorktrees registers two watched directories and returns their roots.
func twoWorktrees(t *testing.T, d *Detector) (string, string) {
	t.Helper()
	a, b := t.TempDir(), t.TempDir()
	if err := d.Watch("wt-a", a); err != nil {
		t.Fatal(err)
	}
	if err := d.Watch("wt-b", b); err != nil {
		t.Fatal(err)
	}
	return a, b
}

func TestConflictDetection(t *testing.T) {
	d := newTestDetector(t)
	a, b := twoWorktrees(t, d)

	// Drive the recorder directly: the watch loop just feeds debounced
	// event paths into it.
	d.record(filepath.Join(a, "src", "shared.py"))
	if d.HasConflicts() {
		t.Fatal("single-worktree modification reported as conflict")
	}

	d.record(filepath.Join(b, "src", "shared.py"))
	if !d.HasConflicts() {
		t.Fatal("same relative path in two worktrees not reported")
	}

	conflicts := d.Conflicts()
	if len(conflicts) != 1 {
		t.Fatalf("Conflicts() = %d entries, want 1", len(conflicts))
	}
	c := conflicts[0]
	if c.RelativePath != filepath.Join("src", "shared.py") {
		t.Errorf("RelativePath = %q", c.RelativePath)
	}
	if len(c.Worktrees) != 2 || c.Worktrees[0] != "wt-a" || c.Worktrees[1] != "wt-b" {
		t.Errorf("Worktrees = %v, want sorted [wt-a wt-b]", c.Worktrees)
	}
}

func TestDifferentPathsNoConflict(t *testing.T) {
	d := newTestDetector(t)
	a, b := twoWorktrees(t, d)

	d.record(filepath.Join(a, "backend", "api.py"))
	d.record(filepath.Join(b, "frontend", "app.tsx"))

	if d.HasConflicts() {
		t.Errorf("disjoint paths reported as conflicts: %v", d.Conflicts())
	}
}

func TestIgnoredPaths(t *testing.T) {
	d := newTestDetector(t)
	a, b := twoWorktrees(t, d)

	d.record(filepath.Join(a, ".git", "index"))
	d.record(filepath.Join(b, ".git", "index"))

	if d.HasConflicts() {
		t.Errorf("ignored paths produced conflicts: %v", d.Conflicts())
	}
}

func TestUnwatchClearsConflicts(t *testing.T) {
	d := newTestDetector(t)
	a, b := twoWorktrees(t, d)

	d.record(filepath.Join(a, "shared.py"))
	d.record(filepath.Join(b, "shared.py"))
	if !d.HasConflicts() {
		t.Fatal("expected conflict before unwatch")
	}

	d.Unwatch("wt-b")
	if d.HasConflicts() {
		t.Errorf("conflict survived removal of one side: %v", d.Conflicts())
	}
}

func TestOnConflictCallback(t *testing.T) {
	d := newTestDetector(t)
	a, b := twoWorktrees(t, d)

	var got []FileConflict
	d.OnConflict(func(cs []FileConflict) { got = cs })

	d.record(filepath.Join(a, "shared.py"))
	d.record(filepath.Join(b, "shared.py"))

	if len(got) != 1 {
		t.Fatalf("callback received %d conflicts, want 1", len(got))
	}
	if got[0].RelativePath != "shared.py" {
		t.Errorf("callback conflict = %+v", got[0])
	}
}

func TestFilesModifiedBy(t *testing.T) {
	d := newTestDetector(t)
	a, _ := twoWorktrees(t, d)

	d.record(filepath.Join(a, "b.py"))
	d.record(filepath.Join(a, "a.py"))

	got := d.FilesModifiedBy("wt-a")
	if len(got) != 2 || got[0] != "a.py" || got[1] != "b.py" {
		t.Errorf("FilesModifiedBy() = %v, want sorted [a.py b.py]", got)
	}
	if files := d.FilesModifiedBy("wt-b"); len(files) != 0 {
		t.Errorf("FilesModifiedBy(wt-b) = %v, want empty", files)
	}
}

func TestClearOlderThan(t *testing.T) {
	d := newTestDetector(t)
	a, b := twoWorktrees(t, d)

	d.record(filepath.Join(a, "shared.py"))
	d.record(filepath.Join(b, "shared.py"))

	// Nothing is older than an hour yet.
	d.ClearOlderThan(time.Hour)
	if !d.HasConflicts() {
		t.Fatal("fresh modifications cleared")
	}

	// Everything is older than zero.
	time.Sleep(time.Millisecond)
	d.ClearOlderThan(0)
	if d.HasConflicts() {
		t.Errorf("stale modifications survived: %v", d.Conflicts())
	}
}

func TestWatchLoopEndToEnd(t *testing.T) {
	d := newTestDetector(t)
	a, b := twoWorktrees(t, d)
	d.Start()

	for _, root := range []string{a, b} {
		if err := os.WriteFile(filepath.Join(root, "shared.py"), []byte("x = 1\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.After(2 * time.Second)
	for !d.HasConflicts() {
		select {
		case <-deadline:
			t.Fatal("conflict not detected within deadline")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
