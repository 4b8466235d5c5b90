// Package conflict provides parallel-execution safety nets: a filesystem
// watcher that spots the same file being modified in several worktrees,
// and an advisory claim registry that assigns plan files to worktrees
// before execution starts.
//
// Detection is advisory. The orchestrator surfaces conflicts to the
// operator; it never attempts to resolve them.
package conflict

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/epicflow/epicflow/internal/logging"
)

// FileConflict is one file modified in more than one worktree.
type FileConflict struct {
	// RelativePath is the path within each worktree, the unit of
	// comparison across worktrees.
	RelativePath string `json:"relative_path"`
	// Worktrees lists the worktree names that touched the file, sorted.
	Worktrees []string `json:"worktrees"`
	// LastModified is the most recent modification seen.
	LastModified time.Time `json:"last_modified"`
}

// Detector watches worktree directories and reports files modified in
// more than one of them. Events are debounced: editors commonly emit
// several events per save.
type Detector struct {
	watcher *fsnotify.Watcher
	log     *logging.Logger

	// worktree name -> absolute worktree path
	worktrees map[string]string

	// relative path -> worktree name -> last modification time
	modifications map[string]map[string]time.Time

	conflicts  []FileConflict
	onConflict func([]FileConflict)

	ignoreNames []string

	mu       sync.RWMutex
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewDetector creates a Detector. Call Start to begin processing events
// and Stop to release the watcher.
func NewDetector(log *logging.Logger) (*Detector, error) {
	if log == nil {
		log = logging.NopLogger()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Detector{
		watcher:       watcher,
		log:           log.WithComponent("conflict"),
		worktrees:     make(map[string]string),
		modifications: make(map[string]map[string]time.Time),
		conflicts:     []FileConflict{},
		ignoreNames:   []string{".git", ".metadata", "node_modules", ".DS_Store"},
		stopCh:        make(chan struct{}),
	}, nil
}

// OnConflict registers the callback invoked whenever the conflict set is
// recomputed and non-empty.
func (d *Detector) OnConflict(cb func([]FileConflict)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onConflict = cb
}

// Watch starts observing a worktree's directory tree.
func (d *Detector) Watch(worktreeName, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("worktree path does not exist: %s", path)
	}
	if !info.IsDir() {
		return fmt.Errorf("worktree path is not a directory: %s", path)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.worktrees[worktreeName] = path
	if err := d.watcher.Add(path); err != nil {
		return err
	}

	// fsnotify watches single directories, so register the subtree too.
	err = filepath.Walk(path, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		for _, ignore := range d.ignoreNames {
			if filepath.Base(p) == ignore {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if info.IsDir() {
			_ = d.watcher.Add(p)
		}
		return nil
	})
	if err != nil {
		return err
	}

	d.log.Debug("watching worktree", "worktree", worktreeName, "path", path)
	return nil
}

// Unwatch stops observing a worktree and drops its modification history.
func (d *Detector) Unwatch(worktreeName string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	path, ok := d.worktrees[worktreeName]
	if !ok {
		return
	}

	_ = d.watcher.Remove(path)
	delete(d.worktrees, worktreeName)

	for relPath, byWorktree := range d.modifications {
		delete(byWorktree, worktreeName)
		if len(byWorktree) == 0 {
			delete(d.modifications, relPath)
		}
	}

	d.recalculate()
}

// Start begins processing filesystem events in the background.
func (d *Detector) Start() {
	go d.watchLoop()
}

// Stop shuts the detector down and releases the watcher. Safe to call
// more than once.
func (d *Detector) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
		_ = d.watcher.Close()
	})
}

func (d *Detector) watchLoop() {
	debounce := time.NewTimer(0)
	<-debounce.C

	pending := make(map[string]fsnotify.Event)
	var pendingMu sync.Mutex

	for {
		select {
		case <-d.stopCh:
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			pendingMu.Lock()
			pending[event.Name] = event
			pendingMu.Unlock()
			debounce.Reset(50 * time.Millisecond)

		case <-debounce.C:
			pendingMu.Lock()
			events := pending
			pending = make(map[string]fsnotify.Event)
			pendingMu.Unlock()

			for _, event := range events {
				d.record(event.Name)
			}

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.log.Warn("watcher error", "error", err)
		}
	}
}

// record attributes a modified path to its worktree and recomputes the
// conflict set.
func (d *Detector) record(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ignored(path) {
		return
	}

	var worktreeName, relPath string
	for name, root := range d.worktrees {
		if strings.HasPrefix(path, root+string(filepath.Separator)) {
			worktreeName = name
			relPath, _ = filepath.Rel(root, path)
			break
		}
	}
	if worktreeName == "" {
		return
	}

	if d.modifications[relPath] == nil {
		d.modifications[relPath] = make(map[string]time.Time)
	}
	d.modifications[relPath][worktreeName] = time.Now()

	d.recalculate()
}

func (d *Detector) ignored(path string) bool {
	sep := string(filepath.Separator)
	for _, ignore := range d.ignoreNames {
		if strings.Contains(path, sep+ignore+sep) ||
			strings.HasSuffix(path, sep+ignore) ||
			filepath.Base(path) == ignore {
			return true
		}
	}
	return false
}

// recalculate rebuilds the conflict list from the modification map.
// Caller must hold d.mu.
func (d *Detector) recalculate() {
	conflicts := []FileConflict{}

	for relPath, byWorktree := range d.modifications {
		if len(byWorktree) < 2 {
			continue
		}

		var names []string
		var lastMod time.Time
		for name, modTime := range byWorktree {
			names = append(names, name)
			if modTime.After(lastMod) {
				lastMod = modTime
			}
		}
		sort.Strings(names)

		conflicts = append(conflicts, FileConflict{
			RelativePath: relPath,
			Worktrees:    names,
			LastModified: lastMod,
		})
	}

	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].RelativePath < conflicts[j].RelativePath
	})
	d.conflicts = conflicts

	if len(conflicts) > 0 {
		d.log.Warn("cross-worktree conflicts detected", "count", len(conflicts))
		if d.onConflict != nil {
			d.onConflict(conflicts)
		}
	}
}

// Conflicts returns a copy of the current conflict set.
func (d *Detector) Conflicts() []FileConflict {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]FileConflict, len(d.conflicts))
	copy(result, d.conflicts)
	return result
}

// HasConflicts reports whether any file is currently contested.
func (d *Detector) HasConflicts() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.conflicts) > 0
}

// FilesModifiedBy returns the relative paths a worktree has touched,
// sorted for stable output.
func (d *Detector) FilesModifiedBy(worktreeName string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var files []string
	for relPath, byWorktree := range d.modifications {
		if _, ok := byWorktree[worktreeName]; ok {
			files = append(files, relPath)
		}
	}
	sort.Strings(files)
	return files
}

// ClearOlderThan drops modification records older than maxAge so stale
// edits stop counting against new work.
func (d *Detector) ClearOlderThan(maxAge time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for relPath, byWorktree := range d.modifications {
		for name, modTime := range byWorktree {
			if modTime.Before(cutoff) {
				delete(byWorktree, name)
			}
		}
		if len(byWorktree) == 0 {
			delete(d.modifications, relPath)
		}
	}

	d.recalculate()
}
