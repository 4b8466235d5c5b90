package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"

	"github.com/epicflow/epicflow/internal/config"
	"github.com/epicflow/epicflow/internal/epic"
	"github.com/epicflow/epicflow/internal/logging"
	"github.com/epicflow/epicflow/internal/worktree"
)

// Output styles shared across commands.
var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func successf(format string, args ...any) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

func warnf(format string, args ...any) {
	fmt.Println(warnStyle.Render(fmt.Sprintf(format, args...)))
}

// newLogger builds the process logger from configuration.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
}

// registryPath resolves the registry document path against the git root
// when relative, so commands work from any subdirectory.
func registryPath(cfg *config.Config) string {
	path := cfg.Registry.Path
	if filepath.IsAbs(path) {
		return path
	}
	root, err := worktree.FindGitRoot(".")
	if err != nil {
		return path
	}
	return filepath.Join(root, path)
}

// loadRegistry opens the registry for the current project.
func loadRegistry(cfg *config.Config, log *logging.Logger) (*epic.Registry, error) {
	return epic.Load(registryPath(cfg), log)
}

// newManager builds a worktree manager from configuration.
func newManager(cfg *config.Config, log *logging.Logger) (*worktree.Manager, error) {
	return worktree.NewManager(worktree.Config{
		WorktreeDir: cfg.Worktree.Dir,
		BaseBranch:  cfg.Worktree.BaseBranch,
	}, nil, log)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
