package cmd

import (
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/epicflow/epicflow/internal/config"
)

func hasCommand(t *testing.T, names []string, want string) {
	t.Helper()
	for _, n := range names {
		if n == want {
			return
		}
	}
	t.Errorf("command %q not registered, have %v", want, names)
}

func TestCommandRegistration(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"epic", "analyze", "worktree"} {
		hasCommand(t, names, want)
	}

	var epicSubs, worktreeSubs []string
	for _, c := range epicCmd.Commands() {
		epicSubs = append(epicSubs, c.Name())
	}
	for _, c := range worktreeCmd.Commands() {
		worktreeSubs = append(worktreeSubs, c.Name())
	}
	for _, want := range []string{"init", "add", "list", "status", "next", "order", "check", "github"} {
		hasCommand(t, epicSubs, want)
	}
	for _, want := range []string{"create", "list", "update", "cleanup", "sweep", "archives", "watch"} {
		hasCommand(t, worktreeSubs, want)
	}
}

func TestCommandsRejectInvalidConfig(t *testing.T) {
	// Out-of-range settings abort the command with the validation error;
	// they must not make the run fall back to default thresholds.
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetDefaults()

	viper.Set("parallel.min_files", 10)
	viper.Set("parallel.max_overlap", 150.0)

	err := runEpicNext(epicNextCmd, nil)
	if err == nil {
		t.Fatal("command ran despite invalid configuration")
	}
	if !strings.Contains(err.Error(), "parallel.max_overlap") {
		t.Errorf("error = %v, want mention of parallel.max_overlap", err)
	}
}

func TestAnalyzeFlagDefaults(t *testing.T) {
	tests := []struct {
		flag string
		want string
	}{
		{"min-files", "5"},
		{"min-domains", "2"},
		{"max-overlap", "30"},
	}
	for _, tt := range tests {
		f := analyzeCmd.Flags().Lookup(tt.flag)
		if f == nil {
			t.Fatalf("flag --%s not registered", tt.flag)
		}
		if f.DefValue != tt.want {
			t.Errorf("--%s default = %q, want %q", tt.flag, f.DefValue, tt.want)
		}
	}
}
