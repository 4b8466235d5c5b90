package epic

import (
	"testing"

	"github.com/epicflow/epicflow/internal/logging"
)

// selectorRegistry builds an in-memory registry from pre-built epics.
func selectorRegistry(epics ...*Epic) *Registry {
	data := &RegistryData{
		SchemaVersion:  SchemaVersion,
		NextEpicNumber: len(epics) + 1,
		Epics:          epics,
	}
	return &Registry{Data: data, log: logging.NopLogger()}
}

func readyEpic(id string, number int, created string, tags []string, blockedBy []string) *Epic {
	return &Epic{
		ID:          id,
		Number:      number,
		Status:      StatusReady,
		CreatedDate: created,
		Tags:        tags,
		Dependencies: Dependencies{
			BlockedBy: blockedBy,
		},
	}
}

func TestIsBlocked(t *testing.T) {
	blocker := readyEpic("EPIC-001", 1, "2025-01-01", nil, nil)
	blocked := readyEpic("EPIC-002", 2, "2025-01-02", nil, []string{"EPIC-001"})
	dangling := readyEpic("EPIC-003", 3, "2025-01-03", nil, []string{"EXTERNAL-1"})
	reg := selectorRegistry(blocker, blocked, dangling)

	if reg.IsBlocked("EPIC-001") {
		t.Error("epic with no dependencies reported blocked")
	}
	if !reg.IsBlocked("EPIC-002") {
		t.Error("epic with unimplemented blocker not reported blocked")
	}
	if reg.IsBlocked("EPIC-003") {
		t.Error("dangling blocked_by reference must not block")
	}
	if reg.IsBlocked("EPIC-404") {
		t.Error("unknown epic reported blocked")
	}

	t.Run("implemented blocker unblocks", func(t *testing.T) {
		blocker.Status = StatusImplemented
		if reg.IsBlocked("EPIC-002") {
			t.Error("epic still blocked after blocker implemented")
		}
	})

	t.Run("only implemented unblocks", func(t *testing.T) {
		for _, status := range []Status{StatusDefined, StatusPrepared, StatusReady, StatusArchived} {
			blocker.Status = status
			if !reg.IsBlocked("EPIC-002") {
				t.Errorf("blocker status %q should still block", status)
			}
		}
	})
}

func TestSelectNext(t *testing.T) {
	tests := []struct {
		name  string
		epics []*Epic
		want  string // "" means no selection
	}{
		{
			name: "priority outranks age",
			epics: []*Epic{
				readyEpic("EPIC-001", 1, "2025-01-01", []string{"low"}, nil),
				readyEpic("EPIC-002", 2, "2025-06-01", []string{"critical"}, nil),
				readyEpic("EPIC-003", 3, "2025-03-01", []string{"high"}, nil),
			},
			want: "EPIC-002",
		},
		{
			name: "oldest wins within a priority",
			epics: []*Epic{
				readyEpic("EPIC-001", 1, "2025-03-01", []string{"high"}, nil),
				readyEpic("EPIC-002", 2, "2025-01-01", []string{"high"}, nil),
			},
			want: "EPIC-002",
		},
		{
			name: "untagged defaults to medium",
			epics: []*Epic{
				readyEpic("EPIC-001", 1, "2025-01-01", []string{"low"}, nil),
				readyEpic("EPIC-002", 2, "2025-06-01", nil, nil),
			},
			want: "EPIC-002",
		},
		{
			name: "blocked epics are skipped",
			epics: []*Epic{
				readyEpic("EPIC-001", 1, "2025-01-01", []string{"critical"}, []string{"EPIC-002"}),
				readyEpic("EPIC-002", 2, "2025-01-02", []string{"low"}, nil),
			},
			want: "EPIC-002",
		},
		{
			name: "non-ready statuses are ineligible",
			epics: []*Epic{
				{ID: "EPIC-001", Number: 1, Status: StatusDefined, CreatedDate: "2025-01-01"},
				{ID: "EPIC-002", Number: 2, Status: StatusImplemented, CreatedDate: "2025-01-01"},
			},
			want: "",
		},
		{
			name:  "empty registry",
			epics: nil,
			want:  "",
		},
		{
			name: "non-priority tags are ignored",
			epics: []*Epic{
				readyEpic("EPIC-001", 1, "2025-02-01", []string{"backend", "high"}, nil),
				readyEpic("EPIC-002", 2, "2025-01-01", []string{"frontend"}, nil),
			},
			want: "EPIC-001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := selectorRegistry(tt.epics...)
			got := reg.SelectNext()
			if tt.want == "" {
				if got != nil {
					t.Errorf("SelectNext() = %v, want nil", got.ID)
				}
				return
			}
			if got == nil {
				t.Fatalf("SelectNext() = nil, want %s", tt.want)
			}
			if got.ID != tt.want {
				t.Errorf("SelectNext() = %s, want %s", got.ID, tt.want)
			}
		})
	}
}

func TestSelectNextDeterministic(t *testing.T) {
	// Identical priority and created_date: epic number breaks the tie, so
	// repeated calls always agree.
	reg := selectorRegistry(
		readyEpic("EPIC-002", 2, "2025-01-01", []string{"high"}, nil),
		readyEpic("EPIC-001", 1, "2025-01-01", []string{"high"}, nil),
	)

	first := reg.SelectNext()
	if first == nil {
		t.Fatal("SelectNext() = nil")
	}
	for i := 0; i < 10; i++ {
		if got := reg.SelectNext(); got.ID != first.ID {
			t.Fatalf("selection changed between calls: %s vs %s", got.ID, first.ID)
		}
	}
	if first.ID != "EPIC-001" {
		t.Errorf("SelectNext() = %s, want EPIC-001 (lowest number)", first.ID)
	}
}

func TestBlockedAndReadyUnblocked(t *testing.T) {
	defined := readyEpic("EPIC-004", 4, "2025-01-04", nil, []string{"EPIC-001"})
	defined.Status = StatusDefined
	reg := selectorRegistry(
		readyEpic("EPIC-001", 1, "2025-01-01", nil, nil),
		readyEpic("EPIC-002", 2, "2025-01-02", nil, []string{"EPIC-001"}),
		readyEpic("EPIC-003", 3, "2025-01-03", []string{"critical"}, nil),
		defined,
	)

	// BlockedEpics spans every status, not just ready.
	blocked := reg.BlockedEpics()
	if len(blocked) != 2 {
		t.Fatalf("BlockedEpics() = %d epics, want 2", len(blocked))
	}
	if blocked[0].ID != "EPIC-002" || blocked[1].ID != "EPIC-004" {
		t.Errorf("BlockedEpics() = [%s %s], want [EPIC-002 EPIC-004]", blocked[0].ID, blocked[1].ID)
	}

	unblocked := reg.ReadyUnblocked()
	if len(unblocked) != 2 {
		t.Fatalf("ReadyUnblocked() = %d epics, want 2", len(unblocked))
	}
	if unblocked[0].ID != "EPIC-003" {
		t.Errorf("first candidate = %s, want EPIC-003 (critical)", unblocked[0].ID)
	}
}
