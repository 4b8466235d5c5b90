package epic

import "sort"

// Priority tag rank: lower sorts first. Epics without a priority tag are
// treated as medium.
var priorityRank = map[string]int{
	"critical": 0,
	"high":     1,
	"medium":   2,
	"low":      3,
}

const defaultPriorityRank = 2

// PriorityRank returns the selection rank for an epic based on its tags.
// The first recognized priority tag wins.
func PriorityRank(e *Epic) int {
	for _, tag := range e.Tags {
		if rank, ok := priorityRank[tag]; ok {
			return rank
		}
	}
	return defaultPriorityRank
}

// IsBlocked reports whether an epic has an unimplemented blocker. Only
// registered blockers count: a blocked_by reference to an unknown ID is
// treated as an external dependency already satisfied.
func (r *Registry) IsBlocked(epicID string) bool {
	e := r.Get(epicID)
	if e == nil {
		return false
	}
	for _, dep := range e.Dependencies.BlockedBy {
		blocker := r.Get(dep)
		if blocker != nil && blocker.Status != StatusImplemented {
			return true
		}
	}
	return false
}

// BlockedEpics returns every epic with an unimplemented blocker,
// regardless of its own status.
func (r *Registry) BlockedEpics() []*Epic {
	var result []*Epic
	for _, e := range r.Data.Epics {
		if r.IsBlocked(e.ID) {
			result = append(result, e)
		}
	}
	return result
}

// ReadyUnblocked returns the epics eligible for selection: status ready
// with every registered blocker implemented. The result is sorted in
// selection order (priority rank, then created_date, then epic number as
// a stable tiebreak).
func (r *Registry) ReadyUnblocked() []*Epic {
	var result []*Epic
	for _, e := range r.EpicsByStatus(StatusReady) {
		if !r.IsBlocked(e.ID) {
			result = append(result, e)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		ri, rj := PriorityRank(result[i]), PriorityRank(result[j])
		if ri != rj {
			return ri < rj
		}
		if result[i].CreatedDate != result[j].CreatedDate {
			return result[i].CreatedDate < result[j].CreatedDate
		}
		return result[i].Number < result[j].Number
	})
	return result
}

// SelectNext returns the epic to implement next, or nil if no ready epic
// is unblocked. Selection is deterministic: highest priority first, then
// oldest created_date.
func (r *Registry) SelectNext() *Epic {
	candidates := r.ReadyUnblocked()
	if len(candidates) == 0 {
		return nil
	}
	selected := candidates[0]
	r.log.Info("selected next epic",
		"epic_id", selected.ID,
		"priority_rank", PriorityRank(selected),
		"candidates", len(candidates))
	return selected
}
