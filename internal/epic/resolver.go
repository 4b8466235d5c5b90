package epic

import (
	"fmt"

	"github.com/epicflow/epicflow/internal/errors"
)

// DependencyGraph returns the blocked_by adjacency: epic ID to the IDs of
// epics that must be implemented first. Dangling references are kept as-is;
// consumers treat them as external dependencies already satisfied.
func (r *Registry) DependencyGraph() map[string][]string {
	graph := make(map[string][]string, len(r.Data.Epics))
	for _, e := range r.Data.Epics {
		deps := make([]string, len(e.Dependencies.BlockedBy))
		copy(deps, e.Dependencies.BlockedBy)
		graph[e.ID] = deps
	}
	return graph
}

// FindCycle detects a circular blocked_by chain. It returns the cycle as
// the ordered path from the first occurrence of the repeated epic through
// the repeat, or nil if the graph is acyclic. This check is diagnostic and
// never returns an error.
//
// The traversal is an explicit-stack depth-first search so large
// dependency graphs cannot exhaust the call stack.
func (r *Registry) FindCycle() []string {
	graph := r.DependencyGraph()
	visited := make(map[string]bool, len(graph))
	onPath := make(map[string]bool, len(graph))

	type frame struct {
		node string
		next int // index of the next neighbor to visit
	}

	// Iterate roots in registration order for deterministic output.
	for _, root := range r.Data.Epics {
		if visited[root.ID] {
			continue
		}

		stack := []frame{{node: root.ID}}
		path := []string{root.ID}
		visited[root.ID] = true
		onPath[root.ID] = true

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			neighbors := graph[top.node]

			if top.next < len(neighbors) {
				neighbor := neighbors[top.next]
				top.next++

				if _, exists := graph[neighbor]; !exists {
					// Dangling reference: not a registry epic, cannot cycle.
					continue
				}
				if onPath[neighbor] {
					for i, id := range path {
						if id == neighbor {
							cycle := make([]string, 0, len(path)-i+1)
							cycle = append(cycle, path[i:]...)
							return append(cycle, neighbor)
						}
					}
				}
				if !visited[neighbor] {
					visited[neighbor] = true
					onPath[neighbor] = true
					stack = append(stack, frame{node: neighbor})
					path = append(path, neighbor)
				}
				continue
			}

			stack = stack[:len(stack)-1]
			onPath[top.node] = false
			path = path[:len(path)-1]
		}
	}

	return nil
}

// TopologicalSort returns epic IDs in dependency-respecting order: every
// epic appears after all registered epics in its blocked_by list. Uses
// Kahn's algorithm. Returns ErrDependencyCycle if the graph contains a
// cycle; call FindCycle for the diagnosable path.
func (r *Registry) TopologicalSort() ([]string, error) {
	graph := r.DependencyGraph()

	// In-degree of an epic = number of registered epics it is blocked by.
	inDegree := make(map[string]int, len(graph))
	dependents := make(map[string][]string, len(graph))
	for _, e := range r.Data.Epics {
		inDegree[e.ID] = 0
	}
	for _, e := range r.Data.Epics {
		for _, dep := range graph[e.ID] {
			if _, ok := inDegree[dep]; ok {
				inDegree[e.ID]++
				dependents[dep] = append(dependents[dep], e.ID)
			}
		}
	}

	// Seed the queue in registration order for deterministic output.
	var queue []string
	for _, e := range r.Data.Epics {
		if inDegree[e.ID] == 0 {
			queue = append(queue, e.ID)
		}
	}

	result := make([]string, 0, len(graph))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, dep := range dependents[node] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(result) != len(r.Data.Epics) {
		return nil, fmt.Errorf("topological sort: %w", errors.ErrDependencyCycle)
	}

	return result, nil
}
