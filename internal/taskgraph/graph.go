// Package taskgraph operates on a session's full task tree: dependency
// cycle detection, predecessor-state resolution, and critical-path
// computation. It is a pure, storage-free layer over task.Task values.
package taskgraph

import (
	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/task"
)

// maxHierarchyDepth bounds how deep a decomposition tree may nest.
const maxHierarchyDepth = 10

// Graph is an in-memory view over a task tree, keyed by task id. Callers
// build one from storage before running validation or traversal queries;
// Graph itself never reaches back into storage.
type Graph struct {
	tasks map[string]*task.Task
}

// New builds a Graph from a flat slice of tasks belonging to the same
// session (or the same task ∪ its descendants, for decomposition
// validation).
func New(tasks []*task.Task) *Graph {
	byID := make(map[string]*task.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	return &Graph{tasks: byID}
}

// ValidateDependencies runs cycle detection over the local dependency
// graph using a standard iterative topological check (Kahn's algorithm).
// A cycle is reported via apperrors.CycleDetected; a dependency edge
// pointing outside the supplied task set is ignored.
func (g *Graph) ValidateDependencies() error {
	indegree := make(map[string]int, len(g.tasks))
	adjacency := make(map[string][]string, len(g.tasks))
	for id := range g.tasks {
		indegree[id] = 0
	}
	for id, t := range g.tasks {
		for _, dep := range t.Dependencies {
			if _, ok := g.tasks[dep.TaskID]; !ok {
				continue // predecessor outside this local graph; not this graph's cycle to find
			}
			adjacency[dep.TaskID] = append(adjacency[dep.TaskID], id)
			indegree[id]++
		}
	}

	var queue []string
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adjacency[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited != len(g.tasks) {
		return apperrors.CycleDetected(g.remainingCycleMembers(indegree))
	}
	return nil
}

func (g *Graph) remainingCycleMembers(indegree map[string]int) []string {
	var remaining []string
	for id, deg := range indegree {
		if deg > 0 {
			remaining = append(remaining, id)
		}
	}
	return remaining
}

// ValidateDepth ensures the tree rooted at rootID does not exceed
// maxHierarchyDepth levels of child_task_ids nesting.
func (g *Graph) ValidateDepth(rootID string) error {
	depth := g.depthOf(rootID, map[string]bool{})
	if depth > maxHierarchyDepth {
		return apperrors.New(apperrors.CodeCycleDetected, "task hierarchy exceeds maximum depth", 0).
			WithDetails("root_id", rootID).
			WithDetails("depth", depth).
			WithDetails("max_depth", maxHierarchyDepth)
	}
	return nil
}

func (g *Graph) depthOf(id string, seen map[string]bool) int {
	t, ok := g.tasks[id]
	if !ok || seen[id] {
		return 0
	}
	seen[id] = true
	best := 0
	for _, child := range t.ChildTaskIDs {
		if d := g.depthOf(child, seen); d > best {
			best = d
		}
	}
	return best + 1
}

// CanStart resolves predecessor status/started state from the graph itself
// and delegates to the task's own CanStart.
func (g *Graph) CanStart(taskID string) bool {
	t, ok := g.tasks[taskID]
	if !ok {
		return false
	}
	status := make(map[string]task.Status, len(t.Dependencies))
	started := make(map[string]bool, len(t.Dependencies))
	for _, dep := range t.Dependencies {
		pred, ok := g.tasks[dep.TaskID]
		if !ok {
			continue
		}
		status[dep.TaskID] = pred.Status
		started[dep.TaskID] = pred.StartedAt != nil
	}
	return t.CanStart(status, started)
}

// Ready returns every task in the graph whose dependencies are currently
// satisfied and whose own status permits starting.
func (g *Graph) Ready() []*task.Task {
	var ready []*task.Task
	for id, t := range g.tasks {
		if g.CanStart(id) {
			ready = append(ready, t)
		}
	}
	return ready
}
