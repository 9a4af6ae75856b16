// Package task implements the task entity: PERT estimation, dependency
// edges, and the task's own status machine. Multi-task graph operations
// (cycle detection, critical path, decomposition) live in
// internal/taskgraph and internal/decomposition, which operate on Task
// values produced by this package.
package task

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
)

// Priority mirrors the session's priority vocabulary for task-level triage.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// actionVerbs is the closed list a task title must begin with.
var actionVerbs = []string{
	"implement", "fix", "add", "create", "update", "remove", "refactor",
	"test", "design", "deploy", "review", "debug", "optimize", "configure",
	"write", "build", "migrate", "integrate", "investigate", "document",
}

// Task is a work unit within a session.
type Task struct {
	ID             string
	TenantID       string
	SessionID      string
	ParentTaskID   *string
	Title          string
	Description    string
	Status         Status
	Priority       Priority
	Estimate       Estimate
	Dependencies   []Dependency
	Dependents     []string
	AssignedAgentID *string
	StartedAt      *time.Time
	CompletedAt    *time.Time
	FailedAt       *time.Time
	Result         map[string]interface{}
	Error          map[string]interface{}
	Artifacts      []string
	ChildTaskIDs   []string
}

// New constructs a pending Task after validating the title begins with a
// recognized action verb.
func New(tenantID, sessionID, title, description string, priority Priority, estimate Estimate) (*Task, error) {
	if tenantID == "" {
		return nil, apperrors.MissingParameter("tenant_id")
	}
	if sessionID == "" {
		return nil, apperrors.MissingParameter("session_id")
	}
	if !startsWithActionVerb(title) {
		return nil, apperrors.InvalidFormat("title", "must begin with an action verb")
	}

	return &Task{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		SessionID:   sessionID,
		Title:       title,
		Description: description,
		Status:      StatusPending,
		Priority:    priority,
		Estimate:    estimate,
	}, nil
}

func startsWithActionVerb(title string) bool {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return false
	}
	firstWord := strings.ToLower(strings.Fields(trimmed)[0])
	for _, verb := range actionVerbs {
		if firstWord == verb {
			return true
		}
	}
	return false
}

// AddDependency records a dependency on another task, rejecting self-deps
// and duplicates.
func (t *Task) AddDependency(dep Dependency) error {
	if dep.TaskID == t.ID {
		return apperrors.InvalidInput("dependency", "a task cannot depend on itself")
	}
	for _, existing := range t.Dependencies {
		if existing.TaskID == dep.TaskID && existing.Type == dep.Type {
			return apperrors.AlreadyExists("dependency", dep.TaskID)
		}
	}
	t.Dependencies = append(t.Dependencies, dep)
	return nil
}

// CanStart reports whether the task's own status allows starting and every
// dependency is satisfied, given the predecessor statuses/started flags
// supplied by the caller (typically the owning taskgraph).
func (t *Task) CanStart(predecessorStatus map[string]Status, predecessorStarted map[string]bool) bool {
	if !t.Status.CanStart() {
		return false
	}
	for _, dep := range t.Dependencies {
		if !dep.Satisfied(predecessorStatus[dep.TaskID], predecessorStarted[dep.TaskID]) {
			return false
		}
	}
	return true
}

// TransitionTo moves the task to next if permitted by its status machine,
// stamping the relevant timestamp.
func (t *Task) TransitionTo(next Status, now time.Time) error {
	if !t.Status.CanTransitionTo(next) {
		return apperrors.InvalidTransition("task", t.Status.String(), next.String())
	}
	t.Status = next
	switch next {
	case StatusInProgress:
		if t.StartedAt == nil {
			t.StartedAt = &now
		}
	case StatusCompleted:
		t.CompletedAt = &now
	case StatusFailed:
		t.FailedAt = &now
	}
	return nil
}

// UpdateFromExecution folds an actual execution duration into the task's
// estimate.
func (t *Task) UpdateFromExecution(actualHours float64) {
	t.Estimate = t.Estimate.UpdateFromExecution(actualHours)
}
