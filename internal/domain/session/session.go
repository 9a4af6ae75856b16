// Package session implements the session lifecycle state machine: status
// transitions, checkpoints, timers, metrics, and recoverability judgement.
package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
)

// Type classifies the kind of work a session performs.
type Type string

const (
	TypePlanning    Type = "planning"
	TypeExecution   Type = "execution"
	TypeReview      Type = "review"
	TypeDebug       Type = "debug"
	TypeIntegration Type = "integration"
)

// Priority orders sessions for scheduling and operator attention.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
	PriorityDeferred Priority = "deferred"
)

const (
	minDuration = 60
	maxDuration = 86400
	maxRetries  = 3
)

// genericTitles rejects placeholder titles a user forgot to rename.
var genericTitles = map[string]bool{
	"task": true, "todo": true, "untitled": true, "test": true, "fix": true,
	"update": true, "new session": true, "session": true, "": true,
}

// Session is the top-level scheduling entity: a unit of orchestrated work.
type Session struct {
	ID                string
	TenantID          string
	Title             string
	Description       string
	Type              Type
	Priority          Priority
	Status            Status
	StatusUpdatedAt   time.Time
	ParentID          *string
	ChildIDs          []string
	AgentConfig       map[string]interface{}
	ModelID           *string
	InitialPrompt     string
	MaxDurationSeconds int
	CPULimit          *float64
	MemoryLimitMB     *int
	Tags              []string
	Metadata          map[string]interface{}
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
}

// New constructs a pending Session after validating title, prompt, and
// duration bounds.
func New(tenantID, title, description string, typ Type, priority Priority, initialPrompt string, maxDurationSeconds int, agentConfig map[string]interface{}) (*Session, error) {
	if tenantID == "" {
		return nil, apperrors.MissingParameter("tenant_id")
	}
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if len(initialPrompt) == 0 || len(initialPrompt) > 10000 {
		return nil, apperrors.OutOfRange("initial_prompt", 1, 10000)
	}
	if maxDurationSeconds == 0 {
		maxDurationSeconds = 3600
	}
	if maxDurationSeconds < minDuration || maxDurationSeconds > maxDuration {
		return nil, apperrors.OutOfRange("max_duration_seconds", minDuration, maxDuration)
	}

	now := time.Now().UTC()
	if agentConfig == nil {
		agentConfig = map[string]interface{}{}
	}
	return &Session{
		ID:                 uuid.NewString(),
		TenantID:           tenantID,
		Title:              title,
		Description:        description,
		Type:               typ,
		Priority:           priority,
		Status:             StatusPending,
		StatusUpdatedAt:    now,
		AgentConfig:        agentConfig,
		InitialPrompt:      initialPrompt,
		MaxDurationSeconds: maxDurationSeconds,
		Metadata:           map[string]interface{}{},
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

func validateTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	if len(trimmed) == 0 || len(trimmed) > 200 {
		return apperrors.OutOfRange("title", 1, 200)
	}
	if genericTitles[strings.ToLower(trimmed)] {
		return apperrors.InvalidInput("title", "must not be a generic placeholder")
	}
	return nil
}

// TransitionTo moves the session to next if permitted, bumping Version by
// exactly 1 and stamping StatusUpdatedAt. Returns the domain events raised.
func (s *Session) TransitionTo(next Status, now time.Time) ([]Event, error) {
	if !s.Status.CanTransitionTo(next) {
		return nil, apperrors.InvalidTransition("session", s.Status.String(), next.String())
	}

	from := s.Status
	s.Status = next
	s.StatusUpdatedAt = now
	s.UpdatedAt = now
	s.Version++

	events := []Event{newStatusChanged(s.ID, from, next, now)}
	switch next {
	case StatusCompleted:
		events = append(events, Completed{baseEvent: baseEvent{At: now}, SessionID: s.ID})
	case StatusFailed:
		events = append(events, Failed{baseEvent: baseEvent{At: now}, SessionID: s.ID, Retryable: true})
	}
	return events, nil
}

// StartExecution enforces the executor's entry point into running,
// transiting through queued first if the session has not yet been queued.
func (s *Session) StartExecution(now time.Time) ([]Event, error) {
	var events []Event
	if s.Status == StatusPending {
		queuedEvents, err := s.TransitionTo(StatusQueued, now)
		if err != nil {
			return nil, err
		}
		events = append(events, queuedEvents...)
	}
	runningEvents, err := s.TransitionTo(StatusRunning, now)
	if err != nil {
		return nil, err
	}
	return append(events, runningEvents...), nil
}

// IsRecoverable reports whether this session may be retried: its status
// must be failed/timeout/stopped, it must own at least one checkpoint, and
// its retry count must be below the hard cap.
func (s *Session) IsRecoverable(checkpointCount int) bool {
	return s.Status.IsRecoverable() && checkpointCount > 0 && s.RetryCount() < maxRetries
}

// Retry resets a recoverable session back to pending and bumps retry_count,
// preserving checkpoints and metrics.
func (s *Session) Retry(now time.Time) error {
	s.Status = StatusPending
	s.StatusUpdatedAt = now
	s.UpdatedAt = now
	s.Version++
	s.Metadata["retry_count"] = s.RetryCount() + 1
	return nil
}

// RetryCount reads the retry counter stashed in Metadata, defaulting to 0.
func (s *Session) RetryCount() int {
	v, ok := s.Metadata["retry_count"]
	if !ok {
		return 0
	}
	n, ok := v.(int)
	if !ok {
		return 0
	}
	return n
}

// HealthScore computes a real number in [0,1] summarizing session wellbeing.
func (s *Session) HealthScore(now time.Time, startedAt time.Time) float64 {
	switch s.Status {
	case StatusCompleted:
		return 1.0
	case StatusFailed:
		return 0.0
	case StatusRunning:
		if startedAt.IsZero() || s.MaxDurationSeconds <= 0 {
			return 0.9
		}
		elapsedFraction := now.Sub(startedAt).Seconds() / float64(s.MaxDurationSeconds)
		switch {
		case elapsedFraction > 0.9:
			return 0.3
		case elapsedFraction > 0.7:
			return 0.7
		default:
			return 0.9
		}
	default:
		return 0.8
	}
}

// IsTimedOut reports whether a running session has exceeded its max duration.
func (s *Session) IsTimedOut(now, startedAt time.Time) bool {
	if s.Status != StatusRunning || startedAt.IsZero() {
		return false
	}
	return now.After(startedAt.Add(time.Duration(s.MaxDurationSeconds) * time.Second))
}

// IsAtRisk reports whether a running session has less than 5 minutes left
// on its deadline.
func (s *Session) IsAtRisk(now, startedAt time.Time) bool {
	if s.Status != StatusRunning || startedAt.IsZero() {
		return false
	}
	deadline := startedAt.Add(time.Duration(s.MaxDurationSeconds) * time.Second)
	return !now.After(deadline) && deadline.Sub(now) < 5*time.Minute
}

// SoftDelete marks the session deleted; it is excluded from non-admin reads
// from this point on but not physically removed.
func (s *Session) SoftDelete(now time.Time) {
	s.DeletedAt = &now
	s.UpdatedAt = now
	s.Version++
}

// IsDeleted reports whether SoftDelete has been called.
func (s *Session) IsDeleted() bool {
	return s.DeletedAt != nil
}
