// Package finetuning models fine-tuning jobs: a storage collaborator that
// shares the lock manager and tenancy model with the scheduling kernel but
// contributes no scheduling logic of its own.
package finetuning

import (
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
)

// Status is a fine-tuning job's lifecycle position.
type Status string

const (
	StatusPending    Status = "pending"
	StatusQueued     Status = "queued"
	StatusRunning    Status = "running"
	StatusEvaluating Status = "evaluating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var permittedTransitions = map[Status][]Status{
	StatusPending:    {StatusQueued, StatusCancelled},
	StatusQueued:     {StatusRunning, StatusCancelled},
	StatusRunning:    {StatusEvaluating, StatusFailed, StatusCancelled},
	StatusEvaluating: {StatusCompleted, StatusFailed},
	StatusFailed:     {StatusPending},
	StatusCancelled:  {StatusPending},
}

// CanTransitionTo reports whether moving from s to next is permitted,
// including the retry paths back to pending from the two terminal failure
// states.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range permittedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Job is a durable fine-tuning job record.
type Job struct {
	ID          string
	TenantID    string
	BaseModel   string
	DatasetURI  string
	Status      Status
	RetryCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Result      map[string]interface{}
	Error       string
}

// New constructs a pending Job.
func New(tenantID, baseModel, datasetURI string) (*Job, error) {
	if tenantID == "" {
		return nil, apperrors.MissingParameter("tenant_id")
	}
	if baseModel == "" {
		return nil, apperrors.MissingParameter("base_model")
	}
	now := time.Now().UTC()
	return &Job{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		BaseModel:  baseModel,
		DatasetURI: datasetURI,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// TransitionTo moves the job to next if permitted, stamping timestamps and
// bumping RetryCount on a retry-from-terminal-failure path.
func (j *Job) TransitionTo(next Status, now time.Time) error {
	if !j.Status.CanTransitionTo(next) {
		return apperrors.InvalidTransition("finetuning_job", string(j.Status), string(next))
	}

	if (j.Status == StatusFailed || j.Status == StatusCancelled) && next == StatusPending {
		j.RetryCount++
	}

	j.Status = next
	j.UpdatedAt = now
	switch next {
	case StatusRunning:
		if j.StartedAt == nil {
			j.StartedAt = &now
		}
	case StatusCompleted, StatusFailed:
		j.CompletedAt = &now
	}
	return nil
}
