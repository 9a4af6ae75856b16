// Package tenant models the isolation boundary every other core entity is scoped by.
package tenant

import (
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
)

// Tenant is the identity of an isolation boundary. Every session, agent,
// task, and context entity carries a tenant id and is scoped by it.
type Tenant struct {
	ID                    string
	Name                  string
	Slug                  string
	MaxConcurrentSessions int
	MaxTokensPerMonth     int
	Active                bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// New constructs an active Tenant with a fresh id and the given quotas,
// both of which must be positive.
func New(name, slug string, maxConcurrentSessions, maxTokensPerMonth int) (*Tenant, error) {
	if name == "" {
		return nil, apperrors.MissingParameter("name")
	}
	if slug == "" {
		return nil, apperrors.MissingParameter("slug")
	}
	if maxConcurrentSessions <= 0 {
		return nil, apperrors.OutOfRange("max_concurrent_sessions", 1, nil)
	}
	if maxTokensPerMonth <= 0 {
		return nil, apperrors.OutOfRange("max_tokens_per_month", 1, nil)
	}

	now := time.Now().UTC()
	return &Tenant{
		ID:                    uuid.NewString(),
		Name:                  name,
		Slug:                  slug,
		MaxConcurrentSessions: maxConcurrentSessions,
		MaxTokensPerMonth:     maxTokensPerMonth,
		Active:                true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}, nil
}

// CanStartSession reports whether a tenant currently running activeSessions
// may start one more, given its configured concurrency quota.
func (t *Tenant) CanStartSession(activeSessions int) bool {
	return t.Active && activeSessions < t.MaxConcurrentSessions
}
