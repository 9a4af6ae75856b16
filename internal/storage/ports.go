// Package storage defines the persistence ports every core entity is
// stored behind, plus postgres and in-memory implementations. Each port is
// a narrow, single-entity interface so service-layer code can depend on
// exactly the persistence it needs, mirroring the teacher's per-domain
// AccountStore/FunctionStore/TriggerStore split.
package storage

import (
	"context"
	"time"

	"github.com/R3E-Network/agent-orchestrator/internal/domain/agent"
	ctxdomain "github.com/R3E-Network/agent-orchestrator/internal/domain/context"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/session"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/task"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/tenant"
)

// SessionStore persists sessions and their checkpoint logs.
type SessionStore interface {
	CreateSession(ctx context.Context, s *session.Session) error
	UpdateSession(ctx context.Context, s *session.Session) error
	GetSession(ctx context.Context, id string) (*session.Session, error)
	ListSessionsByTenant(ctx context.Context, tenantID string, includeDeleted bool) ([]*session.Session, error)
	ListChildSessions(ctx context.Context, parentID string) ([]*session.Session, error)
	CountActiveSessions(ctx context.Context, tenantID string) (int, error)

	AppendCheckpoint(ctx context.Context, cp session.Checkpoint) error
	ListCheckpoints(ctx context.Context, sessionID string, limit int) ([]session.Checkpoint, error)
	LatestCheckpoint(ctx context.Context, sessionID string) (session.Checkpoint, error)
	// PruneCheckpoints deletes every checkpoint for sessionID older than
	// keepLast's most recent entries, returning the number removed.
	PruneCheckpoints(ctx context.Context, sessionID string, keepLast int) (int, error)

	// SaveMetrics upserts a session's resource-usage and counter snapshot.
	SaveMetrics(ctx context.Context, m *session.Metrics) error
	// GetMetrics returns sessionID's metrics snapshot, or a zero-value
	// Metrics if none has been saved yet.
	GetMetrics(ctx context.Context, sessionID string) (*session.Metrics, error)
}

// TaskStore persists tasks belonging to a session.
type TaskStore interface {
	CreateTask(ctx context.Context, t *task.Task) error
	UpdateTask(ctx context.Context, t *task.Task) error
	GetTask(ctx context.Context, id string) (*task.Task, error)
	ListTasksBySession(ctx context.Context, sessionID string) ([]*task.Task, error)
	ListTasksByParent(ctx context.Context, parentTaskID string) ([]*task.Task, error)
}

// TenantStore persists tenant records.
type TenantStore interface {
	CreateTenant(ctx context.Context, t *tenant.Tenant) error
	UpdateTenant(ctx context.Context, t *tenant.Tenant) error
	GetTenant(ctx context.Context, id string) (*tenant.Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*tenant.Tenant, error)
	ListTenants(ctx context.Context) ([]*tenant.Tenant, error)
}

// ContextStore persists versioned execution-context entities.
type ContextStore interface {
	CreateContext(ctx context.Context, c *ctxdomain.Context) error
	UpdateContext(ctx context.Context, c *ctxdomain.Context) error
	GetContext(ctx context.Context, id string) (*ctxdomain.Context, error)
	ListContextsByScope(ctx context.Context, tenantID string, scope ctxdomain.Scope, ownerID string) ([]*ctxdomain.Context, error)
	DeleteExpiredContexts(ctx context.Context, before time.Time) (int, error)
}

// AgentStore persists agent registration records. The registry itself
// remains the read path of record at runtime (internal/registry.Registry),
// and nothing loads these records back into it on process restart. The
// store is analogous to the registry's DurableMirror seam but covers full
// records instead of heartbeat blobs.
type AgentStore interface {
	UpsertAgent(ctx context.Context, a *agent.RegisteredAgent) error
	GetAgent(ctx context.Context, id string) (*agent.RegisteredAgent, error)
	ListAgentsByTenant(ctx context.Context, tenantID string) ([]*agent.RegisteredAgent, error)
	DeleteAgent(ctx context.Context, id string) error
}
