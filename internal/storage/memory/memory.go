// Package memory is a thread-safe, in-memory implementation of the
// internal/storage ports. It is intended for tests and local prototyping,
// mirroring the teacher's own in-memory Memory store: plain RWMutex-guarded
// maps, shallow copies on write and read so a caller changing a returned
// entity's top-level fields never changes stored state. Maps and slices
// inside an entity are not copied and stay shared with the stored value.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/agent"
	ctxdomain "github.com/R3E-Network/agent-orchestrator/internal/domain/context"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/session"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/task"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/tenant"
	"github.com/R3E-Network/agent-orchestrator/internal/storage"
)

// Store implements every internal/storage port over in-process maps.
type Store struct {
	mu sync.RWMutex

	sessions    map[string]*session.Session
	checkpoints map[string][]session.Checkpoint
	metrics     map[string]*session.Metrics
	tasks       map[string]*task.Task
	tenants     map[string]*tenant.Tenant
	contexts    map[string]*ctxdomain.Context
	agents      map[string]*agent.RegisteredAgent
}

var _ storage.SessionStore = (*Store)(nil)
var _ storage.TaskStore = (*Store)(nil)
var _ storage.TenantStore = (*Store)(nil)
var _ storage.ContextStore = (*Store)(nil)
var _ storage.AgentStore = (*Store)(nil)

// New creates an empty in-memory Store.
func New() *Store {
	return &Store{
		sessions:    map[string]*session.Session{},
		checkpoints: map[string][]session.Checkpoint{},
		metrics:     map[string]*session.Metrics{},
		tasks:       map[string]*task.Task{},
		tenants:     map[string]*tenant.Tenant{},
		contexts:    map[string]*ctxdomain.Context{},
		agents:      map[string]*agent.RegisteredAgent{},
	}
}

// --- SessionStore ------------------------------------------------------------

func (s *Store) CreateSession(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.ID]; exists {
		return apperrors.AlreadyExists("session", sess.ID)
	}
	clone := *sess
	s.sessions[sess.ID] = &clone
	return nil
}

func (s *Store) UpdateSession(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.ID]; !exists {
		return apperrors.NotFound("session", sess.ID)
	}
	clone := *sess
	s.sessions[sess.ID] = &clone
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, exists := s.sessions[id]
	if !exists {
		return nil, apperrors.NotFound("session", id)
	}
	clone := *sess
	return &clone, nil
}

func (s *Store) ListSessionsByTenant(_ context.Context, tenantID string, includeDeleted bool) ([]*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*session.Session
	for _, sess := range s.sessions {
		if sess.TenantID != tenantID {
			continue
		}
		if !includeDeleted && sess.IsDeleted() {
			continue
		}
		clone := *sess
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListChildSessions(_ context.Context, parentID string) ([]*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*session.Session
	for _, sess := range s.sessions {
		if sess.ParentID != nil && *sess.ParentID == parentID {
			clone := *sess
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *Store) CountActiveSessions(_ context.Context, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, sess := range s.sessions {
		if sess.TenantID != tenantID || sess.IsDeleted() {
			continue
		}
		switch sess.Status {
		case session.StatusPending, session.StatusQueued, session.StatusRunning, session.StatusPaused, session.StatusDegraded:
			count++
		}
	}
	return count, nil
}

func (s *Store) AppendCheckpoint(_ context.Context, cp session.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[cp.SessionID]; !exists {
		return apperrors.NotFound("session", cp.SessionID)
	}
	s.checkpoints[cp.SessionID] = append(s.checkpoints[cp.SessionID], cp)
	return nil
}

func (s *Store) ListCheckpoints(_ context.Context, sessionID string, limit int) ([]session.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.checkpoints[sessionID]
	if limit <= 0 || limit >= len(all) {
		out := make([]session.Checkpoint, len(all))
		copy(out, all)
		return out, nil
	}
	start := len(all) - limit
	out := make([]session.Checkpoint, limit)
	copy(out, all[start:])
	return out, nil
}

func (s *Store) PruneCheckpoints(_ context.Context, sessionID string, keepLast int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.checkpoints[sessionID]
	if keepLast <= 0 || keepLast >= len(all) {
		return 0, nil
	}
	removed := len(all) - keepLast
	s.checkpoints[sessionID] = append([]session.Checkpoint(nil), all[removed:]...)
	return removed, nil
}

func (s *Store) SaveMetrics(_ context.Context, m *session.Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *m
	s.metrics[m.SessionID] = &clone
	return nil
}

func (s *Store) GetMetrics(_ context.Context, sessionID string) (*session.Metrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, exists := s.metrics[sessionID]
	if !exists {
		return session.NewMetrics(sessionID), nil
	}
	clone := *m
	return &clone, nil
}

func (s *Store) LatestCheckpoint(_ context.Context, sessionID string) (session.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.checkpoints[sessionID]
	if len(all) == 0 {
		return session.Checkpoint{}, apperrors.NotFound("checkpoint", sessionID)
	}
	return all[len(all)-1], nil
}

// --- TaskStore ---------------------------------------------------------------

func (s *Store) CreateTask(_ context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.ID]; exists {
		return apperrors.AlreadyExists("task", t.ID)
	}
	clone := *t
	s.tasks[t.ID] = &clone
	return nil
}

func (s *Store) UpdateTask(_ context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.ID]; !exists {
		return apperrors.NotFound("task", t.ID)
	}
	clone := *t
	s.tasks[t.ID] = &clone
	return nil
}

func (s *Store) GetTask(_ context.Context, id string) (*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, exists := s.tasks[id]
	if !exists {
		return nil, apperrors.NotFound("task", id)
	}
	clone := *t
	return &clone, nil
}

func (s *Store) ListTasksBySession(_ context.Context, sessionID string) ([]*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*task.Task
	for _, t := range s.tasks {
		if t.SessionID == sessionID {
			clone := *t
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *Store) ListTasksByParent(_ context.Context, parentTaskID string) ([]*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*task.Task
	for _, t := range s.tasks {
		if t.ParentTaskID != nil && *t.ParentTaskID == parentTaskID {
			clone := *t
			out = append(out, &clone)
		}
	}
	return out, nil
}

// --- TenantStore ---------------------------------------------------------------

func (s *Store) CreateTenant(_ context.Context, t *tenant.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tenants[t.ID]; exists {
		return apperrors.AlreadyExists("tenant", t.ID)
	}
	clone := *t
	s.tenants[t.ID] = &clone
	return nil
}

func (s *Store) UpdateTenant(_ context.Context, t *tenant.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tenants[t.ID]; !exists {
		return apperrors.NotFound("tenant", t.ID)
	}
	clone := *t
	s.tenants[t.ID] = &clone
	return nil
}

func (s *Store) GetTenant(_ context.Context, id string) (*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, exists := s.tenants[id]
	if !exists {
		return nil, apperrors.NotFound("tenant", id)
	}
	clone := *t
	return &clone, nil
}

func (s *Store) GetTenantBySlug(_ context.Context, slug string) (*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if t.Slug == slug {
			clone := *t
			return &clone, nil
		}
	}
	return nil, apperrors.NotFound("tenant", slug)
}

func (s *Store) ListTenants(_ context.Context) ([]*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*tenant.Tenant
	for _, t := range s.tenants {
		clone := *t
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- ContextStore ---------------------------------------------------------------

func (s *Store) CreateContext(_ context.Context, c *ctxdomain.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.contexts[c.ID]; exists {
		return apperrors.AlreadyExists("context", c.ID)
	}
	clone := *c
	s.contexts[c.ID] = &clone
	return nil
}

func (s *Store) UpdateContext(_ context.Context, c *ctxdomain.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.contexts[c.ID]; !exists {
		return apperrors.NotFound("context", c.ID)
	}
	clone := *c
	s.contexts[c.ID] = &clone
	return nil
}

func (s *Store) GetContext(_ context.Context, id string) (*ctxdomain.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, exists := s.contexts[id]
	if !exists {
		return nil, apperrors.NotFound("context", id)
	}
	clone := *c
	return &clone, nil
}

func (s *Store) ListContextsByScope(_ context.Context, tenantID string, scope ctxdomain.Scope, ownerID string) ([]*ctxdomain.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ctxdomain.Context
	for _, c := range s.contexts {
		if c.TenantID != tenantID || c.Scope != scope {
			continue
		}
		switch scope {
		case ctxdomain.ScopeSession:
			if c.SessionID != ownerID {
				continue
			}
		case ctxdomain.ScopeAgent:
			if c.AgentID != ownerID {
				continue
			}
		}
		clone := *c
		out = append(out, &clone)
	}
	return out, nil
}

func (s *Store) DeleteExpiredContexts(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, c := range s.contexts {
		if c.ExpiresAt != nil && c.ExpiresAt.Before(before) {
			delete(s.contexts, id)
			removed++
		}
	}
	return removed, nil
}

// --- AgentStore ---------------------------------------------------------------

func (s *Store) UpsertAgent(_ context.Context, a *agent.RegisteredAgent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *a
	s.agents[a.ID] = &clone
	return nil
}

func (s *Store) GetAgent(_ context.Context, id string) (*agent.RegisteredAgent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, exists := s.agents[id]
	if !exists {
		return nil, apperrors.NotFound("agent", id)
	}
	clone := *a
	return &clone, nil
}

func (s *Store) ListAgentsByTenant(_ context.Context, tenantID string) ([]*agent.RegisteredAgent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*agent.RegisteredAgent
	for _, a := range s.agents {
		if a.TenantID == tenantID {
			clone := *a
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *Store) DeleteAgent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.agents[id]; !exists {
		return apperrors.NotFound("agent", id)
	}
	delete(s.agents, id)
	return nil
}
