package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/agent"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/task"
	"github.com/R3E-Network/agent-orchestrator/internal/storage"
)

func (s *Store) CreateTask(ctx context.Context, t *task.Task) error {
	estimate, err := jsonOf(t.Estimate)
	if err != nil {
		return err
	}
	deps, err := jsonOf(t.Dependencies)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, tenant_id, session_id, parent_task_id, title, description,
			status, priority, estimate, dependencies, assigned_agent_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.TenantID, t.SessionID, t.ParentTaskID, t.Title, t.Description,
		t.Status.String(), string(t.Priority), estimate, deps, t.AssignedAgentID,
	)
	if err != nil {
		return apperrors.StorageError("create task", err)
	}
	return nil
}

func (s *Store) UpdateTask(ctx context.Context, t *task.Task) error {
	result, err := jsonOf(t.Result)
	if err != nil {
		return err
	}
	taskErr, err := jsonOf(t.Error)
	if err != nil {
		return err
	}
	artifacts, err := jsonOf(t.Artifacts)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			status = $2, assigned_agent_id = $3, started_at = $4, completed_at = $5,
			failed_at = $6, result = $7, error = $8, artifacts = $9
		WHERE id = $1`,
		t.ID, t.Status.String(), t.AssignedAgentID, t.StartedAt, t.CompletedAt,
		t.FailedAt, result, taskErr, artifacts,
	)
	if err != nil {
		return apperrors.StorageError("update task", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return apperrors.NotFound("task", t.ID)
	}
	return nil
}

type taskRow struct {
	ID              string          `db:"id"`
	TenantID        string          `db:"tenant_id"`
	SessionID       string          `db:"session_id"`
	ParentTaskID    sql.NullString  `db:"parent_task_id"`
	Title           string          `db:"title"`
	Description     string          `db:"description"`
	Status          string          `db:"status"`
	Priority        string          `db:"priority"`
	Estimate        []byte          `db:"estimate"`
	Dependencies    []byte          `db:"dependencies"`
	AssignedAgentID sql.NullString  `db:"assigned_agent_id"`
	StartedAt       sql.NullTime    `db:"started_at"`
	CompletedAt     sql.NullTime    `db:"completed_at"`
	FailedAt        sql.NullTime    `db:"failed_at"`
	Result          []byte          `db:"result"`
	Error           []byte          `db:"error"`
	Artifacts       []byte          `db:"artifacts"`
}

func (r taskRow) toDomain() (*task.Task, error) {
	status, err := storage.ParseTaskStatus(r.Status)
	if err != nil {
		return nil, err
	}
	t := &task.Task{
		ID:          r.ID,
		TenantID:    r.TenantID,
		SessionID:   r.SessionID,
		Title:       r.Title,
		Description: r.Description,
		Status:      status,
		Priority:    task.Priority(r.Priority),
	}
	if r.ParentTaskID.Valid {
		v := r.ParentTaskID.String
		t.ParentTaskID = &v
	}
	if r.AssignedAgentID.Valid {
		v := r.AssignedAgentID.String
		t.AssignedAgentID = &v
	}
	if r.StartedAt.Valid {
		v := r.StartedAt.Time
		t.StartedAt = &v
	}
	if r.CompletedAt.Valid {
		v := r.CompletedAt.Time
		t.CompletedAt = &v
	}
	if r.FailedAt.Valid {
		v := r.FailedAt.Time
		t.FailedAt = &v
	}
	if len(r.Estimate) > 0 {
		_ = json.Unmarshal(r.Estimate, &t.Estimate)
	}
	if len(r.Dependencies) > 0 {
		_ = json.Unmarshal(r.Dependencies, &t.Dependencies)
	}
	if len(r.Result) > 0 {
		_ = json.Unmarshal(r.Result, &t.Result)
	}
	if len(r.Error) > 0 {
		_ = json.Unmarshal(r.Error, &t.Error)
	}
	if len(r.Artifacts) > 0 {
		_ = json.Unmarshal(r.Artifacts, &t.Artifacts)
	}
	return t, nil
}

const selectTask = `
	SELECT id, tenant_id, session_id, parent_task_id, title, description,
		status, priority, estimate, dependencies, assigned_agent_id, started_at,
		completed_at, failed_at, result, error, artifacts
	FROM tasks`

func (s *Store) GetTask(ctx context.Context, id string) (*task.Task, error) {
	var row taskRow
	if err := s.db.GetContext(ctx, &row, selectTask+" WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound("task", id)
		}
		return nil, apperrors.StorageError("get task", err)
	}
	return row.toDomain()
}

func (s *Store) ListTasksBySession(ctx context.Context, sessionID string) ([]*task.Task, error) {
	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, selectTask+" WHERE session_id = $1 ORDER BY id", sessionID); err != nil {
		return nil, apperrors.StorageError("list tasks by session", err)
	}
	return taskRowsToDomain(rows)
}

func (s *Store) ListTasksByParent(ctx context.Context, parentTaskID string) ([]*task.Task, error) {
	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, selectTask+" WHERE parent_task_id = $1 ORDER BY id", parentTaskID); err != nil {
		return nil, apperrors.StorageError("list tasks by parent", err)
	}
	return taskRowsToDomain(rows)
}

func taskRowsToDomain(rows []taskRow) ([]*task.Task, error) {
	out := make([]*task.Task, 0, len(rows))
	for _, r := range rows {
		t, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// --- AgentStore ---------------------------------------------------------------

type agentRow struct {
	ID                 string    `db:"id"`
	TenantID           string    `db:"tenant_id"`
	Name               string    `db:"name"`
	Type               string    `db:"type"`
	Capabilities       []byte    `db:"capabilities"`
	Tier               string    `db:"tier"`
	Load               string    `db:"load"`
	CurrentTasks       int       `db:"current_tasks"`
	MaxConcurrentTasks int       `db:"max_concurrent_tasks"`
	LastHeartbeat      time.Time `db:"last_heartbeat"`
	Metadata           []byte    `db:"metadata"`
}

func (r agentRow) toDomain() *agent.RegisteredAgent {
	a := &agent.RegisteredAgent{
		ID:                 r.ID,
		TenantID:           r.TenantID,
		Name:               r.Name,
		Type:               agent.Type(r.Type),
		Tier:               agent.Tier(r.Tier),
		Load:               agent.LoadLevel(r.Load),
		CurrentTasks:       r.CurrentTasks,
		MaxConcurrentTasks: r.MaxConcurrentTasks,
		LastHeartbeat:      r.LastHeartbeat,
		Capabilities:       map[agent.Capability]bool{},
		Metadata:           map[string]interface{}{},
	}
	var caps []string
	if len(r.Capabilities) > 0 {
		_ = json.Unmarshal(r.Capabilities, &caps)
	}
	for _, c := range caps {
		a.Capabilities[agent.Capability(c)] = true
	}
	if len(r.Metadata) > 0 {
		_ = json.Unmarshal(r.Metadata, &a.Metadata)
	}
	return a
}

func (s *Store) UpsertAgent(ctx context.Context, a *agent.RegisteredAgent) error {
	caps := make([]string, 0, len(a.Capabilities))
	for c := range a.Capabilities {
		caps = append(caps, string(c))
	}
	capsJSON, err := jsonOf(caps)
	if err != nil {
		return err
	}
	metadata, err := jsonOf(a.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agents (
			id, tenant_id, name, type, capabilities, tier, load, current_tasks,
			max_concurrent_tasks, last_heartbeat, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = $3, type = $4, capabilities = $5, tier = $6, load = $7,
			current_tasks = $8, max_concurrent_tasks = $9, last_heartbeat = $10,
			metadata = $11`,
		a.ID, a.TenantID, a.Name, string(a.Type), capsJSON, string(a.Tier),
		string(a.Load), a.CurrentTasks, a.MaxConcurrentTasks, a.LastHeartbeat, metadata,
	)
	if err != nil {
		return apperrors.StorageError("upsert agent", err)
	}
	return nil
}

const selectAgent = `
	SELECT id, tenant_id, name, type, capabilities, tier, load, current_tasks,
		max_concurrent_tasks, last_heartbeat, metadata
	FROM agents`

func (s *Store) GetAgent(ctx context.Context, id string) (*agent.RegisteredAgent, error) {
	var row agentRow
	if err := s.db.GetContext(ctx, &row, selectAgent+" WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound("agent", id)
		}
		return nil, apperrors.StorageError("get agent", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListAgentsByTenant(ctx context.Context, tenantID string) ([]*agent.RegisteredAgent, error) {
	var rows []agentRow
	if err := s.db.SelectContext(ctx, &rows, selectAgent+" WHERE tenant_id = $1 ORDER BY name", tenantID); err != nil {
		return nil, apperrors.StorageError("list agents by tenant", err)
	}
	out := make([]*agent.RegisteredAgent, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) DeleteAgent(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return apperrors.StorageError("delete agent", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.NotFound("agent", id)
	}
	return nil
}
