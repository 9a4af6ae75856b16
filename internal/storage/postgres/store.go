// Package postgres implements the internal/storage ports on PostgreSQL via
// sqlx, following the teacher's Store-struct-plus-interface-assertions
// shape (internal/app/storage/postgres/store.go): one struct wrapping a
// single database handle, JSON-marshaled metadata columns, and
// uuid.NewString() identifiers stamped before insert.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/agent"
	ctxdomain "github.com/R3E-Network/agent-orchestrator/internal/domain/context"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/session"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/task"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/tenant"
	"github.com/R3E-Network/agent-orchestrator/internal/storage"
	"github.com/R3E-Network/agent-orchestrator/internal/storage/postgres/migrations"
)

// Store implements the storage ports backed by PostgreSQL, via sqlx's
// thin extension of database/sql.
type Store struct {
	db *sqlx.DB
}

var _ storage.SessionStore = (*Store)(nil)
var _ storage.TaskStore = (*Store)(nil)
var _ storage.TenantStore = (*Store)(nil)
var _ storage.ContextStore = (*Store)(nil)
var _ storage.AgentStore = (*Store)(nil)

// New wraps an already-open sqlx handle (driverName "postgres", via lib/pq).
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open dials dataSourceName with the lib/pq driver, applies embedded
// migrations, and wraps the handle in a Store.
func Open(ctx context.Context, dataSourceName string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dataSourceName)
	if err != nil {
		return nil, apperrors.StorageError("connect", err)
	}
	if err := migrations.Apply(ctx, db.DB); err != nil {
		return nil, apperrors.StorageError("apply migrations", err)
	}
	return New(db), nil
}

func jsonOf(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, apperrors.Internal("marshal storage payload", err)
	}
	return b, nil
}

// --- SessionStore ------------------------------------------------------------

func (s *Store) CreateSession(ctx context.Context, sess *session.Session) error {
	agentConfig, err := jsonOf(sess.AgentConfig)
	if err != nil {
		return err
	}
	metadata, err := jsonOf(sess.Metadata)
	if err != nil {
		return err
	}
	tags, err := jsonOf(sess.Tags)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, tenant_id, title, description, type, priority, status,
			status_updated_at, parent_id, agent_config, model_id, initial_prompt,
			max_duration_seconds, cpu_limit, memory_limit_mb, tags, metadata,
			version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20
		)`,
		sess.ID, sess.TenantID, sess.Title, sess.Description, string(sess.Type),
		string(sess.Priority), sess.Status.String(), sess.StatusUpdatedAt,
		sess.ParentID, agentConfig, sess.ModelID, sess.InitialPrompt,
		sess.MaxDurationSeconds, sess.CPULimit, sess.MemoryLimitMB, tags,
		metadata, sess.Version, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return apperrors.StorageError("create session", err)
	}
	return nil
}

func (s *Store) UpdateSession(ctx context.Context, sess *session.Session) error {
	agentConfig, err := jsonOf(sess.AgentConfig)
	if err != nil {
		return err
	}
	metadata, err := jsonOf(sess.Metadata)
	if err != nil {
		return err
	}
	tags, err := jsonOf(sess.Tags)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET
			title = $2, description = $3, status = $4, status_updated_at = $5,
			agent_config = $6, tags = $7, metadata = $8, version = $9,
			updated_at = $10, deleted_at = $11
		WHERE id = $1`,
		sess.ID, sess.Title, sess.Description, sess.Status.String(),
		sess.StatusUpdatedAt, agentConfig, tags, metadata, sess.Version,
		sess.UpdatedAt, sess.DeletedAt,
	)
	if err != nil {
		return apperrors.StorageError("update session", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.NotFound("session", sess.ID)
	}
	return nil
}

type sessionRow struct {
	ID                 string         `db:"id"`
	TenantID           string         `db:"tenant_id"`
	Title              string         `db:"title"`
	Description        string         `db:"description"`
	Type               string         `db:"type"`
	Priority           string         `db:"priority"`
	Status             string         `db:"status"`
	StatusUpdatedAt     time.Time      `db:"status_updated_at"`
	ParentID            sql.NullString `db:"parent_id"`
	AgentConfig         []byte         `db:"agent_config"`
	ModelID             sql.NullString `db:"model_id"`
	InitialPrompt       string         `db:"initial_prompt"`
	MaxDurationSeconds  int            `db:"max_duration_seconds"`
	CPULimit            sql.NullFloat64 `db:"cpu_limit"`
	MemoryLimitMB       sql.NullInt64  `db:"memory_limit_mb"`
	Tags                []byte         `db:"tags"`
	Metadata            []byte         `db:"metadata"`
	Version             int            `db:"version"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
	DeletedAt           sql.NullTime   `db:"deleted_at"`
}

func (r sessionRow) toDomain() (*session.Session, error) {
	status, err := storage.ParseSessionStatus(r.Status)
	if err != nil {
		return nil, err
	}
	sess := &session.Session{
		ID:                 r.ID,
		TenantID:           r.TenantID,
		Title:              r.Title,
		Description:        r.Description,
		Type:               session.Type(r.Type),
		Priority:           session.Priority(r.Priority),
		Status:             status,
		StatusUpdatedAt:    r.StatusUpdatedAt,
		InitialPrompt:      r.InitialPrompt,
		MaxDurationSeconds: r.MaxDurationSeconds,
		Version:            r.Version,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if r.ParentID.Valid {
		v := r.ParentID.String
		sess.ParentID = &v
	}
	if r.ModelID.Valid {
		v := r.ModelID.String
		sess.ModelID = &v
	}
	if r.CPULimit.Valid {
		v := r.CPULimit.Float64
		sess.CPULimit = &v
	}
	if r.MemoryLimitMB.Valid {
		v := int(r.MemoryLimitMB.Int64)
		sess.MemoryLimitMB = &v
	}
	if r.DeletedAt.Valid {
		v := r.DeletedAt.Time
		sess.DeletedAt = &v
	}
	if len(r.AgentConfig) > 0 {
		_ = json.Unmarshal(r.AgentConfig, &sess.AgentConfig)
	}
	if len(r.Tags) > 0 {
		_ = json.Unmarshal(r.Tags, &sess.Tags)
	}
	if len(r.Metadata) > 0 {
		_ = json.Unmarshal(r.Metadata, &sess.Metadata)
	}
	return sess, nil
}

const selectSession = `
	SELECT id, tenant_id, title, description, type, priority, status,
		status_updated_at, parent_id, agent_config, model_id, initial_prompt,
		max_duration_seconds, cpu_limit, memory_limit_mb, tags, metadata,
		version, created_at, updated_at, deleted_at
	FROM sessions`

func (s *Store) GetSession(ctx context.Context, id string) (*session.Session, error) {
	var row sessionRow
	if err := s.db.GetContext(ctx, &row, selectSession+" WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound("session", id)
		}
		return nil, apperrors.StorageError("get session", err)
	}
	return row.toDomain()
}

func (s *Store) ListSessionsByTenant(ctx context.Context, tenantID string, includeDeleted bool) ([]*session.Session, error) {
	query := selectSession + " WHERE tenant_id = $1"
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}
	query += " ORDER BY created_at"

	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows, query, tenantID); err != nil {
		return nil, apperrors.StorageError("list sessions", err)
	}
	return sessionRowsToDomain(rows)
}

func (s *Store) ListChildSessions(ctx context.Context, parentID string) ([]*session.Session, error) {
	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows, selectSession+" WHERE parent_id = $1 ORDER BY created_at", parentID); err != nil {
		return nil, apperrors.StorageError("list child sessions", err)
	}
	return sessionRowsToDomain(rows)
}

func sessionRowsToDomain(rows []sessionRow) ([]*session.Session, error) {
	out := make([]*session.Session, 0, len(rows))
	for _, r := range rows {
		sess, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *Store) CountActiveSessions(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM sessions
		WHERE tenant_id = $1 AND deleted_at IS NULL
		AND status IN ('pending', 'queued', 'running', 'paused', 'degraded')`,
		tenantID)
	if err != nil {
		return 0, apperrors.StorageError("count active sessions", err)
	}
	return count, nil
}

func (s *Store) AppendCheckpoint(ctx context.Context, cp session.Checkpoint) error {
	data, err := jsonOf(cp.Data)
	if err != nil {
		return err
	}
	metadata, err := jsonOf(cp.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_checkpoints (session_id, sequence, data, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		cp.SessionID, cp.Sequence, data, metadata, cp.CreatedAt,
	)
	if err != nil {
		return apperrors.StorageError("append checkpoint", err)
	}
	return nil
}

type checkpointRow struct {
	SessionID string    `db:"session_id"`
	Sequence  int       `db:"sequence"`
	Data      []byte    `db:"data"`
	Metadata  []byte    `db:"metadata"`
	CreatedAt time.Time `db:"created_at"`
}

func (r checkpointRow) toDomain() session.Checkpoint {
	cp := session.Checkpoint{SessionID: r.SessionID, Sequence: r.Sequence, CreatedAt: r.CreatedAt}
	if len(r.Data) > 0 {
		_ = json.Unmarshal(r.Data, &cp.Data)
	}
	if len(r.Metadata) > 0 {
		_ = json.Unmarshal(r.Metadata, &cp.Metadata)
	}
	return cp
}

func (s *Store) ListCheckpoints(ctx context.Context, sessionID string, limit int) ([]session.Checkpoint, error) {
	query := `SELECT session_id, sequence, data, metadata, created_at
		FROM session_checkpoints WHERE session_id = $1 ORDER BY sequence`
	args := []interface{}{sessionID}
	if limit > 0 {
		query += " DESC LIMIT $2"
		args = append(args, limit)
	}

	var rows []checkpointRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.StorageError("list checkpoints", err)
	}
	out := make([]session.Checkpoint, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	if limit > 0 {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (s *Store) LatestCheckpoint(ctx context.Context, sessionID string) (session.Checkpoint, error) {
	var row checkpointRow
	err := s.db.GetContext(ctx, &row, `
		SELECT session_id, sequence, data, metadata, created_at
		FROM session_checkpoints WHERE session_id = $1
		ORDER BY sequence DESC LIMIT 1`, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return session.Checkpoint{}, apperrors.NotFound("checkpoint", sessionID)
		}
		return session.Checkpoint{}, apperrors.StorageError("latest checkpoint", err)
	}
	return row.toDomain(), nil
}

func (s *Store) PruneCheckpoints(ctx context.Context, sessionID string, keepLast int) (int, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM session_checkpoints
		WHERE session_id = $1 AND sequence NOT IN (
			SELECT sequence FROM session_checkpoints
			WHERE session_id = $1 ORDER BY sequence DESC LIMIT $2
		)`, sessionID, keepLast)
	if err != nil {
		return 0, apperrors.StorageError("prune checkpoints", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.StorageError("prune checkpoints", err)
	}
	return int(n), nil
}

type metricsRow struct {
	SessionID        string       `db:"session_id"`
	QueuedAt         sql.NullTime `db:"queued_at"`
	StartedAt        sql.NullTime `db:"started_at"`
	CompletedAt      sql.NullTime `db:"completed_at"`
	FailedAt         sql.NullTime `db:"failed_at"`
	CPUSecondsUsed   float64      `db:"cpu_seconds_used"`
	MemoryMBUsed     int          `db:"memory_mb_used"`
	APICalls         int          `db:"api_calls"`
	APIErrors        int          `db:"api_errors"`
	Retries          int          `db:"retries"`
	CheckpointsMade  int          `db:"checkpoints_made"`
	SuccessRate      float64      `db:"success_rate"`
	Confidence       float64      `db:"confidence"`
	Result           []byte       `db:"result"`
	Error            []byte       `db:"error"`
	Warnings         []byte       `db:"warnings"`
	EstimatedCostUSD float64      `db:"estimated_cost_usd"`
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (r metricsRow) toDomain() *session.Metrics {
	m := &session.Metrics{
		SessionID:        r.SessionID,
		QueuedAt:         nullTimePtr(r.QueuedAt),
		StartedAt:        nullTimePtr(r.StartedAt),
		CompletedAt:      nullTimePtr(r.CompletedAt),
		FailedAt:         nullTimePtr(r.FailedAt),
		CPUSecondsUsed:   r.CPUSecondsUsed,
		MemoryMBUsed:     r.MemoryMBUsed,
		APICalls:         r.APICalls,
		APIErrors:        r.APIErrors,
		Retries:          r.Retries,
		CheckpointsMade:  r.CheckpointsMade,
		SuccessRate:      r.SuccessRate,
		Confidence:       r.Confidence,
		EstimatedCostUSD: r.EstimatedCostUSD,
	}
	if len(r.Result) > 0 {
		_ = json.Unmarshal(r.Result, &m.Result)
	}
	if len(r.Error) > 0 {
		_ = json.Unmarshal(r.Error, &m.Error)
	}
	if len(r.Warnings) > 0 {
		_ = json.Unmarshal(r.Warnings, &m.Warnings)
	}
	return m
}

func (s *Store) SaveMetrics(ctx context.Context, m *session.Metrics) error {
	result, err := jsonOf(m.Result)
	if err != nil {
		return err
	}
	errBlob, err := jsonOf(m.Error)
	if err != nil {
		return err
	}
	warnings, err := jsonOf(m.Warnings)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_metrics (
			session_id, queued_at, started_at, completed_at, failed_at,
			cpu_seconds_used, memory_mb_used, api_calls, api_errors, retries,
			checkpoints_made, success_rate, confidence, result, error, warnings,
			estimated_cost_usd
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (session_id) DO UPDATE SET
			queued_at = EXCLUDED.queued_at,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			failed_at = EXCLUDED.failed_at,
			cpu_seconds_used = EXCLUDED.cpu_seconds_used,
			memory_mb_used = EXCLUDED.memory_mb_used,
			api_calls = EXCLUDED.api_calls,
			api_errors = EXCLUDED.api_errors,
			retries = EXCLUDED.retries,
			checkpoints_made = EXCLUDED.checkpoints_made,
			success_rate = EXCLUDED.success_rate,
			confidence = EXCLUDED.confidence,
			result = EXCLUDED.result,
			error = EXCLUDED.error,
			warnings = EXCLUDED.warnings,
			estimated_cost_usd = EXCLUDED.estimated_cost_usd`,
		m.SessionID, m.QueuedAt, m.StartedAt, m.CompletedAt, m.FailedAt,
		m.CPUSecondsUsed, m.MemoryMBUsed, m.APICalls, m.APIErrors, m.Retries,
		m.CheckpointsMade, m.SuccessRate, m.Confidence, result, errBlob, warnings,
		m.EstimatedCostUSD,
	)
	if err != nil {
		return apperrors.StorageError("save metrics", err)
	}
	return nil
}

func (s *Store) GetMetrics(ctx context.Context, sessionID string) (*session.Metrics, error) {
	var row metricsRow
	err := s.db.GetContext(ctx, &row, `
		SELECT session_id, queued_at, started_at, completed_at, failed_at,
			cpu_seconds_used, memory_mb_used, api_calls, api_errors, retries,
			checkpoints_made, success_rate, confidence, result, error, warnings,
			estimated_cost_usd
		FROM session_metrics WHERE session_id = $1`, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return session.NewMetrics(sessionID), nil
		}
		return nil, apperrors.StorageError("get metrics", err)
	}
	return row.toDomain(), nil
}

// --- TenantStore ---------------------------------------------------------------

func (s *Store) CreateTenant(ctx context.Context, t *tenant.Tenant) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, slug, max_concurrent_sessions, max_tokens_per_month, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Name, t.Slug, t.MaxConcurrentSessions, t.MaxTokensPerMonth, t.Active, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return apperrors.StorageError("create tenant", err)
	}
	return nil
}

func (s *Store) UpdateTenant(ctx context.Context, t *tenant.Tenant) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tenants SET name = $2, slug = $3, max_concurrent_sessions = $4,
			max_tokens_per_month = $5, active = $6, updated_at = $7
		WHERE id = $1`,
		t.ID, t.Name, t.Slug, t.MaxConcurrentSessions, t.MaxTokensPerMonth, t.Active, t.UpdatedAt,
	)
	if err != nil {
		return apperrors.StorageError("update tenant", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.NotFound("tenant", t.ID)
	}
	return nil
}

const selectTenant = `SELECT id, name, slug, max_concurrent_sessions, max_tokens_per_month, active, created_at, updated_at FROM tenants`

type tenantRow struct {
	ID                    string    `db:"id"`
	Name                  string    `db:"name"`
	Slug                  string    `db:"slug"`
	MaxConcurrentSessions int       `db:"max_concurrent_sessions"`
	MaxTokensPerMonth     int       `db:"max_tokens_per_month"`
	Active                bool      `db:"active"`
	CreatedAt             time.Time `db:"created_at"`
	UpdatedAt             time.Time `db:"updated_at"`
}

func (r tenantRow) toDomain() *tenant.Tenant {
	return &tenant.Tenant{
		ID:                    r.ID,
		Name:                  r.Name,
		Slug:                  r.Slug,
		MaxConcurrentSessions: r.MaxConcurrentSessions,
		MaxTokensPerMonth:     r.MaxTokensPerMonth,
		Active:                r.Active,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}

func (s *Store) GetTenant(ctx context.Context, id string) (*tenant.Tenant, error) {
	var row tenantRow
	if err := s.db.GetContext(ctx, &row, selectTenant+" WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound("tenant", id)
		}
		return nil, apperrors.StorageError("get tenant", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetTenantBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	var row tenantRow
	if err := s.db.GetContext(ctx, &row, selectTenant+" WHERE slug = $1", slug); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound("tenant", slug)
		}
		return nil, apperrors.StorageError("get tenant by slug", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListTenants(ctx context.Context) ([]*tenant.Tenant, error) {
	var rows []tenantRow
	if err := s.db.SelectContext(ctx, &rows, selectTenant+" ORDER BY created_at"); err != nil {
		return nil, apperrors.StorageError("list tenants", err)
	}
	out := make([]*tenant.Tenant, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}
