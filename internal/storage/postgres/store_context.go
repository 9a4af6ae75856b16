package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	ctxdomain "github.com/R3E-Network/agent-orchestrator/internal/domain/context"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
)

type contextRow struct {
	ID        string         `db:"id"`
	TenantID  string         `db:"tenant_id"`
	SessionID sql.NullString `db:"session_id"`
	AgentID   sql.NullString `db:"agent_id"`
	Scope     string         `db:"scope"`
	Data      []byte         `db:"data"`
	Version   int            `db:"version"`
	CreatedBy string         `db:"created_by"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
	Metadata  []byte         `db:"metadata"`
	ExpiresAt sql.NullTime   `db:"expires_at"`
}

func (r contextRow) toDomain() *ctxdomain.Context {
	c := &ctxdomain.Context{
		ID:        r.ID,
		TenantID:  r.TenantID,
		Scope:     ctxdomain.Scope(r.Scope),
		Data:      map[string]interface{}{},
		Version:   r.Version,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Metadata:  map[string]interface{}{},
	}
	if r.SessionID.Valid {
		c.SessionID = r.SessionID.String
	}
	if r.AgentID.Valid {
		c.AgentID = r.AgentID.String
	}
	if r.ExpiresAt.Valid {
		v := r.ExpiresAt.Time
		c.ExpiresAt = &v
	}
	if len(r.Data) > 0 {
		_ = json.Unmarshal(r.Data, &c.Data)
	}
	if len(r.Metadata) > 0 {
		_ = json.Unmarshal(r.Metadata, &c.Metadata)
	}
	return c
}

const selectContext = `
	SELECT id, tenant_id, session_id, agent_id, scope, data, version,
		created_by, created_at, updated_at, metadata, expires_at
	FROM contexts`

func (s *Store) CreateContext(ctx context.Context, c *ctxdomain.Context) error {
	data, err := jsonOf(c.Data)
	if err != nil {
		return err
	}
	metadata, err := jsonOf(c.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contexts (
			id, tenant_id, session_id, agent_id, scope, data, version,
			created_by, created_at, updated_at, metadata, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID, c.TenantID, nullableString(c.SessionID), nullableString(c.AgentID),
		string(c.Scope), data, c.Version, c.CreatedBy, c.CreatedAt, c.UpdatedAt,
		metadata, c.ExpiresAt,
	)
	if err != nil {
		return apperrors.StorageError("create context", err)
	}
	return nil
}

func (s *Store) UpdateContext(ctx context.Context, c *ctxdomain.Context) error {
	data, err := jsonOf(c.Data)
	if err != nil {
		return err
	}
	metadata, err := jsonOf(c.Metadata)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE contexts SET scope = $2, data = $3, version = $4, updated_at = $5,
			metadata = $6, expires_at = $7
		WHERE id = $1`,
		c.ID, string(c.Scope), data, c.Version, c.UpdatedAt, metadata, c.ExpiresAt,
	)
	if err != nil {
		return apperrors.StorageError("update context", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.NotFound("context", c.ID)
	}
	return nil
}

func (s *Store) GetContext(ctx context.Context, id string) (*ctxdomain.Context, error) {
	var row contextRow
	if err := s.db.GetContext(ctx, &row, selectContext+" WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound("context", id)
		}
		return nil, apperrors.StorageError("get context", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListContextsByScope(ctx context.Context, tenantID string, scope ctxdomain.Scope, ownerID string) ([]*ctxdomain.Context, error) {
	query := selectContext + " WHERE tenant_id = $1 AND scope = $2"
	args := []interface{}{tenantID, string(scope)}
	switch scope {
	case ctxdomain.ScopeSession:
		query += " AND session_id = $3"
		args = append(args, ownerID)
	case ctxdomain.ScopeAgent:
		query += " AND agent_id = $3"
		args = append(args, ownerID)
	}

	var rows []contextRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.StorageError("list contexts by scope", err)
	}
	out := make([]*ctxdomain.Context, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) DeleteExpiredContexts(ctx context.Context, before time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM contexts WHERE expires_at IS NOT NULL AND expires_at < $1`, before)
	if err != nil {
		return 0, apperrors.StorageError("delete expired contexts", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

func nullableString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
