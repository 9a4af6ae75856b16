package tenancy

import (
	"context"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/tenant"
)

// TenantReader is the subset of storage.TenantStore quota enforcement
// needs.
type TenantReader interface {
	GetTenant(ctx context.Context, id string) (*tenant.Tenant, error)
}

// ActiveSessionCounter is the subset of storage.SessionStore quota
// enforcement needs.
type ActiveSessionCounter interface {
	CountActiveSessions(ctx context.Context, tenantID string) (int, error)
}

// QuotaEnforcer checks a tenant's concurrent-session quota before a new
// session is admitted, per spec.md §4.6: read max_concurrent_sessions,
// count active sessions from storage, reject if already at the limit.
type QuotaEnforcer struct {
	tenants  TenantReader
	sessions ActiveSessionCounter
}

// NewQuotaEnforcer builds a QuotaEnforcer over the given storage ports.
func NewQuotaEnforcer(tenants TenantReader, sessions ActiveSessionCounter) *QuotaEnforcer {
	return &QuotaEnforcer{tenants: tenants, sessions: sessions}
}

// CheckCanStartSession rejects with apperrors.Forbidden if tenantID is
// inactive, or with apperrors.QuotaExceeded if it is already at its
// concurrent-session ceiling.
func (q *QuotaEnforcer) CheckCanStartSession(ctx context.Context, tenantID string) error {
	t, err := q.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}

	active, err := q.sessions.CountActiveSessions(ctx, tenantID)
	if err != nil {
		return err
	}

	if !t.CanStartSession(active) {
		if !t.Active {
			return apperrors.Forbidden("tenant is not active")
		}
		return apperrors.QuotaExceeded(tenantID, "concurrent_sessions")
	}
	return nil
}
