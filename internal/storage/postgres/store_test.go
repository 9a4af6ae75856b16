package postgres

import (
	"testing"

	"github.com/R3E-Network/agent-orchestrator/internal/domain/session"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/tenant"
)

func TestStoreIntegration_SessionLifecycle(t *testing.T) {
	store, ctx := newTestStore(t)

	ten, err := tenant.New("Acme", "acme", 10, 1000000)
	if err != nil {
		t.Fatalf("tenant.New() error = %v", err)
	}
	if err := store.CreateTenant(ctx, ten); err != nil {
		t.Fatalf("CreateTenant() error = %v", err)
	}

	sess, err := session.New(ten.ID, "implement billing export", "desc", session.TypeExecution,
		session.PriorityMedium, "export billing records to csv", 3600, nil)
	if err != nil {
		t.Fatalf("session.New() error = %v", err)
	}
	if err := store.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	fetched, err := store.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if fetched.Title != sess.Title || fetched.Status != session.StatusPending {
		t.Fatalf("fetched session = %+v, want matching title and pending status", fetched)
	}

	events, err := sess.StartExecution(fetched.StatusUpdatedAt)
	if err != nil {
		t.Fatalf("StartExecution() error = %v", err)
	}
	if len(events) == 0 {
		t.Fatal("StartExecution() produced no events")
	}
	if err := store.UpdateSession(ctx, sess); err != nil {
		t.Fatalf("UpdateSession() error = %v", err)
	}

	updated, err := store.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession() after update error = %v", err)
	}
	if updated.Status != session.StatusRunning {
		t.Fatalf("updated.Status = %v, want running", updated.Status)
	}

	count, err := store.CountActiveSessions(ctx, ten.ID)
	if err != nil {
		t.Fatalf("CountActiveSessions() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("CountActiveSessions() = %d, want 1", count)
	}
}
