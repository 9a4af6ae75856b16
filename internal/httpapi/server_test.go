package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/session"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/tenant"
	"github.com/R3E-Network/agent-orchestrator/internal/executor"
	"github.com/R3E-Network/agent-orchestrator/internal/logging"
	"github.com/R3E-Network/agent-orchestrator/internal/storage/memory"
	"github.com/R3E-Network/agent-orchestrator/internal/tenancy"
)

type fakeLocker struct{}

func (fakeLocker) WithLock(ctx context.Context, resource, owner string, timeout, leaseTTL time.Duration, priority int, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (fakeLocker) StartAutoRenew(ctx context.Context, resource, owner string, leaseTTL time.Duration) func() {
	return func() {}
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	store := memory.New()
	ten, err := tenant.New("Acme", "acme", 5, 1000)
	if err != nil {
		t.Fatalf("tenant.New() error = %v", err)
	}
	if err := store.CreateTenant(context.Background(), ten); err != nil {
		t.Fatalf("CreateTenant() error = %v", err)
	}

	quota := tenancy.NewQuotaEnforcer(store, store)
	logger := logging.New("httpapi-test", "error", "text")
	internal := executor.AgentDispatcherFunc(func(ctx context.Context, req executor.DispatchRequest) (executor.DispatchResult, error) {
		return executor.DispatchResult{Status: "completed", SuccessRate: 1, Confidence: 1}, nil
	})
	exec := executor.New(store, quota, fakeLocker{}, logger, internal, nil)
	return New(exec, logger), ten.ID
}

func TestServer_CreateSessionRequiresTenantHeader(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestServer_CreateSessionAndExecute(t *testing.T) {
	srv, tenantID := newTestServer(t)

	body, _ := json.Marshal(map[string]interface{}{
		"title":          "Implement widget feature",
		"type":           session.TypeExecution,
		"priority":       session.PriorityMedium,
		"initial_prompt": "do the thing",
		"agent_config":   map[string]interface{}{"claude": map[string]interface{}{}},
	})
	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tenantHeader, tenantID)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var created map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal create response: %v", err)
	}
	sessionID, _ := created["id"].(string)
	if sessionID == "" {
		t.Fatal("created session has no id")
	}

	execReq := httptest.NewRequest(http.MethodPost, "/sessions/"+sessionID+"/execute", nil)
	execReq.Header.Set(tenantHeader, tenantID)
	execRec := httptest.NewRecorder()
	srv.Router().ServeHTTP(execRec, execReq)
	if execRec.Code != http.StatusOK {
		t.Fatalf("execute status = %d, body = %s", execRec.Code, execRec.Body.String())
	}

	var executed map[string]interface{}
	if err := json.Unmarshal(execRec.Body.Bytes(), &executed); err != nil {
		t.Fatalf("unmarshal execute response: %v", err)
	}
	if executed["status"] != session.StatusCompleted.String() {
		t.Fatalf("status = %v, want %s", executed["status"], session.StatusCompleted.String())
	}
}

func TestServer_GetSessionNotFound(t *testing.T) {
	srv, tenantID := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/sessions/does-not-exist", nil)
	req.Header.Set(tenantHeader, tenantID)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != apperrors.HTTPStatus(apperrors.NotFound("session", "does-not-exist")) {
		t.Fatalf("status = %d, want %d", rec.Code, apperrors.HTTPStatus(apperrors.NotFound("session", "does-not-exist")))
	}
}
