package eapmockserver

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/R3E-Network/agent-orchestrator/internal/eap"
	"github.com/R3E-Network/agent-orchestrator/internal/executor"
	"github.com/R3E-Network/agent-orchestrator/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New("eapmock-test", "error", "text")
}

func TestServer_DispatchRoundTripsThroughRealEAPClient(t *testing.T) {
	mock := New(testLogger())
	mock.SetTaskHandler(func(a eap.TaskAssignment) eap.TaskResult {
		return eap.TaskResult{TaskID: a.TaskID, Status: "completed", OutputData: map[string]interface{}{"ok": true}}
	})
	httpSrv := httptest.NewServer(mock.Router())
	defer httpSrv.Close()

	client := eap.New(testLogger(), 0)
	result, err := client.Dispatch(context.Background(), executor.DispatchRequest{
		SessionID:   "sess-1",
		TaskType:    "execution",
		EndpointURL: httpSrv.URL,
		AuthToken:   "tok-123",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if result.Status != "completed" {
		t.Fatalf("result.Status = %q, want completed", result.Status)
	}
	if mock.LastAgentToken() != "tok-123" {
		t.Fatalf("LastAgentToken() = %q, want tok-123", mock.LastAgentToken())
	}
	tasks := mock.ReceivedTasks()
	if len(tasks) != 1 || tasks[0].SessionID != "sess-1" {
		t.Fatalf("ReceivedTasks() = %+v", tasks)
	}
}

func TestServer_DispatchSurfacesFailedStatus(t *testing.T) {
	mock := New(testLogger())
	mock.SetTaskHandler(func(a eap.TaskAssignment) eap.TaskResult {
		return eap.TaskResult{TaskID: a.TaskID, Status: "failed", ErrorMessage: "boom"}
	})
	httpSrv := httptest.NewServer(mock.Router())
	defer httpSrv.Close()

	client := eap.New(testLogger(), 0)
	result, err := client.Dispatch(context.Background(), executor.DispatchRequest{
		SessionID:   "sess-2",
		EndpointURL: httpSrv.URL,
		AuthToken:   "tok-456",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if result.Status != "failed" || !result.Retryable {
		t.Fatalf("result = %+v, want failed+retryable", result)
	}
}

func TestServer_HealthCheckReportsScriptedStatus(t *testing.T) {
	mock := New(testLogger())
	mock.SetHealth(eap.Heartbeat{Status: eap.HealthDegraded, CurrentLoad: 0.9, Timestamp: time.Now().UTC()})
	httpSrv := httptest.NewServer(mock.Router())
	defer httpSrv.Close()

	client := eap.New(testLogger(), 0)
	hb := client.HealthCheck(context.Background(), httpSrv.URL)
	if hb.Status != eap.HealthDegraded {
		t.Fatalf("hb.Status = %q, want degraded", hb.Status)
	}
}
