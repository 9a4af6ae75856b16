package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestWithContext_AddsFields(t *testing.T) {
	logger := New("orchestrator", "debug", "json")
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	ctx := WithTraceID(context.Background(), "trace-123")
	ctx = WithTenantID(ctx, "tenant-abc")
	ctx = WithSessionID(ctx, "sess-1")

	logger.WithContext(ctx).Info("hello")

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if decoded["trace_id"] != "trace-123" {
		t.Errorf("trace_id = %v, want trace-123", decoded["trace_id"])
	}
	if decoded["tenant_id"] != "tenant-abc" {
		t.Errorf("tenant_id = %v, want tenant-abc", decoded["tenant_id"])
	}
	if decoded["session_id"] != "sess-1" {
		t.Errorf("session_id = %v, want sess-1", decoded["session_id"])
	}
	if decoded["service"] != "orchestrator" {
		t.Errorf("service = %v, want orchestrator", decoded["service"])
	}
}

func TestGetTraceID_AbsentReturnsEmpty(t *testing.T) {
	if got := GetTraceID(context.Background()); got != "" {
		t.Errorf("GetTraceID() = %q, want empty", got)
	}
}

func TestNewTraceID_Unique(t *testing.T) {
	a := NewTraceID()
	b := NewTraceID()
	if a == b {
		t.Errorf("NewTraceID() produced duplicate values: %q", a)
	}
}

func TestDefault_FallsBackWhenUninitialized(t *testing.T) {
	defaultLogger = nil
	logger := Default()
	if logger == nil {
		t.Fatal("Default() = nil")
	}
}
