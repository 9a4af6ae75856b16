package session

import (
	"testing"
	"time"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := New("tenant-1", "Implement OAuth2 login", "desc", TypeExecution, PriorityHigh, "Implement OAuth2", 3600, map[string]interface{}{"impl-01": map[string]interface{}{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestNew_RejectsGenericTitle(t *testing.T) {
	_, err := New("tenant-1", "task", "desc", TypeExecution, PriorityHigh, "do a thing", 3600, nil)
	if err == nil {
		t.Fatal("New() with generic title: want error")
	}
}

func TestNew_RejectsOutOfRangeDuration(t *testing.T) {
	_, err := New("tenant-1", "Implement OAuth2", "desc", TypeExecution, PriorityHigh, "prompt", 10, nil)
	if err == nil {
		t.Fatal("New() with duration below minimum: want error")
	}
}

func TestTransitionTo_Invalid(t *testing.T) {
	s := newTestSession(t)
	_, err := s.TransitionTo(StatusRunning, time.Now())
	if err == nil {
		t.Fatal("TransitionTo(running) from pending directly: want error")
	}
	if apperrors.CodeOf(err) != apperrors.CodeInvalidTransition {
		t.Errorf("CodeOf(err) = %v, want CodeInvalidTransition", apperrors.CodeOf(err))
	}
}

func TestTransitionTo_BumpsVersionAndEmitsEvent(t *testing.T) {
	s := newTestSession(t)
	startVersion := s.Version

	events, err := s.TransitionTo(StatusQueued, time.Now())
	if err != nil {
		t.Fatalf("TransitionTo() error = %v", err)
	}
	if s.Version != startVersion+1 {
		t.Errorf("Version = %d, want %d", s.Version, startVersion+1)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].EventName() != "SessionStatusChanged" {
		t.Errorf("EventName() = %q, want SessionStatusChanged", events[0].EventName())
	}
}

func TestStartExecution_FromPendingGoesThroughQueued(t *testing.T) {
	s := newTestSession(t)
	events, err := s.StartExecution(time.Now())
	if err != nil {
		t.Fatalf("StartExecution() error = %v", err)
	}
	if s.Status != StatusRunning {
		t.Errorf("Status = %v, want running", s.Status)
	}
	if len(events) != 2 {
		t.Errorf("len(events) = %d, want 2 (queued + running)", len(events))
	}
}

func TestIsRecoverable(t *testing.T) {
	s := newTestSession(t)
	s.Status = StatusFailed

	if s.IsRecoverable(0) {
		t.Error("IsRecoverable(0 checkpoints) = true, want false")
	}
	if !s.IsRecoverable(1) {
		t.Error("IsRecoverable(1 checkpoint) = false, want true")
	}

	s.Metadata["retry_count"] = 3
	if s.IsRecoverable(1) {
		t.Error("IsRecoverable() at retry cap = true, want false")
	}
}

func TestHealthScore(t *testing.T) {
	s := newTestSession(t)
	now := time.Now()

	s.Status = StatusCompleted
	if got := s.HealthScore(now, time.Time{}); got != 1.0 {
		t.Errorf("HealthScore(completed) = %v, want 1.0", got)
	}

	s.Status = StatusFailed
	if got := s.HealthScore(now, time.Time{}); got != 0.0 {
		t.Errorf("HealthScore(failed) = %v, want 0.0", got)
	}

	s.Status = StatusRunning
	s.MaxDurationSeconds = 100
	started := now.Add(-95 * time.Second)
	if got := s.HealthScore(now, started); got != 0.3 {
		t.Errorf("HealthScore(running, 95%% elapsed) = %v, want 0.3", got)
	}
}

func TestIsTimedOut(t *testing.T) {
	s := newTestSession(t)
	s.Status = StatusRunning
	s.MaxDurationSeconds = 60
	started := time.Now().Add(-61 * time.Second)

	if !s.IsTimedOut(time.Now(), started) {
		t.Error("IsTimedOut() = false, want true")
	}
}

func TestCheckpointLog_SequenceStartsAtOneAndIncreases(t *testing.T) {
	log := NewCheckpointLog("sess-1")
	cp1 := log.Append(map[string]interface{}{"step": 1}, nil, time.Now())
	cp2 := log.Append(map[string]interface{}{"step": 2}, nil, time.Now())

	if cp1.Sequence != 1 {
		t.Errorf("first checkpoint Sequence = %d, want 1", cp1.Sequence)
	}
	if cp2.Sequence != 2 {
		t.Errorf("second checkpoint Sequence = %d, want 2", cp2.Sequence)
	}
}
