package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestMetrics_RecordSessionStartIncrementsCounter(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordSessionStart("tenant-1", "execution")
	got := counterValue(t, m.SessionsStarted.WithLabelValues("tenant-1", "execution"))
	if got != 1 {
		t.Fatalf("SessionsStarted = %v, want 1", got)
	}
}

func TestMetrics_RecordSessionTerminalObservesDuration(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordSessionTerminal("tenant-1", "completed", 42*time.Second)
	got := counterValue(t, m.SessionsCompleted.WithLabelValues("tenant-1", "completed"))
	if got != 1 {
		t.Fatalf("SessionsCompleted = %v, want 1", got)
	}
}

func TestMetrics_RecordLockWaitOnlyCountsContentionWhenFlagged(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordLockWait("execution", 10*time.Millisecond, false)
	m.RecordLockWait("execution", 20*time.Millisecond, true)

	got := counterValue(t, m.LockContention.WithLabelValues("execution"))
	if got != 1 {
		t.Fatalf("LockContention = %v, want 1", got)
	}
}

func TestMetrics_SetActiveSessionsSetsGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetActiveSessions("tenant-1", 3)

	var dm dto.Metric
	if err := m.ActiveSessions.WithLabelValues("tenant-1").Write(&dm); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if dm.GetGauge().GetValue() != 3 {
		t.Fatalf("ActiveSessions = %v, want 3", dm.GetGauge().GetValue())
	}
}
