package session

import "time"

// Metrics is a 1:1 companion to a Session, tracking timing, resource usage,
// counters, and quality data accumulated as the session executes.
type Metrics struct {
	SessionID string

	QueuedAt    *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	FailedAt    *time.Time

	CPUSecondsUsed float64
	MemoryMBUsed   int

	APICalls       int
	APIErrors      int
	Retries        int
	CheckpointsMade int

	SuccessRate float64
	Confidence  float64

	Result map[string]interface{}
	Error  map[string]interface{}

	Warnings     []string
	EstimatedCostUSD float64
}

// NewMetrics creates a zero-value Metrics record for a just-created session.
func NewMetrics(sessionID string) *Metrics {
	return &Metrics{SessionID: sessionID}
}

// MarkQueued stamps the queued timestamp, if not already set.
func (m *Metrics) MarkQueued(at time.Time) {
	if m.QueuedAt == nil {
		m.QueuedAt = &at
	}
}

// MarkStarted stamps the started timestamp, if not already set.
func (m *Metrics) MarkStarted(at time.Time) {
	if m.StartedAt == nil {
		m.StartedAt = &at
	}
}

// MarkCompleted stamps the completed timestamp and records success data.
func (m *Metrics) MarkCompleted(at time.Time, result map[string]interface{}, successRate, confidence float64) {
	m.CompletedAt = &at
	m.Result = result
	m.SuccessRate = successRate
	m.Confidence = confidence
}

// MarkFailed stamps the failed timestamp and records error data.
func (m *Metrics) MarkFailed(at time.Time, errBlob map[string]interface{}) {
	m.FailedAt = &at
	m.Error = errBlob
}

// RecordAPICall increments the call counter, and the error counter if the
// call failed. Counter-only fields may be updated without a lock.
func (m *Metrics) RecordAPICall(success bool) {
	m.APICalls++
	if !success {
		m.APIErrors++
	}
}

// Duration returns elapsed wall-clock time between start and completion (or
// failure), or zero if either endpoint is unset.
func (m *Metrics) Duration() time.Duration {
	end := m.CompletedAt
	if end == nil {
		end = m.FailedAt
	}
	if m.StartedAt == nil || end == nil {
		return 0
	}
	return end.Sub(*m.StartedAt)
}
