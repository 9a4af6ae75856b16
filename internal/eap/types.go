// Package eap implements the External Agent Protocol client: the
// orchestrator-side HTTP caller that hands a session's work to an
// externally registered agent and polls its health, plus the JWT auth
// tokens issued to those agents at registration.
package eap

import "time"

// TaskAssignment is the wire body the orchestrator POSTs to
// {endpoint_url}/task.
type TaskAssignment struct {
	TaskID       string                 `json:"task_id"`
	SessionID    string                 `json:"session_id"`
	TaskType     string                 `json:"task_type"`
	Context      map[string]interface{} `json:"context,omitempty"`
	InputData    map[string]interface{} `json:"input_data,omitempty"`
	Requirements map[string]interface{} `json:"requirements,omitempty"`
}

// TaskResult is the wire body an external agent returns from {endpoint_url}/task.
type TaskResult struct {
	TaskID          string                 `json:"task_id"`
	Status          string                 `json:"status"` // "completed" | "failed"
	Artifacts       []string               `json:"artifacts,omitempty"`
	OutputData      map[string]interface{} `json:"output_data,omitempty"`
	ExecutionTimeMS int64                  `json:"execution_time_ms"`
	TokensUsed      int                    `json:"tokens_used"`
	CostUSD         float64                `json:"cost_usd"`
	ErrorMessage    string                 `json:"error_message,omitempty"`
}

// HealthStatus is the external agent's self-reported liveness.
type HealthStatus string

const (
	HealthOnline   HealthStatus = "online"
	HealthDegraded HealthStatus = "degraded"
	HealthOffline  HealthStatus = "offline"
)

// Heartbeat is the wire body an external agent returns from
// {endpoint_url}/health.
type Heartbeat struct {
	Status      HealthStatus           `json:"status"`
	CurrentLoad float64                `json:"current_load"`
	Metrics     map[string]interface{} `json:"metrics,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}
