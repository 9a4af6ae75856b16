// Package executor orchestrates a single session end-to-end: loading it,
// acquiring its execution lock, dispatching to an internal or external
// agent, and folding the outcome back into a completed or failed session.
package executor

import "context"

// AgentDispatcher sends a session's work to an agent and waits for the
// final result, whether the agent is an in-process native executor or a
// remote External Agent Protocol endpoint. Grounded on
// internal/app/services/automation.JobDispatcher: a single-method interface
// the orchestration loop depends on, with a func-adapter for tests.
type AgentDispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error)
}

// AgentDispatcherFunc adapts a plain function to an AgentDispatcher.
type AgentDispatcherFunc func(ctx context.Context, req DispatchRequest) (DispatchResult, error)

// Dispatch calls f.
func (f AgentDispatcherFunc) Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error) {
	return f(ctx, req)
}

// DispatchRequest carries everything an agent needs to execute one session,
// normalized whether the destination is the in-process executor or an EAP
// endpoint.
type DispatchRequest struct {
	SessionID        string
	TenantID         string
	TaskType         string
	AgentName        string
	Context          map[string]interface{}
	InputData        map[string]interface{}
	AdditionalPrompt string

	External    bool
	EndpointURL string
	AuthToken   string
}

// DispatchResult is the outcome of a dispatch, normalized from either the
// internal executor's final polled status or an EAPTaskResult.
type DispatchResult struct {
	Status       string // "completed" or "failed"
	Artifacts    []string
	OutputData   map[string]interface{}
	SuccessRate  float64
	Confidence   float64
	ErrorMessage string
	Retryable    bool
}

// ExecutionPort is the opaque native execution backend the internal
// dispatcher polls: create a run, optionally steer it with an additional
// prompt, and read back status and final result.
type ExecutionPort interface {
	CreateExecution(ctx context.Context, sessionID, initialPrompt string) (executionID string, err error)
	AppendPrompt(ctx context.Context, executionID, prompt string) error
	Status(ctx context.Context, executionID string) (ExecutionStatus, error)
	Result(ctx context.Context, executionID string) (diff string, outputData map[string]interface{}, err error)
}

// ExecutionStatus is the native execution's own status vocabulary, distinct
// from a session's.
type ExecutionStatus string

const (
	ExecutionIdle      ExecutionStatus = "idle"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)
