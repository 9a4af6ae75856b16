package executor

import (
	"context"
	"time"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
)

const defaultPollInterval = 500 * time.Millisecond

// InternalDispatcher implements AgentDispatcher over a native ExecutionPort:
// create an execution, optionally append steering prompts, then poll until
// the execution reaches a terminal status or the context deadline fires.
type InternalDispatcher struct {
	port         ExecutionPort
	pollInterval time.Duration
}

// NewInternalDispatcher builds an InternalDispatcher over port, polling
// every pollInterval (defaulting to 500ms if non-positive).
func NewInternalDispatcher(port ExecutionPort, pollInterval time.Duration) *InternalDispatcher {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &InternalDispatcher{port: port, pollInterval: pollInterval}
}

// Dispatch creates a native execution for req, appends an additional prompt
// if one was supplied, and polls until the execution is idle, completed, or
// failed, or until ctx is done.
func (d *InternalDispatcher) Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error) {
	prompt, _ := req.InputData["initial_prompt"].(string)
	executionID, err := d.port.CreateExecution(ctx, req.SessionID, prompt)
	if err != nil {
		return DispatchResult{}, apperrors.Internal("create internal execution", err)
	}

	if req.AdditionalPrompt != "" {
		if err := d.port.AppendPrompt(ctx, executionID, req.AdditionalPrompt); err != nil {
			return DispatchResult{}, apperrors.Internal("append additional prompt", err)
		}
	}

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		status, err := d.port.Status(ctx, executionID)
		if err != nil {
			return DispatchResult{}, apperrors.Internal("poll internal execution status", err)
		}

		switch status {
		case ExecutionCompleted, ExecutionIdle:
			diff, output, err := d.port.Result(ctx, executionID)
			if err != nil {
				return DispatchResult{}, apperrors.Internal("read internal execution result", err)
			}
			if output == nil {
				output = map[string]interface{}{}
			}
			output["diff"] = diff
			return DispatchResult{Status: "completed", OutputData: output, SuccessRate: 1.0, Confidence: 0.9}, nil
		case ExecutionFailed:
			_, output, _ := d.port.Result(ctx, executionID)
			msg, _ := output["error"].(string)
			return DispatchResult{Status: "failed", ErrorMessage: msg, Retryable: true}, nil
		}

		select {
		case <-ctx.Done():
			return DispatchResult{}, apperrors.Timeout("internal execution poll")
		case <-ticker.C:
		}
	}
}
