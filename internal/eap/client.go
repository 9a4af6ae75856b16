package eap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
	"github.com/R3E-Network/agent-orchestrator/internal/executor"
	"github.com/R3E-Network/agent-orchestrator/internal/logging"
	"github.com/R3E-Network/agent-orchestrator/internal/resilience"
)

const (
	defaultTimeout   = 30 * time.Second
	maxRetryAttempts = 3
)

// Client is the orchestrator-side External Agent Protocol caller. It
// implements internal/executor.AgentDispatcher so the session executor can
// dispatch to a registered external agent the same way it dispatches
// internally. Grounded on the teacher's
// infrastructure/globalsigner/client.Client: an http.Client wrapped in a
// small Config, one breaker per remote identity rather than one global
// breaker, JSON request/response bodies.
type Client struct {
	httpClient *http.Client
	logger     *logging.Logger

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

var _ executor.AgentDispatcher = (*Client)(nil)

// New builds a Client. A nil logger is replaced with the package default. A
// non-positive timeout falls back to defaultTimeout; callers normally pass
// the configured EAP call deadline (spec default 30s) through here so the
// overall per-call budget is actually tunable rather than hardcoded.
func New(logger *logging.Logger, timeout time.Duration) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		breakers:   map[string]*resilience.CircuitBreaker{},
	}
}

// breakerFor returns (creating if necessary) the circuit breaker scoped to
// endpointURL. Scoping per endpoint, rather than one breaker for the whole
// client, means one misbehaving agent's transport failures never trip
// dispatch to every other external agent.
func (c *Client) breakerFor(endpointURL string) *resilience.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.breakers[endpointURL]
	if !ok {
		cb = resilience.New(resilience.StrictEAPConfig(c.logger))
		c.breakers[endpointURL] = cb
	}
	return cb
}

// Dispatch sends req to its EndpointURL's /task route, retrying transport
// failures and 5xx responses with exponential backoff, and folds the
// EAPTaskResult back into an executor.DispatchResult. A tripped circuit
// breaker or exhausted retry budget returns a non-nil error (surfaced by
// the executor as a retryable session failure); a 4xx response is treated
// as a non-retryable API error per spec.md §4.7.
func (c *Client) Dispatch(ctx context.Context, req executor.DispatchRequest) (executor.DispatchResult, error) {
	assignment := TaskAssignment{
		TaskID:    req.SessionID,
		SessionID: req.SessionID,
		TaskType:  req.TaskType,
		Context:   req.Context,
		InputData: req.InputData,
	}

	var result TaskResult
	breaker := c.breakerFor(req.EndpointURL)

	err := breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retryPostTask(ctx, req.EndpointURL, req.AuthToken, assignment, &result)
	})

	if nr, ok := err.(*nonRetryable); ok {
		return executor.DispatchResult{}, nr.err
	}
	if err != nil {
		return executor.DispatchResult{}, apperrors.ExternalAgentError(req.AgentName, err)
	}

	return executor.DispatchResult{
		Status:       result.Status,
		Artifacts:    result.Artifacts,
		OutputData:   result.OutputData,
		SuccessRate:  successRateFor(result.Status),
		Confidence:   0.8,
		ErrorMessage: result.ErrorMessage,
		Retryable:    result.Status != "completed",
	}, nil
}

// retryPostTask attempts postTask up to the EAP retry budget, backing off
// exponentially between attempts, but stops immediately on a non-retryable
// (4xx) failure rather than exhausting the budget on an error retrying
// cannot fix.
func (c *Client) retryPostTask(ctx context.Context, endpointURL, authToken string, assignment TaskAssignment, out *TaskResult) error {
	cfg := resilience.EAPRetryConfig(maxRetryAttempts)
	delay := cfg.InitialDelay

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, retryable, err := c.postTask(ctx, endpointURL, authToken, assignment)
		if err == nil {
			*out = result
			return nil
		}
		if !retryable {
			return &nonRetryable{err: err}
		}
		lastErr = err

		if attempt < cfg.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
	}
	return lastErr
}

// nonRetryable wraps an error the retry loop must not retry past (a 4xx API
// error), short-circuiting the backoff loop on the first attempt.
type nonRetryable struct{ err error }

func (n *nonRetryable) Error() string { return n.err.Error() }

func successRateFor(status string) float64 {
	if status == "completed" {
		return 1.0
	}
	return 0.0
}

// postTask issues one POST {endpointURL}/task attempt. The bool return
// reports whether a failure is retryable: connect errors, read timeouts,
// and 5xx are retryable; 4xx is not.
func (c *Client) postTask(ctx context.Context, endpointURL, authToken string, assignment TaskAssignment) (TaskResult, bool, error) {
	body, err := json.Marshal(assignment)
	if err != nil {
		return TaskResult{}, false, apperrors.Internal("marshal EAP task assignment", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL+"/task", bytes.NewReader(body))
	if err != nil {
		return TaskResult{}, false, apperrors.Internal("build EAP request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Agent-Token", authToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return TaskResult{}, true, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return TaskResult{}, true, err
	}

	switch {
	case resp.StatusCode >= 500:
		return TaskResult{}, true, fmt.Errorf("eap endpoint returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return TaskResult{}, false, fmt.Errorf("eap endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result TaskResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return TaskResult{}, false, apperrors.Internal("decode EAP task result", err)
	}
	return result, false, nil
}

// HealthCheck probes {endpointURL}/health. On any transport or decode
// failure it returns a synthesized HealthOffline heartbeat rather than an
// error, per spec.md §4.7's "resilience over precision" contract.
func (c *Client) HealthCheck(ctx context.Context, endpointURL string) Heartbeat {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL+"/health", nil)
	if err != nil {
		return offlineHeartbeat()
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.WithFields(map[string]interface{}{"endpoint": endpointURL, "error": err.Error()}).Warn("eap health probe failed")
		return offlineHeartbeat()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return offlineHeartbeat()
	}

	var hb Heartbeat
	if err := json.NewDecoder(resp.Body).Decode(&hb); err != nil {
		return offlineHeartbeat()
	}
	return hb
}

func offlineHeartbeat() Heartbeat {
	return Heartbeat{Status: HealthOffline, Timestamp: time.Now().UTC()}
}
