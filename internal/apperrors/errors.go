// Package apperrors provides the orchestration engine's unified error taxonomy.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of error independent of the message text attached to it.
type Code string

const (
	// Validation errors (VAL_1xxx)
	CodeInvalidInput     Code = "VAL_1001"
	CodeMissingParameter Code = "VAL_1002"
	CodeInvalidFormat    Code = "VAL_1003"
	CodeOutOfRange       Code = "VAL_1004"

	// Resource errors (RES_2xxx)
	CodeNotFound      Code = "RES_2001"
	CodeAlreadyExists Code = "RES_2002"
	CodeConflict      Code = "RES_2003"

	// Session/task state errors (STATE_3xxx)
	CodeInvalidTransition Code = "STATE_3001"
	CodeTerminalState     Code = "STATE_3002"

	// Concurrency/locking errors (LOCK_4xxx)
	CodeLockHeld      Code = "LOCK_4001"
	CodeLockNotOwned  Code = "LOCK_4002"
	CodeLockTimeout   Code = "LOCK_4003"
	CodeLockQueueFull Code = "LOCK_4004"

	// Graph errors (GRAPH_5xxx)
	CodeCycleDetected   Code = "GRAPH_5001"
	CodeDependencyStall Code = "GRAPH_5002"

	// Capacity/quota errors (CAP_6xxx)
	CodeCapacityExceeded Code = "CAP_6001"
	CodeQuotaExceeded    Code = "CAP_6002"
	CodeNoAgentAvailable Code = "CAP_6003"

	// Transport errors (XPORT_7xxx)
	CodeExternalAgentError Code = "XPORT_7001"
	CodeTimeout            Code = "XPORT_7002"
	CodeCircuitOpen        Code = "XPORT_7003"

	// Internal errors (SVC_9xxx)
	CodeInternal      Code = "SVC_9001"
	CodeStorageError  Code = "SVC_9002"
	CodeUnauthorized  Code = "SVC_9003"
	CodeForbidden     Code = "SVC_9004"
)

// Error is a structured error carrying a Code, an HTTP-equivalent status for
// the illustrative REST surface, and optional machine-readable details.
type Error struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetails attaches a key/value pair to the error and returns it for chaining.
func (e *Error) WithDetails(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an Error with no underlying cause.
func New(code Code, message string, httpStatus int) *Error {
	return &Error{Code: code, Message: message, HTTPStatus: httpStatus}
}

// Wrap creates an Error around an underlying cause.
func Wrap(code Code, message string, httpStatus int, err error) *Error {
	return &Error{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// Validation constructors

func InvalidInput(field, reason string) *Error {
	return New(CodeInvalidInput, "invalid input", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("reason", reason)
}

func MissingParameter(param string) *Error {
	return New(CodeMissingParameter, "missing required parameter", http.StatusBadRequest).
		WithDetails("parameter", param)
}

func InvalidFormat(field, expected string) *Error {
	return New(CodeInvalidFormat, "invalid format", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("expected", expected)
}

func OutOfRange(field string, min, max interface{}) *Error {
	return New(CodeOutOfRange, "value out of range", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("min", min).
		WithDetails("max", max)
}

// Resource constructors

func NotFound(resource, id string) *Error {
	return New(CodeNotFound, "resource not found", http.StatusNotFound).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

func AlreadyExists(resource, id string) *Error {
	return New(CodeAlreadyExists, "resource already exists", http.StatusConflict).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

func Conflict(message string) *Error {
	return New(CodeConflict, message, http.StatusConflict)
}

// State machine constructors

func InvalidTransition(entity, from, to string) *Error {
	return New(CodeInvalidTransition, "invalid state transition", http.StatusConflict).
		WithDetails("entity", entity).
		WithDetails("from", from).
		WithDetails("to", to)
}

func TerminalState(entity, state string) *Error {
	return New(CodeTerminalState, "entity is in a terminal state", http.StatusConflict).
		WithDetails("entity", entity).
		WithDetails("state", state)
}

// Locking constructors

func LockHeld(resource, owner string) *Error {
	return New(CodeLockHeld, "lock is held by another owner", http.StatusConflict).
		WithDetails("resource", resource).
		WithDetails("owner", owner)
}

func LockNotOwned(resource string) *Error {
	return New(CodeLockNotOwned, "caller does not own this lock", http.StatusForbidden).
		WithDetails("resource", resource)
}

func LockTimeout(resource string) *Error {
	return New(CodeLockTimeout, "timed out waiting for lock", http.StatusGatewayTimeout).
		WithDetails("resource", resource)
}

func LockQueueFull(resource string, depth int) *Error {
	return New(CodeLockQueueFull, "lock wait queue is full", http.StatusServiceUnavailable).
		WithDetails("resource", resource).
		WithDetails("queue_depth", depth)
}

// Graph constructors

func CycleDetected(path []string) *Error {
	return New(CodeCycleDetected, "dependency cycle detected", http.StatusConflict).
		WithDetails("path", path)
}

func DependencyStall(taskID string) *Error {
	return New(CodeDependencyStall, "task dependencies can never be satisfied", http.StatusConflict).
		WithDetails("task_id", taskID)
}

// Capacity constructors

func CapacityExceeded(resource string) *Error {
	return New(CodeCapacityExceeded, "capacity exceeded", http.StatusServiceUnavailable).
		WithDetails("resource", resource)
}

func QuotaExceeded(tenantID string, quota string) *Error {
	return New(CodeQuotaExceeded, "tenant quota exceeded", http.StatusTooManyRequests).
		WithDetails("tenant_id", tenantID).
		WithDetails("quota", quota)
}

func NoAgentAvailable(capability string) *Error {
	return New(CodeNoAgentAvailable, "no agent available for capability", http.StatusServiceUnavailable).
		WithDetails("capability", capability)
}

// Transport constructors

func ExternalAgentError(agentID string, err error) *Error {
	return Wrap(CodeExternalAgentError, "external agent call failed", http.StatusBadGateway, err).
		WithDetails("agent_id", agentID)
}

func Timeout(operation string) *Error {
	return New(CodeTimeout, "operation timed out", http.StatusGatewayTimeout).
		WithDetails("operation", operation)
}

func CircuitOpen(agentID string) *Error {
	return New(CodeCircuitOpen, "circuit breaker open for agent", http.StatusServiceUnavailable).
		WithDetails("agent_id", agentID)
}

// Internal constructors

func Internal(message string, err error) *Error {
	return Wrap(CodeInternal, message, http.StatusInternalServerError, err)
}

func StorageError(operation string, err error) *Error {
	return Wrap(CodeStorageError, "storage operation failed", http.StatusInternalServerError, err).
		WithDetails("operation", operation)
}

func Unauthorized(message string) *Error {
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

func Forbidden(message string) *Error {
	return New(CodeForbidden, message, http.StatusForbidden)
}

// Helper functions

// Is reports whether err is an *Error (directly or via its error chain).
func Is(err error) bool {
	var appErr *Error
	return errors.As(err, &appErr)
}

// As extracts an *Error from err's chain, or nil if there isn't one.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// HTTPStatus returns the HTTP status equivalent of err, defaulting to 500.
func HTTPStatus(err error) int {
	if appErr := As(err); appErr != nil {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// CodeOf returns the Code of err, or empty string if err is not an *Error.
func CodeOf(err error) Code {
	if appErr := As(err); appErr != nil {
		return appErr.Code
	}
	return ""
}
