// Package logging provides structured logging with trace/tenant context propagation.
package logging

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context keys carried alongside a request-scoped logger.
type ContextKey string

const (
	TraceIDKey  ContextKey = "trace_id"
	TenantIDKey ContextKey = "tenant_id"
	SessionIDKey ContextKey = "session_id"
	ServiceKey  ContextKey = "service"
)

// Logger wraps logrus.Logger with orchestrator context fields.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a Logger for the given service name, level, and format ("json" or "text").
func New(service, level, format string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	logger.SetOutput(os.Stdout)

	return &Logger{Logger: logger, service: service}
}

// WithContext returns a logrus.Entry annotated with trace/tenant/session fields
// pulled from ctx, if present.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)

	if traceID := ctx.Value(TraceIDKey); traceID != nil {
		entry = entry.WithField("trace_id", traceID)
	}
	if tenantID := ctx.Value(TenantIDKey); tenantID != nil {
		entry = entry.WithField("tenant_id", tenantID)
	}
	if sessionID := ctx.Value(SessionIDKey); sessionID != nil {
		entry = entry.WithField("session_id", sessionID)
	}

	return entry
}

// WithFields returns a logrus.Entry carrying the service field plus the given fields.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["service"] = l.service
	return l.Logger.WithFields(fields)
}

// NewTraceID generates a fresh trace identifier for a request chain.
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID attaches a trace ID to ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithTenantID attaches a tenant ID to ctx.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

// WithSessionID attaches a session ID to ctx.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// GetTraceID reads the trace ID from ctx, or "" if absent.
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}

// GetTenantID reads the tenant ID from ctx, or "" if absent.
func GetTenantID(ctx context.Context) string {
	if v, ok := ctx.Value(TenantIDKey).(string); ok {
		return v
	}
	return ""
}

// Domain-specific structured helpers

// LogSessionTransition logs a session status state transition.
func (l *Logger) LogSessionTransition(ctx context.Context, sessionID, from, to string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"session_id": sessionID,
		"from":       from,
		"to":         to,
	}).Info("session transition")
}

// LogTaskDispatch logs a task being handed to an agent for execution.
func (l *Logger) LogTaskDispatch(ctx context.Context, taskID, agentID string, external bool) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"task_id":  taskID,
		"agent_id": agentID,
		"external": external,
	}).Info("task dispatched")
}

// LogLockOperation logs an acquire/renew/release against the distributed lock manager.
func (l *Logger) LogLockOperation(ctx context.Context, operation, resource, owner string, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"operation": operation,
		"resource":  resource,
		"owner":     owner,
	})
	if err != nil {
		entry.WithError(err).Warn("lock operation failed")
		return
	}
	entry.Debug("lock operation succeeded")
}

// LogAgentCall logs a dispatch call (internal or EAP) to an agent, with duration and outcome.
func (l *Logger) LogAgentCall(ctx context.Context, agentID string, duration time.Duration, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"agent_id":    agentID,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("agent call failed")
		return
	}
	entry.Info("agent call succeeded")
}

// Global default logger, initialized once at process startup.
var defaultLogger *Logger

// InitDefault initializes the package-level default logger.
func InitDefault(service, level, format string) {
	defaultLogger = New(service, level, format)
}

// Default returns the package-level logger, falling back to an info/json logger
// named "unknown" if InitDefault was never called.
func Default() *Logger {
	if defaultLogger == nil {
		defaultLogger = New("unknown", "info", "json")
	}
	return defaultLogger
}
