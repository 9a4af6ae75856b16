package executor

import (
	"context"
	"sort"
	"time"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/session"
	"github.com/R3E-Network/agent-orchestrator/internal/logging"
	"github.com/R3E-Network/agent-orchestrator/internal/resourceusage"
	"github.com/R3E-Network/agent-orchestrator/internal/tenancy"
	"github.com/R3E-Network/agent-orchestrator/internal/tracing"
)

const (
	executionLockPrefix = "session:execution:"
	parentLockPrefix    = "session:parent:"

	defaultLockTimeout = 10 * time.Second
	defaultLeaseTTL    = 30 * time.Second
	defaultPriority    = 0

	// maxTreeDepth bounds session tree traversal per spec.md's default.
	maxTreeDepth = 5
)

// ExecutionLockResource returns the lock resource name Execute acquires for
// sessionID, exported so kernel background workers (lock-queue GC) can
// refresh the same resource's queue TTL without duplicating the prefix.
func ExecutionLockResource(sessionID string) string {
	return executionLockPrefix + sessionID
}

// reservedAgentConfigKeys are config keys that never themselves name the
// target agent.
var reservedAgentConfigKeys = map[string]bool{
	"default_agent": true,
	"model":         true,
	"model_config":  true,
	"temperature":   true,
	"max_tokens":    true,
	"is_external":   true,
	"endpoint_url":  true,
	"auth_token":    true,
}

// Locker is the subset of internal/lock.Manager the executor serializes
// status transitions through: acquire-with-callback plus background lease
// renewal for the duration of a potentially long-running dispatch.
type Locker interface {
	WithLock(ctx context.Context, resource, owner string, timeout, leaseTTL time.Duration, priority int, fn func(ctx context.Context) error) error
	StartAutoRenew(ctx context.Context, resource, owner string, leaseTTL time.Duration) (stop func())
}

// SessionRepo is the subset of storage.SessionStore the executor uses.
type SessionRepo interface {
	CreateSession(ctx context.Context, s *session.Session) error
	UpdateSession(ctx context.Context, s *session.Session) error
	GetSession(ctx context.Context, id string) (*session.Session, error)
	ListChildSessions(ctx context.Context, parentID string) ([]*session.Session, error)
	AppendCheckpoint(ctx context.Context, cp session.Checkpoint) error
	LatestCheckpoint(ctx context.Context, sessionID string) (session.Checkpoint, error)

	SaveMetrics(ctx context.Context, m *session.Metrics) error
	GetMetrics(ctx context.Context, sessionID string) (*session.Metrics, error)
}

// EventPublisher fans session domain events out to whatever notification
// channel the kernel has wired (see internal/notify); nil is a valid,
// silent default.
type EventPublisher interface {
	Publish(ctx context.Context, events []session.Event) error
}

// Recorder is the subset of internal/metrics.Metrics the executor observes
// against. nil is a valid, silent default so the package has no hard
// dependency on Prometheus being wired.
type Recorder interface {
	RecordSessionStart(tenant, sessionType string)
	RecordSessionTerminal(tenant, status string, duration time.Duration)
	RecordDispatch(agent string, external bool, status string, duration time.Duration)
	RecordQuotaRejection(tenant string)
}

// Executor orchestrates a single session end-to-end: tenant quota
// enforcement, parent linking, the start_execution transition under the
// session execution lock, agent dispatch, and the terminal
// complete/fail transition.
type Executor struct {
	sessions SessionRepo
	quota    *tenancy.QuotaEnforcer
	locks    Locker
	tracer   tracing.Tracer
	logger   *logging.Logger
	events   EventPublisher
	metrics  Recorder

	internal AgentDispatcher
	external AgentDispatcher

	lockTimeout time.Duration
	leaseTTL    time.Duration

	sampler resourceusage.Sampler
}

// Option configures an Executor beyond its required collaborators.
type Option func(*Executor)

// WithEventPublisher sets the publisher events are fanned out through.
func WithEventPublisher(p EventPublisher) Option {
	return func(e *Executor) { e.events = p }
}

// WithTracer overrides the default no-op tracer.
func WithTracer(t tracing.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// WithMetrics sets the Recorder session lifecycle and dispatch events are
// observed through. A nil Recorder (the default) disables observation.
func WithMetrics(m Recorder) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithResourceSampler sets the host CPU/memory sampler taken before and
// after each dispatch to accumulate a session's resource-usage metrics. A
// nil Sampler (the default) disables accumulation.
func WithResourceSampler(s resourceusage.Sampler) Option {
	return func(e *Executor) { e.sampler = s }
}

// WithLockTiming overrides the default lock acquisition timeout and lease TTL.
func WithLockTiming(timeout, leaseTTL time.Duration) Option {
	return func(e *Executor) {
		e.lockTimeout = timeout
		e.leaseTTL = leaseTTL
	}
}

// New builds an Executor. internalDispatcher and externalDispatcher may not
// both be nil for a process that actually dispatches, but a nil one is
// tolerated so a deployment that never uses one branch need not implement it.
func New(sessions SessionRepo, quota *tenancy.QuotaEnforcer, locks Locker, logger *logging.Logger, internalDispatcher, externalDispatcher AgentDispatcher, opts ...Option) *Executor {
	e := &Executor{
		sessions:    sessions,
		quota:       quota,
		locks:       locks,
		logger:      logger,
		tracer:      tracing.NoopTracer,
		internal:    internalDispatcher,
		external:    externalDispatcher,
		lockTimeout: defaultLockTimeout,
		leaseTTL:    defaultLeaseTTL,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateSession builds and persists a new session for the tenant carried by
// ctx, enforcing the concurrent-session quota and, when parentSessionID is
// set, linking it under the parent's execution lock.
func (e *Executor) CreateSession(ctx context.Context, title, description string, typ session.Type, priority session.Priority, initialPrompt string, maxDurationSeconds int, agentConfig map[string]interface{}, parentSessionID *string) (*session.Session, error) {
	tenantID, err := tenancy.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.quota.CheckCanStartSession(ctx, tenantID); err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeQuotaExceeded {
			e.recordQuotaRejection(tenantID)
		}
		return nil, err
	}

	sess, err := session.New(tenantID, title, description, typ, priority, initialPrompt, maxDurationSeconds, agentConfig)
	if err != nil {
		return nil, err
	}

	if parentSessionID == nil || *parentSessionID == "" {
		if err := e.sessions.CreateSession(ctx, sess); err != nil {
			return nil, err
		}
		e.markMetricsQueued(ctx, sess)
		return sess, nil
	}

	owner := "executor:create:" + sess.ID
	err = e.locks.WithLock(ctx, parentLockPrefix+*parentSessionID, owner, e.lockTimeout, e.leaseTTL, defaultPriority, func(ctx context.Context) error {
		if _, err := e.sessions.GetSession(ctx, *parentSessionID); err != nil {
			return err
		}
		sess.ParentID = parentSessionID
		return e.sessions.CreateSession(ctx, sess)
	})
	if err != nil {
		return nil, err
	}
	e.markMetricsQueued(ctx, sess)
	return sess, nil
}

// GetSession returns the current state of sessionID without running or
// mutating it.
func (e *Executor) GetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	return e.sessions.GetSession(ctx, sessionID)
}

// Execute loads sessionID, acquires its execution lock for the whole of the
// run (renewing the lease in the background so a long-running external
// dispatch cannot outlive it), transitions it to running, dispatches to the
// resolved agent, and folds the outcome into a completed or failed session.
func (e *Executor) Execute(ctx context.Context, sessionID string) (*session.Session, error) {
	resource := executionLockPrefix + sessionID
	owner := "executor:run:" + sessionID

	var result *session.Session
	err := e.locks.WithLock(ctx, resource, owner, e.lockTimeout, e.leaseTTL, defaultPriority, func(ctx context.Context) error {
		stop := e.locks.StartAutoRenew(ctx, resource, owner, e.leaseTTL)
		defer stop()

		sess, err := e.sessions.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		result = sess

		ctx, end := e.tracer.StartSpan(ctx, "executor.execute", map[string]string{
			"session_id": sess.ID,
			"tenant_id":  sess.TenantID,
		})
		var spanErr error
		defer func() { end(spanErr) }()

		from := sess.Status
		events, err := sess.StartExecution(time.Now().UTC())
		if err != nil {
			spanErr = err
			return err
		}
		if err := e.sessions.UpdateSession(ctx, sess); err != nil {
			spanErr = err
			return err
		}
		e.publish(ctx, events)
		e.logger.LogSessionTransition(ctx, sess.ID, from.String(), sess.Status.String())
		e.recordSessionStart(sess)
		e.markMetricsStarted(ctx, sess)

		dispatcher, req := e.buildDispatch(sess)
		e.logger.LogTaskDispatch(ctx, sess.ID, req.AgentName, req.External)

		var before resourceusage.Snapshot
		if e.sampler != nil {
			before, _ = e.sampler.Sample()
		}

		start := time.Now()
		dispatchResult, dispatchErr := dispatcher.Dispatch(ctx, req)
		dispatchElapsed := time.Since(start)
		e.logger.LogAgentCall(ctx, req.AgentName, dispatchElapsed, dispatchErr)
		e.recordDispatch(req, dispatchResult, dispatchErr, dispatchElapsed)
		e.recordResourceUsage(ctx, sess, before, dispatchElapsed, dispatchErr)

		if dispatchErr != nil {
			spanErr = e.failSession(ctx, sess, dispatchErr, true)
			return spanErr
		}
		if dispatchResult.Status != "completed" {
			spanErr = e.failSession(ctx, sess, apperrors.ExternalAgentError(req.AgentName, errorFromMessage(dispatchResult.ErrorMessage)), dispatchResult.Retryable)
			return spanErr
		}
		spanErr = e.completeSession(ctx, sess, dispatchResult)
		return spanErr
	})
	return result, err
}

// buildDispatch resolves the target agent and branches to the internal or
// external dispatcher based on metadata.is_external.
func (e *Executor) buildDispatch(sess *session.Session) (AgentDispatcher, DispatchRequest) {
	agentName := resolveAgentName(sess.AgentConfig)
	external, _ := sess.Metadata["is_external"].(bool)

	req := DispatchRequest{
		SessionID: sess.ID,
		TenantID:  sess.TenantID,
		AgentName: agentName,
		Context:   sess.Metadata,
		InputData: map[string]interface{}{"initial_prompt": sess.InitialPrompt},
		External:  external,
	}
	if external {
		req.EndpointURL, _ = sess.Metadata["endpoint_url"].(string)
		req.AuthToken, _ = sess.Metadata["auth_token"].(string)
		return e.external, req
	}
	return e.internal, req
}

// resolveAgentName picks the first non-reserved key of agentConfig,
// iterating in sorted order for determinism, falling back to
// agentConfig["default_agent"].
func resolveAgentName(agentConfig map[string]interface{}) string {
	keys := make([]string, 0, len(agentConfig))
	for k := range agentConfig {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !reservedAgentConfigKeys[k] {
			return k
		}
	}
	if def, ok := agentConfig["default_agent"].(string); ok {
		return def
	}
	return ""
}

// completeSession transitions sess to completed (or partially_completed
// when the result carries that flag) and persists it.
func (e *Executor) completeSession(ctx context.Context, sess *session.Session, result DispatchResult) error {
	target := session.StatusCompleted
	if partial, _ := result.OutputData["partial"].(bool); partial {
		target = session.StatusPartiallyCompleted
	}
	events, err := sess.TransitionTo(target, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := e.sessions.UpdateSession(ctx, sess); err != nil {
		return err
	}
	e.publish(ctx, events)
	e.logger.LogSessionTransition(ctx, sess.ID, session.StatusRunning.String(), sess.Status.String())
	if sess.Status.IsTerminal() {
		e.recordSessionTerminal(sess)
	}
	e.markMetricsCompleted(ctx, sess, result)
	return nil
}

// failSession transitions sess to failed, records the error and the
// retryable flag in metadata, and bumps retry_count, per the spec's
// fail_session contract.
func (e *Executor) failSession(ctx context.Context, sess *session.Session, cause error, retryable bool) error {
	events, err := sess.TransitionTo(session.StatusFailed, time.Now().UTC())
	if err != nil {
		return err
	}
	sess.Metadata["last_error"] = cause.Error()
	sess.Metadata["retryable"] = retryable
	sess.Metadata["retry_count"] = sess.RetryCount() + 1

	if err := e.sessions.UpdateSession(ctx, sess); err != nil {
		return err
	}
	e.publish(ctx, events)
	e.logger.LogSessionTransition(ctx, sess.ID, session.StatusRunning.String(), sess.Status.String())
	e.recordSessionTerminal(sess)
	e.markMetricsFailed(ctx, sess, cause)
	return nil
}

// TimeoutSession transitions a running session whose elapsed time has
// exceeded its max_duration_seconds to timeout, for the kernel's periodic
// timeout monitor to call once session.IsTimedOut reports true. It is a
// no-op error if sess is not currently running.
func (e *Executor) TimeoutSession(ctx context.Context, sess *session.Session) error {
	events, err := sess.TransitionTo(session.StatusTimeout, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := e.sessions.UpdateSession(ctx, sess); err != nil {
		return err
	}
	e.publish(ctx, events)
	e.logger.LogSessionTransition(ctx, sess.ID, session.StatusRunning.String(), sess.Status.String())
	e.recordSessionTerminal(sess)
	return nil
}

// AppendCheckpoint records sess's next checkpoint, deriving the sequence
// number from the session's last-known checkpoint (1 if none exists).
func (e *Executor) AppendCheckpoint(ctx context.Context, sessionID string, data, metadata map[string]interface{}) (session.Checkpoint, error) {
	next := 1
	if latest, err := e.sessions.LatestCheckpoint(ctx, sessionID); err == nil {
		next = latest.Sequence + 1
	} else if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		return session.Checkpoint{}, err
	}

	cp := session.Checkpoint{
		SessionID: sessionID,
		Sequence:  next,
		Data:      data,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.sessions.AppendCheckpoint(ctx, cp); err != nil {
		return session.Checkpoint{}, err
	}
	return cp, nil
}

// TreeNode is one node of a session tree traversal.
type TreeNode struct {
	ID       string
	Title    string
	Status   string
	Type     string
	Depth    int
	Children []TreeNode
}

// Tree returns the recursive session tree rooted at sessionID, bounded by
// maxDepth (falling back to the spec's default of 5 when non-positive).
func (e *Executor) Tree(ctx context.Context, sessionID string, maxDepth int) (TreeNode, error) {
	if maxDepth <= 0 {
		maxDepth = maxTreeDepth
	}
	return e.buildTree(ctx, sessionID, 0, maxDepth)
}

func (e *Executor) buildTree(ctx context.Context, sessionID string, depth, maxDepth int) (TreeNode, error) {
	sess, err := e.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return TreeNode{}, err
	}
	node := TreeNode{ID: sess.ID, Title: sess.Title, Status: sess.Status.String(), Type: string(sess.Type), Depth: depth}
	if depth >= maxDepth {
		return node, nil
	}

	children, err := e.sessions.ListChildSessions(ctx, sessionID)
	if err != nil {
		return TreeNode{}, err
	}
	for _, child := range children {
		childNode, err := e.buildTree(ctx, child.ID, depth+1, maxDepth)
		if err != nil {
			return TreeNode{}, err
		}
		node.Children = append(node.Children, childNode)
	}
	return node, nil
}

func (e *Executor) recordQuotaRejection(tenantID string) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordQuotaRejection(tenantID)
}

func (e *Executor) recordSessionStart(sess *session.Session) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordSessionStart(sess.TenantID, string(sess.Type))
}

func (e *Executor) recordSessionTerminal(sess *session.Session) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordSessionTerminal(sess.TenantID, sess.Status.String(), time.Since(sess.CreatedAt))
}

func (e *Executor) recordDispatch(req DispatchRequest, result DispatchResult, dispatchErr error, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	status := result.Status
	if dispatchErr != nil {
		status = "error"
	} else if status == "" {
		status = "unknown"
	}
	e.metrics.RecordDispatch(req.AgentName, req.External, status, elapsed)
}

// loadMetrics returns sess's persisted Metrics record, or a fresh zero-value
// one if none has been saved yet.
func (e *Executor) loadMetrics(ctx context.Context, sessionID string) *session.Metrics {
	m, err := e.sessions.GetMetrics(ctx, sessionID)
	if err != nil {
		return session.NewMetrics(sessionID)
	}
	return m
}

// markMetricsQueued stamps a fresh session's Metrics with its queued
// timestamp, per the spec's "metrics created with its session" contract.
func (e *Executor) markMetricsQueued(ctx context.Context, sess *session.Session) {
	m := e.loadMetrics(ctx, sess.ID)
	m.MarkQueued(sess.CreatedAt)
	if err := e.sessions.SaveMetrics(ctx, m); err != nil {
		e.logger.WithContext(ctx).WithError(err).Warn("save queued metrics failed")
	}
}

// markMetricsStarted stamps sess's Metrics with its started timestamp on the
// running transition.
func (e *Executor) markMetricsStarted(ctx context.Context, sess *session.Session) {
	m := e.loadMetrics(ctx, sess.ID)
	m.MarkStarted(time.Now().UTC())
	if err := e.sessions.SaveMetrics(ctx, m); err != nil {
		e.logger.WithContext(ctx).WithError(err).Warn("save started metrics failed")
	}
}

// markMetricsCompleted stamps sess's Metrics with its completed timestamp
// and the dispatch's reported quality data.
func (e *Executor) markMetricsCompleted(ctx context.Context, sess *session.Session, result DispatchResult) {
	m := e.loadMetrics(ctx, sess.ID)
	m.MarkCompleted(time.Now().UTC(), result.OutputData, result.SuccessRate, result.Confidence)
	if err := e.sessions.SaveMetrics(ctx, m); err != nil {
		e.logger.WithContext(ctx).WithError(err).Warn("save completed metrics failed")
	}
}

// markMetricsFailed stamps sess's Metrics with its failed timestamp and the
// error that caused it. A dispatch failure (agent error, non-retryable
// dispatch error) is reported as a "RuntimeError", matching the generic
// runtime-failure class the dispatch contract itself does not further
// distinguish.
func (e *Executor) markMetricsFailed(ctx context.Context, sess *session.Session, cause error) {
	m := e.loadMetrics(ctx, sess.ID)
	m.MarkFailed(time.Now().UTC(), map[string]interface{}{
		"type":    "RuntimeError",
		"message": cause.Error(),
	})
	if err := e.sessions.SaveMetrics(ctx, m); err != nil {
		e.logger.WithContext(ctx).WithError(err).Warn("save failed metrics failed")
	}
}

// recordResourceUsage samples host CPU/memory after a dispatch and folds
// the before/after pair into sess's cumulative resource-usage metrics.
// A nil sampler (the default) makes this a no-op, so a deployment that
// never wires resourceusage.Gopsutil pays no overhead.
func (e *Executor) recordResourceUsage(ctx context.Context, sess *session.Session, before resourceusage.Snapshot, elapsed time.Duration, dispatchErr error) {
	if e.sampler == nil {
		return
	}
	after, err := e.sampler.Sample()
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Warn("resource usage sample failed")
		return
	}
	cpuSeconds, memoryMB := resourceusage.Accumulate(before, after, elapsed)

	m, err := e.sessions.GetMetrics(ctx, sess.ID)
	if err != nil {
		m = session.NewMetrics(sess.ID)
	}
	m.CPUSecondsUsed += cpuSeconds
	if memoryMB > m.MemoryMBUsed {
		m.MemoryMBUsed = memoryMB
	}
	m.RecordAPICall(dispatchErr == nil)

	if err := e.sessions.SaveMetrics(ctx, m); err != nil {
		e.logger.WithContext(ctx).WithError(err).Warn("save resource usage metrics failed")
	}
}

func (e *Executor) publish(ctx context.Context, events []session.Event) {
	if e.events == nil || len(events) == 0 {
		return
	}
	if err := e.events.Publish(ctx, events); err != nil {
		e.logger.WithContext(ctx).WithError(err).Warn("event publish failed")
	}
}

func errorFromMessage(msg string) error {
	if msg == "" {
		msg = "agent dispatch reported failure"
	}
	return apperrors.InvalidInput("dispatch_result", msg)
}
