// Package kernel is the orchestrator's process supervisor: it wires
// storage, the lock manager, the agent registry, and the executor
// together and owns the lifecycle of the background sweeps the rest of
// the system depends on (session timeouts, agent heartbeat expiry,
// checkpoint retention, lock-queue GC), grounded on the teacher's
// infrastructure/service.BaseService.AddTickerWorker, generalized from a
// hand-rolled ticker loop per worker to a single robfig/cron/v3 scheduler
// shared by every sweep.
package kernel

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/agent-orchestrator/internal/domain/session"
	"github.com/R3E-Network/agent-orchestrator/internal/executor"
	"github.com/R3E-Network/agent-orchestrator/internal/logging"
	"github.com/R3E-Network/agent-orchestrator/internal/storage"
)

// staleAgentReaper is the narrow registry surface the heartbeat sweep
// needs; satisfied by *internal/registry.Registry, and by a fake in tests.
type staleAgentReaper interface {
	CleanupStaleAgents(now time.Time, maxAge time.Duration) []string
}

// queueGC is the narrow lock-manager surface the lock-queue sweep needs;
// satisfied by *internal/lock.Manager, and by a fake in tests.
type queueGC interface {
	GCExpireQueue(ctx context.Context, resource string, ttl time.Duration) error
}

// Config supplies the Kernel's dependencies and the tunables for each
// background sweep. Zero-valued duration fields fall back to sane
// defaults in New.
type Config struct {
	Sessions storage.SessionStore
	Tenants  storage.TenantStore
	Executor *executor.Executor
	Registry staleAgentReaper
	Locks    queueGC
	Logger   *logging.Logger

	TimeoutSweepInterval    time.Duration
	HeartbeatSweepInterval  time.Duration
	CheckpointSweepInterval time.Duration
	LockGCInterval          time.Duration

	HeartbeatMaxAge    time.Duration
	CheckpointKeepLast int
	LockQueueTTL       time.Duration
}

const (
	defaultTimeoutSweepInterval    = 30 * time.Second
	defaultHeartbeatSweepInterval  = time.Minute
	defaultCheckpointSweepInterval = 10 * time.Minute
	defaultLockGCInterval          = time.Minute

	defaultHeartbeatMaxAge    = 5 * time.Minute
	defaultCheckpointKeepLast = 50
	defaultLockQueueTTL       = 5 * time.Minute
)

// Kernel owns a cron.Cron scheduler running the orchestrator's background
// sweeps. The zero value is not usable; build one with New.
type Kernel struct {
	cfg    Config
	cron   *cron.Cron
	logger *logging.Logger
}

// New builds a Kernel from cfg, filling any zero-valued interval or
// threshold with its package default.
func New(cfg Config) *Kernel {
	if cfg.TimeoutSweepInterval <= 0 {
		cfg.TimeoutSweepInterval = defaultTimeoutSweepInterval
	}
	if cfg.HeartbeatSweepInterval <= 0 {
		cfg.HeartbeatSweepInterval = defaultHeartbeatSweepInterval
	}
	if cfg.CheckpointSweepInterval <= 0 {
		cfg.CheckpointSweepInterval = defaultCheckpointSweepInterval
	}
	if cfg.LockGCInterval <= 0 {
		cfg.LockGCInterval = defaultLockGCInterval
	}
	if cfg.HeartbeatMaxAge <= 0 {
		cfg.HeartbeatMaxAge = defaultHeartbeatMaxAge
	}
	if cfg.CheckpointKeepLast <= 0 {
		cfg.CheckpointKeepLast = defaultCheckpointKeepLast
	}
	if cfg.LockQueueTTL <= 0 {
		cfg.LockQueueTTL = defaultLockQueueTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Kernel{cfg: cfg, logger: logger}
}

// Start schedules every sweep and returns once the scheduler is running.
// Sweeps run against ctx; cancel ctx (or call Stop) to end them.
func (k *Kernel) Start(ctx context.Context) error {
	k.cron = cron.New()

	schedule := func(interval time.Duration, name string, fn func(context.Context)) {
		spec := "@every " + interval.String()
		_, err := k.cron.AddFunc(spec, func() {
			defer func() {
				if r := recover(); r != nil {
					k.logger.WithFields(map[string]interface{}{"worker": name, "panic": r}).Error("kernel worker panicked")
				}
			}()
			fn(ctx)
		})
		if err != nil {
			k.logger.WithFields(map[string]interface{}{"worker": name, "error": err.Error()}).Error("failed to schedule kernel worker")
		}
	}

	schedule(k.cfg.TimeoutSweepInterval, "timeout-sweep", k.sweepTimeouts)
	schedule(k.cfg.HeartbeatSweepInterval, "heartbeat-sweep", k.sweepHeartbeats)
	schedule(k.cfg.CheckpointSweepInterval, "checkpoint-retention", k.sweepCheckpoints)
	schedule(k.cfg.LockGCInterval, "lock-queue-gc", k.sweepLockQueues)

	k.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (k *Kernel) Stop() {
	if k.cron == nil {
		return
	}
	<-k.cron.Stop().Done()
}

// sweepTimeouts finds every running session across every tenant whose
// elapsed time since its last status transition exceeds
// max_duration_seconds, and transitions it to timeout.
func (k *Kernel) sweepTimeouts(ctx context.Context) {
	now := time.Now().UTC()
	k.forEachSession(ctx, func(sess *session.Session) {
		if sess.Status != session.StatusRunning {
			return
		}
		if !sess.IsTimedOut(now, sess.StatusUpdatedAt) {
			return
		}
		if err := k.cfg.Executor.TimeoutSession(ctx, sess); err != nil {
			k.logger.WithFields(map[string]interface{}{"session_id": sess.ID, "error": err.Error()}).Warn("timeout sweep failed to transition session")
		}
	})
}

// sweepHeartbeats evicts agents whose last heartbeat exceeds
// HeartbeatMaxAge from the in-process registry.
func (k *Kernel) sweepHeartbeats(ctx context.Context) {
	if k.cfg.Registry == nil {
		return
	}
	removed := k.cfg.Registry.CleanupStaleAgents(time.Now().UTC(), k.cfg.HeartbeatMaxAge)
	if len(removed) > 0 {
		k.logger.WithFields(map[string]interface{}{"agent_ids": removed}).Info("heartbeat sweep evicted stale agents")
	}
}

// sweepCheckpoints prunes every session's checkpoint log down to the most
// recent CheckpointKeepLast entries, bounding the log's storage growth for
// long-running or frequently-checkpointed sessions.
func (k *Kernel) sweepCheckpoints(ctx context.Context) {
	k.forEachSession(ctx, func(sess *session.Session) {
		removed, err := k.cfg.Sessions.PruneCheckpoints(ctx, sess.ID, k.cfg.CheckpointKeepLast)
		if err != nil {
			k.logger.WithFields(map[string]interface{}{"session_id": sess.ID, "error": err.Error()}).Warn("checkpoint retention sweep failed")
			return
		}
		if removed > 0 {
			k.logger.WithFields(map[string]interface{}{"session_id": sess.ID, "removed": removed}).Info("pruned checkpoints")
		}
	})
}

// sweepLockQueues refreshes the fairness-queue TTL for every currently
// running session's execution lock, reclaiming queues whose waiters
// crashed before removing their own entry.
func (k *Kernel) sweepLockQueues(ctx context.Context) {
	if k.cfg.Locks == nil {
		return
	}
	k.forEachSession(ctx, func(sess *session.Session) {
		if sess.Status != session.StatusRunning {
			return
		}
		resource := executor.ExecutionLockResource(sess.ID)
		if err := k.cfg.Locks.GCExpireQueue(ctx, resource, k.cfg.LockQueueTTL); err != nil {
			k.logger.WithFields(map[string]interface{}{"resource": resource, "error": err.Error()}).Warn("lock queue GC failed")
		}
	})
}

// forEachSession iterates every non-deleted session across every tenant.
// The storage ports are scoped per-tenant (mirroring the teacher's
// per-account repository split), so a cross-tenant sweep has to walk the
// tenant list first.
func (k *Kernel) forEachSession(ctx context.Context, fn func(*session.Session)) {
	tenants, err := k.cfg.Tenants.ListTenants(ctx)
	if err != nil {
		k.logger.WithFields(map[string]interface{}{"error": err.Error()}).Warn("sweep failed to list tenants")
		return
	}
	for _, t := range tenants {
		sessions, err := k.cfg.Sessions.ListSessionsByTenant(ctx, t.ID, false)
		if err != nil {
			k.logger.WithFields(map[string]interface{}{"tenant_id": t.ID, "error": err.Error()}).Warn("sweep failed to list sessions")
			continue
		}
		for _, sess := range sessions {
			fn(sess)
		}
	}
}
