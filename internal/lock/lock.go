// Package lock implements a fair distributed mutual-exclusion manager over
// named resources, backed by Redis compare-and-swap (Lua EVAL) primitives
// with lease renewal and priority-ordered queue fairness.
package lock

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
	"github.com/R3E-Network/agent-orchestrator/internal/logging"
)

const (
	lockKeyPrefix  = "lock:"
	queueKeyPrefix = "lock:queue:"

	// DefaultRenewalInterval matches the spec's renew-every-10s default.
	DefaultRenewalInterval = 10 * time.Second

	// pollRate bounds how often a blocked Acquire call re-checks the queue.
	pollRate = 20 // per second
)

// Info is the read-only view of a held lock's metadata.
type Info struct {
	Resource      string
	Owner         string
	AcquiredAtMS  int64
	ExpiresAtMS   int64
	RenewalCount  int
}

// Manager is the caller-facing distributed lock manager. One Manager is
// typically constructed once per process and shared.
type Manager struct {
	store           store
	logger          *logging.Logger
	renewalInterval time.Duration
	maxQueueDepth   int

	mu          sync.Mutex
	heldByOwner map[string]map[string]bool // ownerID -> set of held resources
	waitingFor  map[string]string          // ownerID -> resource it is currently blocked on
}

// NewManager constructs a Manager backed by a real Redis client.
func NewManager(client *redis.Client, logger *logging.Logger, maxQueueDepth int) *Manager {
	return newManagerWithStore(newRedisStore(client), logger, maxQueueDepth)
}

func newManagerWithStore(s store, logger *logging.Logger, maxQueueDepth int) *Manager {
	if maxQueueDepth <= 0 {
		maxQueueDepth = 100
	}
	return &Manager{
		store:           s,
		logger:          logger,
		renewalInterval: DefaultRenewalInterval,
		maxQueueDepth:   maxQueueDepth,
		heldByOwner:     map[string]map[string]bool{},
		waitingFor:      map[string]string{},
	}
}

func lockKey(resource string) string  { return lockKeyPrefix + resource }
func queueKey(resource string) string { return queueKeyPrefix + resource }

// Acquire attempts to grant exclusive ownership of resource to owner.
// If blocking is false, it returns immediately with false on contention.
// If blocking is true, it enrolls in the resource's priority-ordered
// fairness queue and waits up to timeout, returning apperrors.LockTimeout
// on expiry or when a reciprocal wait-for cycle is locally observable.
func (m *Manager) Acquire(ctx context.Context, resource, owner string, timeout time.Duration, blocking bool, priority int, leaseTTL time.Duration) (bool, error) {
	if leaseTTL <= 0 {
		leaseTTL = 30 * time.Second
	}

	m.checkLexicalOrder(owner, resource)

	ok, err := m.store.evalAcquire(ctx, lockKey(resource), owner, leaseTTL, time.Now())
	if err != nil {
		return false, apperrors.Internal("lock acquire failed", err)
	}
	if ok {
		m.recordHeld(owner, resource)
		return true, nil
	}
	if !blocking {
		return false, nil
	}

	return m.acquireBlocking(ctx, resource, owner, timeout, priority, leaseTTL)
}

func (m *Manager) acquireBlocking(ctx context.Context, resource, owner string, timeout time.Duration, priority int, leaseTTL time.Duration) (bool, error) {
	holder, _ := m.store.hashFields(ctx, lockKey(resource))
	if m.wouldDeadlock(owner, holder["owner"]) {
		return false, apperrors.New(apperrors.CodeLockTimeout, "deadlock detected in wait-for graph", 0).WithDetails("resource", resource)
	}

	m.setWaiting(owner, resource)
	defer m.clearWaiting(owner)

	member := owner + ":" + uuid.NewString()
	score := fairnessScore(priority, time.Now())

	depth, err := m.store.queueTop(ctx, queueKey(resource), int64(m.maxQueueDepth+1))
	if err == nil && len(depth) >= m.maxQueueDepth {
		return false, apperrors.LockQueueFull(resource, len(depth))
	}

	if err := m.store.queueAdd(ctx, queueKey(resource), score, member); err != nil {
		return false, apperrors.Internal("lock queue enroll failed", err)
	}
	if err := m.store.expire(ctx, queueKey(resource), timeout+leaseTTL); err != nil {
		return false, apperrors.Internal("lock queue ttl failed", err)
	}
	defer m.store.queueRemove(ctx, queueKey(resource), member)

	deadline := time.Now().Add(timeout)
	limiter := rate.NewLimiter(rate.Limit(pollRate), 1)

	for time.Now().Before(deadline) {
		if err := limiter.Wait(ctx); err != nil {
			return false, err
		}

		top, err := m.store.queueTop(ctx, queueKey(resource), 1)
		if err != nil {
			return false, apperrors.Internal("lock queue read failed", err)
		}
		if len(top) == 0 || top[0] != member {
			continue
		}

		ok, err := m.store.evalAcquire(ctx, lockKey(resource), owner, leaseTTL, time.Now())
		if err != nil {
			return false, apperrors.Internal("lock acquire failed", err)
		}
		if ok {
			m.recordHeld(owner, resource)
			return true, nil
		}
	}

	return false, apperrors.LockTimeout(resource)
}

// fairnessScore encodes priority as the dominant term (higher priority
// sorts first under ZREVRANGE) with insertion time as a tiebreaker so that,
// within equal priority, earlier entries win.
func fairnessScore(priority int, insertedAt time.Time) float64 {
	return float64(priority)*1e13 - float64(insertedAt.Unix())
}

// Renew extends the lease if owner still holds resource.
func (m *Manager) Renew(ctx context.Context, resource, owner string, additional time.Duration) error {
	ok, err := m.store.evalRenew(ctx, lockKey(resource), owner, additional)
	if err != nil {
		return apperrors.Internal("lock renew failed", err)
	}
	if !ok {
		return apperrors.LockNotOwned(resource)
	}
	return nil
}

// Release atomically releases resource iff owner currently holds it; a
// release by a non-owner is a no-op, matching the spec's "no-op if not
// owner" contract rather than surfacing an error.
func (m *Manager) Release(ctx context.Context, resource, owner string) error {
	ok, err := m.store.evalRelease(ctx, lockKey(resource), owner)
	if err != nil {
		return apperrors.Internal("lock release failed", err)
	}
	if ok {
		m.forgetHeld(owner, resource)
	}
	return nil
}

// ForceRelease is an admin override that removes the lock unconditionally.
func (m *Manager) ForceRelease(ctx context.Context, resource string) error {
	return m.store.forceDelete(ctx, lockKey(resource))
}

// GCExpireQueue refreshes resource's fairness-queue TTL so a queue whose
// waiters all crashed before calling queueRemove is reclaimed by Redis
// instead of growing forever, rather than requiring every waiter's own
// cleanup to run. Intended to be called periodically by a background
// sweep for resources with a currently held lock.
func (m *Manager) GCExpireQueue(ctx context.Context, resource string, ttl time.Duration) error {
	return m.store.expire(ctx, queueKey(resource), ttl)
}

// IsLocked reports whether resource currently has an owner.
func (m *Manager) IsLocked(ctx context.Context, resource string) (bool, error) {
	fields, err := m.store.hashFields(ctx, lockKey(resource))
	if err != nil {
		return false, apperrors.Internal("lock info read failed", err)
	}
	_, ok := fields["owner"]
	return ok, nil
}

// GetLockInfo returns the current holder's metadata, or apperrors.NotFound
// if the resource is unlocked.
func (m *Manager) GetLockInfo(ctx context.Context, resource string) (*Info, error) {
	fields, err := m.store.hashFields(ctx, lockKey(resource))
	if err != nil {
		return nil, apperrors.Internal("lock info read failed", err)
	}
	owner, ok := fields["owner"]
	if !ok {
		return nil, apperrors.NotFound("lock", resource)
	}
	acquiredAt, _ := strconv.ParseInt(fields["acquired_at"], 10, 64)
	expiresAt, _ := strconv.ParseInt(fields["expires_at"], 10, 64)
	renewalCount, _ := strconv.Atoi(fields["renewal_count"])
	return &Info{
		Resource:     resource,
		Owner:        owner,
		AcquiredAtMS: acquiredAt,
		ExpiresAtMS:  expiresAt,
		RenewalCount: renewalCount,
	}, nil
}

// WithLock acquires resource on entry and guarantees release on every exit
// path (including a panic, which it re-panics after releasing), mirroring
// the source's context-manager form.
func (m *Manager) WithLock(ctx context.Context, resource, owner string, timeout, leaseTTL time.Duration, priority int, fn func(ctx context.Context) error) (err error) {
	ok, err := m.Acquire(ctx, resource, owner, timeout, true, priority, leaseTTL)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.LockTimeout(resource)
	}

	defer func() {
		releaseErr := m.Release(context.Background(), resource, owner)
		if r := recover(); r != nil {
			panic(r)
		}
		if err == nil {
			err = releaseErr
		}
	}()

	return fn(ctx)
}

// StartAutoRenew launches a background goroutine that renews resource for
// owner every renewalInterval until stopped or ctx is cancelled. The
// returned stop function must be called to release the goroutine; it does
// not itself release the lock.
func (m *Manager) StartAutoRenew(ctx context.Context, resource, owner string, leaseTTL time.Duration) (stop func()) {
	renewCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(m.renewalInterval)
		defer ticker.Stop()
		for {
			select {
			case <-renewCtx.Done():
				return
			case <-ticker.C:
				if err := m.Renew(renewCtx, resource, owner, leaseTTL); err != nil {
					m.logger.WithFields(map[string]interface{}{
						"resource": resource,
						"owner":    owner,
						"error":    err.Error(),
					}).Warn("lock auto-renew failed")
					return
				}
			}
		}
	}()
	return cancel
}

func (m *Manager) recordHeld(owner, resource string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.heldByOwner[owner] == nil {
		m.heldByOwner[owner] = map[string]bool{}
	}
	m.heldByOwner[owner][resource] = true
}

func (m *Manager) forgetHeld(owner, resource string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.heldByOwner[owner]; ok {
		delete(set, resource)
		if len(set) == 0 {
			delete(m.heldByOwner, owner)
		}
	}
}

func (m *Manager) setWaiting(owner, resource string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waitingFor[owner] = resource
}

func (m *Manager) clearWaiting(owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.waitingFor, owner)
}

// checkLexicalOrder enforces the monotone lexical acquisition policy used to
// catch local nesting bugs before they escalate into a real deadlock: if
// owner already holds a resource that sorts lexically after resource, the
// caller is about to nest acquisitions out of order. This only warns; it
// never rejects the acquisition, since the ordering policy is a convention
// for callers to follow, not a correctness requirement the manager enforces.
func (m *Manager) checkLexicalOrder(owner, resource string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for held := range m.heldByOwner[owner] {
		if held > resource {
			m.logger.WithFields(map[string]interface{}{
				"owner":         owner,
				"held_resource": held,
				"resource":      resource,
			}).Warn("lock acquisition order violates monotone lexical policy")
			return
		}
	}
}

// wouldDeadlock is a local, same-process deadlock heuristic: owner is about
// to block waiting on a resource held by holder. If holder is itself
// already blocked waiting on any resource owner currently holds, granting
// the wait would complete a two-party cycle that can never resolve, so the
// caller should fail fast instead of waiting out the full timeout. It does
// not attempt distributed cycle detection across processes.
func (m *Manager) wouldDeadlock(owner, holder string) bool {
	if holder == "" || holder == owner {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	holderWaitsOn, ok := m.waitingFor[holder]
	if !ok {
		return false
	}
	return m.heldByOwner[owner][holderWaitsOn]
}
