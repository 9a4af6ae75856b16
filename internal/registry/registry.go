// Package registry is the in-memory, Redis-mirrored index of agents
// available to the orchestration kernel.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
	"github.com/R3E-Network/agent-orchestrator/internal/domain/agent"
	"github.com/R3E-Network/agent-orchestrator/infrastructure/cache"
)

const (
	defaultHeartbeatMaxAge = 300 * time.Second
	statsCacheTTL          = 5 * time.Second
	statsCacheKey          = "registry:statistics"
)

// DurableMirror is the subset of Redis operations used to mirror agent
// heartbeats with a TTL. The Registry writes an entry on Register and
// UpdateHeartbeat and deletes it on Deregister; it never calls
// LoadHeartbeats, so a restarted process starts from an empty registry.
// Grounded on the same SETEX-keyed ownership pattern the lock manager uses
// for lease keys.
type DurableMirror interface {
	SaveHeartbeat(ctx context.Context, agentID string, snapshot []byte, ttl time.Duration) error
	LoadHeartbeats(ctx context.Context) (map[string][]byte, error)
	DeleteHeartbeat(ctx context.Context, agentID string) error
}

// Statistics summarizes the registry's current composition.
type Statistics struct {
	TotalAgents      int
	ByTier           map[agent.Tier]int
	ByType           map[agent.Type]int
	AvailableCount   int
	DegradedCount    int
	MeanUtilization  float64
}

// Registry is the primary in-memory agent index. All mutation and lookup
// goes through a single RWMutex, matching the teacher's cache shape; a
// durable mirror is optional and, if set, receives heartbeat writes.
type Registry struct {
	mu sync.RWMutex

	byID         map[string]*agent.RegisteredAgent
	byCapability map[agent.Capability]map[string]bool
	byTier       map[agent.Tier]map[string]bool

	mirror          DurableMirror
	heartbeatMaxAge time.Duration
	statsCache      *cache.Cache
}

// New constructs an empty Registry. mirror may be nil to run purely
// in-memory (suitable for tests).
func New(mirror DurableMirror) *Registry {
	return &Registry{
		byID:            map[string]*agent.RegisteredAgent{},
		byCapability:    map[agent.Capability]map[string]bool{},
		byTier:          map[agent.Tier]map[string]bool{},
		mirror:          mirror,
		heartbeatMaxAge: defaultHeartbeatMaxAge,
		statsCache:      cache.NewCache(cache.Config{DefaultTTL: statsCacheTTL, MaxSize: 64, CleanupInterval: time.Minute}),
	}
}

// Register adds or replaces an agent in the index.
func (r *Registry) Register(ctx context.Context, a *agent.RegisteredAgent) error {
	if a == nil || a.ID == "" {
		return apperrors.MissingParameter("agent.id")
	}

	r.mu.Lock()
	r.unindexLocked(a.ID)
	r.byID[a.ID] = a
	r.indexLocked(a)
	r.mu.Unlock()

	r.statsCache.InvalidateAll()

	if r.mirror != nil {
		if err := r.mirror.SaveHeartbeat(ctx, a.ID, nil, r.heartbeatMaxAge); err != nil {
			return apperrors.StorageError("registry.register.mirror", err)
		}
	}
	return nil
}

// Deregister removes an agent from the index.
func (r *Registry) Deregister(ctx context.Context, agentID string) error {
	r.mu.Lock()
	r.unindexLocked(agentID)
	delete(r.byID, agentID)
	r.mu.Unlock()

	r.statsCache.InvalidateAll()

	if r.mirror != nil {
		if err := r.mirror.DeleteHeartbeat(ctx, agentID); err != nil {
			return apperrors.StorageError("registry.deregister.mirror", err)
		}
	}
	return nil
}

// Get returns the agent by id, or apperrors.NotFound.
func (r *Registry) Get(agentID string) (*agent.RegisteredAgent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[agentID]
	if !ok {
		return nil, apperrors.NotFound("agent", agentID)
	}
	return a, nil
}

// Update replaces the stored record for an already-registered agent,
// re-indexing its capability and tier sets.
func (r *Registry) Update(a *agent.RegisteredAgent) error {
	if a == nil || a.ID == "" {
		return apperrors.MissingParameter("agent.id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[a.ID]; !ok {
		return apperrors.NotFound("agent", a.ID)
	}
	r.unindexLocked(a.ID)
	r.byID[a.ID] = a
	r.indexLocked(a)
	r.statsCache.InvalidateAll()
	return nil
}

// FindByCapability returns every agent carrying cap.
func (r *Registry) FindByCapability(cap agent.Capability) []*agent.RegisteredAgent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*agent.RegisteredAgent
	for id := range r.byCapability[cap] {
		out = append(out, r.byID[id])
	}
	return out
}

// FindByCapabilities returns agents carrying every capability in caps when
// matchAll is true, or any capability in caps when matchAll is false.
func (r *Registry) FindByCapabilities(caps []agent.Capability, matchAll bool) []*agent.RegisteredAgent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := map[string]int{}
	for _, c := range caps {
		for id := range r.byCapability[c] {
			counts[id]++
		}
	}

	var out []*agent.RegisteredAgent
	for id, n := range counts {
		if matchAll && n < len(caps) {
			continue
		}
		out = append(out, r.byID[id])
	}
	return out
}

// FindByTier returns every agent at exactly tier.
func (r *Registry) FindByTier(tier agent.Tier) []*agent.RegisteredAgent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*agent.RegisteredAgent
	for id := range r.byTier[tier] {
		out = append(out, r.byID[id])
	}
	return out
}

// FindAvailable returns agents that are not degraded, not overloaded, and
// have spare capacity.
func (r *Registry) FindAvailable() []*agent.RegisteredAgent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*agent.RegisteredAgent
	for _, a := range r.byID {
		if a.IsAvailable() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateHeartbeat refreshes an agent's liveness timestamp and, if a mirror
// is configured, its durable lease.
func (r *Registry) UpdateHeartbeat(ctx context.Context, agentID string, now time.Time) error {
	r.mu.Lock()
	a, ok := r.byID[agentID]
	if ok {
		a.Heartbeat(now)
	}
	r.mu.Unlock()
	if !ok {
		return apperrors.NotFound("agent", agentID)
	}
	if r.mirror != nil {
		return r.mirror.SaveHeartbeat(ctx, agentID, nil, r.heartbeatMaxAge)
	}
	return nil
}

// IncrementTaskCount bumps an agent's current load by one.
func (r *Registry) IncrementTaskCount(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[agentID]
	if !ok {
		return apperrors.NotFound("agent", agentID)
	}
	a.IncrementTaskCount()
	return nil
}

// DecrementTaskCount lowers an agent's current load by one, floored at 0.
func (r *Registry) DecrementTaskCount(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[agentID]
	if !ok {
		return apperrors.NotFound("agent", agentID)
	}
	a.DecrementTaskCount()
	return nil
}

// GetStatistics computes a registry-wide summary, cached for
// statsCacheTTL to bound the cost of repeated polling.
func (r *Registry) GetStatistics() Statistics {
	if cached, ok := r.statsCache.Get(statsCacheKey); ok {
		return cached.(Statistics)
	}

	r.mu.RLock()
	stats := Statistics{
		ByTier: map[agent.Tier]int{},
		ByType: map[agent.Type]int{},
	}
	var utilizationSum float64
	for _, a := range r.byID {
		stats.TotalAgents++
		stats.ByTier[a.Tier]++
		stats.ByType[a.Type]++
		if a.Tier == agent.TierDegraded {
			stats.DegradedCount++
		}
		if a.IsAvailable() {
			stats.AvailableCount++
		}
		if a.MaxConcurrentTasks > 0 {
			utilizationSum += float64(a.CurrentTasks) / float64(a.MaxConcurrentTasks)
		}
	}
	r.mu.RUnlock()

	if stats.TotalAgents > 0 {
		stats.MeanUtilization = utilizationSum / float64(stats.TotalAgents)
	}

	r.statsCache.Set(statsCacheKey, stats, statsCacheTTL)
	return stats
}

// CleanupStaleAgents removes any agent whose last heartbeat is older than
// maxAge, returning the removed ids.
func (r *Registry) CleanupStaleAgents(now time.Time, maxAge time.Duration) []string {
	r.mu.Lock()
	var stale []string
	for id, a := range r.byID {
		if a.IsExpired(now, maxAge) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		r.unindexLocked(id)
		delete(r.byID, id)
	}
	r.mu.Unlock()

	if len(stale) > 0 {
		r.statsCache.InvalidateAll()
	}
	return stale
}

func (r *Registry) indexLocked(a *agent.RegisteredAgent) {
	for c, has := range a.Capabilities {
		if !has {
			continue
		}
		if r.byCapability[c] == nil {
			r.byCapability[c] = map[string]bool{}
		}
		r.byCapability[c][a.ID] = true
	}
	if r.byTier[a.Tier] == nil {
		r.byTier[a.Tier] = map[string]bool{}
	}
	r.byTier[a.Tier][a.ID] = true
}

func (r *Registry) unindexLocked(agentID string) {
	prev, ok := r.byID[agentID]
	if !ok {
		return
	}
	for c := range prev.Capabilities {
		delete(r.byCapability[c], agentID)
	}
	delete(r.byTier[prev.Tier], agentID)
}
