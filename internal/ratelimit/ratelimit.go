// Package ratelimit throttles inbound HTTP calls per tenant, grounded on
// the teacher's infrastructure/ratelimit.RateLimiter (golang.org/x/time/rate
// wrapped with a config struct and a Reset method), generalized from one
// shared limiter for the whole process to one limiter per tenant so a
// single noisy tenant cannot starve another's request budget.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config tunes a single tenant's limiter.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig matches the teacher's defaults: 100 req/s, burst 200.
func DefaultConfig() Config {
	return Config{RequestsPerSecond: 100, Burst: 200}
}

// TenantLimiter holds one token-bucket limiter per tenant, created lazily
// on first use and reused across requests.
type TenantLimiter struct {
	cfg      Config
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewTenantLimiter builds a TenantLimiter using cfg for every tenant's
// bucket. A zero Config falls back to DefaultConfig.
func NewTenantLimiter(cfg Config) *TenantLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg = DefaultConfig()
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond * 2)
	}
	return &TenantLimiter{cfg: cfg, limiters: map[string]*rate.Limiter{}}
}

// Allow reports whether tenantID may make a request right now, consuming a
// token from its bucket if so.
func (t *TenantLimiter) Allow(tenantID string) bool {
	return t.limiterFor(tenantID).Allow()
}

func (t *TenantLimiter) limiterFor(tenantID string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[tenantID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(t.cfg.RequestsPerSecond), t.cfg.Burst)
		t.limiters[tenantID] = l
	}
	return l
}

// Reset clears tenantID's bucket back to a fresh limiter, e.g. after a
// plan change raises its quota mid-process.
func (t *TenantLimiter) Reset(tenantID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.limiters, tenantID)
}
