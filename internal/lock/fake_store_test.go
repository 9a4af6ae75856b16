package lock

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

// fakeStore is an in-memory stand-in for redisStore, sufficient to exercise
// Manager's acquire/renew/release and fairness-queue logic without a real
// Redis server.
type fakeStore struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	queues map[string]map[string]float64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		hashes: map[string]map[string]string{},
		queues: map[string]map[string]float64{},
	}
}

func (f *fakeStore) evalAcquire(ctx context.Context, key, owner string, ttl time.Duration, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	h, exists := f.hashes[key]
	if exists {
		if expiresMS, err := strconv.ParseInt(h["expires_at"], 10, 64); err == nil {
			if now.After(time.UnixMilli(expiresMS)) {
				exists = false
			}
		}
	}
	if exists && h["owner"] != owner {
		return false, nil
	}

	f.hashes[key] = map[string]string{
		"owner":         owner,
		"acquired_at":   strconv.FormatInt(now.UnixMilli(), 10),
		"expires_at":    strconv.FormatInt(now.Add(ttl).UnixMilli(), 10),
		"renewal_count": "0",
	}
	return true, nil
}

func (f *fakeStore) evalRenew(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	h, ok := f.hashes[key]
	if !ok || h["owner"] != owner {
		return false, nil
	}
	h["expires_at"] = strconv.FormatInt(time.Now().Add(ttl).UnixMilli(), 10)
	count, _ := strconv.Atoi(h["renewal_count"])
	h["renewal_count"] = strconv.Itoa(count + 1)
	return true, nil
}

func (f *fakeStore) evalRelease(ctx context.Context, key, owner string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	h, ok := f.hashes[key]
	if !ok || h["owner"] != owner {
		return false, nil
	}
	delete(f.hashes, key)
	return true, nil
}

func (f *fakeStore) forceDelete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.hashes, key)
	return nil
}

func (f *fakeStore) hashFields(ctx context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]string{}
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) queueAdd(ctx context.Context, queueKey string, score float64, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queues[queueKey] == nil {
		f.queues[queueKey] = map[string]float64{}
	}
	f.queues[queueKey][member] = score
	return nil
}

func (f *fakeStore) queueTop(ctx context.Context, queueKey string, count int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	members := make([]string, 0, len(f.queues[queueKey]))
	for m := range f.queues[queueKey] {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		return f.queues[queueKey][members[i]] > f.queues[queueKey][members[j]]
	})
	if int64(len(members)) > count {
		members = members[:count]
	}
	return members, nil
}

func (f *fakeStore) queueRemove(ctx context.Context, queueKey string, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.queues[queueKey], member)
	return nil
}

func (f *fakeStore) expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}
