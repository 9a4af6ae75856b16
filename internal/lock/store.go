package lock

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// store is the minimal Redis surface the lock Manager needs. It exists so
// tests can substitute an in-memory fake without dragging in a real Redis
// server; the production implementation is redisStore, a thin adapter over
// *redis.Client.
type store interface {
	// evalAcquire atomically grants the lock to owner if it is free or
	// already held by owner, setting its TTL in the same round trip.
	evalAcquire(ctx context.Context, key, owner string, ttl time.Duration, now time.Time) (bool, error)
	// evalRenew atomically extends the TTL if owner still holds the lock.
	evalRenew(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// evalRelease atomically deletes the lock iff owner currently holds it.
	evalRelease(ctx context.Context, key, owner string) (bool, error)
	// forceDelete unconditionally removes the lock key (admin override).
	forceDelete(ctx context.Context, key string) error

	hashFields(ctx context.Context, key string) (map[string]string, error)

	// Fairness queue primitives, keyed per resource.
	queueAdd(ctx context.Context, queueKey string, score float64, member string) error
	queueTop(ctx context.Context, queueKey string, count int64) ([]string, error)
	queueRemove(ctx context.Context, queueKey string, member string) error
	expire(ctx context.Context, key string, ttl time.Duration) error
}

const (
	acquireScript = `
local current = redis.call('HGET', KEYS[1], 'owner')
if current == false or current == ARGV[1] then
  redis.call('HSET', KEYS[1], 'owner', ARGV[1], 'acquired_at', ARGV[2], 'expires_at', ARGV[3], 'renewal_count', '0')
  redis.call('PEXPIRE', KEYS[1], ARGV[4])
  return 1
end
return 0
`
	renewScript = `
local current = redis.call('HGET', KEYS[1], 'owner')
if current == ARGV[1] then
  redis.call('HINCRBY', KEYS[1], 'renewal_count', 1)
  redis.call('HSET', KEYS[1], 'expires_at', ARGV[2])
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
  return 1
end
return 0
`
	releaseScript = `
local current = redis.call('HGET', KEYS[1], 'owner')
if current == ARGV[1] then
  redis.call('DEL', KEYS[1])
  return 1
end
return 0
`
)

// redisStore is the production store backed by go-redis/redis/v8.
type redisStore struct {
	client *redis.Client
}

func newRedisStore(client *redis.Client) *redisStore {
	return &redisStore{client: client}
}

func (s *redisStore) evalAcquire(ctx context.Context, key, owner string, ttl time.Duration, now time.Time) (bool, error) {
	nowMS := now.UnixMilli()
	expiresMS := now.Add(ttl).UnixMilli()
	res, err := s.client.Eval(ctx, acquireScript, []string{key},
		owner, strconv.FormatInt(nowMS, 10), strconv.FormatInt(expiresMS, 10), strconv.FormatInt(ttl.Milliseconds(), 10)).Result()
	if err != nil {
		return false, err
	}
	return toBool(res), nil
}

func (s *redisStore) evalRenew(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	expiresMS := time.Now().Add(ttl).UnixMilli()
	res, err := s.client.Eval(ctx, renewScript, []string{key},
		owner, strconv.FormatInt(expiresMS, 10), strconv.FormatInt(ttl.Milliseconds(), 10)).Result()
	if err != nil {
		return false, err
	}
	return toBool(res), nil
}

func (s *redisStore) evalRelease(ctx context.Context, key, owner string) (bool, error) {
	res, err := s.client.Eval(ctx, releaseScript, []string{key}, owner).Result()
	if err != nil {
		return false, err
	}
	return toBool(res), nil
}

func (s *redisStore) forceDelete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *redisStore) hashFields(ctx context.Context, key string) (map[string]string, error) {
	return s.client.HGetAll(ctx, key).Result()
}

func (s *redisStore) queueAdd(ctx context.Context, queueKey string, score float64, member string) error {
	return s.client.ZAdd(ctx, queueKey, &redis.Z{Score: score, Member: member}).Err()
}

func (s *redisStore) queueTop(ctx context.Context, queueKey string, count int64) ([]string, error) {
	return s.client.ZRevRange(ctx, queueKey, 0, count-1).Result()
}

func (s *redisStore) queueRemove(ctx context.Context, queueKey string, member string) error {
	return s.client.ZRem(ctx, queueKey, member).Err()
}

func (s *redisStore) expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

func toBool(v interface{}) bool {
	switch n := v.(type) {
	case int64:
		return n == 1
	case int:
		return n == 1
	default:
		return false
	}
}
