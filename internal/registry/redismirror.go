package registry

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const heartbeatKeyPrefix = "orchestrator:heartbeat:"

// RedisMirror is the production DurableMirror, backed by go-redis/redis/v8,
// grounded on internal/lock's redisStore: one SETEX-keyed entry per agent,
// scanned back on rehydration via a key-prefix SCAN rather than a single
// collection key, so one agent's mirror write never contends with another's.
type RedisMirror struct {
	client *redis.Client
}

// NewRedisMirror wraps client as a registry.DurableMirror.
func NewRedisMirror(client *redis.Client) *RedisMirror {
	return &RedisMirror{client: client}
}

func (m *RedisMirror) SaveHeartbeat(ctx context.Context, agentID string, snapshot []byte, ttl time.Duration) error {
	return m.client.Set(ctx, heartbeatKeyPrefix+agentID, snapshot, ttl).Err()
}

func (m *RedisMirror) DeleteHeartbeat(ctx context.Context, agentID string) error {
	return m.client.Del(ctx, heartbeatKeyPrefix+agentID).Err()
}

func (m *RedisMirror) LoadHeartbeats(ctx context.Context) (map[string][]byte, error) {
	out := map[string][]byte{}
	iter := m.client.Scan(ctx, 0, heartbeatKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		val, err := m.client.Get(ctx, key).Bytes()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		out[key[len(heartbeatKeyPrefix):]] = val
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
