// Package notify publishes session domain events onto per-tenant Redis
// Pub/Sub channels, implementing the internal/executor.EventPublisher seam.
// internal/notify/wsgateway fans those channels back out to connected
// dashboard clients over a websocket.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/R3E-Network/agent-orchestrator/internal/domain/session"
	"github.com/R3E-Network/agent-orchestrator/internal/logging"
	"github.com/R3E-Network/agent-orchestrator/internal/tenancy"
)

const channelPrefix = "orchestrator:events:"

// ChannelFor returns the Redis Pub/Sub channel a given tenant's session
// events are published on.
func ChannelFor(tenantID string) string {
	return channelPrefix + tenantID
}

// Envelope is the wire shape published on a tenant's channel: the raised
// event's name plus a flattened, JSON-friendly view of its fields, with
// statuses written as their names rather than the integers session.Status
// holds.
type Envelope struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"session_id"`
	Data      map[string]interface{} `json:"data"`
}

func envelopeFor(event session.Event) Envelope {
	env := Envelope{Type: event.EventName(), Data: map[string]interface{}{}}
	switch e := event.(type) {
	case session.StatusChanged:
		env.SessionID = e.SessionID
		env.Data["from"] = string(e.From)
		env.Data["to"] = string(e.To)
	case session.Completed:
		env.SessionID = e.SessionID
		env.Data["success_rate"] = e.SuccessRate
	case session.Failed:
		env.SessionID = e.SessionID
		env.Data["reason"] = e.Reason
		env.Data["retryable"] = e.Retryable
	}
	return env
}

// publisherClient is the minimal Redis surface Publisher needs, mirroring
// internal/lock's narrow store interface so tests can substitute a fake
// rather than dragging in a real Redis server.
type publisherClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher is a Redis-backed internal/executor.EventPublisher. It publishes
// to the channel of the tenant carried on ctx (see internal/tenancy), so it
// requires every Publish call to happen within a tenant-scoped context --
// exactly the contexts internal/executor already operates under.
type Publisher struct {
	client publisherClient
	logger *logging.Logger
}

// NewPublisher builds a Publisher over an already-configured Redis client.
func NewPublisher(client *redis.Client, logger *logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{client: client, logger: logger}
}

// Publish fans events out to the calling tenant's channel. A context with no
// tenant id is a programming error in the caller, not a transient failure,
// so it returns an error rather than silently dropping the batch.
func (p *Publisher) Publish(ctx context.Context, events []session.Event) error {
	if len(events) == 0 {
		return nil
	}
	tenantID, ok := tenancy.FromContext(ctx)
	if !ok {
		return fmt.Errorf("notify: publish called without a tenant id on context")
	}

	channel := ChannelFor(tenantID)
	for _, event := range events {
		payload, err := json.Marshal(envelopeFor(event))
		if err != nil {
			return fmt.Errorf("notify: marshal event %s: %w", event.EventName(), err)
		}
		if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
			p.logger.WithFields(map[string]interface{}{"channel": channel, "event": event.EventName()}).Warn("notify: publish failed")
			return fmt.Errorf("notify: publish %s to %s: %w", event.EventName(), channel, err)
		}
	}
	return nil
}
