package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/datacove/console/common/logger"
	rediscommon "github.com/datacove/console/common/redis"
	"github.com/google/uuid"
)

// Notification event types consumed by the UI for live refresh
const (
	EventChangeCreated   = "change_created"
	EventChangeApproved  = "change_approved"
	EventChangeRejected  = "change_rejected"
	EventChangeWithdrawn = "change_withdrawn"
	EventVersionCreated  = "version_created"
)

// Event is one notification published to the event bus
type Event struct {
	Type            string     `json:"type"`
	DatasetID       uuid.UUID  `json:"dataset_id"`
	ChangeRequestID *uuid.UUID `json:"change_request_id,omitempty"`
	Version         *int64     `json:"version,omitempty"`
	Actor           string     `json:"actor"`
	At              time.Time  `json:"at"`
}

// Notifier delivers events to subscribers. Delivery is best-effort;
// a failed publish never fails the operation that produced the event.
type Notifier interface {
	Notify(ctx context.Context, evt Event)
}

// RedisNotifier publishes events on a Redis pub/sub channel
type RedisNotifier struct {
	client  *rediscommon.Client
	channel string
	log     *logger.Logger
}

// NewRedisNotifier creates a new Redis-backed notifier
func NewRedisNotifier(client *rediscommon.Client, channel string, log *logger.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:  client,
		channel: channel,
		log:     log,
	}
}

// Notify publishes one event as JSON
func (n *RedisNotifier) Notify(ctx context.Context, evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		n.log.Error("failed to marshal notification", "type", evt.Type, "error", err)
		return
	}

	if err := n.client.Publish(ctx, n.channel, payload); err != nil {
		n.log.Warn("failed to publish notification", "type", evt.Type, "error", err)
	}
}

// NoopNotifier discards all events. Used when the notifier is disabled
// and in tests.
type NoopNotifier struct{}

// Notify discards the event
func (NoopNotifier) Notify(ctx context.Context, evt Event) {}
