// internal/notify/dispatcher.go
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// Dispatcher emits post-commit events for the notification pipeline.
// Dispatch is fire-and-forget: it must never block the calling mutation and
// a delivery failure must never fail the mutation.
type Dispatcher interface {
	Dispatch(userID int64, eventKind string, payload map[string]any)
}

// Event is the wire shape published to the notification channel.
type Event struct {
	UserID    int64          `json:"user_id"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	EmittedAt time.Time      `json:"emitted_at"`
}

// RedisDispatcher publishes events to a Redis channel consumed by the
// notification service. Publish runs on its own goroutine with its own
// deadline so a slow Redis cannot stall a ledger commit.
type RedisDispatcher struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisDispatcher creates a RedisDispatcher publishing to the given channel.
func NewRedisDispatcher(client *redis.Client, channel string, logger *slog.Logger) *RedisDispatcher {
	return &RedisDispatcher{client: client, channel: channel, logger: logger}
}

// Dispatch publishes the event asynchronously. Errors are logged and dropped.
func (d *RedisDispatcher) Dispatch(userID int64, eventKind string, payload map[string]any) {
	event := Event{
		UserID:    userID,
		Kind:      eventKind,
		Payload:   payload,
		EmittedAt: time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		body, err := json.Marshal(event)
		if err != nil {
			d.logger.Error("Failed to marshal notification event", "kind", eventKind, "error", err)
			return
		}
		if err := d.client.Publish(ctx, d.channel, string(body)).Err(); err != nil {
			d.logger.Error("Failed to publish notification event", "kind", eventKind, "error", err)
		}
	}()
}

// NopDispatcher discards all events. Used when Redis is not configured and
// in tests.
type NopDispatcher struct{}

// Dispatch implements Dispatcher.
func (NopDispatcher) Dispatch(userID int64, eventKind string, payload map[string]any) {}
