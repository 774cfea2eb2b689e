// Package notification forwards marketplace events to interested actors
// over Redis pub/sub. Delivery to end users (push, email, websocket) is
// handled by subscribers outside this service.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/wholesale/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultChannel is the pub/sub channel notifications are published on
const DefaultChannel = "marketplace.notifications"

// Message is the wire format published for each event
type Message struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	Recipients    []uuid.UUID     `json:"recipients"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Event         json.RawMessage `json:"event"`
}

// Publisher is the subset of the Redis client used for publishing
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher is an event handler that publishes every event with at
// least one recipient. Events without recipients are dropped.
type RedisPublisher struct {
	client  Publisher
	channel string
	logger  *zap.Logger
}

// NewRedisPublisher creates a notification publisher on channel
func NewRedisPublisher(client Publisher, channel string, logger *zap.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

// EventTypes subscribes to every event
func (p *RedisPublisher) EventTypes() []string {
	return nil
}

// Handle publishes event
func (p *RedisPublisher) Handle(ctx context.Context, event shared.DomainEvent) error {
	recipients := event.Recipients()
	if len(recipients) == 0 {
		return nil
	}

	msg, err := NewMessage(event)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish notification %s: %w", event.EventID(), err)
	}

	p.logger.Debug("notification published",
		zap.String("event_type", event.EventType()),
		zap.Int("recipients", len(recipients)),
	)
	return nil
}

// NewMessage builds the wire message for event
func NewMessage(event shared.DomainEvent) (*Message, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event.EventType(), err)
	}
	return &Message{
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		Recipients:    dedupe(event.Recipients()),
		OccurredAt:    event.OccurredAt(),
		Event:         body,
	}, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

var _ shared.EventHandler = (*RedisPublisher)(nil)
