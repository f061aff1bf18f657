// Package messaging delivers domain events to the host application over
// Redis pub/sub.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"supplyhub/internal/domain/events"
	"supplyhub/internal/infrastructure/storage/postgres"
	"supplyhub/pkg/logger"
)

// DefaultChannel is where events are published unless configured otherwise.
const DefaultChannel = "supplyhub:events"

// publishClient is the slice of the go-redis API the publisher needs.
type publishClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher publishes events as JSON on one channel.
// It serves both as the outbox relay handler and as a Bus subscriber.
type RedisPublisher struct {
	rdb     publishClient
	channel string
}

var _ postgres.OutboxHandler = (*RedisPublisher)(nil)

// NewRedisPublisher creates a publisher on channel.
func NewRedisPublisher(rdb redis.UniversalClient, channel string) *RedisPublisher {
	return newRedisPublisher(rdb, channel)
}

func newRedisPublisher(rdb publishClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

// Channel returns the pub/sub channel name.
func (p *RedisPublisher) Channel() string {
	return p.channel
}

// Send publishes a single event. Its signature matches events.Handler.
func (p *RedisPublisher) Send(ctx context.Context, e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.ID, err)
	}

	receivers, err := p.rdb.Publish(ctx, p.channel, data).Result()
	if err != nil {
		return fmt.Errorf("publish event %s: %w", e.ID, err)
	}

	logger.Debug(ctx, "event published",
		"event_id", e.ID,
		"type", e.Type,
		"channel", p.channel,
		"receivers", receivers)
	return nil
}

// Handle implements postgres.OutboxHandler.
func (p *RedisPublisher) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	e, err := msg.Event()
	if err != nil {
		return err
	}
	return p.Send(ctx, e)
}
