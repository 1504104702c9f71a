package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/peterkuimelis/cardrules/internal/log"
)

// ChannelPrefix is prepended to the game id to form the pub/sub channel.
const ChannelPrefix = "cardrules:game:"

// Channel returns the Redis channel events of gameID are published on.
func Channel(gameID string) string {
	return ChannelPrefix + gameID
}

// RedisPublisher publishes every event as one JSON message on the game's
// channel.
type RedisPublisher struct {
	client redis.UniversalClient
}

// NewRedisPublisher connects using a redis:// URL.
func NewRedisPublisher(url string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisPublisher{client: redis.NewClient(opts)}, nil
}

// NewRedisPublisherFromClient wraps an existing client.
func NewRedisPublisherFromClient(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Ping checks the connection.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisPublisher) Publish(ctx context.Context, gameID string, events []log.GameEvent) error {
	if len(events) == 0 {
		return nil
	}
	pipe := p.client.Pipeline()
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event %d: %w", ev.Seq, err)
		}
		pipe.Publish(ctx, Channel(gameID), data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish to %s: %w", Channel(gameID), err)
	}
	return nil
}

// Subscribe returns a subscription to the game's channel. Callers close it.
func (p *RedisPublisher) Subscribe(ctx context.Context, gameID string) *redis.PubSub {
	return p.client.Subscribe(ctx, Channel(gameID))
}

// Close closes the underlying client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
