package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis pub/sub channel changes travel on.
const DefaultChannel = "garderoba:changes"

// Redis is a Feed over Redis pub/sub, shared by every server process that
// talks to the same Redis.
type Redis struct {
	client  *redis.Client
	channel string
}

// NewRedis returns a Feed publishing on channel, or DefaultChannel if empty.
func NewRedis(client *redis.Client, channel string) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{client: client, channel: channel}
}

func (r *Redis) Publish(ctx context.Context, c Change) error {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding change: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing change: %w", err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, f Filter) (<-chan Change, func(), error) {
	ps := r.client.Subscribe(ctx, r.channel)
	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, nil, fmt.Errorf("subscribing to changes: %w", err)
	}

	out := make(chan Change, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				slog.Warn("dropping malformed change", "channel", msg.Channel, "error", err)
				continue
			}
			if !f.Match(c) {
				continue
			}
			select {
			case out <- c:
			default:
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() { ps.Close() })
	}
	stop := context.AfterFunc(ctx, cancel)

	return out, func() {
		stop()
		cancel()
	}, nil
}
