package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBroker fans changes out across processes with Redis pub/sub.
type RedisBroker struct {
	client *redis.Client
	size   int
}

// NewRedisBroker builds a broker on an existing client.
func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client, size: 16}
}

// Publish sends c as JSON on topic.
func (b *RedisBroker) Publish(ctx context.Context, topic string, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("feed: encode change: %w", err)
	}
	return b.client.Publish(ctx, topic, payload).Err()
}

// Subscribe waits for Redis to confirm the subscription before returning,
// so a publish issued after Subscribe returns is never missed.
func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	ps := b.client.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("feed: subscribe %s: %w", topic, err)
	}

	out := make(chan Change, b.size)
	done := make(chan struct{})
	sub := newSubscription(out, func() {
		close(done)
		_ = ps.Close()
	})

	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					log.Warn().Err(err).Str("topic", topic).Msg("dropping malformed change notification")
					continue
				}
				select {
				case out <- c:
				default:
				}
			}
		}
	}()
	return sub, nil
}
