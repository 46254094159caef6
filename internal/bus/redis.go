// README: Redis Pub/Sub implementation of the change bus.
package bus

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// RedisBus carries change events across processes on Redis Pub/Sub channels
// named changes:<table>:<key>. Table-wide subscriptions use a glob pattern.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, e Event) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelName(e.Table, e.Key), raw).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, table, key string) (*Subscription, error) {
	patterns := []string{channelName(table, key)}
	if key == "" {
		patterns = append(patterns, channelName(table, "*"))
	}

	ps := b.client.PSubscribe(ctx, patterns...)
	// Force the subscribe round-trip so a failed connection surfaces here
	// instead of as a silently dead stream.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := newSubscription(subscriptionBuffer, func() { _ = ps.Close() })
	go func() {
		for msg := range ps.Channel() {
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				continue
			}
			sub.deliver(e)
		}
	}()
	return sub, nil
}

func channelName(table, key string) string {
	if key == "" {
		return "changes:" + table
	}
	return "changes:" + table + ":" + key
}
