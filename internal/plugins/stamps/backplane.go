package stamps

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Backplane carries relayed messages between hubs in different processes.
// Every hub publishes to it and dispatches only what it receives back, so
// the backplane's own ordering becomes the global order.
type Backplane interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(ctx context.Context) (<-chan Message, error)
	Close() error
}

// RedisBackplane implements Backplane with Redis pub/sub on a single channel.
type RedisBackplane struct {
	client  *redis.Client
	channel string

	mu     sync.Mutex
	pubsub *redis.PubSub
}

// NewRedisBackplane creates a backplane publishing on the given Redis channel.
func NewRedisBackplane(client *redis.Client, channel string) *RedisBackplane {
	return &RedisBackplane{client: client, channel: channel}
}

// Publish sends msg to every subscribed hub, this one included.
func (b *RedisBackplane) Publish(ctx context.Context, msg Message) error {
	if err := b.client.Publish(ctx, b.channel, []byte(msg)).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", b.channel, err)
	}
	return nil
}

// Subscribe starts receiving messages. The returned channel is closed when
// ctx is done or the backplane is closed.
func (b *RedisBackplane) Subscribe(ctx context.Context) (<-chan Message, error) {
	ps := b.client.Subscribe(ctx, b.channel)

	// Wait for the subscription confirmation so no message published after
	// Subscribe returns can be missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", b.channel, err)
	}

	b.mu.Lock()
	b.pubsub = ps
	b.mu.Unlock()

	out := make(chan Message, 256)
	go func() {
		defer close(out)
		in := ps.Channel()
		for {
			select {
			case m, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- Message(m.Payload):
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	slog.Info("relay backplane subscribed", slog.String("channel", b.channel))
	return out, nil
}

// Close ends the subscription. The Redis client itself is owned by the caller.
func (b *RedisBackplane) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub == nil {
		return nil
	}
	err := b.pubsub.Close()
	b.pubsub = nil
	return err
}
