package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AlfRonDon/neurareport/internal/logging"
)

var redisLog = logging.Global().With("component", "bus.redis")

// RedisBus implements Bus over Redis pub/sub channels. Channels rather than
// streams: every instance must see every event and nothing should be retained
// for consumers that are not listening.
type RedisBus struct {
	client        *redis.Client
	channelPrefix string
	subscriptions map[string]func()
	mu            sync.RWMutex
}

// NewRedisBus connects to Redis and prepares a pub/sub bus
func NewRedisBus(addr, password string, db int, channelPrefix string) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBus{
		client:        client,
		channelPrefix: channelPrefix,
		subscriptions: make(map[string]func()),
	}, nil
}

// Publish broadcasts a message on a channel
func (b *RedisBus) Publish(ctx context.Context, subject string, data []byte) error {
	if err := b.client.Publish(ctx, b.channelName(subject), data).Err(); err != nil {
		return fmt.Errorf("failed to publish to channel %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for a channel
func (b *RedisBus) Subscribe(ctx context.Context, subject string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	channel := b.channelName(subject)
	if _, exists := b.subscriptions[channel]; exists {
		return fmt.Errorf("already subscribed to channel: %s", channel)
	}

	pubsub := b.client.Subscribe(ctx, channel)

	// Confirm the subscription before returning so no published event
	// between Subscribe and the first receive is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to channel %s: %w", channel, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	b.subscriptions[channel] = func() {
		cancel()
		_ = pubsub.Close()
	}

	go b.consume(subCtx, pubsub, subject, handler)

	redisLog.Info("Subscribed to Redis channel", "channel", channel)
	return nil
}

// consume delivers channel messages to the handler until cancelled
func (b *RedisBus) consume(ctx context.Context, pubsub *redis.PubSub, subject string, handler Handler) {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := handler(ctx, subject, []byte(msg.Payload)); err != nil {
				redisLog.Error("Failed to handle message", "channel", msg.Channel, "error", err)
			}
		}
	}
}

// channelName converts a subject to a namespaced Redis channel
func (b *RedisBus) channelName(subject string) string {
	return fmt.Sprintf("%s:%s", b.channelPrefix, subject)
}

// Unsubscribe removes the subscription for a subject
func (b *RedisBus) Unsubscribe(subject string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	channel := b.channelName(subject)
	stop, exists := b.subscriptions[channel]
	if !exists {
		return fmt.Errorf("not subscribed to channel: %s", channel)
	}

	stop()
	delete(b.subscriptions, channel)
	redisLog.Info("Unsubscribed from Redis channel", "channel", channel)
	return nil
}

// Close stops all subscriptions and closes the connection
func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for channel, stop := range b.subscriptions {
		stop()
		redisLog.Debug("Cancelled subscription", "channel", channel)
	}
	b.subscriptions = make(map[string]func())

	if err := b.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}
	return nil
}
