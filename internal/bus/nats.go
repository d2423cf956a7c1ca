package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
)

// NATSBus implements Bus over core NATS publish/subscribe. Change events are
// ephemeral broadcasts: an instance that was down while an event fired will
// re-read the shared backend on its next load anyway, so durable delivery
// buys nothing here and JetStream is deliberately not used.
type NATSBus struct {
	conn          *nats.Conn
	subscriptions map[string]*nats.Subscription
	mu            sync.RWMutex
}

// NewNATSBus connects to a NATS server
func NewNATSBus(url string) (*NATSBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSBus{
		conn:          conn,
		subscriptions: make(map[string]*nats.Subscription),
	}, nil
}

// NewNATSBusWithConn wraps an existing connection (used in tests)
func NewNATSBusWithConn(conn *nats.Conn) *NATSBus {
	return &NATSBus{
		conn:          conn,
		subscriptions: make(map[string]*nats.Subscription),
	}
}

// Publish broadcasts a message on a subject
func (b *NATSBus) Publish(ctx context.Context, subject string, data []byte) error {
	if err := b.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for a subject
func (b *NATSBus) Subscribe(ctx context.Context, subject string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscriptions[subject]; exists {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}

	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		_ = handler(ctx, subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
	}

	b.subscriptions[subject] = sub
	return nil
}

// Unsubscribe removes the subscription for a subject
func (b *NATSBus) Unsubscribe(subject string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, exists := b.subscriptions[subject]
	if !exists {
		return fmt.Errorf("not subscribed to subject: %s", subject)
	}

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe from subject %s: %w", subject, err)
	}

	delete(b.subscriptions, subject)
	return nil
}

// Close unsubscribes everything and closes the connection
func (b *NATSBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subject, sub := range b.subscriptions {
		_ = sub.Unsubscribe()
		delete(b.subscriptions, subject)
	}

	b.conn.Close()
	return nil
}
