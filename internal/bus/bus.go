// Package bus provides the broadcast channel between service instances.
// Every instance sees every published message; delivery is best-effort and
// conflict resolution is left to the consumer (the cache store applies
// last-writer-wins replacement, no merge). The same bus carries report
// generation job submissions.
package bus

import "context"

// Handler processes one received message
type Handler func(ctx context.Context, subject string, data []byte) error

// Publisher publishes messages to a subject
type Publisher interface {
	// Publish broadcasts a message on a subject
	Publish(ctx context.Context, subject string, data []byte) error

	// Close releases publisher resources
	Close() error
}

// Subscriber receives broadcast messages
type Subscriber interface {
	// Subscribe registers a handler for a subject
	Subscribe(ctx context.Context, subject string, handler Handler) error

	// Unsubscribe removes the handler for a subject
	Unsubscribe(subject string) error

	// Close releases subscriber resources
	Close() error
}

// Bus combines Publisher and Subscriber
type Bus interface {
	Publisher
	Subscriber
}
