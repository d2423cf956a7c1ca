package bus

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus for tests and development. Unlike a work
// queue, publishing fans out to every registered handler for the subject.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	closed   bool
}

// NewMemoryBus creates an in-memory bus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		handlers: make(map[string][]Handler),
	}
}

// Publish delivers the message synchronously to every subscribed handler.
// Handler errors do not fail the publish; broadcast delivery is best-effort.
func (b *MemoryBus) Publish(ctx context.Context, subject string, data []byte) error {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[subject]))
	copy(handlers, b.handlers[subject])
	b.mu.RUnlock()

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	for _, handler := range handlers {
		_ = handler(ctx, subject, dataCopy)
	}
	return nil
}

// Subscribe registers a handler for a subject
func (b *MemoryBus) Subscribe(ctx context.Context, subject string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[subject] = append(b.handlers[subject], handler)
	return nil
}

// Unsubscribe removes all handlers for a subject
func (b *MemoryBus) Unsubscribe(subject string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.handlers, subject)
	return nil
}

// Close drops all handlers
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = make(map[string][]Handler)
	b.closed = true
	return nil
}
