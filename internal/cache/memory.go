package cache

import (
	"context"
	"sync"
)

// MemoryBackend is an in-process Backend for tests and development
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string][]byte
	quota  int64 // 0 = unlimited
}

// NewMemoryBackend creates an in-memory backend
func NewMemoryBackend(quota int64) *MemoryBackend {
	return &MemoryBackend{
		values: make(map[string][]byte),
		quota:  quota,
	}
}

// Get returns the value stored under key
func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

// Set stores the value under key
func (m *MemoryBackend) Set(ctx context.Context, key string, data []byte) error {
	if m.quota > 0 && int64(len(data)) > m.quota {
		return ErrQuotaExceeded
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	m.values[key] = stored
	return nil
}

// Delete removes the value under key
func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}

// Close is a no-op for the memory backend
func (m *MemoryBackend) Close() error {
	return nil
}
