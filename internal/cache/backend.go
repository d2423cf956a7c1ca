package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlfRonDon/neurareport/internal/config"
)

// ErrQuotaExceeded is returned by a Backend when a write would exceed the
// hard quota of the backing storage area.
var ErrQuotaExceeded = errors.New("cache: storage quota exceeded")

// Backend is the durable key-value area the envelope persists to
type Backend interface {
	// Get reads the value stored under key. ok is false when absent.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)

	// Set writes the value stored under key
	Set(ctx context.Context, key string, data []byte) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources
	Close() error
}

// NewBackend creates a Backend based on the cache configuration
func NewBackend(cfg config.CacheConfig) (Backend, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileBackend(cfg.Dir, cfg.QuotaBytes)
	case "redis":
		return NewRedisBackend(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case "memory":
		return NewMemoryBackend(cfg.QuotaBytes), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}
