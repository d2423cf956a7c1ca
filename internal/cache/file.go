package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
)

// FileBackend stores values as snappy-compressed files in a directory, one
// file per key. Writes go through a temp file plus rename so a crashed write
// never leaves a torn value. Quota checks apply to the uncompressed payload:
// the budget is a property of the logical value, not of how well it packs.
type FileBackend struct {
	dir   string
	quota int64 // 0 = unlimited
}

// NewFileBackend creates a file backend rooted at dir
func NewFileBackend(dir string, quota int64) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return &FileBackend{dir: dir, quota: quota}, nil
}

// Get reads and decompresses the value for key
func (f *FileBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache file: %w", err)
	}

	data, err := snappy.Decode(nil, raw)
	if err != nil {
		// Treat a corrupt file the same as an unparseable value: hand the
		// raw bytes up and let the envelope parser reject them.
		return raw, true, nil
	}
	return data, true, nil
}

// Set compresses and atomically writes the value for key
func (f *FileBackend) Set(ctx context.Context, key string, data []byte) error {
	if f.quota > 0 && int64(len(data)) > f.quota {
		return ErrQuotaExceeded
	}

	compressed := snappy.Encode(nil, data)

	tmp, err := os.CreateTemp(f.dir, ".envelope-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(compressed); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, f.path(key)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Delete removes the value for key
func (f *FileBackend) Delete(ctx context.Context, key string) error {
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}
	return nil
}

// Close is a no-op for the file backend
func (f *FileBackend) Close() error {
	return nil
}

// path maps a key to a file name, replacing separators the filesystem
// would reject
func (f *FileBackend) path(key string) string {
	safe := strings.NewReplacer(":", "_", "/", "_").Replace(key)
	return filepath.Join(f.dir, safe+".cache")
}
