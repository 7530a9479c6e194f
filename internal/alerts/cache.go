package alerts

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// ErrCacheMiss is returned by a Store that holds no value.
var ErrCacheMiss = errors.New("alerts: cache miss")

// Store is a single-key persistent slot for the last-known-good alert list.
// Values are the JSON text produced by EncodeAlerts.
type Store interface {
	Get(ctx context.Context) ([]byte, error)
	Set(ctx context.Context, value []byte) error
}

// MemoryStore keeps the value in process memory. The zero value is an
// empty store ready for use.
type MemoryStore struct {
	mu    sync.RWMutex
	value []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.value == nil {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), m.value...), nil
}

func (m *MemoryStore) Set(_ context.Context, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = append([]byte(nil), value...)
	return nil
}

// FileStore persists the value to a single JSON file on disk.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore at path. The parent directory is created
// lazily on the first Set.
func NewFileStore(path string) *FileStore {
	if path == "" {
		// Development runs without root permissions.
		path = "./var/alerts-cache.json"
	}
	return &FileStore{path: path}
}

func (f *FileStore) Get(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrCacheMiss
	}
	return data, nil
}

// Set writes value atomically via a temp file + rename so a crash never
// leaves a truncated cache behind.
func (f *FileStore) Set(_ context.Context, value []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".alerts-cache-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path)
}
