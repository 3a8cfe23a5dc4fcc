package storage

import (
	"context"
	"sync"

	"github.com/armon/go-radix"
)

// MemoryBackend is an in-memory Backend. It is useful for testing and
// development situations where the data is not expected to be durable.
type MemoryBackend struct {
	mu   sync.RWMutex
	root *radix.Tree
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		root: radix.New(),
	}
}

func (m *MemoryBackend) Put(ctx context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	value := make([]byte, len(entry.Value))
	copy(value, entry.Value)
	m.root.Insert(entry.Key, value)
	return nil
}

func (m *MemoryBackend) Get(ctx context.Context, key string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, found := m.root.Get(key)
	if !found {
		return nil, nil
	}

	stored := raw.([]byte)
	value := make([]byte, len(stored))
	copy(value, stored)
	return &Entry{Key: key, Value: value}, nil
}

func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.root.Delete(key)
	return nil
}

func (m *MemoryBackend) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	m.root.WalkPrefix(prefix, func(key string, _ interface{}) bool {
		keys = append(keys, key)
		return false
	})
	return keys, nil
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.root = radix.New()
	return nil
}
