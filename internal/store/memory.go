package store

import (
	"context"
	"sync"
)

// MemoryStore is a concurrency-safe in-memory key-value store.
// Its contents last for the lifetime of the process.
type MemoryStore struct {
	mu sync.RWMutex

	data map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]string),
	}
}

// GetItem returns the value stored under key.
func (s *MemoryStore) GetItem(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	return v, ok, nil
}

// SetItem stores value under key, replacing any previous value.
func (s *MemoryStore) SetItem(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return nil
}

// RemoveItem deletes key. Removing a missing key is not an error.
func (s *MemoryStore) RemoveItem(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Close is a no-op; it lets MemoryStore stand in for the networked backends.
func (s *MemoryStore) Close() error {
	return nil
}
