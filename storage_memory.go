package library

import (
	"context"
	"sync"
)

// MemoryStorage keeps records in process. It is the storage used by tests
// and by one-shot CLI runs that opt out of persistence.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[string]string
}

var _ Storage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: map[string]string{}}
}

func (m *MemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.records[key]
	return val, ok, nil
}

func (m *MemoryStorage) Set(_ context.Context, records map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range records {
		m.records[k] = v
	}
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.records, k)
	}
	return nil
}

// Len is the number of stored records
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
