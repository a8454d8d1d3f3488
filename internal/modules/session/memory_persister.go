package session

import (
	"bytes"
	"context"
	"sync"
)

// MemoryPersister keeps blobs in process memory. Nothing survives a restart.
type MemoryPersister struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

var _ Persister = (*MemoryPersister)(nil)

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{blobs: make(map[string][]byte)}
}

func (m *MemoryPersister) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blob, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(blob), nil
}

func (m *MemoryPersister) Save(_ context.Context, key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs[key] = bytes.Clone(blob)
	return nil
}
