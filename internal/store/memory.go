package store

import (
	"bytes"
	"context"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

type MemoryStore struct {
	mu    sync.Mutex
	snap  Snapshot
	saved bool
	saves int
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.saved {
		return Snapshot{}, ErrNotFound
	}
	out := m.snap
	out.Payload = bytes.Clone(m.snap.Payload)
	return out, nil
}

func (m *MemoryStore) Save(ctx context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.Payload = bytes.Clone(snap.Payload)
	m.snap = snap
	m.saved = true
	m.saves++
	return nil
}

// Saves counts successful saves.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *MemoryStore) Close() error { return nil }
