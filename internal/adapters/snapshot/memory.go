// Package snapshot implements the durable key/value sinks behind the
// balance and swap-session caches.
package snapshot

import (
	"context"
	"sync"

	"github.com/athena-web3/dashboard-core/internal/core/domain"
)

// MemoryStore keeps snapshots in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]domain.Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]domain.Snapshot)}
}

func (s *MemoryStore) Put(_ context.Context, key string, snap domain.Snapshot) error {
	s.mu.Lock()
	s.items[key] = snap
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (domain.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.items[key]
	return snap, ok, nil
}
