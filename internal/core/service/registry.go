package service

import (
	"sync"

	"github.com/athena-web3/dashboard-core/internal/core/domain"
)

// AdapterRegistry maps a namespace to its adapters in registration order.
// Later adapters win when two report the same (chainId, address).
type AdapterRegistry struct {
	mu       sync.RWMutex
	adapters map[domain.Namespace][]domain.BalanceAdapter
}

func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{adapters: make(map[domain.Namespace][]domain.BalanceAdapter)}
}

// Register appends adapters for ns.
func (r *AdapterRegistry) Register(ns domain.Namespace, adapters ...domain.BalanceAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[ns] = append(r.adapters[ns], adapters...)
}

// For returns a copy of the adapters registered for ns.
func (r *AdapterRegistry) For(ns domain.Namespace) []domain.BalanceAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.BalanceAdapter(nil), r.adapters[ns]...)
}
