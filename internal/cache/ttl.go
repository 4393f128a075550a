// Package cache provides the expiring caches used by the balance pipeline.
package cache

import (
	"sync"
	"time"

	"github.com/athena-web3/dashboard-core/internal/core/domain"
	"github.com/athena-web3/dashboard-core/internal/observability"
)

type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

// TTL is an in-memory key/value cache whose entries expire ttl after they
// were stored. Expired entries are dropped when next looked up; there is
// no background sweep.
type TTL[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   domain.Clock
	entries map[string]entry[V]

	name    string
	metrics *observability.Metrics
}

// NewTTL creates a cache. A nil clock means the wall clock.
func NewTTL[V any](ttl time.Duration, clock domain.Clock) *TTL[V] {
	if clock == nil {
		clock = domain.SystemClock
	}
	return &TTL[V]{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]entry[V]),
	}
}

// WithMetrics reports lookups under name.
func (c *TTL[V]) WithMetrics(name string, m *observability.Metrics) *TTL[V] {
	c.name = name
	c.metrics = m
	return c
}

// Get returns the value for key if it is younger than the TTL.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if ok && c.clock.Now().Sub(e.fetchedAt) >= c.ttl {
		delete(c.entries, key)
		ok = false
	}
	c.metrics.RecordCacheLookup(c.name, ok)
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, stamped with the current time.
func (c *TTL[V]) Set(key string, value V) {
	c.setAt(key, value, c.clock.Now())
}

func (c *TTL[V]) setAt(key string, value V, at time.Time) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, fetchedAt: at}
	c.mu.Unlock()
}

// Delete removes key.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len counts stored entries, including expired ones not yet looked up.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// TTL returns the configured lifetime.
func (c *TTL[V]) TTL() time.Duration { return c.ttl }
