package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/athena-web3/dashboard-core/internal/core/domain"
	"github.com/athena-web3/dashboard-core/internal/logging"
	"github.com/athena-web3/dashboard-core/internal/observability"
)

// Durable layers a TTL cache over a SnapshotStore so that a restart can
// serve a recent value without refetching. Store errors are logged and
// swallowed: a failed write still leaves the value in memory.
type Durable[V any] struct {
	mem     *TTL[V]
	store   domain.SnapshotStore
	ttl     time.Duration
	clock   domain.Clock
	log     logging.Logger
	metrics *observability.Metrics
}

// NewDurable creates a durable cache. store may be nil (memory only).
func NewDurable[V any](store domain.SnapshotStore, ttl time.Duration, clock domain.Clock, log logging.Logger, m *observability.Metrics) *Durable[V] {
	if clock == nil {
		clock = domain.SystemClock
	}
	return &Durable[V]{
		mem:     NewTTL[V](ttl, clock).WithMetrics("durable", m),
		store:   store,
		ttl:     ttl,
		clock:   clock,
		log:     logging.OrNop(log),
		metrics: m,
	}
}

// Get looks in memory first, then in the store. Snapshots at least ttl
// old are ignored.
func (d *Durable[V]) Get(ctx context.Context, key string) (V, bool) {
	if v, ok := d.mem.Get(key); ok {
		return v, true
	}

	var zero V
	if d.store == nil {
		return zero, false
	}

	snap, ok, err := d.store.Get(ctx, key)
	if err != nil {
		d.metrics.RecordSnapshotFailure("get")
		d.log.Warnw("snapshot read failed", "key", key, "error", err)
		return zero, false
	}
	if !ok || !snap.Fresh(d.clock.Now(), d.ttl) {
		return zero, false
	}

	var v V
	if err := json.Unmarshal(snap.Data, &v); err != nil {
		d.metrics.RecordSnapshotFailure("decode")
		d.log.Warnw("snapshot decode failed", "key", key, "error", err)
		return zero, false
	}
	d.mem.setAt(key, v, time.UnixMilli(snap.Timestamp))
	return v, true
}

// Set stores v in memory and writes a timestamped snapshot to the store.
func (d *Durable[V]) Set(ctx context.Context, key string, v V) {
	now := d.clock.Now()
	d.mem.setAt(key, v, now)
	if d.store == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		d.metrics.RecordSnapshotFailure("encode")
		d.log.Warnw("snapshot encode failed", "key", key, "error", err)
		return
	}
	if err := d.store.Put(ctx, key, domain.Snapshot{Timestamp: now.UnixMilli(), Data: data}); err != nil {
		d.metrics.RecordSnapshotFailure("put")
		d.log.Warnw("snapshot write failed", "key", key, "error", err)
	}
}
