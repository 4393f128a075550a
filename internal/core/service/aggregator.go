package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/athena-web3/dashboard-core/internal/cache"
	"github.com/athena-web3/dashboard-core/internal/core/domain"
	"github.com/athena-web3/dashboard-core/internal/logging"
	"github.com/athena-web3/dashboard-core/internal/observability"
)

const (
	// BalanceCacheTTL bounds how long an aggregated result is reused.
	BalanceCacheTTL = 30 * time.Second

	// DefaultRefreshInterval is the background refresh cadence.
	DefaultRefreshInterval = 30 * time.Second
)

// ChainInfo names a chain the aggregator may query.
type ChainInfo struct {
	domain.ChainRef
	Name string
}

// BalanceAggregator fans a wallet out to every adapter registered for its
// namespace, merges and deduplicates the results and persists them.
type BalanceAggregator struct {
	registry *AdapterRegistry
	chains   []ChainInfo
	cache    *cache.Durable[[]domain.TokenBalance]
	valuator *Valuator
	clock    domain.Clock
	log      logging.Logger
	metrics  *observability.Metrics

	generation atomic.Uint64

	mu        sync.RWMutex
	latest    []domain.TokenBalance
	latestGen uint64
	listeners []func([]domain.TokenBalance)
}

// AggregatorOption configures a BalanceAggregator.
type AggregatorOption func(*BalanceAggregator)

func WithAggregatorClock(c domain.Clock) AggregatorOption {
	return func(a *BalanceAggregator) { a.clock = c }
}

func WithAggregatorLogger(l logging.Logger) AggregatorOption {
	return func(a *BalanceAggregator) { a.log = l }
}

func WithAggregatorMetrics(m *observability.Metrics) AggregatorOption {
	return func(a *BalanceAggregator) { a.metrics = m }
}

// WithValuator fills missing USD values before results are published.
func WithValuator(v *Valuator) AggregatorOption {
	return func(a *BalanceAggregator) { a.valuator = v }
}

// NewBalanceAggregator creates an aggregator over chains. store may be nil.
func NewBalanceAggregator(registry *AdapterRegistry, chains []ChainInfo, store domain.SnapshotStore, opts ...AggregatorOption) *BalanceAggregator {
	a := &BalanceAggregator{
		registry: registry,
		chains:   chains,
		clock:    domain.SystemClock,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = logging.OrNop(a.log)
	a.cache = cache.NewDurable[[]domain.TokenBalance](store, BalanceCacheTTL, a.clock, a.log, a.metrics)
	return a
}

// OnUpdate registers fn to receive every published result.
func (a *BalanceAggregator) OnUpdate(fn func([]domain.TokenBalance)) {
	a.mu.Lock()
	a.listeners = append(a.listeners, fn)
	a.mu.Unlock()
}

// Latest returns the most recently published result.
func (a *BalanceAggregator) Latest() []domain.TokenBalance {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]domain.TokenBalance(nil), a.latest...)
}

// ChainsFor lists the configured chains in namespace ns.
func (a *BalanceAggregator) ChainsFor(ns domain.Namespace) []ChainInfo {
	var out []ChainInfo
	for _, c := range a.chains {
		if c.Namespace == ns {
			out = append(out, c)
		}
	}
	return out
}

// GetAllBalances queries every adapter for every chain in the wallet's
// namespace and returns the merged list. Adapter and persistence failures
// never fail the call. A disconnected wallet yields nil without any fetch.
// If a newer call starts before this one finishes, the result is still
// returned to this caller but is not published.
func (a *BalanceAggregator) GetAllBalances(ctx context.Context, wallet domain.WalletState) []domain.TokenBalance {
	if !wallet.Connected || wallet.Address == "" {
		return nil
	}
	gen := a.generation.Add(1)
	start := a.clock.Now()

	ns := wallet.Namespace
	if ns == domain.NamespaceUnknown {
		ns = domain.NamespaceOf(wallet.ChainID)
	}
	chains := a.ChainsFor(ns)
	adapters := a.registry.For(ns)

	// 1. Fan out; slot i*len(adapters)+j holds adapter j's result for chain i.
	// Adapters without an endpoint for a chain leave their slot empty.
	slots := make([][]domain.TokenBalance, len(chains)*len(adapters))
	g, gctx := errgroup.WithContext(ctx)
	for i, chain := range chains {
		for j, adapter := range adapters {
			if !adapter.Supports(chain.ChainRef) {
				continue
			}
			g.Go(func() error {
				slots[i*len(adapters)+j] = a.call(gctx, adapter, wallet.Address, chain)
				return nil
			})
		}
	}
	_ = g.Wait()

	// 2. Merge in registration order, last write wins.
	merged := mergeBalances(slots)

	// 3. Optional USD valuation.
	if a.valuator != nil {
		a.valuator.Enrich(ctx, merged)
	}

	// 4. Persist unless superseded. Failures are logged by the cache and swallowed.
	if a.generation.Load() == gen {
		a.cache.Set(ctx, domain.BalancesKey(wallet.Address, ns), merged)
	}

	a.metrics.RecordAggregation(a.clock.Now().Sub(start), len(merged))
	a.publish(gen, merged)
	return merged
}

// call invokes one adapter and contains any panic so that a broken adapter
// cannot take the others down.
func (a *BalanceAggregator) call(ctx context.Context, adapter domain.BalanceAdapter, wallet string, chain ChainInfo) (out []domain.TokenBalance) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Errorw("adapter panicked", "adapter", adapter.Name(), "chain", chain.ID, "panic", r)
			out = nil
		}
	}()
	return adapter.GetBalances(ctx, wallet, chain.ChainRef)
}

func mergeBalances(slots [][]domain.TokenBalance) []domain.TokenBalance {
	index := make(map[string]int)
	var merged []domain.TokenBalance
	for _, slot := range slots {
		for _, b := range slot {
			key := b.Key()
			if i, ok := index[key]; ok {
				merged[i] = b
				continue
			}
			index[key] = len(merged)
			merged = append(merged, b)
		}
	}
	if merged == nil {
		merged = []domain.TokenBalance{}
	}
	return merged
}

func (a *BalanceAggregator) publish(gen uint64, balances []domain.TokenBalance) {
	a.mu.Lock()
	if gen < a.latestGen || gen != a.generation.Load() {
		a.mu.Unlock()
		a.log.Debugw("dropping superseded balance result", "generation", gen)
		return
	}
	a.latestGen = gen
	a.latest = balances
	listeners := append([]func([]domain.TokenBalance){}, a.listeners...)
	a.mu.Unlock()

	for _, fn := range listeners {
		fn(append([]domain.TokenBalance(nil), balances...))
	}
}

// Cached returns the persisted result for wallet if it is younger than
// BalanceCacheTTL.
func (a *BalanceAggregator) Cached(ctx context.Context, wallet domain.WalletState) ([]domain.TokenBalance, bool) {
	if !wallet.Connected || wallet.Address == "" {
		return nil, false
	}
	ns := wallet.Namespace
	if ns == domain.NamespaceUnknown {
		ns = domain.NamespaceOf(wallet.ChainID)
	}
	return a.cache.Get(ctx, domain.BalancesKey(wallet.Address, ns))
}

// Balances serves a fresh cached result when there is one and otherwise
// aggregates.
func (a *BalanceAggregator) Balances(ctx context.Context, wallet domain.WalletState) []domain.TokenBalance {
	if cached, ok := a.Cached(ctx, wallet); ok {
		return cached
	}
	return a.GetAllBalances(ctx, wallet)
}

// Run refreshes balances every interval until ctx is done. The wallet
// function is consulted on each tick; disconnected ticks do nothing.
func (a *BalanceAggregator) Run(ctx context.Context, interval time.Duration, wallet func() domain.WalletState) {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	for {
		if w := wallet(); w.Connected {
			a.GetAllBalances(ctx, w)
		}
		select {
		case <-ctx.Done():
			return
		case <-a.clock.After(interval):
		}
	}
}
