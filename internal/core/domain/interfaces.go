package domain

import (
	"context"
	"time"
)

// BalanceAdapter fetches balances for one wallet on one chain.
type BalanceAdapter interface {
	// Name identifies the adapter in logs and metrics.
	Name() string

	// Supports reports whether the adapter has an endpoint for the chain.
	Supports(chain ChainRef) bool

	// GetBalances never fails; transport or parse errors yield an empty slice.
	GetBalances(ctx context.Context, wallet string, chain ChainRef) []TokenBalance
}

// PriceService defines how to get token price data.
type PriceService interface {
	// GetCurrentPrice returns the current USD price of the token.
	GetCurrentPrice(ctx context.Context, chain, tokenAddress string) (float64, error)
}

// SnapshotStore is a last-writer-wins key/value sink for snapshots.
// Get returns ok=false when the key is missing.
type SnapshotStore interface {
	Put(ctx context.Context, key string, snap Snapshot) error
	Get(ctx context.Context, key string) (snap Snapshot, ok bool, err error)
}

// RoutingBackend is the remote quote/swap service.
type RoutingBackend interface {
	Health(ctx context.Context) error
	Chains(ctx context.Context) ([]ChainDescriptor, error)
	Tokens(ctx context.Context, chainID string) ([]TokenDescriptor, error)
	Quote(ctx context.Context, req QuoteRequest) (*QuoteResult, error)
	Swap(ctx context.Context, req QuoteRequest) (*SwapResult, error)
	Status(ctx context.Context, swapID string) (*StatusReport, error)
}

// Clock abstracts time so TTL and polling can be tested deterministically.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}
