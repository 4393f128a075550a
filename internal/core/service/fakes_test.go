package service

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/athena-web3/dashboard-core/internal/core/domain"
)

type fakeAdapter struct {
	name     string
	balances map[string][]domain.TokenBalance // by chain id
	only     []string                         // supported chain ids; empty means all
	panics   bool
	block    chan struct{}
	calls    atomic.Int32
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) Supports(chain domain.ChainRef) bool {
	return len(a.only) == 0 || slices.Contains(a.only, chain.ID)
}

func (a *fakeAdapter) GetBalances(ctx context.Context, _ string, chain domain.ChainRef) []domain.TokenBalance {
	a.calls.Add(1)
	if a.block != nil {
		select {
		case <-a.block:
		case <-ctx.Done():
			return nil
		}
	}
	if a.panics {
		panic("adapter exploded")
	}
	return append([]domain.TokenBalance(nil), a.balances[chain.ID]...)
}

func balance(chainID, address, symbol string, amount int64) domain.TokenBalance {
	return domain.TokenBalance{
		ChainID:  chainID,
		Address:  address,
		Symbol:   symbol,
		Decimals: 18,
		Amount:   big.NewInt(amount),
		IsNative: address == domain.NativeAddress,
	}
}

type failingStore struct{ puts atomic.Int32 }

func (s *failingStore) Put(context.Context, string, domain.Snapshot) error {
	s.puts.Add(1)
	return errors.New("disk full")
}

func (s *failingStore) Get(context.Context, string) (domain.Snapshot, bool, error) {
	return domain.Snapshot{}, false, errors.New("disk unreadable")
}

// fakeBackend scripts RoutingBackend answers and records calls.
type fakeBackend struct {
	mu sync.Mutex

	healthErr error
	chainsErr []error // consumed per call; nil entries succeed
	chains    []domain.ChainDescriptor
	tokens    map[string][]domain.TokenDescriptor

	quote    *domain.QuoteResult
	quoteErr error
	swap     *domain.SwapResult
	swapErr  error
	statuses []statusAnswer // consumed per call; the last one repeats

	healthCalls atomic.Int32
	chainCalls  int
	quoteCalls  int
	swapCalls   int
	statusCalls map[string]int
}

type statusAnswer struct {
	status string
	err    error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		tokens:      make(map[string][]domain.TokenDescriptor),
		statusCalls: make(map[string]int),
		quote: &domain.QuoteResult{
			Status: "success",
			SwapID: "swap-1",
			Quote:  json.RawMessage(`{"result":{"destinationAmount":"99.5","gasEstimate":21000}}`),
		},
		swap: &domain.SwapResult{Status: "success", SwapID: "swap-1"},
	}
}

func (b *fakeBackend) Health(context.Context) error {
	b.healthCalls.Add(1)
	return b.healthErr
}

func (b *fakeBackend) Chains(context.Context) ([]domain.ChainDescriptor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chainCalls++
	if len(b.chainsErr) > 0 {
		err := b.chainsErr[0]
		b.chainsErr = b.chainsErr[1:]
		if err != nil {
			return nil, err
		}
	}
	return b.chains, nil
}

func (b *fakeBackend) Tokens(_ context.Context, chainID string) ([]domain.TokenDescriptor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tokens[chainID]
	if !ok {
		return nil, errors.New("HTTP error! status: 404")
	}
	return t, nil
}

func (b *fakeBackend) Quote(context.Context, domain.QuoteRequest) (*domain.QuoteResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quoteCalls++
	if b.quoteErr != nil {
		return nil, b.quoteErr
	}
	q := *b.quote
	return &q, nil
}

func (b *fakeBackend) Swap(context.Context, domain.QuoteRequest) (*domain.SwapResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.swapCalls++
	if b.swapErr != nil {
		return nil, b.swapErr
	}
	s := *b.swap
	return &s, nil
}

func (b *fakeBackend) Status(_ context.Context, swapID string) (*domain.StatusReport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusCalls[swapID]++
	if len(b.statuses) == 0 {
		return &domain.StatusReport{Status: "pending"}, nil
	}
	a := b.statuses[0]
	if len(b.statuses) > 1 {
		b.statuses = b.statuses[1:]
	}
	if a.err != nil {
		return nil, a.err
	}
	return &domain.StatusReport{Status: a.status, TxHash: "0xfeed"}, nil
}

func (b *fakeBackend) setQuote(q *domain.QuoteResult) {
	b.mu.Lock()
	b.quote = q
	b.mu.Unlock()
}

func (b *fakeBackend) setSwap(s *domain.SwapResult) {
	b.mu.Lock()
	b.swap = s
	b.mu.Unlock()
}

func (b *fakeBackend) statusCount(swapID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusCalls[swapID]
}

func (b *fakeBackend) counts() (quote, swap int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.quoteCalls, b.swapCalls
}
