package service

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/athena-web3/dashboard-core/internal/core/domain"
	"github.com/athena-web3/dashboard-core/internal/logging"
	"github.com/athena-web3/dashboard-core/internal/observability"
)

const (
	DefaultCatalogAttempts    = 3
	DefaultCatalogBackoffBase = time.Second
	healthProbeTimeout        = 5 * time.Second
)

// linearBackOff waits attempt*base before attempt+1.
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.base
}

func (b *linearBackOff) Reset() { b.attempt = 0 }

// clockTimer drives backoff waits from a domain.Clock.
type clockTimer struct {
	clock domain.Clock
	c     <-chan time.Time
}

func (t *clockTimer) Start(d time.Duration) { t.c = t.clock.After(d) }
func (t *clockTimer) Stop()                 {}
func (t *clockTimer) C() <-chan time.Time   { return t.c }

// CatalogLoader loads the chain and token catalogs from the routing backend
// with bounded linear retry.
type CatalogLoader struct {
	backend  domain.RoutingBackend
	attempts int
	base     time.Duration
	clock    domain.Clock
	log      logging.Logger
	metrics  *observability.Metrics

	mu     sync.RWMutex
	chains []domain.ChainDescriptor
	tokens map[string][]domain.TokenDescriptor
}

// CatalogOption configures a CatalogLoader.
type CatalogOption func(*CatalogLoader)

// WithRetry sets the attempt budget and the backoff unit.
func WithRetry(attempts int, base time.Duration) CatalogOption {
	return func(l *CatalogLoader) {
		if attempts > 0 {
			l.attempts = attempts
		}
		if base > 0 {
			l.base = base
		}
	}
}

func WithCatalogClock(c domain.Clock) CatalogOption {
	return func(l *CatalogLoader) { l.clock = c }
}

func WithCatalogLogger(log logging.Logger) CatalogOption {
	return func(l *CatalogLoader) { l.log = log }
}

func WithCatalogMetrics(m *observability.Metrics) CatalogOption {
	return func(l *CatalogLoader) { l.metrics = m }
}

func NewCatalogLoader(backend domain.RoutingBackend, opts ...CatalogOption) *CatalogLoader {
	l := &CatalogLoader{
		backend:  backend,
		attempts: DefaultCatalogAttempts,
		base:     DefaultCatalogBackoffBase,
		clock:    domain.SystemClock,
		tokens:   make(map[string][]domain.TokenDescriptor),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = logging.OrNop(l.log)
	return l
}

// LoadChains probes backend health in the background, then fetches the
// chain list. The stored list is replaced only on success.
func (l *CatalogLoader) LoadChains(ctx context.Context) ([]domain.ChainDescriptor, error) {
	go l.probe(context.WithoutCancel(ctx))

	var chains []domain.ChainDescriptor
	err := l.retry(ctx, "load chains", func(ctx context.Context) error {
		var err error
		chains, err = l.backend.Chains(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.chains = chains
	l.mu.Unlock()
	l.log.Infow("chains loaded", "count", len(chains))
	return chains, nil
}

// LoadTokens fetches the token list for chainID.
func (l *CatalogLoader) LoadTokens(ctx context.Context, chainID string) ([]domain.TokenDescriptor, error) {
	var tokens []domain.TokenDescriptor
	err := l.retry(ctx, "load tokens", func(ctx context.Context) error {
		var err error
		tokens, err = l.backend.Tokens(ctx, chainID)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.tokens[chainID] = tokens
	l.mu.Unlock()
	l.log.Infow("tokens loaded", "chain", chainID, "count", len(tokens))
	return tokens, nil
}

// Chains returns the last loaded chain list.
func (l *CatalogLoader) Chains() []domain.ChainDescriptor {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.ChainDescriptor(nil), l.chains...)
}

// Tokens returns the last loaded token list for chainID.
func (l *CatalogLoader) Tokens(chainID string) ([]domain.TokenDescriptor, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.tokens[chainID]
	return append([]domain.TokenDescriptor(nil), t...), ok
}

func (l *CatalogLoader) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	attempt := 0
	var last error
	operation := func() error {
		attempt++
		err := fn(ctx)
		l.metrics.RecordCatalogAttempt(op, err == nil)
		if err != nil {
			last = err
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		l.log.Warnw("catalog attempt failed", "op", op, "attempt", attempt, "max", l.attempts, "retry_in", wait, "error", err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(&linearBackOff{base: l.base}, uint64(l.attempts-1)), ctx)
	if err := backoff.RetryNotifyWithTimer(operation, b, notify, &clockTimer{clock: l.clock}); err != nil {
		if last == nil {
			last = err
		}
		l.log.Errorw("catalog load exhausted", "op", op, "attempts", attempt, "error", last)
		return &domain.RetryExhaustedError{Op: op, Attempts: attempt, Err: last}
	}
	return nil
}

func (l *CatalogLoader) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()
	if err := l.backend.Health(ctx); err != nil {
		l.log.Warnw("backend health check failed", "error", err)
		return
	}
	l.log.Debugw("backend health check ok")
}
