// Package chain implements the per-namespace balance adapters.
package chain

import (
	"net/http"
	"time"

	"github.com/athena-web3/dashboard-core/internal/core/domain"
	"github.com/athena-web3/dashboard-core/internal/logging"
	"github.com/athena-web3/dashboard-core/internal/observability"
)

// DefaultCacheTTL is how long an adapter reuses a (wallet, chain) result.
const DefaultCacheTTL = 10 * time.Second

// maxResponseBytes bounds upstream response bodies.
const maxResponseBytes = 4 << 20

type options struct {
	httpClient *http.Client
	clock      domain.Clock
	cacheTTL   time.Duration
	log        logging.Logger
	metrics    *observability.Metrics
}

// Option configures an adapter.
type Option func(*options)

// WithHTTPClient sets the upstream HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithClock sets the clock used by the adapter cache.
func WithClock(c domain.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *options) { o.cacheTTL = ttl }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		clock:      domain.SystemClock,
		cacheTTL:   DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.log = logging.OrNop(o.log)
	return o
}

func cacheKey(wallet, chainID string) string {
	return wallet + ":" + chainID
}

func shortSymbol(addr string) string {
	if len(addr) <= 6 {
		return addr
	}
	return addr[:6]
}

func cloneBalances(in []domain.TokenBalance) []domain.TokenBalance {
	return append([]domain.TokenBalance(nil), in...)
}
