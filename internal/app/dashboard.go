// Package app wires the dashboard core into a long-running process.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/athena-web3/dashboard-core/internal/adapters/backend"
	"github.com/athena-web3/dashboard-core/internal/adapters/chain"
	"github.com/athena-web3/dashboard-core/internal/adapters/price"
	"github.com/athena-web3/dashboard-core/internal/adapters/snapshot"
	"github.com/athena-web3/dashboard-core/internal/api"
	"github.com/athena-web3/dashboard-core/internal/config"
	"github.com/athena-web3/dashboard-core/internal/core/domain"
	"github.com/athena-web3/dashboard-core/internal/core/service"
	"github.com/athena-web3/dashboard-core/internal/logging"
	"github.com/athena-web3/dashboard-core/internal/notify"
	"github.com/athena-web3/dashboard-core/internal/observability"
)

const shutdownTimeout = 10 * time.Second

// Components are the wired services, exposed for the CLI.
type Components struct {
	Backend      *backend.Client
	Registry     *service.AdapterRegistry
	Aggregator   *service.BalanceAggregator
	Catalog      *service.CatalogLoader
	Orchestrator *service.SwapOrchestrator
	Resolver     *service.AddressResolver
	Metrics      *observability.Metrics
	Store        domain.SnapshotStore

	closers []io.Closer
	evm     *chain.AlchemyEVMAdapter
	solana  *chain.SolanaAdapter
}

// Build constructs every component from cfg. Close releases them.
func Build(ctx context.Context, cfg *config.Config, log logging.Logger) (*Components, error) {
	log = logging.OrNop(log)
	c := &Components{Metrics: observability.NewMetrics("dashboard")}

	store, closer, err := snapshot.Open(ctx, cfg.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	c.Store = store
	c.closers = append(c.closers, closer)

	chainOpts := []chain.Option{chain.WithLogger(log), chain.WithMetrics(c.Metrics)}
	c.evm = chain.NewAlchemyEVMAdapter(cfg.Networks, cfg.AlchemyAPIKey, chainOpts...)
	c.solana = chain.NewSolanaAdapter(cfg.Networks, true, chainOpts...)
	covalent := chain.NewCovalentAdapter(chain.DefaultCovalentURL, cfg.CovalentKey, cfg.Networks, chainOpts...)

	// Registration order decides dedup: the fallback overrides the primary.
	c.Registry = service.NewAdapterRegistry()
	c.Registry.Register(domain.NamespaceEIP155, c.evm, covalent)
	c.Registry.Register(domain.NamespaceSolana, c.solana)

	chains := make([]service.ChainInfo, 0, len(cfg.Networks))
	for _, n := range cfg.Networks {
		chains = append(chains, service.ChainInfo{ChainRef: n.Ref(), Name: n.Name})
	}
	aggOpts := []service.AggregatorOption{
		service.WithAggregatorLogger(log),
		service.WithAggregatorMetrics(c.Metrics),
	}
	if cfg.PriceEnrichment {
		prices := price.NewDexScreenerService("")
		aggOpts = append(aggOpts, service.WithValuator(service.NewValuator(prices, domain.SystemClock, log)))
	}
	c.Aggregator = service.NewBalanceAggregator(c.Registry, chains, store, aggOpts...)

	var backendOpts []backend.ClientOption
	if cfg.APIJWTSecret != "" {
		backendOpts = append(backendOpts, backend.WithJWTSecret(cfg.APIJWTSecret))
	}
	c.Backend = backend.NewClient(cfg.APIURL, backendOpts...)

	c.Resolver = service.NewAddressResolver()
	c.Catalog = service.NewCatalogLoader(c.Backend,
		service.WithRetry(cfg.CatalogAttempts, cfg.CatalogBackoffBase),
		service.WithCatalogLogger(log),
		service.WithCatalogMetrics(c.Metrics),
	)
	c.Orchestrator = service.NewSwapOrchestrator(c.Backend, c.Resolver, store,
		service.WithPollInterval(cfg.SwapPollInterval),
		service.WithOrchestratorLogger(log),
		service.WithOrchestratorMetrics(c.Metrics),
	)
	return c, nil
}

// Close stops polling and releases RPC clients and the snapshot store.
func (c *Components) Close() error {
	c.Orchestrator.Close()
	c.evm.Close()
	c.solana.Close()
	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dashboard runs the refresh loop, the live feed and the HTTP API.
type Dashboard struct {
	cfg    *config.Config
	log    logging.Logger
	comp   *Components
	hub    *notify.Hub
	server *http.Server
	wallet domain.WalletState

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(ctx context.Context, cfg *config.Config, log logging.Logger) (*Dashboard, error) {
	log = logging.OrNop(log)
	wallet, err := domain.WalletFromAddresses(cfg.Wallets)
	if err != nil {
		return nil, fmt.Errorf("invalid WALLET_ADDRESSES: %w", err)
	}
	comp, err := Build(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{cfg: cfg, log: log, comp: comp, wallet: wallet}
	d.hub = notify.NewHub(log, comp.Metrics)
	comp.Aggregator.OnUpdate(func(b []domain.TokenBalance) { d.hub.Publish(notify.EventBalances, b) })
	comp.Orchestrator.OnTransition(func(s domain.SwapSession) { d.hub.Publish(notify.EventSwap, s) })

	router := api.NewServer(api.Deps{
		Aggregator:   comp.Aggregator,
		Catalog:      comp.Catalog,
		Orchestrator: comp.Orchestrator,
		Resolver:     comp.Resolver,
		Wallet:       func() domain.WalletState { return d.wallet },
		Metrics:      comp.Metrics.Handler(),
		Feed:         d.hub,
		Log:          log,
	}).Router()
	d.server = &http.Server{Addr: cfg.ListenAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	return d, nil
}

// Start launches background work and returns immediately.
func (d *Dashboard) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("dashboard is already running")
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.running = true

	d.log.Infow("starting dashboard", "listen", d.cfg.ListenAddr, "wallet_connected", d.wallet.Connected, "networks", len(d.cfg.Networks))

	d.spawn(func(ctx context.Context) { d.hub.Run(ctx) })
	d.spawn(func(ctx context.Context) {
		chains, err := d.comp.Catalog.LoadChains(ctx)
		if err != nil {
			d.log.Errorw("chain catalog unavailable", "message", domain.UserMessage("load chains", err))
			return
		}
		d.comp.Resolver.SetChains(chains)
	})
	d.spawn(func(ctx context.Context) {
		d.comp.Aggregator.Run(ctx, d.cfg.BalanceRefresh, func() domain.WalletState { return d.wallet })
	})

	go func() {
		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.log.Errorw("http server error", "error", err)
		}
	}()
	return nil
}

func (d *Dashboard) spawn(fn func(context.Context)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn(d.ctx)
	}()
}

// Stop shuts the server down and waits for background work.
func (d *Dashboard) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return nil
	}
	d.log.Infow("stopping dashboard")
	d.running = false

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.server.Shutdown(ctx); err != nil {
		d.log.Warnw("http server shutdown", "error", err)
	}
	d.cancel()
	d.wg.Wait()

	if err := d.comp.Close(); err != nil {
		d.log.Warnw("closing components", "error", err)
	}
	d.log.Infow("dashboard stopped")
	return nil
}

// Run starts the dashboard and blocks until SIGINT or SIGTERM.
func (d *Dashboard) Run() error {
	if err := d.Start(); err != nil {
		return err
	}
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	d.log.Infow("received interrupt signal")
	return d.Stop()
}
