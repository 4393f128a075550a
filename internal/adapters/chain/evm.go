package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/sync/errgroup"

	"github.com/athena-web3/dashboard-core/internal/cache"
	"github.com/athena-web3/dashboard-core/internal/config"
	"github.com/athena-web3/dashboard-core/internal/core/domain"
)

// AlchemyEVMAdapter reads native and ERC-20 balances through Alchemy's
// enhanced JSON-RPC API.
type AlchemyEVMAdapter struct {
	networks map[string]evmNetwork
	opts     options
	cache    *cache.TTL[[]domain.TokenBalance]

	mu      sync.Mutex
	clients map[string]*rpc.Client
}

type evmNetwork struct {
	config.Network
	endpoint string
}

type alchemyTokenBalances struct {
	Address       string `json:"address"`
	TokenBalances []struct {
		ContractAddress string  `json:"contractAddress"`
		TokenBalance    *string `json:"tokenBalance"`
		Error           any     `json:"error"`
	} `json:"tokenBalances"`
}

type alchemyTokenMetadata struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals *int   `json:"decimals"`
	Logo     string `json:"logo"`
}

// NewAlchemyEVMAdapter keeps the eip155 networks that resolve to an endpoint
// with apiKey. Other chains are reported as unsupported.
func NewAlchemyEVMAdapter(networks []config.Network, apiKey string, opts ...Option) *AlchemyEVMAdapter {
	o := buildOptions(opts)
	a := &AlchemyEVMAdapter{
		networks: make(map[string]evmNetwork),
		opts:     o,
		cache:    cache.NewTTL[[]domain.TokenBalance](o.cacheTTL, o.clock).WithMetrics("alchemy", o.metrics),
		clients:  make(map[string]*rpc.Client),
	}
	for _, n := range networks {
		if n.Namespace() != domain.NamespaceEIP155 {
			continue
		}
		if endpoint := n.Endpoint(apiKey); endpoint != "" {
			a.networks[n.ChainID] = evmNetwork{Network: n, endpoint: endpoint}
		}
	}
	return a
}

func (a *AlchemyEVMAdapter) Name() string { return "alchemy" }

func (a *AlchemyEVMAdapter) Supports(chain domain.ChainRef) bool {
	if chain.Namespace != domain.NamespaceEIP155 {
		return false
	}
	_, ok := a.networks[chain.ID]
	return ok
}

// GetBalances returns the native balance followed by every non-zero ERC-20
// balance. Any upstream failure yields an empty result, which is not cached.
func (a *AlchemyEVMAdapter) GetBalances(ctx context.Context, wallet string, chain domain.ChainRef) []domain.TokenBalance {
	if !a.Supports(chain) {
		return nil
	}
	if !common.IsHexAddress(wallet) {
		a.opts.log.Debugw("skipping non-EVM wallet", "adapter", a.Name(), "wallet", wallet)
		return nil
	}
	net := a.networks[chain.ID]

	key := cacheKey(wallet, chain.ID)
	if cached, ok := a.cache.Get(key); ok {
		return cloneBalances(cached)
	}

	start := time.Now()
	balances, err := a.fetch(ctx, net, wallet)
	a.opts.metrics.RecordAdapterCall(a.Name(), chain.ID, err == nil, time.Since(start))
	if err != nil {
		a.opts.log.Warnw("balance fetch failed", "adapter", a.Name(), "chain", chain.ID, "error", err)
		return nil
	}

	a.cache.Set(key, balances)
	return cloneBalances(balances)
}

func (a *AlchemyEVMAdapter) fetch(ctx context.Context, net evmNetwork, wallet string) ([]domain.TokenBalance, error) {
	client, err := a.client(ctx, net.endpoint)
	if err != nil {
		return nil, err
	}

	var (
		native hexutil.Big
		tokens alchemyTokenBalances
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := client.CallContext(gctx, &native, "eth_getBalance", wallet, "latest"); err != nil {
			return fmt.Errorf("eth_getBalance: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := client.CallContext(gctx, &tokens, "alchemy_getTokenBalances", wallet, "erc20"); err != nil {
			return fmt.Errorf("alchemy_getTokenBalances: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	balances := []domain.TokenBalance{a.nativeBalance(net, native.ToInt())}

	type held struct {
		contract string
		amount   *big.Int
	}
	var holdings []held
	for _, tb := range tokens.TokenBalances {
		if tb.TokenBalance == nil || tb.Error != nil {
			continue
		}
		amount, ok := parseHexQuantity(*tb.TokenBalance)
		if !ok || amount.Sign() == 0 {
			continue
		}
		holdings = append(holdings, held{contract: strings.ToLower(tb.ContractAddress), amount: amount})
	}

	contracts := make([]string, len(holdings))
	for i, h := range holdings {
		contracts[i] = h.contract
	}
	meta := a.metadata(ctx, client, contracts)

	for i, h := range holdings {
		b := domain.TokenBalance{
			ChainID:   net.ChainID,
			ChainName: net.Name,
			Namespace: domain.NamespaceEIP155,
			Address:   h.contract,
			Symbol:    shortSymbol(h.contract),
			Name:      h.contract,
			Decimals:  18,
			Amount:    h.amount,
		}
		if m := meta[i]; m != nil {
			if m.Symbol != "" {
				b.Symbol = m.Symbol
			}
			if m.Name != "" {
				b.Name = m.Name
			}
			if m.Decimals != nil && *m.Decimals >= 0 {
				b.Decimals = *m.Decimals
			}
			b.LogoURI = m.Logo
		}
		if net.ExplorerURL != "" {
			b.BlockExplorerURL = strings.TrimRight(net.ExplorerURL, "/") + "/token/" + h.contract
		}
		balances = append(balances, b)
	}
	return balances, nil
}

func (a *AlchemyEVMAdapter) nativeBalance(net evmNetwork, amount *big.Int) domain.TokenBalance {
	symbol, name := net.NativeSymbol, net.NativeName
	if symbol == "" {
		symbol = "NATIVE"
	}
	if name == "" {
		name = "Native"
	}
	decimals := net.NativeDecimals
	if decimals == 0 {
		decimals = 18
	}
	if amount == nil {
		amount = new(big.Int)
	}
	return domain.TokenBalance{
		ChainID:   net.ChainID,
		ChainName: net.Name,
		Namespace: domain.NamespaceEIP155,
		Address:   domain.NativeAddress,
		Symbol:    symbol,
		Name:      name,
		Decimals:  decimals,
		Amount:    amount,
		IsNative:  true,
	}
}

// metadata batches alchemy_getTokenMetadata; entries that fail are nil.
func (a *AlchemyEVMAdapter) metadata(ctx context.Context, client *rpc.Client, contracts []string) []*alchemyTokenMetadata {
	out := make([]*alchemyTokenMetadata, len(contracts))
	if len(contracts) == 0 {
		return out
	}

	batch := make([]rpc.BatchElem, len(contracts))
	for i, c := range contracts {
		out[i] = new(alchemyTokenMetadata)
		batch[i] = rpc.BatchElem{
			Method: "alchemy_getTokenMetadata",
			Args:   []any{c},
			Result: out[i],
		}
	}
	if err := client.BatchCallContext(ctx, batch); err != nil {
		a.opts.log.Debugw("token metadata batch failed", "adapter", a.Name(), "error", err)
		return make([]*alchemyTokenMetadata, len(contracts))
	}
	for i, el := range batch {
		if el.Error != nil {
			out[i] = nil
		}
	}
	return out
}

func (a *AlchemyEVMAdapter) client(ctx context.Context, endpoint string) (*rpc.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.clients[endpoint]; ok {
		return c, nil
	}
	c, err := rpc.DialOptions(ctx, endpoint, rpc.WithHTTPClient(a.opts.httpClient))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", redactKey(endpoint), err)
	}
	a.clients[endpoint] = c
	return c, nil
}

// Close releases the RPC clients.
func (a *AlchemyEVMAdapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, c := range a.clients {
		c.Close()
		delete(a.clients, k)
	}
}

// parseHexQuantity accepts 0x-prefixed hex with leading zeros, as returned
// by alchemy_getTokenBalances.
func parseHexQuantity(s string) (*big.Int, bool) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if s == "" {
		return new(big.Int), true
	}
	return new(big.Int).SetString(s, 16)
}

func redactKey(endpoint string) string {
	if i := strings.LastIndex(endpoint, "/v2/"); i >= 0 {
		return endpoint[:i+4] + "***"
	}
	return endpoint
}
