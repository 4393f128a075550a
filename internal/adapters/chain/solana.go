package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/mr-tron/base58"
	"golang.org/x/sync/errgroup"

	"github.com/athena-web3/dashboard-core/internal/cache"
	"github.com/athena-web3/dashboard-core/internal/config"
	"github.com/athena-web3/dashboard-core/internal/core/domain"
)

// SPL token program ids whose accounts are enumerated.
const (
	TokenProgramID     = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
)

// SolanaAdapter reads SOL and SPL token balances from a cluster RPC node.
type SolanaAdapter struct {
	networks map[string]config.Network
	programs []string
	opts     options
	cache    *cache.TTL[[]domain.TokenBalance]

	mu      sync.Mutex
	clients map[string]*rpc.Client
}

type solBalanceResult struct {
	Value uint64 `json:"value"`
}

type solTokenAccountsResult struct {
	Value []struct {
		Pubkey  string `json:"pubkey"`
		Account struct {
			Data struct {
				Parsed struct {
					Info struct {
						Mint        string `json:"mint"`
						TokenAmount struct {
							Amount   string `json:"amount"`
							Decimals int    `json:"decimals"`
						} `json:"tokenAmount"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"account"`
	} `json:"value"`
}

// NewSolanaAdapter keeps the solana networks that have an RPC URL.
// Token-2022 accounts are included when withToken2022 is set.
func NewSolanaAdapter(networks []config.Network, withToken2022 bool, opts ...Option) *SolanaAdapter {
	o := buildOptions(opts)
	a := &SolanaAdapter{
		networks: make(map[string]config.Network),
		programs: []string{TokenProgramID},
		opts:     o,
		cache:    cache.NewTTL[[]domain.TokenBalance](o.cacheTTL, o.clock).WithMetrics("solana", o.metrics),
		clients:  make(map[string]*rpc.Client),
	}
	if withToken2022 {
		a.programs = append(a.programs, Token2022ProgramID)
	}
	for _, n := range networks {
		if n.Namespace() == domain.NamespaceSolana && n.Endpoint("") != "" {
			a.networks[n.ChainID] = n
		}
	}
	return a
}

func (a *SolanaAdapter) Name() string { return "solana-rpc" }

func (a *SolanaAdapter) Supports(chain domain.ChainRef) bool {
	if chain.Namespace != domain.NamespaceSolana {
		return false
	}
	_, ok := a.networks[chain.ID]
	return ok
}

// IsValidPubkey reports whether s is a base58 encoded 32-byte key.
func IsValidPubkey(s string) bool {
	b, err := base58.Decode(s)
	return err == nil && len(b) == 32
}

// GetBalances returns SOL followed by every non-zero SPL balance.
// Any upstream failure yields an empty result, which is not cached.
func (a *SolanaAdapter) GetBalances(ctx context.Context, wallet string, chain domain.ChainRef) []domain.TokenBalance {
	if !a.Supports(chain) {
		return nil
	}
	if !IsValidPubkey(wallet) {
		a.opts.log.Debugw("skipping non-Solana wallet", "adapter", a.Name(), "wallet", wallet)
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

func (a *SolanaAdapter) fetch(ctx context.Context, net config.Network, wallet string) ([]domain.TokenBalance, error) {
	client, err := a.client(ctx, net.RPCURL)
	if err != nil {
		return nil, err
	}

	var native solBalanceResult
	accounts := make([]solTokenAccountsResult, len(a.programs))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := client.CallContext(gctx, &native, "getBalance", wallet, map[string]string{"commitment": "confirmed"}); err != nil {
			return fmt.Errorf("getBalance: %w", err)
		}
		return nil
	})
	for i, program := range a.programs {
		g.Go(func() error {
			err := client.CallContext(gctx, &accounts[i], "getParsedTokenAccountsByOwner",
				wallet,
				map[string]string{"programId": program},
				map[string]string{"encoding": "jsonParsed", "commitment": "confirmed"},
			)
			if err != nil {
				return fmt.Errorf("getParsedTokenAccountsByOwner(%s): %w", program, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	symbol, name, decimals := net.NativeSymbol, net.NativeName, net.NativeDecimals
	if symbol == "" {
		symbol = "SOL"
	}
	if name == "" {
		name = "Solana"
	}
	if decimals == 0 {
		decimals = 9
	}
	balances := []domain.TokenBalance{{
		ChainID:   net.ChainID,
		ChainName: net.Name,
		Namespace: domain.NamespaceSolana,
		Address:   domain.NativeAddress,
		Symbol:    symbol,
		Name:      name,
		Decimals:  decimals,
		Amount:    new(big.Int).SetUint64(native.Value),
		IsNative:  true,
	}}

	// An owner may hold several accounts for one mint; they are summed.
	byMint := make(map[string]int)
	for _, res := range accounts {
		for _, acct := range res.Value {
			info := acct.Account.Data.Parsed.Info
			if info.Mint == "" {
				continue
			}
			amount, ok := new(big.Int).SetString(info.TokenAmount.Amount, 10)
			if !ok || amount.Sign() == 0 {
				continue
			}
			if i, seen := byMint[info.Mint]; seen {
				balances[i].Amount.Add(balances[i].Amount, amount)
				continue
			}
			byMint[info.Mint] = len(balances)
			b := domain.TokenBalance{
				ChainID:   net.ChainID,
				ChainName: net.Name,
				Namespace: domain.NamespaceSolana,
				Address:   info.Mint,
				Symbol:    shortSymbol(info.Mint),
				Name:      info.Mint,
				Decimals:  info.TokenAmount.Decimals,
				Amount:    amount,
			}
			if net.ExplorerURL != "" {
				b.BlockExplorerURL = strings.TrimRight(net.ExplorerURL, "/") + "/token/" + info.Mint
			}
			balances = append(balances, b)
		}
	}
	return balances, nil
}

func (a *SolanaAdapter) client(ctx context.Context, endpoint string) (*rpc.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.clients[endpoint]; ok {
		return c, nil
	}
	c, err := rpc.DialOptions(ctx, endpoint, rpc.WithHTTPClient(a.opts.httpClient))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	a.clients[endpoint] = c
	return c, nil
}

// Close releases the RPC clients.
func (a *SolanaAdapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, c := range a.clients {
		c.Close()
		delete(a.clients, k)
	}
}
