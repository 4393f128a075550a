package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/athena-web3/dashboard-core/internal/cache"
	"github.com/athena-web3/dashboard-core/internal/config"
	"github.com/athena-web3/dashboard-core/internal/core/domain"
)

// DefaultCovalentURL is the Covalent (GoldRush) REST base URL.
const DefaultCovalentURL = "https://api.covalenthq.com"

// CovalentAdapter is the fallback EVM adapter. It returns the same shape as
// the primary adapter plus logo and USD quote, and is registered after it so
// that its entries take precedence when both succeed.
type CovalentAdapter struct {
	baseURL  string
	apiKey   string
	networks map[string]config.Network
	opts     options
	cache    *cache.TTL[[]domain.TokenBalance]
}

type covalentResponse struct {
	Data struct {
		Items []covalentItem `json:"items"`
	} `json:"data"`
	Error        bool   `json:"error"`
	ErrorMessage string `json:"error_message"`
}

type covalentItem struct {
	ContractDecimals     *int     `json:"contract_decimals"`
	ContractName         string   `json:"contract_name"`
	ContractTickerSymbol string   `json:"contract_ticker_symbol"`
	ContractAddress      string   `json:"contract_address"`
	LogoURL              string   `json:"logo_url"`
	NativeToken          bool     `json:"native_token"`
	Balance              *string  `json:"balance"`
	Quote                *float64 `json:"quote"`
}

// NewCovalentAdapter serves the eip155 networks when apiKey is set.
func NewCovalentAdapter(baseURL, apiKey string, networks []config.Network, opts ...Option) *CovalentAdapter {
	if baseURL == "" {
		baseURL = DefaultCovalentURL
	}
	o := buildOptions(opts)
	a := &CovalentAdapter{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		networks: make(map[string]config.Network),
		opts:     o,
		cache:    cache.NewTTL[[]domain.TokenBalance](o.cacheTTL, o.clock).WithMetrics("covalent", o.metrics),
	}
	for _, n := range networks {
		if n.Namespace() == domain.NamespaceEIP155 {
			a.networks[n.ChainID] = n
		}
	}
	return a
}

func (a *CovalentAdapter) Name() string { return "covalent" }

func (a *CovalentAdapter) Supports(chain domain.ChainRef) bool {
	if a.apiKey == "" || chain.Namespace != domain.NamespaceEIP155 {
		return false
	}
	_, ok := a.networks[chain.ID]
	return ok
}

func (a *CovalentAdapter) GetBalances(ctx context.Context, wallet string, chain domain.ChainRef) []domain.TokenBalance {
	if !a.Supports(chain) {
		return nil
	}
	key := cacheKey(wallet, chain.ID)
	if cached, ok := a.cache.Get(key); ok {
		return cloneBalances(cached)
	}

	start := time.Now()
	balances, err := a.fetch(ctx, a.networks[chain.ID], wallet)
	a.opts.metrics.RecordAdapterCall(a.Name(), chain.ID, err == nil, time.Since(start))
	if err != nil {
		a.opts.log.Warnw("balance fetch failed", "adapter", a.Name(), "chain", chain.ID, "error", err)
		return nil
	}

	a.cache.Set(key, balances)
	return cloneBalances(balances)
}

func (a *CovalentAdapter) fetch(ctx context.Context, net config.Network, wallet string) ([]domain.TokenBalance, error) {
	u := fmt.Sprintf("%s/v1/%s/address/%s/balances_v2/?key=%s",
		a.baseURL, url.PathEscape(net.ChainID), url.PathEscape(wallet), url.QueryEscape(a.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.opts.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("covalent api returned status: %d", resp.StatusCode)
	}

	var result covalentResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode covalent response: %w", err)
	}
	if result.Error {
		return nil, fmt.Errorf("covalent error: %s", result.ErrorMessage)
	}

	var balances []domain.TokenBalance
	for _, it := range result.Data.Items {
		if it.Balance == nil {
			continue
		}
		amount, ok := new(big.Int).SetString(*it.Balance, 10)
		if !ok {
			continue
		}
		if amount.Sign() == 0 && !it.NativeToken {
			continue
		}

		b := domain.TokenBalance{
			ChainID:   net.ChainID,
			ChainName: net.Name,
			Namespace: domain.NamespaceEIP155,
			Address:   strings.ToLower(it.ContractAddress),
			Symbol:    it.ContractTickerSymbol,
			Name:      it.ContractName,
			Decimals:  18,
			Amount:    amount,
			IsNative:  it.NativeToken,
			LogoURI:   it.LogoURL,
			USDValue:  it.Quote,
		}
		if it.ContractDecimals != nil {
			b.Decimals = *it.ContractDecimals
		}
		if b.IsNative {
			b.Address = domain.NativeAddress
		}
		if b.Symbol == "" {
			b.Symbol = shortSymbol(it.ContractAddress)
		}
		if b.Name == "" {
			b.Name = it.ContractAddress
		}
		balances = append(balances, b)
	}
	return balances, nil
}
