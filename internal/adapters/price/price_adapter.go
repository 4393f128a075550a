package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoPrice is returned when DexScreener lists no pair for the token.
var ErrNoPrice = errors.New("no price available")

// DefaultDexScreenerURL is the public DexScreener API.
const DefaultDexScreenerURL = "https://api.dexscreener.com"

// dexChains maps dashboard chain ids to DexScreener chain slugs.
var dexChains = map[string]string{
	"1":      "ethereum",
	"10":     "optimism",
	"56":     "bsc",
	"137":    "polygon",
	"8453":   "base",
	"42161":  "arbitrum",
	"solana": "solana",
}

type DexScreenerService struct {
	baseURL string
	client  *http.Client
}

func NewDexScreenerService(baseURL string) *DexScreenerService {
	if baseURL == "" {
		baseURL = DefaultDexScreenerURL
	}
	return &DexScreenerService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ChainSlug returns the DexScreener chain name for a dashboard chain id.
func ChainSlug(chainID string) (string, bool) {
	slug, ok := dexChains[chainID]
	return slug, ok
}

// GetCurrentPrice returns the USD price of tokenAddress on chain, taken
// from the most liquid pair on that chain.
func (s *DexScreenerService) GetCurrentPrice(ctx context.Context, chain, tokenAddress string) (float64, error) {
	// URL: {base}/latest/dex/tokens/{tokenAddresses}
	url := fmt.Sprintf("%s/latest/dex/tokens/%s", s.baseURL, tokenAddress)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("dexscreener api returned status: %d", resp.StatusCode)
	}

	var result struct {
		Pairs []struct {
			PriceUsd  string `json:"priceUsd"`
			ChainId   string `json:"chainId"`
			Liquidity struct {
				USD float64 `json:"usd"`
			} `json:"liquidity"`
		} `json:"pairs"`
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 2<<20)).Decode(&result); err != nil {
		return 0, err
	}

	slug, _ := ChainSlug(chain)
	best := -1
	for i, p := range result.Pairs {
		if p.PriceUsd == "" || (slug != "" && p.ChainId != slug) {
			continue
		}
		if best < 0 || p.Liquidity.USD > result.Pairs[best].Liquidity.USD {
			best = i
		}
	}
	if best < 0 {
		return 0, ErrNoPrice
	}

	price, err := decimal.NewFromString(result.Pairs[best].PriceUsd)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price: %w", err)
	}

	f, _ := price.Float64()
	return f, nil
}
