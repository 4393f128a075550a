package service

import (
	"context"
	"math/big"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/athena-web3/dashboard-core/internal/cache"
	"github.com/athena-web3/dashboard-core/internal/core/domain"
	"github.com/athena-web3/dashboard-core/internal/logging"
)

// PriceCacheTTL bounds how long a token price is reused.
const PriceCacheTTL = time.Minute

// WrappedNative maps a chain id to the token priced in place of its
// native asset.
var WrappedNative = map[string]string{
	"1":      "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
	"137":    "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270",
	"42161":  "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1",
	"solana": "So11111111111111111111111111111111111111112",
}

// Valuator fills TokenBalance.USDValue from a price service.
type Valuator struct {
	prices  domain.PriceService
	cache   *cache.TTL[float64]
	log     logging.Logger
	workers int
}

func NewValuator(prices domain.PriceService, clock domain.Clock, log logging.Logger) *Valuator {
	return &Valuator{
		prices:  prices,
		cache:   cache.NewTTL[float64](PriceCacheTTL, clock),
		log:     logging.OrNop(log),
		workers: 4,
	}
}

// Enrich sets USDValue on balances that lack one. Lookups that fail leave
// the value unset.
func (v *Valuator) Enrich(ctx context.Context, balances []domain.TokenBalance) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)

	for i := range balances {
		b := &balances[i]
		if b.USDValue != nil || b.Amount == nil || b.Amount.Sign() == 0 {
			continue
		}
		token := b.Address
		if b.IsNative {
			wrapped, ok := WrappedNative[b.ChainID]
			if !ok {
				continue
			}
			token = wrapped
		}

		g.Go(func() error {
			price, ok := v.price(gctx, b.ChainID, token)
			if !ok {
				return nil
			}
			usd, _ := Value(b.Amount, b.Decimals, price).Float64()
			b.USDValue = &usd
			return nil
		})
	}
	_ = g.Wait()
}

func (v *Valuator) price(ctx context.Context, chainID, token string) (float64, bool) {
	key := chainID + ":" + token
	if p, ok := v.cache.Get(key); ok {
		return p, true
	}
	p, err := v.prices.GetCurrentPrice(ctx, chainID, token)
	if err != nil {
		v.log.Debugw("price lookup failed", "chain", chainID, "token", token, "error", err)
		return 0, false
	}
	v.cache.Set(key, p)
	return p, true
}

// FormatUnits renders a raw amount as a decimal string.
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// Value is amount / 10^decimals * price.
func Value(amount *big.Int, decimals int, price float64) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).Mul(decimal.NewFromFloat(price))
}

// ChainValue is the USD total held on one chain.
type ChainValue struct {
	ChainID   string  `json:"chainId"`
	ChainName string  `json:"chainName"`
	TotalUSD  float64 `json:"totalUsd"`
}

// PortfolioSummary totals a balance list.
type PortfolioSummary struct {
	TotalUSD float64      `json:"totalUsd"`
	ByChain  []ChainValue `json:"byChain"`
	Priced   int          `json:"priced"`
	Unpriced int          `json:"unpriced"`
}

// Summarize totals the USD value of balances, largest chain first.
func Summarize(balances []domain.TokenBalance) PortfolioSummary {
	var s PortfolioSummary
	total := decimal.Zero
	perChain := make(map[string]decimal.Decimal)
	names := make(map[string]string)

	for _, b := range balances {
		if _, ok := names[b.ChainID]; !ok {
			names[b.ChainID] = b.ChainName
			perChain[b.ChainID] = decimal.Zero
		}
		if b.USDValue == nil {
			s.Unpriced++
			continue
		}
		s.Priced++
		d := decimal.NewFromFloat(*b.USDValue)
		total = total.Add(d)
		perChain[b.ChainID] = perChain[b.ChainID].Add(d)
	}

	for id, v := range perChain {
		f, _ := v.Float64()
		s.ByChain = append(s.ByChain, ChainValue{ChainID: id, ChainName: names[id], TotalUSD: f})
	}
	sort.Slice(s.ByChain, func(i, j int) bool {
		if s.ByChain[i].TotalUSD != s.ByChain[j].TotalUSD {
			return s.ByChain[i].TotalUSD > s.ByChain[j].TotalUSD
		}
		return s.ByChain[i].ChainID < s.ByChain[j].ChainID
	})
	s.TotalUSD, _ = total.Float64()
	return s
}
