package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athena-web3/dashboard-core/internal/config"
	"github.com/athena-web3/dashboard-core/internal/core/domain"
)

func TestCovalentAdapter_GetBalances(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/v1/137/address/"+evmWallet()+"/balances_v2/", r.URL.Path)
		assert.Equal(t, "ckey", r.URL.Query().Get("key"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"items": []map[string]any{
					{"contract_decimals": 18, "contract_name": "Polygon", "contract_ticker_symbol": "MATIC", "contract_address": "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE", "native_token": true, "balance": "0", "quote": 0.0},
					{"contract_decimals": 6, "contract_name": "USD Coin", "contract_ticker_symbol": "USDC", "contract_address": "0x3C499c542cEF5E3811e1192ce70d8cC03d5c3359", "logo_url": "https://logos.example/usdc.png", "native_token": false, "balance": "2500000", "quote": 2.5},
					{"contract_decimals": 18, "contract_name": "Spam", "contract_ticker_symbol": "SPAM", "contract_address": "0x4444444444444444444444444444444444444444", "balance": "0"},
					{"contract_decimals": 18, "contract_name": "Broken", "contract_address": "0x5555555555555555555555555555555555555555", "balance": nil},
				},
			},
			"error": false,
		})
	}))
	defer srv.Close()

	a := NewCovalentAdapter(srv.URL, "ckey", []config.Network{polygonNetwork("")})
	balances := a.GetBalances(context.Background(), evmWallet(), polygon)
	require.Len(t, balances, 2)

	assert.True(t, balances[0].IsNative)
	assert.Equal(t, domain.NativeAddress, balances[0].Address)
	assert.Equal(t, "MATIC", balances[0].Symbol)

	usdc := balances[1]
	assert.Equal(t, usdcPolygon, usdc.Address, "contract addresses are lower-cased")
	assert.Equal(t, 6, usdc.Decimals)
	assert.Equal(t, "2500000", usdc.Amount.String())
	require.NotNil(t, usdc.USDValue)
	assert.InDelta(t, 2.5, *usdc.USDValue, 1e-9)
	assert.Equal(t, "https://logos.example/usdc.png", usdc.LogoURI)

	a.GetBalances(context.Background(), evmWallet(), polygon)
	assert.Equal(t, int32(1), hits.Load(), "second call within ttl is served from cache")
}

func TestCovalentAdapter_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") == "bad" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"error": true, "error_message": "chain not supported"})
	}))
	defer srv.Close()

	ctx := context.Background()
	networks := []config.Network{polygonNetwork("")}

	assert.Empty(t, NewCovalentAdapter(srv.URL, "bad", networks).GetBalances(ctx, evmWallet(), polygon))
	assert.Empty(t, NewCovalentAdapter(srv.URL, "ok", networks).GetBalances(ctx, evmWallet(), polygon))

	noKey := NewCovalentAdapter(srv.URL, "", networks)
	assert.False(t, noKey.Supports(polygon))
	assert.Empty(t, noKey.GetBalances(ctx, evmWallet(), polygon))
}
