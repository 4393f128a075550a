package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athena-web3/dashboard-core/internal/config"
	"github.com/athena-web3/dashboard-core/internal/core/domain"
	"github.com/athena-web3/dashboard-core/internal/testutil"
)

const (
	usdcPolygon = "0x3c499c542cef5e3811e1192ce70d8cc03d5c3359"
	dustToken   = "0x1111111111111111111111111111111111111111"
	nullToken   = "0x2222222222222222222222222222222222222222"
	anonToken   = "0x3333333333333333333333333333333333333333"
)

func polygonHandler(method string, params []json.RawMessage) (any, string) {
	switch method {
	case "eth_getBalance":
		return "0xde0b6b3a7640000", "" // 1e18
	case "alchemy_getTokenBalances":
		return map[string]any{
			"address": paramString(params, 0),
			"tokenBalances": []map[string]any{
				{"contractAddress": usdcPolygon, "tokenBalance": "0x00000000000000000000000000000000000000000000000000000000000f4240", "error": nil},
				{"contractAddress": dustToken, "tokenBalance": "0x0000000000000000000000000000000000000000000000000000000000000000", "error": nil},
				{"contractAddress": nullToken, "tokenBalance": nil, "error": nil},
				{"contractAddress": anonToken, "tokenBalance": "0x05", "error": nil},
			},
		}, ""
	case "alchemy_getTokenMetadata":
		if paramString(params, 0) == usdcPolygon {
			return map[string]any{"name": "USD Coin", "symbol": "USDC", "decimals": 6, "logo": "https://static.example/usdc.png"}, ""
		}
		return nil, "metadata unavailable"
	}
	return nil, "method not found"
}

func polygonNetwork(url string) config.Network {
	return config.Network{ChainID: "137", Name: "Polygon", RPCURL: url, NativeSymbol: "MATIC", NativeName: "Polygon", NativeDecimals: 18, ExplorerURL: "https://polygonscan.com"}
}

var polygon = domain.ChainRef{ID: "137", Namespace: domain.NamespaceEIP155}

func TestAlchemyEVMAdapter_GetBalances(t *testing.T) {
	srv := newFakeRPC(t, polygonHandler)
	a := NewAlchemyEVMAdapter([]config.Network{polygonNetwork(srv.URL)}, "")
	defer a.Close()

	balances := a.GetBalances(context.Background(), evmWallet(), polygon)
	require.Len(t, balances, 3)

	native := balances[0]
	assert.True(t, native.IsNative)
	assert.Equal(t, "MATIC", native.Symbol)
	assert.Equal(t, "Polygon", native.Name)
	assert.Equal(t, 18, native.Decimals)
	assert.Equal(t, domain.NativeAddress, native.Address)
	assert.Equal(t, "1000000000000000000", native.Amount.String())

	usdc := balances[1]
	assert.False(t, usdc.IsNative)
	assert.Equal(t, "USDC", usdc.Symbol)
	assert.Equal(t, 6, usdc.Decimals)
	assert.Equal(t, "1000000", usdc.Amount.String())
	assert.Equal(t, "https://static.example/usdc.png", usdc.LogoURI)
	assert.Equal(t, "https://polygonscan.com/token/"+usdcPolygon, usdc.BlockExplorerURL)

	anon := balances[2]
	assert.Equal(t, "0x3333", anon.Symbol)
	assert.Equal(t, anonToken, anon.Name)
	assert.Equal(t, 18, anon.Decimals)

	nativeCount := 0
	for _, b := range balances {
		if b.IsNative {
			nativeCount++
		}
		assert.Equal(t, "137", b.ChainID)
		assert.Equal(t, domain.NamespaceEIP155, b.Namespace)
	}
	assert.Equal(t, 1, nativeCount)
}

func TestAlchemyEVMAdapter_Cache(t *testing.T) {
	srv := newFakeRPC(t, polygonHandler)
	clock := testutil.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	a := NewAlchemyEVMAdapter([]config.Network{polygonNetwork(srv.URL)}, "", WithClock(clock))
	defer a.Close()
	ctx := context.Background()

	first := a.GetBalances(ctx, evmWallet(), polygon)
	require.NotEmpty(t, first)
	calls := srv.calls.Load()

	clock.Advance(9 * time.Second)
	second := a.GetBalances(ctx, evmWallet(), polygon)
	assert.Equal(t, calls, srv.calls.Load(), "fresh cache entry must not hit the network")
	assert.Equal(t, len(first), len(second))

	clock.Advance(time.Second)
	a.GetBalances(ctx, evmWallet(), polygon)
	assert.Greater(t, srv.calls.Load(), calls, "entry at ttl must be refetched")
}

func TestAlchemyEVMAdapter_FailureIsEmpty(t *testing.T) {
	srv := newFakeRPC(t, func(method string, params []json.RawMessage) (any, string) {
		if method == "alchemy_getTokenBalances" {
			return nil, "rate limited"
		}
		return polygonHandler(method, params)
	})
	a := NewAlchemyEVMAdapter([]config.Network{polygonNetwork(srv.URL)}, "")
	defer a.Close()

	assert.Empty(t, a.GetBalances(context.Background(), evmWallet(), polygon))
}

func TestAlchemyEVMAdapter_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	a := NewAlchemyEVMAdapter([]config.Network{polygonNetwork(srv.URL)}, "")
	defer a.Close()
	assert.Empty(t, a.GetBalances(context.Background(), evmWallet(), polygon))
}

func TestAlchemyEVMAdapter_Unsupported(t *testing.T) {
	srv := newFakeRPC(t, polygonHandler)
	keyed := config.Network{ChainID: "1", Name: "Ethereum", RPCURL: srv.URL + "/v2/"}
	a := NewAlchemyEVMAdapter([]config.Network{keyed, polygonNetwork(srv.URL)}, "")
	defer a.Close()
	ctx := context.Background()

	assert.False(t, a.Supports(domain.ChainRef{ID: "1", Namespace: domain.NamespaceEIP155}), "no api key")
	assert.Empty(t, a.GetBalances(ctx, evmWallet(), domain.ChainRef{ID: "1", Namespace: domain.NamespaceEIP155}))
	assert.Empty(t, a.GetBalances(ctx, evmWallet(), domain.ChainRef{ID: "10", Namespace: domain.NamespaceEIP155}))
	assert.Empty(t, a.GetBalances(ctx, evmWallet(), domain.ChainRef{ID: "137", Namespace: domain.NamespaceSolana}))
	assert.Empty(t, a.GetBalances(ctx, "not-an-address", polygon))
	assert.Zero(t, srv.calls.Load())
}

func TestParseHexQuantity(t *testing.T) {
	for in, want := range map[string]string{
		"0x0":               "0",
		"0x":                "0",
		"0x000000ff":        "255",
		"0XDE0B6B3A7640000": "1000000000000000000",
	} {
		got, ok := parseHexQuantity(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got.String(), in)
	}
	_, ok := parseHexQuantity("0xzz")
	assert.False(t, ok)
}
