package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athena-web3/dashboard-core/internal/core/domain"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func TestClient_Chains(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chains", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "dashboard-core/"))
		_, _ = w.Write([]byte(`{"chains":[
			{"id":1,"name":"Ethereum"},
			{"chainId":"137","displayName":"Polygon"},
			{"id":792703809,"displayName":"Solana"},
			{"id":10},
			{"name":"Nameless"},
			"garbage",
			null
		]}`))
	})

	chains, err := c.Chains(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.ChainDescriptor{
		{ID: "1", Name: "Ethereum"},
		{ID: "137", Name: "Polygon"},
		{ID: "792703809", Name: "Solana"},
	}, chains)
}

func TestClient_ChainsInvalidShape(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"networks":[]}`))
	})
	_, err := c.Chains(context.Background())
	assert.Error(t, err)
}

func TestClient_Tokens(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tokens/137", r.URL.Path)
		_, _ = w.Write([]byte(`{"tokens":[
			{"symbol":"USDC","address":"0x3c49","decimals":6,"logoURI":"https://logo"},
			{"symbol":"","address":"0xdead","decimals":18},
			{"symbol":"NOADDR","decimals":18},
			{"symbol":"WETH","address":"0x7ceb","decimals":18},
			{"symbol":"DAI","address":"0x8f3c","decimals":"18"},
			{"symbol":"BAD","address":"0xbad0","decimals":"eighteen"}
		]}`))
	})

	tokens, err := c.Tokens(context.Background(), "137")
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	assert.Equal(t, "USDC", tokens[0].Symbol)
	assert.Equal(t, 6, tokens[0].Decimals)
	assert.Equal(t, "https://logo", tokens[0].LogoURI)
	assert.Equal(t, "WETH", tokens[1].Symbol)
	assert.Equal(t, domain.TokenDescriptor{Symbol: "DAI", Address: "0x8f3c", Decimals: 18}, tokens[2], "string decimals are accepted")
}

func sampleRequest() domain.QuoteRequest {
	return domain.QuoteRequest{
		SourceChain:      "1",
		DestinationChain: "792703809",
		TokenIn:          "0xA0b8",
		TokenOut:         "EPjF",
		Amount:           "1000000",
		UserAddress:      "0xuser",
		ReceiverAddress:  "SoLreceiver",
	}
}

func TestClient_Quote(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("source_chain"))
		assert.Equal(t, "792703809", q.Get("destination_chain"))
		assert.Equal(t, "0xA0b8", q.Get("token_in"))
		assert.Equal(t, "EPjF", q.Get("token_out"))
		assert.Equal(t, "1000000", q.Get("amount"))
		assert.Equal(t, "0xuser", q.Get("user_address"))
		assert.Equal(t, "SoLreceiver", q.Get("receiver_address"))
		_, _ = w.Write([]byte(`{"status":"success","swap_id":"sw-1","quote":{"result":{"destinationAmount":"0.99"}},"steps":[{"kind":"bridge"}]}`))
	})

	res, err := c.Quote(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "sw-1", res.SwapID)
	assert.JSONEq(t, `{"result":{"destinationAmount":"0.99"}}`, string(res.Quote))
	assert.JSONEq(t, `[{"kind":"bridge"}]`, string(res.Steps))
}

func TestClient_QuoteBackendFailure(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"No route found"}`))
	})

	_, err := c.Quote(context.Background(), sampleRequest())
	var berr *domain.BackendError
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, "No route found", berr.Message)
	assert.Equal(t, "Failed to get quote: No route found", domain.UserMessage("get quote", err))
}

func TestClient_HTTPError(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"upstream timeout"}`))
	})

	_, err := c.Quote(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP error! status: 500")
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestClient_Swap(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/swap", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		var got map[string]string
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, map[string]string{
			"user":              "0xuser",
			"source_chain":      "1",
			"destination_chain": "792703809",
			"token_in":          "0xA0b8",
			"token_out":         "EPjF",
			"amount":            "1000000",
			"receiver":          "SoLreceiver",
		}, got)
		_, _ = w.Write([]byte(`{"status":"success","swap_id":"sw-2"}`))
	})

	res, err := c.Swap(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "sw-2", res.SwapID)
}

func TestClient_SwapFailure(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"failed"}`))
	})

	_, err := c.Swap(context.Background(), sampleRequest())
	var berr *domain.BackendError
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, "Unknown error", berr.Message)
}

func TestClient_Status(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/swap/sw-3/status", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"completed","tx_hash":"0xabc","confirmations":12,"chain_id":"1"}`))
	})

	report, err := c.Status(context.Background(), "sw-3")
	require.NoError(t, err)
	assert.Equal(t, "completed", report.Status)
	assert.Equal(t, "0xabc", report.TxHash)
	require.NotNil(t, report.Confirmations)
	assert.Equal(t, 12, *report.Confirmations)
}

func TestClient_Health(t *testing.T) {
	var authSeen string
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		authSeen = r.Header.Get("Authorization")
		if r.URL.Path != "/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	})
	c.jwtSecret = []byte("secret")

	require.NoError(t, c.Health(context.Background()))
	assert.Empty(t, authSeen, "health probe is unauthenticated")

	down := NewClient("http://127.0.0.1:1")
	assert.Error(t, down.Health(context.Background()))
}

func TestClient_JWT(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
			return []byte("s3cret"), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		sub, _ := token.Claims.GetSubject()
		assert.Equal(t, "dashboard-core", sub)
		_, _ = w.Write([]byte(`{"chains":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, WithJWTSecret("s3cret")).Chains(context.Background())
	require.NoError(t, err)

	_, err = NewClient(srv.URL, WithJWTSecret("wrong")).Chains(context.Background())
	assert.Error(t, err)
}
