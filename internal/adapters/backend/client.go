// Package backend is the HTTP client for the quote/swap routing service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/athena-web3/dashboard-core/internal/core/domain"
	"github.com/athena-web3/dashboard-core/pkg/version"
)

// StatusSuccess is the status value of a successful quote or swap answer.
const StatusSuccess = "success"

// Client wraps HTTP operations for the routing backend endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	jwtSecret  []byte
	userAgent  string
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithJWTSecret signs a short-lived HS256 bearer token on every
// authenticated request.
func WithJWTSecret(secret string) ClientOption {
	return func(cl *Client) {
		if secret != "" {
			cl.jwtSecret = []byte(secret)
		}
	}
}

// swapRequest is the body of POST /swap.
type swapRequest struct {
	User             string `json:"user"`
	SourceChain      string `json:"source_chain"`
	DestinationChain string `json:"destination_chain"`
	TokenIn          string `json:"token_in"`
	TokenOut         string `json:"token_out"`
	Amount           string `json:"amount"`
	Receiver         string `json:"receiver"`
}

// chainsResponse is the response of GET /chains; entries are decoded
// leniently one by one.
type chainsResponse struct {
	Chains []json.RawMessage `json:"chains"`
}

type tokensResponse struct {
	Tokens []json.RawMessage `json:"tokens"`
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent: "dashboard-core/" + version.Version(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health probes GET / without credentials.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/", nil, false)
	if err != nil {
		return fmt.Errorf("failed to reach backend: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("health check returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// Chains fetches the supported chains. Entries without an id or a name
// are dropped.
func (c *Client) Chains(ctx context.Context) ([]domain.ChainDescriptor, error) {
	var body chainsResponse
	if err := c.getJSON(ctx, "/chains", &body); err != nil {
		return nil, err
	}
	if body.Chains == nil {
		return nil, fmt.Errorf("invalid chains data structure")
	}

	chains := make([]domain.ChainDescriptor, 0, len(body.Chains))
	for _, raw := range body.Chains {
		var entry struct {
			ID          json.RawMessage `json:"id"`
			ChainID     json.RawMessage `json:"chainId"`
			Name        string          `json:"name"`
			DisplayName string          `json:"displayName"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		id := scalarString(entry.ID)
		if id == "" {
			id = scalarString(entry.ChainID)
		}
		name := entry.Name
		if name == "" {
			name = entry.DisplayName
		}
		if id == "" || name == "" {
			continue
		}
		chains = append(chains, domain.ChainDescriptor{ID: id, Name: name})
	}
	return chains, nil
}

// Tokens fetches the token list of one chain. Entries without a symbol or
// address are dropped.
func (c *Client) Tokens(ctx context.Context, chainID string) ([]domain.TokenDescriptor, error) {
	var body tokensResponse
	if err := c.getJSON(ctx, "/tokens/"+url.PathEscape(chainID), &body); err != nil {
		return nil, fmt.Errorf("chain %s: %w", chainID, err)
	}
	if body.Tokens == nil {
		return nil, fmt.Errorf("chain %s: invalid tokens data structure", chainID)
	}

	tokens := make([]domain.TokenDescriptor, 0, len(body.Tokens))
	for _, raw := range body.Tokens {
		var entry struct {
			Symbol   string          `json:"symbol"`
			Address  string          `json:"address"`
			Decimals json.RawMessage `json:"decimals"`
			LogoURI  string          `json:"logoURI"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		decimals := 0
		if d := scalarString(entry.Decimals); d != "" {
			n, err := strconv.Atoi(d)
			if err != nil {
				continue
			}
			decimals = n
		}
		if entry.Symbol == "" || entry.Address == "" || decimals < 0 {
			continue
		}
		tokens = append(tokens, domain.TokenDescriptor{
			Symbol:   entry.Symbol,
			Address:  entry.Address,
			Decimals: decimals,
			LogoURI:  entry.LogoURI,
		})
	}
	return tokens, nil
}

// Quote requests a route quote. A non-success status is a *domain.BackendError.
func (c *Client) Quote(ctx context.Context, req domain.QuoteRequest) (*domain.QuoteResult, error) {
	q := url.Values{}
	q.Set("source_chain", req.SourceChain)
	q.Set("destination_chain", req.DestinationChain)
	q.Set("token_in", req.TokenIn)
	q.Set("token_out", req.TokenOut)
	q.Set("amount", req.Amount)
	q.Set("user_address", req.UserAddress)
	q.Set("receiver_address", req.ReceiverAddress)

	var result domain.QuoteResult
	if err := c.getJSON(ctx, "/quote?"+q.Encode(), &result); err != nil {
		return nil, err
	}
	if result.Status != StatusSuccess {
		return nil, &domain.BackendError{Op: "quote", Status: result.Status, Message: orUnknown(result.Message)}
	}
	return &result, nil
}

// Swap submits the swap for execution.
func (c *Client) Swap(ctx context.Context, req domain.QuoteRequest) (*domain.SwapResult, error) {
	body := swapRequest{
		User:             req.UserAddress,
		SourceChain:      req.SourceChain,
		DestinationChain: req.DestinationChain,
		TokenIn:          req.TokenIn,
		TokenOut:         req.TokenOut,
		Amount:           req.Amount,
		Receiver:         req.ReceiverAddress,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/swap", payload, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result domain.SwapResult
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	if result.Status != StatusSuccess {
		return nil, &domain.BackendError{Op: "swap", Status: result.Status, Message: orUnknown(result.Message)}
	}
	return &result, nil
}

// Status fetches the execution status of a swap.
func (c *Client) Status(ctx context.Context, swapID string) (*domain.StatusReport, error) {
	var report domain.StatusReport
	if err := c.getJSON(ctx, "/swap/"+url.PathEscape(swapID)+"/status", &report); err != nil {
		return nil, fmt.Errorf("failed to get swap status: %w", err)
	}
	return &report, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, authenticated bool) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())

	if authenticated && c.jwtSecret != nil {
		token, err := c.bearer()
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

func (c *Client) bearer() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   "dashboard-core",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign bearer token: %w", err)
	}
	return signed, nil
}

func decodeResponse(resp *http.Response, out any) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Message string `json:"message"`
			Detail  string `json:"detail"`
		}
		if json.Unmarshal(data, &errResp) == nil {
			if msg := errResp.Message + errResp.Detail; msg != "" {
				return fmt.Errorf("HTTP error! status: %d: %s", resp.StatusCode, msg)
			}
		}
		return fmt.Errorf("HTTP error! status: %d", resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// scalarString renders a JSON string or number as a string.
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func orUnknown(msg string) string {
	if msg == "" {
		return "Unknown error"
	}
	return msg
}
