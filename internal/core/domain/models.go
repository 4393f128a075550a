package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

// Namespace classifies a wallet/chain ecosystem.
type Namespace string

const (
	NamespaceEIP155  Namespace = "eip155"
	NamespaceSolana  Namespace = "solana"
	NamespaceUnknown Namespace = ""
)

// NativeAddress is the address sentinel used for a chain's gas asset.
const NativeAddress = "native"

// ChainRef identifies the chain an adapter is asked about.
type ChainRef struct {
	ID        string    `json:"id"`
	Namespace Namespace `json:"namespace"`
}

// TokenBalance is one holding of one wallet on one chain.
// Amount is always in the token's smallest unit.
type TokenBalance struct {
	ChainID          string    `json:"chainId"`
	ChainName        string    `json:"chainName"`
	Namespace        Namespace `json:"namespace"`
	Address          string    `json:"address"`
	Symbol           string    `json:"symbol"`
	Name             string    `json:"name"`
	Decimals         int       `json:"decimals"`
	Amount           *big.Int  `json:"-"`
	IsNative         bool      `json:"isNative"`
	LogoURI          string    `json:"logoURI,omitempty"`
	USDValue         *float64  `json:"usdValue,omitempty"`
	BlockExplorerURL string    `json:"blockExplorerUrl,omitempty"`
}

// Key is the dedup key of a balance within one aggregation result.
func (b TokenBalance) Key() string {
	return b.ChainID + ":" + b.Address
}

type tokenBalanceJSON TokenBalance

// MarshalJSON encodes Amount as a base-10 string so no precision is lost.
func (b TokenBalance) MarshalJSON() ([]byte, error) {
	amount := "0"
	if b.Amount != nil {
		amount = b.Amount.String()
	}
	return json.Marshal(struct {
		tokenBalanceJSON
		Amount string `json:"amount"`
	}{tokenBalanceJSON(b), amount})
}

func (b *TokenBalance) UnmarshalJSON(data []byte) error {
	var aux struct {
		tokenBalanceJSON
		Amount string `json:"amount"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*b = TokenBalance(aux.tokenBalanceJSON)
	b.Amount = new(big.Int)
	if aux.Amount == "" {
		return nil
	}
	if _, ok := b.Amount.SetString(aux.Amount, 10); !ok {
		return fmt.Errorf("invalid amount %q", aux.Amount)
	}
	return nil
}

// ChainDescriptor is one entry of the backend chain catalog.
type ChainDescriptor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TokenDescriptor is one entry of a per-chain token catalog.
type TokenDescriptor struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
	LogoURI  string `json:"logoURI,omitempty"`
}

// WalletAddress is a read-only projection of one connected account.
type WalletAddress struct {
	Address   string    `json:"address"`
	ChainID   string    `json:"chainId"`
	Namespace Namespace `json:"namespace"`
	ChainName string    `json:"chainName"`
}

// WalletState is what the wallet provider reports about the connection.
type WalletState struct {
	Connected bool            `json:"connected"`
	Address   string          `json:"address"`
	Namespace Namespace       `json:"namespace"`
	ChainID   string          `json:"chainId"`
	Addresses []WalletAddress `json:"addresses,omitempty"`
}

// SwapStatus is a state of the swap session machine.
type SwapStatus string

const (
	SwapNone      SwapStatus = "none"
	SwapQuoted    SwapStatus = "quoted"
	SwapSubmitted SwapStatus = "submitted"
	SwapPending   SwapStatus = "pending"
	SwapCompleted SwapStatus = "completed"
	SwapFailed    SwapStatus = "failed"
)

// IsTerminal reports whether polling stops at this status.
func (s SwapStatus) IsTerminal() bool {
	return s == SwapCompleted || s == SwapFailed
}

// QuoteRequest carries the user's swap form.
type QuoteRequest struct {
	SourceChain      string `json:"source_chain"`
	DestinationChain string `json:"destination_chain"`
	TokenIn          string `json:"token_in"`
	TokenOut         string `json:"token_out"`
	Amount           string `json:"amount"`
	UserAddress      string `json:"user_address"`
	ReceiverAddress  string `json:"receiver_address"`
}

// SwapSession is the orchestrator's record of one quote/execute/poll cycle.
type SwapSession struct {
	SwapID        string          `json:"swapId"`
	Status        SwapStatus      `json:"status"`
	Quote         json.RawMessage `json:"quote,omitempty"`
	Steps         json.RawMessage `json:"steps,omitempty"`
	Request       QuoteRequest    `json:"request"`
	TxHash        string          `json:"txHash,omitempty"`
	Confirmations *int            `json:"confirmations,omitempty"`
	ChainID       string          `json:"chainId,omitempty"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// StatusReport is one answer of the backend status endpoint.
type StatusReport struct {
	Status        string `json:"status"`
	TxHash        string `json:"tx_hash,omitempty"`
	Confirmations *int   `json:"confirmations,omitempty"`
	ChainID       string `json:"chain_id,omitempty"`
}

// QuoteResult is the backend answer to a quote request.
type QuoteResult struct {
	Status  string          `json:"status"`
	Quote   json.RawMessage `json:"quote"`
	SwapID  string          `json:"swap_id"`
	Steps   json.RawMessage `json:"steps"`
	Message string          `json:"message,omitempty"`
}

// SwapResult is the backend answer to an execute request.
type SwapResult struct {
	Status  string `json:"status"`
	SwapID  string `json:"swap_id"`
	Message string `json:"message,omitempty"`
}

// Snapshot is the durable envelope around a cached value.
type Snapshot struct {
	Timestamp int64           `json:"timestamp"` // unix millis
	Data      json.RawMessage `json:"data"`
}

// Fresh reports whether the snapshot is younger than ttl at now.
func (s Snapshot) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(time.UnixMilli(s.Timestamp)) < ttl
}

// BalancesKey is the durable key for an aggregated balance list.
func BalancesKey(address string, ns Namespace) string {
	return fmt.Sprintf("balances:%s:%s", address, ns)
}

// SwapSessionKey is the durable key for a swap session snapshot.
func SwapSessionKey(swapID string) string {
	return "swapSession:" + swapID
}
