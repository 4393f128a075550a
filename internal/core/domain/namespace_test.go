package domain

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"
)

func TestNamespaceOf(t *testing.T) {
	tests := []struct {
		chainID string
		want    Namespace
	}{
		{"1", NamespaceEIP155},
		{"137", NamespaceEIP155},
		{"42161", NamespaceEIP155},
		{SolanaRelayChainID, NamespaceSolana},
		{"solana", NamespaceSolana},
		{"solanaDevnet", NamespaceSolana},
		{"SolanaTestnet", NamespaceSolana},
		{"", NamespaceUnknown},
		{"0x1", NamespaceUnknown},
		{"bitcoin", NamespaceUnknown},
	}

	for _, tt := range tests {
		if got := NamespaceOf(tt.chainID); got != tt.want {
			t.Errorf("NamespaceOf(%q) = %q, want %q", tt.chainID, got, tt.want)
		}
	}
}

func TestParseCAIPAddress(t *testing.T) {
	addr, err := ParseCAIPAddress("eip155:137:0xAbc0000000000000000000000000000000001234")
	if err != nil {
		t.Fatalf("ParseCAIPAddress() error = %v", err)
	}
	if addr.Namespace != NamespaceEIP155 || addr.ChainID != "137" {
		t.Errorf("ParseCAIPAddress() = %+v", addr)
	}

	if _, err := ParseCAIPAddress("eip155:1"); err == nil {
		t.Error("ParseCAIPAddress() should reject a two-part address")
	}
	if _, err := ParseCAIPAddress("cosmos:hub:addr"); err == nil {
		t.Error("ParseCAIPAddress() should reject unknown namespaces")
	}
}

func TestTokenBalance_JSONAmount(t *testing.T) {
	amount, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	b := TokenBalance{ChainID: "1", Address: NativeAddress, Symbol: "ETH", Decimals: 18, Amount: amount, IsNative: true}

	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if raw["amount"] != "123456789012345678901234567890" {
		t.Errorf("amount = %v, want decimal string", raw["amount"])
	}

	var back TokenBalance
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back.Amount.Cmp(amount) != 0 {
		t.Errorf("Amount = %v, want %v", back.Amount, amount)
	}
	if back.Key() != "1:native" {
		t.Errorf("Key() = %v, want 1:native", back.Key())
	}
}

func TestSnapshot_Fresh(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	snap := Snapshot{Timestamp: now.Add(-29 * time.Second).UnixMilli()}
	if !snap.Fresh(now, 30*time.Second) {
		t.Error("29s old snapshot should be fresh")
	}
	snap.Timestamp = now.Add(-30 * time.Second).UnixMilli()
	if snap.Fresh(now, 30*time.Second) {
		t.Error("30s old snapshot should be stale")
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage("get quote", ErrMissingSwapFields); got != ErrMissingSwapFields.Message {
		t.Errorf("UserMessage() = %q", got)
	}
	berr := &BackendError{Op: "quote", Status: "error", Message: "insufficient liquidity"}
	if got := UserMessage("get quote", berr); got != "Failed to get quote: insufficient liquidity" {
		t.Errorf("UserMessage() = %q", got)
	}
	cause := errors.New("connection refused")
	rerr := &RetryExhaustedError{Op: "load chains", Attempts: 3, Err: cause}
	if !errors.Is(rerr, cause) {
		t.Error("RetryExhaustedError should unwrap to its cause")
	}
	if got := UserMessage("load chains", rerr); got != "Failed to load chains: connection refused" {
		t.Errorf("UserMessage() = %q", got)
	}
}

func TestWalletFromAddresses(t *testing.T) {
	w, err := WalletFromAddresses([]string{"solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp:So1ana", "0xAbc0000000000000000000000000000000001234"})
	if err != nil {
		t.Fatalf("WalletFromAddresses() error = %v", err)
	}
	if !w.Connected || w.Namespace != NamespaceSolana || w.Address != "So1ana" {
		t.Errorf("primary account = %+v", w)
	}
	if len(w.Addresses) != 2 || w.Addresses[1].Namespace != NamespaceEIP155 || w.Addresses[1].ChainID != "1" {
		t.Errorf("Addresses = %+v", w.Addresses)
	}

	empty, err := WalletFromAddresses(nil)
	if err != nil || empty.Connected {
		t.Errorf("WalletFromAddresses(nil) = %+v, %v", empty, err)
	}
	if _, err := WalletFromAddresses([]string{"cosmos:hub:addr"}); err == nil {
		t.Error("WalletFromAddresses() should reject unknown namespaces")
	}
}
