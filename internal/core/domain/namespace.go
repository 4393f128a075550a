package domain

import (
	"fmt"
	"strings"
)

// SolanaRelayChainID is the chain id the routing backend uses for Solana.
const SolanaRelayChainID = "792703809"

// NamespaceOf infers the namespace from the shape of a chain id.
func NamespaceOf(chainID string) Namespace {
	switch {
	case chainID == "":
		return NamespaceUnknown
	case chainID == SolanaRelayChainID:
		return NamespaceSolana
	case isDigits(chainID):
		return NamespaceEIP155
	case strings.Contains(strings.ToLower(chainID), "solana"):
		return NamespaceSolana
	}
	return NamespaceUnknown
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ParseCAIPAddress splits "namespace:chainId:address".
func ParseCAIPAddress(caip string) (WalletAddress, error) {
	parts := strings.SplitN(caip, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return WalletAddress{}, fmt.Errorf("invalid CAIP address %q", caip)
	}
	ns := Namespace(parts[0])
	if ns != NamespaceEIP155 && ns != NamespaceSolana {
		return WalletAddress{}, fmt.Errorf("unsupported namespace %q", parts[0])
	}
	return WalletAddress{
		Namespace: ns,
		ChainID:   parts[1],
		Address:   parts[2],
	}, nil
}

// WalletFromAddresses builds a connected WalletState from CAIP-10 or bare
// addresses. The first entry is the primary account. Bare "0x" addresses
// are taken as EVM on chain 1, anything else as Solana.
func WalletFromAddresses(entries []string) (WalletState, error) {
	var w WalletState
	for _, e := range entries {
		var addr WalletAddress
		switch {
		case strings.Contains(e, ":"):
			var err error
			if addr, err = ParseCAIPAddress(e); err != nil {
				return WalletState{}, err
			}
		case strings.HasPrefix(e, "0x"):
			addr = WalletAddress{Address: e, ChainID: "1", Namespace: NamespaceEIP155}
		default:
			addr = WalletAddress{Address: e, ChainID: SolanaRelayChainID, Namespace: NamespaceSolana}
		}
		w.Addresses = append(w.Addresses, addr)
	}
	if len(w.Addresses) == 0 {
		return WalletState{}, nil
	}
	primary := w.Addresses[0]
	w.Connected = true
	w.Address = primary.Address
	w.Namespace = primary.Namespace
	w.ChainID = primary.ChainID
	return w, nil
}
