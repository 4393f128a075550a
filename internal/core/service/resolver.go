package service

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"

	"github.com/athena-web3/dashboard-core/internal/core/domain"
)

// Defaults attached to addresses derived from the wallet provider.
const (
	DefaultEVMChainID   = "1"
	DefaultEVMChainName = "Ethereum"
	SolanaChainName     = "Solana"
)

// AddressResolver maps connected wallet accounts to the chain selected in
// the swap or balance view.
type AddressResolver struct {
	mu    sync.RWMutex
	names map[string]string
}

func NewAddressResolver() *AddressResolver {
	return &AddressResolver{names: map[string]string{
		DefaultEVMChainID:         DefaultEVMChainName,
		domain.SolanaRelayChainID: SolanaChainName,
	}}
}

// SetChains records catalog names used in warnings.
func (r *AddressResolver) SetChains(chains []domain.ChainDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range chains {
		r.names[c.ID] = c.Name
	}
}

// ChainName returns the catalog name of chainID, or the id itself.
func (r *AddressResolver) ChainName(chainID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n, ok := r.names[chainID]; ok {
		return n
	}
	return "chain " + chainID
}

// ConnectedAddresses lists one address per connected namespace, EVM first.
// Explicit per-namespace accounts take precedence over the primary address.
func (r *AddressResolver) ConnectedAddresses(wallet domain.WalletState) []domain.WalletAddress {
	if !wallet.Connected {
		return nil
	}

	var evm, sol string
	for _, a := range wallet.Addresses {
		switch {
		case a.Namespace == domain.NamespaceEIP155 && evm == "" && common.IsHexAddress(a.Address):
			evm = a.Address
		case a.Namespace == domain.NamespaceSolana && sol == "" && isSolanaAddress(a.Address):
			sol = a.Address
		}
	}
	if evm == "" && common.IsHexAddress(wallet.Address) {
		evm = wallet.Address
	}
	if sol == "" && isSolanaAddress(wallet.Address) {
		sol = wallet.Address
	}

	var out []domain.WalletAddress
	if evm != "" {
		out = append(out, domain.WalletAddress{
			Address:   common.HexToAddress(evm).Hex(),
			ChainID:   DefaultEVMChainID,
			Namespace: domain.NamespaceEIP155,
			ChainName: DefaultEVMChainName,
		})
	}
	if sol != "" {
		out = append(out, domain.WalletAddress{
			Address:   sol,
			ChainID:   domain.SolanaRelayChainID,
			Namespace: domain.NamespaceSolana,
			ChainName: SolanaChainName,
		})
	}
	return out
}

// AddressesForChain returns the connected addresses whose namespace matches
// chainID's. The first entry is the default selection.
func (r *AddressResolver) AddressesForChain(wallet domain.WalletState, chainID string) []domain.WalletAddress {
	ns := domain.NamespaceOf(chainID)
	if ns == domain.NamespaceUnknown {
		return nil
	}
	var out []domain.WalletAddress
	for _, a := range r.ConnectedAddresses(wallet) {
		if a.Namespace == ns {
			out = append(out, a)
		}
	}
	return out
}

// DefaultAddress returns the first compatible address, or a validation
// error naming the chain when there is none.
func (r *AddressResolver) DefaultAddress(wallet domain.WalletState, chainID string) (domain.WalletAddress, error) {
	addrs := r.AddressesForChain(wallet, chainID)
	if len(addrs) == 0 {
		return domain.WalletAddress{}, domain.NoCompatibleAddressError(r.ChainName(chainID))
	}
	return addrs[0], nil
}

// SourceAddress resolves the swap source for chainID. An empty requested
// address selects the default; otherwise it must be one of the connected
// addresses for the chain (EVM addresses compare case-insensitively).
func (r *AddressResolver) SourceAddress(wallet domain.WalletState, chainID, requested string) (domain.WalletAddress, error) {
	addrs := r.AddressesForChain(wallet, chainID)
	if len(addrs) == 0 {
		return domain.WalletAddress{}, domain.NoCompatibleAddressError(r.ChainName(chainID))
	}
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return addrs[0], nil
	}
	for _, a := range addrs {
		if a.Address == requested || (a.Namespace == domain.NamespaceEIP155 && strings.EqualFold(a.Address, requested)) {
			return a, nil
		}
	}
	return domain.WalletAddress{}, domain.SourceNotConnectedError(requested, r.ChainName(chainID))
}

func isSolanaAddress(s string) bool {
	b, err := base58.Decode(s)
	return err == nil && len(b) == 32
}
