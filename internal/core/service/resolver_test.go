package service

import (
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athena-web3/dashboard-core/internal/core/domain"
)

var solAddr = base58.Encode([]byte(strings.Repeat("\x07", 32)))

const evmLower = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
const evmChecksummed = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func bothWallet() domain.WalletState {
	return domain.WalletState{
		Connected: true,
		Address:   evmLower,
		Namespace: domain.NamespaceEIP155,
		ChainID:   "1",
		Addresses: []domain.WalletAddress{
			{Address: evmLower, Namespace: domain.NamespaceEIP155},
			{Address: solAddr, Namespace: domain.NamespaceSolana},
		},
	}
}

func TestConnectedAddresses(t *testing.T) {
	r := NewAddressResolver()
	got := r.ConnectedAddresses(bothWallet())

	require.Len(t, got, 2)
	assert.Equal(t, domain.WalletAddress{
		Address: evmChecksummed, ChainID: "1", Namespace: domain.NamespaceEIP155, ChainName: "Ethereum",
	}, got[0])
	assert.Equal(t, domain.WalletAddress{
		Address: solAddr, ChainID: domain.SolanaRelayChainID, Namespace: domain.NamespaceSolana, ChainName: "Solana",
	}, got[1])
}

func TestConnectedAddresses_PrimaryOnly(t *testing.T) {
	r := NewAddressResolver()

	got := r.ConnectedAddresses(domain.WalletState{Connected: true, Address: solAddr, Namespace: domain.NamespaceSolana})
	require.Len(t, got, 1)
	assert.Equal(t, domain.NamespaceSolana, got[0].Namespace)

	got = r.ConnectedAddresses(domain.WalletState{Connected: true, Address: "not-an-address"})
	assert.Empty(t, got)

	assert.Nil(t, r.ConnectedAddresses(domain.WalletState{Address: evmLower}))
}

func TestAddressesForChain(t *testing.T) {
	r := NewAddressResolver()
	w := bothWallet()

	tests := []struct {
		chainID string
		want    string
	}{
		{"137", evmChecksummed},
		{"1", evmChecksummed},
		{domain.SolanaRelayChainID, solAddr},
		{"solana", solAddr},
		{"solanaDevnet", solAddr},
	}
	for _, tt := range tests {
		t.Run(tt.chainID, func(t *testing.T) {
			got := r.AddressesForChain(w, tt.chainID)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Address)
		})
	}

	assert.Empty(t, r.AddressesForChain(w, "cosmoshub-4"))
	assert.Empty(t, r.AddressesForChain(w, ""))
}

func TestDefaultAddress_NoCompatible(t *testing.T) {
	r := NewAddressResolver()
	r.SetChains([]domain.ChainDescriptor{{ID: "137", Name: "Polygon"}})
	solOnly := domain.WalletState{Connected: true, Address: solAddr, Namespace: domain.NamespaceSolana}

	_, err := r.DefaultAddress(solOnly, "137")
	require.Error(t, err)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "No compatible address connected for Polygon", verr.Message)

	_, err = r.DefaultAddress(solOnly, "10")
	assert.EqualError(t, err, "No compatible address connected for chain 10")

	addr, err := r.DefaultAddress(solOnly, "solana")
	require.NoError(t, err)
	assert.Equal(t, solAddr, addr.Address)
}

func TestSourceAddress(t *testing.T) {
	r := NewAddressResolver()
	foreign := "0x000000000000000000000000000000000000dEaD"

	tests := []struct {
		name      string
		wallet    domain.WalletState
		chainID   string
		requested string
		want      string
		err       string
	}{
		{"default", bothWallet(), "1", "", evmChecksummed, ""},
		{"lowercase evm matches", bothWallet(), "137", evmLower, evmChecksummed, ""},
		{"solana exact", bothWallet(), "solana", solAddr, solAddr, ""},
		{"foreign evm", bothWallet(), "1", foreign, "", "Source address " + foreign + " is not connected for Ethereum"},
		{"evm address on solana", bothWallet(), "solana", evmChecksummed, "", "Source address " + evmChecksummed + " is not connected for chain solana"},
		{
			"nothing for the chain",
			domain.WalletState{Connected: true, Address: solAddr, Namespace: domain.NamespaceSolana},
			"1", foreign, "", "No compatible address connected for Ethereum",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := r.SourceAddress(tt.wallet, tt.chainID, tt.requested)
			if tt.err != "" {
				var verr *domain.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.err, verr.Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, addr.Address)
		})
	}
}
