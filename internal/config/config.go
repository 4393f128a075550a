// Package config loads dashboard settings from .env, the environment and an
// optional YAML networks file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/athena-web3/dashboard-core/internal/core/domain"
)

// Network describes one chain the balance adapters can query.
type Network struct {
	ChainID        string `yaml:"chain_id"`
	Name           string `yaml:"name"`
	RPCURL         string `yaml:"rpc_url"`
	NativeSymbol   string `yaml:"native_symbol"`
	NativeName     string `yaml:"native_name"`
	NativeDecimals int    `yaml:"native_decimals"`
	ExplorerURL    string `yaml:"explorer_url"`
}

// Namespace is inferred from the chain id.
func (n Network) Namespace() domain.Namespace {
	return domain.NamespaceOf(n.ChainID)
}

// Ref converts the network to the adapter-facing chain reference.
func (n Network) Ref() domain.ChainRef {
	return domain.ChainRef{ID: n.ChainID, Namespace: n.Namespace()}
}

// Endpoint resolves the RPC URL, appending apiKey to key-templated URLs
// (those ending in "/"). It returns "" when a key is required but missing.
func (n Network) Endpoint(apiKey string) string {
	if n.RPCURL == "" {
		return ""
	}
	if !strings.HasSuffix(n.RPCURL, "/") {
		return n.RPCURL
	}
	if apiKey == "" {
		return ""
	}
	return n.RPCURL + apiKey
}

// SnapshotConfig selects and configures the durable snapshot store.
type SnapshotConfig struct {
	Backend       string // memory, file, redis, sqlite
	Dir           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string
}

// Config is the full dashboard configuration.
type Config struct {
	APIURL        string
	APIJWTSecret  string
	AlchemyAPIKey string
	CovalentKey   string

	// Wallets are CAIP-10 or bare addresses standing in for the wallet
	// provider's connection.
	Wallets []string

	Networks []Network
	Snapshot SnapshotConfig

	LogLevel   string
	LogFormat  string
	ListenAddr string

	BalanceRefresh     time.Duration
	SwapPollInterval   time.Duration
	CatalogAttempts    int
	CatalogBackoffBase time.Duration
	PriceEnrichment    bool
}

// DefaultNetworks mirrors the networks the dashboard ships with.
func DefaultNetworks() []Network {
	return []Network{
		{ChainID: "1", Name: "Ethereum", RPCURL: "https://eth-mainnet.g.alchemy.com/v2/", NativeSymbol: "ETH", NativeName: "Ethereum", NativeDecimals: 18, ExplorerURL: "https://etherscan.io"},
		{ChainID: "137", Name: "Polygon", RPCURL: "https://polygon-mainnet.g.alchemy.com/v2/", NativeSymbol: "MATIC", NativeName: "Polygon", NativeDecimals: 18, ExplorerURL: "https://polygonscan.com"},
		{ChainID: "42161", Name: "Arbitrum", RPCURL: "https://arb-mainnet.g.alchemy.com/v2/", NativeSymbol: "ETH", NativeName: "Ethereum", NativeDecimals: 18, ExplorerURL: "https://arbiscan.io"},
		{ChainID: "solana", Name: "Solana", RPCURL: "https://api.mainnet-beta.solana.com", NativeSymbol: "SOL", NativeName: "Solana", NativeDecimals: 9, ExplorerURL: "https://solscan.io"},
		{ChainID: "solanaDevnet", Name: "Solana Devnet", RPCURL: "https://api.devnet.solana.com", NativeSymbol: "SOL", NativeName: "Solana", NativeDecimals: 9},
		{ChainID: "solanaTestnet", Name: "Solana Testnet", RPCURL: "https://api.testnet.solana.com", NativeSymbol: "SOL", NativeName: "Solana", NativeDecimals: 9},
	}
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // Load .env if present
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		APIURL:        strings.TrimRight(get("DASHBOARD_API_URL", "https://medusaapi.tinyaibots.com"), "/"),
		APIJWTSecret:  get("DASHBOARD_API_JWT_SECRET", ""),
		AlchemyAPIKey: get("ALCHEMY_API_KEY", ""),
		CovalentKey:   get("COVALENT_API_KEY", ""),
		Snapshot: SnapshotConfig{
			Backend:       strings.ToLower(get("SNAPSHOT_BACKEND", "memory")),
			Dir:           get("SNAPSHOT_DIR", defaultSnapshotDir()),
			RedisAddr:     get("REDIS_ADDR", "localhost:6379"),
			RedisPassword: get("REDIS_PASSWORD", ""),
			SQLitePath:    get("SQLITE_PATH", "dashboard.db"),
		},
		LogLevel:   get("LOG_LEVEL", "info"),
		LogFormat:  get("LOG_FORMAT", "json"),
		ListenAddr: get("LISTEN_ADDR", ":8090"),
	}

	var err error
	if cfg.Snapshot.RedisDB, err = strconv.Atoi(get("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.BalanceRefresh, err = time.ParseDuration(get("BALANCE_REFRESH_INTERVAL", "30s")); err != nil {
		return nil, fmt.Errorf("invalid BALANCE_REFRESH_INTERVAL: %w", err)
	}
	if cfg.SwapPollInterval, err = time.ParseDuration(get("SWAP_POLL_INTERVAL", "5s")); err != nil {
		return nil, fmt.Errorf("invalid SWAP_POLL_INTERVAL: %w", err)
	}
	if cfg.CatalogBackoffBase, err = time.ParseDuration(get("CATALOG_BACKOFF_BASE", "1s")); err != nil {
		return nil, fmt.Errorf("invalid CATALOG_BACKOFF_BASE: %w", err)
	}
	if cfg.CatalogAttempts, err = strconv.Atoi(get("CATALOG_ATTEMPTS", "3")); err != nil || cfg.CatalogAttempts < 1 {
		return nil, fmt.Errorf("invalid CATALOG_ATTEMPTS %q", getenv("CATALOG_ATTEMPTS"))
	}
	if cfg.PriceEnrichment, err = strconv.ParseBool(get("PRICE_ENRICHMENT", "false")); err != nil {
		return nil, fmt.Errorf("invalid PRICE_ENRICHMENT: %w", err)
	}

	for _, w := range strings.Split(get("WALLET_ADDRESSES", ""), ",") {
		if w = strings.TrimSpace(w); w != "" {
			cfg.Wallets = append(cfg.Wallets, w)
		}
	}

	cfg.Networks = DefaultNetworks()
	if path := get("DASHBOARD_NETWORKS_FILE", ""); path != "" {
		if cfg.Networks, err = LoadNetworks(path); err != nil {
			return nil, err
		}
	}
	if sol := get("SOLANA_RPC_URL", ""); sol != "" {
		for i := range cfg.Networks {
			if cfg.Networks[i].ChainID == "solana" {
				cfg.Networks[i].RPCURL = sol
			}
		}
	}

	return cfg, nil
}

type networksFile struct {
	Networks []Network `yaml:"networks"`
}

// LoadNetworks reads a YAML file with a top-level "networks" list.
func LoadNetworks(path string) ([]Network, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read networks file: %w", err)
	}

	var f networksFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse networks file: %w", err)
	}
	if len(f.Networks) == 0 {
		return nil, fmt.Errorf("networks file %s: no networks defined", path)
	}

	seen := make(map[string]bool, len(f.Networks))
	for i, n := range f.Networks {
		if n.ChainID == "" || n.Name == "" {
			return nil, fmt.Errorf("networks[%d]: chain_id and name are required", i)
		}
		if n.Namespace() == domain.NamespaceUnknown {
			return nil, fmt.Errorf("networks[%d]: cannot infer namespace of chain %q", i, n.ChainID)
		}
		if seen[n.ChainID] {
			return nil, fmt.Errorf("networks[%d]: duplicate chain %q", i, n.ChainID)
		}
		seen[n.ChainID] = true
		if f.Networks[i].NativeDecimals == 0 {
			if n.Namespace() == domain.NamespaceSolana {
				f.Networks[i].NativeDecimals = 9
			} else {
				f.Networks[i].NativeDecimals = 18
			}
		}
	}
	return f.Networks, nil
}

// Network returns the configured network for chainID.
func (c *Config) Network(chainID string) (Network, bool) {
	for _, n := range c.Networks {
		if n.ChainID == chainID {
			return n, true
		}
	}
	return Network{}, false
}

// ChainRefs lists every configured network in order.
func (c *Config) ChainRefs() []domain.ChainRef {
	refs := make([]domain.ChainRef, 0, len(c.Networks))
	for _, n := range c.Networks {
		refs = append(refs, n.Ref())
	}
	return refs
}

func defaultSnapshotDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".dashboard", "snapshots")
}
