package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full hakichain configuration. Values are resolved in order:
// DefaultConfig, then the YAML file, then environment variables.
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Chain  ChainConfig  `yaml:"chain"`
	Wallet WalletConfig `yaml:"wallet"`
	Proof  ProofConfig  `yaml:"proof"`
	DAG    DAGConfig    `yaml:"dag"`
	IPFS   IPFSConfig   `yaml:"ipfs"`
	API    APIConfig    `yaml:"api"`
	// SOCKSProxy routes proof, explorer and gateway requests through a
	// SOCKS5 proxy (host:port). Chain RPC and IPFS connect directly.
	SOCKSProxy string `yaml:"socks_proxy,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// ChainConfig holds the EVM endpoint and the three contract addresses.
type ChainConfig struct {
	RPCURL             string  `yaml:"rpc_url"` // read-only fallback provider
	WSURL              string  `yaml:"ws_url"`  // event subscriptions
	ChainID            int64   `yaml:"chain_id"`
	RegistryAddress    string  `yaml:"registry_address"`
	EscrowAddress      string  `yaml:"escrow_address"`
	TokenAddress       string  `yaml:"token_address"`
	BlockConfirmations uint64  `yaml:"block_confirmations"`
	GasLimitMultiplier float64 `yaml:"gas_limit_multiplier"`
	MaxGasPriceGwei    int64   `yaml:"max_gas_price_gwei"`
	// Mock runs every contract in memory. Addresses and RPC are ignored.
	Mock bool `yaml:"mock"`
}

// WalletConfig points at the geth keystore used for signing.
type WalletConfig struct {
	KeystoreDir string `yaml:"keystore_dir"`
	Address     string `yaml:"address"`
	// Password is only ever read from HAKICHAIN_WALLET_PASSWORD or the OS keyring.
	Password string `yaml:"-"`
}

type ProofConfig struct {
	TimeoutSecs int         `yaml:"timeout_secs"`
	DAG         DAGProofAPI `yaml:"dag"`
	ICP         ICPAPI      `yaml:"icp"`
	Story       StoryAPI    `yaml:"story"`
}

type DAGProofAPI struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"-"`
}

type ICPAPI struct {
	BaseURL   string `yaml:"base_url"`
	AgentID   string `yaml:"agent_id"`
	AuthToken string `yaml:"-"`
}

type StoryAPI struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"-"`
}

// DAGConfig covers the Constellation block explorer and the wallet gateway.
type DAGConfig struct {
	BlockExplorerURL  string  `yaml:"block_explorer_url"`
	Address           string  `yaml:"address"`
	GatewayURL        string  `yaml:"gateway_url"`
	AnchorDestination string  `yaml:"anchor_destination"`
	AnchorAmount      float64 `yaml:"anchor_amount"`
	PageLimit         int     `yaml:"page_limit"`
}

type IPFSConfig struct {
	APIURL string `yaml:"api_url"`
}

// APIConfig contains API server settings
type APIConfig struct {
	Host                string   `yaml:"host"`
	Port                int      `yaml:"port"`
	APIKey              string   `yaml:"-"`
	APIKeyHash          string   `yaml:"api_key_hash"` // bcrypt, from "hakichain serve --generate-key"
	CORSOrigins         []string `yaml:"cors_origins"`
	RateLimitRequests   int      `yaml:"rate_limit_requests"`
	RateLimitWindowSecs int      `yaml:"rate_limit_window_secs"`
	MaxRequestSize      int64    `yaml:"max_request_size"`
	ReadTimeoutSecs     int      `yaml:"read_timeout_secs"`
	WriteTimeoutSecs    int      `yaml:"write_timeout_secs"`
	IdleTimeoutSecs     int      `yaml:"idle_timeout_secs"`
	EnableEvents        bool     `yaml:"enable_events"`
}

// Environment variable names. The VITE_ prefixed names are shared with the web app.
const (
	EnvRegistryAddress   = "VITE_BOUNTY_REGISTRY_ADDRESS"
	EnvEscrowAddress     = "VITE_BOUNTY_ESCROW_ADDRESS"
	EnvTokenAddress      = "VITE_HAKI_TOKEN_ADDRESS"
	EnvPublicRPCURL      = "VITE_PUBLIC_RPC_URL"
	EnvWSURL             = "HAKICHAIN_WS_URL"
	EnvChainID           = "HAKICHAIN_CHAIN_ID"
	EnvMock              = "HAKICHAIN_MOCK"
	EnvWalletPassword    = "HAKICHAIN_WALLET_PASSWORD"
	EnvWalletAddress     = "HAKICHAIN_WALLET_ADDRESS"
	EnvDAGAPIURL         = "DAG_API_URL"
	EnvDAGAPIKey         = "DAG_API_KEY"
	EnvICPAPIURL         = "ICP_API_URL"
	EnvICPAgentID        = "ICP_AGENT_ID"
	EnvICPAuthToken      = "ICP_AUTH_TOKEN"
	EnvStoryAPIURL       = "STORY_API_URL"
	EnvStoryAPIKey       = "STORY_API_KEY"
	EnvDAGExplorerURL    = "DAG_BE_URL"
	EnvDAGAddress        = "DAG_ADDRESS"
	EnvDAGGatewayURL     = "DAG_GATEWAY_URL"
	EnvAnchorDestination = "DAG_ANCHOR_DESTINATION"
	EnvIPFSAPIURL        = "IPFS_API_URL"
	EnvPort              = "PORT"
	EnvAPIKey            = "HAKICHAIN_API_KEY"
	EnvLogLevel          = "HAKICHAIN_LOG_LEVEL"
	EnvSOCKSProxy        = "HAKICHAIN_SOCKS_PROXY"
)

// DefaultConfig returns the configuration used when nothing else is set.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Chain: ChainConfig{
			ChainID:            84532, // Base Sepolia
			BlockConfirmations: 2,
			GasLimitMultiplier: 1.2,
			MaxGasPriceGwei:    100,
		},
		Wallet: WalletConfig{
			KeystoreDir: filepath.Join(homeDir, ".hakichain", "keystore"),
		},
		Proof: ProofConfig{
			TimeoutSecs: 30,
			DAG:         DAGProofAPI{BaseURL: "https://constellation.example.com"},
			ICP:         ICPAPI{BaseURL: "https://icp-api.example.com"},
			Story:       StoryAPI{BaseURL: "https://api.storyprotocol.net"},
		},
		DAG: DAGConfig{
			BlockExplorerURL: "https://be-integrationnet.constellationnetwork.io",
			AnchorAmount:     0.0001,
			PageLimit:        100,
		},
		IPFS: IPFSConfig{
			APIURL: "localhost:5001",
		},
		API: APIConfig{
			Host:                "0.0.0.0",
			Port:                8080,
			RateLimitRequests:   100,
			RateLimitWindowSecs: 60,
			MaxRequestSize:      1 << 20,
			ReadTimeoutSecs:     30,
			WriteTimeoutSecs:    30,
			IdleTimeoutSecs:     120,
			EnableEvents:        true,
		},
	}
}

// Load reads the YAML file at path (a missing file means defaults), loads an
// optional .env from the working directory, applies environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	path = expandPath(path)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	cfg.Wallet.KeystoreDir = expandPath(cfg.Wallet.KeystoreDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables on top of c. lookup is normally
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		EnvRegistryAddress:   &c.Chain.RegistryAddress,
		EnvEscrowAddress:     &c.Chain.EscrowAddress,
		EnvTokenAddress:      &c.Chain.TokenAddress,
		EnvPublicRPCURL:      &c.Chain.RPCURL,
		EnvWSURL:             &c.Chain.WSURL,
		EnvWalletPassword:    &c.Wallet.Password,
		EnvWalletAddress:     &c.Wallet.Address,
		EnvDAGAPIURL:         &c.Proof.DAG.BaseURL,
		EnvDAGAPIKey:         &c.Proof.DAG.APIKey,
		EnvICPAPIURL:         &c.Proof.ICP.BaseURL,
		EnvICPAgentID:        &c.Proof.ICP.AgentID,
		EnvICPAuthToken:      &c.Proof.ICP.AuthToken,
		EnvStoryAPIURL:       &c.Proof.Story.BaseURL,
		EnvStoryAPIKey:       &c.Proof.Story.APIKey,
		EnvDAGExplorerURL:    &c.DAG.BlockExplorerURL,
		EnvDAGAddress:        &c.DAG.Address,
		EnvDAGGatewayURL:     &c.DAG.GatewayURL,
		EnvAnchorDestination: &c.DAG.AnchorDestination,
		EnvIPFSAPIURL:        &c.IPFS.APIURL,
		EnvAPIKey:            &c.API.APIKey,
		EnvLogLevel:          &c.Log.Level,
		EnvSOCKSProxy:        &c.SOCKSProxy,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok && v != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup(EnvChainID); ok && v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvChainID, err)
		}
		c.Chain.ChainID = id
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.API.Port = port
	}
	if v, ok := lookup(EnvMock); ok && v != "" {
		mock, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMock, err)
		}
		c.Chain.Mock = mock
	}
	return nil
}

// Save writes the config as YAML. Secrets are never written.
func (c *Config) Save(path string) error {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks values that are wrong no matter which command runs.
// Missing contract addresses are reported later, by the call that needs them.
func (c *Config) Validate() error {
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.API.Port)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}
	if c.Chain.ChainID <= 0 {
		return fmt.Errorf("invalid chain_id: %d", c.Chain.ChainID)
	}
	if c.Chain.GasLimitMultiplier < 1 {
		return fmt.Errorf("gas_limit_multiplier must be at least 1, got %v", c.Chain.GasLimitMultiplier)
	}
	if c.DAG.PageLimit < 1 || c.DAG.PageLimit > 1000 {
		return fmt.Errorf("dag page_limit must be between 1 and 1000, got %d", c.DAG.PageLimit)
	}
	if c.Proof.TimeoutSecs < 0 {
		return fmt.Errorf("proof timeout_secs must not be negative")
	}
	if port, ok := localIPFSPort(c.IPFS.APIURL); ok && port == strconv.Itoa(c.API.Port) {
		return fmt.Errorf("ipfs api_url %q uses the API server port %d", c.IPFS.APIURL, c.API.Port)
	}
	if c.SOCKSProxy != "" {
		if _, _, err := net.SplitHostPort(c.SOCKSProxy); err != nil {
			return fmt.Errorf("invalid socks_proxy %q: %w", c.SOCKSProxy, err)
		}
	}

	if !c.Chain.Mock {
		addrs := map[string]string{
			"registry_address": c.Chain.RegistryAddress,
			"escrow_address":   c.Chain.EscrowAddress,
			"token_address":    c.Chain.TokenAddress,
			"wallet.address":   c.Wallet.Address,
		}
		for name, addr := range addrs {
			if addr == "" {
				continue
			}
			if err := validateEthAddress(name, addr); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateEthAddress checks that an Ethereum address is 0x-prefixed, 40 hex chars, and non-zero.
func validateEthAddress(name, addr string) error {
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return fmt.Errorf("%s must start with 0x, got %q", name, addr)
	}
	hexPart := addr[2:]
	if len(hexPart) != 40 {
		return fmt.Errorf("%s must be 42 characters (0x + 40 hex), got %d", name, len(addr))
	}
	if _, err := hex.DecodeString(hexPart); err != nil {
		return fmt.Errorf("%s contains invalid hex characters: %w", name, err)
	}
	if strings.Trim(hexPart, "0") == "" {
		return fmt.Errorf("%s must not be the zero address", name)
	}
	return nil
}

// localIPFSPort returns the port of an IPFS API address on this host, given as
// host:port or as a multiaddr like /ip4/127.0.0.1/tcp/5001.
func localIPFSPort(addr string) (string, bool) {
	host, port := "", ""
	if strings.HasPrefix(addr, "/") {
		parts := strings.Split(addr, "/")
		for i := 1; i+1 < len(parts); i += 2 {
			switch parts[i] {
			case "ip4", "ip6", "dns", "dns4", "dns6":
				host = parts[i+1]
			case "tcp":
				port = parts[i+1]
			}
		}
	} else {
		var err error
		if host, port, err = net.SplitHostPort(addr); err != nil {
			return "", false
		}
	}
	if port == "" {
		return "", false
	}
	switch host {
	case "", "localhost", "127.0.0.1", "::1", "0.0.0.0":
		return port, true
	}
	return "", false
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// DefaultConfigPath returns ~/.hakichain/config.yaml
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".hakichain", "config.yaml")
}
