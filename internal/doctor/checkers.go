package doctor

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/hakichain/hakichain/internal/config"
	"github.com/hakichain/hakichain/internal/identity"
)

const probeTimeout = 10 * time.Second

// ConfigChecker validates the loaded configuration.
type ConfigChecker struct {
	cfg *config.Config
}

func NewConfigChecker(cfg *config.Config) *ConfigChecker {
	return &ConfigChecker{cfg: cfg}
}

func (c *ConfigChecker) Name() string       { return "Configuration" }
func (c *ConfigChecker) Category() Category { return CategoryConfig }

func (c *ConfigChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category(), FixCommand: "hakichain init"}
	if err := c.cfg.Validate(); err != nil {
		result.Status = StatusError
		result.Message = "Configuration: invalid"
		result.Details = err.Error()
		return result
	}
	result.Status = StatusOK
	result.Message = "Configuration: valid"
	if c.cfg.Chain.Mock {
		result.Message += " (mock contracts)"
	}
	return result
}

// WalletChecker reports whether a signing wallet exists and can be unlocked
// without a prompt. A missing wallet is a warning: reads still work.
type WalletChecker struct {
	dir      string
	password func() string
}

func NewWalletChecker(cfg config.WalletConfig) *WalletChecker {
	return &WalletChecker{
		dir:      cfg.KeystoreDir,
		password: func() string { return identity.ResolveWalletPassword(cfg.Password) },
	}
}

func (c *WalletChecker) Name() string       { return "Wallet" }
func (c *WalletChecker) Category() Category { return CategoryWallet }

func (c *WalletChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}

	w, err := identity.LoadWallet(c.dir)
	if err != nil {
		result.Status = StatusError
		result.Message = "Wallet: unable to read keystore"
		result.Details = err.Error()
		return result
	}
	if w == nil {
		result.Status = StatusWarning
		result.Message = "Wallet: not configured (read-only)"
		result.Details = "Signing commands need a wallet"
		result.FixCommand = "hakichain wallet create"
		return result
	}

	addr := w.Address().Hex()
	if c.password() == "" {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Wallet: %s (password not stored)", shortAddress(addr))
		result.Details = fmt.Sprintf("Signing prompts for the password; set %s for unattended use", config.EnvWalletPassword)
		return result
	}

	result.Status = StatusOK
	result.Message = fmt.Sprintf("Wallet: %s", shortAddress(addr))
	return result
}

// ChainReader is the subset of ethclient used by the chain checks.
type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	Close()
}

// DialFunc opens a ChainReader for an RPC URL.
type DialFunc func(ctx context.Context, url string) (ChainReader, error)

func dialEthclient(ctx context.Context, url string) (ChainReader, error) {
	return ethclient.DialContext(ctx, url)
}

// ChainChecker dials the RPC endpoint, compares the chain id and verifies
// that each configured contract address holds code.
type ChainChecker struct {
	cfg  config.ChainConfig
	dial DialFunc
}

func NewChainChecker(cfg config.ChainConfig, dial DialFunc) *ChainChecker {
	if dial == nil {
		dial = dialEthclient
	}
	return &ChainChecker{cfg: cfg, dial: dial}
}

func (c *ChainChecker) Name() string       { return "Chain RPC and contracts" }
func (c *ChainChecker) Category() Category { return CategoryChain }

func (c *ChainChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}

	if c.cfg.Mock {
		result.Status = StatusSkipped
		result.Message = "Chain: mock mode, no RPC used"
		return result
	}
	if c.cfg.RPCURL == "" {
		result.Status = StatusError
		result.Message = "Chain: no RPC URL configured"
		result.FixCommand = "export " + config.EnvPublicRPCURL + "=https://..."
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	client, err := c.dial(ctx, c.cfg.RPCURL)
	if err != nil {
		result.Status = StatusError
		result.Message = "Chain: RPC unreachable"
		result.Details = err.Error()
		return result
	}
	defer client.Close()

	id, err := client.ChainID(ctx)
	if err != nil {
		result.Status = StatusError
		result.Message = "Chain: RPC did not return a chain id"
		result.Details = err.Error()
		return result
	}
	if id.Int64() != c.cfg.ChainID {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Chain: chain id mismatch (expected %d, got %s)", c.cfg.ChainID, id)
		return result
	}

	var missing, empty []string
	for _, contract := range []struct{ name, value, env string }{
		{"BountyRegistry", c.cfg.RegistryAddress, config.EnvRegistryAddress},
		{"BountyEscrow", c.cfg.EscrowAddress, config.EnvEscrowAddress},
		{"HakiToken", c.cfg.TokenAddress, config.EnvTokenAddress},
	} {
		if contract.value == "" {
			missing = append(missing, contract.env)
			continue
		}
		code, err := client.CodeAt(ctx, common.HexToAddress(contract.value), nil)
		if err != nil || len(code) == 0 {
			empty = append(empty, contract.name)
		}
	}

	switch {
	case len(empty) > 0:
		result.Status = StatusError
		result.Message = "Chain: no contract code at " + strings.Join(empty, ", ")
		result.Details = "Check the addresses against the deployment on chain " + id.String()
	case len(missing) > 0:
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Chain: connected to %s, some contracts not configured", id)
		result.Details = "Unset: " + strings.Join(missing, ", ")
	default:
		result.Status = StatusOK
		result.Message = fmt.Sprintf("Chain: connected to %s, 3 contracts deployed", id)
	}
	return result
}

// BalanceReader is implemented by dag.Explorer.
type BalanceReader interface {
	Balance(ctx context.Context) (*big.Float, error)
}

// ExplorerChecker fetches the DAG address balance from the block explorer.
type ExplorerChecker struct {
	explorer BalanceReader
}

func NewExplorerChecker(explorer BalanceReader) *ExplorerChecker {
	return &ExplorerChecker{explorer: explorer}
}

func (c *ExplorerChecker) Name() string       { return "DAG block explorer" }
func (c *ExplorerChecker) Category() Category { return CategoryServices }

func (c *ExplorerChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}
	if c.explorer == nil {
		result.Status = StatusWarning
		result.Message = "DAG explorer: no address configured"
		result.FixCommand = "export " + config.EnvDAGAddress + "=DAG..."
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	bal, err := c.explorer.Balance(ctx)
	if err != nil {
		result.Status = StatusError
		result.Message = "DAG explorer: unreachable"
		result.Details = err.Error()
		return result
	}
	result.Status = StatusOK
	result.Message = fmt.Sprintf("DAG explorer: balance %s DAG", bal.Text('f', -1))
	return result
}

// Pinger is implemented by anchor.IPFSClient.
type Pinger interface {
	IsUp() bool
}

// IPFSChecker verifies the IPFS HTTP API answers.
type IPFSChecker struct {
	api    string
	client Pinger
}

func NewIPFSChecker(api string, client Pinger) *IPFSChecker {
	return &IPFSChecker{api: api, client: client}
}

func (c *IPFSChecker) Name() string       { return "IPFS API" }
func (c *IPFSChecker) Category() Category { return CategoryServices }

func (c *IPFSChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}
	if c.client == nil {
		result.Status = StatusSkipped
		result.Message = "IPFS: not configured, document uploads disabled"
		return result
	}
	if !c.client.IsUp() {
		result.Status = StatusWarning
		result.Message = "IPFS: API not reachable at " + c.api
		result.Details = "Documents are still anchored on the DAG without a CID"
		result.FixCommand = "ipfs daemon"
		return result
	}
	result.Status = StatusOK
	result.Message = "IPFS: API reachable at " + c.api
	return result
}

// ProofCredentialsChecker lists the proof services that will refuse writes
// for lack of a credential.
type ProofCredentialsChecker struct {
	cfg config.ProofConfig
}

func NewProofCredentialsChecker(cfg config.ProofConfig) *ProofCredentialsChecker {
	return &ProofCredentialsChecker{cfg: cfg}
}

func (c *ProofCredentialsChecker) Name() string       { return "Proof service credentials" }
func (c *ProofCredentialsChecker) Category() Category { return CategoryServices }

func (c *ProofCredentialsChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}

	var missing []string
	if c.cfg.DAG.APIKey == "" {
		missing = append(missing, config.EnvDAGAPIKey)
	}
	if c.cfg.ICP.AgentID == "" {
		missing = append(missing, config.EnvICPAgentID)
	}
	if c.cfg.Story.APIKey == "" {
		missing = append(missing, config.EnvStoryAPIKey)
	}

	if len(missing) > 0 {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Proof services: %d of 3 missing credentials", len(missing))
		result.Details = "Unset: " + strings.Join(missing, ", ")
		return result
	}
	result.Status = StatusOK
	result.Message = "Proof services: DAG, ICP and Story credentials set"
	return result
}

func shortAddress(addr string) string {
	if len(addr) > 10 {
		return addr[:6] + "..." + addr[len(addr)-4:]
	}
	return addr
}
