package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/hakichain/hakichain/internal/config"
	"github.com/hakichain/hakichain/internal/logging"
)

// Addresses holds the configured contract addresses as raw strings so that a
// missing one is reported when it is needed, not at startup.
type Addresses struct {
	Registry string
	Escrow   string
	Token    string
}

// Client is the entry point for every contract operation. Mutating calls
// return the pending transaction without waiting; in mock mode they return a
// nil transaction once the in-memory contract has applied the change.
type Client struct {
	base      *BaseClient
	addresses Addresses

	mockMode bool
	registry *RegistryContract
	escrow   *EscrowContract
	token    *TokenContract
	feed     chan ContractEvent
}

// NewClient creates a client for deployed contracts.
func NewClient(base *BaseClient, addresses Addresses) *Client {
	return &Client{base: base, addresses: addresses}
}

// NewMockClient creates a client backed by in-memory contracts. operator is
// the sender of every call, the escrow owner and the token admin.
func NewMockClient(operator common.Address) *Client {
	c := &Client{
		mockMode: true,
		registry: NewMockRegistryContract(operator),
		escrow:   NewMockEscrowContract(operator),
		token:    NewMockTokenContract(operator),
		feed:     make(chan ContractEvent, eventChannelBuffer),
	}
	emit := func(ev ContractEvent) {
		select {
		case c.feed <- ev:
		default:
		}
	}
	c.registry.mock.emit = emit
	c.escrow.mock.emit = emit
	c.token.mock.emit = emit
	return c
}

// NewFromConfig builds a Client from configuration. key may be nil for a
// read-only client.
func NewFromConfig(cfg config.ChainConfig, key *ecdsa.PrivateKey) *Client {
	if cfg.Mock {
		operator := common.Address{}
		if key != nil {
			operator = NewBaseClient(nil, key).Address()
		}
		logging.Info("chain client in mock mode", logging.Component("chain"), "operator", operator.Hex())
		return NewMockClient(operator)
	}

	base := DefaultBaseClientConfig()
	base.RPCURL = cfg.RPCURL
	base.WSEndpoint = cfg.WSURL
	base.ChainID = cfg.ChainID
	base.BlockConfirmations = cfg.BlockConfirmations
	if cfg.GasLimitMultiplier > 0 {
		base.GasLimitMultiplier = cfg.GasLimitMultiplier
	}
	if cfg.MaxGasPriceGwei > 0 {
		base.MaxGasPrice = new(big.Int).Mul(big.NewInt(cfg.MaxGasPriceGwei), big.NewInt(1e9))
	}

	return NewClient(NewBaseClient(base, key), Addresses{
		Registry: cfg.RegistryAddress,
		Escrow:   cfg.EscrowAddress,
		Token:    cfg.TokenAddress,
	})
}

func (c *Client) IsMockMode() bool {
	return c.mockMode
}

// Base returns the underlying BaseClient, nil in mock mode.
func (c *Client) Base() *BaseClient {
	return c.base
}

// Events returns simulated contract events in mock mode and nil otherwise;
// use an EventWatcher for deployed contracts.
func (c *Client) Events() <-chan ContractEvent {
	if !c.mockMode {
		return nil
	}
	return c.feed
}

// Close releases RPC connections.
func (c *Client) Close() {
	if c.base != nil {
		c.base.Close()
	}
}

// GetProvider returns the read connection: the wallet's RPC connection when a
// wallet is loaded, otherwise the public fallback RPC. Mock mode has none.
func (c *Client) GetProvider(ctx context.Context) (*ethclient.Client, error) {
	if c.mockMode {
		return nil, nil
	}
	return c.base.Provider(ctx)
}

// GetSigner returns transact options for the wallet. Read-only clients fail
// with ErrNoSigner.
func (c *Client) GetSigner(ctx context.Context) (*bind.TransactOpts, error) {
	if c.mockMode {
		return &bind.TransactOpts{From: c.registry.sender, Context: ctx}, nil
	}
	return c.base.GetTransactOpts(ctx)
}

// SignerAddress returns the address transactions are sent from.
func (c *Client) SignerAddress() common.Address {
	if c.mockMode {
		return c.registry.sender
	}
	return c.base.Address()
}

// ResolveAddress parses a configured contract address. Empty values fail with
// *MissingAddressError naming envVar.
func ResolveAddress(value, envVar string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return common.Address{}, &MissingAddressError{EnvVar: envVar}
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid contract address for %s: %q", envVar, value)
	}
	return common.HexToAddress(value), nil
}

// Registry binds the BountyRegistry. forWrite additionally requires a signer.
func (c *Client) Registry(ctx context.Context, forWrite bool) (*RegistryContract, error) {
	if c.mockMode {
		return c.registry, nil
	}
	addr, err := c.prepare(c.addresses.Registry, config.EnvRegistryAddress, forWrite)
	if err != nil {
		return nil, err
	}
	return NewRegistryContract(ctx, c.base, addr)
}

// Escrow binds the BountyEscrow.
func (c *Client) Escrow(ctx context.Context, forWrite bool) (*EscrowContract, error) {
	if c.mockMode {
		return c.escrow, nil
	}
	addr, err := c.prepare(c.addresses.Escrow, config.EnvEscrowAddress, forWrite)
	if err != nil {
		return nil, err
	}
	return NewEscrowContract(ctx, c.base, addr)
}

// Token binds the HakiToken.
func (c *Client) Token(ctx context.Context, forWrite bool) (*TokenContract, error) {
	if c.mockMode {
		return c.token, nil
	}
	addr, err := c.prepare(c.addresses.Token, config.EnvTokenAddress, forWrite)
	if err != nil {
		return nil, err
	}
	return NewTokenContract(ctx, c.base, addr)
}

// prepare runs the checks that need no network: address first, then signer.
func (c *Client) prepare(value, envVar string, forWrite bool) (common.Address, error) {
	addr, err := ResolveAddress(value, envVar)
	if err != nil {
		return common.Address{}, err
	}
	if forWrite && !c.base.HasSigner() {
		return common.Address{}, ErrNoSigner
	}
	return addr, nil
}

func (c *Client) UpsertBounty(ctx context.Context, bountyID *big.Int, metadataURI string, active bool) (*types.Transaction, error) {
	registry, err := c.Registry(ctx, true)
	if err != nil {
		return nil, err
	}
	return registry.UpsertBounty(ctx, bountyID, metadataURI, active)
}

func (c *Client) LinkBountyProofs(ctx context.Context, bountyID *big.Int, proofs ProofIDs) (*types.Transaction, error) {
	registry, err := c.Registry(ctx, true)
	if err != nil {
		return nil, err
	}
	return registry.LinkBountyProofs(ctx, bountyID, proofs)
}

func (c *Client) RegisterSubmission(ctx context.Context, bountyID *big.Int, docID string, proofs ProofIDs) (*types.Transaction, error) {
	registry, err := c.Registry(ctx, true)
	if err != nil {
		return nil, err
	}
	return registry.RegisterSubmission(ctx, bountyID, docID, proofs)
}

func (c *Client) GetBounty(ctx context.Context, bountyID *big.Int) (*Bounty, error) {
	registry, err := c.Registry(ctx, false)
	if err != nil {
		return nil, err
	}
	return registry.GetBounty(ctx, bountyID)
}

// GetBountySubmissions reads getSubmissionCount, then each submission in order.
func (c *Client) GetBountySubmissions(ctx context.Context, bountyID *big.Int) ([]Submission, error) {
	registry, err := c.Registry(ctx, false)
	if err != nil {
		return nil, err
	}
	return registry.GetSubmissions(ctx, bountyID)
}

// CreateEscrow funds an escrow with amountWei attached as the call value.
func (c *Client) CreateEscrow(ctx context.Context, bountyID *big.Int, beneficiary common.Address, amountWei *big.Int) (*types.Transaction, error) {
	escrow, err := c.Escrow(ctx, true)
	if err != nil {
		return nil, err
	}
	return escrow.CreateEscrow(ctx, bountyID, beneficiary, amountWei)
}

func (c *Client) AnchorDagProof(ctx context.Context, bountyID *big.Int, dagProofHash string) (*types.Transaction, error) {
	escrow, err := c.Escrow(ctx, true)
	if err != nil {
		return nil, err
	}
	return escrow.AnchorDagProof(ctx, bountyID, dagProofHash)
}

func (c *Client) ReleaseEscrow(ctx context.Context, bountyID *big.Int) (*types.Transaction, error) {
	escrow, err := c.Escrow(ctx, true)
	if err != nil {
		return nil, err
	}
	return escrow.Release(ctx, bountyID)
}

func (c *Client) RefundEscrow(ctx context.Context, bountyID *big.Int) (*types.Transaction, error) {
	escrow, err := c.Escrow(ctx, true)
	if err != nil {
		return nil, err
	}
	return escrow.Refund(ctx, bountyID)
}

func (c *Client) GetEscrow(ctx context.Context, bountyID *big.Int) (*Escrow, error) {
	escrow, err := c.Escrow(ctx, false)
	if err != nil {
		return nil, err
	}
	return escrow.GetEscrow(ctx, bountyID)
}

func (c *Client) MintHakiTokenWithProvenance(ctx context.Context, req MintRequest) (*types.Transaction, error) {
	token, err := c.Token(ctx, true)
	if err != nil {
		return nil, err
	}
	return token.MintWithProvenance(ctx, req)
}

func (c *Client) GetProvenance(ctx context.Context, workflowID common.Hash) (*Provenance, error) {
	token, err := c.Token(ctx, false)
	if err != nil {
		return nil, err
	}
	return token.ProvenanceByWorkflow(ctx, workflowID)
}

func (c *Client) GrantMinterRole(ctx context.Context, account common.Address) (*types.Transaction, error) {
	token, err := c.Token(ctx, true)
	if err != nil {
		return nil, err
	}
	return token.GrantMinterRole(ctx, account)
}

func (c *Client) RevokeMinterRole(ctx context.Context, account common.Address) (*types.Transaction, error) {
	token, err := c.Token(ctx, true)
	if err != nil {
		return nil, err
	}
	return token.RevokeMinterRole(ctx, account)
}

// IsMinter reports whether account holds the contract's MINTER_ROLE.
func (c *Client) IsMinter(ctx context.Context, account common.Address) (bool, error) {
	token, err := c.Token(ctx, false)
	if err != nil {
		return false, err
	}
	role, err := token.MinterRole(ctx)
	if err != nil {
		return false, err
	}
	return token.HasRole(ctx, role, account)
}

func (c *Client) TokenBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	token, err := c.Token(ctx, false)
	if err != nil {
		return nil, err
	}
	return token.BalanceOf(ctx, account)
}

// WaitForTransaction waits for tx to be mined and confirmed. A nil tx (mock
// mode) returns immediately.
func (c *Client) WaitForTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if tx == nil || c.mockMode {
		return nil, nil
	}
	return c.base.WaitForTransaction(ctx, tx)
}
