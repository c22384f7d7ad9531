package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/hakichain/hakichain/internal/logging"
	"github.com/hakichain/hakichain/internal/util"
)

// BaseClientConfig holds the EVM endpoint settings.
type BaseClientConfig struct {
	RPCURL             string
	WSEndpoint         string
	ChainID            int64
	BlockConfirmations uint64
	GasLimitMultiplier float64
	MaxGasPrice        *big.Int
	RetryConfig        *util.RetryConfig
}

// DefaultBaseClientConfig targets Base Sepolia with no RPC URL; callers must
// supply one.
func DefaultBaseClientConfig() *BaseClientConfig {
	return &BaseClientConfig{
		ChainID:            84532,
		BlockConfirmations: 2,
		GasLimitMultiplier: 1.2,
		MaxGasPrice:        big.NewInt(100e9),
		RetryConfig:        util.DefaultRetryConfig(),
	}
}

// BaseClient owns the JSON-RPC connection and, when a wallet is configured,
// the signing key. Without a key it is a read-only provider.
type BaseClient struct {
	config     *BaseClientConfig
	client     *ethclient.Client
	wsClient   *ethclient.Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int

	connected bool
	mu        sync.RWMutex
}

// NewBaseClient creates a client. privateKey may be nil.
func NewBaseClient(config *BaseClientConfig, privateKey *ecdsa.PrivateKey) *BaseClient {
	if config == nil {
		config = DefaultBaseClientConfig()
	}
	if config.GasLimitMultiplier < 1 {
		config.GasLimitMultiplier = 1
	}

	bc := &BaseClient{
		config:     config,
		privateKey: privateKey,
		chainID:    big.NewInt(config.ChainID),
	}
	if privateKey != nil {
		bc.address = crypto.PubkeyToAddress(privateKey.PublicKey)
	}
	return bc
}

// Connect dials the RPC endpoint (with retry) and checks the chain id. The
// WebSocket endpoint is optional.
func (bc *BaseClient) Connect(ctx context.Context) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.connectLocked(ctx)
}

func (bc *BaseClient) connectLocked(ctx context.Context) error {
	if bc.connected {
		return nil
	}
	if bc.config.RPCURL == "" {
		return ErrNoProvider
	}

	client, result := util.RetryWithValue(ctx, bc.config.RetryConfig, func() (*ethclient.Client, error) {
		c, err := ethclient.DialContext(ctx, bc.config.RPCURL)
		if err != nil {
			return nil, err
		}
		id, err := c.ChainID(ctx)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to get chain ID: %w", err)
		}
		if id.Cmp(bc.chainID) != 0 {
			c.Close()
			return nil, util.Permanent(fmt.Errorf("chain ID mismatch: expected %d, got %d", bc.chainID, id))
		}
		return c, nil
	})
	if result.LastError != nil {
		return fmt.Errorf("failed to connect to RPC %s: %w", bc.config.RPCURL, result.LastError)
	}
	bc.client = client

	if bc.config.WSEndpoint != "" {
		ws, err := ethclient.DialContext(ctx, bc.config.WSEndpoint)
		if err != nil {
			logging.Warn("websocket endpoint unavailable, event subscriptions disabled",
				logging.Component("chain"), logging.Err(err))
		} else {
			bc.wsClient = ws
		}
	}

	bc.connected = true
	logging.Info("connected to chain",
		logging.Component("chain"),
		"chain_id", bc.chainID.String(),
		"signer", bc.HasSigner(),
		"attempts", result.Attempts)
	return nil
}

// ReconnectWS redials the WebSocket endpoint after a dropped subscription.
func (bc *BaseClient) ReconnectWS(ctx context.Context) error {
	if bc.config.WSEndpoint == "" {
		return fmt.Errorf("no websocket endpoint configured")
	}

	ws, err := ethclient.DialContext(ctx, bc.config.WSEndpoint)
	if err != nil {
		return fmt.Errorf("failed to dial websocket: %w", err)
	}

	bc.mu.Lock()
	if bc.wsClient != nil {
		bc.wsClient.Close()
	}
	bc.wsClient = ws
	bc.mu.Unlock()
	return nil
}

func (bc *BaseClient) Close() {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if bc.client != nil {
		bc.client.Close()
		bc.client = nil
	}
	if bc.wsClient != nil {
		bc.wsClient.Close()
		bc.wsClient = nil
	}
	bc.connected = false
}

func (bc *BaseClient) IsConnected() bool {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.connected
}

// HasSigner reports whether a wallet key is loaded.
func (bc *BaseClient) HasSigner() bool {
	return bc.privateKey != nil
}

func (bc *BaseClient) HasWSConfig() bool {
	return bc.config.WSEndpoint != ""
}

// Provider returns a connected RPC client, dialing on first use.
func (bc *BaseClient) Provider(ctx context.Context) (*ethclient.Client, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if err := bc.connectLocked(ctx); err != nil {
		return nil, err
	}
	return bc.client, nil
}

// Client returns the RPC client or nil before Connect.
func (bc *BaseClient) Client() *ethclient.Client {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.client
}

func (bc *BaseClient) WSClient() *ethclient.Client {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.wsClient
}

// Address returns the signer address, zero in read-only mode.
func (bc *BaseClient) Address() common.Address {
	return bc.address
}

func (bc *BaseClient) ChainID() *big.Int {
	return bc.chainID
}

// GetTransactOpts returns signing options bound to the wallet key. It fails
// with ErrNoSigner before touching the network when no key is loaded.
func (bc *BaseClient) GetTransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if bc.privateKey == nil {
		return nil, ErrNoSigner
	}

	client, err := bc.Provider(ctx)
	if err != nil {
		return nil, err
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	if bc.config.MaxGasPrice != nil && gasPrice.Cmp(bc.config.MaxGasPrice) > 0 {
		gasPrice = new(big.Int).Set(bc.config.MaxGasPrice)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(bc.privateKey, bc.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	auth.Context = ctx
	auth.GasPrice = gasPrice
	return auth, nil
}

// EstimateGas estimates msg and applies GasLimitMultiplier.
func (bc *BaseClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	client, err := bc.Provider(ctx)
	if err != nil {
		return 0, err
	}

	gas, err := client.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return uint64(float64(gas) * bc.config.GasLimitMultiplier), nil
}

// WaitForTransaction blocks until tx is mined and BlockConfirmations blocks
// have followed it.
func (bc *BaseClient) WaitForTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	client, err := bc.Provider(ctx)
	if err != nil {
		return nil, err
	}

	receipt, err := bind.WaitMined(ctx, client, tx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for transaction: %w", err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, fmt.Errorf("transaction reverted: %s", tx.Hash().Hex())
	}

	if bc.config.BlockConfirmations == 0 {
		return receipt, nil
	}

	target := receipt.BlockNumber.Uint64() + bc.config.BlockConfirmations
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return receipt, ctx.Err()
		case <-ticker.C:
			current, err := client.BlockNumber(ctx)
			if err != nil {
				continue
			}
			if current >= target {
				return receipt, nil
			}
		}
	}
}

// GetBalance returns the native balance of address in wei.
func (bc *BaseClient) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	client, err := bc.Provider(ctx)
	if err != nil {
		return nil, err
	}
	balance, err := client.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

func (bc *BaseClient) GetBlockNumber(ctx context.Context) (uint64, error) {
	client, err := bc.Provider(ctx)
	if err != nil {
		return 0, err
	}
	return client.BlockNumber(ctx)
}
