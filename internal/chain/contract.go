package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// boundContract is the real-mode plumbing shared by the three contract types.
type boundContract struct {
	baseClient *BaseClient
	address    common.Address
	abi        abi.ABI
	contract   *bind.BoundContract
}

func newBoundContract(ctx context.Context, baseClient *BaseClient, address common.Address, parsed abi.ABI) (*boundContract, error) {
	if baseClient == nil {
		return nil, fmt.Errorf("base client is required")
	}
	client, err := baseClient.Provider(ctx)
	if err != nil {
		return nil, err
	}
	return &boundContract{
		baseClient: baseClient,
		address:    address,
		abi:        parsed,
		contract:   bind.NewBoundContract(address, parsed, client, client, client),
	}, nil
}

// call runs a view method and returns its single output.
func (b *boundContract) call(ctx context.Context, method string, args ...interface{}) (interface{}, error) {
	var out []interface{}
	if err := b.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return out[0], nil
}

// transact signs and submits method with value wei attached. The gas limit is
// estimated up front so a revert surfaces here with its reason.
func (b *boundContract) transact(ctx context.Context, value *big.Int, method string, args ...interface{}) (*types.Transaction, error) {
	auth, err := b.baseClient.GetTransactOpts(ctx)
	if err != nil {
		return nil, err
	}
	auth.Value = value

	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}
	gas, err := b.baseClient.EstimateGas(ctx, ethereum.CallMsg{
		From:     auth.From,
		To:       &b.address,
		GasPrice: auth.GasPrice,
		Value:    value,
		Data:     data,
	})
	if err != nil {
		return nil, err
	}
	auth.GasLimit = gas

	return b.contract.Transact(auth, method, args...)
}

// nowUnix is the block timestamp stand-in for mock contracts.
var nowUnix = func() *big.Int {
	return big.NewInt(time.Now().Unix())
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func bigKey(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
