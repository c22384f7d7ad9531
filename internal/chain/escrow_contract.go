package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/hakichain/hakichain/internal/logging"
)

// EscrowContract provides access to the BountyEscrow contract, which holds
// native currency per bounty until the owner releases it against an anchored
// DAG proof or it is refunded to the funder.
type EscrowContract struct {
	bound    *boundContract
	mockMode bool
	sender   common.Address
	mock     *escrowState
}

type escrowState struct {
	mu      sync.RWMutex
	owner   common.Address
	escrows map[string]*Escrow
	// held is the contract's native balance; flows are net per-address
	// balance changes since the simulation started.
	held  *big.Int
	flows map[common.Address]*big.Int
	emit  func(ContractEvent)
}

// NewEscrowContract binds the escrow deployed at address.
func NewEscrowContract(ctx context.Context, baseClient *BaseClient, address common.Address) (*EscrowContract, error) {
	bound, err := newBoundContract(ctx, baseClient, address, escrowABI)
	if err != nil {
		return nil, err
	}
	return &EscrowContract{bound: bound, sender: baseClient.Address()}, nil
}

// NewMockEscrowContract creates an in-memory escrow owned by owner. Calls are
// made as owner until WithSender is used.
func NewMockEscrowContract(owner common.Address) *EscrowContract {
	return &EscrowContract{
		mockMode: true,
		sender:   owner,
		mock: &escrowState{
			owner:   owner,
			escrows: make(map[string]*Escrow),
			held:    big.NewInt(0),
			flows:   make(map[common.Address]*big.Int),
		},
	}
}

// WithSender returns a mock view sending from another address.
func (ec *EscrowContract) WithSender(sender common.Address) *EscrowContract {
	if !ec.mockMode {
		return ec
	}
	view := *ec
	view.sender = sender
	return &view
}

func (ec *EscrowContract) IsMockMode() bool {
	return ec.mockMode
}

// CreateEscrow funds the escrow for bountyID with amount wei for beneficiary.
func (ec *EscrowContract) CreateEscrow(ctx context.Context, bountyID *big.Int, beneficiary common.Address, amount *big.Int) (*types.Transaction, error) {
	if ec.mockMode {
		return ec.mockCreateEscrow(bountyID, beneficiary, amount)
	}

	tx, err := ec.bound.transact(ctx, amount, "createEscrow", bountyID, beneficiary)
	if err != nil {
		return nil, fmt.Errorf("failed to create escrow: %w", err)
	}
	return tx, nil
}

func (ec *EscrowContract) mockCreateEscrow(bountyID *big.Int, beneficiary common.Address, amount *big.Int) (*types.Transaction, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("failed to create escrow: %w", ErrZeroValue)
	}
	if beneficiary == (common.Address{}) {
		return nil, fmt.Errorf("failed to create escrow: %w", ErrZeroBeneficiary)
	}

	s := ec.mock
	s.mu.Lock()
	defer s.mu.Unlock()

	key := bigKey(bountyID)
	if _, exists := s.escrows[key]; exists {
		return nil, fmt.Errorf("failed to create escrow: %w", ErrEscrowExists)
	}

	s.escrows[key] = &Escrow{
		Funder:      ec.sender,
		Beneficiary: beneficiary,
		Amount:      copyInt(amount),
		CreatedAt:   nowUnix(),
		FinalizedAt: big.NewInt(0),
	}
	s.held.Add(s.held, amount)
	s.addFlow(ec.sender, new(big.Int).Neg(amount))

	s.publish("EscrowCreated", bountyID, map[string]interface{}{
		"funder":      ec.sender,
		"beneficiary": beneficiary,
		"amount":      copyInt(amount),
	})
	logging.Info("escrow created", logging.Component("escrow"), logging.BountyID(bountyID),
		"amount", amount.String(), "beneficiary", beneficiary.Hex())
	return nil, nil
}

// AnchorDagProof records the DAG proof hash that unlocks release. Owner only.
func (ec *EscrowContract) AnchorDagProof(ctx context.Context, bountyID *big.Int, dagProofHash string) (*types.Transaction, error) {
	if ec.mockMode {
		return ec.mockAnchorDagProof(bountyID, dagProofHash)
	}

	tx, err := ec.bound.transact(ctx, nil, "anchorDagProof", bountyID, dagProofHash)
	if err != nil {
		return nil, fmt.Errorf("failed to anchor dag proof: %w", err)
	}
	return tx, nil
}

func (ec *EscrowContract) mockAnchorDagProof(bountyID *big.Int, dagProofHash string) (*types.Transaction, error) {
	s := ec.mock
	s.mu.Lock()
	defer s.mu.Unlock()

	if ec.sender != s.owner {
		return nil, fmt.Errorf("failed to anchor dag proof: %w", ErrNotOwner)
	}
	e, err := s.open(bountyID)
	if err != nil {
		return nil, fmt.Errorf("failed to anchor dag proof: %w", err)
	}
	e.DagProofHash = dagProofHash

	s.publish("DagProofAnchored", bountyID, map[string]interface{}{"dagProofHash": dagProofHash})
	logging.Info("dag proof anchored", logging.Component("escrow"), logging.BountyID(bountyID), "dag_proof_hash", dagProofHash)
	return nil, nil
}

// Release pays the full amount to the beneficiary. Owner only, after anchoring.
func (ec *EscrowContract) Release(ctx context.Context, bountyID *big.Int) (*types.Transaction, error) {
	if ec.mockMode {
		return ec.mockRelease(bountyID)
	}

	tx, err := ec.bound.transact(ctx, nil, "release", bountyID)
	if err != nil {
		return nil, fmt.Errorf("failed to release escrow: %w", err)
	}
	return tx, nil
}

func (ec *EscrowContract) mockRelease(bountyID *big.Int) (*types.Transaction, error) {
	s := ec.mock
	s.mu.Lock()
	defer s.mu.Unlock()

	if ec.sender != s.owner {
		return nil, fmt.Errorf("failed to release escrow: %w", ErrNotOwner)
	}
	e, err := s.open(bountyID)
	if err != nil {
		return nil, fmt.Errorf("failed to release escrow: %w", err)
	}
	if e.DagProofHash == "" {
		return nil, fmt.Errorf("failed to release escrow: %w", ErrProofNotAnchored)
	}

	e.Released = true
	e.FinalizedAt = nowUnix()
	s.held.Sub(s.held, e.Amount)
	s.addFlow(e.Beneficiary, e.Amount)

	s.publish("EscrowReleased", bountyID, map[string]interface{}{
		"beneficiary": e.Beneficiary,
		"amount":      copyInt(e.Amount),
	})
	logging.Info("escrow released", logging.Component("escrow"), logging.BountyID(bountyID), "amount", e.Amount.String())
	return nil, nil
}

// Refund returns the full amount to the funder. Owner or funder only.
func (ec *EscrowContract) Refund(ctx context.Context, bountyID *big.Int) (*types.Transaction, error) {
	if ec.mockMode {
		return ec.mockRefund(bountyID)
	}

	tx, err := ec.bound.transact(ctx, nil, "refund", bountyID)
	if err != nil {
		return nil, fmt.Errorf("failed to refund escrow: %w", err)
	}
	return tx, nil
}

func (ec *EscrowContract) mockRefund(bountyID *big.Int) (*types.Transaction, error) {
	s := ec.mock
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.open(bountyID)
	if err != nil {
		return nil, fmt.Errorf("failed to refund escrow: %w", err)
	}
	if ec.sender != s.owner && ec.sender != e.Funder {
		return nil, fmt.Errorf("failed to refund escrow: %w", ErrNotAuthorized)
	}

	e.Refunded = true
	e.FinalizedAt = nowUnix()
	s.held.Sub(s.held, e.Amount)
	s.addFlow(e.Funder, e.Amount)

	s.publish("EscrowRefunded", bountyID, map[string]interface{}{
		"funder": e.Funder,
		"amount": copyInt(e.Amount),
	})
	logging.Info("escrow refunded", logging.Component("escrow"), logging.BountyID(bountyID), "amount", e.Amount.String())
	return nil, nil
}

// GetEscrow reads the escrow for bountyID. Unknown ids return a zero record.
func (ec *EscrowContract) GetEscrow(ctx context.Context, bountyID *big.Int) (*Escrow, error) {
	if ec.mockMode {
		ec.mock.mu.RLock()
		defer ec.mock.mu.RUnlock()

		e, ok := ec.mock.escrows[bigKey(bountyID)]
		if !ok {
			return &Escrow{Amount: big.NewInt(0), CreatedAt: big.NewInt(0), FinalizedAt: big.NewInt(0)}, nil
		}
		copied := *e
		copied.Amount = copyInt(e.Amount)
		copied.CreatedAt = copyInt(e.CreatedAt)
		copied.FinalizedAt = copyInt(e.FinalizedAt)
		return &copied, nil
	}

	out, err := ec.bound.call(ctx, "getEscrow", bountyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get escrow: %w", err)
	}
	return abi.ConvertType(out, new(Escrow)).(*Escrow), nil
}

// MockHeldBalance returns the native balance the mock escrow holds.
func (ec *EscrowContract) MockHeldBalance() *big.Int {
	if !ec.mockMode {
		return nil
	}
	ec.mock.mu.RLock()
	defer ec.mock.mu.RUnlock()
	return copyInt(ec.mock.held)
}

// MockBalanceChange returns the net native balance change of addr caused by
// the mock escrow.
func (ec *EscrowContract) MockBalanceChange(addr common.Address) *big.Int {
	if !ec.mockMode {
		return nil
	}
	ec.mock.mu.RLock()
	defer ec.mock.mu.RUnlock()
	return copyInt(ec.mock.flows[addr])
}

// open returns a funded, unfinalized escrow. Callers hold s.mu.
func (s *escrowState) open(bountyID *big.Int) (*Escrow, error) {
	e, ok := s.escrows[bigKey(bountyID)]
	if !ok {
		return nil, ErrEscrowNotFound
	}
	if e.IsFinal() {
		return nil, ErrEscrowFinalized
	}
	return e, nil
}

func (s *escrowState) addFlow(addr common.Address, delta *big.Int) {
	cur, ok := s.flows[addr]
	if !ok {
		cur = big.NewInt(0)
		s.flows[addr] = cur
	}
	cur.Add(cur, delta)
}

func (s *escrowState) publish(name string, bountyID *big.Int, fields map[string]interface{}) {
	if s.emit == nil {
		return
	}
	fields["bountyId"] = copyInt(bountyID)
	s.emit(newMockEvent(ContractEscrow, name, bountyID, fields))
}
