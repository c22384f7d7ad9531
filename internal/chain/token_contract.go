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

// TokenContract provides access to the HAKI token: role-gated minting that
// logs a provenance record per workflow id.
type TokenContract struct {
	bound    *boundContract
	mockMode bool
	sender   common.Address
	mock     *tokenState
}

type tokenState struct {
	mu          sync.RWMutex
	roles       map[common.Hash]map[common.Address]bool
	balances    map[common.Address]*big.Int
	totalSupply *big.Int
	provenance  map[common.Hash]*Provenance
	emit        func(ContractEvent)
}

// NewTokenContract binds the token deployed at address.
func NewTokenContract(ctx context.Context, baseClient *BaseClient, address common.Address) (*TokenContract, error) {
	bound, err := newBoundContract(ctx, baseClient, address, tokenABI)
	if err != nil {
		return nil, err
	}
	return &TokenContract{bound: bound, sender: baseClient.Address()}, nil
}

// NewMockTokenContract creates an in-memory token whose admin also holds MINTER_ROLE.
func NewMockTokenContract(admin common.Address) *TokenContract {
	return &TokenContract{
		mockMode: true,
		sender:   admin,
		mock: &tokenState{
			roles: map[common.Hash]map[common.Address]bool{
				DefaultAdminRole: {admin: true},
				MinterRole:       {admin: true},
			},
			balances:    make(map[common.Address]*big.Int),
			totalSupply: big.NewInt(0),
			provenance:  make(map[common.Hash]*Provenance),
		},
	}
}

// WithSender returns a mock view sending from another address.
func (tc *TokenContract) WithSender(sender common.Address) *TokenContract {
	if !tc.mockMode {
		return tc
	}
	view := *tc
	view.sender = sender
	return &view
}

func (tc *TokenContract) IsMockMode() bool {
	return tc.mockMode
}

// MintWithProvenance mints req.Amount to req.To and logs the provenance record
// under WorkflowID(req.WorkflowTag, req.Proofs).
func (tc *TokenContract) MintWithProvenance(ctx context.Context, req MintRequest) (*types.Transaction, error) {
	if tc.mockMode {
		return tc.mockMint(req)
	}

	tx, err := tc.bound.transact(ctx, nil, "mintWithProvenance",
		req.To, req.Amount, req.Proofs.StoryAssetID, req.Proofs.IcpCanisterID, req.Proofs.DagProofHash, req.WorkflowTag)
	if err != nil {
		return nil, fmt.Errorf("failed to mint with provenance: %w", err)
	}
	return tx, nil
}

func (tc *TokenContract) mockMint(req MintRequest) (*types.Transaction, error) {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("failed to mint with provenance: %w", ErrZeroAmount)
	}
	workflowID, err := WorkflowID(req.WorkflowTag, req.Proofs)
	if err != nil {
		return nil, err
	}

	s := tc.mock
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.roles[MinterRole][tc.sender] {
		return nil, fmt.Errorf("failed to mint with provenance: %w", ErrNotMinter)
	}
	if _, exists := s.provenance[workflowID]; exists {
		return nil, fmt.Errorf("failed to mint with provenance: %w", ErrProvenanceExists)
	}

	bal, ok := s.balances[req.To]
	if !ok {
		bal = big.NewInt(0)
		s.balances[req.To] = bal
	}
	bal.Add(bal, req.Amount)
	s.totalSupply.Add(s.totalSupply, req.Amount)

	s.provenance[workflowID] = &Provenance{
		StoryAssetId:  req.Proofs.StoryAssetID,
		IcpCanisterId: req.Proofs.IcpCanisterID,
		DagProofHash:  req.Proofs.DagProofHash,
		MintedAmount:  copyInt(req.Amount),
		Timestamp:     nowUnix(),
	}

	if s.emit != nil {
		fields := proofFields(req.Proofs)
		fields["workflowId"] = workflowID.Hex()
		fields["to"] = req.To
		fields["amount"] = copyInt(req.Amount)
		ev := newMockEvent(ContractToken, "ProvenanceLogged", nil, fields)
		ev.WorkflowID = workflowID.Hex()
		s.emit(ev)
	}

	logging.Info("minted with provenance", logging.Component("token"),
		"to", req.To.Hex(), "amount", req.Amount.String(), "workflow_id", workflowID.Hex())
	return nil, nil
}

// ProvenanceByWorkflow reads the record logged for workflowID. Unknown ids
// return a zero record.
func (tc *TokenContract) ProvenanceByWorkflow(ctx context.Context, workflowID common.Hash) (*Provenance, error) {
	if tc.mockMode {
		tc.mock.mu.RLock()
		defer tc.mock.mu.RUnlock()

		p, ok := tc.mock.provenance[workflowID]
		if !ok {
			return &Provenance{MintedAmount: big.NewInt(0), Timestamp: big.NewInt(0)}, nil
		}
		copied := *p
		copied.MintedAmount = copyInt(p.MintedAmount)
		copied.Timestamp = copyInt(p.Timestamp)
		return &copied, nil
	}

	out, err := tc.bound.call(ctx, "provenanceByWorkflow", [32]byte(workflowID))
	if err != nil {
		return nil, fmt.Errorf("failed to get provenance: %w", err)
	}
	return abi.ConvertType(out, new(Provenance)).(*Provenance), nil
}

// GrantMinterRole gives account MINTER_ROLE. Admin only.
func (tc *TokenContract) GrantMinterRole(ctx context.Context, account common.Address) (*types.Transaction, error) {
	if tc.mockMode {
		return tc.mockSetMinter(account, true)
	}

	tx, err := tc.bound.transact(ctx, nil, "grantMinterRole", account)
	if err != nil {
		return nil, fmt.Errorf("failed to grant minter role: %w", err)
	}
	return tx, nil
}

// RevokeMinterRole removes MINTER_ROLE from account. Admin only.
func (tc *TokenContract) RevokeMinterRole(ctx context.Context, account common.Address) (*types.Transaction, error) {
	if tc.mockMode {
		return tc.mockSetMinter(account, false)
	}

	tx, err := tc.bound.transact(ctx, nil, "revokeMinterRole", account)
	if err != nil {
		return nil, fmt.Errorf("failed to revoke minter role: %w", err)
	}
	return tx, nil
}

func (tc *TokenContract) mockSetMinter(account common.Address, grant bool) (*types.Transaction, error) {
	s := tc.mock
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.roles[DefaultAdminRole][tc.sender] {
		return nil, fmt.Errorf("failed to update minter role: %w", ErrNotAdmin)
	}
	if grant {
		s.roles[MinterRole][account] = true
	} else {
		delete(s.roles[MinterRole], account)
	}

	logging.Info("minter role updated", logging.Component("token"), "account", account.Hex(), "granted", grant)
	return nil, nil
}

func (tc *TokenContract) HasRole(ctx context.Context, role common.Hash, account common.Address) (bool, error) {
	if tc.mockMode {
		tc.mock.mu.RLock()
		defer tc.mock.mu.RUnlock()
		return tc.mock.roles[role][account], nil
	}

	out, err := tc.bound.call(ctx, "hasRole", [32]byte(role), account)
	if err != nil {
		return false, fmt.Errorf("failed to check role: %w", err)
	}
	has, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("unexpected hasRole result type %T", out)
	}
	return has, nil
}

// MinterRole reads the MINTER_ROLE constant from the contract.
func (tc *TokenContract) MinterRole(ctx context.Context) (common.Hash, error) {
	if tc.mockMode {
		return MinterRole, nil
	}

	out, err := tc.bound.call(ctx, "MINTER_ROLE")
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to read MINTER_ROLE: %w", err)
	}
	role, ok := out.([32]byte)
	if !ok {
		return common.Hash{}, fmt.Errorf("unexpected MINTER_ROLE type %T", out)
	}
	return common.Hash(role), nil
}

func (tc *TokenContract) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	if tc.mockMode {
		tc.mock.mu.RLock()
		defer tc.mock.mu.RUnlock()
		return copyInt(tc.mock.balances[account]), nil
	}

	out, err := tc.bound.call(ctx, "balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to get token balance: %w", err)
	}
	bal, ok := out.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balance type %T", out)
	}
	return bal, nil
}

func (tc *TokenContract) TotalSupply(ctx context.Context) (*big.Int, error) {
	if tc.mockMode {
		tc.mock.mu.RLock()
		defer tc.mock.mu.RUnlock()
		return copyInt(tc.mock.totalSupply), nil
	}

	out, err := tc.bound.call(ctx, "totalSupply")
	if err != nil {
		return nil, fmt.Errorf("failed to get total supply: %w", err)
	}
	supply, ok := out.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected total supply type %T", out)
	}
	return supply, nil
}
