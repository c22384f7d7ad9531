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

// RegistryContract provides access to the BountyRegistry contract: bounty
// metadata, linked proofs and the per-bounty submission list.
type RegistryContract struct {
	bound    *boundContract
	mockMode bool
	sender   common.Address
	mock     *registryState
}

type registryState struct {
	mu          sync.RWMutex
	bounties    map[string]*Bounty
	submissions map[string][]*Submission
	emit        func(ContractEvent)
}

// NewRegistryContract binds the registry deployed at address.
func NewRegistryContract(ctx context.Context, baseClient *BaseClient, address common.Address) (*RegistryContract, error) {
	bound, err := newBoundContract(ctx, baseClient, address, registryABI)
	if err != nil {
		return nil, err
	}
	return &RegistryContract{bound: bound, sender: baseClient.Address()}, nil
}

// NewMockRegistryContract creates an in-memory registry. Calls are made as sender.
func NewMockRegistryContract(sender common.Address) *RegistryContract {
	return &RegistryContract{
		mockMode: true,
		sender:   sender,
		mock: &registryState{
			bounties:    make(map[string]*Bounty),
			submissions: make(map[string][]*Submission),
		},
	}
}

// WithSender returns a view of a mock registry that sends from another
// address. Real contracts always send from the wallet and are returned as is.
func (rc *RegistryContract) WithSender(sender common.Address) *RegistryContract {
	if !rc.mockMode {
		return rc
	}
	view := *rc
	view.sender = sender
	return &view
}

func (rc *RegistryContract) IsMockMode() bool {
	return rc.mockMode
}

// UpsertBounty creates the bounty or overwrites its metadata URI and active flag.
func (rc *RegistryContract) UpsertBounty(ctx context.Context, bountyID *big.Int, metadataURI string, active bool) (*types.Transaction, error) {
	if rc.mockMode {
		return rc.mockUpsertBounty(bountyID, metadataURI, active)
	}

	tx, err := rc.bound.transact(ctx, nil, "upsertBounty", bountyID, metadataURI, active)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert bounty: %w", err)
	}
	return tx, nil
}

func (rc *RegistryContract) mockUpsertBounty(bountyID *big.Int, metadataURI string, active bool) (*types.Transaction, error) {
	s := rc.mock
	s.mu.Lock()
	defer s.mu.Unlock()

	key := bigKey(bountyID)
	if b, exists := s.bounties[key]; exists {
		b.MetadataUri = metadataURI
		b.Active = active
		s.publish("BountyStatusUpdated", bountyID, map[string]interface{}{"active": active})
	} else {
		s.bounties[key] = &Bounty{Creator: rc.sender, MetadataUri: metadataURI, Active: active}
		s.publish("BountyCreated", bountyID, map[string]interface{}{
			"creator":     rc.sender,
			"metadataUri": metadataURI,
		})
	}

	logging.Info("bounty upserted", logging.Component("registry"), logging.BountyID(bountyID), "active", active)
	return nil, nil
}

// LinkBountyProofs records the Story asset, ICP canister and DAG proof for a bounty.
func (rc *RegistryContract) LinkBountyProofs(ctx context.Context, bountyID *big.Int, proofs ProofIDs) (*types.Transaction, error) {
	if rc.mockMode {
		return rc.mockLinkBountyProofs(bountyID, proofs)
	}

	tx, err := rc.bound.transact(ctx, nil, "linkBountyProofs", bountyID, proofs.StoryAssetID, proofs.IcpCanisterID, proofs.DagProofHash)
	if err != nil {
		return nil, fmt.Errorf("failed to link bounty proofs: %w", err)
	}
	return tx, nil
}

func (rc *RegistryContract) mockLinkBountyProofs(bountyID *big.Int, proofs ProofIDs) (*types.Transaction, error) {
	s := rc.mock
	s.mu.Lock()
	defer s.mu.Unlock()

	b, exists := s.bounties[bigKey(bountyID)]
	if !exists {
		return nil, fmt.Errorf("failed to link bounty proofs: %w", ErrBountyNotFound)
	}
	b.StoryAssetId = proofs.StoryAssetID
	b.IcpCanisterId = proofs.IcpCanisterID
	b.DagProofHash = proofs.DagProofHash

	s.publish("BountyProofsLinked", bountyID, proofFields(proofs))
	logging.Info("bounty proofs linked", logging.Component("registry"), logging.BountyID(bountyID))
	return nil, nil
}

// RegisterSubmission appends a submission for an active bounty.
func (rc *RegistryContract) RegisterSubmission(ctx context.Context, bountyID *big.Int, docID string, proofs ProofIDs) (*types.Transaction, error) {
	if rc.mockMode {
		return rc.mockRegisterSubmission(bountyID, docID, proofs)
	}

	tx, err := rc.bound.transact(ctx, nil, "registerSubmission", bountyID, docID, proofs.StoryAssetID, proofs.IcpCanisterID, proofs.DagProofHash)
	if err != nil {
		return nil, fmt.Errorf("failed to register submission: %w", err)
	}
	return tx, nil
}

func (rc *RegistryContract) mockRegisterSubmission(bountyID *big.Int, docID string, proofs ProofIDs) (*types.Transaction, error) {
	s := rc.mock
	s.mu.Lock()
	defer s.mu.Unlock()

	key := bigKey(bountyID)
	b, exists := s.bounties[key]
	if !exists {
		return nil, fmt.Errorf("failed to register submission: %w", ErrBountyNotFound)
	}
	if !b.Active {
		return nil, fmt.Errorf("failed to register submission: %w", ErrBountyInactive)
	}

	s.submissions[key] = append(s.submissions[key], &Submission{
		Submitter:     rc.sender,
		DocId:         docID,
		StoryAssetId:  proofs.StoryAssetID,
		IcpCanisterId: proofs.IcpCanisterID,
		DagProofHash:  proofs.DagProofHash,
		Timestamp:     nowUnix(),
	})

	fields := proofFields(proofs)
	fields["submitter"] = rc.sender
	fields["docId"] = docID
	s.publish("SubmissionRegistered", bountyID, fields)

	logging.Info("submission registered", logging.Component("registry"), logging.BountyID(bountyID),
		logging.DocumentID(docID), "index", len(s.submissions[key])-1)
	return nil, nil
}

// GetBounty reads a bounty. Unknown ids return a zero record, as the contract does.
func (rc *RegistryContract) GetBounty(ctx context.Context, bountyID *big.Int) (*Bounty, error) {
	if rc.mockMode {
		rc.mock.mu.RLock()
		defer rc.mock.mu.RUnlock()
		if b, ok := rc.mock.bounties[bigKey(bountyID)]; ok {
			copied := *b
			return &copied, nil
		}
		return &Bounty{}, nil
	}

	out, err := rc.bound.call(ctx, "getBounty", bountyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bounty: %w", err)
	}
	return abi.ConvertType(out, new(Bounty)).(*Bounty), nil
}

func (rc *RegistryContract) GetSubmissionCount(ctx context.Context, bountyID *big.Int) (*big.Int, error) {
	if rc.mockMode {
		rc.mock.mu.RLock()
		defer rc.mock.mu.RUnlock()
		return big.NewInt(int64(len(rc.mock.submissions[bigKey(bountyID)]))), nil
	}

	out, err := rc.bound.call(ctx, "getSubmissionCount", bountyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get submission count: %w", err)
	}
	count, ok := out.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected submission count type %T", out)
	}
	return count, nil
}

func (rc *RegistryContract) GetSubmission(ctx context.Context, bountyID, index *big.Int) (*Submission, error) {
	if rc.mockMode {
		rc.mock.mu.RLock()
		defer rc.mock.mu.RUnlock()
		subs := rc.mock.submissions[bigKey(bountyID)]
		if !index.IsInt64() || index.Sign() < 0 || index.Int64() >= int64(len(subs)) {
			return nil, fmt.Errorf("failed to get submission: %w", ErrInvalidSubmissionIx)
		}
		copied := *subs[index.Int64()]
		copied.Timestamp = copyInt(copied.Timestamp)
		return &copied, nil
	}

	out, err := rc.bound.call(ctx, "getSubmission", bountyID, index)
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return abi.ConvertType(out, new(Submission)).(*Submission), nil
}

// GetSubmissions reads the count, then each index in order.
func (rc *RegistryContract) GetSubmissions(ctx context.Context, bountyID *big.Int) ([]Submission, error) {
	count, err := rc.GetSubmissionCount(ctx, bountyID)
	if err != nil {
		return nil, err
	}

	subs := make([]Submission, 0, count.Int64())
	for i := int64(0); i < count.Int64(); i++ {
		sub, err := rc.GetSubmission(ctx, bountyID, big.NewInt(i))
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, nil
}

func (s *registryState) publish(name string, bountyID *big.Int, fields map[string]interface{}) {
	if s.emit == nil {
		return
	}
	fields["bountyId"] = copyInt(bountyID)
	s.emit(newMockEvent(ContractRegistry, name, bountyID, fields))
}

func proofFields(p ProofIDs) map[string]interface{} {
	return map[string]interface{}{
		"storyAssetId":  p.StoryAssetID,
		"icpCanisterId": p.IcpCanisterID,
		"dagProofHash":  p.DagProofHash,
	}
}
