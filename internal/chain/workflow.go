package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var workflowArgs = func() abi.Arguments {
	stringTy, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: stringTy}, {Type: stringTy}, {Type: stringTy}, {Type: stringTy}}
}()

// WorkflowID returns keccak256(abi.encode(tag, storyAssetId, icpCanisterId,
// dagProofHash)), the key HakiToken stores provenance under. The encoding is
// the standard (non-packed) one.
func WorkflowID(tag string, proofs ProofIDs) (common.Hash, error) {
	packed, err := workflowArgs.Pack(tag, proofs.StoryAssetID, proofs.IcpCanisterID, proofs.DagProofHash)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode workflow id: %w", err)
	}
	return crypto.Keccak256Hash(packed), nil
}

// MinterRole is keccak256("MINTER_ROLE"), the OpenZeppelin AccessControl role id.
var MinterRole = crypto.Keccak256Hash([]byte("MINTER_ROLE"))

// DefaultAdminRole is the zero role id.
var DefaultAdminRole = common.Hash{}
