package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// The tuple structs below mirror the contract return types field for field.
// Field names follow abi.ToCamelCase of the Solidity names, which is why they
// read MetadataUri rather than MetadataURI.

// Bounty is the BountyRegistry record for one bounty id.
type Bounty struct {
	Creator       common.Address `json:"creator"`
	MetadataUri   string         `json:"metadataUri"`
	StoryAssetId  string         `json:"storyAssetId"`
	IcpCanisterId string         `json:"icpCanisterId"`
	DagProofHash  string         `json:"dagProofHash"`
	Active        bool           `json:"active"`
}

// Exists reports whether the registry has ever stored this bounty.
func (b *Bounty) Exists() bool {
	return b.Creator != (common.Address{})
}

// Submission is one entry of a bounty's append-only submission list.
type Submission struct {
	Submitter     common.Address `json:"submitter"`
	DocId         string         `json:"docId"`
	StoryAssetId  string         `json:"storyAssetId"`
	IcpCanisterId string         `json:"icpCanisterId"`
	DagProofHash  string         `json:"dagProofHash"`
	Timestamp     *big.Int       `json:"timestamp"`
}

// Escrow is the BountyEscrow record for one bounty id. Amounts are in wei.
type Escrow struct {
	Funder       common.Address `json:"funder"`
	Beneficiary  common.Address `json:"beneficiary"`
	Amount       *big.Int       `json:"amount"`
	DagProofHash string         `json:"dagProofHash"`
	Released     bool           `json:"released"`
	Refunded     bool           `json:"refunded"`
	CreatedAt    *big.Int       `json:"createdAt"`
	FinalizedAt  *big.Int       `json:"finalizedAt"`
}

// EscrowStatus is derived from an Escrow record; the contract stores flags only.
type EscrowStatus string

const (
	EscrowStatusAwaiting EscrowStatus = "awaiting" // no escrow for the id
	EscrowStatusFunded   EscrowStatus = "funded"
	EscrowStatusAnchored EscrowStatus = "anchored" // funded and a DAG proof is on record
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
)

func (e *Escrow) Status() EscrowStatus {
	switch {
	case e.Released:
		return EscrowStatusReleased
	case e.Refunded:
		return EscrowStatusRefunded
	case e.Funder == (common.Address{}):
		return EscrowStatusAwaiting
	case e.DagProofHash != "":
		return EscrowStatusAnchored
	default:
		return EscrowStatusFunded
	}
}

// IsFinal reports whether release or refund has happened.
func (e *Escrow) IsFinal() bool {
	return e.Released || e.Refunded
}

// Provenance is the HakiToken record stored per workflow id at mint time.
type Provenance struct {
	StoryAssetId  string   `json:"storyAssetId"`
	IcpCanisterId string   `json:"icpCanisterId"`
	DagProofHash  string   `json:"dagProofHash"`
	MintedAmount  *big.Int `json:"mintedAmount"`
	Timestamp     *big.Int `json:"timestamp"`
}

// Exists reports whether a mint was logged for the workflow.
func (p *Provenance) Exists() bool {
	return p.MintedAmount != nil && p.MintedAmount.Sign() > 0
}

// ProofIDs groups the three external proof identifiers that travel together
// through the registry and the token.
type ProofIDs struct {
	StoryAssetID  string `json:"storyAssetId"`
	IcpCanisterID string `json:"icpCanisterId"`
	DagProofHash  string `json:"dagProofHash"`
}

// MintRequest holds the arguments of mintWithProvenance.
type MintRequest struct {
	To          common.Address
	Amount      *big.Int
	Proofs      ProofIDs
	WorkflowTag string
}
