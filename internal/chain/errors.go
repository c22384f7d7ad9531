package chain

import (
	"errors"
	"fmt"
)

// Configuration errors, returned before any network call.
var (
	ErrNoProvider = errors.New("No RPC provider available. Provide VITE_PUBLIC_RPC_URL in your environment or configure a wallet.")
	ErrNoSigner   = errors.New("A wallet is required for signing transactions.")
)

// MissingAddressError reports an unset contract address and the variable
// that should hold it.
type MissingAddressError struct {
	EnvVar string
}

func (e *MissingAddressError) Error() string {
	return fmt.Sprintf("Missing contract address for %s. Set %s in your environment configuration.", e.EnvVar, e.EnvVar)
}

// Reverts raised by the in-memory contracts. They carry the same reason
// strings the deployed contracts use.
var (
	ErrBountyNotFound      = errors.New("bounty not found")
	ErrBountyInactive      = errors.New("bounty inactive")
	ErrEscrowExists        = errors.New("escrow exists")
	ErrEscrowNotFound      = errors.New("escrow not found")
	ErrEscrowFinalized     = errors.New("escrow finalized")
	ErrProofNotAnchored    = errors.New("dag proof not anchored")
	ErrZeroValue           = errors.New("value required")
	ErrZeroBeneficiary     = errors.New("beneficiary required")
	ErrNotOwner            = errors.New("caller is not the owner")
	ErrNotAuthorized       = errors.New("not authorized")
	ErrNotMinter           = errors.New("caller is missing MINTER_ROLE")
	ErrNotAdmin            = errors.New("caller is missing DEFAULT_ADMIN_ROLE")
	ErrProvenanceExists    = errors.New("provenance already logged")
	ErrZeroAmount          = errors.New("amount required")
	ErrInvalidSubmissionIx = errors.New("submission index out of range")
)
