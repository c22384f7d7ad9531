package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
)

func TestMockToken_MintWithProvenance(t *testing.T) {
	ctx := context.Background()
	tok := NewMockTokenContract(owner)
	amount := new(big.Int).Mul(big.NewInt(1000), oneEther)
	proofs := ProofIDs{StoryAssetID: "story-asset-1", IcpCanisterID: "icp-canister-1", DagProofHash: "dag-proof-1"}

	_, err := tok.MintWithProvenance(ctx, MintRequest{To: lawyer, Amount: amount, Proofs: proofs, WorkflowTag: "bounty-1-award"})
	if err != nil {
		t.Fatalf("MintWithProvenance: %v", err)
	}

	bal, _ := tok.BalanceOf(ctx, lawyer)
	if bal.Cmp(amount) != 0 {
		t.Errorf("balance = %s, want %s", bal, amount)
	}
	supply, _ := tok.TotalSupply(ctx)
	if supply.Cmp(amount) != 0 {
		t.Errorf("total supply = %s", supply)
	}

	wf, err := WorkflowID("bounty-1-award", proofs)
	if err != nil {
		t.Fatal(err)
	}
	p, err := tok.ProvenanceByWorkflow(ctx, wf)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Exists() || p.MintedAmount.Cmp(amount) != 0 {
		t.Errorf("provenance amount = %v", p.MintedAmount)
	}
	if p.StoryAssetId != proofs.StoryAssetID || p.IcpCanisterId != proofs.IcpCanisterID || p.DagProofHash != proofs.DagProofHash {
		t.Errorf("provenance ids not stored verbatim: %+v", p)
	}

	_, err = tok.MintWithProvenance(ctx, MintRequest{To: lawyer, Amount: amount, Proofs: proofs, WorkflowTag: "bounty-1-award"})
	if !errors.Is(err, ErrProvenanceExists) {
		t.Errorf("duplicate workflow: %v", err)
	}

	other, _ := WorkflowID("other-tag", proofs)
	if p, _ := tok.ProvenanceByWorkflow(ctx, other); p.Exists() {
		t.Error("unrelated workflow should have no provenance")
	}
}

func TestMockToken_MinterRole(t *testing.T) {
	ctx := context.Background()
	tok := NewMockTokenContract(owner)
	req := MintRequest{To: ngo, Amount: big.NewInt(5), Proofs: testProofs(), WorkflowTag: "t"}

	if _, err := tok.WithSender(ngo).MintWithProvenance(ctx, req); !errors.Is(err, ErrNotMinter) {
		t.Errorf("mint without role: %v", err)
	}
	if _, err := tok.WithSender(ngo).GrantMinterRole(ctx, ngo); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("grant by non-admin: %v", err)
	}

	if _, err := tok.GrantMinterRole(ctx, ngo); err != nil {
		t.Fatal(err)
	}
	role, _ := tok.MinterRole(ctx)
	if has, _ := tok.HasRole(ctx, role, ngo); !has {
		t.Error("ngo should be a minter")
	}
	if _, err := tok.WithSender(ngo).MintWithProvenance(ctx, req); err != nil {
		t.Errorf("mint with role: %v", err)
	}

	_, _ = tok.RevokeMinterRole(ctx, ngo)
	if has, _ := tok.HasRole(ctx, MinterRole, ngo); has {
		t.Error("role should be revoked")
	}
	if _, err := tok.MintWithProvenance(ctx, MintRequest{To: ngo, Amount: big.NewInt(0), WorkflowTag: "z"}); !errors.Is(err, ErrZeroAmount) {
		t.Errorf("zero amount: %v", err)
	}
}
