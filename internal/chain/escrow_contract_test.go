package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var oneEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func TestMockEscrow_ReleaseMovesFunds(t *testing.T) {
	ctx := context.Background()
	esc := NewMockEscrowContract(owner)
	id := big.NewInt(1)

	if _, err := esc.WithSender(donor).CreateEscrow(ctx, id, lawyer, oneEther); err != nil {
		t.Fatalf("CreateEscrow: %v", err)
	}
	if esc.MockHeldBalance().Cmp(oneEther) != 0 {
		t.Errorf("escrow holds %s, want %s", esc.MockHeldBalance(), oneEther)
	}

	e, _ := esc.GetEscrow(ctx, id)
	if e.Status() != EscrowStatusFunded || e.Funder != donor {
		t.Errorf("unexpected escrow after create: %+v status=%s", e, e.Status())
	}

	if _, err := esc.AnchorDagProof(ctx, id, "dag-proof"); err != nil {
		t.Fatalf("AnchorDagProof: %v", err)
	}
	if e, _ := esc.GetEscrow(ctx, id); e.Status() != EscrowStatusAnchored {
		t.Errorf("status after anchor = %s", e.Status())
	}

	if _, err := esc.Release(ctx, id); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if esc.MockHeldBalance().Sign() != 0 {
		t.Errorf("escrow should be empty, holds %s", esc.MockHeldBalance())
	}
	if got := esc.MockBalanceChange(lawyer); got.Cmp(oneEther) != 0 {
		t.Errorf("beneficiary change = %s, want %s", got, oneEther)
	}
	if got := esc.MockBalanceChange(donor); got.Cmp(new(big.Int).Neg(oneEther)) != 0 {
		t.Errorf("funder change = %s, want -%s", got, oneEther)
	}

	e, _ = esc.GetEscrow(ctx, id)
	if !e.Released || e.Refunded || e.Status() != EscrowStatusReleased {
		t.Errorf("escrow not released: %+v", e)
	}
	if e.FinalizedAt.Sign() <= 0 {
		t.Error("finalizedAt not set")
	}
}

func TestMockEscrow_TerminalOnce(t *testing.T) {
	ctx := context.Background()
	esc := NewMockEscrowContract(owner)
	id := big.NewInt(2)

	_, _ = esc.WithSender(donor).CreateEscrow(ctx, id, lawyer, oneEther)
	if _, err := esc.WithSender(donor).Refund(ctx, id); err != nil {
		t.Fatalf("funder refund: %v", err)
	}
	if got := esc.MockBalanceChange(donor); got.Sign() != 0 {
		t.Errorf("funder should be made whole, change = %s", got)
	}

	_, _ = esc.AnchorDagProof(ctx, id, "late")
	if _, err := esc.Release(ctx, id); !errors.Is(err, ErrEscrowFinalized) {
		t.Errorf("release after refund: %v", err)
	}
	if _, err := esc.Refund(ctx, id); !errors.Is(err, ErrEscrowFinalized) {
		t.Errorf("second refund: %v", err)
	}

	e, _ := esc.GetEscrow(ctx, id)
	if e.Released || !e.Refunded {
		t.Errorf("exactly one terminal flag expected: %+v", e)
	}
}

func TestMockEscrow_Reverts(t *testing.T) {
	ctx := context.Background()
	esc := NewMockEscrowContract(owner)
	id := big.NewInt(3)
	funder := esc.WithSender(donor)

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"zero value", func() error { _, err := funder.CreateEscrow(ctx, id, lawyer, big.NewInt(0)); return err }, ErrZeroValue},
		{"zero beneficiary", func() error { _, err := funder.CreateEscrow(ctx, id, common.Address{}, oneEther); return err }, ErrZeroBeneficiary},
		{"create", func() error { _, err := funder.CreateEscrow(ctx, id, lawyer, oneEther); return err }, nil},
		{"duplicate", func() error { _, err := funder.CreateEscrow(ctx, id, lawyer, oneEther); return err }, ErrEscrowExists},
		{"anchor by funder", func() error { _, err := funder.AnchorDagProof(ctx, id, "x"); return err }, ErrNotOwner},
		{"release unanchored", func() error { _, err := esc.Release(ctx, id); return err }, ErrProofNotAnchored},
		{"refund by stranger", func() error { _, err := esc.WithSender(lawyer).Refund(ctx, id); return err }, ErrNotAuthorized},
		{"anchor missing", func() error { _, err := esc.AnchorDagProof(ctx, big.NewInt(99), "x"); return err }, ErrEscrowNotFound},
		{"anchor", func() error { _, err := esc.AnchorDagProof(ctx, id, "dag"); return err }, nil},
		{"release by funder", func() error { _, err := funder.Release(ctx, id); return err }, ErrNotOwner},
	}

	for _, tt := range tests {
		err := tt.call()
		if tt.want == nil {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tt.name, err)
			}
			continue
		}
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestEscrowStatus_Awaiting(t *testing.T) {
	e, err := NewMockEscrowContract(owner).GetEscrow(context.Background(), big.NewInt(77))
	if err != nil {
		t.Fatal(err)
	}
	if e.Status() != EscrowStatusAwaiting || e.IsFinal() {
		t.Errorf("unknown escrow status = %s", e.Status())
	}
}
