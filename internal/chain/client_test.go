package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hakichain/hakichain/internal/config"
)

const testRegistryAddr = "0x5FbDB2315678afecb367f032c93F642f64180aa3"

func TestClient_MissingAddressNamesEnvVar(t *testing.T) {
	c := NewClient(NewBaseClient(nil, nil), Addresses{})
	ctx := context.Background()

	_, err := c.GetBounty(ctx, big.NewInt(1))
	var missing *MissingAddressError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingAddressError, got %v", err)
	}
	if missing.EnvVar != config.EnvRegistryAddress {
		t.Errorf("EnvVar = %s", missing.EnvVar)
	}

	_, err = c.GetEscrow(ctx, big.NewInt(1))
	if !errors.As(err, &missing) || missing.EnvVar != config.EnvEscrowAddress {
		t.Errorf("escrow: %v", err)
	}
	_, err = c.TokenBalance(ctx, ngo)
	if !errors.As(err, &missing) || missing.EnvVar != config.EnvTokenAddress {
		t.Errorf("token: %v", err)
	}
}

func TestClient_WriteWithoutSigner(t *testing.T) {
	c := NewClient(NewBaseClient(nil, nil), Addresses{Registry: testRegistryAddr})

	_, err := c.UpsertBounty(context.Background(), big.NewInt(1), "ipfs://x", true)
	if !errors.Is(err, ErrNoSigner) {
		t.Errorf("expected ErrNoSigner, got %v", err)
	}
}

func TestClient_ReadWithoutProvider(t *testing.T) {
	c := NewClient(NewBaseClient(nil, nil), Addresses{Registry: testRegistryAddr})

	_, err := c.GetBounty(context.Background(), big.NewInt(1))
	if !errors.Is(err, ErrNoProvider) {
		t.Errorf("expected ErrNoProvider, got %v", err)
	}
}

func TestResolveAddress(t *testing.T) {
	if _, err := ResolveAddress("not-an-address", "X"); err == nil {
		t.Error("expected error for malformed address")
	}
	addr, err := ResolveAddress("  "+testRegistryAddr+" ", "X")
	if err != nil {
		t.Fatal(err)
	}
	if addr.Hex() != testRegistryAddr {
		t.Errorf("addr = %s", addr.Hex())
	}
}

func TestNewFromConfig_Mock(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	c := NewFromConfig(config.ChainConfig{Mock: true}, key)
	if !c.IsMockMode() {
		t.Fatal("expected mock client")
	}
	if c.SignerAddress() != crypto.PubkeyToAddress(key.PublicKey) {
		t.Error("mock operator should be the wallet address")
	}
	if p, err := c.GetProvider(context.Background()); p != nil || err != nil {
		t.Errorf("mock provider = %v, %v", p, err)
	}
}

func TestMockClient_EventsFeed(t *testing.T) {
	c := NewMockClient(owner)
	ctx := context.Background()

	if _, err := c.UpsertBounty(ctx, big.NewInt(3), "ipfs://b3", true); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-c.Events():
		if ev.Name != "BountyCreated" || ev.Contract != ContractRegistry || ev.BountyID != "3" || !ev.Simulated {
			t.Errorf("unexpected event %+v", ev)
		}
		if ev.Fields["creator"] != owner.Hex() {
			t.Errorf("creator field = %v", ev.Fields["creator"])
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	if tx, err := c.CreateEscrow(ctx, big.NewInt(3), lawyer, big.NewInt(100)); tx != nil || err != nil {
		t.Fatalf("CreateEscrow = %v, %v", tx, err)
	}
	if r, err := c.WaitForTransaction(ctx, nil); r != nil || err != nil {
		t.Errorf("WaitForTransaction(nil) = %v, %v", r, err)
	}
}

func TestMockClient_IsMinter(t *testing.T) {
	c := NewMockClient(owner)
	ok, err := c.IsMinter(context.Background(), owner)
	if err != nil || !ok {
		t.Errorf("operator should be minter: %v %v", ok, err)
	}
	ok, _ = c.IsMinter(context.Background(), lawyer)
	if ok {
		t.Error("lawyer should not be minter")
	}
}
