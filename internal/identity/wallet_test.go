package identity

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

// Hardhat account #0
const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestLoadWallet_Empty(t *testing.T) {
	w, err := LoadWallet(filepath.Join(t.TempDir(), "keystore"))
	if err != nil {
		t.Fatalf("LoadWallet: %v", err)
	}
	if w != nil {
		t.Fatal("expected nil wallet for empty keystore")
	}
}

func TestImportWallet_UnlockRoundTrip(t *testing.T) {
	dir := t.TempDir()

	w, err := ImportWallet(dir, "0x"+testKeyHex, "pw")
	if err != nil {
		t.Fatalf("ImportWallet: %v", err)
	}
	want := "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	if w.Address().Hex() != want {
		t.Errorf("address = %s, want %s", w.Address().Hex(), want)
	}

	loaded, err := LoadWallet(dir)
	if err != nil || loaded == nil {
		t.Fatalf("LoadWallet: %v %v", loaded, err)
	}
	key, err := loaded.Unlock("pw")
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if crypto.PubkeyToAddress(key.PublicKey) != loaded.Address() {
		t.Error("unlocked key does not match wallet address")
	}

	loaded.Lock()
	if _, err := loaded.Unlock("wrong"); err == nil {
		t.Error("expected error for wrong password after Lock")
	}
}

func TestImportWallet_Rejects(t *testing.T) {
	dir := t.TempDir()

	if _, err := ImportWallet(dir, "not-hex", "pw"); err == nil {
		t.Error("expected error for invalid key")
	}
	if _, err := CreateWallet(dir, "pw"); err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	if _, err := ImportWallet(dir, testKeyHex, "pw"); !errors.Is(err, ErrWalletExists) {
		t.Errorf("expected ErrWalletExists, got %v", err)
	}
}

func TestResolveWalletPassword_Explicit(t *testing.T) {
	if got := ResolveWalletPassword("from-env"); got != "from-env" {
		t.Errorf("expected explicit password, got %q", got)
	}
}
