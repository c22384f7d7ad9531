package identity

import (
	"testing"

	"github.com/99designs/keyring"
)

func useArrayKeyring(t *testing.T) {
	t.Helper()
	ring := keyring.NewArrayKeyring(nil)
	prev := openKeyring
	openKeyring = func() (keyring.Keyring, string, error) { return ring, "memory", nil }
	t.Cleanup(func() { openKeyring = prev })
}

func TestWalletPassword_StoreRetrieveDelete(t *testing.T) {
	useArrayKeyring(t)

	if got, err := RetrieveWalletPassword(); err != nil || got != "" {
		t.Fatalf("empty keyring: got %q, %v", got, err)
	}

	backend, err := StoreWalletPassword("s3cret")
	if err != nil {
		t.Fatalf("StoreWalletPassword: %v", err)
	}
	if backend != "memory" {
		t.Errorf("backend = %q", backend)
	}
	if got := ResolveWalletPassword(""); got != "s3cret" {
		t.Errorf("ResolveWalletPassword = %q, want keyring value", got)
	}

	if err := DeleteWalletPassword(); err != nil {
		t.Fatalf("DeleteWalletPassword: %v", err)
	}
	if err := DeleteWalletPassword(); err != nil {
		t.Errorf("deleting twice should be a no-op: %v", err)
	}
	if got, _ := RetrieveWalletPassword(); got != "" {
		t.Errorf("password still present: %q", got)
	}
}
