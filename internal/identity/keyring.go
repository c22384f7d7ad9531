package identity

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/99designs/keyring"
)

const (
	keyringServiceName = "hakichain"
	walletPasswordKey  = "wallet-password"
)

// openKeyring is swapped in tests.
var openKeyring = openPlatformKeyring

// StoreWalletPassword saves the keystore password in the OS keyring and
// returns the backend name.
func StoreWalletPassword(password string) (string, error) {
	ring, backend, err := openKeyring()
	if err != nil {
		return "", err
	}

	err = ring.Set(keyring.Item{
		Key:         walletPasswordKey,
		Data:        []byte(password),
		Label:       "HakiChain Wallet Password",
		Description: "Password for the hakichain signing keystore",
	})
	if err != nil {
		return "", fmt.Errorf("failed to store in %s: %w", backend, err)
	}
	return backend, nil
}

// RetrieveWalletPassword returns ("", nil) when nothing is stored.
func RetrieveWalletPassword() (string, error) {
	ring, _, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(walletPasswordKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(item.Data), nil
}

func DeleteWalletPassword() error {
	ring, _, err := openKeyring()
	if err != nil {
		return err
	}
	if err := ring.Remove(walletPasswordKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}

// ResolveWalletPassword prefers an explicit password (HAKICHAIN_WALLET_PASSWORD)
// and falls back to the keyring. A keyring that cannot be opened is not an error.
func ResolveWalletPassword(explicit string) string {
	if explicit != "" {
		return explicit
	}
	password, err := RetrieveWalletPassword()
	if err != nil {
		return ""
	}
	return password
}

func openPlatformKeyring() (keyring.Keyring, string, error) {
	var backends []keyring.BackendType
	var name string
	switch runtime.GOOS {
	case "darwin":
		backends = []keyring.BackendType{keyring.KeychainBackend}
		name = "macOS Keychain"
	case "linux":
		backends = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend}
		name = "Secret Service"
	default:
		return nil, "", fmt.Errorf("no keyring backend available on %s", runtime.GOOS)
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:                    keyringServiceName,
		AllowedBackends:                backends,
		KeychainTrustApplication:       true,
		KeychainAccessibleWhenUnlocked: true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to open keyring: %w", err)
	}
	return ring, name, nil
}
