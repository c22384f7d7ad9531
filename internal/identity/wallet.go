package identity

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Scrypt parameters for new keystore files. Tests lower them.
var (
	scryptN = keystore.StandardScryptN
	scryptP = keystore.StandardScryptP
)

// ErrWalletExists is returned when creating or importing into a keystore
// directory that already holds an account.
var ErrWalletExists = errors.New("wallet already exists")

// Wallet is the signing identity used for contract transactions: the first
// account of a geth keystore directory.
type Wallet struct {
	mu         sync.Mutex
	keystore   *keystore.KeyStore
	dir        string
	account    common.Address
	privateKey *ecdsa.PrivateKey
}

func openKeystore(dir string) (*keystore.KeyStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}
	return keystore.NewKeyStore(dir, scryptN, scryptP), nil
}

// LoadWallet opens the wallet in dir. It returns (nil, nil) when the
// directory holds no account, which callers treat as read-only mode.
func LoadWallet(dir string) (*Wallet, error) {
	ks, err := openKeystore(dir)
	if err != nil {
		return nil, err
	}
	accts := ks.Accounts()
	if len(accts) == 0 {
		return nil, nil
	}
	return &Wallet{keystore: ks, dir: dir, account: accts[0].Address}, nil
}

// CreateWallet generates a fresh key in dir.
func CreateWallet(dir, password string) (*Wallet, error) {
	ks, err := openKeystore(dir)
	if err != nil {
		return nil, err
	}
	if len(ks.Accounts()) > 0 {
		return nil, fmt.Errorf("%w in %s", ErrWalletExists, dir)
	}

	account, err := ks.NewAccount(password)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return &Wallet{keystore: ks, dir: dir, account: account.Address}, nil
}

// ImportWallet stores privKeyHex (with or without 0x) in dir, encrypted with password.
func ImportWallet(dir, privKeyHex, password string) (*Wallet, error) {
	ks, err := openKeystore(dir)
	if err != nil {
		return nil, err
	}
	if len(ks.Accounts()) > 0 {
		return nil, fmt.Errorf("%w in %s", ErrWalletExists, dir)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}

	account, err := ks.ImportECDSA(key, password)
	if err != nil {
		return nil, fmt.Errorf("failed to import key: %w", err)
	}
	return &Wallet{keystore: ks, dir: dir, account: account.Address}, nil
}

func (w *Wallet) Address() common.Address {
	return w.account
}

func (w *Wallet) Dir() string {
	return w.dir
}

// Unlock decrypts the key file with password and caches the key until Lock.
func (w *Wallet) Unlock(password string) (*ecdsa.PrivateKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.privateKey != nil {
		return w.privateKey, nil
	}

	account, err := w.keystore.Find(accounts.Account{Address: w.account})
	if err != nil {
		return nil, fmt.Errorf("wallet %s not found: %w", w.account.Hex(), err)
	}
	keyJSON, err := os.ReadFile(account.URL.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key: %w", err)
	}

	w.privateKey = key.PrivateKey
	return key.PrivateKey, nil
}

// Lock zeroes and drops the cached key.
func (w *Wallet) Lock() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.privateKey != nil {
		w.privateKey.D.SetUint64(0)
		w.privateKey = nil
	}
}
