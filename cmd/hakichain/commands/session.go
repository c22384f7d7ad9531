package commands

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hakichain/hakichain/internal/chain"
	"github.com/hakichain/hakichain/internal/config"
	"github.com/hakichain/hakichain/internal/identity"
	"github.com/hakichain/hakichain/internal/logging"
)

// session holds what a chain command needs: config, the optional wallet and
// the contract client built from both.
type session struct {
	cfg    *config.Config
	wallet *identity.Wallet
	client *chain.Client
}

// openSession loads config and the wallet. With forWrite the wallet is
// unlocked, prompting for the password on a terminal when neither
// HAKICHAIN_WALLET_PASSWORD nor the keyring has it. Without a wallet the
// client is read-only and writes fail with chain.ErrNoSigner.
func openSession(forWrite bool) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newSession(cfg, forWrite)
}

func newSession(cfg *config.Config, forWrite bool) (*session, error) {
	var err error
	s := &session{cfg: cfg}
	s.wallet, err = identity.LoadWallet(cfg.Wallet.KeystoreDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open keystore: %w", err)
	}

	var key *ecdsa.PrivateKey
	if s.wallet != nil && (forWrite || cfg.Chain.Mock) {
		key, err = s.unlock(forWrite)
		if err != nil {
			return nil, err
		}
	}

	s.client = chain.NewFromConfig(cfg.Chain, key)
	return s, nil
}

func (s *session) unlock(required bool) (*ecdsa.PrivateKey, error) {
	password := identity.ResolveWalletPassword(s.cfg.Wallet.Password)
	if password == "" && required && term.IsTerminal(int(syscall.Stdin)) {
		fmt.Fprint(os.Stderr, "Enter wallet password: ")
		p, err := readPasswordNoEcho()
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		password = p
	}
	if password == "" {
		if required {
			return nil, chain.ErrNoSigner
		}
		return nil, nil
	}

	key, err := s.wallet.Unlock(password)
	if err != nil {
		return nil, fmt.Errorf("failed to unlock wallet: %w", err)
	}
	return key, nil
}

func (s *session) Close() {
	if s.wallet != nil {
		s.wallet.Lock()
	}
	s.client.Close()
}

// waitFlag is shared by every mutating command.
var waitForReceipt bool

func addWaitFlag(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&waitForReceipt, "wait", false, "Wait for the transaction to be mined and confirmed")
}

// reportTx prints the outcome of a mutating call and optionally waits for
// its receipt. A nil tx means the in-memory contracts applied the change.
func (s *session) reportTx(ctx context.Context, action string, tx *types.Transaction, fields [][2]string) error {
	if tx == nil {
		fields = append(fields, [2]string{"Mode", "mock (in-memory)"})
		return emit(action, fields, map[string]interface{}{"action": action, "mock": true})
	}

	fields = append(fields, [2]string{"Tx Hash", tx.Hash().Hex()})
	out := map[string]interface{}{"action": action, "txHash": tx.Hash().Hex()}

	if waitForReceipt {
		var receipt *types.Receipt
		err := WithSpinner("Waiting for confirmation", func() error {
			var err error
			receipt, err = s.client.WaitForTransaction(ctx, tx)
			return err
		})
		if err != nil {
			return err
		}
		if receipt != nil {
			fields = append(fields,
				[2]string{"Block", receipt.BlockNumber.String()},
				[2]string{"Gas Used", fmt.Sprint(receipt.GasUsed)})
			out["blockNumber"] = receipt.BlockNumber.Uint64()
			out["gasUsed"] = receipt.GasUsed
		}
	}

	logging.Debug("transaction sent", logging.Component("cli"), logging.TxHash(tx.Hash().Hex()), "action", action)
	return emit(action, fields, out)
}

// emit prints fields as a status box, or jsonValue with --output json.
func emit(title string, fields [][2]string, jsonValue interface{}) error {
	if jsonOutput() {
		return printJSON(jsonValue)
	}
	fmt.Println(StatusBox(title, fields))
	return nil
}

func parseBountyID(raw string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("invalid bounty id %q: must be a non-negative integer", raw)
	}
	return id, nil
}

func parseAddress(name, raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", name, raw)
	}
	return common.HexToAddress(raw), nil
}

var errInvalidAmount = errors.New("invalid amount")

// parseUnits converts a decimal string such as "1.25" to an integer with
// decimals fractional digits. Excess precision is an error.
func parseUnits(raw string, decimals int) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	whole, frac, _ := strings.Cut(raw, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("%w %q: more than %d decimal places", errInvalidAmount, raw, decimals)
	}
	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	for _, c := range digits {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("%w %q", errInvalidAmount, raw)
		}
	}
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w %q", errInvalidAmount, raw)
	}
	return v, nil
}

func readPasswordNoEcho() (string, error) {
	password, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	return string(password), nil
}
