package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hakichain/hakichain/internal/config"
	"github.com/hakichain/hakichain/internal/identity"
)

const maxPromptAttempts = 3

var errTooManyAttempts = errors.New("too many failed attempts")

// NewWalletCmd creates the wallet command group
func NewWalletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage the signing wallet",
		Long: `Manage the Ethereum wallet that signs bounty, escrow and token transactions.

The wallet is stored as an encrypted keystore file (geth V3 format).
Read-only commands work without a wallet.

The wallet password is stored in your platform keyring when available:
  macOS:           Keychain
  Linux (desktop): GNOME Keyring / KDE Wallet
Otherwise set HAKICHAIN_WALLET_PASSWORD.

Examples:
  hakichain wallet create            # Generate a new wallet
  hakichain wallet import            # Import from a private key
  hakichain wallet show              # Show address and keystore path
  hakichain wallet forget-password   # Remove the stored password`,
	}

	cmd.AddCommand(newWalletCreateCmd())
	cmd.AddCommand(newWalletImportCmd())
	cmd.AddCommand(newWalletShowCmd())
	cmd.AddCommand(newWalletForgetPasswordCmd())
	return cmd
}

// keystoreFlag binds --keystore, defaulting to the configured directory.
func keystoreFlag(cmd *cobra.Command, dir *string) {
	cmd.Flags().StringVar(dir, "keystore", "", "Path to keystore directory (default from config)")
}

func resolveKeystoreDir(flag string) string {
	if flag != "" {
		return flag
	}
	return loadConfigQuiet().Wallet.KeystoreDir
}

// ensureNoWallet fails when dir already holds a keystore.
func ensureNoWallet(dir string) error {
	w, err := identity.LoadWallet(dir)
	if err != nil {
		return fmt.Errorf("failed to check keystore: %w", err)
	}
	if w != nil {
		return fmt.Errorf("%w at %s (address: %s)", identity.ErrWalletExists, dir, w.Address().Hex())
	}
	return nil
}

// promptNewPassword asks for a password twice, retrying on short or
// mismatched input.
func promptNewPassword() (string, error) {
	for attempt := 1; attempt <= maxPromptAttempts; attempt++ {
		fmt.Fprint(os.Stderr, "Enter wallet password: ")
		password, err := readPasswordNoEcho()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)

		if len(password) < 8 {
			Warning("Password must be at least 8 characters. Try again.")
			continue
		}

		fmt.Fprint(os.Stderr, "Confirm wallet password: ")
		confirm, err := readPasswordNoEcho()
		if err != nil {
			return "", fmt.Errorf("failed to read confirmation: %w", err)
		}
		fmt.Fprintln(os.Stderr)

		if password != confirm {
			Warning("Passwords do not match. Try again.")
			continue
		}
		return password, nil
	}
	return "", errTooManyAttempts
}

func storePasswordInKeyring(password string) {
	if backend, err := identity.StoreWalletPassword(password); err == nil {
		fmt.Printf("  Password saved to %s\n", backend)
		fmt.Println("  The wallet will be unlocked automatically for signing commands.")
		return
	}
	fmt.Println("  Could not store password in system keyring.")
	fmt.Printf("  For automatic unlock, set %s.\n", config.EnvWalletPassword)
}

func newWalletCreateCmd() *cobra.Command {
	var keystoreDir string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new wallet",
		Long:  "Create a new Ethereum wallet with a password-encrypted keystore file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := resolveKeystoreDir(keystoreDir)
			if err := ensureNoWallet(dir); err != nil {
				return err
			}

			password, err := promptNewPassword()
			if err != nil {
				return err
			}
			w, err := identity.CreateWallet(dir, password)
			if err != nil {
				return fmt.Errorf("failed to create wallet: %w", err)
			}

			fmt.Println()
			Success("Wallet created!")
			fmt.Println(StatusBox("Wallet", [][2]string{
				{"Address", w.Address().Hex()},
				{"Keystore", dir},
			}))
			storePasswordInKeyring(password)
			fmt.Println()
			Warning("Back up your keystore directory and remember your password.")
			fmt.Println(Hint("Fund the address before sending transactions."))
			return nil
		},
	}

	keystoreFlag(cmd, &keystoreDir)
	return cmd
}

func newWalletImportCmd() *cobra.Command {
	var keystoreDir string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a wallet from a private key",
		Long:  "Import an existing Ethereum private key into an encrypted keystore file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := resolveKeystoreDir(keystoreDir)
			if err := ensureNoWallet(dir); err != nil {
				return err
			}

			var privKeyHex string
			for attempt := 1; attempt <= maxPromptAttempts; attempt++ {
				fmt.Fprint(os.Stderr, "Enter private key (hex, with or without 0x prefix): ")
				input, err := readPasswordNoEcho()
				if err != nil {
					return fmt.Errorf("failed to read private key: %w", err)
				}
				fmt.Fprintln(os.Stderr)

				input = strings.TrimPrefix(strings.TrimSpace(input), "0x")
				if len(input) != 64 {
					Warning(fmt.Sprintf("Private key must be 64 hex characters (32 bytes), got %d. Try again.", len(input)))
					continue
				}
				privKeyHex = input
				break
			}
			if privKeyHex == "" {
				return errTooManyAttempts
			}

			password, err := promptNewPassword()
			if err != nil {
				return err
			}
			w, err := identity.ImportWallet(dir, privKeyHex, password)
			if err != nil {
				return fmt.Errorf("failed to import wallet: %w", err)
			}

			fmt.Println()
			Success("Wallet imported!")
			fmt.Println(StatusBox("Wallet", [][2]string{
				{"Address", w.Address().Hex()},
				{"Keystore", dir},
			}))
			storePasswordInKeyring(password)
			return nil
		},
	}

	keystoreFlag(cmd, &keystoreDir)
	return cmd
}

func newWalletShowCmd() *cobra.Command {
	var keystoreDir string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show wallet address and keystore path",
		Long:  "Display the wallet address and keystore directory. No password needed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := resolveKeystoreDir(keystoreDir)
			w, err := identity.LoadWallet(dir)
			if err != nil {
				return fmt.Errorf("failed to load wallet: %w", err)
			}
			if w == nil {
				if jsonOutput() {
					return printJSON(map[string]interface{}{"keystore": dir, "address": nil})
				}
				Info("No wallet found.")
				fmt.Println(Hint("Create one with: hakichain wallet create"))
				return nil
			}

			pwStatus := "not stored (manual unlock required)"
			switch {
			case os.Getenv(config.EnvWalletPassword) != "":
				pwStatus = "from " + config.EnvWalletPassword
			default:
				if pw, err := identity.RetrieveWalletPassword(); err == nil && pw != "" {
					pwStatus = "stored in platform keyring"
				}
			}

			return emit("Wallet", [][2]string{
				{"Address", w.Address().Hex()},
				{"Keystore", dir},
				{"Password", pwStatus},
			}, map[string]interface{}{"address": w.Address().Hex(), "keystore": dir, "password": pwStatus})
		},
	}

	keystoreFlag(cmd, &keystoreDir)
	return cmd
}

func newWalletForgetPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget-password",
		Short: "Remove the wallet password from the platform keyring",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := identity.DeleteWalletPassword(); err != nil {
				return fmt.Errorf("failed to remove password: %w", err)
			}
			Success("Wallet password removed from keyring")
			return nil
		},
	}
}
