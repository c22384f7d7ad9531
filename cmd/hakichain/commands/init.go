package commands

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/hakichain/hakichain/internal/config"
)

func NewInitCmd() *cobra.Command {
	var nonInteractive bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard",
		Long: `Write ~/.hakichain/config.yaml with a guided form.

Walks you through:
  1. The EVM RPC endpoint and chain id
  2. BountyRegistry, BountyEscrow and HakiToken addresses (or mock mode)
  3. The Constellation DAG address and IPFS API

Secrets (API keys, wallet password) are never written; set them in the
environment or a .env file.

Use Shift+Tab to go back, Ctrl+C to cancel without making changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPathOrDefault()
			cfg, err := config.Load(path)
			if err != nil {
				Warning(fmt.Sprintf("Existing config is invalid, starting from defaults: %v", err))
				cfg = config.DefaultConfig()
			}

			if nonInteractive || !isTTY() {
				return saveConfig(cfg, path)
			}

			saved, err := runInitForm(cfg, path)
			if err != nil || !saved {
				return err
			}
			return saveConfig(cfg, path)
		},
	}

	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Write the current (or default) configuration without prompting")
	return cmd
}

func saveConfig(cfg *config.Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	Success("Configuration written to " + path)
	fmt.Println(Hint("Next: hakichain wallet create"))
	return nil
}

func runInitForm(cfg *config.Config, path string) (bool, error) {
	_, statErr := os.Stat(path)
	hasExisting := statErr == nil

	chainID := strconv.FormatInt(cfg.Chain.ChainID, 10)
	overwrite := !hasExisting
	confirm := true

	fmt.Println()
	fmt.Println(StatusBox(Logo()+" Setup", [][2]string{
		{"", "Configure the chain, contracts and DAG address."},
		{"", "Use Shift+Tab to go back, Ctrl+C to cancel."},
	}))
	fmt.Println()

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Use in-memory mock contracts?").
				Description("No RPC or deployed contracts needed; state lasts one invocation").
				Affirmative("Mock").
				Negative("Live").
				Value(&cfg.Chain.Mock),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("RPC URL").
				Description("Read-only fallback provider ("+config.EnvPublicRPCURL+")").
				Placeholder("https://sepolia.base.org").
				Validate(validateURL).
				Value(&cfg.Chain.RPCURL),
			huh.NewInput().
				Title("WebSocket URL").
				Description("Used for the contract event feed; optional").
				Placeholder("wss://...").
				Value(&cfg.Chain.WSURL),
			huh.NewInput().
				Title("Chain ID").
				Validate(func(s string) error {
					if n, err := strconv.ParseInt(s, 10, 64); err != nil || n <= 0 {
						return fmt.Errorf("chain id must be a positive integer")
					}
					return nil
				}).
				Value(&chainID),
		).WithHideFunc(func() bool { return cfg.Chain.Mock }),

		huh.NewGroup(
			addressInput("BountyRegistry address", &cfg.Chain.RegistryAddress),
			addressInput("BountyEscrow address", &cfg.Chain.EscrowAddress),
			addressInput("HakiToken address", &cfg.Chain.TokenAddress),
		).WithHideFunc(func() bool { return cfg.Chain.Mock }),

		huh.NewGroup(
			huh.NewInput().
				Title("DAG address").
				Description("Constellation address scanned for document memos").
				Placeholder("DAG0...").
				Value(&cfg.DAG.Address),
			huh.NewInput().
				Title("IPFS API").
				Description("host:port of the IPFS HTTP API").
				Value(&cfg.IPFS.APIURL),
		),

		huh.NewGroup(
			huh.NewConfirm().
				Title("Config file already exists. Overwrite?").
				Description(path).
				Affirmative("Overwrite").
				Negative("Keep existing").
				Value(&overwrite),
		).WithHideFunc(func() bool { return !hasExisting }),

		huh.NewGroup(
			huh.NewConfirm().
				Title("Write configuration?").
				Affirmative("Write").
				Negative("Cancel").
				Value(&confirm),
		),
	)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			Info("Setup cancelled, nothing written")
			return false, nil
		}
		return false, err
	}
	if !overwrite || !confirm {
		Info("Setup cancelled, nothing written")
		return false, nil
	}

	if n, err := strconv.ParseInt(chainID, 10, 64); err == nil {
		cfg.Chain.ChainID = n
	}
	return true, nil
}

func addressInput(title string, value *string) *huh.Input {
	return huh.NewInput().
		Title(title).
		Placeholder("0x...").
		Validate(func(s string) error {
			if s == "" || common.IsHexAddress(s) {
				return nil
			}
			return fmt.Errorf("not a valid address")
		}).
		Value(value)
}

func validateURL(s string) error {
	if s == "" {
		return nil
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return fmt.Errorf("must start with http:// or https://")
	}
	if _, err := url.ParseRequestURI(s); err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	return nil
}
