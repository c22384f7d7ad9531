package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hakichain/hakichain/internal/anchor"
	"github.com/hakichain/hakichain/internal/config"
	"github.com/hakichain/hakichain/internal/doctor"
)

// NewDoctorCmd creates the doctor command
func NewDoctorCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, wallet, chain and upstream services",
		Long: `Run diagnostics against the current configuration.

Checks that the config validates, that a wallet can sign, that the RPC
endpoint serves the configured chain id with contract code at each
address, and that the DAG explorer, IPFS and proof service credentials
are in place, and that the file descriptor limit suits the API server.

Exits non-zero when any check fails. Warnings do not fail the run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch doctor.Category(category) {
			case "", doctor.CategoryConfig, doctor.CategoryWallet, doctor.CategoryChain, doctor.CategoryServices, doctor.CategorySystem:
			default:
				return fmt.Errorf("unknown category %q (use config, wallet, chain, services or system)", category)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			checkers, err := defaultCheckers(cfg)
			if err != nil {
				return err
			}
			d := doctor.New(doctor.Options{
				JSON:     jsonOutput(),
				Category: doctor.Category(category),
			}, cmd.OutOrStdout(), checkers...)

			report, err := d.Run(cmd.Context())
			if err != nil {
				return err
			}
			if !report.Summary.IsHealthy() {
				return fmt.Errorf("%d check(s) failed", report.Summary.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only run checks in this category (config, wallet, chain, services, system)")

	return cmd
}

func defaultCheckers(cfg *config.Config) ([]doctor.Checker, error) {
	hc, err := upstreamHTTP(cfg)
	if err != nil {
		return nil, err
	}

	// Unconfigured upstreams stay nil interfaces, not typed nil pointers.
	var explorer doctor.BalanceReader
	if e := newExplorer(cfg, hc); e != nil {
		explorer = e
	}
	var ipfs doctor.Pinger
	if cfg.IPFS.APIURL != "" {
		ipfs = anchor.NewIPFSClient(cfg.IPFS.APIURL, upstreamTimeout)
	}

	return []doctor.Checker{
		doctor.NewConfigChecker(cfg),
		doctor.NewWalletChecker(cfg.Wallet),
		doctor.NewChainChecker(cfg.Chain, nil),
		doctor.NewExplorerChecker(explorer),
		doctor.NewIPFSChecker(cfg.IPFS.APIURL, ipfs),
		doctor.NewProofCredentialsChecker(cfg.Proof),
		doctor.NewFileDescriptorChecker(),
	}, nil
}
