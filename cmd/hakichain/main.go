package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hakichain/hakichain/cmd/hakichain/commands"
)

var rootCmd = &cobra.Command{
	Use:           "hakichain",
	Short:         "HakiChain bounty, escrow and provenance client",
	Long:          "Manage legal-work bounties on-chain, anchor documents on Constellation, and record proofs on ICP and Story Protocol.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return commands.ValidateOutputFormat()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&commands.ConfigPath, "config", "", "Path to config file (default: ~/.hakichain/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&commands.OutputFormat, "output", "o", "", "Output format: json")
	rootCmd.PersistentFlags().BoolVar(&commands.Mock, "mock", false, "Use in-memory contracts")
}

func main() {
	rootCmd.AddCommand(commands.NewInitCmd())
	rootCmd.AddCommand(commands.NewWalletCmd())
	rootCmd.AddCommand(commands.NewBountyCmd())
	rootCmd.AddCommand(commands.NewEscrowCmd())
	rootCmd.AddCommand(commands.NewTokenCmd())
	rootCmd.AddCommand(commands.NewProofCmd())
	rootCmd.AddCommand(commands.NewDAGCmd())
	rootCmd.AddCommand(commands.NewServeCmd())
	rootCmd.AddCommand(commands.NewDoctorCmd())
	rootCmd.AddCommand(commands.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
