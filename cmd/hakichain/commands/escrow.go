package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewEscrowCmd creates the escrow command group
func NewEscrowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "escrow",
		Short: "Fund, anchor, release and refund bounty escrows",
		Long: `Manage the BountyEscrow contract.

An escrow holds native currency for one bounty. The owner anchors a DAG proof
and then releases the funds to the beneficiary, or either the owner or the
funder refunds them.

Examples:
  hakichain escrow create 7 --beneficiary 0x7099... --amount 0.5
  hakichain escrow anchor 7 --dag 0xabc...
  hakichain escrow release 7
  hakichain escrow get 7`,
	}

	cmd.AddCommand(newEscrowCreateCmd())
	cmd.AddCommand(newEscrowAnchorCmd())
	cmd.AddCommand(newEscrowFinalizeCmd("release"))
	cmd.AddCommand(newEscrowFinalizeCmd("refund"))
	cmd.AddCommand(newEscrowGetCmd())
	return cmd
}

func newEscrowCreateCmd() *cobra.Command {
	var (
		beneficiary string
		amount      string
	)

	cmd := &cobra.Command{
		Use:   "create <bounty-id>",
		Short: "Create and fund an escrow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBountyID(args[0])
			if err != nil {
				return err
			}
			to, err := parseAddress("beneficiary", beneficiary)
			if err != nil {
				return err
			}
			wei, err := parseUnits(amount, 18)
			if err != nil {
				return err
			}

			s, err := openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			tx, err := s.client.CreateEscrow(cmd.Context(), id, to, wei)
			if err != nil {
				return err
			}
			return s.reportTx(cmd.Context(), "Escrow Created", tx, [][2]string{
				{"Bounty", id.String()},
				{"Beneficiary", to.Hex()},
				{"Amount", FormatUnits(wei, "ETH")},
			})
		},
	}

	cmd.Flags().StringVar(&beneficiary, "beneficiary", "", "Address paid on release")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount in ETH (e.g. 0.5)")
	_ = cmd.MarkFlagRequired("beneficiary")
	_ = cmd.MarkFlagRequired("amount")
	addWaitFlag(cmd)
	return cmd
}

func newEscrowAnchorCmd() *cobra.Command {
	var dagHash string

	cmd := &cobra.Command{
		Use:   "anchor <bounty-id>",
		Short: "Anchor the DAG proof that unlocks release (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBountyID(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			tx, err := s.client.AnchorDagProof(cmd.Context(), id, dagHash)
			if err != nil {
				return err
			}
			return s.reportTx(cmd.Context(), "DAG Proof Anchored", tx, [][2]string{
				{"Bounty", id.String()},
				{"DAG Proof", dagHash},
			})
		},
	}

	cmd.Flags().StringVar(&dagHash, "dag", "", "Constellation DAG proof hash")
	_ = cmd.MarkFlagRequired("dag")
	addWaitFlag(cmd)
	return cmd
}

// newEscrowFinalizeCmd builds release and refund, which differ only in the
// contract call and wording.
func newEscrowFinalizeCmd(action string) *cobra.Command {
	var yes bool

	short := "Release the escrow to the beneficiary (owner only)"
	title := "Escrow Released"
	if action == "refund" {
		short = "Refund the escrow to the funder (owner or funder)"
		title = "Escrow Refunded"
	}

	cmd := &cobra.Command{
		Use:   action + " <bounty-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBountyID(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			e, err := s.client.GetEscrow(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !yes {
				ok, err := Confirm(
					fmt.Sprintf("%s escrow for bounty %s?", action, id),
					fmt.Sprintf("%s held, status %s. This cannot be undone.", FormatUnits(e.Amount, "ETH"), e.Status()),
				)
				if err != nil {
					return err
				}
				if !ok {
					Info("Cancelled. Pass --yes to skip confirmation.")
					return nil
				}
			}

			call := s.client.ReleaseEscrow
			if action == "refund" {
				call = s.client.RefundEscrow
			}
			tx, err := call(cmd.Context(), id)
			if err != nil {
				return err
			}
			return s.reportTx(cmd.Context(), title, tx, [][2]string{
				{"Bounty", id.String()},
				{"Amount", FormatUnits(e.Amount, "ETH")},
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation")
	addWaitFlag(cmd)
	return cmd
}

func newEscrowGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <bounty-id>",
		Short: "Show an escrow and its derived status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBountyID(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			e, err := s.client.GetEscrow(cmd.Context(), id)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(map[string]interface{}{"id": id.String(), "escrow": e, "status": e.Status()})
			}

			fmt.Println(StatusBox("Escrow", [][2]string{
				{"Bounty", id.String()},
				{"Status", StatusBadge(string(e.Status()))},
				{"Funder", e.Funder.Hex()},
				{"Beneficiary", e.Beneficiary.Hex()},
				{"Amount", FormatUnits(e.Amount, "ETH")},
				{"DAG Proof", orDash(e.DagProofHash)},
				{"Created", formatTimestamp(e.CreatedAt.Int64())},
				{"Finalized", formatTimestamp(e.FinalizedAt.Int64())},
			}))
			return nil
		},
	}
}
