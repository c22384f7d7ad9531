package commands

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/hakichain/hakichain/internal/chain"
)

const tokenUnit = "HAKI"

// NewTokenCmd creates the token command group
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint HakiToken with provenance and manage minters",
		Long: `Interact with the HakiToken contract.

Every mint records the Story, ICP and DAG proofs under a workflow id derived
from the workflow tag and the three proof ids.

Examples:
  hakichain token mint --to 0x7099... --amount 10 --tag bounty-7 --story a1 --icp c1 --dag d1
  hakichain token workflow-id --tag bounty-7 --story a1 --icp c1 --dag d1
  hakichain token provenance 0x3f1c...
  hakichain token balance 0x7099...`,
	}

	cmd.AddCommand(newTokenMintCmd())
	cmd.AddCommand(newTokenProvenanceCmd())
	cmd.AddCommand(newTokenWorkflowIDCmd())
	cmd.AddCommand(newTokenMinterCmd("grant-minter"))
	cmd.AddCommand(newTokenMinterCmd("revoke-minter"))
	cmd.AddCommand(newTokenIsMinterCmd())
	cmd.AddCommand(newTokenBalanceCmd())
	return cmd
}

func newTokenMintCmd() *cobra.Command {
	var (
		to     string
		amount string
		tag    string
		proofs chain.ProofIDs
	)

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint tokens and log provenance (minter role required)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recipient, err := parseAddress("recipient", to)
			if err != nil {
				return err
			}
			units, err := parseUnits(amount, 18)
			if err != nil {
				return err
			}
			if units.Sign() == 0 {
				return fmt.Errorf("%w: amount must be positive", errInvalidAmount)
			}
			workflowID, err := chain.WorkflowID(tag, proofs)
			if err != nil {
				return err
			}

			s, err := openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			tx, err := s.client.MintHakiTokenWithProvenance(cmd.Context(), chain.MintRequest{
				To:          recipient,
				Amount:      units,
				Proofs:      proofs,
				WorkflowTag: tag,
			})
			if err != nil {
				return err
			}
			fields := [][2]string{
				{"Recipient", recipient.Hex()},
				{"Amount", FormatUnits(units, tokenUnit)},
				{"Workflow Tag", tag},
				{"Workflow ID", workflowID.Hex()},
			}
			return s.reportTx(cmd.Context(), "Tokens Minted", tx, append(fields, proofRows(proofs)...))
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Recipient address")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount in HAKI (e.g. 10.5)")
	cmd.Flags().StringVar(&tag, "tag", "", "Workflow tag")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	addProofFlags(cmd, &proofs)
	addWaitFlag(cmd)
	return cmd
}

func newTokenWorkflowIDCmd() *cobra.Command {
	var (
		tag    string
		proofs chain.ProofIDs
	)

	cmd := &cobra.Command{
		Use:   "workflow-id",
		Short: "Compute a workflow id offline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := chain.WorkflowID(tag, proofs)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(map[string]string{"workflowId": id.Hex()})
			}
			fmt.Println(id.Hex())
			return nil
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "Workflow tag")
	addProofFlags(cmd, &proofs)
	return cmd
}

func parseWorkflowID(raw string) (common.Hash, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if len(trimmed) != 64 {
		return common.Hash{}, fmt.Errorf("invalid workflow id %q: want 32 bytes of hex", raw)
	}
	for _, c := range trimmed {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return common.Hash{}, fmt.Errorf("invalid workflow id %q: want 32 bytes of hex", raw)
		}
	}
	return common.HexToHash(trimmed), nil
}

func newTokenProvenanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "provenance <workflow-id>",
		Short: "Show the provenance logged for a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseWorkflowID(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := s.client.GetProvenance(cmd.Context(), id)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(map[string]interface{}{"workflowId": id.Hex(), "provenance": p, "exists": p.Exists()})
			}
			if !p.Exists() {
				Warning(fmt.Sprintf("No provenance logged for %s", id.Hex()))
				return nil
			}

			fields := [][2]string{
				{"Workflow ID", id.Hex()},
				{"Minted", FormatUnits(p.MintedAmount, tokenUnit)},
				{"Logged", formatTimestamp(p.Timestamp.Int64())},
			}
			fields = append(fields, proofRows(chain.ProofIDs{
				StoryAssetID:  p.StoryAssetId,
				IcpCanisterID: p.IcpCanisterId,
				DagProofHash:  p.DagProofHash,
			})...)
			fmt.Println(StatusBox("Provenance", fields))
			return nil
		},
	}
}

// newTokenMinterCmd builds grant-minter and revoke-minter.
func newTokenMinterCmd(use string) *cobra.Command {
	grant := use == "grant-minter"
	short := "Grant MINTER_ROLE to an account (admin only)"
	title := "Minter Granted"
	if !grant {
		short = "Revoke MINTER_ROLE from an account (admin only)"
		title = "Minter Revoked"
	}

	cmd := &cobra.Command{
		Use:   use + " <address>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := parseAddress("account", args[0])
			if err != nil {
				return err
			}
			s, err := openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()

			call := s.client.GrantMinterRole
			if !grant {
				call = s.client.RevokeMinterRole
			}
			tx, err := call(cmd.Context(), account)
			if err != nil {
				return err
			}
			return s.reportTx(cmd.Context(), title, tx, [][2]string{{"Account", account.Hex()}})
		},
	}
	addWaitFlag(cmd)
	return cmd
}

func newTokenIsMinterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "is-minter <address>",
		Short: "Check whether an account holds MINTER_ROLE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := parseAddress("account", args[0])
			if err != nil {
				return err
			}
			s, err := openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			ok, err := s.client.IsMinter(cmd.Context(), account)
			if err != nil {
				return err
			}
			return emit("Minter Role", [][2]string{
				{"Account", account.Hex()},
				{"Minter", StatusBadge(yesNo(ok))},
			}, map[string]interface{}{"account": account.Hex(), "minter": ok})
		},
	}
}

func newTokenBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Show a HakiToken balance (default: wallet address)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			var account common.Address
			switch {
			case len(args) == 1:
				if account, err = parseAddress("account", args[0]); err != nil {
					return err
				}
			case s.wallet != nil:
				account = s.wallet.Address()
			default:
				return fmt.Errorf("no address given and no wallet found")
			}

			bal, err := s.client.TokenBalance(cmd.Context(), account)
			if err != nil {
				return err
			}
			return emit("HakiToken Balance", [][2]string{
				{"Account", account.Hex()},
				{"Balance", FormatUnits(bal, tokenUnit)},
			}, map[string]interface{}{"account": account.Hex(), "balance": bal.String()})
		},
	}
}
