package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hakichain/hakichain/internal/chain"
)

// NewBountyCmd creates the bounty command group
func NewBountyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bounty",
		Short: "Manage bounties in the BountyRegistry",
		Long: `Create bounties, link their proofs and record submissions.

Examples:
  hakichain bounty upsert 7 --uri ipfs://Qm...     # Create or update bounty 7
  hakichain bounty link 7 --story a1 --icp c1 --dag d1
  hakichain bounty submit 7 --doc brief-v2 --dag d2
  hakichain bounty get 7
  hakichain bounty submissions 7`,
	}

	cmd.AddCommand(newBountyUpsertCmd())
	cmd.AddCommand(newBountyLinkCmd())
	cmd.AddCommand(newBountySubmitCmd())
	cmd.AddCommand(newBountyGetCmd())
	cmd.AddCommand(newBountySubmissionsCmd())
	return cmd
}

// addProofFlags binds --story, --icp and --dag to p.
func addProofFlags(cmd *cobra.Command, p *chain.ProofIDs) {
	cmd.Flags().StringVar(&p.StoryAssetID, "story", "", "Story Protocol asset id")
	cmd.Flags().StringVar(&p.IcpCanisterID, "icp", "", "ICP canister id")
	cmd.Flags().StringVar(&p.DagProofHash, "dag", "", "Constellation DAG proof hash")
}

func newBountyUpsertCmd() *cobra.Command {
	var (
		uri    string
		active bool
	)

	cmd := &cobra.Command{
		Use:   "upsert <bounty-id>",
		Short: "Create a bounty or update its metadata URI and active flag",
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

			tx, err := s.client.UpsertBounty(cmd.Context(), id, uri, active)
			if err != nil {
				return err
			}
			return s.reportTx(cmd.Context(), "Bounty Upserted", tx, [][2]string{
				{"Bounty", id.String()},
				{"Metadata URI", orDash(uri)},
				{"Active", yesNo(active)},
			})
		},
	}

	cmd.Flags().StringVar(&uri, "uri", "", "Metadata URI (e.g. ipfs://...)")
	cmd.Flags().BoolVar(&active, "active", true, "Accept submissions")
	addWaitFlag(cmd)
	return cmd
}

func newBountyLinkCmd() *cobra.Command {
	var proofs chain.ProofIDs

	cmd := &cobra.Command{
		Use:   "link <bounty-id>",
		Short: "Link Story, ICP and DAG proofs to a bounty",
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

			tx, err := s.client.LinkBountyProofs(cmd.Context(), id, proofs)
			if err != nil {
				return err
			}
			return s.reportTx(cmd.Context(), "Bounty Proofs Linked", tx, append([][2]string{{"Bounty", id.String()}}, proofRows(proofs)...))
		},
	}

	addProofFlags(cmd, &proofs)
	addWaitFlag(cmd)
	return cmd
}

func newBountySubmitCmd() *cobra.Command {
	var (
		docID  string
		proofs chain.ProofIDs
	)

	cmd := &cobra.Command{
		Use:   "submit <bounty-id>",
		Short: "Register a submission against an active bounty",
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

			tx, err := s.client.RegisterSubmission(cmd.Context(), id, docID, proofs)
			if err != nil {
				return err
			}
			fields := [][2]string{{"Bounty", id.String()}, {"Document", docID}}
			return s.reportTx(cmd.Context(), "Submission Registered", tx, append(fields, proofRows(proofs)...))
		},
	}

	cmd.Flags().StringVar(&docID, "doc", "", "Document id")
	_ = cmd.MarkFlagRequired("doc")
	addProofFlags(cmd, &proofs)
	addWaitFlag(cmd)
	return cmd
}

func newBountyGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <bounty-id>",
		Short: "Show a bounty",
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

			b, err := s.client.GetBounty(cmd.Context(), id)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(map[string]interface{}{"id": id.String(), "bounty": b, "exists": b.Exists()})
			}
			if !b.Exists() {
				Warning(fmt.Sprintf("Bounty %s does not exist", id))
				return nil
			}

			state := "inactive"
			if b.Active {
				state = "active"
			}
			fields := [][2]string{
				{"Bounty", id.String()},
				{"Creator", b.Creator.Hex()},
				{"Metadata URI", orDash(b.MetadataUri)},
				{"Status", StatusBadge(state)},
			}
			fields = append(fields, proofRows(chain.ProofIDs{
				StoryAssetID:  b.StoryAssetId,
				IcpCanisterID: b.IcpCanisterId,
				DagProofHash:  b.DagProofHash,
			})...)
			fmt.Println(StatusBox("Bounty", fields))
			return nil
		},
	}
}

func newBountySubmissionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submissions <bounty-id>",
		Short: "List a bounty's submissions in order",
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

			subs, err := s.client.GetBountySubmissions(cmd.Context(), id)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(subs)
			}
			if len(subs) == 0 {
				Info(fmt.Sprintf("No submissions for bounty %s", id))
				return nil
			}

			rows := make([][]string, len(subs))
			for i, sub := range subs {
				rows[i] = []string{
					fmt.Sprint(i),
					FormatAddress(sub.Submitter.Hex()),
					sub.DocId,
					orDash(sub.DagProofHash),
					formatTimestamp(sub.Timestamp.Int64()),
				}
			}
			fmt.Println(RenderTable([]string{"#", "Submitter", "Document", "DAG Proof", "Submitted"}, rows))
			return nil
		},
	}
}

func proofRows(p chain.ProofIDs) [][2]string {
	return [][2]string{
		{"Story Asset", orDash(p.StoryAssetID)},
		{"ICP Canister", orDash(p.IcpCanisterID)},
		{"DAG Proof", orDash(p.DagProofHash)},
	}
}

func formatTimestamp(unix int64) string {
	if unix == 0 {
		return "-"
	}
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}
