package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hakichain/hakichain/internal/anchor"
	"github.com/hakichain/hakichain/internal/proof"
)

// NewProofCmd creates the proof command group
func NewProofCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proof",
		Short: "Record and fetch proofs on Constellation, ICP and Story",
		Long: `Call the external proof services.

  dag-record / dag-get        Constellation DAG proof API (DAG_API_KEY)
  icp-store / icp-get         ICP canister metadata (ICP_AGENT_ID)
  story-register / story-license
                              Story Protocol IP assets (STORY_API_KEY)

Examples:
  hakichain proof dag-record --workflow wf-1 --doc brief-v2 --summary-hash 9f86...
  hakichain proof icp-store --doc brief-v2 --file brief.md --meta court=nairobi
  hakichain proof story-register --title "Brief v2" --ipfs QmX...
  hakichain proof story-license a1 --terms '{"commercialUse":false}'`,
	}

	cmd.AddCommand(newProofDagRecordCmd())
	cmd.AddCommand(newProofDagGetCmd())
	cmd.AddCommand(newProofIcpStoreCmd())
	cmd.AddCommand(newProofIcpGetCmd())
	cmd.AddCommand(newProofStoryRegisterCmd())
	cmd.AddCommand(newProofStoryLicenseCmd())
	return cmd
}

// proofServices builds the three clients from config. Metrics are not
// collected for one-shot CLI calls.
func proofServices() (*proof.Services, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	hc, err := upstreamHTTP(cfg)
	if err != nil {
		return nil, err
	}
	return newProofServices(cfg, hc, nil), nil
}

func metaFlag(cmd *cobra.Command, dst *map[string]string, name, usage string) {
	cmd.Flags().StringToStringVar(dst, name, nil, usage)
}

func toObject(kv map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(kv))
	for k, v := range kv {
		out[k] = v
	}
	return out
}

// printResult prints a decoded response or notes an empty acknowledgement.
func printResult(title string, v interface{}, empty bool) error {
	if empty {
		if jsonOutput() {
			return printJSON(map[string]interface{}{"acknowledged": true})
		}
		Success(title + " (empty response)")
		return nil
	}
	if !jsonOutput() {
		Success(title)
	}
	return printJSON(v)
}

func newProofDagRecordCmd() *cobra.Command {
	var (
		payload  proof.DagProofPayload
		evidence map[string]string
	)

	cmd := &cobra.Command{
		Use:   "dag-record",
		Short: "Record a reasoning trail as a Constellation DAG proof",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := proofServices()
			if err != nil {
				return err
			}
			payload.Evidence = toObject(evidence)

			var resp *proof.DagProofResponse
			err = WithSpinner("Recording DAG proof", func() error {
				resp, err = svc.DAG.RecordDagProof(cmd.Context(), payload)
				return err
			})
			if err != nil {
				return err
			}
			if resp != nil && !jsonOutput() {
				fmt.Println(StatusBox("DAG Proof", [][2]string{
					{"DAG Hash", resp.DagHash},
					{"Submitted", orDash(resp.SubmittedAt)},
				}))
				return nil
			}
			return printResult("DAG proof recorded", resp, resp == nil)
		},
	}

	cmd.Flags().StringVar(&payload.WorkflowID, "workflow", "", "Workflow id")
	cmd.Flags().StringVar(&payload.DocID, "doc", "", "Document id")
	cmd.Flags().StringVar(&payload.SummaryHash, "summary-hash", "", "Hash of the reasoning summary")
	metaFlag(cmd, &evidence, "evidence", "Evidence entries (key=value)")
	_ = cmd.MarkFlagRequired("doc")
	return cmd
}

func newProofDagGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dag-get <dag-hash>",
		Short: "Fetch the status of a DAG proof",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := proofServices()
			if err != nil {
				return err
			}
			raw, err := svc.DAG.GetDagProof(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printResult("DAG proof "+args[0], raw, len(raw) == 0)
		},
	}
}

func newProofIcpStoreCmd() *cobra.Command {
	var (
		payload proof.StoreIcpMetadataPayload
		file    string
		meta    map[string]string
	)

	cmd := &cobra.Command{
		Use:   "icp-store",
		Short: "Store document metadata in the ICP canister",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				content, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read document: %w", err)
				}
				payload.Hash = anchor.ContentHash(string(content))
			}
			if payload.Hash == "" {
				return fmt.Errorf("either --hash or --file is required")
			}
			payload.Metadata = toObject(meta)

			svc, err := proofServices()
			if err != nil {
				return err
			}
			var resp *proof.IcpMetadataResponse
			err = WithSpinner("Storing ICP metadata", func() error {
				resp, err = svc.ICP.StoreIcpMetadata(cmd.Context(), payload)
				return err
			})
			if err != nil {
				return err
			}
			if resp != nil && !jsonOutput() {
				fmt.Println(StatusBox("ICP Metadata", [][2]string{
					{"Document", payload.DocID},
					{"SHA-256", payload.Hash},
					{"Canister", resp.CanisterID},
					{"Record", resp.RecordID},
					{"Anchor CID", orDash(resp.AnchorCID)},
				}))
				return nil
			}
			return printResult("ICP metadata stored", resp, resp == nil)
		},
	}

	cmd.Flags().StringVar(&payload.DocID, "doc", "", "Document id")
	cmd.Flags().StringVar(&payload.Hash, "hash", "", "SHA-256 of the document (hex)")
	cmd.Flags().StringVar(&file, "file", "", "Hash this file instead of passing --hash")
	metaFlag(cmd, &meta, "meta", "Metadata entries (key=value)")
	_ = cmd.MarkFlagRequired("doc")
	return cmd
}

func newProofIcpGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "icp-get <canister-id> <record-id>",
		Short: "Fetch a metadata record from an ICP canister",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := proofServices()
			if err != nil {
				return err
			}
			raw, err := svc.ICP.GetIcpMetadata(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printResult("ICP record "+args[1], raw, len(raw) == 0)
		},
	}
}

func newProofStoryRegisterCmd() *cobra.Command {
	var (
		payload proof.RegisterStoryAssetPayload
		meta    map[string]string
	)

	cmd := &cobra.Command{
		Use:   "story-register",
		Short: "Register a document as a Story Protocol IP asset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := proofServices()
			if err != nil {
				return err
			}
			payload.Metadata = toObject(meta)

			var resp *proof.StoryAssetResponse
			err = WithSpinner("Registering Story asset", func() error {
				resp, err = svc.Story.RegisterStoryAsset(cmd.Context(), payload)
				return err
			})
			if err != nil {
				return err
			}
			if resp != nil && !jsonOutput() {
				fmt.Println(StatusBox("Story Asset", [][2]string{
					{"Asset ID", resp.AssetID},
					{"Tx Hash", orDash(resp.TxHash)},
					{"Metadata URI", orDash(resp.MetadataURI)},
				}))
				return nil
			}
			return printResult("Story asset registered", resp, resp == nil)
		},
	}

	cmd.Flags().StringVar(&payload.Title, "title", "", "Asset title")
	cmd.Flags().StringVar(&payload.Description, "description", "", "Asset description")
	cmd.Flags().StringVar(&payload.IPFSHash, "ipfs", "", "IPFS CID of the document")
	cmd.Flags().StringVar(&payload.LicenseType, "license", "", "License type (default standard)")
	metaFlag(cmd, &meta, "meta", "Metadata entries (key=value)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("ipfs")
	return cmd
}

func newProofStoryLicenseCmd() *cobra.Command {
	var terms string

	cmd := &cobra.Command{
		Use:   "story-license <asset-id>",
		Short: "Attach licensing terms to a Story asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			licensing := map[string]interface{}{}
			if terms != "" {
				if err := json.Unmarshal([]byte(terms), &licensing); err != nil {
					return fmt.Errorf("invalid --terms: %w", err)
				}
			}

			svc, err := proofServices()
			if err != nil {
				return err
			}
			raw, err := svc.Story.UpdateStoryAssetLicensing(cmd.Context(), args[0], licensing)
			if err != nil {
				return err
			}
			return printResult("Licensing updated for "+args[0], raw, len(raw) == 0)
		},
	}

	cmd.Flags().StringVar(&terms, "terms", "", "Licensing terms as a JSON object")
	return cmd
}
