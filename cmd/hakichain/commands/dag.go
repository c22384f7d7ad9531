package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hakichain/hakichain/internal/anchor"
	"github.com/hakichain/hakichain/internal/config"
	"github.com/hakichain/hakichain/internal/dag"
)

var errDAGNotConfigured = fmt.Errorf("DAG address not configured (set %s)", config.EnvDAGAddress)

// NewDAGCmd creates the dag command group
func NewDAGCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dag",
		Short: "Scan the Constellation DAG and anchor documents",
		Long: `Read the configured DAG address from the block explorer and anchor
documents through IPFS and the DAG wallet gateway.

Examples:
  hakichain dag balance
  hakichain dag scan --documents
  hakichain dag push brief.md --id brief-v2 --title "Brief v2"
  hakichain dag watch ./filings --meta case=1042`,
	}

	cmd.AddCommand(newDAGScanCmd())
	cmd.AddCommand(newDAGBalanceCmd())
	cmd.AddCommand(newDAGPushCmd())
	cmd.AddCommand(newDAGWatchCmd())
	return cmd
}

func newDAGScanCmd() *cobra.Command {
	var documentsOnly bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List every transaction of the DAG address with parsed memos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			hc, err := upstreamHTTP(cfg)
			if err != nil {
				return err
			}
			explorer := newExplorer(cfg, hc)
			if explorer == nil {
				return errDAGNotConfigured
			}

			var txs []dag.Transaction
			err = WithSpinner("Scanning "+FormatAddress(explorer.Address()), func() error {
				txs, err = newScanner(explorer, cfg, nil).Scan(cmd.Context())
				return err
			})
			if err != nil {
				return err
			}

			if documentsOnly {
				filtered := txs[:0]
				for _, tx := range txs {
					if _, ok := tx.Document(); ok {
						filtered = append(filtered, tx)
					}
				}
				txs = filtered
			}

			if jsonOutput() {
				if txs == nil {
					txs = []dag.Transaction{}
				}
				return printJSON(map[string]interface{}{"totalTransactions": len(txs), "transactions": txs})
			}
			if len(txs) == 0 {
				Info("No transactions found")
				return nil
			}

			rows := make([][]string, 0, len(txs))
			for _, tx := range txs {
				docID, title := "-", "-"
				if doc, ok := tx.Document(); ok {
					if id, ok := doc["document_id"]; ok && id != nil {
						docID = fmt.Sprint(id)
					}
					if t, ok := doc["title"].(string); ok && t != "" {
						title = t
					}
				}
				rows = append(rows, []string{FormatAddress(tx.Hash()), docID, title})
			}
			fmt.Println(RenderTable([]string{"Hash", "Document", "Title"}, rows))
			fmt.Println(Hint(fmt.Sprintf("%d transactions", len(txs))))
			return nil
		},
	}

	cmd.Flags().BoolVar(&documentsOnly, "documents", false, "Only show transactions carrying a document memo")
	return cmd
}

func newDAGBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the DAG balance of the configured address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			hc, err := upstreamHTTP(cfg)
			if err != nil {
				return err
			}
			explorer := newExplorer(cfg, hc)
			if explorer == nil {
				return errDAGNotConfigured
			}

			bal, err := explorer.Balance(cmd.Context())
			if err != nil {
				return err
			}
			f, _ := bal.Float64()
			return emit("DAG Balance", [][2]string{
				{"Address", explorer.Address()},
				{"Balance", bal.Text('f', -1) + " DAG"},
			}, map[string]interface{}{"address": explorer.Address(), "balance": f})
		},
	}
}

func newDAGPushCmd() *cobra.Command {
	var (
		docID string
		title string
		meta  map[string]string
	)

	cmd := &cobra.Command{
		Use:   "push <file>",
		Short: "Upload a document to IPFS and anchor its hash on the DAG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read document: %w", err)
			}
			if docID == "" {
				docID = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			hc, err := upstreamHTTP(cfg)
			if err != nil {
				return err
			}
			pipeline := newPipeline(cfg, hc, nil)

			var res *anchor.Result
			err = WithSpinner("Anchoring "+docID, func() error {
				res, err = pipeline.PushDocument(cmd.Context(), anchor.Document{
					ID:       docID,
					Title:    title,
					Content:  string(content),
					Metadata: toObject(meta),
				})
				return err
			})
			if errors.Is(err, anchor.ErrInvalidDocument) {
				return err
			}
			if err != nil {
				return fmt.Errorf("failed to anchor document: %w", err)
			}

			if res.IPFSCID == "" || res.DagTx == "" {
				Warning("One or more anchoring stages did not complete; see logs")
			}
			return emit("Document Anchored", [][2]string{
				{"Document", docID},
				{"Request", res.RequestID},
				{"SHA-256", res.ContentHash},
				{"IPFS CID", orDash(res.IPFSCID)},
				{"DAG Tx", orDash(res.DagTx)},
			}, res)
		},
	}

	cmd.Flags().StringVar(&docID, "id", "", "Document id (default: file name)")
	cmd.Flags().StringVar(&title, "title", "", "Document title")
	metaFlag(cmd, &meta, "meta", "Metadata entries (key=value)")
	return cmd
}

func newDAGWatchCmd() *cobra.Command {
	var (
		settle time.Duration
		meta   map[string]string
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Anchor every file written into a directory until interrupted",
		Long: `Watch a directory and anchor each new or changed file once it has
been quiet for --settle. The document id is the file name without its
extension. Files starting with a dot are ignored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			hc, err := upstreamHTTP(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w := anchor.NewDirWatcher(args[0], newPipeline(cfg, hc, nil), settle, toObject(meta))
			events := make(chan anchor.WatchEvent)
			done := make(chan error, 1)
			go func() {
				done <- w.Run(ctx, events)
				close(events)
			}()

			if !jsonOutput() {
				Info(fmt.Sprintf("Watching %s (Ctrl+C to stop)", args[0]))
			}
			for ev := range events {
				if jsonOutput() {
					out := map[string]interface{}{"path": ev.Path, "result": ev.Result}
					if ev.Err != nil {
						out["error"] = ev.Err.Error()
					}
					if err := printJSON(out); err != nil {
						return err
					}
					continue
				}
				switch {
				case ev.Err != nil:
					Warning(fmt.Sprintf("%s: %v", filepath.Base(ev.Path), ev.Err))
				case !ev.Result.Complete:
					Warning(fmt.Sprintf("%s: hashed %s, a stage failed; rewrite the file to retry", filepath.Base(ev.Path), ev.Result.ContentHash[:12]))
				case ev.Result.DagTx == "":
					Warning(fmt.Sprintf("%s: hashed %s, not anchored on the DAG", filepath.Base(ev.Path), ev.Result.ContentHash[:12]))
				default:
					Success(fmt.Sprintf("%s: anchored in %s", filepath.Base(ev.Path), ev.Result.DagTx))
				}
			}
			return <-done
		},
	}

	cmd.Flags().DurationVar(&settle, "settle", anchor.DefaultSettle, "Quiet period before a changed file is anchored")
	metaFlag(cmd, &meta, "meta", "Metadata added to every document (key=value)")
	return cmd
}
