package commands

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/hakichain/hakichain/internal/api"
	"github.com/hakichain/hakichain/internal/chain"
	"github.com/hakichain/hakichain/internal/config"
	"github.com/hakichain/hakichain/internal/logging"
	"github.com/hakichain/hakichain/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	var (
		port        int
		generateKey bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HakiChain HTTP API",
		Long: `Serve the DAG scanner, proof services, contract reads and the
contract event feed over HTTP.

Public routes:   GET /  /health  /balance  /dag-data
Authenticated:   /v1/...  /metrics  (when HAKICHAIN_API_KEY or api.api_key_hash is set)

Examples:
  hakichain serve                 # Listen on api.port (default 8080)
  hakichain serve --port 8080
  hakichain serve --mock          # In-memory contracts, events over /v1/events
  hakichain serve --generate-key  # Print a new API key and its bcrypt hash`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if generateKey {
				return printNewAPIKey(cmd)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.API.Port = port
			}
			return runServer(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides api.port and PORT)")
	cmd.Flags().BoolVar(&generateKey, "generate-key", false, "Print a new API key and its bcrypt hash, then exit")
	return cmd
}

func printNewAPIKey(cmd *cobra.Command) error {
	plain, hash, err := api.GenerateAPIKey()
	if err != nil {
		return err
	}
	if jsonOutput() {
		return printJSON(map[string]string{"apiKey": plain, "apiKeyHash": hash})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "API key:  %s\n", plain)
	fmt.Fprintf(out, "Hash:     %s\n\n", hash)
	fmt.Fprintln(out, "Put the hash in api.api_key_hash. The key is not shown again.")
	return nil
}

func runServer(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewCollector()

	// Read-only unless a password is available without prompting.
	s, err := newSession(cfg, false)
	if err != nil {
		return err
	}
	defer s.Close()

	hc, err := upstreamHTTP(cfg)
	if err != nil {
		return err
	}
	explorer := newExplorer(cfg, hc)
	deps := api.Dependencies{
		Chain:    s.client,
		Proofs:   newProofServices(cfg, hc, m),
		Explorer: explorer,
		Scanner:  newScanner(explorer, cfg, m),
		Anchor:   newPipeline(cfg, hc, m),
		Metrics:  m,
	}

	var watcher *chain.EventWatcher
	switch {
	case s.client.IsMockMode():
		deps.Events = s.client.Events()
	case cfg.API.EnableEvents:
		watcher = newEventWatcher(ctx, s.client, cfg.Chain)
		if watcher != nil {
			deps.Events = watcher.Events()
		}
	}

	server := api.NewServer(api.ServerConfigFromConfig(cfg.API), deps)
	if err := server.Start(ctx); err != nil {
		if watcher != nil {
			watcher.Stop()
		}
		return err
	}

	if !jsonOutput() {
		Success(fmt.Sprintf("%s API listening on %s", Logo(), net.JoinHostPort(cfg.API.Host, fmt.Sprint(cfg.API.Port))))
		if explorer == nil {
			fmt.Println(Hint(fmt.Sprintf("DAG routes return 503 until %s is set", config.EnvDAGAddress)))
		}
	}

	<-ctx.Done()
	logging.Info("shutting down", logging.Component("cli"))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = server.Stop(shutdownCtx)
	if watcher != nil {
		watcher.Stop()
	}
	return err
}

// newEventWatcher connects the base client and starts subscriptions for the
// configured contracts. Connection failures leave the event feed idle.
func newEventWatcher(ctx context.Context, client *chain.Client, cfg config.ChainConfig) *chain.EventWatcher {
	base := client.Base()
	if base == nil || !base.HasWSConfig() {
		return nil
	}
	if err := base.Connect(ctx); err != nil {
		logging.Warn("event feed disabled: failed to connect", logging.Component("events"), logging.Err(err))
		return nil
	}

	watcher := chain.NewEventWatcher(base,
		optionalAddress(cfg.RegistryAddress, config.EnvRegistryAddress),
		optionalAddress(cfg.EscrowAddress, config.EnvEscrowAddress),
		optionalAddress(cfg.TokenAddress, config.EnvTokenAddress))
	if err := watcher.Start(ctx); err != nil {
		logging.Warn("event feed disabled", logging.Component("events"), logging.Err(err))
		return nil
	}
	return watcher
}

// optionalAddress returns the zero address for a missing or invalid value,
// which the watcher skips.
func optionalAddress(value, envVar string) common.Address {
	addr, err := chain.ResolveAddress(value, envVar)
	if err != nil {
		logging.Debug("contract not watched", logging.Component("events"), "env", envVar, logging.Err(err))
		return common.Address{}
	}
	return addr
}
