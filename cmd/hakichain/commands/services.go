package commands

import (
	"time"

	"github.com/hakichain/hakichain/internal/anchor"
	"github.com/hakichain/hakichain/internal/config"
	"github.com/hakichain/hakichain/internal/dag"
	"github.com/hakichain/hakichain/internal/httpclient"
	"github.com/hakichain/hakichain/internal/logging"
	"github.com/hakichain/hakichain/internal/metrics"
	"github.com/hakichain/hakichain/internal/proof"
)

const upstreamTimeout = 30 * time.Second

// upstreamHTTP returns the JSON client for proof services, the explorer and
// the gateway. nil means the package defaults (direct connections).
func upstreamHTTP(cfg *config.Config) (*httpclient.Client, error) {
	if cfg.SOCKSProxy == "" {
		return nil, nil
	}
	hc, err := httpclient.NewSOCKS5(cfg.SOCKSProxy)
	if err != nil {
		return nil, err
	}
	logging.Debug("routing upstream requests through SOCKS5", "proxy", cfg.SOCKSProxy)
	return hc, nil
}

// newExplorer returns nil when no DAG address is configured, which the API
// reports as "Network not ready."
func newExplorer(cfg *config.Config, hc *httpclient.Client) *dag.Explorer {
	if cfg.DAG.Address == "" || cfg.DAG.BlockExplorerURL == "" {
		return nil
	}
	return dag.NewExplorer(cfg.DAG.BlockExplorerURL, cfg.DAG.Address, hc, upstreamTimeout)
}

func newProofServices(cfg *config.Config, hc *httpclient.Client, m *metrics.Collector) *proof.Services {
	var opts []proof.Option
	if hc != nil {
		opts = append(opts, proof.WithHTTPClient(hc))
	}
	return proof.NewServices(cfg.Proof, m, opts...)
}

func newScanner(explorer *dag.Explorer, cfg *config.Config, m *metrics.Collector) *dag.Scanner {
	if explorer == nil {
		return nil
	}
	return dag.NewScanner(explorer, cfg.DAG.PageLimit, m)
}

// newPipeline wires IPFS and the DAG gateway. A stage whose endpoint is not
// configured is skipped by the pipeline, so its dependency must be a nil
// interface rather than a nil pointer.
func newPipeline(cfg *config.Config, hc *httpclient.Client, m *metrics.Collector) *anchor.Pipeline {
	var store anchor.ContentStore
	if cfg.IPFS.APIURL != "" {
		ipfs := anchor.NewIPFSClient(cfg.IPFS.APIURL, upstreamTimeout)
		if !ipfs.IsUp() {
			logging.Warn("IPFS API not reachable, uploads will fail until it is", logging.Component("anchor"), "api", cfg.IPFS.APIURL)
		}
		store = ipfs
	}

	var sender anchor.Sender
	if cfg.DAG.GatewayURL != "" && cfg.DAG.AnchorDestination != "" {
		sender = anchor.NewGateway(cfg.DAG.GatewayURL, hc, upstreamTimeout)
	} else {
		logging.Info("DAG gateway not configured, anchoring stage disabled", logging.Component("anchor"))
	}

	return anchor.NewPipeline(store, sender, cfg.DAG.AnchorDestination, cfg.DAG.AnchorAmount, m)
}
