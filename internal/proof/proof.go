package proof

import (
	"time"

	"github.com/hakichain/hakichain/internal/config"
	"github.com/hakichain/hakichain/internal/metrics"
)

// Services bundles the three networks built from one configuration.
type Services struct {
	DAG   *DAG
	ICP   *ICP
	Story *Story
}

// NewServices builds the DAG, ICP and Story clients. extra options are
// applied after the configured timeout and metrics.
func NewServices(cfg config.ProofConfig, m *metrics.Collector, extra ...Option) *Services {
	opts := append([]Option{
		WithTimeout(time.Duration(cfg.TimeoutSecs) * time.Second),
		WithMetrics(m),
	}, extra...)
	return &Services{
		DAG:   NewDAG(cfg.DAG, opts...),
		ICP:   NewICP(cfg.ICP, opts...),
		Story: NewStory(cfg.Story, opts...),
	}
}
