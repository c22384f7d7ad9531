package metrics

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hakichain"

// Collector owns a dedicated Prometheus registry with the service metrics.
// All methods are safe on a nil *Collector, which records nothing.
type Collector struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	chainCalls     *prometheus.CounterVec
	proofRequests  *prometheus.CounterVec
	scannedTxs     prometheus.Counter
	scannedDocs    prometheus.Counter
	anchorSteps    *prometheus.CounterVec
	contractEvents *prometheus.CounterVec
	wsClients      prometheus.Gauge
	goroutineCount prometheus.Gauge
	uptimeSeconds  prometheus.Gauge

	startTime time.Time
}

// NewCollector registers every metric in a fresh registry so tests and
// multiple servers do not collide on the global one.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status code.",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route"}),
		chainCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_calls_total",
			Help:      "Contract calls by operation and result.",
		}, []string{"op", "result"}),
		proofRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proof_requests_total",
			Help:      "Proof service requests by network, operation and result.",
		}, []string{"network", "op", "result"}),
		scannedTxs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dag_transactions_scanned_total",
			Help:      "Constellation transactions read by the memo scanner.",
		}),
		scannedDocs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dag_documents_found_total",
			Help:      "Transactions whose memo parsed into a document.",
		}),
		anchorSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anchor_steps_total",
			Help:      "Anchoring pipeline steps by stage and result.",
		}, []string{"stage", "result"}),
		contractEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contract_events_total",
			Help:      "Contract events forwarded to websocket clients.",
		}, []string{"contract", "event"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected event feed clients.",
		}),
		goroutineCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goroutine_count",
			Help:      "Number of goroutines.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Time since the process started in seconds.",
		}),
		startTime: time.Now(),
	}

	reg.MustRegister(
		c.httpRequests, c.httpDuration, c.chainCalls, c.proofRequests,
		c.scannedTxs, c.scannedDocs, c.anchorSteps, c.contractEvents,
		c.wsClients, c.goroutineCount, c.uptimeSeconds,
	)
	return c
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveHTTP records one API request.
func (c *Collector) ObserveHTTP(route string, code int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveChainCall records a contract call outcome.
func (c *Collector) ObserveChainCall(op string, err error) {
	if c == nil {
		return
	}
	c.chainCalls.WithLabelValues(op, result(err)).Inc()
}

// ObserveProof records a proof service request outcome.
func (c *Collector) ObserveProof(network, op string, err error) {
	if c == nil {
		return
	}
	c.proofRequests.WithLabelValues(network, op, result(err)).Inc()
}

// AddScanned adds the result of one memo scan.
func (c *Collector) AddScanned(transactions, documents int) {
	if c == nil {
		return
	}
	c.scannedTxs.Add(float64(transactions))
	c.scannedDocs.Add(float64(documents))
}

// ObserveAnchorStep records the outcome of an anchoring stage ("ipfs", "dag").
func (c *Collector) ObserveAnchorStep(stage string, err error) {
	if c == nil {
		return
	}
	c.anchorSteps.WithLabelValues(stage, result(err)).Inc()
}

// ObserveContractEvent counts an event delivered to the feed.
func (c *Collector) ObserveContractEvent(contract, event string) {
	if c == nil {
		return
	}
	c.contractEvents.WithLabelValues(contract, event).Inc()
}

func (c *Collector) SetWebSocketClients(n int) {
	if c == nil {
		return
	}
	c.wsClients.Set(float64(n))
}

// Sync refreshes the process gauges. The handler calls it before each scrape.
func (c *Collector) Sync() {
	if c == nil {
		return
	}
	c.goroutineCount.Set(float64(runtime.NumGoroutine()))
	c.uptimeSeconds.Set(time.Since(c.startTime).Seconds())
}

// Handler serves the registry in the Prometheus text exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	inner := promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Sync()
		inner.ServeHTTP(w, r)
	})
}
