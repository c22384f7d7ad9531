package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveChainCall(t *testing.T) {
	c := NewCollector()

	c.ObserveChainCall("createEscrow", nil)
	c.ObserveChainCall("createEscrow", nil)
	c.ObserveChainCall("createEscrow", errors.New("reverted"))

	if got := testutil.ToFloat64(c.chainCalls.WithLabelValues("createEscrow", "ok")); got != 2 {
		t.Errorf("ok count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.chainCalls.WithLabelValues("createEscrow", "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}

func TestObserveProof(t *testing.T) {
	c := NewCollector()
	c.ObserveProof("story", "register", nil)

	if got := testutil.ToFloat64(c.proofRequests.WithLabelValues("story", "register", "ok")); got != 1 {
		t.Errorf("proof count = %v", got)
	}
}

func TestAddScanned(t *testing.T) {
	c := NewCollector()
	c.AddScanned(10, 3)
	c.AddScanned(5, 0)

	if got := testutil.ToFloat64(c.scannedTxs); got != 15 {
		t.Errorf("scanned = %v", got)
	}
	if got := testutil.ToFloat64(c.scannedDocs); got != 3 {
		t.Errorf("documents = %v", got)
	}
}

func TestObserveHTTP(t *testing.T) {
	c := NewCollector()
	c.ObserveHTTP("/dag-data", 200, 20*time.Millisecond)
	c.ObserveHTTP("/dag-data", 503, time.Millisecond)

	if got := testutil.ToFloat64(c.httpRequests.WithLabelValues("/dag-data", "503")); got != 1 {
		t.Errorf("503 count = %v", got)
	}

	metric := &dto.Metric{}
	if err := c.httpDuration.WithLabelValues("/dag-data").(prometheus.Metric).Write(metric); err != nil {
		t.Fatalf("failed to read histogram: %v", err)
	}
	if metric.GetHistogram().GetSampleCount() != 2 {
		t.Errorf("sample count = %d", metric.GetHistogram().GetSampleCount())
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.ObserveChainCall("x", nil)
	c.ObserveProof("dag", "record", nil)
	c.AddScanned(1, 1)
	c.ObserveAnchorStep("ipfs", nil)
	c.ObserveContractEvent("HakiToken", "ProvenanceLogged")
	c.SetWebSocketClients(1)
	c.Sync()
	if c.Registry() != nil {
		t.Error("nil collector should have no registry")
	}

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("nil handler status = %d", rec.Code)
	}
}

func TestHandler(t *testing.T) {
	c := NewCollector()
	c.ObserveAnchorStep("dag", nil)
	c.SetWebSocketClients(2)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	for _, want := range []string{
		`hakichain_anchor_steps_total{result="ok",stage="dag"} 1`,
		"hakichain_websocket_clients 2",
		"hakichain_goroutine_count",
		"hakichain_uptime_seconds",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
