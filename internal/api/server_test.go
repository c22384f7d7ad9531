package api

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hakichain/hakichain/internal/anchor"
	"github.com/hakichain/hakichain/internal/chain"
	"github.com/hakichain/hakichain/internal/config"
	"github.com/hakichain/hakichain/internal/dag"
	"github.com/hakichain/hakichain/internal/metrics"
	"github.com/hakichain/hakichain/internal/proof"
)

var operator = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func testConfig() *ServerConfig {
	cfg := DefaultServerConfig()
	cfg.RateLimit = 0
	cfg.EnableWebSocket = false
	return cfg
}

func do(t *testing.T, h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestRoot(t *testing.T) {
	s := NewServer(testConfig(), Dependencies{})
	rec := do(t, s.Handler(), http.MethodGet, "/", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != rootBanner {
		t.Errorf("body = %q", rec.Body.String())
	}

	if rec := do(t, s.Handler(), http.MethodGet, "/nope", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path: expected 404, got %d", rec.Code)
	}
}

func TestHandleHealthCheck(t *testing.T) {
	s := NewServer(testConfig(), Dependencies{Chain: chain.NewMockClient(operator)})
	rec := do(t, s.Handler(), http.MethodGet, "/health", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "healthy" || !resp.MockMode {
		t.Errorf("resp = %+v", resp)
	}
	if !resp.Services["chain"] || resp.Services["dag"] || resp.Services["proofs"] {
		t.Errorf("services = %v", resp.Services)
	}
}

func TestDagRoutes_NotReady(t *testing.T) {
	s := NewServer(testConfig(), Dependencies{
		Explorer: dag.NewExplorer("http://127.0.0.1:1", "", nil, time.Second),
	})

	for _, path := range []string{"/dag-data", "/balance"} {
		rec := do(t, s.Handler(), http.MethodGet, path, "", nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected status 503, got %d", path, rec.Code)
		}
		body := decode(t, rec)
		if body["success"] != false || body["error"] != "Network not ready." {
			t.Errorf("%s: body = %v", path, body)
		}
	}
}

func newExplorerServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		switch r.URL.Path {
		case "/addresses/DAG0abc/transactions":
			w.Write([]byte(`[{"hash":"h1","auxiliaryData":"{\"document_id\":\"d1\",\"title\":\"Brief\"}"},{"hash":"h2","memo":"not json"}]`))
		case "/addresses/DAG0abc/balance":
			w.Write([]byte(`{"data":{"balance":250000000}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dagDeps(srvURL string) Dependencies {
	explorer := dag.NewExplorer(srvURL, "DAG0abc", nil, time.Second)
	return Dependencies{Explorer: explorer, Scanner: dag.NewScanner(explorer, 100, nil)}
}

func TestDagData(t *testing.T) {
	srv := newExplorerServer(t, http.StatusOK)
	s := NewServer(testConfig(), dagDeps(srv.URL))

	rec := do(t, s.Handler(), http.MethodGet, "/dag-data", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success           bool                     `json:"success"`
		TotalTransactions int                      `json:"totalTransactions"`
		Transactions      []map[string]interface{} `json:"transactions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success || resp.TotalTransactions != 2 || len(resp.Transactions) != 2 {
		t.Fatalf("resp = %+v", resp)
	}
	doc, ok := resp.Transactions[0]["document"].(map[string]interface{})
	if !ok || doc["document_id"] != "d1" || doc["title"] != "Brief" {
		t.Errorf("first transaction = %v", resp.Transactions[0])
	}
	if _, ok := resp.Transactions[1]["document"]; ok {
		t.Errorf("unparsable memo should not gain a document: %v", resp.Transactions[1])
	}
}

func TestDagData_UpstreamFailure(t *testing.T) {
	srv := newExplorerServer(t, http.StatusBadGateway)
	s := NewServer(testConfig(), dagDeps(srv.URL))

	rec := do(t, s.Handler(), http.MethodGet, "/dag-data", "", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	body := decode(t, rec)
	msg, _ := body["error"].(string)
	if body["success"] != false || !strings.HasPrefix(msg, "Failed to fetch DAG data: ") {
		t.Errorf("body = %v", body)
	}
}

func TestBalance(t *testing.T) {
	srv := newExplorerServer(t, http.StatusOK)
	s := NewServer(testConfig(), dagDeps(srv.URL))

	rec := do(t, s.Handler(), http.MethodGet, "/balance", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["address"] != "DAG0abc" || body["balance"] != 2.5 {
		t.Errorf("body = %v", body)
	}
}

func TestChainRoutes_MockClient(t *testing.T) {
	ctx := context.Background()
	c := chain.NewMockClient(operator)
	s := NewServer(testConfig(), Dependencies{Chain: c})
	h := s.Handler()

	proofs := chain.ProofIDs{StoryAssetID: "story-1", IcpCanisterID: "icp-1", DagProofHash: "dag-1"}
	if _, err := c.UpsertBounty(ctx, big.NewInt(7), "ipfs://bounty-7", true); err != nil {
		t.Fatal(err)
	}
	if _, err := c.RegisterSubmission(ctx, big.NewInt(7), "doc-1", proofs); err != nil {
		t.Fatal(err)
	}
	beneficiary := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	if _, err := c.CreateEscrow(ctx, big.NewInt(7), beneficiary, big.NewInt(1_000_000)); err != nil {
		t.Fatal(err)
	}

	t.Run("bounty", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/v1/bounties/7", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		body := decode(t, rec)
		if body["id"] != "7" || body["metadataUri"] != "ipfs://bounty-7" || body["active"] != true || body["exists"] != true {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("unknown bounty", func(t *testing.T) {
		body := decode(t, do(t, h, http.MethodGet, "/v1/bounties/99", "", nil))
		if body["exists"] != false {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("submissions", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/v1/bounties/7/submissions", "", nil)
		body := decode(t, rec)
		subs, _ := body["submissions"].([]interface{})
		if body["count"] != float64(1) || len(subs) != 1 {
			t.Fatalf("body = %v", body)
		}
		sub := subs[0].(map[string]interface{})
		if sub["docId"] != "doc-1" || sub["dagProofHash"] != "dag-1" || sub["index"] != float64(0) {
			t.Errorf("submission = %v", sub)
		}
	})

	t.Run("escrow", func(t *testing.T) {
		body := decode(t, do(t, h, http.MethodGet, "/v1/escrows/7", "", nil))
		if body["amountWei"] != "1000000" || body["status"] != string(chain.EscrowStatusFunded) {
			t.Errorf("body = %v", body)
		}
		body = decode(t, do(t, h, http.MethodGet, "/v1/escrows/8", "", nil))
		if body["status"] != string(chain.EscrowStatusAwaiting) {
			t.Errorf("missing escrow body = %v", body)
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		for _, path := range []string{"/v1/bounties/abc", "/v1/escrows/-1"} {
			if rec := do(t, h, http.MethodGet, path, "", nil); rec.Code != http.StatusBadRequest {
				t.Errorf("%s: expected status 400, got %d", path, rec.Code)
			}
		}
	})
}

func TestProvenanceAndWorkflowID(t *testing.T) {
	ctx := context.Background()
	c := chain.NewMockClient(operator)
	h := NewServer(testConfig(), Dependencies{Chain: c}).Handler()

	proofs := chain.ProofIDs{StoryAssetID: "s", IcpCanisterID: "i", DagProofHash: "d"}
	if _, err := c.MintHakiTokenWithProvenance(ctx, chain.MintRequest{
		To: operator, Amount: big.NewInt(500), Proofs: proofs, WorkflowTag: "case-1",
	}); err != nil {
		t.Fatal(err)
	}
	want, err := chain.WorkflowID("case-1", proofs)
	if err != nil {
		t.Fatal(err)
	}

	body := decode(t, do(t, h, http.MethodGet, "/v1/workflow-id?tag=case-1&story=s&icp=i&dag=d", "", nil))
	if body["workflowId"] != want.Hex() {
		t.Fatalf("workflowId = %v, want %s", body["workflowId"], want.Hex())
	}

	body = decode(t, do(t, h, http.MethodGet, "/v1/provenance/"+want.Hex(), "", nil))
	if body["mintedAmount"] != "500" || body["exists"] != true || body["storyAssetId"] != "s" {
		t.Errorf("provenance = %v", body)
	}

	if rec := do(t, h, http.MethodGet, "/v1/provenance/0x1234", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("short workflow id: expected 400, got %d", rec.Code)
	}
}

func TestChainRoutes_NotConfigured(t *testing.T) {
	h := NewServer(testConfig(), Dependencies{}).Handler()
	if rec := do(t, h, http.MethodGet, "/v1/bounties/1", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}

	// A real client without addresses fails before any network call.
	c := chain.NewClient(chain.NewBaseClient(nil, nil), chain.Addresses{})
	h = NewServer(testConfig(), Dependencies{Chain: c}).Handler()
	rec := do(t, h, http.MethodGet, "/v1/escrows/1", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
	if msg := decode(t, rec)["error"]; !strings.Contains(msg.(string), config.EnvEscrowAddress) {
		t.Errorf("error = %v", msg)
	}
}

func TestAuthentication(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = "s3cret"
	h := NewServer(cfg, Dependencies{}).Handler()

	tests := []struct {
		name   string
		path   string
		header map[string]string
		want   int
	}{
		{"no key", "/v1/workflow-id?tag=x", nil, http.StatusUnauthorized},
		{"wrong key", "/v1/workflow-id?tag=x", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"header key", "/v1/workflow-id?tag=x", map[string]string{"X-API-Key": "s3cret"}, http.StatusOK},
		{"bearer key", "/v1/workflow-id?tag=x", map[string]string{"Authorization": "Bearer s3cret"}, http.StatusOK},
		{"public health", "/health", nil, http.StatusOK},
		{"metrics protected", "/metrics", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.path, "", tt.header)
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 2
	cfg.RateLimitWindow = time.Hour
	h := NewServer(cfg, Dependencies{}).Handler()

	for i := 0; i < 2; i++ {
		if rec := do(t, h, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	rec := do(t, h, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "3600" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	if body := decode(t, rec); body["error"] != "rate limit exceeded" {
		t.Errorf("body = %v", body)
	}
}

func TestCleanupRateLimiters(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 10
	s := NewServer(cfg, Dependencies{})
	s.getRateLimiter("10.0.0.1")
	s.getRateLimiter("10.0.0.2")

	if n := s.cleanupRateLimiters(time.Now()); n != 0 {
		t.Errorf("fresh limiters removed: %d", n)
	}
	if n := s.cleanupRateLimiters(time.Now().Add(rateLimiterStaleAfter + time.Minute)); n != 2 {
		t.Errorf("stale limiters removed: %d, want 2", n)
	}
}

func TestExtractClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	s := NewServer(testConfig(), Dependencies{})
	if ip := s.extractClientIP(req); ip != "192.0.2.1" {
		t.Errorf("untrusted proxy: ip = %s", ip)
	}
	s.config.TrustProxy = true
	if ip := s.extractClientIP(req); ip != "203.0.113.9" {
		t.Errorf("trusted proxy: ip = %s", ip)
	}
}

func TestCORS(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = []string{"https://app.hakichain.io"}
	h := NewServer(cfg, Dependencies{}).Handler()

	rec := do(t, h, http.MethodOptions, "/v1/bounties/1", "", map[string]string{"Origin": "https://app.hakichain.io"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.hakichain.io" {
		t.Errorf("allow origin = %q", got)
	}

	rec = do(t, h, http.MethodGet, "/health", "", map[string]string{"Origin": "https://evil.example"})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got header %q", got)
	}
}

func newProofUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/proofs":
			if r.Header.Get("Authorization") != "Bearer dag-key" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"dagHash":"0xdag","submittedAt":"2026-01-01T00:00:00Z"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/proofs/0xdag":
			w.Write([]byte(`{"status":"confirmed"}`))
		case r.URL.Path == "/v1/proofs/missing":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`not found`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProofRoutes(t *testing.T) {
	srv := newProofUpstream(t)
	proofs := proof.NewServices(config.ProofConfig{
		TimeoutSecs: 5,
		DAG:         config.DAGProofAPI{BaseURL: srv.URL, APIKey: "dag-key"},
		Story:       config.StoryAPI{BaseURL: srv.URL},
	}, nil)
	h := NewServer(testConfig(), Dependencies{Proofs: proofs}).Handler()

	rec := do(t, h, http.MethodPost, "/v1/proofs/dag", `{"workflow_id":"w","document_id":"d","summary_hash":"h"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("record: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decode(t, rec); body["dagHash"] != "0xdag" {
		t.Errorf("record body = %v", body)
	}

	body := decode(t, do(t, h, http.MethodGet, "/v1/proofs/dag/0xdag", "", nil))
	if body["status"] != "confirmed" {
		t.Errorf("get body = %v", body)
	}

	if rec := do(t, h, http.MethodGet, "/v1/proofs/dag/missing", "", nil); rec.Code != http.StatusBadGateway {
		t.Errorf("upstream 404: expected 502, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/v1/proofs/story", `{"title":"Brief","ipfsHash":"Qm"}`, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("story without key: expected 503, got %d", rec.Code)
	}
	if body := decode(t, rec); body["error"] != "Missing STORY_API_KEY environment variable." {
		t.Errorf("story body = %v", body)
	}

	if rec := do(t, h, http.MethodPost, "/v1/proofs/story", `{"title":""}`, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("story without title: expected 400, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/v1/proofs/dag", `{`, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", rec.Code)
	}
}

type memStore struct{}

func (memStore) Add(_ context.Context, r io.Reader) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	return "QmTestCID", nil
}

func TestPushDocument(t *testing.T) {
	pipeline := anchor.NewPipeline(memStore{}, nil, "", 0, nil)
	h := NewServer(testConfig(), Dependencies{Anchor: pipeline}).Handler()

	rec := do(t, h, http.MethodPost, "/v1/documents", `{"document_id":"doc-9","content":"hello"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["ipfs_cid"] != "QmTestCID" || body["content_hash"] != anchor.ContentHash("hello") || body["dag_tx"] != "" {
		t.Errorf("body = %v", body)
	}

	if rec := do(t, h, http.MethodPost, "/v1/documents", `{"content":"x"}`, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("missing id: expected 400, got %d", rec.Code)
	}
}

func TestRequestSizeLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRequestSize = 16
	h := NewServer(cfg, Dependencies{Anchor: anchor.NewPipeline(nil, nil, "", 0, nil)}).Handler()

	rec := do(t, h, http.MethodPost, "/v1/documents", `{"document_id":"`+strings.Repeat("a", 64)+`"}`, nil)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d", rec.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	m := metrics.NewCollector()
	h := NewServer(testConfig(), Dependencies{Metrics: m}).Handler()

	do(t, h, http.MethodGet, "/health", "", nil)
	rec := do(t, h, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `hakichain_http_requests_total{code="200",route="health"} 1`) {
		t.Errorf("exposition missing health counter:\n%s", rec.Body.String())
	}
}

func TestServerStartStop(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	c := chain.NewMockClient(operator)
	s := NewServer(cfg, Dependencies{Chain: c, Events: c.Events()})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
