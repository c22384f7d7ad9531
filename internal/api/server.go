package api

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hakichain/hakichain/internal/anchor"
	"github.com/hakichain/hakichain/internal/chain"
	"github.com/hakichain/hakichain/internal/config"
	"github.com/hakichain/hakichain/internal/dag"
	"github.com/hakichain/hakichain/internal/logging"
	"github.com/hakichain/hakichain/internal/metrics"
	"github.com/hakichain/hakichain/internal/proof"
	"github.com/hakichain/hakichain/internal/util"
)

const (
	rateLimiterCleanupInterval = 5 * time.Minute
	rateLimiterStaleAfter      = 10 * time.Minute
)

// ServerConfig holds API server configuration.
type ServerConfig struct {
	HTTPAddr string

	// Requests allowed per client IP within RateLimitWindow. Zero disables
	// rate limiting.
	RateLimit       int
	RateLimitWindow time.Duration

	// APIKey enables authentication of the /v1 routes and /metrics when set.
	// It may be the plain key or its bcrypt hash.
	APIKey       string
	APIKeyHeader string

	// TrustProxy honors X-Forwarded-For and X-Real-IP. Enable only behind a
	// reverse proxy that sets them.
	TrustProxy bool

	EnableCORS     bool
	AllowedOrigins []string

	MaxRequestSize int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration

	EnableWebSocket bool
}

// DefaultServerConfig returns the default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		HTTPAddr:        ":8080",
		RateLimit:       100,
		RateLimitWindow: time.Minute,
		APIKeyHeader:    "X-API-Key",
		EnableCORS:      true,
		AllowedOrigins:  []string{"*"},
		MaxRequestSize:  1 << 20,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		EnableWebSocket: true,
	}
}

// ServerConfigFromConfig maps the api section of the application config.
func ServerConfigFromConfig(cfg config.APIConfig) *ServerConfig {
	sc := DefaultServerConfig()
	sc.HTTPAddr = net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port))
	sc.APIKey = cfg.APIKey
	if sc.APIKey == "" {
		sc.APIKey = cfg.APIKeyHash
	}
	if len(cfg.CORSOrigins) > 0 {
		sc.AllowedOrigins = cfg.CORSOrigins
	}
	sc.RateLimit = cfg.RateLimitRequests
	if cfg.RateLimitWindowSecs > 0 {
		sc.RateLimitWindow = time.Duration(cfg.RateLimitWindowSecs) * time.Second
	}
	if cfg.MaxRequestSize > 0 {
		sc.MaxRequestSize = cfg.MaxRequestSize
	}
	if cfg.ReadTimeoutSecs > 0 {
		sc.ReadTimeout = time.Duration(cfg.ReadTimeoutSecs) * time.Second
	}
	if cfg.WriteTimeoutSecs > 0 {
		sc.WriteTimeout = time.Duration(cfg.WriteTimeoutSecs) * time.Second
	}
	if cfg.IdleTimeoutSecs > 0 {
		sc.IdleTimeout = time.Duration(cfg.IdleTimeoutSecs) * time.Second
	}
	sc.EnableWebSocket = cfg.EnableEvents
	return sc
}

// Dependencies are the services the handlers call. Any of them may be nil;
// the routes that need a missing one answer 503.
type Dependencies struct {
	Chain    *chain.Client
	Proofs   *proof.Services
	Scanner  *dag.Scanner
	Explorer *dag.Explorer
	Anchor   *anchor.Pipeline
	Metrics  *metrics.Collector

	// Events feeds /v1/events: the mock client's feed or an EventWatcher.
	Events <-chan chain.ContractEvent
}

// Server is the HakiChain HTTP API server.
type Server struct {
	config *ServerConfig
	deps   Dependencies

	httpServer *http.Server
	wsHub      *WebSocketHub

	rateLimiters sync.Map // map[string]*rateLimiterEntry

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

// NewServer creates a new API server
func NewServer(cfg *ServerConfig, deps Dependencies) *Server {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = "X-API-Key"
	}
	s := &Server{
		config: cfg,
		deps:   deps,
	}
	if cfg.EnableWebSocket {
		s.wsHub = NewWebSocketHub(deps.Metrics)
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start starts the API server. It returns once the listener is serving.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	ln, err := net.Listen("tcp", s.config.HTTPAddr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.HTTPAddr, err)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.httpServer = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		MaxHeaderBytes:    1 << 20,
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	if s.wsHub != nil {
		s.goBackground("api-websocket-hub", func() { s.wsHub.Run(ctx) })
		if s.deps.Events != nil {
			s.goBackground("api-event-forwarder", func() { s.forwardEvents(ctx, s.deps.Events) })
		}
	}
	if s.config.RateLimit > 0 {
		s.goBackground("api-rate-limiter-cleanup", func() { s.startRateLimiterCleanup(ctx) })
	}

	s.goBackground("api-http-server", func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			logging.Error("API server error", logging.Err(err), logging.Component("api"))
		}
	})

	logging.Info("API server started",
		"addr", ln.Addr().String(),
		"auth", s.config.APIKey != "",
		"websocket", s.wsHub != nil,
		logging.Component("api"))

	return nil
}

// Stop shuts the HTTP server down and waits for background goroutines.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	srv := s.httpServer
	s.mu.Unlock()

	err := srv.Shutdown(ctx)
	s.wg.Wait()

	logging.Info("API server stopped", logging.Component("api"))
	return err
}

func (s *Server) goBackground(name string, fn func()) {
	s.wg.Add(1)
	util.SafeGoWithName(name, func() {
		defer s.wg.Done()
		fn()
	})
}

// buildRouter registers every route. Public routes get CORS and rate
// limiting; /v1 and /metrics additionally require the API key when one is set.
func (s *Server) buildRouter() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.withPublic("root", s.handleRoot))
	mux.HandleFunc("GET /health", s.withPublic("health", s.handleHealthCheck))
	mux.HandleFunc("GET /balance", s.withPublic("balance", s.handleBalance))
	mux.HandleFunc("GET /dag-data", s.withPublic("dag_data", s.handleDagData))

	mux.HandleFunc("GET /v1/bounties/{id}", s.withMiddleware("bounty", s.handleGetBounty))
	mux.HandleFunc("GET /v1/bounties/{id}/submissions", s.withMiddleware("bounty_submissions", s.handleGetSubmissions))
	mux.HandleFunc("GET /v1/escrows/{id}", s.withMiddleware("escrow", s.handleGetEscrow))
	mux.HandleFunc("GET /v1/provenance/{workflowId}", s.withMiddleware("provenance", s.handleGetProvenance))
	mux.HandleFunc("GET /v1/workflow-id", s.withMiddleware("workflow_id", s.handleWorkflowID))

	mux.HandleFunc("POST /v1/proofs/dag", s.withMiddleware("proof_dag_record", s.handleRecordDagProof))
	mux.HandleFunc("GET /v1/proofs/dag/{hash}", s.withMiddleware("proof_dag_get", s.handleGetDagProof))
	mux.HandleFunc("POST /v1/proofs/icp", s.withMiddleware("proof_icp_store", s.handleStoreIcpMetadata))
	mux.HandleFunc("GET /v1/proofs/icp/{canister}/{record}", s.withMiddleware("proof_icp_get", s.handleGetIcpMetadata))
	mux.HandleFunc("POST /v1/proofs/story", s.withMiddleware("proof_story_register", s.handleRegisterStoryAsset))
	mux.HandleFunc("POST /v1/proofs/story/{assetId}/licensing", s.withMiddleware("proof_story_license", s.handleUpdateStoryLicensing))

	mux.HandleFunc("POST /v1/documents", s.withMiddleware("documents", s.handlePushDocument))

	if s.wsHub != nil {
		mux.HandleFunc("GET /v1/events", s.withMiddleware("events", s.handleWebSocket))
	}

	mux.HandleFunc("GET /metrics", s.withMiddleware("metrics", s.deps.Metrics.Handler().ServeHTTP))

	return s.globalCORSMiddleware(mux)
}

// globalCORSMiddleware answers preflight requests before routing so that
// OPTIONS never reaches the method-restricted patterns.
func (s *Server) globalCORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.EnableCORS && r.Method == http.MethodOptions {
			s.setCORSHeaders(w, r)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withPublic wraps a handler with CORS, rate limiting and metrics.
func (s *Server) withPublic(route string, handler http.HandlerFunc) http.HandlerFunc {
	return s.chain(route, false, handler)
}

// withMiddleware wraps a handler with CORS, rate limiting, auth and metrics.
// Rate limiting is applied before authentication to prevent auth-based DoS.
func (s *Server) withMiddleware(route string, handler http.HandlerFunc) http.HandlerFunc {
	return s.chain(route, true, handler)
}

func (s *Server) chain(route string, requireAuth bool, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			s.deps.Metrics.ObserveHTTP(route, rec.status, time.Since(start))
		}()

		if s.config.EnableCORS {
			s.setCORSHeaders(rec, r)
		}

		if s.config.RateLimit > 0 {
			clientIP := s.extractClientIP(r)
			if !s.getRateLimiter(clientIP).Allow() {
				retryAfter := int(s.config.RateLimitWindow.Seconds())
				rec.Header().Set("Retry-After", fmt.Sprint(retryAfter))
				writeJSON(rec, http.StatusTooManyRequests, map[string]interface{}{
					"error":       "rate limit exceeded",
					"retry_after": retryAfter,
				})
				return
			}
		}

		if requireAuth && !s.authenticate(r) {
			writeError(rec, http.StatusUnauthorized, "unauthorized")
			return
		}

		if s.config.MaxRequestSize > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(rec, r.Body, s.config.MaxRequestSize)
		}

		handler(rec, r)
	}
}

// authenticate accepts the key in the configured header or as a bearer token.
func (s *Server) authenticate(r *http.Request) bool {
	if s.config.APIKey == "" {
		return true
	}

	key := r.Header.Get(s.config.APIKeyHeader)
	if key == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			key = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if key == "" {
		return false
	}
	return keyMatches(key, s.config.APIKey)
}

// getRateLimiter returns the limiter for a client IP, creating it on first use.
func (s *Server) getRateLimiter(clientIP string) *rate.Limiter {
	now := time.Now()
	if v, ok := s.rateLimiters.Load(clientIP); ok {
		entry := v.(*rateLimiterEntry)
		entry.mu.Lock()
		entry.lastSeen = now
		entry.mu.Unlock()
		return entry.limiter
	}

	window := s.config.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	limit := rate.Limit(float64(s.config.RateLimit) / window.Seconds())
	entry := &rateLimiterEntry{
		limiter:  rate.NewLimiter(limit, s.config.RateLimit),
		lastSeen: now,
	}
	actual, _ := s.rateLimiters.LoadOrStore(clientIP, entry)
	return actual.(*rateLimiterEntry).limiter
}

func (s *Server) startRateLimiterCleanup(ctx context.Context) {
	ticker := time.NewTicker(rateLimiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanupRateLimiters(time.Now())
		}
	}
}

// cleanupRateLimiters drops limiters not used within rateLimiterStaleAfter.
func (s *Server) cleanupRateLimiters(now time.Time) int {
	removed := 0
	s.rateLimiters.Range(func(key, value interface{}) bool {
		entry := value.(*rateLimiterEntry)
		entry.mu.Lock()
		stale := now.Sub(entry.lastSeen) > rateLimiterStaleAfter
		entry.mu.Unlock()
		if stale {
			s.rateLimiters.Delete(key)
			removed++
		}
		return true
	})
	if removed > 0 {
		logging.Debug("cleaned up stale rate limiters", "removed", removed, logging.Component("api"))
	}
	return removed
}

// extractClientIP returns the client IP, honoring proxy headers only when
// TrustProxy is set.
func (s *Server) extractClientIP(r *http.Request) string {
	if s.config.TrustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
				return ip.String()
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
				return ip.String()
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}

	allowed := false
	wildcard := false
	for _, o := range s.config.AllowedOrigins {
		if o == "*" {
			wildcard = true
			allowed = true
			break
		}
		if o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}

	if wildcard {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+s.config.APIKeyHeader)
	w.Header().Set("Access-Control-Max-Age", "86400")
}

// statusRecorder captures the response code for metrics. It forwards
// Hijack so websocket upgrades work through the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}
