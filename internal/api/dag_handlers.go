package api

import (
	"net/http"
	"time"

	"github.com/hakichain/hakichain/internal/dag"
	"github.com/hakichain/hakichain/internal/logging"
)

const rootBanner = "Haki DAG API is running ✅"

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status   string          `json:"status"`
	Uptime   string          `json:"uptime"`
	MockMode bool            `json:"mock_mode"`
	Services map[string]bool `json:"services"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rootBanner))
}

// handleHealthCheck reports which backends are wired. It never calls them.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	startedAt := s.startedAt
	s.mu.RUnlock()

	uptime := "0s"
	if !startedAt.IsZero() {
		uptime = time.Since(startedAt).Round(time.Second).String()
	}

	resp := HealthResponse{
		Status: "healthy",
		Uptime: uptime,
		Services: map[string]bool{
			"chain":  s.deps.Chain != nil,
			"proofs": s.deps.Proofs != nil,
			"dag":    s.dagReady(),
			"anchor": s.deps.Anchor != nil,
			"events": s.wsHub != nil,
		},
	}
	if s.deps.Chain != nil {
		resp.MockMode = s.deps.Chain.IsMockMode()
	}
	writeJSON(w, http.StatusOK, resp)
}

// dagReady reports whether a DAG address is configured for scanning.
func (s *Server) dagReady() bool {
	return s.deps.Explorer != nil && s.deps.Explorer.Address() != "" && s.deps.Scanner != nil
}

func writeNotReady(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
		"success": false,
		"error":   "Network not ready.",
	})
}

// handleBalance handles GET /balance
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if !s.dagReady() {
		writeNotReady(w)
		return
	}

	balance, err := s.deps.Explorer.Balance(r.Context())
	if err != nil {
		logging.Warn("balance fetch failed", logging.Err(err), logging.Component("api"))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "Failed to fetch balance.",
		})
		return
	}

	value, _ := balance.Float64()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address": s.deps.Explorer.Address(),
		"balance": value,
	})
}

// handleDagData handles GET /dag-data: every transaction of the configured
// address with parseable memos attached as "document".
func (s *Server) handleDagData(w http.ResponseWriter, r *http.Request) {
	if !s.dagReady() {
		writeNotReady(w)
		return
	}

	txs, err := s.deps.Scanner.Scan(r.Context())
	if err != nil {
		logging.Warn("DAG data fetch failed", logging.Err(err), logging.Component("api"))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "Failed to fetch DAG data: " + err.Error(),
		})
		return
	}
	if txs == nil {
		txs = []dag.Transaction{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":           true,
		"totalTransactions": len(txs),
		"transactions":      txs,
	})
}
