package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hakichain/hakichain/internal/chain"
	"github.com/hakichain/hakichain/internal/httpclient"
	"github.com/hakichain/hakichain/internal/logging"
	"github.com/hakichain/hakichain/internal/proof"
)

var errServiceUnavailable = errors.New("service not configured")

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("failed to encode response", logging.Err(err), logging.Component("api"))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// readJSON decodes the request body into v, answering 400 or 413 itself.
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeServiceError maps err onto a status: configuration gaps are 503,
// upstream HTTP failures 502, timeouts 504.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError

	var missingAddr *chain.MissingAddressError
	var missingCred *proof.MissingCredentialError
	var httpErr *httpclient.HTTPError
	switch {
	case errors.As(err, &missingAddr), errors.As(err, &missingCred),
		errors.Is(err, chain.ErrNoProvider), errors.Is(err, chain.ErrNoSigner),
		errors.Is(err, errServiceUnavailable):
		status = http.StatusServiceUnavailable
	case errors.As(err, &httpErr):
		status = http.StatusBadGateway
	case errors.Is(err, httpclient.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logging.Warn("request failed", "op", op, logging.Err(err), logging.Component("api"))
	}
	writeError(w, status, err.Error())
}

func parseBountyID(r *http.Request) (*big.Int, error) {
	raw := r.PathValue("id")
	id, ok := new(big.Int).SetString(raw, 10)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("invalid bounty id %q", raw)
	}
	return id, nil
}

type bountyResponse struct {
	ID string `json:"id"`
	chain.Bounty
	Exists bool `json:"exists"`
}

type submissionResponse struct {
	Index int `json:"index"`
	chain.Submission
}

type escrowResponse struct {
	ID           string             `json:"id"`
	Funder       string             `json:"funder"`
	Beneficiary  string             `json:"beneficiary"`
	AmountWei    string             `json:"amountWei"`
	DagProofHash string             `json:"dagProofHash"`
	Released     bool               `json:"released"`
	Refunded     bool               `json:"refunded"`
	CreatedAt    int64              `json:"createdAt"`
	FinalizedAt  int64              `json:"finalizedAt"`
	Status       chain.EscrowStatus `json:"status"`
}

type provenanceResponse struct {
	WorkflowID    string `json:"workflowId"`
	StoryAssetID  string `json:"storyAssetId"`
	IcpCanisterID string `json:"icpCanisterId"`
	DagProofHash  string `json:"dagProofHash"`
	MintedAmount  string `json:"mintedAmount"`
	Timestamp     int64  `json:"timestamp"`
	Exists        bool   `json:"exists"`
}

func (s *Server) chainClient() (*chain.Client, error) {
	if s.deps.Chain == nil {
		return nil, fmt.Errorf("chain client: %w", errServiceUnavailable)
	}
	return s.deps.Chain, nil
}

// handleGetBounty handles GET /v1/bounties/{id}
func (s *Server) handleGetBounty(w http.ResponseWriter, r *http.Request) {
	id, err := parseBountyID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.chainClient()
	if err != nil {
		writeServiceError(w, "get_bounty", err)
		return
	}

	b, err := c.GetBounty(r.Context(), id)
	s.deps.Metrics.ObserveChainCall("get_bounty", err)
	if err != nil {
		writeServiceError(w, "get_bounty", err)
		return
	}
	writeJSON(w, http.StatusOK, bountyResponse{ID: id.String(), Bounty: *b, Exists: b.Exists()})
}

// handleGetSubmissions handles GET /v1/bounties/{id}/submissions
func (s *Server) handleGetSubmissions(w http.ResponseWriter, r *http.Request) {
	id, err := parseBountyID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.chainClient()
	if err != nil {
		writeServiceError(w, "get_submissions", err)
		return
	}

	subs, err := c.GetBountySubmissions(r.Context(), id)
	s.deps.Metrics.ObserveChainCall("get_submissions", err)
	if err != nil {
		writeServiceError(w, "get_submissions", err)
		return
	}

	out := make([]submissionResponse, len(subs))
	for i, sub := range subs {
		out[i] = submissionResponse{Index: i, Submission: sub}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bountyId":    id.String(),
		"count":       len(out),
		"submissions": out,
	})
}

// handleGetEscrow handles GET /v1/escrows/{id}
func (s *Server) handleGetEscrow(w http.ResponseWriter, r *http.Request) {
	id, err := parseBountyID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.chainClient()
	if err != nil {
		writeServiceError(w, "get_escrow", err)
		return
	}

	e, err := c.GetEscrow(r.Context(), id)
	s.deps.Metrics.ObserveChainCall("get_escrow", err)
	if err != nil {
		writeServiceError(w, "get_escrow", err)
		return
	}
	writeJSON(w, http.StatusOK, escrowResponse{
		ID:           id.String(),
		Funder:       e.Funder.Hex(),
		Beneficiary:  e.Beneficiary.Hex(),
		AmountWei:    intString(e.Amount),
		DagProofHash: e.DagProofHash,
		Released:     e.Released,
		Refunded:     e.Refunded,
		CreatedAt:    intValue(e.CreatedAt),
		FinalizedAt:  intValue(e.FinalizedAt),
		Status:       e.Status(),
	})
}

// handleGetProvenance handles GET /v1/provenance/{workflowId}
func (s *Server) handleGetProvenance(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("workflowId")
	hexPart := strings.TrimPrefix(raw, "0x")
	if len(hexPart) != 64 || !isHex(hexPart) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid workflow id %q", raw))
		return
	}
	workflowID := common.HexToHash(raw)

	c, err := s.chainClient()
	if err != nil {
		writeServiceError(w, "get_provenance", err)
		return
	}
	p, err := c.GetProvenance(r.Context(), workflowID)
	s.deps.Metrics.ObserveChainCall("get_provenance", err)
	if err != nil {
		writeServiceError(w, "get_provenance", err)
		return
	}
	writeJSON(w, http.StatusOK, provenanceResponse{
		WorkflowID:    workflowID.Hex(),
		StoryAssetID:  p.StoryAssetId,
		IcpCanisterID: p.IcpCanisterId,
		DagProofHash:  p.DagProofHash,
		MintedAmount:  intString(p.MintedAmount),
		Timestamp:     intValue(p.Timestamp),
		Exists:        p.Exists(),
	})
}

// handleWorkflowID handles GET /v1/workflow-id?tag=&story=&icp=&dag=
func (s *Server) handleWorkflowID(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, err := chain.WorkflowID(q.Get("tag"), chain.ProofIDs{
		StoryAssetID:  q.Get("story"),
		IcpCanisterID: q.Get("icp"),
		DagProofHash:  q.Get("dag"),
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"workflowId": id.Hex()})
}

func intString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func intValue(v *big.Int) int64 {
	if v == nil || !v.IsInt64() {
		return 0
	}
	return v.Int64()
}

func isHex(s string) bool {
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}
