package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hakichain/hakichain/internal/anchor"
	"github.com/hakichain/hakichain/internal/proof"
)

func (s *Server) proofServices() (*proof.Services, error) {
	if s.deps.Proofs == nil {
		return nil, fmt.Errorf("proof services: %w", errServiceUnavailable)
	}
	return s.deps.Proofs, nil
}

// writeProofResult answers 204 when the upstream acknowledged with an empty body.
func writeProofResult[T any](w http.ResponseWriter, resp *T) {
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeRawResult(w http.ResponseWriter, raw json.RawMessage) {
	if len(raw) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, raw)
}

// handleRecordDagProof handles POST /v1/proofs/dag
func (s *Server) handleRecordDagProof(w http.ResponseWriter, r *http.Request) {
	var payload proof.DagProofPayload
	if !readJSON(w, r, &payload) {
		return
	}
	svc, err := s.proofServices()
	if err != nil {
		writeServiceError(w, "dag_record", err)
		return
	}

	resp, err := svc.DAG.RecordDagProof(r.Context(), payload)
	if err != nil {
		writeServiceError(w, "dag_record", err)
		return
	}
	writeProofResult(w, resp)
}

// handleGetDagProof handles GET /v1/proofs/dag/{hash}
func (s *Server) handleGetDagProof(w http.ResponseWriter, r *http.Request) {
	svc, err := s.proofServices()
	if err != nil {
		writeServiceError(w, "dag_get", err)
		return
	}

	raw, err := svc.DAG.GetDagProof(r.Context(), r.PathValue("hash"))
	if err != nil {
		writeServiceError(w, "dag_get", err)
		return
	}
	writeRawResult(w, raw)
}

// handleStoreIcpMetadata handles POST /v1/proofs/icp
func (s *Server) handleStoreIcpMetadata(w http.ResponseWriter, r *http.Request) {
	var payload proof.StoreIcpMetadataPayload
	if !readJSON(w, r, &payload) {
		return
	}
	svc, err := s.proofServices()
	if err != nil {
		writeServiceError(w, "icp_store", err)
		return
	}

	resp, err := svc.ICP.StoreIcpMetadata(r.Context(), payload)
	if err != nil {
		writeServiceError(w, "icp_store", err)
		return
	}
	writeProofResult(w, resp)
}

// handleGetIcpMetadata handles GET /v1/proofs/icp/{canister}/{record}
func (s *Server) handleGetIcpMetadata(w http.ResponseWriter, r *http.Request) {
	svc, err := s.proofServices()
	if err != nil {
		writeServiceError(w, "icp_get", err)
		return
	}

	raw, err := svc.ICP.GetIcpMetadata(r.Context(), r.PathValue("canister"), r.PathValue("record"))
	if err != nil {
		writeServiceError(w, "icp_get", err)
		return
	}
	writeRawResult(w, raw)
}

// handleRegisterStoryAsset handles POST /v1/proofs/story
func (s *Server) handleRegisterStoryAsset(w http.ResponseWriter, r *http.Request) {
	var payload proof.RegisterStoryAssetPayload
	if !readJSON(w, r, &payload) {
		return
	}
	if payload.Title == "" || payload.IPFSHash == "" {
		writeError(w, http.StatusBadRequest, "title and ipfsHash are required")
		return
	}
	svc, err := s.proofServices()
	if err != nil {
		writeServiceError(w, "story_register", err)
		return
	}

	resp, err := svc.Story.RegisterStoryAsset(r.Context(), payload)
	if err != nil {
		writeServiceError(w, "story_register", err)
		return
	}
	writeProofResult(w, resp)
}

// handleUpdateStoryLicensing handles POST /v1/proofs/story/{assetId}/licensing
func (s *Server) handleUpdateStoryLicensing(w http.ResponseWriter, r *http.Request) {
	var licensing map[string]interface{}
	if !readJSON(w, r, &licensing) {
		return
	}
	svc, err := s.proofServices()
	if err != nil {
		writeServiceError(w, "story_license", err)
		return
	}

	raw, err := svc.Story.UpdateStoryAssetLicensing(r.Context(), r.PathValue("assetId"), licensing)
	if err != nil {
		writeServiceError(w, "story_license", err)
		return
	}
	writeRawResult(w, raw)
}

// handlePushDocument handles POST /v1/documents: IPFS upload then DAG memo.
func (s *Server) handlePushDocument(w http.ResponseWriter, r *http.Request) {
	var doc anchor.Document
	if !readJSON(w, r, &doc) {
		return
	}
	if s.deps.Anchor == nil {
		writeServiceError(w, "push_document", fmt.Errorf("anchoring pipeline: %w", errServiceUnavailable))
		return
	}

	res, err := s.deps.Anchor.PushDocument(r.Context(), doc)
	if err != nil {
		if errors.Is(err, anchor.ErrInvalidDocument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeServiceError(w, "push_document", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
