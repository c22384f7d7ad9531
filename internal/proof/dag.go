package proof

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hakichain/hakichain/internal/config"
)

type DagProofPayload struct {
	WorkflowID  string                 `json:"workflow_id"`
	DocID       string                 `json:"document_id"`
	SummaryHash string                 `json:"summary_hash"`
	Evidence    map[string]interface{} `json:"evidence"`
}

type DagProofResponse struct {
	DagHash     string `json:"dagHash"`
	SubmittedAt string `json:"submittedAt"`
	BlockHeight *int64 `json:"blockHeight,omitempty"`
}

// DAG records agent reasoning trails as Constellation proofs.
type DAG struct {
	svc *Service
}

func NewDAG(cfg config.DAGProofAPI, opts ...Option) *DAG {
	return &DAG{svc: NewService(Provider{
		Name:          "dag",
		BaseURL:       cfg.BaseURL,
		CredentialEnv: config.EnvDAGAPIKey,
		Credential:    cfg.APIKey,
	}, opts...)}
}

// RecordDagProof requires DAG_API_KEY. A nil response means the service
// acknowledged with an empty body.
func (d *DAG) RecordDagProof(ctx context.Context, payload DagProofPayload) (*DagProofResponse, error) {
	if err := d.svc.RequireCredential(); err != nil {
		return nil, err
	}
	if payload.Evidence == nil {
		payload.Evidence = map[string]interface{}{}
	}

	var resp DagProofResponse
	ok, err := d.svc.Do(ctx, "record", http.MethodPost, payload, &resp, "v1", "proofs")
	if err != nil {
		return nil, fmt.Errorf("failed to record dag proof: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &resp, nil
}

// GetDagProof fetches proof status. The API key is sent when configured.
func (d *DAG) GetDagProof(ctx context.Context, dagHash string) (json.RawMessage, error) {
	raw, err := d.svc.getRaw(ctx, "get", "v1", "proofs", dagHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get dag proof: %w", err)
	}
	return raw, nil
}
