package proof

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hakichain/hakichain/internal/config"
)

type StoreIcpMetadataPayload struct {
	DocID    string                 `json:"doc_id"`
	Hash     string                 `json:"sha256_hash"`
	Metadata map[string]interface{} `json:"metadata"`
}

type IcpMetadataResponse struct {
	CanisterID string `json:"canisterId"`
	RecordID   string `json:"recordId"`
	AnchorCID  string `json:"anchorCid,omitempty"`
}

// ICP stores document metadata in an ICP canister. The agent id selects the
// canister; the auth token is optional.
type ICP struct {
	svc     *Service
	agentID string
}

func NewICP(cfg config.ICPAPI, opts ...Option) *ICP {
	return &ICP{
		svc: NewService(Provider{
			Name:          "icp",
			BaseURL:       cfg.BaseURL,
			CredentialEnv: config.EnvICPAuthToken,
			Credential:    cfg.AuthToken,
		}, opts...),
		agentID: cfg.AgentID,
	}
}

// StoreIcpMetadata requires ICP_AGENT_ID.
func (c *ICP) StoreIcpMetadata(ctx context.Context, payload StoreIcpMetadataPayload) (*IcpMetadataResponse, error) {
	if c.agentID == "" {
		return nil, &MissingCredentialError{EnvVar: config.EnvICPAgentID}
	}
	if payload.Metadata == nil {
		payload.Metadata = map[string]interface{}{}
	}

	var resp IcpMetadataResponse
	ok, err := c.svc.Do(ctx, "store", http.MethodPost, payload, &resp, "canisters", c.agentID, "metadata")
	if err != nil {
		return nil, fmt.Errorf("failed to store icp metadata: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &resp, nil
}

func (c *ICP) GetIcpMetadata(ctx context.Context, canisterID, recordID string) (json.RawMessage, error) {
	raw, err := c.svc.getRaw(ctx, "get", "canisters", canisterID, "metadata", recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to get icp metadata: %w", err)
	}
	return raw, nil
}
