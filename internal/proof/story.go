package proof

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hakichain/hakichain/internal/config"
)

const defaultLicenseType = "standard"

type RegisterStoryAssetPayload struct {
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	IPFSHash    string                 `json:"ipfsHash"`
	LicenseType string                 `json:"licenseType,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type StoryAssetResponse struct {
	AssetID     string `json:"assetId"`
	TxHash      string `json:"txHash,omitempty"`
	MetadataURI string `json:"metadataUri,omitempty"`
}

type storyAssetRequest struct {
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	IPFSHash    string                 `json:"ipfs_hash"`
	LicenseType string                 `json:"license_type"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// Story registers legal work as Story Protocol IP assets.
type Story struct {
	svc *Service
}

func NewStory(cfg config.StoryAPI, opts ...Option) *Story {
	return &Story{svc: NewService(Provider{
		Name:          "story",
		BaseURL:       cfg.BaseURL,
		CredentialEnv: config.EnvStoryAPIKey,
		Credential:    cfg.APIKey,
	}, opts...)}
}

// RegisterStoryAsset requires STORY_API_KEY. License type defaults to
// "standard" and metadata to an empty object.
func (s *Story) RegisterStoryAsset(ctx context.Context, payload RegisterStoryAssetPayload) (*StoryAssetResponse, error) {
	if err := s.svc.RequireCredential(); err != nil {
		return nil, err
	}

	req := storyAssetRequest{
		Title:       payload.Title,
		Description: payload.Description,
		IPFSHash:    payload.IPFSHash,
		LicenseType: payload.LicenseType,
		Metadata:    payload.Metadata,
	}
	if req.LicenseType == "" {
		req.LicenseType = defaultLicenseType
	}
	if req.Metadata == nil {
		req.Metadata = map[string]interface{}{}
	}

	var resp StoryAssetResponse
	ok, err := s.svc.Do(ctx, "register", http.MethodPost, req, &resp, "v1", "assets")
	if err != nil {
		return nil, fmt.Errorf("failed to register story asset: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &resp, nil
}

// UpdateStoryAssetLicensing attaches licensing terms to an existing asset.
func (s *Story) UpdateStoryAssetLicensing(ctx context.Context, assetID string, licensing map[string]interface{}) (json.RawMessage, error) {
	if err := s.svc.RequireCredential(); err != nil {
		return nil, err
	}

	var raw json.RawMessage
	ok, err := s.svc.Do(ctx, "license", http.MethodPost, licensing, &raw, "v1", "assets", assetID, "licensing")
	if err != nil {
		return nil, fmt.Errorf("failed to update story asset licensing: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return raw, nil
}
