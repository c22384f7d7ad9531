// Package proof talks to the three provenance networks HakiChain records
// against: Constellation DAG proofs, ICP canister metadata and Story Protocol
// IP assets. Each network is a Provider descriptor driving one Service.
package proof

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hakichain/hakichain/internal/httpclient"
	"github.com/hakichain/hakichain/internal/logging"
	"github.com/hakichain/hakichain/internal/metrics"
)

// MissingCredentialError is returned before any request when a required
// environment variable is unset.
type MissingCredentialError struct {
	EnvVar string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("Missing %s environment variable.", e.EnvVar)
}

// Provider describes one proof network.
type Provider struct {
	Name          string // "dag", "icp" or "story"
	BaseURL       string
	CredentialEnv string // variable named in MissingCredentialError
	Credential    string // sent as a bearer token when set
}

// Service sends JSON requests to a Provider.
type Service struct {
	provider Provider
	client   *httpclient.Client
	timeout  time.Duration
	metrics  *metrics.Collector
}

// Option configures a Service.
type Option func(*Service)

// WithHTTPClient replaces the shared JSON client.
func WithHTTPClient(c *httpclient.Client) Option {
	return func(s *Service) { s.client = c }
}

// WithTimeout bounds every request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithMetrics records one proof_requests_total sample per call.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(p Provider, opts ...Option) *Service {
	p.BaseURL = strings.TrimRight(p.BaseURL, "/")
	s := &Service{provider: p, client: httpclient.New(nil)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Provider() Provider {
	return s.provider
}

// RequireCredential fails with *MissingCredentialError when the provider has
// no credential.
func (s *Service) RequireCredential() error {
	if s.provider.Credential == "" {
		return &MissingCredentialError{EnvVar: s.provider.CredentialEnv}
	}
	return nil
}

// Do sends method to BaseURL+path, joining the escaped segments. It reports
// false when the provider answered with an empty body.
func (s *Service) Do(ctx context.Context, op, method string, body, out interface{}, segments ...string) (bool, error) {
	escaped := make([]string, len(segments))
	for i, seg := range segments {
		escaped[i] = url.PathEscape(seg)
	}
	endpoint := s.provider.BaseURL + "/" + strings.Join(escaped, "/")

	ok, err := s.client.RequestJSON(ctx, endpoint, httpclient.Options{
		Method:      method,
		Body:        body,
		Timeout:     s.timeout,
		BearerToken: s.provider.Credential,
	}, out)
	s.metrics.ObserveProof(s.provider.Name, op, err)
	if err != nil {
		logging.Warn("proof request failed", logging.Component("proof"),
			"network", s.provider.Name, "op", op, logging.Err(err))
		return false, err
	}
	logging.Debug("proof request", logging.Component("proof"), "network", s.provider.Name, "op", op, "empty", !ok)
	return ok, nil
}

// getRaw fetches a record whose shape is owned by the provider.
func (s *Service) getRaw(ctx context.Context, op string, segments ...string) (json.RawMessage, error) {
	var raw json.RawMessage
	ok, err := s.Do(ctx, op, "GET", nil, &raw, segments...)
	if err != nil || !ok {
		return nil, err
	}
	return raw, nil
}
