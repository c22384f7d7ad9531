// Package httpclient is the JSON-over-HTTP helper shared by the proof
// services, the DAG explorer and the anchoring gateway.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrTimeout is wrapped by errors from requests that exceeded Options.Timeout.
var ErrTimeout = errors.New("request timed out")

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	URL        string
	StatusCode int
	Status     string // status text, e.g. "Not Found"
	Body       string
}

func (e *HTTPError) Error() string {
	body := e.Body
	if body == "" {
		body = "No body returned"
	}
	return fmt.Sprintf("request failed (%d %s) to %s: %s", e.StatusCode, e.Status, e.URL, body)
}

// Options configures one request. The zero value is a POST without a body.
type Options struct {
	Method      string
	Headers     map[string]string
	Body        interface{}
	Timeout     time.Duration
	BearerToken string
}

// Client sends JSON requests with a shared http.Client.
type Client struct {
	httpClient *http.Client
}

// New wraps hc; nil uses a client without its own timeout, since each request
// carries Options.Timeout.
func New(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{httpClient: hc}
}

var defaultClient = New(nil)

// RequestJSON sends a request with the default client. See Client.RequestJSON.
func RequestJSON(ctx context.Context, url string, opts Options, out interface{}) (bool, error) {
	return defaultClient.RequestJSON(ctx, url, opts, out)
}

// RequestJSON sends opts.Body as JSON to url and decodes the response into
// out. It reports false when the server answered 2xx with a zero-length
// body, in which case out is left untouched. Any other body must be JSON,
// whitespace included, even when out is nil.
func (c *Client) RequestJSON(ctx context.Context, url string, opts Options, out interface{}) (bool, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodPost
	}

	var reqBody io.Reader
	if opts.Body != nil {
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return false, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if opts.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+opts.BearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, c.wrapTransportError(ctx, opts.Timeout, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, c.wrapTransportError(ctx, opts.Timeout, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, &HTTPError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Body:       string(respBody),
		}
	}

	if len(respBody) == 0 {
		return false, nil
	}
	if out == nil {
		var discard json.RawMessage
		out = &discard
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return false, fmt.Errorf("failed to parse response from %s: %w", url, err)
	}
	return true, nil
}

func (c *Client) wrapTransportError(ctx context.Context, timeout time.Duration, err error) error {
	if timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %dms", ErrTimeout, timeout.Milliseconds())
	}
	return fmt.Errorf("request failed: %w", err)
}
