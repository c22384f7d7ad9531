package anchor

import (
	"context"
	"fmt"
	"io"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
)

// ContentStore stores document envelopes and returns their CID.
type ContentStore interface {
	Add(ctx context.Context, r io.Reader) (string, error)
}

// IPFSClient wraps the IPFS HTTP API client.
type IPFSClient struct {
	client *shell.Shell
}

// NewIPFSClient connects to the IPFS API at apiAddr, e.g. "localhost:5001".
func NewIPFSClient(apiAddr string, timeout time.Duration) *IPFSClient {
	sh := shell.NewShell(apiAddr)
	if timeout > 0 {
		sh.SetTimeout(timeout)
	}
	return &IPFSClient{client: sh}
}

// Add uploads r and pins the resulting CID.
func (ic *IPFSClient) Add(ctx context.Context, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cid, err := ic.client.Add(r, shell.Pin(true))
	if err != nil {
		return "", fmt.Errorf("failed to add document to IPFS: %w", err)
	}
	return cid, nil
}

// IsUp reports whether the IPFS daemon answers.
func (ic *IPFSClient) IsUp() bool {
	return ic.client.IsUp()
}
