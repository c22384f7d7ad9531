package anchor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hakichain/hakichain/internal/httpclient"
)

// Gateway submits memo transfers to a DAG wallet gateway, which holds the
// Constellation key and signs on our behalf.
type Gateway struct {
	baseURL string
	client  *httpclient.Client
	timeout time.Duration
}

func NewGateway(baseURL string, client *httpclient.Client, timeout time.Duration) *Gateway {
	if client == nil {
		client = httpclient.New(nil)
	}
	return &Gateway{baseURL: strings.TrimRight(baseURL, "/"), client: client, timeout: timeout}
}

type sendDagRequest struct {
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
	Memo   string  `json:"memo"`
}

type sendDagResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Tx      struct {
		Hash            string `json:"hash"`
		TransactionHash string `json:"transaction_hash"`
	} `json:"tx"`
}

// SendDag transfers amount DAG to destination with memo attached and returns
// the transaction hash.
func (g *Gateway) SendDag(ctx context.Context, destination string, amount float64, memo string) (string, error) {
	if destination == "" || amount <= 0 {
		return "", errors.New("missing required fields: 'to' or 'amount'")
	}

	var resp sendDagResponse
	ok, err := g.client.RequestJSON(ctx, g.baseURL+"/send-dag", httpclient.Options{
		Method:  http.MethodPost,
		Body:    sendDagRequest{To: destination, Amount: amount, Memo: memo},
		Timeout: g.timeout,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("failed to send dag transaction: %w", err)
	}
	if !ok {
		return "", errors.New("failed to send dag transaction: empty gateway response")
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "unknown error from DAG gateway"
		}
		return "", fmt.Errorf("failed to send dag transaction: %s", msg)
	}

	if resp.Tx.TransactionHash != "" {
		return resp.Tx.TransactionHash, nil
	}
	return resp.Tx.Hash, nil
}
