package dag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hakichain/hakichain/internal/httpclient"
)

// datumPerDAG is the number of datum (the smallest unit) in one DAG.
const datumPerDAG = 1e8

// ErrInvalidPage is returned for a transactions response that is neither a
// paginated object nor a bare array.
var ErrInvalidPage = errors.New("invalid transactions page")

// Page is one page of explorer transactions. An empty Cursor means the last page.
type Page struct {
	Transactions []Transaction
	Cursor       string
}

// PageSource pages through the transactions of the configured address.
type PageSource interface {
	Transactions(ctx context.Context, limit int, cursor string) (*Page, error)
}

// Explorer reads an address from the Constellation block explorer API.
type Explorer struct {
	baseURL string
	address string
	client  *httpclient.Client
	timeout time.Duration
}

func NewExplorer(baseURL, address string, client *httpclient.Client, timeout time.Duration) *Explorer {
	if client == nil {
		client = httpclient.New(nil)
	}
	return &Explorer{
		baseURL: strings.TrimRight(baseURL, "/"),
		address: address,
		client:  client,
		timeout: timeout,
	}
}

func (e *Explorer) Address() string {
	return e.address
}

// pageResponse accepts the cursor either top level or as meta.next.
type pageResponse struct {
	Data   *[]Transaction `json:"data"`
	Cursor string         `json:"cursor"`
	Meta   struct {
		Next string `json:"next"`
	} `json:"meta"`
}

// Transactions fetches one page. A bare JSON array is treated as the final page.
func (e *Explorer) Transactions(ctx context.Context, limit int, cursor string) (*Page, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		q.Set("search_after", cursor)
	}
	endpoint := fmt.Sprintf("%s/addresses/%s/transactions?%s", e.baseURL, url.PathEscape(e.address), q.Encode())

	var raw json.RawMessage
	ok, err := e.client.RequestJSON(ctx, endpoint, httpclient.Options{Method: http.MethodGet, Timeout: e.timeout}, &raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidPage
	}
	return decodePage(raw)
}

func decodePage(raw json.RawMessage) (*Page, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var txs []Transaction
		if err := json.Unmarshal(trimmed, &txs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPage, err)
		}
		return &Page{Transactions: txs}, nil
	}

	var resp pageResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil || resp.Data == nil {
		return nil, ErrInvalidPage
	}
	cursor := resp.Cursor
	if cursor == "" {
		cursor = resp.Meta.Next
	}
	return &Page{Transactions: *resp.Data, Cursor: cursor}, nil
}

// Balance returns the address balance in DAG.
func (e *Explorer) Balance(ctx context.Context) (*big.Float, error) {
	endpoint := fmt.Sprintf("%s/addresses/%s/balance", e.baseURL, url.PathEscape(e.address))

	var resp struct {
		Data struct {
			Balance json.Number `json:"balance"`
		} `json:"data"`
	}
	ok, err := e.client.RequestJSON(ctx, endpoint, httpclient.Options{Method: http.MethodGet, Timeout: e.timeout}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balance: %w", err)
	}
	if !ok || resp.Data.Balance == "" {
		return new(big.Float), nil
	}

	datum, ok := new(big.Float).SetString(resp.Data.Balance.String())
	if !ok {
		return nil, fmt.Errorf("failed to fetch balance: invalid value %q", resp.Data.Balance)
	}
	return datum.Quo(datum, big.NewFloat(datumPerDAG)), nil
}
