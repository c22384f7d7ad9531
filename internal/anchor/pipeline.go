// Package anchor publishes documents for later provenance checks: the
// envelope goes to IPFS and a JSON memo carrying its hash and CID goes to
// the Constellation DAG, where the memo scanner reads it back.
package anchor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hakichain/hakichain/internal/logging"
	"github.com/hakichain/hakichain/internal/metrics"
)

const defaultTitle = "Untitled"

// ErrInvalidDocument is returned by PushDocument before any stage runs.
var ErrInvalidDocument = errors.New("invalid document")

// Document is a document to anchor. ContentHash is computed from Content
// when empty.
type Document struct {
	ID          string                 `json:"document_id"`
	Title       string                 `json:"title,omitempty"`
	Content     string                 `json:"content,omitempty"`
	ContentHash string                 `json:"content_hash,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Result reports what each stage produced. A failed stage leaves its field
// empty and Complete false; skipped stages do not affect Complete.
type Result struct {
	RequestID   string `json:"request_id"`
	ContentHash string `json:"content_hash"`
	DagTx       string `json:"dag_tx"`
	IPFSCID     string `json:"ipfs_cid"`
	Complete    bool   `json:"complete"`
}

// Memo is the JSON carried by the DAG transaction.
type Memo struct {
	DocumentID string                 `json:"document_id"`
	Title      string                 `json:"title"`
	Hash       string                 `json:"hash"`
	Metadata   map[string]interface{} `json:"metadata"`
	IPFSCID    *string                `json:"ipfs_cid"`
}

type envelope struct {
	DocumentID  string                 `json:"document_id"`
	Metadata    map[string]interface{} `json:"metadata"`
	ContentHash string                 `json:"content_hash"`
}

// Sender submits a DAG transfer with a memo.
type Sender interface {
	SendDag(ctx context.Context, destination string, amount float64, memo string) (string, error)
}

// Pipeline runs the two anchoring stages. Either dependency may be nil, in
// which case its stage is skipped.
type Pipeline struct {
	store       ContentStore
	sender      Sender
	destination string
	amount      float64
	metrics     *metrics.Collector
}

func NewPipeline(store ContentStore, sender Sender, destination string, amount float64, m *metrics.Collector) *Pipeline {
	return &Pipeline{store: store, sender: sender, destination: destination, amount: amount, metrics: m}
}

// ContentHash returns the hex SHA-256 of content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// PushDocument uploads the envelope to IPFS, then anchors the memo on the
// DAG. Stage failures are logged and tolerated; only an invalid document
// returns an error.
func (p *Pipeline) PushDocument(ctx context.Context, doc Document) (*Result, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: document_id is required", ErrInvalidDocument)
	}
	if doc.ContentHash == "" {
		if doc.Content == "" {
			return nil, fmt.Errorf("%w: content or content_hash is required", ErrInvalidDocument)
		}
		doc.ContentHash = ContentHash(doc.Content)
	}
	if doc.Title == "" {
		doc.Title = defaultTitle
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]interface{}{}
	}

	res := &Result{RequestID: uuid.NewString(), ContentHash: doc.ContentHash, Complete: true}
	log := logging.With(logging.Component("anchor"), "request_id", res.RequestID, logging.DocumentID(doc.ID))
	log.Info("anchoring document")

	if p.store != nil {
		cid, err := p.uploadEnvelope(ctx, doc)
		p.metrics.ObserveAnchorStep("ipfs", err)
		if err != nil {
			log.Warn("ipfs upload failed", logging.Err(err))
			res.Complete = false
		} else {
			res.IPFSCID = cid
			log.Info("ipfs upload complete", "cid", cid)
		}
	}

	if p.sender != nil {
		tx, err := p.anchorMemo(ctx, doc, res.IPFSCID)
		p.metrics.ObserveAnchorStep("dag", err)
		if err != nil {
			log.Warn("dag anchoring failed", logging.Err(err))
			res.Complete = false
		} else {
			res.DagTx = tx
			log.Info("dag anchoring complete", logging.TxHash(tx))
		}
	}

	return res, nil
}

func (p *Pipeline) uploadEnvelope(ctx context.Context, doc Document) (string, error) {
	data, err := json.MarshalIndent(envelope{
		DocumentID:  doc.ID,
		Metadata:    doc.Metadata,
		ContentHash: doc.ContentHash,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode envelope: %w", err)
	}
	return p.store.Add(ctx, bytes.NewReader(data))
}

func (p *Pipeline) anchorMemo(ctx context.Context, doc Document, cid string) (string, error) {
	memo := Memo{
		DocumentID: doc.ID,
		Title:      doc.Title,
		Hash:       doc.ContentHash,
		Metadata:   doc.Metadata,
	}
	if cid != "" {
		memo.IPFSCID = &cid
	}
	data, err := json.MarshalIndent(memo, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode memo: %w", err)
	}
	return p.sender.SendDag(ctx, p.destination, p.amount, string(data))
}
