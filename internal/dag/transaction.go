// Package dag reads HakiChain document memos back from the Constellation
// network through the block explorer API.
package dag

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

var errTrailingData = errors.New("trailing data after JSON value")

// Transaction is an explorer transaction kept as raw JSON so every upstream
// field survives enrichment verbatim.
type Transaction map[string]json.RawMessage

// Hash returns the transaction hash or "" when absent.
func (tx Transaction) Hash() string {
	return tx.str("hash")
}

// Document returns the parsed memo document attached by ParseMemo.
func (tx Transaction) Document() (map[string]interface{}, bool) {
	raw, ok := tx["document"]
	if !ok {
		return nil, false
	}
	var doc map[string]interface{}
	if err := decodeNumbers(raw, &doc); err != nil || doc == nil {
		return nil, false
	}
	return doc, true
}

// str reads a string at a path of nested object keys.
func (tx Transaction) str(path ...string) string {
	cur := map[string]json.RawMessage(tx)
	for i, key := range path {
		raw, ok := cur[key]
		if !ok {
			return ""
		}
		if i == len(path)-1 {
			var s string
			if json.Unmarshal(raw, &s) != nil {
				return ""
			}
			return s
		}
		var next map[string]json.RawMessage
		if json.Unmarshal(raw, &next) != nil || next == nil {
			return ""
		}
		cur = next
	}
	return ""
}

// memoSources lists where a memo may sit, in lookup order.
var memoSources = [][]string{
	{"auxiliaryData"},
	{"memo"},
	{"transactionOriginal", "value", "memo"},
	{"transactionOriginal", "memo"},
}

// Memo returns the first non-empty memo and the field it came from.
func (tx Transaction) Memo() (memo, source string) {
	for _, path := range memoSources {
		if m := tx.str(path...); m != "" {
			return m, strings.Join(path, ".")
		}
	}
	return "", ""
}

// decodeNumbers decodes exactly one JSON value, keeping numbers as json.Number.
func decodeNumbers(raw []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errTrailingData
	}
	return nil
}
