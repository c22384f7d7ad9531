package dag

import (
	"encoding/json"
	"strings"

	"github.com/hakichain/hakichain/internal/logging"
)

var memoCleaner = strings.NewReplacer("\n", "", "\t", "", "\r", "")

func cleanMemo(s string) string {
	return strings.TrimSpace(memoCleaner.Replace(s))
}

// ParseMemo attaches the memo's document to a copy of tx when the memo is a
// JSON object with a truthy document_id. A memo that is itself a JSON string
// is unwrapped once. Anything else returns tx unchanged.
func ParseMemo(tx Transaction) Transaction {
	memo, source := tx.Memo()
	short := shortHash(tx.Hash())
	if memo == "" {
		logging.Debug("no document memo", logging.Component("dag"), "tx", short)
		return tx
	}

	doc, raw, ok := parseDocument(cleanMemo(memo))
	if !ok {
		logging.Debug("memo is not a document", logging.Component("dag"), "tx", short, "source", source)
		return tx
	}

	enriched := make(Transaction, len(tx)+1)
	for k, v := range tx {
		enriched[k] = v
	}
	enriched["document"] = raw
	logging.Debug("parsed document memo", logging.Component("dag"), "tx", short, "source", source,
		logging.DocumentID(toString(doc["document_id"])))
	return enriched
}

func parseDocument(memo string) (map[string]interface{}, json.RawMessage, bool) {
	var v interface{}
	if err := decodeNumbers([]byte(memo), &v); err != nil {
		return nil, nil, false
	}
	if inner, isString := v.(string); isString {
		memo = cleanMemo(inner)
		if err := decodeNumbers([]byte(memo), &v); err != nil {
			return nil, nil, false
		}
	}

	doc, ok := v.(map[string]interface{})
	if !ok || !truthy(doc["document_id"]) {
		return nil, nil, false
	}
	return doc, json.RawMessage(memo), true
}

// truthy follows JSON truthiness: false, 0, "" and null are false.
func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case json.Number:
		f, err := val.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
