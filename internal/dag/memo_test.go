package dag

import (
	"encoding/json"
	"reflect"
	"testing"
)

func mustTx(t *testing.T, s string) Transaction {
	t.Helper()
	var tx Transaction
	if err := json.Unmarshal([]byte(s), &tx); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return tx
}

func TestParseMemo_AuxiliaryData(t *testing.T) {
	tx := mustTx(t, `{
		"hash": "abcdef0123456789",
		"amount": 10000,
		"snapshotOrdinal": 42,
		"auxiliaryData": "{\"document_id\": 12,\n\t\"title\": \"Brief\", \"hash\": \"h1\", \"ipfs_cid\": \"Qm\", \"metadata\": {}}"
	}`)

	got := ParseMemo(tx)
	doc, ok := got.Document()
	if !ok {
		t.Fatal("expected document")
	}
	want := map[string]interface{}{
		"document_id": json.Number("12"),
		"title":       "Brief",
		"hash":        "h1",
		"ipfs_cid":    "Qm",
		"metadata":    map[string]interface{}{},
	}
	if !reflect.DeepEqual(doc, want) {
		t.Errorf("document = %#v", doc)
	}
	for _, k := range []string{"hash", "amount", "snapshotOrdinal", "auxiliaryData"} {
		if string(got[k]) != string(tx[k]) {
			t.Errorf("field %s changed: %s -> %s", k, tx[k], got[k])
		}
	}
	if _, ok := tx["document"]; ok {
		t.Error("input transaction must not be modified")
	}
}

func TestParseMemo_Priority(t *testing.T) {
	tx := mustTx(t, `{
		"hash": "h",
		"memo": "{\"document_id\":\"from-memo\"}",
		"transactionOriginal": {"value": {"memo": "{\"document_id\":\"nested\"}"}, "memo": "{\"document_id\":\"outer\"}"}
	}`)
	doc, ok := ParseMemo(tx).Document()
	if !ok || doc["document_id"] != "from-memo" {
		t.Errorf("expected top-level memo to win, got %v", doc)
	}

	nested := mustTx(t, `{"hash":"h","transactionOriginal":{"memo":"{\"document_id\":\"outer\"}"}}`)
	doc, ok = ParseMemo(nested).Document()
	if !ok || doc["document_id"] != "outer" {
		t.Errorf("expected transactionOriginal.memo, got %v", doc)
	}
}

func TestParseMemo_DoubleEncoded(t *testing.T) {
	inner := `{"document_id": 7, "title": "x"}`
	encoded, _ := json.Marshal(inner)
	memo, _ := json.Marshal(string(encoded))

	tx := mustTx(t, `{"hash":"h","auxiliaryData":`+string(memo)+`}`)
	doc, ok := ParseMemo(tx).Document()
	if !ok || doc["document_id"] != json.Number("7") {
		t.Errorf("double-encoded memo not parsed: %v", doc)
	}
}

func TestParseMemo_Unchanged(t *testing.T) {
	tests := []struct {
		name string
		tx   string
	}{
		{"no memo", `{"hash":"h"}`},
		{"plain text", `{"hash":"h","memo":"HakiChain DAG Transfer"}`},
		{"no document_id", `{"hash":"h","memo":"{\"title\":\"x\"}"}`},
		{"zero document_id", `{"hash":"h","memo":"{\"document_id\":0}"}`},
		{"empty document_id", `{"hash":"h","memo":"{\"document_id\":\"\"}"}`},
		{"array", `{"hash":"h","memo":"[1,2]"}`},
		{"trailing garbage", `{"hash":"h","memo":"{\"document_id\":1} x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := mustTx(t, tt.tx)
			got := ParseMemo(tx)
			if _, ok := got.Document(); ok {
				t.Error("unexpected document")
			}
			if !reflect.DeepEqual(got, tx) {
				t.Error("transaction should be returned unchanged")
			}
		})
	}
}

func TestTruthy(t *testing.T) {
	cases := map[interface{}]bool{
		nil:                false,
		false:              false,
		true:               true,
		"":                 false,
		"a":                true,
		json.Number("0"):   false,
		json.Number("0.0"): false,
		json.Number("3"):   true,
	}
	for v, want := range cases {
		if got := truthy(v); got != want {
			t.Errorf("truthy(%#v) = %v", v, got)
		}
	}
	if !truthy(map[string]interface{}{}) {
		t.Error("objects are truthy")
	}
}
