package dag

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hakichain/hakichain/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	pages []*Page
	errs  []error
	calls []string
}

func (f *fakeSource) Transactions(_ context.Context, limit int, cursor string) (*Page, error) {
	i := len(f.calls)
	f.calls = append(f.calls, cursor)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.pages) {
		return &Page{}, nil
	}
	return f.pages[i], nil
}

func txs(n int, prefix string) []Transaction {
	out := make([]Transaction, n)
	for i := range out {
		out[i] = Transaction{"hash": []byte(fmt.Sprintf(`"%s-%d"`, prefix, i))}
	}
	return out
}

func TestScan_FollowsCursor(t *testing.T) {
	src := &fakeSource{pages: []*Page{
		{Transactions: txs(2, "a"), Cursor: "c1"},
		{Transactions: txs(3, "b"), Cursor: "c2"},
		{Transactions: txs(1, "c")},
	}}
	m := metrics.NewCollector()

	got, err := NewScanner(src, 0, m).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 6 {
		t.Errorf("transactions = %d, want 6", len(got))
	}
	if fmt.Sprint(src.calls) != "[ c1 c2]" {
		t.Errorf("cursors = %q", src.calls)
	}
	if got[5].Hash() != "c-0" {
		t.Errorf("order lost: last = %s", got[5].Hash())
	}

	expected := `
# HELP hakichain_dag_transactions_scanned_total Constellation transactions read by the memo scanner.
# TYPE hakichain_dag_transactions_scanned_total counter
hakichain_dag_transactions_scanned_total 6
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "hakichain_dag_transactions_scanned_total"); err != nil {
		t.Error(err)
	}
}

func TestScan_EmptyPageWithCursorStops(t *testing.T) {
	src := &fakeSource{pages: []*Page{
		{Transactions: txs(2, "a"), Cursor: "c1"},
		{Cursor: "c2"},
		{Transactions: txs(5, "never")},
	}}
	got, err := NewScanner(src, 10, nil).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || len(src.calls) != 2 {
		t.Errorf("got %d transactions after %d calls", len(got), len(src.calls))
	}
}

func TestScan_InvalidPageKeepsRead(t *testing.T) {
	src := &fakeSource{
		pages: []*Page{{Transactions: txs(3, "a"), Cursor: "c1"}},
		errs:  []error{nil, ErrInvalidPage},
	}
	got, err := NewScanner(src, 10, nil).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 transactions kept, got %d", len(got))
	}
}

func TestScan_SourceError(t *testing.T) {
	boom := errors.New("boom")
	src := &fakeSource{errs: []error{boom}}
	if _, err := NewScanner(src, 10, nil).Scan(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestScan_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{}
	if _, err := NewScanner(src, 10, nil).Scan(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
	if len(src.calls) != 0 {
		t.Error("no page should be fetched after cancel")
	}
}

func TestExplorer_Pages(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/addresses/DAGaddr/transactions" {
			http.NotFound(w, r)
			return
		}
		queries = append(queries, r.URL.RawQuery)
		switch r.URL.Query().Get("search_after") {
		case "":
			w.Write([]byte(`{"data":[{"hash":"t1","memo":"{\"document_id\":1}"}],"meta":{"next":"n1"}}`))
		case "n1":
			w.Write([]byte(`[{"hash":"t2"}]`))
		}
	}))
	defer srv.Close()

	m := metrics.NewCollector()
	got, err := NewScanner(NewExplorer(srv.URL, "DAGaddr", nil, 0), 100, m).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("transactions = %d", len(got))
	}
	if _, ok := got[0].Document(); !ok {
		t.Error("first transaction should carry a document")
	}
	if queries[0] != "limit=100" || queries[1] != "limit=100&search_after=n1" {
		t.Errorf("queries = %v", queries)
	}
}

func TestDecodePage(t *testing.T) {
	if _, err := decodePage([]byte(`{"unexpected":true}`)); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("object without data: %v", err)
	}
	if _, err := decodePage([]byte(`"text"`)); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("string body: %v", err)
	}
	p, err := decodePage([]byte(`{"data":[],"cursor":"c"}`))
	if err != nil || p.Cursor != "c" || len(p.Transactions) != 0 {
		t.Errorf("page = %+v, %v", p, err)
	}
}

func TestExplorer_Balance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/addresses/DAGaddr/balance" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"data":{"balance":150000000,"ordinal":9}}`))
	}))
	defer srv.Close()

	bal, err := NewExplorer(srv.URL+"/", "DAGaddr", nil, 0).Balance(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if f, _ := bal.Float64(); f != 1.5 {
		t.Errorf("balance = %v, want 1.5", f)
	}
}
