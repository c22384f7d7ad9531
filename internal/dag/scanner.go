package dag

import (
	"context"
	"errors"

	"github.com/hakichain/hakichain/internal/logging"
	"github.com/hakichain/hakichain/internal/metrics"
)

const DefaultPageLimit = 100

// Scanner collects every transaction of an address and parses document memos.
type Scanner struct {
	source  PageSource
	limit   int
	metrics *metrics.Collector
}

func NewScanner(source PageSource, limit int, m *metrics.Collector) *Scanner {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	return &Scanner{source: source, limit: limit, metrics: m}
}

// Scan pages until the cursor is exhausted. An empty page that still carries
// a cursor, or an invalid page, ends the scan with what was read so far.
func (s *Scanner) Scan(ctx context.Context) ([]Transaction, error) {
	var all []Transaction
	cursor := ""

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		logging.Debug("fetching transactions", logging.Component("dag"), "cursor", cursorLabel(cursor))
		page, err := s.source.Transactions(ctx, s.limit, cursor)
		if errors.Is(err, ErrInvalidPage) {
			logging.Warn("explorer returned an invalid page, stopping scan", logging.Component("dag"), "read", len(all))
			break
		}
		if err != nil {
			return nil, err
		}

		all = append(all, page.Transactions...)
		cursor = page.Cursor

		if len(page.Transactions) == 0 && cursor != "" {
			logging.Warn("empty page with cursor, stopping scan", logging.Component("dag"))
			break
		}
		if cursor == "" {
			break
		}
	}

	enriched := make([]Transaction, len(all))
	documents := 0
	for i, tx := range all {
		enriched[i] = ParseMemo(tx)
		if _, ok := enriched[i]["document"]; ok {
			documents++
		}
	}
	s.metrics.AddScanned(len(enriched), documents)

	logging.Info("dag scan finished", logging.Component("dag"), "transactions", len(enriched), "documents", documents)
	return enriched, nil
}

func cursorLabel(c string) string {
	if c == "" {
		return "start"
	}
	return c
}
