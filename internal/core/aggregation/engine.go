package aggregation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/salescope-lab/salescope/internal/core/period"
	"github.com/salescope-lab/salescope/internal/core/storage"
)

// DefaultBatchSize is the scroll page size. Qdrant caps page sizes, so a full
// month scan must page until the store reports exhaustion rather than trust a
// single response.
const DefaultBatchSize = 500

// Result is the outcome of one monthly aggregation. Records whose field value
// was missing or malformed are counted in RecordsSkipped and never touch
// Total, so one corrupt row cannot poison the sum.
type Result struct {
	Period            period.Period
	RecordsAggregated int
	RecordsSkipped    int
	Total             decimal.Decimal
}

// Engine performs exact, paginated summation over the vector store.
type Engine struct {
	store     storage.VectorStore
	batchSize int
}

func NewEngine(store storage.VectorStore, batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Engine{store: store, batchSize: batchSize}
}

// monthFilter selects records whose month_year falls inside the period.
// The upper bound is the last second of the month because stored values are
// timestamps at second granularity in both of the source's date shapes.
func monthFilter(p period.Period) storage.Filter {
	return storage.Filter{Ranges: []storage.RangeCondition{{
		Key: "month_year",
		GTE: p.Start().Format(time.RFC3339),
		LTE: p.End().Add(-time.Second).Format(time.RFC3339),
	}}}
}

// SumMonth scans every record in the period and sums the requested field.
// Accumulation order is the store's scan order; values are decimals, so the
// total is exact regardless of magnitude mix. Transport failures abort the
// scan and surface storage.ErrUnavailable — a partial sum is never returned
// as if it were complete.
func (e *Engine) SumMonth(ctx context.Context, collection string, p period.Period, field Field) (Result, error) {
	res := Result{Period: p, Total: decimal.Zero}
	filter := monthFilter(p)

	var offset any
	pages := 0
	for {
		records, next, err := e.store.Scroll(ctx, collection, filter, e.batchSize, offset)
		if err != nil {
			return Result{}, fmt.Errorf("scrolling %s for %s: %w", collection, p, err)
		}
		pages++

		for _, rec := range records {
			raw, ok := field.Lookup(rec)
			if !ok {
				res.RecordsSkipped++
				continue
			}
			amount, ok := ParseAmount(raw)
			if !ok {
				res.RecordsSkipped++
				continue
			}
			res.Total = res.Total.Add(amount)
			res.RecordsAggregated++
		}

		if next == nil || len(records) == 0 {
			break
		}
		offset = next
	}

	slog.Info("Aggregation complete",
		"collection", collection,
		"period", p.String(),
		"field", field.String(),
		"pages", pages,
		"records_aggregated", res.RecordsAggregated,
		"records_skipped", res.RecordsSkipped,
	)
	return res, nil
}
