package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/salescope-lab/salescope/internal/core/storage"
	"github.com/salescope-lab/salescope/internal/embedding"
)

// DefaultLimit matches the store-side default for similarity queries.
const DefaultLimit = 10

// Hit is one retrieval result. Rank is the 0-based position in the store's
// similarity ordering; ties keep the store's order, which is stable for a
// fixed query.
type Hit struct {
	Record storage.Record `json:"record"`
	Score  float64        `json:"score"`
	Rank   int            `json:"rank"`
}

// Assembler runs semantic retrieval: embed the question, search the store,
// normalize hits into grounding material for the chat model.
type Assembler struct {
	embedder embedding.Embedder
	store    storage.VectorStore
	limit    int
}

func NewAssembler(embedder embedding.Embedder, store storage.VectorStore, limit int) *Assembler {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Assembler{embedder: embedder, store: store, limit: limit}
}

// Retrieve returns ranked hits for the question. An empty slice with a nil
// error means the collection simply had no matches; errors are reserved for
// embedding or store failures, which the caller degrades from explicitly.
func (a *Assembler) Retrieve(ctx context.Context, collection, question string) ([]Hit, error) {
	vector, err := a.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	scored, err := a.store.Search(ctx, collection, vector, a.limit)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", collection, err)
	}

	hits := make([]Hit, len(scored))
	for i, s := range scored {
		hits[i] = Hit{Record: s.Payload, Score: s.Score, Rank: i}
	}
	return hits, nil
}

// payloadString tries alias keys in order and falls back when the noisy
// source data carries none of them.
func payloadString(rec storage.Record, fallback string, keys ...string) string {
	for _, key := range keys {
		v, ok := rec[key]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			if val != "" {
				return val
			}
		default:
			return fmt.Sprintf("%v", val)
		}
	}
	return fallback
}

// FormatHit renders one hit as a single compact context line.
func FormatHit(h Hit) string {
	rec := h.Record
	product := payloadString(rec, "Unknown product", "product_name", "product")
	sales := payloadString(rec, "N/A", "sales", "sales_amount")
	date := payloadString(rec, "Unknown date", "month_year", "date")
	volume := payloadString(rec, "N/A", "sales_vol", "quantity", "sales_volume")
	return fmt.Sprintf("- %s: sales=%s, date=%s, volume=%s", product, sales, date, volume)
}

// BuildContext serializes hits into the grounding block passed to the chat
// model. Output never exceeds budget bytes: lines are dropped from the
// lowest-ranked end first, at whole-line granularity, so the prompt keeps the
// strongest evidence and stays within the model's input economics.
func BuildContext(hits []Hit, budget int) string {
	if budget <= 0 || len(hits) == 0 {
		return ""
	}

	var b strings.Builder
	for i, h := range hits {
		line := FormatHit(h)
		need := len(line)
		if i > 0 {
			need++ // newline separator
		}
		if b.Len()+need > budget {
			break
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return b.String()
}
