package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/salescope-lab/salescope/internal/core/storage"
	"github.com/salescope-lab/salescope/internal/embedding"
)

const (
	// DefaultBatchSize keeps embedding requests under typical provider
	// payload limits.
	DefaultBatchSize = 64
	DefaultWorkers   = 4
)

// Dataset pairs a source table with its target collection. Name scopes point
// IDs, so two datasets can ingest into the same collection without colliding.
type Dataset struct {
	Name       string
	Table      string
	Collection string
}

// Stats summarizes one pipeline run.
type Stats struct {
	Rows     int
	Batches  int
	Upserted int
}

// Pipeline embeds and upserts rows from a Source.
type Pipeline struct {
	source    Source
	embedder  embedding.Embedder
	store     storage.VectorStore
	batchSize int
	workers   int
}

func NewPipeline(source Source, embedder embedding.Embedder, store storage.VectorStore, batchSize, workers int) *Pipeline {
	if source == nil {
		panic("ingestion: source must not be nil")
	}
	if embedder == nil {
		panic("ingestion: embedder must not be nil")
	}
	if store == nil {
		panic("ingestion: store must not be nil")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pipeline{
		source:    source,
		embedder:  embedder,
		store:     store,
		batchSize: batchSize,
		workers:   workers,
	}
}

// Run loads the dataset, ensures the target collection exists, then embeds
// and upserts rows in concurrent batches. Point IDs are derived from the
// dataset name and row index, so re-running a dataset overwrites its own
// points instead of duplicating them.
func (p *Pipeline) Run(ctx context.Context, ds Dataset) (Stats, error) {
	recs, err := p.source.Load(ctx, ds.Table)
	if err != nil {
		return Stats{}, fmt.Errorf("loading %s: %w", ds.Table, err)
	}
	if len(recs) == 0 {
		slog.Info("[Ingestion] No rows to ingest", "dataset", ds.Name, "table", ds.Table)
		return Stats{}, nil
	}

	if err := p.store.EnsureCollection(ctx, ds.Collection, p.embedder.Dimension()); err != nil {
		return Stats{}, fmt.Errorf("ensuring collection %s: %w", ds.Collection, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	var mu sync.Mutex
	stats := Stats{Rows: len(recs)}

	for start := 0; start < len(recs); start += p.batchSize {
		end := min(start+p.batchSize, len(recs))
		batch := recs[start:end]
		offset := start
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, rec := range batch {
				texts[i] = Describe(rec)
			}

			vecs, err := p.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embedding batch at row %d: %w", offset, err)
			}
			if len(vecs) != len(batch) {
				return fmt.Errorf("embedding batch at row %d: got %d vectors for %d texts", offset, len(vecs), len(batch))
			}

			points := make([]storage.Point, len(batch))
			for i := range batch {
				points[i] = storage.Point{
					ID:      pointID(ds.Name, offset+i),
					Vector:  vecs[i],
					Payload: batch[i],
				}
			}
			if err := p.store.Upsert(gctx, ds.Collection, points); err != nil {
				return fmt.Errorf("upserting batch at row %d: %w", offset, err)
			}

			mu.Lock()
			stats.Batches++
			stats.Upserted += len(points)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	slog.Info("[Ingestion] Dataset ingested",
		"dataset", ds.Name,
		"collection", ds.Collection,
		"rows", stats.Rows,
		"batches", stats.Batches)
	return stats, nil
}

// pointID is a deterministic UUIDv5 per dataset row.
func pointID(dataset string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("salescope://%s/%d", dataset, index))).String()
}

// Describe renders a row into the text that gets embedded. It mirrors the
// line format the retrieval layer shows the model, so index-time and
// query-time representations stay aligned.
func Describe(rec storage.Record) string {
	return fmt.Sprintf("%s: sales=%s, date=%s, volume=%s",
		payloadString(rec, "Unknown product", "product", "product_name", "item"),
		payloadString(rec, "N/A", "sales", "sales_amount"),
		payloadString(rec, "Unknown date", "month_year", "date"),
		payloadString(rec, "N/A", "sales_vol", "quantity", "sales_volume"),
	)
}

func payloadString(rec storage.Record, fallback string, keys ...string) string {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			if s == "" {
				continue
			}
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return fallback
}
