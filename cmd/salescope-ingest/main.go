// salescope-ingest embeds sales rows from Postgres into a Qdrant collection.
// It is run per dataset, typically from a cron job or a one-off shell:
//
//	salescope-ingest -dsn "$DATABASE_URL" -table sales_vol_staging
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	corecfg "github.com/salescope-lab/salescope/internal/core/config"
	"github.com/salescope-lab/salescope/internal/core/storage/qdrant"
	"github.com/salescope-lab/salescope/internal/embedding"
	"github.com/salescope-lab/salescope/internal/ingestion"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional)")
	dsn := flag.String("dsn", os.Getenv("DATABASE_URL"), "PostgreSQL DSN (defaults to DATABASE_URL)")
	table := flag.String("table", "", "Source table to ingest (required)")
	collection := flag.String("collection", "", "Target collection (defaults to qdrant.collection)")
	dataset := flag.String("dataset", "", "Dataset name scoping point IDs (defaults to the table name)")
	batchSize := flag.Int("batch", ingestion.DefaultBatchSize, "Rows per embedding batch")
	workers := flag.Int("workers", ingestion.DefaultWorkers, "Concurrent embedding workers")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	if *table == "" {
		slog.Error("Missing required flag -table")
		os.Exit(1)
	}
	if *dsn == "" {
		slog.Error("Missing PostgreSQL DSN: pass -dsn or set DATABASE_URL")
		os.Exit(1)
	}

	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" && cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = key
	}
	if *collection == "" {
		*collection = cfg.Qdrant.Collection
	}
	if *dataset == "" {
		*dataset = *table
	}

	source, err := ingestion.Open(*dsn, 10, 5)
	if err != nil {
		slog.Error("Failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer source.Close()

	embedder, err := embedding.New(embedding.Config{
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
	})
	if err != nil {
		slog.Error("Failed to initialize embedder", "error", err)
		os.Exit(1)
	}

	store := qdrant.New(qdrant.Config{
		URL:     cfg.Qdrant.URL,
		APIKey:  cfg.Qdrant.APIKey,
		Timeout: time.Duration(cfg.Qdrant.TimeoutSec) * time.Second,
	})

	pipeline := ingestion.NewPipeline(source, embedder, store, *batchSize, *workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := pipeline.Run(ctx, ingestion.Dataset{
		Name:       *dataset,
		Table:      *table,
		Collection: *collection,
	})
	if err != nil {
		slog.Error("Ingestion failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Ingestion finished",
		"dataset", *dataset,
		"rows", stats.Rows,
		"batches", stats.Batches,
		"upserted", stats.Upserted)
}
