package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/salescope-lab/salescope/internal/aggregation"
	"github.com/salescope-lab/salescope/internal/answer"
	"github.com/salescope-lab/salescope/internal/chat"
	coreagg "github.com/salescope-lab/salescope/internal/core/aggregation"
	corecfg "github.com/salescope-lab/salescope/internal/core/config"
	"github.com/salescope-lab/salescope/internal/core/storage/qdrant"
	"github.com/salescope-lab/salescope/internal/embedding"
	"github.com/salescope-lab/salescope/internal/retrieval"
	"github.com/salescope-lab/salescope/internal/server"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional)")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// .env is optional; deployments usually inject env vars directly.
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	applyAPIKeyFallback(cfg)
	slog.Info("Loaded config",
		"qdrant_url", cfg.Qdrant.URL,
		"collection", cfg.Qdrant.Collection,
		"embedding_model", cfg.Embedding.Model,
		"chat_enabled", cfg.Chat.Enabled,
	)

	// 2. Initialize Vector Store (Qdrant)
	store := qdrant.New(qdrant.Config{
		URL:     cfg.Qdrant.URL,
		APIKey:  cfg.Qdrant.APIKey,
		Timeout: time.Duration(cfg.Qdrant.TimeoutSec) * time.Second,
	})

	// 3. Initialize Aggregation Engine
	engine := coreagg.NewEngine(store, cfg.Aggregation.BatchSize)

	// 4. Initialize Embedding + Chat clients
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

	var completer chat.Completer
	if cfg.Chat.Enabled {
		client, err := chat.New(chat.Config{
			APIKey:  cfg.Chat.APIKey,
			BaseURL: cfg.Chat.BaseURL,
			Model:   cfg.Chat.Model,
		})
		if err != nil {
			slog.Error("Failed to initialize chat client", "error", err)
			os.Exit(1)
		}
		completer = client
	} else {
		slog.Info("Chat model disabled by config; deterministic answers only")
	}

	// 5. Initialize Services
	assembler := retrieval.NewAssembler(embedder, store, cfg.Retrieval.Limit)
	answerSvc := answer.NewService(cfg.Rules, engine, assembler, completer, cfg.Qdrant.Collection, cfg.Retrieval.ContextBudget)
	aggregationSvc := aggregation.NewService(engine, cfg.Qdrant.Collection)

	// 6. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), store, cfg.Server.Mode)
	answerSvc.RegisterRoutes(srv.Engine)
	aggregationSvc.RegisterRoutes(srv.Engine)

	// 7. Start
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

// applyAPIKeyFallback honors the OPENROUTER_API_KEY convention: one env var
// serves both clients unless a per-client key is set.
func applyAPIKeyFallback(cfg *corecfg.Config) {
	key := os.Getenv("OPENROUTER_API_KEY")
	if key == "" {
		return
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = key
	}
	if cfg.Chat.APIKey == "" {
		cfg.Chat.APIKey = key
	}
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
