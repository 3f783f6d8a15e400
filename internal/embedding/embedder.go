// Package embedding wraps the OpenAI-compatible embeddings API. The default
// base URL points at OpenRouter, which fronts the same wire protocol; the
// service only ever needs Embed for queries, EmbedBatch exists for ingestion.
package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// Embedder produces fixed-dimension vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
	Dimension() int
}

type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
}

type Client struct {
	client    openai.Client
	model     string
	dimension int
}

func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = "openai/text-embedding-3-small"
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = 1536
	}
	return &Client{
		client:    openai.NewClient(opts...),
		model:     model,
		dimension: dim,
	}, nil
}

func (c *Client) Dimension() int { return c.dimension }

func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float64, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) != c.dimension {
			return nil, fmt.Errorf("embedding dimension %d does not match configured %d", len(d.Embedding), c.dimension)
		}
		out[i] = d.Embedding
	}
	return out, nil
}
