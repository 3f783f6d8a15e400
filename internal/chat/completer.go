// Package chat wraps the chat-completions API used for answer synthesis.
// Completion is an enhancement on every path: callers must have a
// deterministic fallback ready when Complete fails.
package chat

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

// Completer turns a system/user prompt pair into text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

type Client struct {
	client openai.Client
	model  shared.ChatModel
}

func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("chat API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = "openai/gpt-4o-mini"
	}
	return &Client{
		client: openai.NewClient(opts...),
		model:  shared.ChatModel(model),
	}, nil
}

// Complete issues a non-streaming completion. One retry, no more: the numeric
// paths only use the reply as a gloss, and piling on retries would stall the
// request for no material gain.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: c.model,
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(user),
			},
		})
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("no response choices returned")
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("chat completion: %w", lastErr)
}
