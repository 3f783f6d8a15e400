package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/salescope-lab/salescope/internal/core/intent"
)

// Config represents the top-level application config plus resolved intent rules.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Qdrant      QdrantConfig      `koanf:"qdrant"`
	Embedding   EmbeddingConfig   `koanf:"embedding"`
	Chat        ChatConfig        `koanf:"chat"`
	Aggregation AggregationConfig `koanf:"aggregation"`
	Retrieval   RetrievalConfig   `koanf:"retrieval"`
	Intent      IntentConfig      `koanf:"intent"`

	// Rules is populated by Load after parsing intent rule files.
	Rules []intent.Rule `koanf:"-"`
}

type ServerConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`
	Mode string `koanf:"mode"` // debug | release
}

type QdrantConfig struct {
	URL        string `koanf:"url"`
	APIKey     string `koanf:"api_key"`
	Collection string `koanf:"collection"`
	TimeoutSec int    `koanf:"timeout_sec"`
}

type EmbeddingConfig struct {
	BaseURL   string `koanf:"base_url"`
	APIKey    string `koanf:"api_key"`
	Model     string `koanf:"model"`
	Dimension int    `koanf:"dimension"`
}

type ChatConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
	Enabled bool   `koanf:"enabled"`
}

type AggregationConfig struct {
	BatchSize int `koanf:"batch_size"`
}

type RetrievalConfig struct {
	Limit         int `koanf:"limit"`
	ContextBudget int `koanf:"context_budget"`
}

type IntentConfig struct {
	RulesDir string `koanf:"rules_dir"`
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if strings.TrimSpace(c.Qdrant.URL) == "" {
		return fmt.Errorf("qdrant.url is required")
	}
	if strings.TrimSpace(c.Qdrant.Collection) == "" {
		return fmt.Errorf("qdrant.collection is required")
	}
	if c.Qdrant.TimeoutSec <= 0 {
		return fmt.Errorf("qdrant.timeout_sec must be > 0")
	}

	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be > 0")
	}
	if strings.TrimSpace(c.Embedding.Model) == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Chat.Enabled && strings.TrimSpace(c.Chat.Model) == "" {
		return fmt.Errorf("chat.model is required when chat is enabled")
	}

	if c.Aggregation.BatchSize <= 0 {
		return fmt.Errorf("aggregation.batch_size must be > 0")
	}
	if c.Retrieval.Limit <= 0 {
		return fmt.Errorf("retrieval.limit must be > 0")
	}
	if c.Retrieval.ContextBudget <= 0 {
		return fmt.Errorf("retrieval.context_budget must be > 0")
	}

	return nil
}

// Load parses config from file + env, validates it, then loads and validates
// intent rules. API keys are expected from the environment; the
// OPENROUTER_API_KEY convention of the original deployment is honored as a
// fallback for both clients.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":              8080,
		"server.host":              "0.0.0.0",
		"server.mode":              "release",
		"qdrant.url":               "http://localhost:6333",
		"qdrant.api_key":           "",
		"qdrant.collection":        "sales_vol_staging",
		"qdrant.timeout_sec":       15,
		"embedding.base_url":       "https://openrouter.ai/api/v1",
		"embedding.api_key":        "",
		"embedding.model":          "openai/text-embedding-3-small",
		"embedding.dimension":      1536,
		"chat.base_url":            "https://openrouter.ai/api/v1",
		"chat.api_key":             "",
		"chat.model":               "openai/gpt-4o-mini",
		"chat.enabled":             true,
		"aggregation.batch_size":   500,
		"retrieval.limit":          10,
		"retrieval.context_budget": 4000,
		"intent.rules_dir":         "",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("SALESCOPE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "SALESCOPE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rules, err := intent.LoadRules(cfg.Intent.RulesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load intent rules: %w", err)
	}
	cfg.Rules = rules

	return &cfg, nil
}
