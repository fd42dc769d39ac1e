package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/labkit/internal/model"
)

const defaultOllamaBaseURL = "http://localhost:11434/v1"

// NewClient creates a model client based on configuration
func NewClient(config Config) (Client, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai", "":
		return NewOpenAIClient(config)

	case "ollama":
		// Ollama serves the OpenAI wire format and ignores the key
		if config.BaseURL == "" {
			config.BaseURL = defaultOllamaBaseURL
		}
		if config.APIKey == "" {
			config.APIKey = "ollama"
		}
		c, err := NewOpenAIClient(config)
		if err != nil {
			return nil, err
		}
		c.name = "ollama"
		return c, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, ollama)", config.Provider)
	}
}

// ConfigFromModel converts model.Config to llm.Config
func ConfigFromModel(cfg *model.Config) Config {
	return Config{
		Provider:          cfg.LLM.Provider,
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		MiniModel:         cfg.LLM.MiniModel,
		RegularModel:      cfg.LLM.RegularModel,
		Timeout:           cfg.LLM.Timeout,
		MaxTokens:         cfg.LLM.MaxTokens,
		HTTPProxy:         cfg.LLM.HTTPProxy,
		HTTPSProxy:        cfg.LLM.HTTPSProxy,
		RequestsPerSecond: cfg.RateLimiting.RequestsPerSecond,
		Burst:             cfg.RateLimiting.BurstSize,
	}
}
