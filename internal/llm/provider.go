package llm

import (
	"context"
	"io"
	"strings"

	"github.com/ppiankov/labkit/internal/model"
)

// Client is the hosted model surface every lab talks to
type Client interface {
	// Name returns the provider name
	Name() string

	// Complete runs one non-streamed chat completion
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Stream runs a streamed chat completion, writing tokens to w as they
	// arrive, and returns the full text
	Stream(ctx context.Context, req ChatRequest, w io.Writer) (string, error)

	// Embed returns the embedding vector of text
	Embed(ctx context.Context, embeddingModel string, text string) ([]float32, error)

	// IsAvailable checks that the credential is accepted
	IsAvailable(ctx context.Context) error
}

// ChatRequest contains the input of a chat completion
type ChatRequest struct {
	// Model is the model identifier; empty uses the provider default
	Model string

	// Messages is the ordered conversation
	Messages []model.Message

	// Tools are offered with tool_choice=auto when non-empty
	Tools []model.Tool

	// JSONMode forces a JSON object response
	JSONMode bool

	// MaxTokens limits the response length (0 = provider default)
	MaxTokens int
}

// ChatResponse contains the model's reply
type ChatResponse struct {
	// Content is the generated text (may be empty when tools are called)
	Content string

	// ToolCalls are the tool invocations the model requested
	ToolCalls []model.ToolCall

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Message returns the reply as an assistant message, tool calls included
func (r *ChatResponse) Message() model.Message {
	return model.Message{
		Role:      model.RoleAssistant,
		Content:   r.Content,
		ToolCalls: r.ToolCalls,
	}
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "ollama"
	Provider string

	// APIKey for OpenAI
	APIKey string

	// BaseURL for custom or OpenAI-compatible endpoints
	BaseURL string

	// MiniModel and RegularModel back the "mini" and "regular" tiers
	MiniModel    string
	RegularModel string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string

	// RequestsPerSecond and Burst throttle outbound calls (0 = unlimited)
	RequestsPerSecond float64
	Burst             int
}

// Model tiers selectable from the CLI
const (
	TierMini    = "mini"
	TierRegular = "regular"
)

// ModelForTier maps a tier name to a model identifier. Anything other
// than "regular" selects the mini model.
func (c Config) ModelForTier(tier string) string {
	if strings.EqualFold(strings.TrimSpace(tier), TierRegular) {
		if c.RegularModel != "" {
			return c.RegularModel
		}
		return "gpt-4o"
	}
	if c.MiniModel != "" {
		return c.MiniModel
	}
	return "gpt-4o-mini"
}
