package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/labkit/internal/model"
	"github.com/ppiankov/labkit/internal/util"
	"github.com/ppiankov/labkit/internal/worker"
	"github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Client for OpenAI and OpenAI-compatible endpoints
type OpenAIClient struct {
	client  *openai.Client
	config  Config
	name    string
	host    string
	limiter *worker.Limiter
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(config Config) (*OpenAIClient, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, fmt.Errorf("OpenAI: %w (set OPENAI_API_KEY)", ErrMissingCredential)
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.HTTPProxy != "" || config.HTTPSProxy != "" {
		clientConfig.HTTPClient = util.NewHTTPClient(0, config.HTTPProxy, config.HTTPSProxy)
	}

	host := "api.openai.com"
	if u, err := url.Parse(clientConfig.BaseURL); err == nil && u.Host != "" {
		host = u.Host
	}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientConfig),
		config:  config,
		name:    "openai",
		host:    host,
		limiter: worker.NewLimiter(config.RequestsPerSecond, config.Burst),
	}, nil
}

// Name returns the provider name
func (c *OpenAIClient) Name() string {
	return c.name
}

// IsAvailable checks the credential with a lightweight models listing
func (c *OpenAIClient) IsAvailable(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if _, err := c.client.ListModels(ctx); err != nil {
		return classify("list models", err)
	}
	return nil
}

// Complete runs one chat completion
func (c *OpenAIClient) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.limiter.WaitHost(ctx, c.host); err != nil {
		return nil, classify("chat completion", err)
	}

	chatReq := c.buildRequest(req)
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, classify("chat completion", err)
	}

	if len(resp.Choices) == 0 {
		return nil, &APIError{Op: "chat completion", Kind: KindMalformed, Err: ErrEmptyResponse}
	}

	msg := resp.Choices[0].Message
	out := &ChatResponse{
		Content:    msg.Content,
		Model:      resp.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, model.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	if out.Model == "" {
		out.Model = chatReq.Model
	}

	return out, nil
}

// Stream runs a streamed chat completion. Tokens are written to w as they
// arrive and the accumulated text is returned; on a mid-stream failure the
// partial text is returned alongside the error.
func (c *OpenAIClient) Stream(ctx context.Context, req ChatRequest, w io.Writer) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.limiter.WaitHost(ctx, c.host); err != nil {
		return "", classify("chat stream", err)
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, c.buildRequest(req))
	if err != nil {
		return "", classify("chat stream", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sb.String(), classify("chat stream", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if w != nil {
			if _, err := io.WriteString(w, delta); err != nil {
				return sb.String(), fmt.Errorf("write stream output: %w", err)
			}
		}
	}

	return sb.String(), nil
}

// Embed returns the embedding vector of text
func (c *OpenAIClient) Embed(ctx context.Context, embeddingModel string, text string) ([]float32, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.limiter.WaitHost(ctx, c.host); err != nil {
		return nil, classify("embedding", err)
	}

	if embeddingModel == "" {
		embeddingModel = string(openai.SmallEmbedding3)
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(embeddingModel),
	})
	if err != nil {
		return nil, classify("embedding", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, &APIError{Op: "embedding", Kind: KindMalformed, Err: ErrEmptyResponse}
	}

	return resp.Data[0].Embedding, nil
}

func (c *OpenAIClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(c.config.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (c *OpenAIClient) buildRequest(req ChatRequest) openai.ChatCompletionRequest {
	modelName := req.Model
	if modelName == "" {
		modelName = c.config.ModelForTier(TierMini)
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}

	chatReq := openai.ChatCompletionRequest{
		Model:     modelName,
		Messages:  toOpenAIMessages(req.Messages),
		MaxTokens: maxTokens,
	}

	if len(req.Tools) > 0 {
		for _, t := range req.Tools {
			chatReq.Tools = append(chatReq.Tools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		chatReq.ToolChoice = "auto"
	}

	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	return chatReq
}

func toOpenAIMessages(msgs []model.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		cm := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, cm)
	}
	return out
}
