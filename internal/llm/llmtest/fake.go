// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/ppiankov/labkit/internal/llm"
)

// Fake replays queued completions and records every request
type Fake struct {
	mu sync.Mutex

	// Responses are returned by Complete and Stream in order
	Responses []*llm.ChatResponse

	// Err, when set, is returned by Complete and Stream
	Err error

	// EmbedFunc computes embeddings; nil returns ErrNoEmbedding
	EmbedFunc func(model, text string) ([]float32, error)

	// AvailableErr is returned by IsAvailable
	AvailableErr error

	Requests    []llm.ChatRequest
	EmbedModels []string
}

// ErrNoResponse is returned once the queued responses are exhausted
var ErrNoResponse = errors.New("llmtest: no queued response")

// ErrNoEmbedding is returned when EmbedFunc is nil
var ErrNoEmbedding = errors.New("llmtest: no embedding func")

var _ llm.Client = (*Fake)(nil)

// Reply queues plain text responses
func (f *Fake) Reply(texts ...string) *Fake {
	for _, t := range texts {
		f.Responses = append(f.Responses, &llm.ChatResponse{Content: t})
	}
	return f
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) next(req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Requests = append(f.Requests, req)
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.Responses) == 0 {
		return nil, ErrNoResponse
	}
	resp := f.Responses[0]
	f.Responses = f.Responses[1:]
	return resp, nil
}

func (f *Fake) Complete(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.next(req)
}

func (f *Fake) Stream(ctx context.Context, req llm.ChatRequest, w io.Writer) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	resp, err := f.next(req)
	if err != nil {
		return "", err
	}
	if w != nil {
		_, _ = io.WriteString(w, resp.Content)
	}
	return resp.Content, nil
}

func (f *Fake) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	f.mu.Lock()
	f.EmbedModels = append(f.EmbedModels, model)
	fn := f.EmbedFunc
	f.mu.Unlock()

	if fn == nil {
		return nil, ErrNoEmbedding
	}
	return fn(model, text)
}

func (f *Fake) IsAvailable(ctx context.Context) error {
	return f.AvailableErr
}

// Calls returns how many completions were requested
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}

// Request returns the i-th recorded completion request
func (f *Fake) Request(i int) llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Requests[i]
}
