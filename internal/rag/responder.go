package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/labkit/internal/llm"
	"github.com/ppiankov/labkit/internal/logging"
	"github.com/ppiankov/labkit/internal/model"
)

const systemPrompt = `You are a helpful AI assistant chatbot that answers questions based on the provided documents. 

IMPORTANT INSTRUCTIONS:
1. If you use information from the provided documents, clearly state that you are using knowledge from the document(s)
2. If the provided documents don't contain relevant information for the user's question, clearly state that you don't have that information in the knowledge base
3. Always be clear about whether your response is based on the retrieved documents or your general knowledge
4. Keep your responses conversational and helpful
`

const (
	contextHeader = "Here is relevant information from the knowledge base:"
	noContext     = "No relevant documents found in the knowledge base for this query."
	sourcesHeader = "\n\n📚 **Sources consulted:**\n"

	defaultExcerptChars = 1500
	defaultMaxTokens    = 1000
)

// Responder turns a question and retrieved documents into an answer
type Responder struct {
	client       llm.Client
	model        string
	maxTokens    int
	excerptChars int
	log          logging.Logger
}

// NewResponder creates a responder. Zero maxTokens or excerptChars use 1000
// and 1500.
func NewResponder(client llm.Client, modelName string, maxTokens, excerptChars int, log logging.Logger) *Responder {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if excerptChars <= 0 {
		excerptChars = defaultExcerptChars
	}
	return &Responder{
		client:       client,
		model:        modelName,
		maxTokens:    maxTokens,
		excerptChars: excerptChars,
		log:          logging.OrNoOp(log),
	}
}

// Respond always returns text for the user. A failed completion is
// reported inline instead of as an error.
func (r *Responder) Respond(ctx context.Context, query string, docs []model.SearchResult) string {
	resp, err := r.client.Complete(ctx, llm.ChatRequest{
		Model: r.model,
		Messages: []model.Message{
			{Role: model.RoleSystem, Content: systemPrompt},
			{Role: model.RoleUser, Content: r.UserPrompt(query, docs)},
		},
		MaxTokens: r.maxTokens,
	})
	if err != nil {
		r.log.Error("rag completion failed: %v", err)
		return fmt.Sprintf("Sorry, I encountered an error while generating a response: %v", err)
	}

	answer := resp.Content
	if len(docs) > 0 {
		answer += sourcesHeader + strings.Join(SourceLines(docs), "\n")
	}
	return answer
}

// UserPrompt renders the question with the retrieved excerpts
func (r *Responder) UserPrompt(query string, docs []model.SearchResult) string {
	ctxText := BuildContext(docs, r.excerptChars)
	if ctxText == "" {
		ctxText = noContext
	}
	return fmt.Sprintf("User Question: %s\n\n%s\n\nPlease provide a helpful response to the user's question.", query, ctxText)
}

// BuildContext renders the knowledge base excerpts, each cut to limit runes
func BuildContext(docs []model.SearchResult, limit int) string {
	if len(docs) == 0 {
		return ""
	}

	parts := []string{contextHeader}
	for i, d := range docs {
		parts = append(parts, fmt.Sprintf("\n--- Document %d: %s ---", i+1, Filename(d)))
		parts = append(parts, truncateRunes(d.Text, limit))
	}
	return strings.Join(parts, "\n")
}

// SourceLines lists each document with its similarity
func SourceLines(docs []model.SearchResult) []string {
	lines := make([]string, len(docs))
	for i, d := range docs {
		lines[i] = fmt.Sprintf("• %s (similarity: %.3f)", Filename(d), d.Similarity())
	}
	return lines
}

// Filename returns the source filename recorded for d, falling back to its ID
func Filename(d model.SearchResult) string {
	if name := d.Metadata[model.MetaFilename]; name != "" {
		return name
	}
	return d.ID
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
