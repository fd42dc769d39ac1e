// Package docqa answers questions about, and summarizes, a single document.
package docqa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/labkit/internal/llm"
	"github.com/ppiankov/labkit/internal/model"
)

var (
	// ErrEmptyInput is returned when the document or question is blank
	ErrEmptyInput = errors.New("document and question must not be empty")

	// ErrUnknownStyle is returned for summary styles other than Styles
	ErrUnknownStyle = errors.New("unknown summary style")
)

// DefaultQAModel answers document questions
const DefaultQAModel = "gpt-4.1-nano"

// Prompt renders the single user message carrying the document
func Prompt(document, question string) string {
	return fmt.Sprintf("Here's a document: %s\n\n---\n\n%s", document, question)
}

// Answerer answers a question about one document
type Answerer struct {
	client llm.Client
	model  string
}

// NewAnswerer creates an answerer; an empty modelName uses DefaultQAModel
func NewAnswerer(client llm.Client, modelName string) *Answerer {
	if modelName == "" {
		modelName = DefaultQAModel
	}
	return &Answerer{client: client, model: modelName}
}

// Answer streams the model's answer to w and returns it verbatim
func (a *Answerer) Answer(ctx context.Context, document, question string, w io.Writer) (string, error) {
	if strings.TrimSpace(document) == "" || strings.TrimSpace(question) == "" {
		return "", ErrEmptyInput
	}
	return stream(ctx, a.client, a.model, Prompt(document, question), w)
}

// Style selects the shape of a summary
type Style string

const (
	StyleShort      Style = "short"
	StyleParagraphs Style = "paragraphs"
	StyleBullets    Style = "bullets"
)

// Styles lists the supported summary styles
var Styles = []Style{StyleShort, StyleParagraphs, StyleBullets}

var styleInstructions = map[Style]string{
	StyleShort:      "Summarize the document in about 100 words.",
	StyleParagraphs: "Summarize the document in 2 connecting paragraphs.",
	StyleBullets:    "Summarize the document in 5 bullet points.",
}

// ParseStyle parses a style name, case-insensitively
func ParseStyle(s string) (Style, error) {
	style := Style(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := styleInstructions[style]; !ok {
		return "", fmt.Errorf("%q: %w (choose short, paragraphs or bullets)", s, ErrUnknownStyle)
	}
	return style, nil
}

// Summarizer summarizes one document
type Summarizer struct {
	client llm.Client
	model  string
}

// NewSummarizer creates a summarizer answering with modelName
func NewSummarizer(client llm.Client, modelName string) *Summarizer {
	return &Summarizer{client: client, model: modelName}
}

// Summarize streams a summary of document in the given style to w
func (s *Summarizer) Summarize(ctx context.Context, document string, style Style, w io.Writer) (string, error) {
	if strings.TrimSpace(document) == "" {
		return "", ErrEmptyInput
	}
	instruction, ok := styleInstructions[style]
	if !ok {
		return "", fmt.Errorf("%q: %w", style, ErrUnknownStyle)
	}
	return stream(ctx, s.client, s.model, Prompt(document, instruction), w)
}

func stream(ctx context.Context, client llm.Client, modelName, prompt string, w io.Writer) (string, error) {
	text, err := client.Stream(ctx, llm.ChatRequest{
		Model:    modelName,
		Messages: []model.Message{{Role: model.RoleUser, Content: prompt}},
	}, w)
	if err != nil {
		return "", fmt.Errorf("document answer: %w", err)
	}
	return text, nil
}
