// Package chat implements the multi-turn streamed chatbot.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/labkit/internal/llm"
	"github.com/ppiankov/labkit/internal/logging"
	"github.com/ppiankov/labkit/internal/model"
	"github.com/ppiankov/labkit/internal/session"
)

// ErrEmptyPrompt is returned for blank input
var ErrEmptyPrompt = errors.New("empty prompt")

const (
	// DeclineInput is the reply that ends the current topic
	DeclineInput = "no"

	declinePrompt  = "ask me WHAT ELSE CAN I HELP YOU WITH?"
	followUpSuffix = "After answering ask me DO YOU WANT MORE INFO?"
)

// Bot runs chat turns against a model
type Bot struct {
	client llm.Client
	model  string
	log    logging.Logger
}

// NewBot creates a bot that answers with modelName
func NewBot(client llm.Client, modelName string, log logging.Logger) *Bot {
	return &Bot{client: client, model: modelName, log: logging.OrNoOp(log)}
}

// UserContent rewrites what the user typed into the message sent to the model
func UserContent(prompt string) string {
	if prompt == DeclineInput {
		return declinePrompt
	}
	return prompt + followUpSuffix
}

// Turn sends prompt with the full session history, streams the reply to w
// and records it. On failure the user message is rolled back so the
// session can continue.
func (b *Bot) Turn(ctx context.Context, sess *session.Session, prompt string, w io.Writer) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	before := sess.Len()
	sess.Append(model.Message{Role: model.RoleUser, Content: UserContent(prompt)})

	reply, err := b.client.Stream(ctx, llm.ChatRequest{
		Model:    b.model,
		Messages: sess.History(),
	}, w)
	if err != nil {
		sess.Truncate(before)
		b.log.Warn("chat turn failed, history rolled back to %d messages: %v", before, err)
		return "", fmt.Errorf("chat turn: %w", err)
	}

	sess.Append(model.Message{Role: model.RoleAssistant, Content: reply})
	sess.Trim()
	b.log.Debug("session %s history length %d", sess.ID, sess.Len())

	return reply, nil
}
