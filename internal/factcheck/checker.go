// Package factcheck asks the model to verify a claim and return a
// structured verdict.
package factcheck

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/labkit/internal/llm"
	"github.com/ppiankov/labkit/internal/logging"
	"github.com/ppiankov/labkit/internal/model"
)

// ErrEmptyClaim is returned when there is nothing to check
var ErrEmptyClaim = errors.New("please enter a claim to check")

const systemPrompt = `You are a fact-checker. Verify claims using available information and provide results in this exact JSON format:
{
  "claim": "the original claim",
  "verdict": "True/False/Partially True/Unclear",
  "explanation": "brief explanation with evidence",
  "sources": ["source1", "source2"]
}`

// Checker verifies claims
type Checker struct {
	client llm.Client
	model  string
	log    logging.Logger
	now    func() time.Time
}

// NewChecker creates a checker using modelName for completions
func NewChecker(client llm.Client, modelName string, log logging.Logger) *Checker {
	return &Checker{
		client: client,
		model:  modelName,
		log:    logging.OrNoOp(log),
		now:    time.Now,
	}
}

// Check asks the model to fact-check claim. A response that does not
// decode to the verdict shape yields a *ValidationError; a failed call
// yields the client's error.
func (c *Checker) Check(ctx context.Context, claim string) (*model.Verdict, error) {
	claim = strings.TrimSpace(claim)
	if claim == "" {
		return nil, ErrEmptyClaim
	}

	resp, err := c.client.Complete(ctx, llm.ChatRequest{
		Model: c.model,
		Messages: []model.Message{
			{Role: model.RoleSystem, Content: systemPrompt},
			{Role: model.RoleUser, Content: "Fact-check this claim: " + claim},
		},
		JSONMode: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fact-check: %w", err)
	}

	verdict, err := Decode(resp.Content)
	if err != nil {
		c.log.Warn("fact-check response rejected: %v", err)
		return nil, err
	}

	c.log.Debug("fact-check verdict %q for %q", verdict.Verdict, claim)
	return verdict, nil
}

// CheckAndRecord runs Check and records a successful result in h
func (c *Checker) CheckAndRecord(ctx context.Context, h *History, claim string) (*model.ClaimCheck, error) {
	verdict, err := c.Check(ctx, claim)
	if err != nil {
		return nil, err
	}

	check := model.ClaimCheck{
		Claim:     strings.TrimSpace(claim),
		Result:    *verdict,
		CheckedAt: c.now(),
	}
	h.Add(check)
	return &check, nil
}
