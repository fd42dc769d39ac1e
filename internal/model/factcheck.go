package model

import "time"

// VerdictLabel is the fact-checker's classification of a claim
type VerdictLabel string

const (
	VerdictTrue          VerdictLabel = "True"
	VerdictFalse         VerdictLabel = "False"
	VerdictPartiallyTrue VerdictLabel = "Partially True"
	VerdictUnclear       VerdictLabel = "Unclear"
)

// Valid reports whether the label is one of the declared verdicts
func (v VerdictLabel) Valid() bool {
	switch v {
	case VerdictTrue, VerdictFalse, VerdictPartiallyTrue, VerdictUnclear:
		return true
	}
	return false
}

// Verdict is the structured fact-check result returned by the model
type Verdict struct {
	Claim       string       `json:"claim"`
	Verdict     VerdictLabel `json:"verdict"`
	Explanation string       `json:"explanation"`
	Sources     []string     `json:"sources"`
}

// ClaimCheck pairs the user's original claim with the model's verdict
type ClaimCheck struct {
	Claim     string    `json:"claim"`
	Result    Verdict   `json:"result"`
	CheckedAt time.Time `json:"checked_at"`
}
