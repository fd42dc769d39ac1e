package factcheck

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/labkit/internal/model"
)

// ValidationError reports model output that does not match the verdict shape
type ValidationError struct {
	Field  string // empty when the payload is not JSON at all
	Reason string
	Raw    string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid fact-check response: " + e.Reason
	}
	return fmt.Sprintf("invalid fact-check response: %s: %s", e.Field, e.Reason)
}

// wireVerdict uses pointers so absent fields can be told apart from empty ones
type wireVerdict struct {
	Claim       *string   `json:"claim"`
	Verdict     *string   `json:"verdict"`
	Explanation *string   `json:"explanation"`
	Sources     *[]string `json:"sources"`
}

// Decode parses raw model output into a Verdict. Every field of the
// declared shape must be present; the verdict label is matched without
// regard to case and normalized.
func Decode(raw string) (*model.Verdict, error) {
	var w wireVerdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &w); err != nil {
		return nil, &ValidationError{Reason: err.Error(), Raw: raw}
	}

	missing := func(field string) error {
		return &ValidationError{Field: field, Reason: "missing", Raw: raw}
	}
	switch {
	case w.Claim == nil:
		return nil, missing("claim")
	case w.Verdict == nil:
		return nil, missing("verdict")
	case w.Explanation == nil:
		return nil, missing("explanation")
	case w.Sources == nil:
		return nil, missing("sources")
	}

	label, ok := normalizeVerdict(*w.Verdict)
	if !ok {
		return nil, &ValidationError{
			Field:  "verdict",
			Reason: fmt.Sprintf("unknown verdict %q", *w.Verdict),
			Raw:    raw,
		}
	}

	return &model.Verdict{
		Claim:       *w.Claim,
		Verdict:     label,
		Explanation: *w.Explanation,
		Sources:     *w.Sources,
	}, nil
}

func normalizeVerdict(s string) (model.VerdictLabel, bool) {
	s = strings.TrimSpace(s)
	for _, v := range []model.VerdictLabel{
		model.VerdictTrue,
		model.VerdictFalse,
		model.VerdictPartiallyTrue,
		model.VerdictUnclear,
	} {
		if strings.EqualFold(s, string(v)) {
			return v, true
		}
	}
	return "", false
}
