package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/sashabaranov/go-openai"
)

var (
	// ErrMissingCredential is returned when no API key is configured
	ErrMissingCredential = errors.New("missing API credential")

	// ErrEmptyResponse is returned when the provider answers with no choices
	ErrEmptyResponse = errors.New("empty response from model")
)

// Kind classifies a provider failure
type Kind string

const (
	KindAuth      Kind = "auth"
	KindRateLimit Kind = "rate_limit"
	KindServer    Kind = "server"
	KindRequest   Kind = "request"
	KindNetwork   Kind = "network"
	KindTimeout   Kind = "timeout"
	KindCanceled  Kind = "canceled"
	KindMalformed Kind = "malformed"
	KindUnknown   Kind = "unknown"
)

// APIError wraps a failed provider call
type APIError struct {
	Op         string
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s failed (%s, HTTP %d): %v", e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s failed (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *APIError of the given kind
func IsKind(err error, kind Kind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	e := &APIError{Op: op, Kind: KindUnknown, Err: err}

	var oaiErr *openai.APIError
	var reqErr *openai.RequestError
	var syntaxErr *json.SyntaxError
	var netErr net.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		e.Kind = KindTimeout
	case errors.Is(err, context.Canceled):
		e.Kind = KindCanceled
	case errors.As(err, &oaiErr):
		e.StatusCode = oaiErr.HTTPStatusCode
		e.Kind = kindForStatus(oaiErr.HTTPStatusCode)
	case errors.As(err, &reqErr):
		e.StatusCode = reqErr.HTTPStatusCode
		e.Kind = kindForStatus(reqErr.HTTPStatusCode)
	case errors.As(err, &syntaxErr):
		e.Kind = KindMalformed
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			e.Kind = KindTimeout
		} else {
			e.Kind = KindNetwork
		}
	}

	return e
}

func kindForStatus(code int) Kind {
	switch {
	case code == 401 || code == 403:
		return KindAuth
	case code == 429:
		return KindRateLimit
	case code >= 500:
		return KindServer
	case code >= 400:
		return KindRequest
	default:
		return KindUnknown
	}
}

// UserMessage renders err as a short line suitable for the terminal
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrMissingCredential) {
		return "No API key configured. Set OPENAI_API_KEY or llm.api_key in the config file."
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err.Error()
	}

	switch apiErr.Kind {
	case KindAuth:
		return "The API key was rejected. Check OPENAI_API_KEY."
	case KindRateLimit:
		return "The provider is rate limiting requests. Wait a moment and try again."
	case KindServer:
		return "The provider returned a server error. Try again later."
	case KindTimeout:
		return "The request timed out."
	case KindCanceled:
		return "The request was canceled."
	case KindNetwork:
		return "Could not reach the provider. Check your network connection."
	case KindMalformed:
		return "The provider returned an unreadable response."
	default:
		return apiErr.Error()
	}
}
