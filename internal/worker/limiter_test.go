package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "https://api.openai.com/v1/embeddings"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	if err := limiter.WaitHost(ctx, "localhost:11434"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_PerHost(t *testing.T) {
	limiter := NewLimiter(1, 1)

	if !limiter.Allow("api.openai.com") {
		t.Error("first call should pass")
	}
	if limiter.Allow("api.openai.com") {
		t.Error("expected second call to be throttled (burst exhausted)")
	}
	if !limiter.Allow("api.openweathermap.org") {
		t.Error("other host should have its own budget")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if !limiter.Allow("api.openai.com") {
			t.Fatalf("call %d throttled with limiting disabled", i)
		}
	}
}

func TestLimiter_WaitRespectsContext(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	limiter.Allow("slow.example")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.WaitHost(ctx, "slow.example"); err == nil {
		t.Error("expected wait to fail once the context deadline is exceeded")
	}
}

func TestLimiter_NilIsNoOp(t *testing.T) {
	var limiter *Limiter
	if err := limiter.WaitHost(context.Background(), "any"); err != nil {
		t.Errorf("nil limiter should not block: %v", err)
	}
}

func TestExtractHost(t *testing.T) {
	host, err := extractHost("http://example.com/foo")
	if err != nil {
		t.Fatalf("extractHost failed: %v", err)
	}
	if host != "example.com" {
		t.Errorf("expected example.com, got %s", host)
	}

	_, err = extractHost("::invalid")
	if err == nil {
		t.Errorf("expected error for invalid URL")
	}
}
