package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"issueagents/pkg/logx"
)

// RetryableClient wraps an LLMClient with retry for transient failures.
// The delay grows linearly with the attempt number; permanent failures
// (auth, bad request) surface immediately.
type RetryableClient struct {
	inner     LLMClient
	attempts  int
	baseDelay time.Duration
	logger    *logx.Logger
}

// NewRetryableClient wraps a client with up to attempts tries.
func NewRetryableClient(inner LLMClient, attempts int) *RetryableClient {
	if attempts <= 0 {
		attempts = 3
	}
	return &RetryableClient{
		inner:     inner,
		attempts:  attempts,
		baseDelay: 2 * time.Second,
		logger:    logx.NewLogger("llm-retry"),
	}
}

// Complete retries transient failures with linearly increasing delay:
// baseDelay, 2*baseDelay, 3*baseDelay, ...
func (r *RetryableClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		resp, err := r.inner.Complete(ctx, in)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return CompletionResponse{}, err
		}
		if attempt == r.attempts {
			break
		}

		delay := time.Duration(attempt) * r.baseDelay
		r.logger.Warn("LLM request failed (attempt %d/%d), retrying in %s: %v",
			attempt, r.attempts, delay, err)

		select {
		case <-ctx.Done():
			return CompletionResponse{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	return CompletionResponse{}, fmt.Errorf("LLM request failed after %d attempts: %w", r.attempts, lastErr)
}

// GetModelName returns the wrapped client's model name.
func (r *RetryableClient) GetModelName() string {
	return r.inner.GetModelName()
}

// IsTransient classifies an error as worth retrying: timeouts,
// connection problems, rate limits, and server-side errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"timeout",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"broken pipe",
		"temporarily unavailable",
		"rate limit",
		"429",
		"500",
		"502",
		"503",
		"504",
		"overloaded",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
