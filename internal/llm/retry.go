package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// InferenceError is raised when every retry attempt has failed. It is the
// only error surfaced by the inference layer.
type InferenceError struct {
	Attempts int
	Last     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *InferenceError) Unwrap() error { return e.Last }

// RetryClient wraps a Client with a bounded retry policy: up to MaxAttempts
// calls with a fixed delay between failures (no backoff, no jitter). A reply
// that is empty after trimming counts as a failure, not a success.
type RetryClient struct {
	inner       Client
	maxAttempts int
	delay       time.Duration
}

// NewRetryClient wraps inner with maxAttempts tries and a fixed delay.
func NewRetryClient(inner Client, maxAttempts int, delay time.Duration) *RetryClient {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryClient{inner: inner, maxAttempts: maxAttempts, delay: delay}
}

// Generate implements Client with retries.
func (r *RetryClient) Generate(ctx context.Context, prompt string) (string, error) {
	return r.withRetry(ctx, func() (string, error) {
		return r.inner.Generate(ctx, prompt)
	})
}

// Chat implements Client with retries.
func (r *RetryClient) Chat(ctx context.Context, history []Message) (string, error) {
	return r.withRetry(ctx, func() (string, error) {
		return r.inner.Chat(ctx, history)
	})
}

func (r *RetryClient) withRetry(ctx context.Context, call func() (string, error)) (string, error) {
	var last error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		text, err := call()
		if err == nil {
			if strings.TrimSpace(text) == "" {
				err = fmt.Errorf("empty response from model")
			} else {
				return text, nil
			}
		}
		last = err

		if attempt == r.maxAttempts {
			break
		}
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return "", &InferenceError{Attempts: attempt, Last: ctx.Err()}
		}
	}

	return "", &InferenceError{Attempts: r.maxAttempts, Last: last}
}
