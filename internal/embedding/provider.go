package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider is the seam to an external embedding service. Embed returns
// one vector per input text, positionally aligned. Failures must be
// reported as *ProviderError, or *RateLimitError when the service
// signaled throttling.
type Provider interface {
	// Name identifies the provider in logs and errors.
	Name() string

	// Embed converts texts to vectors, preserving order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ProviderError wraps a non-throttling provider failure (network, auth,
// malformed input).
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// RateLimitError indicates the provider throttled the request.
// RetryAfter is the provider's hint when it gave one, zero otherwise.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("embedding provider %s rate limited (retry after %s): %v",
			e.Provider, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("embedding provider %s rate limited: %v", e.Provider, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// looksRateLimited classifies provider errors that only surface as
// strings. SDKs are inconsistent about typing throttling errors, so
// this falls back to the usual markers.
func looksRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"rate limit", "quota exceeded", "resource exhausted", "429", "too many requests"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
