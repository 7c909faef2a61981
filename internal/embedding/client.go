package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"github.com/mnemos/mnemos/internal/knowledge"
)

// Config configures the client's batching, pacing, and retry policy.
type Config struct {
	// Dimension is the deployment's fixed vector dimension. Vectors of
	// any other length are rejected with *knowledge.DimensionError.
	Dimension int

	// MaxBatchSize bounds how many texts go to the provider per call.
	MaxBatchSize int

	// PacingDelay is the minimum gap between successive provider calls.
	// This is cooperative pacing, not a token-bucket hard limiter.
	PacingDelay time.Duration

	// MaxRetries caps backoff retries after a throttled call.
	MaxRetries int

	// InitialBackoff is the first retry delay; doubles per attempt up
	// to MaxBackoff. Defaults applied when zero.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client wraps a Provider with batching, shared pacing, and bounded
// retry. One Client instance is shared by the ingestion and query
// paths so that all provider traffic flows through the same gate.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	provider Provider
	cfg      Config
	pacer    *rate.Limiter
	logger   *slog.Logger
}

// NewClient creates a Client around provider.
func NewClient(provider Provider, cfg Config, logger *slog.Logger) (*Client, error) {
	if provider == nil {
		return nil, errors.New("embedding: provider is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding: invalid dimension %d", cfg.Dimension)
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 20
	}
	if cfg.PacingDelay <= 0 {
		cfg.PacingDelay = 500 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		provider: provider,
		cfg:      cfg,
		// Burst 1 means strictly one call per pacing interval.
		pacer:  rate.NewLimiter(rate.Every(cfg.PacingDelay), 1),
		logger: logger,
	}, nil
}

// EmbedBatch embeds texts in provider calls of at most MaxBatchSize,
// preserving input order. The shared pacing gate separates successive
// calls. The first sub-batch to exhaust its retries fails the whole
// call; vectors already produced are discarded, since callers key
// results positionally against the full input.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.cfg.MaxBatchSize {
		end := min(start+c.cfg.MaxBatchSize, len(texts))

		if err := c.pacer.Wait(ctx); err != nil {
			return nil, fmt.Errorf("pacing wait: %w", err)
		}

		batch, err := c.embedWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// EmbedOne embeds a single text through the same pacing and retry
// policy. Used for query embedding.
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// embedWithRetry calls the provider once plus up to MaxRetries retries
// on provider and rate-limit errors, with jittered exponential backoff.
// Anything else (cancellation, dimension mismatch) fails immediately.
func (c *Client) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	delay := c.cfg.InitialBackoff
	start := time.Now()

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		vectors, err := c.provider.Embed(ctx, texts)
		if err == nil {
			if err := c.validate(texts, vectors); err != nil {
				return nil, err
			}
			c.logger.Debug("embedded batch",
				"provider", c.provider.Name(),
				"size", len(texts),
				"attempts", attempt+1,
				"elapsed", time.Since(start))
			return vectors, nil
		}

		lastErr = err

		var (
			rl *RateLimitError
			pe *ProviderError
		)
		throttled := errors.As(err, &rl)
		if !throttled && !errors.As(err, &pe) {
			return nil, err
		}
		if attempt == c.cfg.MaxRetries {
			break
		}

		wait := delay
		if throttled && rl.RetryAfter > wait {
			wait = rl.RetryAfter
		}
		wait += jitter(wait)

		c.logger.Debug("provider throttled, backing off",
			"provider", c.provider.Name(),
			"attempt", attempt+1,
			"wait", wait)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during backoff: %w", ctx.Err())
		case <-time.After(wait):
			delay = min(delay*2, c.cfg.MaxBackoff)
		}
	}

	return nil, fmt.Errorf("embedding batch of %d after %d retries (elapsed %s): %w",
		len(texts), c.cfg.MaxRetries, time.Since(start).Round(time.Millisecond), lastErr)
}

// validate checks positional alignment and vector dimensions.
func (c *Client) validate(texts []string, vectors [][]float32) error {
	if len(vectors) != len(texts) {
		return &ProviderError{
			Provider: c.provider.Name(),
			Err:      fmt.Errorf("returned %d vectors for %d inputs", len(vectors), len(texts)),
		}
	}
	for i, vec := range vectors {
		if len(vec) != c.cfg.Dimension {
			return fmt.Errorf("vector %d: %w", i,
				&knowledge.DimensionError{Want: c.cfg.Dimension, Got: len(vec)})
		}
	}
	return nil
}

// jitter returns a random addition of up to 10% of d, spreading
// synchronized retries apart.
func jitter(d time.Duration) time.Duration {
	n := int64(d) / 10
	if n <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(n))
}
