package client

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animals_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "animals_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animals_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the backoff before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the default retry configuration. Six attempts
// with 1s initial backoff rides out the upstream's transient 5xx bursts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    6,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Delay computes the backoff before attempt+1: InitialBackoff doubled per
// attempt, capped at MaxBackoff, plus uniform jitter in [0, delay] to
// desynchronize concurrent retries. attempt is 1-indexed; attempt=1 is the
// delay before the second try. Deterministic given a fixed random source.
func (c RetryConfig) Delay(attempt int, rng *rand.Rand) time.Duration {
	backoff := time.Duration(float64(c.InitialBackoff) * math.Pow(2, float64(attempt-1)))
	if backoff > c.MaxBackoff || backoff <= 0 {
		backoff = c.MaxBackoff
	}
	jitter := time.Duration(rng.Int63n(int64(backoff) + 1))
	return backoff + jitter
}

// withRetry executes fn with exponential backoff retry logic. It respects
// context cancellation during backoff sleeps and never calls fn more than
// MaxAttempts times. Non-retryable errors are returned immediately.
func (c *Client) withRetry(ctx context.Context, endpoint string, fn func() error) error {
	cfg := c.config.Retry

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				c.logger.Info().
					Str("endpoint", endpoint).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		errClass := errorClassOf(err)

		if !c.retryable(err) {
			// 4xx and friends: retrying cannot help.
			return lastErr
		}

		if attempt >= cfg.MaxAttempts {
			break
		}

		delay := c.backoffDelay(attempt)
		retriesTotal.WithLabelValues(string(errClass)).Inc()
		retryBackoffSeconds.WithLabelValues(string(errClass)).Observe(delay.Seconds())

		c.logger.Warn().
			Err(err).
			Str("endpoint", endpoint).
			Str("error_class", string(errClass)).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(delay):
		}
	}

	errClass := errorClassOf(lastErr)
	retryExhaustedTotal.WithLabelValues(string(errClass)).Inc()
	c.logger.Error().
		Err(lastErr).
		Str("endpoint", endpoint).
		Int("max_attempts", cfg.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, cfg.MaxAttempts, lastErr)
}
