package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts including the first request.
	MaxAttempts int `yaml:"max_attempts"`

	// InitialBackoff is the wait before the second attempt.
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// DefaultRetryConfig returns the default retry configuration: a single
// attempt, so failures reach list views and forms immediately. Raising
// MaxAttempts opts into exponential backoff with the short delays below.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       1,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// NoRetry performs a single attempt.
func NoRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 1, BackoffMultiplier: 1}
}

// retryWithBackoff runs fn until it succeeds, returns a non-retriable error,
// exhausts cfg.MaxAttempts or ctx is cancelled. Backoff grows exponentially
// with ±20% jitter.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, logger zerolog.Logger, fn func() error, classify func(error) ErrorClass) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 1
	}

	var lastErr error
	var lastClass ErrorClass
	backoff := cfg.InitialBackoff

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Str("error_class", string(lastClass)).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		lastClass = classify(err)

		if !shouldRetry(lastClass) {
			return lastErr
		}

		if attempt >= cfg.MaxAttempts {
			if cfg.MaxAttempts == 1 {
				return lastErr
			}
			break
		}

		retriesTotal.WithLabelValues(string(lastClass)).Inc()

		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		retryBackoffSeconds.WithLabelValues(string(lastClass)).Observe(jitter.Seconds())

		logger.Warn().
			Err(err).
			Str("error_class", string(lastClass)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	retryExhaustedTotal.WithLabelValues(string(lastClass)).Inc()
	logger.Error().
		Err(lastErr).
		Str("error_class", string(lastClass)).
		Int("max_attempts", cfg.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, cfg.MaxAttempts, lastErr)
}
