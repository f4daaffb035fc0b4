package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration. A server Retry-After is
	// honored up to this bound.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64

	// RetryableStatuses are the HTTP status codes that are retried.
	RetryableStatuses []int

	// RetryNetworkErrors retries connect/read failures and timeouts.
	RetryNetworkErrors bool
}

// DefaultRetryConfig returns the retry configuration used for every request.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:        5,
		InitialBackoff:     1 * time.Second,
		MaxBackoff:         30 * time.Second,
		BackoffMultiplier:  2.0,
		RetryableStatuses:  []int{429, 502, 503, 504},
		RetryNetworkErrors: true,
	}
}

// DeferredRetryConfig returns the retry configuration for deferred query
// submission: 2s, 4s, 8s, 16s between the five attempts.
func DeferredRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:        5,
		InitialBackoff:     2 * time.Second,
		MaxBackoff:         60 * time.Second,
		BackoffMultiplier:  2.0,
		RetryableStatuses:  []int{429, 502, 503, 504},
		RetryNetworkErrors: true,
	}
}

// Validate checks the retry configuration.
func (c RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1 (got %d)", c.MaxAttempts)
	}
	if c.InitialBackoff < 0 || c.MaxBackoff < 0 {
		return fmt.Errorf("backoff durations must not be negative")
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff_multiplier must be >= 1 (got %v)", c.BackoffMultiplier)
	}
	return nil
}

// shouldRetry determines if an error should be retried.
func (c RetryConfig) shouldRetry(apiErr *APIError) bool {
	switch apiErr.Class {
	case ErrorClassNetwork:
		return c.RetryNetworkErrors
	case ErrorClassRateLimit:
		// a GraphQL 429 arrives with status 200
		return apiErr.StatusCode == 200 || slices.Contains(c.RetryableStatuses, apiErr.StatusCode)
	default:
		return slices.Contains(c.RetryableStatuses, apiErr.StatusCode)
	}
}

// retryWithBackoff executes fn with exponential backoff retry logic.
// It respects context cancellation and adds jitter to prevent thundering herd.
// Only *APIError values the config considers retryable are retried; any other
// error is returned immediately.
func retryWithBackoff(ctx context.Context, config RetryConfig, logger zerolog.Logger, operation string, fn func(attempt int) error) error {
	var lastErr error
	var errorClass ErrorClass
	backoff := config.InitialBackoff

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Str("operation", operation).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !config.shouldRetry(apiErr) {
			return err
		}
		errorClass = apiErr.Class

		// If this was the last attempt, don't wait
		if attempt >= config.MaxAttempts {
			break
		}

		retriesTotal.WithLabelValues(string(errorClass)).Inc()

		// Add jitter (±20% randomness)
		wait := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		if apiErr.RetryAfter > 0 {
			wait = apiErr.RetryAfter
		}
		if config.MaxBackoff > 0 && wait > config.MaxBackoff {
			wait = config.MaxBackoff
		}
		retryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(wait.Seconds())

		logger.Warn().
			Str("operation", operation).
			Str("error_class", string(errorClass)).
			Int("status", apiErr.StatusCode).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Warn().
				Str("operation", operation).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}

		// Calculate next backoff (exponential)
		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if config.MaxBackoff > 0 && backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	retryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
	logger.Error().
		Str("operation", operation).
		Str("error_class", string(errorClass)).
		Int("max_attempts", config.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, config.MaxAttempts, lastErr)
}
