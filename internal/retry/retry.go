// Package retry runs storage operations with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/anchor-indexer/internal/logging"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts  int           // Maximum number of attempts, including the first
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Upper bound for a single delay
	Multiplier   float64       // Growth factor between delays
	// ShouldRetry decides whether an error is worth another attempt; nil retries everything
	ShouldRetry func(error) bool
}

// DefaultRetryConfig returns the configuration used for backend connections.
// Pattern: 1s, 2s, 4s, 8s, max 30s
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryResult contains information about the retry operation
type RetryResult struct {
	Attempts      int
	Success       bool
	TotalDuration time.Duration
	LastError     error
}

// RetryFunc is a function that can be retried
type RetryFunc func(ctx context.Context, attempt int) error

// WithExponentialBackoff executes fn until it succeeds, the attempts run out,
// ShouldRetry rejects the error or ctx is done.
func WithExponentialBackoff(ctx context.Context, config *RetryConfig, fn RetryFunc) *RetryResult {
	logger := logging.FromContext(ctx)
	startTime := time.Now()
	result := &RetryResult{}

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result.Attempts = attempt

		err := fn(ctx, attempt)
		if err == nil {
			result.Success = true
			result.LastError = nil
			if attempt > 1 {
				logger.WithField("attempts", attempt).Info("Operation succeeded after retry")
			}
			break
		}
		result.LastError = err

		if attempt >= config.MaxAttempts || (config.ShouldRetry != nil && !config.ShouldRetry(err)) {
			break
		}

		delay := calculateDelay(config, attempt)
		logger.WithFields(map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": config.MaxAttempts,
			"delay":       delay.String(),
		}).WithError(err).Warn("Operation failed, retrying with exponential backoff")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(startTime)
			return result
		}
	}

	result.TotalDuration = time.Since(startTime)
	return result
}

// calculateDelay returns initialDelay * multiplier^(attempt-1), capped at MaxDelay
func calculateDelay(config *RetryConfig, attempt int) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt-1))
	if config.MaxDelay > 0 && delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	return time.Duration(delay)
}

// Do runs fn with config and folds the result into a single error
func Do(ctx context.Context, config *RetryConfig, fn RetryFunc) error {
	result := WithExponentialBackoff(ctx, config, fn)
	if !result.Success {
		return fmt.Errorf("operation failed after %d attempts: %w", result.Attempts, result.LastError)
	}
	return nil
}

// WithRetry is Do with the default configuration
func WithRetry(ctx context.Context, fn RetryFunc) error {
	return Do(ctx, DefaultRetryConfig(), fn)
}
