package common

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryConfig bounds a retried operation.
type RetryConfig struct {
	Attempts int           // Total attempts including the first
	Delay    time.Duration // Delay before the first retry
	Backoff  float64       // Multiplier applied to the delay after each failure
}

// DefaultRetryConfig covers transient transport failures against the sheet
// and the automation driver.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts: 3,
		Delay:    2 * time.Second,
		Backoff:  2.0,
	}
}

// Retry runs fn until it succeeds, the attempt budget is spent, or the
// context is cancelled. The last error is returned wrapped with the
// operation name and attempt count.
func Retry(ctx context.Context, logger arbor.ILogger, name string, cfg RetryConfig, fn func() error) error {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 1.0
	}

	var lastErr error
	delay := cfg.Delay

	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s cancelled: %w", name, err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt == cfg.Attempts {
			break
		}

		if logger != nil {
			logger.Warn().
				Str("operation", name).
				Int("attempt", attempt).
				Int("max_attempts", cfg.Attempts).
				Err(lastErr).
				Msg("Operation failed, retrying")
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s cancelled: %w", name, ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Backoff)
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, cfg.Attempts, lastErr)
}
