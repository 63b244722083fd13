package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

// createTestLogger creates a logger for testing
func createTestLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), createTestLogger(), "op", RetryConfig{Attempts: 3, Delay: time.Millisecond}, func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), createTestLogger(), "op", RetryConfig{Attempts: 3, Delay: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), createTestLogger(), "flaky", RetryConfig{Attempts: 3, Delay: time.Millisecond}, func() error {
		calls++
		return errors.New("still broken")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "flaky failed after 3 attempts")
	assert.Contains(t, err.Error(), "still broken")
}

func TestRetryHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, createTestLogger(), "op", DefaultRetryConfig(), func() error {
		calls++
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, 0, calls)
}

func TestRetryStopsWaitingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	start := time.Now()
	err := Retry(ctx, createTestLogger(), "op", RetryConfig{Attempts: 2, Delay: 10 * time.Second}, func() error {
		cancel()
		return errors.New("fail then cancel")
	})

	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "retry should not sit out the full delay after cancel")
}
