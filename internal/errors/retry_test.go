package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	return cfg
}

func TestRetry_SucceedsAfterTransientError(t *testing.T) {
	// Given: a function that fails twice with a retryable error
	attempts := 0
	fn := func() error {
		attempts++
		if attempts < 3 {
			return NetworkError("connection reset", nil)
		}
		return nil
	}

	// When: retrying
	err := Retry(context.Background(), fastRetry(), fn)

	// Then: the third attempt wins
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_StopsOnNonRetryableError(t *testing.T) {
	// Given: a function failing with an input error
	attempts := 0
	fn := func() error {
		attempts++
		return InputError("bad", nil)
	}

	// When: retrying
	err := Retry(context.Background(), fastRetry(), fn)

	// Then: only one attempt is made and the error is returned unchanged
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, ErrCodeInvalidInput, GetCode(err))
}

func TestRetry_FailsAfterMaxRetries(t *testing.T) {
	// Given: a function that always fails and a predicate accepting everything
	attempts := 0
	cfg := fastRetry()
	cfg.MaxRetries = 2
	cfg.RetryIf = func(error) bool { return true }
	cause := errors.New("always")

	// When: retrying
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return cause
	})

	// Then: initial attempt plus two retries
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, cause)
}

func TestRetry_RespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, fastRetry(), func() error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithResult_ReturnsValue(t *testing.T) {
	attempts := 0
	got, err := RetryWithResult(context.Background(), fastRetry(), func() (int, error) {
		attempts++
		if attempts == 1 {
			return 0, NetworkError("timeout", nil)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}
