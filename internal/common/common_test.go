package common

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finanze/finanze-sub000/internal/service"
)

func fastRetryOpts() service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, fastRetryOpts())

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		return errors.New("persistent")
	}, fastRetryOpts())

	assert.ErrorIs(t, err, ErrMaxRetries)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	inner := errors.New("bad request")
	err := WithRetry(context.Background(), func() error {
		attempts++
		return &RetryableError{Err: inner, Retryable: false}
	}, fastRetryOpts())

	assert.ErrorIs(t, err, inner)
	assert.Equal(t, 1, attempts)
}

func TestWithRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := WithRetry(ctx, func() error {
		attempts++
		cancel()
		return errors.New("transient")
	}, service.RetryOptions{MaxAttempts: 5, InitialDelay: time.Hour})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestHTTPStatus(t *testing.T) {
	wrapped := &HTTPStatusError{Status: http.StatusTooManyRequests, Err: errors.New("slow down")}

	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(wrapped))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(&RetryableError{Err: wrapped}))
	assert.Zero(t, HTTPStatus(errors.New("plain")))
	assert.Zero(t, HTTPStatus(nil))
}

func TestUserError(t *testing.T) {
	inner := errors.New("boom")
	err := NewUserError("could not fetch data", inner)

	assert.Contains(t, err.Error(), "could not fetch data")
	assert.ErrorIs(t, err, inner)
}
