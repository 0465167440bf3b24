package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"tryon-gateway/vton/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_StopsAfterBoundedRetries(t *testing.T) {
	ctx := context.Background()
	cause := domain.UpstreamUnavailable("down", nil)

	calls := 0
	err := retry(ctx, newBoundedBackOff(ctx, 2, time.Millisecond, time.Millisecond), func() error {
		calls++
		return retryable{cause}
	}, nil)

	assert.Equal(t, 3, calls)
	assert.Same(t, cause, err, "retryable wrapper must not leak")
}

func TestRetry_PermanentErrorIsNotRetried(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("bad input")

	calls := 0
	err := retry(ctx, newBoundedBackOff(ctx, 5, time.Millisecond, time.Millisecond), func() error {
		calls++
		return cause
	}, nil)

	assert.Equal(t, 1, calls)
	assert.Same(t, cause, err)
}

func TestRetry_CancelDuringBackoffReturnsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	start := time.Now()
	err := retry(ctx, newBoundedBackOff(ctx, 3, 10*time.Second, 10*time.Second), func() error {
		calls++
		return retryable{domain.UpstreamUnavailable("down", nil)}
	}, func(error, time.Duration) {
		// cliente desiste enquanto esperamos a próxima tentativa
		cancel()
	})

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, calls)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.KindUpstreamUnavailable, domain.KindOf(err))
}
