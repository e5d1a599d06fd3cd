package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"engagedl/pkg/config"
	errs "engagedl/pkg/errors"
	"engagedl/pkg/logger"
	"engagedl/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{6, 1 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoffJitterStaysInRange(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 50; i++ {
		delay := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, delay, 140*time.Millisecond)
		assert.LessOrEqual(t, delay, 260*time.Millisecond)
	}
}

func fastConfig(attempts int) *Config {
	return &Config{
		MaxAttempts: attempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Logger:      logger.NewNopLogger(),
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, fastConfig(5))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	persistent := errors.New("disk full")

	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return persistent
	}, fastConfig(3))

	assert.ErrorIs(t, err, persistent)
	assert.ErrorContains(t, err, "max retry attempts (3) exceeded")
	assert.Equal(t, 3, attempts)
}

func TestDoNonRetryableError(t *testing.T) {
	attempts := 0
	authErr := errs.New(errs.ErrorTypeAuth, "authentication required")

	cfg := fastConfig(5)
	cfg.RetryIf = DefaultRetryIf

	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return authErr
	}, cfg)

	assert.Same(t, authErr, err)
	assert.Equal(t, 1, attempts)
}

func TestDoContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	cfg := fastConfig(5)
	cfg.Backoff = &ConstantBackoff{Delay: time.Second}

	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	}, cfg)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts)
}

func TestDoOnRetry(t *testing.T) {
	var seen []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		seen = append(seen, attempt)
		assert.Equal(t, time.Millisecond, delay)
	}

	_ = Do(context.Background(), func(ctx context.Context) error {
		return errors.New("again")
	}, cfg)

	assert.Equal(t, []int{1, 2}, seen)
}

func TestDoWaitsOnBudget(t *testing.T) {
	clock := ratelimit.NewFakeClock(time.Unix(0, 0))
	cfg := fastConfig(3)
	cfg.Budget = ratelimit.NewTokenBucketWithClock(1, time.Second, clock)

	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("busy")
		}
		return nil
	}, cfg)

	require.NoError(t, err)
	assert.NotEmpty(t, clock.Sleeps(), "later attempts should wait for the write budget")
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("temporary error")
		}
		return "saved", nil
	}, fastConfig(3))

	require.NoError(t, err)
	assert.Equal(t, "saved", result)
	assert.Equal(t, 2, attempts)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(errs.Wrap(errs.ErrorTypeNetwork, "save", context.DeadlineExceeded)))
	assert.False(t, DefaultRetryIf(errs.New(errs.ErrorTypeParsing, "bad row")))
	assert.True(t, DefaultRetryIf(errs.New(errs.ErrorTypeNetwork, "redis reset")))
	assert.True(t, DefaultRetryIf(errors.New("rename: text file busy")))
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.RetryConfig{
		MaxAttempts:     4,
		InitialDelay:    2 * time.Second,
		MaxDelay:        8 * time.Second,
		WritesPerMinute: 30,
	}, logger.NewNopLogger())

	assert.Equal(t, 4, cfg.MaxAttempts)
	require.IsType(t, &ExponentialBackoff{}, cfg.Backoff)
	assert.Equal(t, 2*time.Second, cfg.Backoff.(*ExponentialBackoff).BaseDelay)
	assert.NotNil(t, cfg.Budget)

	noBudget := FromConfig(config.RetryConfig{MaxAttempts: 1}, nil)
	assert.Nil(t, noBudget.Budget)
}

func TestRetrier(t *testing.T) {
	r := NewRetrier(fastConfig(5)).WithMaxAttempts(2).WithBackoff(&ConstantBackoff{})

	attempts := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("nope")
	})

	assert.Error(t, err)
	assert.Equal(t, 2, attempts)
}
