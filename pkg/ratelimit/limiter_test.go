package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMinIntervalFirstGrantIsImmediate(t *testing.T) {
	clock := NewFakeClock(epoch)
	limiter := NewMinInterval(10*time.Second, clock)

	require.NoError(t, limiter.WaitContext(context.Background()))
	assert.Empty(t, clock.Sleeps())
	assert.Equal(t, epoch, clock.Now())
}

func TestMinIntervalWaitsForRemainder(t *testing.T) {
	clock := NewFakeClock(epoch)
	limiter := NewMinInterval(10*time.Second, clock)

	require.NoError(t, limiter.WaitContext(context.Background()))
	clock.Advance(3 * time.Second) // work took 3s
	require.NoError(t, limiter.WaitContext(context.Background()))

	assert.Equal(t, []time.Duration{7 * time.Second}, clock.Sleeps())
	assert.Equal(t, epoch.Add(10*time.Second), clock.Now())
}

func TestMinIntervalNoWaitWhenWorkWasSlow(t *testing.T) {
	clock := NewFakeClock(epoch)
	limiter := NewMinInterval(10*time.Second, clock)

	limiter.Wait()
	clock.Advance(12 * time.Second)
	limiter.Wait()

	assert.Empty(t, clock.Sleeps())
}

func TestMinIntervalGrantsNeverCloser(t *testing.T) {
	clock := NewFakeClock(epoch)
	limiter := NewMinInterval(10*time.Second, clock)

	var grants []time.Time
	for _, work := range []time.Duration{0, 2 * time.Second, 9 * time.Second, 15 * time.Second, time.Millisecond} {
		require.NoError(t, limiter.WaitContext(context.Background()))
		grants = append(grants, clock.Now())
		clock.Advance(work)
	}

	for i := 1; i < len(grants); i++ {
		assert.GreaterOrEqual(t, grants[i].Sub(grants[i-1]), 10*time.Second)
	}
}

func TestMinIntervalAllow(t *testing.T) {
	clock := NewFakeClock(epoch)
	limiter := NewMinInterval(10*time.Second, clock)

	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())

	clock.Advance(10 * time.Second)
	assert.True(t, limiter.Allow())

	limiter.Reset()
	assert.True(t, limiter.Allow())
}

func TestMinIntervalCancelled(t *testing.T) {
	limiter := NewMinInterval(time.Hour, nil)
	require.NoError(t, limiter.WaitContext(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.WaitContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTokenBucket(t *testing.T) {
	clock := NewFakeClock(epoch)
	tb := NewTokenBucketWithClock(3, time.Minute, clock)

	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow(), "token %d", i+1)
	}
	assert.False(t, tb.Allow())

	require.NoError(t, tb.WaitContext(context.Background()))
	assert.Equal(t, []time.Duration{time.Minute}, clock.Sleeps())

	tb.tokens = 0
	tb.Reset()
	assert.Equal(t, tb.capacity, tb.tokens)
}

func TestTokenBucketCancelled(t *testing.T) {
	tb := NewTokenBucket(1, time.Hour)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, tb.WaitContext(ctx), context.Canceled)
}
