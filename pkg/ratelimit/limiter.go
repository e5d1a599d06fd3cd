package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request
	Wait()
	// Reset resets the rate limiter state
	Reset()
}

// ContextLimiter is a Limiter whose wait can be abandoned
type ContextLimiter interface {
	Limiter
	// WaitContext blocks until a request is allowed or ctx is done
	WaitContext(ctx context.Context) error
}

// MinInterval spaces grants so that consecutive grants are at least
// interval apart. The first grant is immediate.
type MinInterval struct {
	interval time.Duration
	clock    Clock
	last     time.Time
	granted  bool
	mu       sync.Mutex
}

// NewMinInterval creates a minimum-interval limiter. A nil clock uses
// the system clock.
func NewMinInterval(interval time.Duration, clock Clock) *MinInterval {
	if clock == nil {
		clock = SystemClock
	}
	return &MinInterval{interval: interval, clock: clock}
}

// Interval returns the configured spacing
func (m *MinInterval) Interval() time.Duration {
	return m.interval
}

// Allow grants a request if the interval has elapsed since the last grant
func (m *MinInterval) Allow() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.remaining() > 0 {
		return false
	}
	m.grant()
	return true
}

// Wait blocks until the next grant
func (m *MinInterval) Wait() {
	_ = m.WaitContext(context.Background())
}

// WaitContext blocks until the interval since the previous grant has
// elapsed, then records a new grant.
func (m *MinInterval) WaitContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if wait := m.remaining(); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.clock.After(wait):
		}
	}
	m.grant()
	return nil
}

// Reset forgets the previous grant
func (m *MinInterval) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.granted = false
}

func (m *MinInterval) remaining() time.Duration {
	if !m.granted {
		return 0
	}
	return m.interval - m.clock.Now().Sub(m.last)
}

func (m *MinInterval) grant() {
	m.last = m.clock.Now()
	m.granted = true
}

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	capacity     int           // Maximum number of tokens
	tokens       int           // Current number of tokens
	refillPeriod time.Duration // Period after which bucket is refilled
	lastRefill   time.Time     // Last time the bucket was refilled
	clock        Clock
	mu           sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	return NewTokenBucketWithClock(capacity, refillPeriod, SystemClock)
}

// NewTokenBucketWithClock creates a token bucket driven by clock
func NewTokenBucketWithClock(capacity int, refillPeriod time.Duration, clock Clock) *TokenBucket {
	return &TokenBucket{
		capacity:     capacity,
		tokens:       capacity,
		refillPeriod: refillPeriod,
		lastRefill:   clock.Now(),
		clock:        clock,
	}
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}

	return false
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait() {
	_ = tb.WaitContext(context.Background())
}

// WaitContext blocks until a token is available or ctx is done
func (tb *TokenBucket) WaitContext(ctx context.Context) error {
	for !tb.Allow() {
		tb.mu.Lock()
		wait := tb.refillPeriod - tb.clock.Now().Sub(tb.lastRefill)
		tb.mu.Unlock()

		if wait <= 0 {
			wait = 100 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tb.clock.After(wait):
		}
	}
	return nil
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = tb.clock.Now()
}

// refill tops the bucket up once a full period has elapsed
func (tb *TokenBucket) refill() {
	now := tb.clock.Now()
	if now.Sub(tb.lastRefill) >= tb.refillPeriod {
		tb.tokens = tb.capacity
		tb.lastRefill = now
	}
}
