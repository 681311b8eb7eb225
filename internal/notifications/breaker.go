package notifications

import (
	"log/slog"
	"sync"
	"time"
)

// Circuit breaker defaults.
const (
	DefaultBreakerThreshold    = 5
	DefaultBreakerResetTimeout = 60 * time.Second
)

// BreakerState is a snapshot of a CircuitBreaker.
type BreakerState struct {
	Open                bool      `json:"open"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	TrippedAt           time.Time `json:"tripped_at,omitempty"`
}

// CircuitBreaker counts consecutive send failures and opens once they
// reach the threshold. It stays open until resetTimeout has passed since
// the trip; the next Allow call then closes it.
type CircuitBreaker struct {
	threshold    int
	resetTimeout time.Duration
	now          func() time.Time

	mu        sync.Mutex
	failures  int
	open      bool
	trippedAt time.Time
}

// NewCircuitBreaker creates a closed breaker. Non-positive arguments take
// defaults; a nil now uses time.Now.
func NewCircuitBreaker(threshold int, resetTimeout time.Duration, now func() time.Time) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	if resetTimeout <= 0 {
		resetTimeout = DefaultBreakerResetTimeout
	}
	if now == nil {
		now = time.Now
	}
	recordBreakerState(false)
	return &CircuitBreaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
		now:          now,
	}
}

// Allow is the health check. It reports whether a send may be attempted.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open && b.now().Sub(b.trippedAt) >= b.resetTimeout {
		b.open = false
		b.failures = 0
		slog.Info("notification circuit breaker closed",
			"open_for", b.now().Sub(b.trippedAt),
		)
		recordBreakerState(false)
	}
	return !b.open
}

// RecordSuccess resets the failure counter.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	b.failures = 0
	b.mu.Unlock()
}

// RecordFailure counts a failure and opens the breaker at the threshold.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.open || b.failures < b.threshold {
		return
	}

	b.open = true
	b.trippedAt = b.now()
	slog.Warn("notification circuit breaker opened",
		"consecutive_failures", b.failures,
		"reset_after", b.resetTimeout,
	)
	recordBreakerState(true)
}

// State returns a snapshot without running the health check.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BreakerState{
		Open:                b.open,
		ConsecutiveFailures: b.failures,
		TrippedAt:           b.trippedAt,
	}
}

// ResetTimeout returns how long the breaker stays open after a trip.
func (b *CircuitBreaker) ResetTimeout() time.Duration {
	return b.resetTimeout
}
