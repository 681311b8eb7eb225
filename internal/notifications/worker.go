package notifications

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// run drains the queue. Only one run is active at a time; it exits when
// the queue is empty or closed and clears the processing flag under the
// same lock Enqueue uses to decide whether to start a new one.
func (q *Queue) run() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		if q.closed || len(q.items) == 0 {
			q.processing = false
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()

		if !q.breaker.Allow() {
			slog.Debug("circuit breaker open, pausing notification queue",
				"pause", q.config.CircuitOpenPause,
			)
			if !q.wait(q.config.CircuitOpenPause) {
				return
			}
			continue
		}

		item := q.takeNext()
		if item == nil {
			q.mu.Lock()
			q.processing = false
			q.mu.Unlock()
			return
		}

		backoff := q.process(item)
		if backoff > 0 && !q.wait(backoff) {
			return
		}
		if !q.wait(q.config.InterItemDelay) {
			return
		}
	}
}

// wait sleeps for d and reports whether the worker should keep going.
func (q *Queue) wait(d time.Duration) bool {
	if err := q.sleep(q.ctx, d); err != nil {
		q.mu.Lock()
		q.processing = false
		q.mu.Unlock()
		return false
	}
	return true
}

// takeNext marks the first pending item as sending.
func (q *Queue) takeNext() *QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, item := range q.items {
		if item.Status != QueueStatusPending {
			continue
		}
		now := q.now()
		item.Status = QueueStatusSending
		item.Attempts++
		item.LastAttemptAt = &now
		return item
	}
	return nil
}

// process sends one item and applies the outcome. It returns the backoff
// to wait before the next attempt, or zero.
func (q *Queue) process(item *QueueItem) time.Duration {
	// In-flight sends are not cancelled on Close.
	ctx := context.WithoutCancel(q.ctx)
	result := q.SendImmediate(ctx, item.Payload)

	switch {
	case result.Success:
		q.finish(item, QueueStatusSent)
		q.mu.Lock()
		q.delivered++
		q.mu.Unlock()
		slog.Debug("notification delivered",
			"notification_id", item.ID,
			"kind", item.Payload.Kind(),
			"attempts", item.Attempts,
			"skipped", result.Skipped,
		)
		return 0

	case errors.Is(result.Err, ErrCircuitOpen):
		// The breaker opened after the loop checked it. Not an attempt.
		q.mu.Lock()
		item.Attempts--
		item.Status = QueueStatusPending
		q.mu.Unlock()
		return 0
	}

	q.mu.Lock()
	item.LastError = result.Err.Error()
	attempts := item.Attempts
	q.mu.Unlock()

	if !isRetryable(result.Err) || attempts >= q.config.MaxRetries {
		slog.Error("notification failed permanently",
			"notification_id", item.ID,
			"kind", item.Payload.Kind(),
			"channel", item.Payload.Recipient.Channel,
			"attempts", attempts,
			"retryable", isRetryable(result.Err),
			"error", result.Err,
		)
		q.mu.Lock()
		item.Status = QueueStatusFailed
		q.failed++
		q.mu.Unlock()
		_ = q.recordDeadLetter(ctx, item, result.Err)
		q.finish(item, QueueStatusFailed)
		return 0
	}

	q.mu.Lock()
	item.Status = QueueStatusPending
	q.mu.Unlock()

	backoff := q.retryDelay(attempts)
	slog.Warn("notification send failed, will retry",
		"notification_id", item.ID,
		"kind", item.Payload.Kind(),
		"attempt", attempts,
		"max_retries", q.config.MaxRetries,
		"backoff", backoff,
		"error", result.Err,
	)
	return backoff
}

// finish sets a terminal status and removes the item from the queue.
func (q *Queue) finish(item *QueueItem, status QueueStatus) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item.Status = status
	for i, it := range q.items {
		if it == item {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
}

// retryDelay returns the backoff after the given attempt, reusing the last
// configured delay past the end of the list.
func (q *Queue) retryDelay(attempt int) time.Duration {
	delays := q.config.RetryDelays
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(delays) {
		idx = len(delays) - 1
	}
	return delays[idx]
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	type retryable interface {
		IsRetryable() bool
	}
	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	// Default: retry unknown errors
	return true
}

// RetryableError wraps an error and marks it as retryable or not.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

// IsRetryable returns whether the error is retryable.
func (e *RetryableError) IsRetryable() bool {
	return e.Retryable
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a retryable error.
func NewRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: true}
}

// NewNonRetryableError creates a non-retryable error.
func NewNonRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: false}
}
