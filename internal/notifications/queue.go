package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// QueueStatus represents the status of a queue item.
type QueueStatus string

// Queue statuses.
const (
	QueueStatusPending QueueStatus = "pending"
	QueueStatusSending QueueStatus = "sending"
	QueueStatusSent    QueueStatus = "sent"
	QueueStatusFailed  QueueStatus = "failed"
)

// QueueItem represents a notification in the queue.
type QueueItem struct {
	ID            string
	Payload       Payload
	Status        QueueStatus
	Attempts      int
	LastAttemptAt *time.Time
	LastError     string
	CreatedAt     time.Time
}

// QueueStats is a snapshot of the queue.
type QueueStats struct {
	Pending      int          `json:"pending"`
	Sending      int          `json:"sending"`
	Failed       int64        `json:"failed_total"`
	Delivered    int64        `json:"delivered_total"`
	DeadLettered int64        `json:"dead_lettered_total"`
	Processing   bool         `json:"processing"`
	Breaker      BreakerState `json:"circuit_breaker"`
}

// Delivery is the acknowledgment of a remote send.
type Delivery struct {
	// Skipped means the receiver deliberately did not deliver, for example
	// because the user turned notifications off. It is a success.
	Skipped bool
	Reason  string
}

// Remote performs the actual delivery of a payload.
type Remote interface {
	Send(ctx context.Context, payload Payload) (Delivery, error)
}

// SendResult is the outcome of SendImmediate.
type SendResult struct {
	Success bool
	Skipped bool
	Reason  string
	Err     error
}

// QueueConfig contains queue configuration.
type QueueConfig struct {
	MaxRetries          int
	RetryDelays         []time.Duration
	InterItemDelay      time.Duration
	CircuitOpenPause    time.Duration
	BreakerThreshold    int
	BreakerResetTimeout time.Duration
}

// DefaultQueueConfig returns default queue configuration.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxRetries:          3,
		RetryDelays:         []time.Duration{1 * time.Second, 5 * time.Second, 15 * time.Second},
		InterItemDelay:      100 * time.Millisecond,
		CircuitOpenPause:    60 * time.Second,
		BreakerThreshold:    DefaultBreakerThreshold,
		BreakerResetTimeout: DefaultBreakerResetTimeout,
	}
}

func (c QueueConfig) withDefaults() QueueConfig {
	def := DefaultQueueConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if len(c.RetryDelays) == 0 {
		c.RetryDelays = def.RetryDelays
	}
	if c.InterItemDelay < 0 {
		c.InterItemDelay = 0
	}
	if c.CircuitOpenPause <= 0 {
		c.CircuitOpenPause = def.CircuitOpenPause
	}
	return c
}

// QueueOption customizes a Queue.
type QueueOption func(*Queue)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) QueueOption {
	return func(q *Queue) { q.now = now }
}

// WithSleep replaces the function used for every wait in the worker.
// It must return ctx.Err() when ctx is done.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) QueueOption {
	return func(q *Queue) { q.sleep = sleep }
}

// WithBreaker replaces the breaker built from QueueConfig.
func WithBreaker(b *CircuitBreaker) QueueOption {
	return func(q *Queue) { q.breaker = b }
}

// Queue delivers notifications in priority order through a single worker,
// retrying transient failures and pausing while the circuit breaker is open.
// Create one per process and share it.
type Queue struct {
	config      QueueConfig
	remote      Remote
	deadLetters DeadLetterSink
	breaker     *CircuitBreaker
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	items        []*QueueItem
	processing   bool
	closed       bool
	delivered    int64
	failed       int64
	deadLettered int64
}

// NewQueue creates a queue. The worker starts on the first Enqueue.
func NewQueue(config QueueConfig, remote Remote, deadLetters DeadLetterSink, opts ...QueueOption) *Queue {
	config = config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		config:      config,
		remote:      remote,
		deadLetters: deadLetters,
		now:         time.Now,
		sleep:       sleepContext,
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.breaker == nil {
		q.breaker = NewCircuitBreaker(config.BreakerThreshold, config.BreakerResetTimeout, q.now)
	}
	if q.deadLetters == nil {
		q.deadLetters = NewMemoryDeadLetters(0)
	}
	return q
}

// Enqueue adds a payload and returns its id without waiting for delivery.
// The only errors are an invalid payload and a closed queue.
func (q *Queue) Enqueue(_ context.Context, payload Payload) (string, error) {
	if err := payload.Validate(); err != nil {
		return "", err
	}
	if payload.Priority == "" {
		payload.Priority = PriorityNormal
	}

	item := &QueueItem{
		ID:        uuid.NewString(),
		Payload:   payload,
		Status:    QueueStatusPending,
		CreatedAt: q.now(),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrQueueClosed
	}
	q.items = append(q.items, item)
	sort.SliceStable(q.items, func(i, j int) bool {
		return q.items[i].Payload.Priority.rank() < q.items[j].Payload.Priority.rank()
	})
	q.startLocked()
	q.mu.Unlock()

	recordEnqueued(payload.Kind(), payload.Priority)
	slog.Debug("notification enqueued",
		"notification_id", item.ID,
		"kind", payload.Kind(),
		"priority", payload.Priority,
	)

	return item.ID, nil
}

// startLocked launches the worker unless one is running. q.mu must be held.
func (q *Queue) startLocked() {
	if q.processing {
		return
	}
	q.processing = true
	q.wg.Add(1)
	go q.run()
}

// SendImmediate delivers a payload now, bypassing the queue. It refuses
// without calling the remote while the circuit breaker is open.
func (q *Queue) SendImmediate(ctx context.Context, payload Payload) SendResult {
	if !q.breaker.Allow() {
		recordSendOutcome("circuit_open")
		return SendResult{Err: ErrCircuitOpen}
	}

	delivery, err := q.remote.Send(ctx, payload)
	if err != nil {
		q.breaker.RecordFailure()
		recordSendOutcome("error")
		return SendResult{Err: err}
	}

	q.breaker.RecordSuccess()
	if delivery.Skipped {
		recordSendOutcome("skipped")
	} else {
		recordSendOutcome("success")
	}
	return SendResult{Success: true, Skipped: delivery.Skipped, Reason: delivery.Reason}
}

// Stats returns a snapshot of the queue.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	stats := QueueStats{
		Delivered:    q.delivered,
		Failed:       q.failed,
		DeadLettered: q.deadLettered,
		Processing:   q.processing,
	}
	for _, item := range q.items {
		switch item.Status {
		case QueueStatusPending:
			stats.Pending++
		case QueueStatusSending:
			stats.Sending++
		}
	}
	q.mu.Unlock()

	stats.Breaker = q.breaker.State()
	return stats
}

// Items returns copies of the queued items in processing order.
func (q *Queue) Items() []QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]QueueItem, 0, len(q.items))
	for _, item := range q.items {
		out = append(out, *item)
	}
	return out
}

// DeadLetters returns the sink that receives undeliverable notifications.
func (q *Queue) DeadLetters() DeadLetterSink {
	return q.deadLetters
}

// Close stops the worker and moves notifications still queued to the
// dead-letter sink. A send already in flight is allowed to finish.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("wait for notification worker: %w", ctx.Err())
	}

	q.mu.Lock()
	remaining := q.items
	q.items = nil
	q.mu.Unlock()

	if len(remaining) > 0 {
		slog.Warn("notification queue closed with undelivered items", "count", len(remaining))
	}

	var errs []error
	for _, item := range remaining {
		if err := q.recordDeadLetter(ctx, item, ErrQueueClosed); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (q *Queue) recordDeadLetter(ctx context.Context, item *QueueItem, cause error) error {
	dl := DeadLetter{
		ID:             uuid.NewString(),
		NotificationID: item.ID,
		Payload:        item.Payload,
		Attempts:       item.Attempts,
		LastError:      cause.Error(),
		FailedAt:       q.now(),
	}
	if err := q.deadLetters.Record(ctx, dl); err != nil {
		slog.Error("failed to record dead letter",
			"notification_id", item.ID,
			"kind", item.Payload.Kind(),
			"error", err,
		)
		return fmt.Errorf("record dead letter %s: %w", item.ID, err)
	}

	q.mu.Lock()
	q.deadLettered++
	q.mu.Unlock()
	recordDeadLettered(item.Payload.Kind())
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
