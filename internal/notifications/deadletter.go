package notifications

import (
	"context"
	"sync"
	"time"
)

// DeadLetter is a notification that will not be delivered.
type DeadLetter struct {
	ID             string    `json:"id"`
	NotificationID string    `json:"notification_id"`
	Payload        Payload   `json:"payload"`
	Attempts       int       `json:"attempts"`
	LastError      string    `json:"last_error"`
	FailedAt       time.Time `json:"failed_at"`
}

// DeadLetterSink receives notifications that exhausted their retries and
// lets callers look at past failures.
type DeadLetterSink interface {
	Record(ctx context.Context, dl DeadLetter) error
	// List returns up to limit entries, newest first.
	List(ctx context.Context, limit int) ([]DeadLetter, error)
}

// DefaultMemoryDeadLetterCapacity bounds MemoryDeadLetters when no
// capacity is given.
const DefaultMemoryDeadLetterCapacity = 1000

// MemoryDeadLetters keeps the most recent dead letters in memory.
type MemoryDeadLetters struct {
	mu       sync.Mutex
	items    []DeadLetter
	capacity int
}

// NewMemoryDeadLetters creates an in-memory sink holding at most capacity entries.
func NewMemoryDeadLetters(capacity int) *MemoryDeadLetters {
	if capacity <= 0 {
		capacity = DefaultMemoryDeadLetterCapacity
	}
	return &MemoryDeadLetters{capacity: capacity}
}

// Record appends an entry, dropping the oldest one when full.
func (m *MemoryDeadLetters) Record(_ context.Context, dl DeadLetter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.items) == m.capacity {
		copy(m.items, m.items[1:])
		m.items = m.items[:len(m.items)-1]
	}
	m.items = append(m.items, dl)
	return nil
}

// List implements DeadLetterSink.
func (m *MemoryDeadLetters) List(_ context.Context, limit int) ([]DeadLetter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.items) {
		limit = len(m.items)
	}
	out := make([]DeadLetter, 0, limit)
	for i := len(m.items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.items[i])
	}
	return out, nil
}
