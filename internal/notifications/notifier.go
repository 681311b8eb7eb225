package notifications

import (
	"context"
	"fmt"
	"log/slog"
)

// Enqueuer accepts payloads for background delivery.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload Payload) (string, error)
}

// DefaultPriorities maps each kind to the priority used when the caller
// gives none.
var DefaultPriorities = map[Kind]Priority{
	KindGenerationComplete: PriorityHigh,
	KindGenerationFailed:   PriorityHigh,
	KindStemsReady:         PriorityNormal,
	KindAnalysisComplete:   PriorityLow,
}

// Notifier is the entry point the rest of the app uses to announce
// events. Delivery is fire-and-forget.
type Notifier struct {
	queue Enqueuer
}

// NewNotifier creates a new Notifier.
func NewNotifier(queue Enqueuer) *Notifier {
	return &Notifier{queue: queue}
}

// Notify validates and enqueues content for a recipient. An empty
// priority takes the kind's default.
func (n *Notifier) Notify(ctx context.Context, recipient Recipient, priority Priority, content Content) (string, error) {
	if content == nil {
		return "", fmt.Errorf("%w: missing content", ErrInvalidPayload)
	}
	if priority == "" {
		priority = DefaultPriorities[content.Kind()]
	}

	payload, err := NewPayload(priority, recipient, content)
	if err != nil {
		return "", err
	}

	id, err := n.queue.Enqueue(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", content.Kind(), err)
	}

	slog.Info("notification queued",
		"notification_id", id,
		"kind", content.Kind(),
		"priority", payload.Priority,
		"channel", recipient.Channel,
		"user_id", recipient.UserID,
	)
	return id, nil
}
