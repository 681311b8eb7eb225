package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Message is a rendered notification handed to a channel sender.
type Message struct {
	Payload Payload
	Subject string
	Body    string
}

// Sender delivers messages over one channel.
type Sender interface {
	Channel() Channel
	Send(ctx context.Context, msg Message) (Delivery, error)
}

// Dispatcher renders payloads and routes them to the sender registered for
// the recipient's channel. It implements Remote.
type Dispatcher struct {
	renderer *Renderer
	senders  map[Channel]Sender
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher(renderer *Renderer, senders ...Sender) *Dispatcher {
	senderMap := make(map[Channel]Sender)
	for _, s := range senders {
		senderMap[s.Channel()] = s
	}
	return &Dispatcher{
		renderer: renderer,
		senders:  senderMap,
	}
}

// Send implements Remote.
func (d *Dispatcher) Send(ctx context.Context, payload Payload) (Delivery, error) {
	channel := payload.Recipient.Channel
	sender, ok := d.senders[channel]
	if !ok {
		recordNotificationSent(channel, "no_sender")
		return Delivery{}, NewNonRetryableError(fmt.Errorf("%w: %s", ErrUnknownChannel, channel))
	}

	subject, body, err := d.renderer.Render(payload)
	if err != nil {
		recordNotificationSent(channel, "render_failed")
		return Delivery{}, NewNonRetryableError(err)
	}

	start := time.Now()
	delivery, err := sender.Send(ctx, Message{Payload: payload, Subject: subject, Body: body})
	recordNotificationDuration(channel, time.Since(start))

	if err != nil {
		recordNotificationSent(channel, "failed")
		return Delivery{}, err
	}

	if delivery.Skipped {
		recordNotificationSent(channel, "skipped")
		slog.Debug("notification skipped by receiver",
			"channel", channel,
			"kind", payload.Kind(),
			"reason", delivery.Reason,
		)
		return delivery, nil
	}

	recordNotificationSent(channel, "success")
	return delivery, nil
}
