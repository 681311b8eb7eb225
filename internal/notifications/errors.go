package notifications

import "errors"

// Payload errors.
var (
	ErrInvalidPayload = errors.New("invalid notification payload")
	ErrUnknownKind    = errors.New("unknown notification kind")
)

// Delivery errors.
var (
	ErrCircuitOpen    = errors.New("circuit breaker is open")
	ErrQueueClosed    = errors.New("notification queue is closed")
	ErrUnknownChannel = errors.New("no sender for channel")
)
