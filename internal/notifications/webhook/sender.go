// Package webhook delivers notifications by POSTing them to an HTTP endpoint
// that fans them out to the user.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bissquit/songline/internal/notifications"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

// Config holds webhook sender configuration.
// An empty URL disables the sender; sends are then reported as skipped.
type Config struct {
	URL     string
	Token   string // sent as a bearer token when set
	Timeout time.Duration
}

// Sender implements notifications.Sender over an HTTP webhook.
type Sender struct {
	config     Config
	httpClient *http.Client
}

// NewSender creates a new webhook sender.
func NewSender(config Config) *Sender {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &Sender{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Channel implements notifications.Sender.
func (s *Sender) Channel() notifications.Channel {
	return notifications.ChannelWebhook
}

type requestBody struct {
	UserID   string          `json:"user_id"`
	Type     string          `json:"type"`
	Priority string          `json:"priority"`
	Subject  string          `json:"subject"`
	Body     string          `json:"body"`
	Data     json.RawMessage `json:"data"`
}

type responseBody struct {
	Success bool   `json:"success"`
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason"`
	Error   string `json:"error"`
}

// Send posts the rendered message to the webhook.
func (s *Sender) Send(ctx context.Context, msg notifications.Message) (notifications.Delivery, error) {
	if s.config.URL == "" {
		return notifications.Delivery{Skipped: true, Reason: "webhook not configured"}, nil
	}

	data, err := json.Marshal(msg.Payload.Content)
	if err != nil {
		return notifications.Delivery{}, &PermanentError{Message: fmt.Sprintf("marshal content: %v", err)}
	}

	body, err := json.Marshal(requestBody{
		UserID:   msg.Payload.Recipient.UserID,
		Type:     string(msg.Payload.Kind()),
		Priority: string(msg.Payload.Priority),
		Subject:  msg.Subject,
		Body:     msg.Body,
		Data:     data,
	})
	if err != nil {
		return notifications.Delivery{}, &PermanentError{Message: fmt.Sprintf("marshal payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(body))
	if err != nil {
		return notifications.Delivery{}, &PermanentError{Message: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.Token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return notifications.Delivery{}, err
		}
		return notifications.Delivery{}, &RetryableError{Message: fmt.Sprintf("send request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	return s.handleResponse(resp)
}

func (s *Sender) handleResponse(resp *http.Response) (notifications.Delivery, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return notifications.Delivery{}, &RetryableError{Message: fmt.Sprintf("read response: %v", err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return decodeResult(raw)

	case resp.StatusCode == http.StatusTooManyRequests:
		return notifications.Delivery{}, &RetryableError{Code: resp.StatusCode, Message: "rate limited"}

	case resp.StatusCode >= 500:
		return notifications.Delivery{}, &RetryableError{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("server error: %s", snippet(raw)),
		}

	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return notifications.Delivery{}, &PermanentError{Code: resp.StatusCode, Message: "webhook rejected credentials"}

	default:
		return notifications.Delivery{}, &PermanentError{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("rejected: %s", snippet(raw)),
		}
	}
}

// decodeResult interprets a 2xx reply. An empty body counts as success.
func decodeResult(raw []byte) (notifications.Delivery, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return notifications.Delivery{}, nil
	}

	var result responseBody
	if err := json.Unmarshal(raw, &result); err != nil {
		return notifications.Delivery{}, &RetryableError{Message: fmt.Sprintf("decode response: %v", err)}
	}

	switch {
	case result.Skipped:
		slog.Debug("webhook skipped notification", "reason", result.Reason)
		return notifications.Delivery{Skipped: true, Reason: result.Reason}, nil
	case result.Success:
		return notifications.Delivery{}, nil
	default:
		msg := result.Error
		if msg == "" {
			msg = "remote reported failure"
		}
		return notifications.Delivery{}, &RetryableError{Message: msg}
	}
}

func snippet(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}

// PermanentError indicates a permanent error that should not be retried.
type PermanentError struct {
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("webhook error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("webhook error: %s", e.Message)
}

// IsRetryable returns false as permanent errors should not be retried.
func (e *PermanentError) IsRetryable() bool { return false }

// RetryableError indicates a temporary error that can be retried.
type RetryableError struct {
	Code    int
	Message string
}

func (e *RetryableError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("webhook error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("webhook error: %s", e.Message)
}

// IsRetryable returns true as these errors are temporary.
func (e *RetryableError) IsRetryable() bool { return true }
