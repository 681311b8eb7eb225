package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bissquit/songline/internal/notifications"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage() notifications.Message {
	return notifications.Message{
		Payload: notifications.Payload{
			Priority: notifications.PriorityNormal,
			Recipient: notifications.Recipient{
				UserID:  "user-1",
				Channel: notifications.ChannelWebhook,
			},
			Content: notifications.StemsReady{TrackID: "t1", Title: "Song", Stems: []string{"vocals", "drums"}},
		},
		Subject: "[Stems ready] Song",
		Body:    "Test message",
	}
}

func newServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewSender_Defaults(t *testing.T) {
	sender := NewSender(Config{})

	assert.Equal(t, defaultTimeout, sender.config.Timeout)
	assert.NotNil(t, sender.httpClient)
}

func TestSender_Channel(t *testing.T) {
	assert.Equal(t, notifications.ChannelWebhook, NewSender(Config{}).Channel())
}

func TestSender_Send_NotConfigured(t *testing.T) {
	delivery, err := NewSender(Config{}).Send(context.Background(), testMessage())

	require.NoError(t, err)
	assert.True(t, delivery.Skipped)
	assert.Equal(t, "webhook not configured", delivery.Reason)
}

func TestSender_Send_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body requestBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user-1", body.UserID)
		assert.Equal(t, "stems_ready", body.Type)
		assert.Equal(t, "normal", body.Priority)
		assert.Equal(t, "[Stems ready] Song", body.Subject)
		assert.Equal(t, "Test message", body.Body)
		assert.JSONEq(t, `{"track_id":"t1","title":"Song","stems":["vocals","drums"]}`, string(body.Data))

		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	sender := NewSender(Config{URL: server.URL, Token: "secret"})
	delivery, err := sender.Send(context.Background(), testMessage())

	require.NoError(t, err)
	assert.False(t, delivery.Skipped)
}

func TestSender_Send_Responses(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		skipped     bool
		wantErr     bool
		retryable   bool
		errContains string
	}{
		{name: "empty body", status: http.StatusNoContent},
		{name: "skipped", status: http.StatusOK, body: `{"success":false,"skipped":true,"reason":"user disabled notifications"}`, skipped: true},
		{name: "reported failure", status: http.StatusOK, body: `{"success":false,"error":"upstream down"}`, wantErr: true, retryable: true, errContains: "upstream down"},
		{name: "garbled body", status: http.StatusOK, body: `not json`, wantErr: true, retryable: true, errContains: "decode response"},
		{name: "bad request", status: http.StatusBadRequest, body: "invalid payload", wantErr: true, errContains: "invalid payload"},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: true, errContains: "credentials"},
		{name: "forbidden", status: http.StatusForbidden, wantErr: true, errContains: "credentials"},
		{name: "not found", status: http.StatusNotFound, body: "no such hook", wantErr: true, errContains: "webhook error 404"},
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: true, retryable: true, errContains: "rate limited"},
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantErr: true, retryable: true, errContains: "boom"},
		{name: "unavailable", status: http.StatusServiceUnavailable, wantErr: true, retryable: true, errContains: "webhook error 503"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newServer(t, tt.status, tt.body)

			delivery, err := NewSender(Config{URL: server.URL}).Send(context.Background(), testMessage())

			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.skipped, delivery.Skipped)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)

			var r interface{ IsRetryable() bool }
			require.ErrorAs(t, err, &r)
			assert.Equal(t, tt.retryable, r.IsRetryable())
		})
	}
}

func TestSender_Send_SkippedReason(t *testing.T) {
	server := newServer(t, http.StatusOK, `{"skipped":true,"reason":"quiet hours"}`)

	delivery, err := NewSender(Config{URL: server.URL}).Send(context.Background(), testMessage())

	require.NoError(t, err)
	assert.True(t, delivery.Skipped)
	assert.Equal(t, "quiet hours", delivery.Reason)
}

func TestSender_Send_NetworkError(t *testing.T) {
	sender := NewSender(Config{
		URL:     "http://localhost:59999",
		Timeout: 100 * time.Millisecond,
	})

	_, err := sender.Send(context.Background(), testMessage())

	require.Error(t, err)
	var retryErr *RetryableError
	require.ErrorAs(t, err, &retryErr)
	assert.Contains(t, retryErr.Message, "send request")
	assert.True(t, retryErr.IsRetryable())
}

func TestSender_Send_ContextCancellation(t *testing.T) {
	server := newServer(t, http.StatusOK, `{"success":true}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSender(Config{URL: server.URL}).Send(ctx, testMessage())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPermanentError(t *testing.T) {
	t.Run("with code", func(t *testing.T) {
		err := &PermanentError{Code: 400, Message: "bad request"}
		assert.Equal(t, "webhook error 400: bad request", err.Error())
		assert.False(t, err.IsRetryable())
	})

	t.Run("without code", func(t *testing.T) {
		err := &PermanentError{Message: "marshal content"}
		assert.Equal(t, "webhook error: marshal content", err.Error())
		assert.False(t, err.IsRetryable())
	})
}

func TestRetryableError(t *testing.T) {
	t.Run("with code", func(t *testing.T) {
		err := &RetryableError{Code: 500, Message: "server error"}
		assert.Equal(t, "webhook error 500: server error", err.Error())
		assert.True(t, err.IsRetryable())
	})

	t.Run("without code", func(t *testing.T) {
		err := &RetryableError{Message: "connection refused"}
		assert.Equal(t, "webhook error: connection refused", err.Error())
		assert.True(t, err.IsRetryable())
	})
}
