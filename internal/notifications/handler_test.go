package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func newTestRouter(t *testing.T, remote *fakeRemote, opts ...QueueOption) (http.Handler, *queueHarness) {
	t.Helper()
	h := newTestQueue(t, testQueueConfig(), remote, opts...)
	r := chi.NewRouter()
	NewHandler(NewNotifier(h.queue), h.queue).RegisterRoutes(r)
	return r, h
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

const validBody = `{
	"type": "generation_failed",
	"recipient": {"user_id": "user-1", "channel": "telegram", "chat_id": 42},
	"data": {"task_id": "task-1", "reason": "timeout"}
}`

func TestHandler_Enqueue(t *testing.T) {
	remote := &fakeRemote{}
	router, h := newTestRouter(t, remote)

	rec, env := doRequest(t, router, http.MethodPost, "/notifications", validBody)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp EnqueueResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.NotEmpty(t, resp.ID)

	h.waitIdle(t)
	calls := remote.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, PriorityHigh, calls[0].Priority)
}

func TestHandler_Enqueue_Errors(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMessage string
	}{
		{
			name:        "invalid json",
			body:        `{`,
			wantMessage: "invalid json",
		},
		{
			name:        "unknown kind",
			body:        `{"type":"lyrics_ready","recipient":{"user_id":"u","channel":"webhook"},"data":{}}`,
			wantMessage: "unknown notification kind",
		},
		{
			name:        "missing chat",
			body:        `{"type":"generation_failed","recipient":{"user_id":"u","channel":"telegram"},"data":{"task_id":"t","reason":"r"}}`,
			wantMessage: "validation error",
		},
		{
			name:        "missing fields",
			body:        `{"type":"stems_ready","recipient":{"user_id":"u","channel":"webhook"},"data":{"track_id":"t"}}`,
			wantMessage: "validation error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &fakeRemote{}
			router, _ := newTestRouter(t, remote)

			rec, env := doRequest(t, router, http.MethodPost, "/notifications", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, env.Error)
			assert.Contains(t, env.Error.Message, tt.wantMessage)
			assert.Zero(t, remote.CallCount())
		})
	}
}

func TestHandler_Enqueue_QueueClosed(t *testing.T) {
	router, h := newTestRouter(t, &fakeRemote{})
	require.NoError(t, h.queue.Close(context.Background()))

	rec, _ := doRequest(t, router, http.MethodPost, "/notifications", validBody)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandler_SendImmediate(t *testing.T) {
	tests := []struct {
		name       string
		respond    func(int, Payload) (Delivery, error)
		wantStatus int
		want       SendResponse
	}{
		{
			name:       "delivered",
			wantStatus: http.StatusOK,
			want:       SendResponse{Success: true},
		},
		{
			name: "skipped",
			respond: func(int, Payload) (Delivery, error) {
				return Delivery{Skipped: true, Reason: "muted"}, nil
			},
			wantStatus: http.StatusOK,
			want:       SendResponse{Success: true, Skipped: true, Reason: "muted"},
		},
		{
			name: "remote failure",
			respond: func(int, Payload) (Delivery, error) {
				return Delivery{}, errors.New("upstream down")
			},
			wantStatus: http.StatusBadGateway,
			want:       SendResponse{Error: "upstream down"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t, &fakeRemote{respond: tt.respond})

			rec, env := doRequest(t, router, http.MethodPost, "/notifications/send", validBody)
			require.Equal(t, tt.wantStatus, rec.Code)

			var resp SendResponse
			require.NoError(t, json.Unmarshal(env.Data, &resp))
			assert.Equal(t, tt.want, resp)
		})
	}
}

func TestHandler_SendImmediate_CircuitOpen(t *testing.T) {
	breaker := NewCircuitBreaker(1, time.Minute, nil)
	breaker.RecordFailure()

	remote := &fakeRemote{}
	router, _ := newTestRouter(t, remote, WithBreaker(breaker))

	rec, env := doRequest(t, router, http.MethodPost, "/notifications/send", validBody)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "notification delivery is paused", env.Error.Message)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Zero(t, remote.CallCount())
}

func TestHandler_QueueStats(t *testing.T) {
	router, _ := newTestRouter(t, &fakeRemote{})

	rec, env := doRequest(t, router, http.MethodGet, "/notifications/queue", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats QueueStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Zero(t, stats.Pending)
	assert.False(t, stats.Breaker.Open)
}

func TestHandler_ListDeadLetters(t *testing.T) {
	remote := &fakeRemote{respond: func(int, Payload) (Delivery, error) {
		return Delivery{}, NewNonRetryableError(errors.New("chat not found"))
	}}
	router, h := newTestRouter(t, remote)

	rec, env := doRequest(t, router, http.MethodGet, "/notifications/dead-letters", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Data))

	_, err := h.queue.Enqueue(context.Background(), failedTask("t", PriorityNormal))
	require.NoError(t, err)
	h.waitIdle(t)

	rec, env = doRequest(t, router, http.MethodGet, "/notifications/dead-letters?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var items []DeadLetter
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "chat not found", items[0].LastError)
	assert.Equal(t, KindGenerationFailed, items[0].Payload.Kind())
}

func TestHandler_ListDeadLetters_BadLimit(t *testing.T) {
	router, _ := newTestRouter(t, &fakeRemote{})

	for _, limit := range []string{"0", "-1", "501", "abc"} {
		rec, _ := doRequest(t, router, http.MethodGet, "/notifications/dead-letters?limit="+limit, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}
