package notifications

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/bissquit/songline/internal/pkg/ctxlog"
	"github.com/bissquit/songline/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

const (
	defaultDeadLetterLimit = 50
	maxDeadLetterLimit     = 500
)

// Handler handles HTTP requests for the notifications module.
type Handler struct {
	notifier      *Notifier
	queue         *Queue
	errorMappings []httputil.ErrorMapping
}

// NewHandler creates a new notifications handler.
func NewHandler(notifier *Notifier, queue *Queue) *Handler {
	return &Handler{
		notifier: notifier,
		queue:    queue,
		errorMappings: []httputil.ErrorMapping{
			{Error: ErrUnknownKind, Status: http.StatusBadRequest},
			{Error: ErrQueueClosed, Status: http.StatusServiceUnavailable, Message: "notification queue is shutting down"},
			{
				Error:      ErrCircuitOpen,
				Status:     http.StatusServiceUnavailable,
				Message:    "notification delivery is paused",
				RetryAfter: queue.breaker.ResetTimeout(),
			},
		},
	}
}

// RegisterRoutes registers notification routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Post("/", h.Enqueue)
		r.Post("/send", h.SendImmediate)
		r.Get("/queue", h.QueueStats)
		r.Get("/dead-letters", h.ListDeadLetters)
	})
}

// EnqueueResponse is returned for an accepted notification.
type EnqueueResponse struct {
	ID string `json:"id"`
}

// SendResponse is the outcome of an immediate send.
type SendResponse struct {
	Success bool   `json:"success"`
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Enqueue handles POST /notifications.
func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var payload Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.decodeError(w, r, err)
		return
	}

	ctx, _ := ctxlog.With(r.Context(), "kind", payload.Kind(), "user_id", payload.Recipient.UserID)
	id, err := h.notifier.Notify(ctx, payload.Recipient, payload.Priority, payload.Content)
	if err != nil {
		h.handleError(w, r.WithContext(ctx), err)
		return
	}

	httputil.Success(w, http.StatusAccepted, EnqueueResponse{ID: id})
}

// SendImmediate handles POST /notifications/send.
func (h *Handler) SendImmediate(w http.ResponseWriter, r *http.Request) {
	var payload Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.decodeError(w, r, err)
		return
	}
	if payload.Priority == "" {
		payload.Priority = DefaultPriorities[payload.Kind()]
	}
	if err := payload.Validate(); err != nil {
		h.handleError(w, r, err)
		return
	}

	ctx, logger := ctxlog.With(r.Context(), "kind", payload.Kind(), "user_id", payload.Recipient.UserID)
	result := h.queue.SendImmediate(ctx, payload)
	if errors.Is(result.Err, ErrCircuitOpen) {
		h.handleError(w, r, result.Err)
		return
	}

	resp := SendResponse{
		Success: result.Success,
		Skipped: result.Skipped,
		Reason:  result.Reason,
	}
	if result.Err != nil {
		logger.Warn("immediate notification failed", "error", result.Err)
		resp.Error = result.Err.Error()
		httputil.Success(w, http.StatusBadGateway, resp)
		return
	}
	httputil.Success(w, http.StatusOK, resp)
}

// QueueStats handles GET /notifications/queue.
func (h *Handler) QueueStats(w http.ResponseWriter, _ *http.Request) {
	httputil.Success(w, http.StatusOK, h.queue.Stats())
}

// ListDeadLetters handles GET /notifications/dead-letters?limit=.
func (h *Handler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit := defaultDeadLetterLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxDeadLetterLimit {
			httputil.Error(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	items, err := h.queue.DeadLetters().List(r.Context(), limit)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if items == nil {
		items = []DeadLetter{}
	}

	httputil.Success(w, http.StatusOK, items)
}

func (h *Handler) decodeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrUnknownKind) {
		h.handleError(w, r, err)
		return
	}
	httputil.Error(w, http.StatusBadRequest, "invalid json")
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrInvalidPayload) {
		httputil.ValidationError(w, err)
		return
	}
	httputil.HandleError(r.Context(), w, err, h.errorMappings)
}
