package lyrics

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/bissquit/songline/internal/domain"
	"github.com/bissquit/songline/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrTrackNotFound, Status: http.StatusNotFound, Message: "track version not found"},
	{Error: ErrWordsExceedDuration, Status: http.StatusBadRequest},
}

// Handler handles HTTP requests for the lyrics module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new lyrics handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers lyrics routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/lyrics/sections", h.SegmentWords)

	r.Route("/tracks/{trackID}/versions/{versionID}", func(r chi.Router) {
		r.Put("/alignment", h.PutAlignment)
		r.Get("/sections", h.GetSections)
		r.Get("/position", h.GetPosition)
	})
}

// AlignmentRequest carries words and the track duration.
type AlignmentRequest struct {
	DurationSeconds float64              `json:"duration_s" validate:"gt=0"`
	Words           []domain.AlignedWord `json:"words" validate:"dive"`
}

// SectionsResponse is the body of section list responses.
type SectionsResponse struct {
	Sections []domain.DetectedSection `json:"sections"`
	Lines    []Line                   `json:"lines"`
}

// SegmentWords handles POST /lyrics/sections.
func (h *Handler) SegmentWords(w http.ResponseWriter, r *http.Request) {
	var req AlignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validate(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	sections := h.service.Segment(req.Words, req.DurationSeconds)
	httputil.Success(w, http.StatusOK, SectionsResponse{
		Sections: sections,
		Lines:    nonNilLines(GroupLines(req.Words)),
	})
}

// PutAlignment handles PUT /tracks/{trackID}/versions/{versionID}/alignment.
func (h *Handler) PutAlignment(w http.ResponseWriter, r *http.Request) {
	var req AlignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validate(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	alignment := &domain.TrackAlignment{
		TrackID:         chi.URLParam(r, "trackID"),
		VersionID:       chi.URLParam(r, "versionID"),
		DurationSeconds: req.DurationSeconds,
		Words:           req.Words,
	}
	if err := h.service.SaveAlignment(r.Context(), alignment); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) validate(req AlignmentRequest) error {
	if err := h.validator.Struct(req); err != nil {
		return err
	}
	return CheckDuration(req.Words, req.DurationSeconds)
}

// GetSections handles GET /tracks/{trackID}/versions/{versionID}/sections.
func (h *Handler) GetSections(w http.ResponseWriter, r *http.Request) {
	sections, err := h.service.Sections(r.Context(), chi.URLParam(r, "trackID"), chi.URLParam(r, "versionID"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	var words []domain.AlignedWord
	for _, s := range sections {
		words = append(words, s.Words...)
	}

	httputil.Success(w, http.StatusOK, SectionsResponse{
		Sections: sections,
		Lines:    nonNilLines(GroupLines(words)),
	})
}

// GetPosition handles GET /tracks/{trackID}/versions/{versionID}/position?t=&playing=.
func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request) {
	t, err := strconv.ParseFloat(r.URL.Query().Get("t"), 64)
	if err != nil || t < 0 {
		httputil.Error(w, http.StatusBadRequest, "t must be a non-negative number of seconds")
		return
	}

	playing := true
	if v := r.URL.Query().Get("playing"); v != "" {
		playing, err = strconv.ParseBool(v)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "playing must be a boolean")
			return
		}
	}

	pos, err := h.service.Position(r.Context(), chi.URLParam(r, "trackID"), chi.URLParam(r, "versionID"), t, playing)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, pos)
}

func nonNilLines(lines []Line) []Line {
	if lines == nil {
		return []Line{}
	}
	return lines
}
