package event_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-petevents/internal/auth"
	"ms-petevents/internal/events"
	"ms-petevents/internal/logger"
	"ms-petevents/internal/models"
	"ms-petevents/internal/utils"
)

type Handler struct {
	EventService *events.EventService
	Logger       *logger.Logger
}

func NewHandler(eventService *events.EventService, log *logger.Logger) *Handler {
	return &Handler{EventService: eventService, Logger: log}
}

// ListEvents serves the public views: upcoming, past and others.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err == nil && filter.View != events.ViewUpcoming && filter.View != events.ViewPast && filter.View != events.ViewOthers {
		err = fmt.Errorf("%w: view %q requires /api/me/events", events.ErrInvalidFilter, filter.View)
	}
	if err != nil {
		h.writeError(w, "ListEvents", err)
		return
	}
	h.list(w, r, filter)
}

// ListMyEvents serves the actor's views: mine and enrolled.
func (h *Handler) ListMyEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err == nil && r.URL.Query().Get("view") == "" {
		filter.View = events.ViewMine
	}
	if err == nil && filter.View != events.ViewMine && filter.View != events.ViewEnrolled {
		err = fmt.Errorf("%w: view must be mine or enrolled", events.ErrInvalidFilter)
	}
	if err != nil {
		h.writeError(w, "ListMyEvents", err)
		return
	}
	h.list(w, r, filter)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, filter events.ListFilter) {
	listing, err := h.EventService.ListEvents(r.Context(), auth.UserID(r.Context()), filter)
	if err != nil {
		h.writeError(w, "ListEvents", err)
		return
	}
	h.Logger.Debug("API", fmt.Sprintf("ListEvents view=%s: %d upcoming, %d past", filter.View, len(listing.Upcoming), len(listing.Past)))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(string(filter.View), listing))
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.EventService.GetEvent(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		h.writeError(w, "GetEvent", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("event", event))
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var input models.EventInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	event, err := h.EventService.CreateEvent(r.Context(), auth.UserID(r.Context()), input)
	if err != nil {
		h.writeError(w, "CreateEvent", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("event created", event))
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var input models.EventInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	event, err := h.EventService.UpdateEvent(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "eventId"), input)
	if err != nil {
		h.writeError(w, "UpdateEvent", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("event updated", event))
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.EventService.DeleteEvent(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "eventId")); err != nil {
		h.writeError(w, "DeleteEvent", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) EventQR(w http.ResponseWriter, r *http.Request) {
	img, err := h.EventService.EventQRCode(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		h.writeError(w, "EventQR", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func parseFilter(r *http.Request) (events.ListFilter, error) {
	q := r.URL.Query()

	view, err := events.ParseView(q.Get("view"))
	if err != nil {
		return events.ListFilter{}, err
	}
	bucket, err := events.ParseBucket(q.Get("bucket"))
	if err != nil {
		return events.ListFilter{}, err
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return events.ListFilter{}, fmt.Errorf("%w: limit must be a non-negative integer", events.ErrInvalidFilter)
		}
	}
	return events.ListFilter{View: view, Bucket: bucket, Limit: limit}, nil
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, events.ErrUnauthenticated):
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("unauthenticated", err.Error()))
	case errors.Is(err, events.ErrInvalidEvent), errors.Is(err, events.ErrInvalidFilter):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request", err.Error()))
	case errors.Is(err, events.ErrEventNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("event not found", err.Error()))
	case errors.Is(err, events.ErrNotOrganizer):
		utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse("forbidden", err.Error()))
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", "request failed"))
	}
}
