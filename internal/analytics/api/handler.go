package analytics_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-petevents/internal/analytics"
	"ms-petevents/internal/auth"
	"ms-petevents/internal/logger"
	"ms-petevents/internal/utils"
)

// Handler serves the organizer analytics endpoints.
type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

func NewHandler(service *analytics.Service, logger *logger.Logger) *Handler {
	return &Handler{
		Service: service,
		Logger:  logger,
	}
}

// RegisterRoutes registers the analytics routes on a router that already requires authentication.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/me/analytics", h.GetOrganizerAnalytics)
	r.Get("/api/events/{eventId}/analytics", h.GetEventAnalytics)
	r.Post("/api/analytics/events/batch", h.GetBatchEventAnalytics)
}

func (h *Handler) GetEventAnalytics(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	result, err := h.Service.GetEventAnalytics(r.Context(), auth.UserID(r.Context()), eventID)
	if err != nil {
		h.writeError(w, "GetEventAnalytics", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("event analytics", result))
}

func (h *Handler) GetOrganizerAnalytics(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.GetOrganizerAnalytics(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, "GetOrganizerAnalytics", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("organizer analytics", result))
}

type batchRequest struct {
	EventIDs []string `json:"event_ids"`
}

func (h *Handler) GetBatchEventAnalytics(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	result, err := h.Service.GetBatchEventAnalytics(r.Context(), auth.UserID(r.Context()), req.EventIDs)
	if err != nil {
		h.writeError(w, "GetBatchEventAnalytics", err)
		return
	}
	if len(result.Skipped) > 0 {
		h.Logger.Debug("ANALYTICS", fmt.Sprintf("Skipped %d events not organized by the caller", len(result.Skipped)))
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("analytics for %d events", len(result.Events)), result))
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, analytics.ErrUnauthenticated):
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("unauthenticated", err.Error()))
	case errors.Is(err, analytics.ErrEventNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("not found", err.Error()))
	case errors.Is(err, analytics.ErrNotOrganizer):
		utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse("forbidden", err.Error()))
	case errors.Is(err, analytics.ErrBatchTooLarge):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
	default:
		h.Logger.Error("ANALYTICS", fmt.Sprintf("%s: %v", op, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", "failed to get analytics"))
	}
}
