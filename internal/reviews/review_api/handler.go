package review_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-petevents/internal/auth"
	"ms-petevents/internal/logger"
	"ms-petevents/internal/models"
	"ms-petevents/internal/reviews"
	"ms-petevents/internal/utils"
)

type Handler struct {
	ReviewService *reviews.ReviewService
	Logger        *logger.Logger
}

func NewHandler(reviewService *reviews.ReviewService, log *logger.Logger) *Handler {
	return &Handler{ReviewService: reviewService, Logger: log}
}

func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	list, err := h.ReviewService.ListReviews(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		h.writeError(w, "ListReviews", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("%d reviews", len(list)), list))
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ReviewService.Summary(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		h.writeError(w, "Summary", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("review summary", summary))
}

func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var input models.ReviewInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	review, err := h.ReviewService.CreateReview(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "eventId"), input)
	if err != nil {
		h.writeError(w, "CreateReview", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("review created", review))
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, reviews.ErrUnauthenticated):
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("unauthenticated", err.Error()))
	case errors.Is(err, reviews.ErrInvalidReview):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid review", err.Error()))
	case errors.Is(err, reviews.ErrEventNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("event not found", err.Error()))
	case errors.Is(err, reviews.ErrCommentsDisabled), errors.Is(err, reviews.ErrEventNotStarted):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("reviews closed", err.Error()))
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", "request failed"))
	}
}
