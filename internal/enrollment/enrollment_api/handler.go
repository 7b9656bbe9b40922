package enrollment_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-petevents/internal/auth"
	"ms-petevents/internal/enrollment"
	"ms-petevents/internal/logger"
	"ms-petevents/internal/models"
	"ms-petevents/internal/utils"
)

// createPetPath is where clients send owners who have no pet yet.
const createPetPath = "/pets/create"

type Handler struct {
	EnrollmentService *enrollment.EnrollmentService
	Logger            *logger.Logger
}

func NewHandler(enrollmentService *enrollment.EnrollmentService, log *logger.Logger) *Handler {
	return &Handler{EnrollmentService: enrollmentService, Logger: log}
}

// Enroll handles POST /api/events/{eventId}/enroll with an optional {"pet_id"} body.
func (h *Handler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req models.EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	req.EventID = chi.URLParam(r, "eventId")

	result, err := h.EnrollmentService.Enroll(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		h.writeEnrollError(w, err)
		return
	}

	if result.Status == enrollment.StatusAlreadyEnrolled {
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("pet already enrolled", result))
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("pet enrolled", result))
}

func (h *Handler) writeEnrollError(w http.ResponseWriter, err error) {
	status := enrollment.StatusOf(err)
	resp := utils.ErrorResponse(string(status), err.Error())

	switch status {
	case enrollment.StatusUnauthenticated:
		utils.WriteJSON(w, http.StatusUnauthorized, resp)
	case enrollment.StatusNoPetRegistered:
		resp.Data = map[string]string{"redirect": createPetPath}
		utils.WriteJSON(w, http.StatusUnprocessableEntity, resp)
	case enrollment.StatusPetNotFound, enrollment.StatusEventNotFound:
		utils.WriteJSON(w, http.StatusNotFound, resp)
	case enrollment.StatusEventClosed, enrollment.StatusEventFull, enrollment.StatusPetIneligible:
		utils.WriteJSON(w, http.StatusConflict, resp)
	default:
		if errors.Is(err, enrollment.ErrEnrollmentInProgress) {
			utils.WriteJSON(w, http.StatusConflict, resp)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("Enroll: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse(string(status), "enrollment failed"))
	}
}

// Reconcile handles POST /api/events/{eventId}/reconcile for the organizer.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	rec, err := h.EnrollmentService.Reconcile(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "eventId"))
	if err != nil {
		h.writeError(w, "Reconcile", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("enrolled count reconciled", rec))
}

func (h *Handler) Roster(w http.ResponseWriter, r *http.Request) {
	list, err := h.EnrollmentService.Roster(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "eventId"))
	if err != nil {
		h.writeError(w, "Roster", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("%d enrollments", len(list)), list))
}

// Pass handles GET /api/enrollments/{enrollmentId}/pass and returns a PNG.
func (h *Handler) Pass(w http.ResponseWriter, r *http.Request) {
	img, err := h.EnrollmentService.Pass(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "enrollmentId"))
	if err != nil {
		h.writeError(w, "Pass", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

type verifyPassRequest struct {
	Token string `json:"token"`
}

// VerifyPass handles POST /api/events/{eventId}/passes/verify for the organizer.
func (h *Handler) VerifyPass(w http.ResponseWriter, r *http.Request) {
	var req verifyPassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", "token is required"))
		return
	}

	e, err := h.EnrollmentService.VerifyPass(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "eventId"), req.Token)
	if err != nil {
		h.writeError(w, "VerifyPass", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("pass valid", e))
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, enrollment.ErrUnauthenticated):
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("unauthenticated", err.Error()))
	case errors.Is(err, enrollment.ErrEventNotFound), errors.Is(err, enrollment.ErrEnrollmentNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("not found", err.Error()))
	case errors.Is(err, enrollment.ErrNotOrganizer), errors.Is(err, enrollment.ErrNotEnrollmentOwner):
		utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse("forbidden", err.Error()))
	case errors.Is(err, enrollment.ErrInvalidPass):
		utils.WriteJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("invalid pass", err.Error()))
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", "request failed"))
	}
}
