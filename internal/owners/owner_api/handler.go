package owner_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-petevents/internal/auth"
	"ms-petevents/internal/logger"
	"ms-petevents/internal/models"
	"ms-petevents/internal/owners"
	"ms-petevents/internal/utils"
)

type Handler struct {
	OwnerService *owners.OwnerService
	Logger       *logger.Logger
}

func NewHandler(ownerService *owners.OwnerService, log *logger.Logger) *Handler {
	return &Handler{OwnerService: ownerService, Logger: log}
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	actorID := auth.UserID(r.Context())

	owner, err := h.OwnerService.GetOrCreateProfile(r.Context(), actorID, auth.ClaimsFromContext(r.Context()))
	if err != nil {
		h.writeError(w, "GetMe", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("profile", owner))
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	actorID := auth.UserID(r.Context())

	var update models.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	owner, err := h.OwnerService.UpdateProfile(r.Context(), actorID, update)
	if err != nil {
		h.writeError(w, "UpdateMe", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("UpdateMe: profile updated for %s", actorID))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("profile updated", owner))
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, owners.ErrUnauthenticated):
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("unauthenticated", err.Error()))
	case errors.Is(err, owners.ErrInvalidProfile):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid profile", err.Error()))
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", "could not load profile"))
	}
}
