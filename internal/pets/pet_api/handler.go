package pet_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-petevents/internal/auth"
	"ms-petevents/internal/logger"
	"ms-petevents/internal/models"
	"ms-petevents/internal/pets"
	"ms-petevents/internal/utils"
)

type Handler struct {
	PetService *pets.PetService
	Logger     *logger.Logger
}

func NewHandler(petService *pets.PetService, log *logger.Logger) *Handler {
	return &Handler{PetService: petService, Logger: log}
}

func (h *Handler) ListPets(w http.ResponseWriter, r *http.Request) {
	list, err := h.PetService.ListPets(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, "ListPets", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("%d pets", len(list)), list))
}

func (h *Handler) CreatePet(w http.ResponseWriter, r *http.Request) {
	var input models.PetInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	pet, err := h.PetService.CreatePet(r.Context(), auth.UserID(r.Context()), input)
	if err != nil {
		h.writeError(w, "CreatePet", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("pet created", pet))
}

func (h *Handler) GetPet(w http.ResponseWriter, r *http.Request) {
	pet, err := h.PetService.GetPet(r.Context(), chi.URLParam(r, "petId"))
	if err != nil {
		h.writeError(w, "GetPet", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("pet", pet))
}

func (h *Handler) DeletePet(w http.ResponseWriter, r *http.Request) {
	petID := chi.URLParam(r, "petId")
	if err := h.PetService.DeletePet(r.Context(), auth.UserID(r.Context()), petID); err != nil {
		h.writeError(w, "DeletePet", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, pets.ErrUnauthenticated):
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("unauthenticated", err.Error()))
	case errors.Is(err, pets.ErrInvalidPet):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid pet", err.Error()))
	case errors.Is(err, pets.ErrPetNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("pet not found", err.Error()))
	case errors.Is(err, pets.ErrNotPetOwner):
		utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse("forbidden", err.Error()))
	case errors.Is(err, pets.ErrPetHasActiveEnrollments):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("pet has upcoming enrollments", err.Error()))
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", "request failed"))
	}
}
