package pets

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-petevents/internal/logger"
	"ms-petevents/internal/models"
	"ms-petevents/internal/utils"
)

var (
	ErrUnauthenticated         = errors.New("authentication required")
	ErrInvalidPet              = errors.New("invalid pet")
	ErrPetNotFound             = errors.New("pet not found")
	ErrNotPetOwner             = errors.New("pet belongs to another owner")
	ErrPetHasActiveEnrollments = models.ErrPetHasActiveEnrollments
)

const (
	maxPetNameLength = 60
	maxPetAge        = 40
)

type DBLayer interface {
	CreatePet(ctx context.Context, pet models.Pet) error
	GetPet(ctx context.Context, id string) (*models.Pet, error)
	ListPetsByOwner(ctx context.Context, ownerID string, newestFirst bool) ([]models.Pet, error)
	DeletePet(ctx context.Context, petID string, now time.Time) error
}

// ProfileEnsurer makes sure an owner row exists before the owner's pets reference it.
type ProfileEnsurer interface {
	GetOrCreateProfile(ctx context.Context, actorID string, claims models.Claims) (*models.Owner, error)
}

type PetService struct {
	DB     DBLayer
	Owners ProfileEnsurer
	Logger *logger.Logger
	Now    func() time.Time
}

func NewPetService(db DBLayer, owners ProfileEnsurer, log *logger.Logger) *PetService {
	return &PetService{DB: db, Owners: owners, Logger: log, Now: time.Now}
}

func (s *PetService) CreatePet(ctx context.Context, actorID string, input models.PetInput) (*models.Pet, error) {
	if actorID == "" {
		return nil, ErrUnauthenticated
	}
	if err := validatePetInput(&input); err != nil {
		return nil, err
	}
	if _, err := s.Owners.GetOrCreateProfile(ctx, actorID, models.Claims{Subject: actorID}); err != nil {
		return nil, err
	}

	pet := models.Pet{
		ID:                  uuid.New().String(),
		OwnerID:             actorID,
		Name:                input.Name,
		Species:             input.Species,
		Breed:               input.Breed,
		Age:                 input.Age,
		Size:                input.Size,
		SocialBehavior:      input.SocialBehavior,
		Sterilized:          input.Sterilized,
		VaccinationsCurrent: input.VaccinationsCurrent,
		DietRestrictions:    input.DietRestrictions,
		PhotoURL:            input.PhotoURL,
		SocialURL:           input.SocialURL,
		CreatedAt:           s.Now().UTC(),
	}
	if err := s.DB.CreatePet(ctx, pet); err != nil {
		return nil, err
	}

	s.Logger.Info("PETS", fmt.Sprintf("Pet %s (%s) registered by %s", pet.ID, pet.Name, actorID))
	return &pet, nil
}

// ListPets returns the actor's pets, newest first.
func (s *PetService) ListPets(ctx context.Context, actorID string) ([]models.Pet, error) {
	if actorID == "" {
		return nil, ErrUnauthenticated
	}
	return s.DB.ListPetsByOwner(ctx, actorID, true)
}

func (s *PetService) GetPet(ctx context.Context, petID string) (*models.Pet, error) {
	if _, err := uuid.Parse(petID); err != nil {
		return nil, ErrPetNotFound
	}
	pet, err := s.DB.GetPet(ctx, petID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrPetNotFound
	}
	return pet, err
}

// DeletePet removes the actor's pet. A pet enrolled in an upcoming event
// cannot be deleted.
func (s *PetService) DeletePet(ctx context.Context, actorID, petID string) error {
	if actorID == "" {
		return ErrUnauthenticated
	}
	pet, err := s.GetPet(ctx, petID)
	if err != nil {
		return err
	}
	if pet.OwnerID != actorID {
		return ErrNotPetOwner
	}

	err = s.DB.DeletePet(ctx, petID, s.Now())
	if errors.Is(err, models.ErrNotFound) {
		return ErrPetNotFound
	}
	if err != nil {
		return err
	}

	s.Logger.Info("PETS", fmt.Sprintf("Pet %s deleted by %s", petID, actorID))
	return nil
}

func validatePetInput(input *models.PetInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Species = strings.ToLower(strings.TrimSpace(input.Species))
	input.Size = strings.ToLower(strings.TrimSpace(input.Size))
	input.Breed = strings.TrimSpace(input.Breed)
	input.PhotoURL = strings.TrimSpace(input.PhotoURL)
	input.SocialURL = strings.TrimSpace(input.SocialURL)

	if input.Name == "" || len(input.Name) > maxPetNameLength {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidPet, maxPetNameLength)
	}
	if !slices.Contains(models.ValidSpecies, input.Species) {
		return fmt.Errorf("%w: species must be one of %s", ErrInvalidPet, strings.Join(models.ValidSpecies, ", "))
	}
	if input.Size != "" && !slices.Contains(models.ValidSizes, input.Size) {
		return fmt.Errorf("%w: size must be one of %s", ErrInvalidPet, strings.Join(models.ValidSizes, ", "))
	}
	if input.Age != nil && (*input.Age < 0 || *input.Age > maxPetAge) {
		return fmt.Errorf("%w: age must be between 0 and %d", ErrInvalidPet, maxPetAge)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPet, err)
	}
	return nil
}
