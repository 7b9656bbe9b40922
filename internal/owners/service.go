package owners

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-petevents/internal/models"
	"ms-petevents/internal/utils"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrInvalidProfile  = errors.New("invalid profile")
)

const maxDisplayNameLength = 80

type DBLayer interface {
	GetOwner(ctx context.Context, id string) (*models.Owner, error)
	CreateOwner(ctx context.Context, owner models.Owner) error
	UpdateOwner(ctx context.Context, owner models.Owner) error
}

type OwnerService struct {
	DB  DBLayer
	Now func() time.Time
}

func NewOwnerService(db DBLayer) *OwnerService {
	return &OwnerService{DB: db, Now: time.Now}
}

// GetOrCreateProfile returns the actor's profile, creating it from the
// identity claims the first time the actor is seen.
func (s *OwnerService) GetOrCreateProfile(ctx context.Context, actorID string, claims models.Claims) (*models.Owner, error) {
	if actorID == "" {
		return nil, ErrUnauthenticated
	}

	owner, err := s.DB.GetOwner(ctx, actorID)
	if err == nil {
		return owner, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	now := s.Now().UTC()
	fresh := models.Owner{
		ID:          actorID,
		DisplayName: strings.TrimSpace(claims.Name),
		Email:       strings.TrimSpace(claims.Email),
		PhotoURL:    claims.Picture,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.DB.CreateOwner(ctx, fresh); err != nil {
		return nil, err
	}

	// A concurrent request may have won the insert; read back the stored row.
	return s.DB.GetOwner(ctx, actorID)
}

func (s *OwnerService) UpdateProfile(ctx context.Context, actorID string, update models.ProfileUpdate) (*models.Owner, error) {
	if actorID == "" {
		return nil, ErrUnauthenticated
	}

	owner, err := s.GetOrCreateProfile(ctx, actorID, models.Claims{Subject: actorID})
	if err != nil {
		return nil, err
	}

	if update.DisplayName != nil {
		name := strings.TrimSpace(*update.DisplayName)
		if name == "" || len(name) > maxDisplayNameLength {
			return nil, fmt.Errorf("%w: display name must be 1-%d characters", ErrInvalidProfile, maxDisplayNameLength)
		}
		owner.DisplayName = name
	}
	if update.PhotoURL != nil {
		photo := strings.TrimSpace(*update.PhotoURL)
		if err := utils.ValidateVar("photo_url", photo, "omitempty,http_url,max=2048"); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
		}
		owner.PhotoURL = photo
	}
	owner.UpdatedAt = s.Now().UTC()

	if err := s.DB.UpdateOwner(ctx, *owner); err != nil {
		return nil, err
	}
	return owner, nil
}

// AuthorName is the name shown next to content the owner writes:
// the display name, else the local part of the email, else "Anonymous".
func AuthorName(owner *models.Owner) string {
	if owner == nil {
		return "Anonymous"
	}
	if name := strings.TrimSpace(owner.DisplayName); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(owner.Email, "@"); ok && local != "" {
		return local
	}
	return "Anonymous"
}
