package models

import (
	"time"

	"github.com/uptrace/bun"
)

const EventStatusPending = "pending"

const (
	CategoryWalk          = "walk"
	CategoryTraining      = "training"
	CategorySocialization = "socialization"
	CategoryCompetition   = "competition"
	CategoryAdoption      = "adoption"
	CategoryVet           = "vet"
	CategoryOther         = "other"
)

var ValidCategories = []string{
	CategoryWalk, CategoryTraining, CategorySocialization, CategoryCompetition,
	CategoryAdoption, CategoryVet, CategoryOther,
}

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID                 string    `bun:"id,pk" json:"id"`
	OrganizerID        string    `bun:"organizer_id,notnull" json:"organizer_id"`
	Title              string    `bun:"title,notnull" json:"title"`
	Description        string    `bun:"description,notnull" json:"description"`
	Category           string    `bun:"category" json:"category,omitempty"`
	StartAt            time.Time `bun:"start_at,notnull" json:"start_at"`
	DurationMinutes    *int      `bun:"duration_minutes" json:"duration_minutes,omitempty"`
	Address            string    `bun:"address,notnull" json:"address"`
	MapsURL            string    `bun:"maps_url" json:"maps_url,omitempty"`
	Capacity           *int      `bun:"capacity" json:"capacity,omitempty"`
	Price              float64   `bun:"price,notnull" json:"price"`
	SpeciesRestriction string    `bun:"species_restriction" json:"species_restriction,omitempty"`
	SizeRestriction    string    `bun:"size_restriction" json:"size_restriction,omitempty"`
	CoverPhotoURL      string    `bun:"cover_photo_url" json:"cover_photo_url,omitempty"`
	EnrolledCount      int       `bun:"enrolled_count,notnull" json:"enrolled_count"`
	AllowComments      bool      `bun:"allow_comments,notnull" json:"allow_comments"`
	Visible            bool      `bun:"visible,notnull" json:"visible"`
	Status             string    `bun:"status,notnull" json:"status"`
	CreatedAt          time.Time `bun:"created_at,notnull" json:"created_at"`

	Organizer *Owner `bun:"rel:belongs-to,join:organizer_id=id" json:"organizer,omitempty"`
}

type EventInput struct {
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	Category           string    `json:"category"`
	StartAt            time.Time `json:"start_at"`
	DurationMinutes    *int      `json:"duration_minutes"`
	Address            string    `json:"address"`
	MapsURL            string    `json:"maps_url" validate:"omitempty,http_url,max=2048"`
	Capacity           *int      `json:"capacity"`
	Price              float64   `json:"price"`
	SpeciesRestriction string    `json:"species_restriction"`
	SizeRestriction    string    `json:"size_restriction"`
	CoverPhotoURL      string    `json:"cover_photo_url" validate:"omitempty,http_url,max=2048"`
	AllowComments      *bool     `json:"allow_comments"`
	Visible            *bool     `json:"visible"`
}
