package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	SpeciesDog    = "dog"
	SpeciesCat    = "cat"
	SpeciesRabbit = "rabbit"
	SpeciesBird   = "bird"
	SpeciesOther  = "other"
)

const (
	SizeSmall  = "small"
	SizeMedium = "medium"
	SizeLarge  = "large"
)

var ValidSpecies = []string{SpeciesDog, SpeciesCat, SpeciesRabbit, SpeciesBird, SpeciesOther}

var ValidSizes = []string{SizeSmall, SizeMedium, SizeLarge}

type Pet struct {
	bun.BaseModel `bun:"table:pets"`

	ID                  string    `bun:"id,pk" json:"id"`
	OwnerID             string    `bun:"owner_id,notnull" json:"owner_id"`
	Name                string    `bun:"name,notnull" json:"name"`
	Species             string    `bun:"species,notnull" json:"species"`
	Breed               string    `bun:"breed" json:"breed,omitempty"`
	Age                 *int      `bun:"age" json:"age,omitempty"`
	Size                string    `bun:"size" json:"size,omitempty"`
	SocialBehavior      string    `bun:"social_behavior" json:"social_behavior,omitempty"`
	Sterilized          bool      `bun:"sterilized,notnull" json:"sterilized"`
	VaccinationsCurrent bool      `bun:"vaccinations_current,notnull" json:"vaccinations_current"`
	DietRestrictions    string    `bun:"diet_restrictions" json:"diet_restrictions,omitempty"`
	PhotoURL            string    `bun:"photo_url" json:"photo_url,omitempty"`
	SocialURL           string    `bun:"social_url" json:"social_url,omitempty"`
	CreatedAt           time.Time `bun:"created_at,notnull" json:"created_at"`
}

type PetInput struct {
	Name                string `json:"name"`
	Species             string `json:"species"`
	Breed               string `json:"breed"`
	Age                 *int   `json:"age"`
	Size                string `json:"size"`
	SocialBehavior      string `json:"social_behavior"`
	Sterilized          bool   `json:"sterilized"`
	VaccinationsCurrent bool   `json:"vaccinations_current"`
	DietRestrictions    string `json:"diet_restrictions"`
	PhotoURL            string `json:"photo_url" validate:"omitempty,http_url,max=2048"`
	SocialURL           string `json:"social_url" validate:"omitempty,http_url,max=2048"`
}
