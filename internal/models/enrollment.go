package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Enrollment associates one pet with one event. At most one row per (event, pet).
type Enrollment struct {
	bun.BaseModel `bun:"table:event_pet_enrollments"`

	ID        string    `bun:"id,pk" json:"id"`
	EventID   string    `bun:"event_id,notnull,unique:event_pet" json:"event_id"`
	PetID     string    `bun:"pet_id,notnull,unique:event_pet" json:"pet_id"`
	OwnerID   string    `bun:"owner_id,notnull" json:"owner_id"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`

	Event *Event `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty"`
	Pet   *Pet   `bun:"rel:belongs-to,join:pet_id=id" json:"pet,omitempty"`
}

type EnrollRequest struct {
	EventID string `json:"event_id"`
	// PetID is optional; the actor's oldest pet is used when empty.
	PetID string `json:"pet_id"`
}
