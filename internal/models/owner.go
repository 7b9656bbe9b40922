package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Owner is the profile of an authenticated account. ID is the identity subject.
type Owner struct {
	bun.BaseModel `bun:"table:owners"`

	ID          string    `bun:"id,pk" json:"id"`
	DisplayName string    `bun:"display_name" json:"display_name"`
	Email       string    `bun:"email" json:"email"`
	PhotoURL    string    `bun:"photo_url" json:"photo_url,omitempty"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

type ProfileUpdate struct {
	DisplayName *string `json:"display_name"`
	PhotoURL    *string `json:"photo_url"`
}
