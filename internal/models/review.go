package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	bun.BaseModel `bun:"table:reviews"`

	ID         string    `bun:"id,pk" json:"id"`
	EventID    string    `bun:"event_id,notnull" json:"event_id"`
	AuthorID   string    `bun:"author_id,notnull" json:"author_id"`
	AuthorName string    `bun:"author_name,notnull" json:"author_name"`
	Rating     int       `bun:"rating,notnull" json:"rating"`
	Comment    string    `bun:"comment,notnull" json:"comment"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
}

type ReviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type ReviewSummary struct {
	EventID       string  `json:"event_id"`
	Count         int     `json:"count"`
	AverageRating float64 `json:"average_rating"`
}
