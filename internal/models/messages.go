package models

import "time"

// EnrollmentCreatedMessage is published after an enrollment commits.
type EnrollmentCreatedMessage struct {
	EnrollmentID  string    `json:"enrollment_id"`
	EventID       string    `json:"event_id"`
	PetID         string    `json:"pet_id"`
	OwnerID       string    `json:"owner_id"`
	EnrolledCount int       `json:"enrolled_count"`
	CreatedAt     time.Time `json:"created_at"`
}

type EventChangedMessage struct {
	EventID     string    `json:"event_id"`
	OrganizerID string    `json:"organizer_id"`
	Title       string    `json:"title,omitempty"`
	StartAt     time.Time `json:"start_at,omitempty"`
	Action      string    `json:"action"`
}

type ReviewCreatedMessage struct {
	ReviewID string    `json:"review_id"`
	EventID  string    `json:"event_id"`
	AuthorID string    `json:"author_id"`
	Rating   int       `json:"rating"`
	At       time.Time `json:"at"`
}

// EnrollmentCount is pushed to live subscribers of an event.
type EnrollmentCount struct {
	EventID       string `json:"event_id"`
	EnrolledCount int    `json:"enrolled_count"`
}
