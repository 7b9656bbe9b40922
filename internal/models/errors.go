package models

import "errors"

// Storage-level errors shared by the db packages.
var (
	ErrNotFound                = errors.New("record not found")
	ErrDuplicateEnrollment     = errors.New("pet already enrolled in event")
	ErrEventFull               = errors.New("event capacity reached")
	ErrPetHasActiveEnrollments = errors.New("pet is enrolled in upcoming events")
)
