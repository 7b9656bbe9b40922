package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-petevents/internal/events"
	"ms-petevents/internal/models"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrEventNotFound   = errors.New("event not found")
	ErrNotOrganizer    = errors.New("only the organizer can see event analytics")
)

type DBLayer interface {
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	EnrollmentTimes(ctx context.Context, eventID string) ([]time.Time, error)
	EnrollmentsBySpecies(ctx context.Context, eventID string) ([]SpeciesBreakdown, error)
	ReviewStats(ctx context.Context, eventID string) (int, float64, error)
	OrganizerEvents(ctx context.Context, organizerID string) ([]models.Event, error)
	OrganizerReviewStats(ctx context.Context, organizerID string) (int, float64, error)
}

// Service aggregates enrollment and review data for organizers.
type Service struct {
	db  DBLayer
	Now func() time.Time
}

func NewService(db *bun.DB) *Service {
	return NewServiceWithDB(NewDB(db))
}

func NewServiceWithDB(db DBLayer) *Service {
	return &Service{db: db, Now: time.Now}
}

// EventAnalytics describes how one event filled up and how it was rated.
type EventAnalytics struct {
	EventID       string    `json:"event_id"`
	Title         string    `json:"title"`
	StartAt       time.Time `json:"start_at"`
	Capacity      *int      `json:"capacity,omitempty"`
	EnrolledCount int       `json:"enrolled_count"`
	// Enrollments is the number of enrollment rows; it differs from
	// EnrolledCount only while the stored counter has drifted.
	Enrollments      int                `json:"enrollments"`
	FillRate         *float64           `json:"fill_rate,omitempty"`
	DailyEnrollments []DailyEnrollments `json:"daily_enrollments"`
	BySpecies        []SpeciesBreakdown `json:"by_species"`
	ReviewCount      int                `json:"review_count"`
	AverageRating    float64            `json:"average_rating"`
}

type DailyEnrollments struct {
	Date        string `json:"date"`
	Enrollments int    `json:"enrollments"`
	Cumulative  int    `json:"cumulative"`
}

type SpeciesBreakdown struct {
	Species     string `bun:"species" json:"species"`
	Enrollments int    `bun:"enrollments" json:"enrollments"`
}

// EventSummary is one row of the organizer dashboard.
type EventSummary struct {
	EventID       string    `json:"event_id"`
	Title         string    `json:"title"`
	StartAt       time.Time `json:"start_at"`
	Upcoming      bool      `json:"upcoming"`
	EnrolledCount int       `json:"enrolled_count"`
	Capacity      *int      `json:"capacity,omitempty"`
	FillRate      *float64  `json:"fill_rate,omitempty"`
}

type OrganizerAnalytics struct {
	OrganizerID      string         `json:"organizer_id"`
	TotalEvents      int            `json:"total_events"`
	UpcomingEvents   int            `json:"upcoming_events"`
	PastEvents       int            `json:"past_events"`
	TotalEnrollments int            `json:"total_enrollments"`
	ReviewCount      int            `json:"review_count"`
	AverageRating    float64        `json:"average_rating"`
	Events           []EventSummary `json:"events"`
}

func (s *Service) GetEventAnalytics(ctx context.Context, actorID, eventID string) (*EventAnalytics, error) {
	event, err := s.organizedEvent(ctx, actorID, eventID)
	if err != nil {
		return nil, err
	}

	times, err := s.db.EnrollmentTimes(ctx, eventID)
	if err != nil {
		return nil, err
	}
	species, err := s.db.EnrollmentsBySpecies(ctx, eventID)
	if err != nil {
		return nil, err
	}
	reviewCount, avg, err := s.db.ReviewStats(ctx, eventID)
	if err != nil {
		return nil, err
	}

	return &EventAnalytics{
		EventID:          event.ID,
		Title:            event.Title,
		StartAt:          event.StartAt,
		Capacity:         event.Capacity,
		EnrolledCount:    event.EnrolledCount,
		Enrollments:      len(times),
		FillRate:         fillRate(event.EnrolledCount, event.Capacity),
		DailyEnrollments: dailyBuckets(times),
		BySpecies:        species,
		ReviewCount:      reviewCount,
		AverageRating:    avg,
	}, nil
}

func (s *Service) GetOrganizerAnalytics(ctx context.Context, actorID string) (*OrganizerAnalytics, error) {
	if actorID == "" {
		return nil, ErrUnauthenticated
	}

	list, err := s.db.OrganizerEvents(ctx, actorID)
	if err != nil {
		return nil, err
	}
	reviewCount, avg, err := s.db.OrganizerReviewStats(ctx, actorID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	out := &OrganizerAnalytics{
		OrganizerID:   actorID,
		TotalEvents:   len(list),
		ReviewCount:   reviewCount,
		AverageRating: avg,
		Events:        make([]EventSummary, 0, len(list)),
	}
	for _, e := range list {
		upcoming := events.IsUpcoming(e, now)
		if upcoming {
			out.UpcomingEvents++
		} else {
			out.PastEvents++
		}
		out.TotalEnrollments += e.EnrolledCount
		out.Events = append(out.Events, EventSummary{
			EventID:       e.ID,
			Title:         e.Title,
			StartAt:       e.StartAt,
			Upcoming:      upcoming,
			EnrolledCount: e.EnrolledCount,
			Capacity:      e.Capacity,
			FillRate:      fillRate(e.EnrolledCount, e.Capacity),
		})
	}
	return out, nil
}

func (s *Service) organizedEvent(ctx context.Context, actorID, eventID string) (*models.Event, error) {
	if actorID == "" {
		return nil, ErrUnauthenticated
	}
	if _, err := uuid.Parse(eventID); err != nil {
		return nil, ErrEventNotFound
	}
	event, err := s.db.GetEvent(ctx, eventID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load event %s: %w", eventID, err)
	}
	if event.OrganizerID != actorID {
		return nil, ErrNotOrganizer
	}
	return event, nil
}

// fillRate is nil for events without a capacity.
func fillRate(enrolled int, capacity *int) *float64 {
	if capacity == nil || *capacity <= 0 {
		return nil
	}
	rate := float64(enrolled) / float64(*capacity)
	return &rate
}

// dailyBuckets groups sorted enrollment times by UTC day.
func dailyBuckets(times []time.Time) []DailyEnrollments {
	out := []DailyEnrollments{}
	total := 0
	for _, t := range times {
		day := t.UTC().Format("2006-01-02")
		total++
		if n := len(out); n > 0 && out[n-1].Date == day {
			out[n-1].Enrollments++
			out[n-1].Cumulative = total
			continue
		}
		out = append(out, DailyEnrollments{Date: day, Enrollments: 1, Cumulative: total})
	}
	return out
}
