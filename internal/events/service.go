package events

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-petevents/internal/events/db"
	"ms-petevents/internal/logger"
	"ms-petevents/internal/models"
	"ms-petevents/internal/utils"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrInvalidEvent    = errors.New("invalid event")
	ErrEventNotFound   = errors.New("event not found")
	ErrNotOrganizer    = errors.New("only the organizer can change this event")
	ErrInvalidFilter   = errors.New("invalid listing filter")
)

const (
	maxTitleLength   = 120
	defaultListLimit = 10
)

type DBLayer interface {
	CreateEvent(ctx context.Context, event models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	UpdateEvent(ctx context.Context, event models.Event) error
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context, q db.EventQuery) ([]models.Event, error)
	ListEnrolledEvents(ctx context.Context, ownerID string) ([]models.Event, error)
}

type ProfileEnsurer interface {
	GetOrCreateProfile(ctx context.Context, actorID string, claims models.Claims) (*models.Owner, error)
}

type KafkaPublisher interface {
	PublishEventCreated(ctx context.Context, msg models.EventChangedMessage) error
	PublishEventDeleted(ctx context.Context, msg models.EventChangedMessage) error
}

type QRGenerator interface {
	GeneratePlainQR(content string) ([]byte, error)
}

type EventService struct {
	DB            DBLayer
	Owners        ProfileEnsurer
	Kafka         KafkaPublisher
	QR            QRGenerator
	Logger        *logger.Logger
	Now           func() time.Time
	PublicBaseURL string
	ListLimit     int
}

func NewEventService(db DBLayer, owners ProfileEnsurer, kafka KafkaPublisher, qr QRGenerator, log *logger.Logger, publicBaseURL string, listLimit int) *EventService {
	if listLimit <= 0 {
		listLimit = defaultListLimit
	}
	return &EventService{
		DB:            db,
		Owners:        owners,
		Kafka:         kafka,
		QR:            qr,
		Logger:        log,
		Now:           time.Now,
		PublicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		ListLimit:     listLimit,
	}
}

func (s *EventService) CreateEvent(ctx context.Context, actorID string, input models.EventInput) (*models.Event, error) {
	if actorID == "" {
		return nil, ErrUnauthenticated
	}
	if err := validateEventInput(&input); err != nil {
		return nil, err
	}
	if _, err := s.Owners.GetOrCreateProfile(ctx, actorID, models.Claims{Subject: actorID}); err != nil {
		return nil, err
	}

	event := models.Event{
		ID:            uuid.New().String(),
		OrganizerID:   actorID,
		EnrolledCount: 0,
		AllowComments: true,
		Visible:       true,
		Status:        models.EventStatusPending,
		CreatedAt:     s.Now().UTC(),
	}
	applyInput(&event, input)

	if err := s.DB.CreateEvent(ctx, event); err != nil {
		return nil, err
	}
	s.Logger.Info("EVENTS", fmt.Sprintf("Event %s created by %s starting %s", event.ID, actorID, event.StartAt.Format(time.RFC3339)))

	msg := models.EventChangedMessage{EventID: event.ID, OrganizerID: actorID, Title: event.Title, StartAt: event.StartAt, Action: "created"}
	if err := s.Kafka.PublishEventCreated(ctx, msg); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish event created %s: %v", event.ID, err))
	}
	return &event, nil
}

func (s *EventService) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrEventNotFound
	}
	event, err := s.DB.GetEvent(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrEventNotFound
	}
	return event, err
}

// UpdateEvent replaces the editable fields of an event the actor organizes.
func (s *EventService) UpdateEvent(ctx context.Context, actorID, id string, input models.EventInput) (*models.Event, error) {
	event, err := s.organizedEvent(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if err := validateEventInput(&input); err != nil {
		return nil, err
	}
	if input.Capacity != nil && *input.Capacity < event.EnrolledCount {
		return nil, fmt.Errorf("%w: capacity %d is below the %d pets already enrolled", ErrInvalidEvent, *input.Capacity, event.EnrolledCount)
	}

	applyInput(event, input)
	if err := s.DB.UpdateEvent(ctx, *event); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	s.Logger.Info("EVENTS", fmt.Sprintf("Event %s updated by %s", id, actorID))
	return event, nil
}

func (s *EventService) DeleteEvent(ctx context.Context, actorID, id string) error {
	event, err := s.organizedEvent(ctx, actorID, id)
	if err != nil {
		return err
	}
	if err := s.DB.DeleteEvent(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return ErrEventNotFound
		}
		return err
	}
	s.Logger.Info("EVENTS", fmt.Sprintf("Event %s deleted by %s", id, actorID))

	msg := models.EventChangedMessage{EventID: id, OrganizerID: actorID, Title: event.Title, StartAt: event.StartAt, Action: "deleted"}
	if err := s.Kafka.PublishEventDeleted(ctx, msg); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish event deleted %s: %v", id, err))
	}
	return nil
}

// ListEvents resolves a listing view for actorID at the current instant.
// upcoming, past and others are public; mine and enrolled need an actor.
func (s *EventService) ListEvents(ctx context.Context, actorID string, filter ListFilter) (*Listing, error) {
	now := utils.NormalizeTime(s.Now())
	limit := filter.Limit
	if limit > maxListLimit {
		limit = maxListLimit
	}

	switch filter.View {
	case ViewUpcoming:
		list, err := s.DB.ListEvents(ctx, db.EventQuery{VisibleOnly: true, Upcoming: true, Now: now, Limit: limit})
		return &Listing{Upcoming: list}, err

	case ViewPast:
		list, err := s.DB.ListEvents(ctx, db.EventQuery{VisibleOnly: true, Upcoming: false, Now: now, Limit: limit})
		return &Listing{Past: list}, err

	case ViewOthers:
		if limit <= 0 {
			limit = s.ListLimit
		}
		q := db.EventQuery{VisibleOnly: true, ExcludeOrganizerID: actorID, Now: now, Limit: limit}
		if filter.Bucket == BucketPast {
			list, err := s.DB.ListEvents(ctx, q)
			return &Listing{Past: list}, err
		}
		q.Upcoming = true
		list, err := s.DB.ListEvents(ctx, q)
		return &Listing{Upcoming: list}, err

	case ViewMine:
		if actorID == "" {
			return nil, ErrUnauthenticated
		}
		return bucketed(filter.Bucket, func(upcoming bool) ([]models.Event, error) {
			return s.DB.ListEvents(ctx, db.EventQuery{OrganizerID: actorID, Upcoming: upcoming, Now: now, Limit: limit})
		})

	case ViewEnrolled:
		if actorID == "" {
			return nil, ErrUnauthenticated
		}
		all, err := s.DB.ListEnrolledEvents(ctx, actorID)
		if err != nil {
			return nil, err
		}
		upcoming, past := Partition(all, now)
		return selectBucket(filter.Bucket, truncate(upcoming, limit), truncate(past, limit)), nil

	default:
		return nil, fmt.Errorf("%w: unknown view %q", ErrInvalidFilter, filter.View)
	}
}

// EventQRCode renders a PNG QR code linking to the event's public page.
func (s *EventService) EventQRCode(ctx context.Context, id string) ([]byte, error) {
	event, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.QR.GeneratePlainQR(s.EventURL(event.ID))
}

func (s *EventService) EventURL(id string) string {
	return fmt.Sprintf("%s/events/%s", s.PublicBaseURL, id)
}

func (s *EventService) organizedEvent(ctx context.Context, actorID, id string) (*models.Event, error) {
	if actorID == "" {
		return nil, ErrUnauthenticated
	}
	event, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != actorID {
		return nil, ErrNotOrganizer
	}
	return event, nil
}

func bucketed(bucket Bucket, fetch func(upcoming bool) ([]models.Event, error)) (*Listing, error) {
	listing := &Listing{}
	if bucket != BucketPast {
		list, err := fetch(true)
		if err != nil {
			return nil, err
		}
		listing.Upcoming = list
	}
	if bucket != BucketUpcoming {
		list, err := fetch(false)
		if err != nil {
			return nil, err
		}
		listing.Past = list
	}
	return listing, nil
}

func selectBucket(bucket Bucket, upcoming, past []models.Event) *Listing {
	switch bucket {
	case BucketUpcoming:
		return &Listing{Upcoming: upcoming}
	case BucketPast:
		return &Listing{Past: past}
	default:
		return &Listing{Upcoming: upcoming, Past: past}
	}
}

func applyInput(event *models.Event, input models.EventInput) {
	event.Title = input.Title
	event.Description = input.Description
	event.Category = input.Category
	event.StartAt = utils.NormalizeTime(input.StartAt)
	event.DurationMinutes = input.DurationMinutes
	event.Address = input.Address
	event.MapsURL = input.MapsURL
	event.Capacity = input.Capacity
	event.Price = input.Price
	event.SpeciesRestriction = input.SpeciesRestriction
	event.SizeRestriction = input.SizeRestriction
	event.CoverPhotoURL = input.CoverPhotoURL
	if input.AllowComments != nil {
		event.AllowComments = *input.AllowComments
	}
	if input.Visible != nil {
		event.Visible = *input.Visible
	}
}

func validateEventInput(input *models.EventInput) error {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Address = strings.TrimSpace(input.Address)
	input.Category = strings.ToLower(strings.TrimSpace(input.Category))
	input.SpeciesRestriction = strings.ToLower(strings.TrimSpace(input.SpeciesRestriction))
	input.SizeRestriction = strings.ToLower(strings.TrimSpace(input.SizeRestriction))
	input.MapsURL = strings.TrimSpace(input.MapsURL)
	input.CoverPhotoURL = strings.TrimSpace(input.CoverPhotoURL)

	switch {
	case input.Title == "" || len(input.Title) > maxTitleLength:
		return fmt.Errorf("%w: title must be 1-%d characters", ErrInvalidEvent, maxTitleLength)
	case input.Description == "":
		return fmt.Errorf("%w: description is required", ErrInvalidEvent)
	case input.Address == "":
		return fmt.Errorf("%w: address is required", ErrInvalidEvent)
	case input.StartAt.IsZero():
		return fmt.Errorf("%w: start_at is required", ErrInvalidEvent)
	case input.Category != "" && !slices.Contains(models.ValidCategories, input.Category):
		return fmt.Errorf("%w: category must be one of %s", ErrInvalidEvent, strings.Join(models.ValidCategories, ", "))
	case input.SpeciesRestriction != "" && !slices.Contains(models.ValidSpecies, input.SpeciesRestriction):
		return fmt.Errorf("%w: species_restriction must be one of %s", ErrInvalidEvent, strings.Join(models.ValidSpecies, ", "))
	case input.SizeRestriction != "" && !slices.Contains(models.ValidSizes, input.SizeRestriction):
		return fmt.Errorf("%w: size_restriction must be one of %s", ErrInvalidEvent, strings.Join(models.ValidSizes, ", "))
	case input.Capacity != nil && *input.Capacity <= 0:
		return fmt.Errorf("%w: capacity must be positive", ErrInvalidEvent)
	case input.DurationMinutes != nil && *input.DurationMinutes <= 0:
		return fmt.Errorf("%w: duration_minutes must be positive", ErrInvalidEvent)
	case input.Price < 0:
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidEvent)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return nil
}
