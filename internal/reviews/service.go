package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-petevents/internal/auth"
	"ms-petevents/internal/events"
	"ms-petevents/internal/logger"
	"ms-petevents/internal/models"
	"ms-petevents/internal/owners"
	"ms-petevents/internal/utils"
)

var (
	ErrUnauthenticated  = errors.New("authentication required")
	ErrInvalidReview    = errors.New("invalid review")
	ErrEventNotFound    = errors.New("event not found")
	ErrCommentsDisabled = errors.New("the organizer disabled reviews for this event")
	ErrEventNotStarted  = errors.New("reviews open once the event has started")
)

const maxCommentLength = 1000

type DBLayer interface {
	CreateReview(ctx context.Context, review models.Review) error
	ListReviews(ctx context.Context, eventID string) ([]models.Review, error)
	Summary(ctx context.Context, eventID string) (models.ReviewSummary, error)
}

type EventGetter interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

type ProfileEnsurer interface {
	GetOrCreateProfile(ctx context.Context, actorID string, claims models.Claims) (*models.Owner, error)
}

type KafkaPublisher interface {
	PublishReviewCreated(ctx context.Context, msg models.ReviewCreatedMessage) error
}

type ReviewService struct {
	DB     DBLayer
	Events EventGetter
	Owners ProfileEnsurer
	Kafka  KafkaPublisher
	Logger *logger.Logger
	Now    func() time.Time
}

func NewReviewService(db DBLayer, eventDB EventGetter, profiles ProfileEnsurer, kafka KafkaPublisher, log *logger.Logger) *ReviewService {
	return &ReviewService{
		DB:     db,
		Events: eventDB,
		Owners: profiles,
		Kafka:  kafka,
		Logger: log,
		Now:    time.Now,
	}
}

// CreateReview records a rating and comment on an event that has started
// and still accepts comments.
func (s *ReviewService) CreateReview(ctx context.Context, actorID, eventID string, input models.ReviewInput) (*models.Review, error) {
	if actorID == "" {
		return nil, ErrUnauthenticated
	}
	event, err := s.event(ctx, eventID)
	if err != nil {
		return nil, err
	}

	now := utils.NormalizeTime(s.Now())
	if !event.AllowComments {
		return nil, ErrCommentsDisabled
	}
	if events.IsUpcoming(*event, now) {
		return nil, ErrEventNotStarted
	}

	comment := strings.TrimSpace(input.Comment)
	switch {
	case input.Rating < models.MinRating || input.Rating > models.MaxRating:
		return nil, fmt.Errorf("%w: rating must be between %d and %d", ErrInvalidReview, models.MinRating, models.MaxRating)
	case comment == "":
		return nil, fmt.Errorf("%w: comment is required", ErrInvalidReview)
	case len(comment) > maxCommentLength:
		return nil, fmt.Errorf("%w: comment exceeds %d characters", ErrInvalidReview, maxCommentLength)
	}

	claims := auth.ClaimsFromContext(ctx)
	if claims.Subject != actorID {
		claims = models.Claims{Subject: actorID}
	}
	owner, err := s.Owners.GetOrCreateProfile(ctx, actorID, claims)
	if err != nil {
		return nil, err
	}

	review := models.Review{
		ID:         uuid.New().String(),
		EventID:    event.ID,
		AuthorID:   actorID,
		AuthorName: owners.AuthorName(owner),
		Rating:     input.Rating,
		Comment:    comment,
		CreatedAt:  now,
	}
	if err := s.DB.CreateReview(ctx, review); err != nil {
		return nil, err
	}
	s.Logger.Info("REVIEWS", fmt.Sprintf("Review %s (%d stars) on event %s by %s", review.ID, review.Rating, event.ID, actorID))

	msg := models.ReviewCreatedMessage{ReviewID: review.ID, EventID: event.ID, AuthorID: actorID, Rating: review.Rating, At: now}
	if err := s.Kafka.PublishReviewCreated(ctx, msg); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish review %s: %v", review.ID, err))
	}
	return &review, nil
}

func (s *ReviewService) ListReviews(ctx context.Context, eventID string) ([]models.Review, error) {
	if _, err := s.event(ctx, eventID); err != nil {
		return nil, err
	}
	return s.DB.ListReviews(ctx, eventID)
}

func (s *ReviewService) Summary(ctx context.Context, eventID string) (models.ReviewSummary, error) {
	if _, err := s.event(ctx, eventID); err != nil {
		return models.ReviewSummary{}, err
	}
	return s.DB.Summary(ctx, eventID)
}

func (s *ReviewService) event(ctx context.Context, eventID string) (*models.Event, error) {
	if _, err := uuid.Parse(eventID); err != nil {
		return nil, ErrEventNotFound
	}
	event, err := s.Events.GetEvent(ctx, eventID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrEventNotFound
	}
	return event, err
}
