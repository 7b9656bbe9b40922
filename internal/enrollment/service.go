package enrollment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-petevents/internal/events"
	"ms-petevents/internal/logger"
	"ms-petevents/internal/models"
	"ms-petevents/internal/utils"
)

// Status is the outcome of an enrollment attempt.
type Status string

const (
	StatusEnrolled        Status = "enrolled"
	StatusAlreadyEnrolled Status = "already_enrolled"
	StatusNoPetRegistered Status = "no_pet_registered"
	StatusUnauthenticated Status = "unauthenticated"
	StatusEventNotFound   Status = "event_not_found"
	StatusPetNotFound     Status = "pet_not_found"
	StatusEventClosed     Status = "event_closed"
	StatusEventFull       Status = "event_full"
	StatusPetIneligible   Status = "pet_ineligible"
	StatusFailed          Status = "enrollment_failed"
)

var (
	ErrUnauthenticated      = errors.New("authentication required")
	ErrNoPetRegistered      = errors.New("register a pet before enrolling")
	ErrPetNotFound          = errors.New("pet not found among your pets")
	ErrEventNotFound        = errors.New("event not found")
	ErrEventClosed          = errors.New("event has already started")
	ErrEventFull            = errors.New("event is full")
	ErrPetIneligible        = errors.New("pet does not meet the event restrictions")
	ErrEnrollmentInProgress = errors.New("an enrollment for this pet is already in progress")

	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrNotEnrollmentOwner = errors.New("enrollment belongs to another owner")
	ErrNotOrganizer       = errors.New("only the organizer can do this")
	ErrInvalidPass        = errors.New("invalid enrollment pass")
)

// EnrollError carries the failed outcome of Enroll and its cause.
type EnrollError struct {
	Status Status
	Err    error
}

func (e *EnrollError) Error() string {
	return fmt.Sprintf("%s: %v", e.Status, e.Err)
}

func (e *EnrollError) Unwrap() error {
	return e.Err
}

func fail(status Status, err error) *EnrollError {
	return &EnrollError{Status: status, Err: err}
}

// StatusOf returns the outcome carried by an Enroll error. Errors that are
// not an *EnrollError are storage failures.
func StatusOf(err error) Status {
	var enrollErr *EnrollError
	if errors.As(err, &enrollErr) {
		return enrollErr.Status
	}
	return StatusFailed
}

// Result is a successful outcome: Enrolled or AlreadyEnrolled.
type Result struct {
	Status     Status             `json:"status"`
	Enrollment *models.Enrollment `json:"enrollment,omitempty"`
	Event      *models.Event      `json:"event"`
	Pet        *models.Pet        `json:"pet"`
}

// Reconciliation reports a recount of an event's enrollments.
type Reconciliation struct {
	EventID  string `json:"event_id"`
	Stored   int    `json:"stored"`
	Actual   int    `json:"actual"`
	Repaired bool   `json:"repaired"`
}

// PassPayload is sealed into the QR code of an enrollment pass.
type PassPayload struct {
	EnrollmentID string    `json:"enrollment_id"`
	EventID      string    `json:"event_id"`
	PetID        string    `json:"pet_id"`
	IssuedAt     time.Time `json:"issued_at"`
}

type DBLayer interface {
	EnrollmentExists(ctx context.Context, eventID, petID string) (bool, error)
	CreateEnrollment(ctx context.Context, enrollment models.Enrollment) (int, error)
	GetEnrollment(ctx context.Context, id string) (*models.Enrollment, error)
	ListEnrollmentsByEvent(ctx context.Context, eventID string) ([]models.Enrollment, error)
	ReconcileCount(ctx context.Context, eventID string) (stored, actual int, err error)
}

type PetLister interface {
	ListPetsByOwner(ctx context.Context, ownerID string, newestFirst bool) ([]models.Pet, error)
}

type EventGetter interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

type PairLocker interface {
	LockPair(ctx context.Context, eventID, petID, token string) (bool, error)
	UnlockPair(ctx context.Context, eventID, petID, token string) error
}

type KafkaPublisher interface {
	PublishEnrollmentCreated(ctx context.Context, msg models.EnrollmentCreatedMessage) error
}

type PassSealer interface {
	GenerateEncryptedQR(payload interface{}) ([]byte, string, error)
	Open(token string, out interface{}) error
}

type CountNotifier interface {
	Emit(update models.EnrollmentCount)
}

type Recorder interface {
	ObserveEnrollment(status string, seconds float64)
	ObserveDrift()
}

type EnrollmentService struct {
	DB     DBLayer
	Pets   PetLister
	Events EventGetter
	Lock   PairLocker
	Kafka  KafkaPublisher
	Passes PassSealer
	Logger *logger.Logger
	Now    func() time.Time

	// Counts and Metrics are optional.
	Counts  CountNotifier
	Metrics Recorder
}

func NewEnrollmentService(db DBLayer, pets PetLister, eventDB EventGetter, lock PairLocker, kafka KafkaPublisher, passes PassSealer, log *logger.Logger) *EnrollmentService {
	return &EnrollmentService{
		DB:     db,
		Pets:   pets,
		Events: eventDB,
		Lock:   lock,
		Kafka:  kafka,
		Passes: passes,
		Logger: log,
		Now:    time.Now,
	}
}

// Enroll attaches one of the actor's pets to an event. Enrolled and
// AlreadyEnrolled come back as a Result; every other outcome is an
// *EnrollError. The counter only moves when a new row is written.
func (s *EnrollmentService) Enroll(ctx context.Context, actorID string, req models.EnrollRequest) (result *Result, err error) {
	start := time.Now()
	defer func() {
		status := StatusOf(err)
		if err == nil {
			status = result.Status
		}
		if s.Metrics != nil {
			s.Metrics.ObserveEnrollment(string(status), time.Since(start).Seconds())
		}
	}()

	if actorID == "" {
		return nil, fail(StatusUnauthenticated, ErrUnauthenticated)
	}

	pet, err := s.selectPet(ctx, actorID, req.PetID)
	if err != nil {
		return nil, err
	}

	if _, parseErr := uuid.Parse(req.EventID); parseErr != nil {
		return nil, fail(StatusEventNotFound, ErrEventNotFound)
	}
	event, err := s.Events.GetEvent(ctx, req.EventID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fail(StatusEventNotFound, ErrEventNotFound)
	}
	if err != nil {
		return nil, fail(StatusFailed, err)
	}

	now := utils.NormalizeTime(s.Now())
	if rejected := admission(event, pet, now); rejected != nil {
		// A pair enrolled before the event started or its restrictions
		// changed stays AlreadyEnrolled.
		exists, err := s.DB.EnrollmentExists(ctx, event.ID, pet.ID)
		if err != nil {
			return nil, fail(StatusFailed, err)
		}
		if exists {
			s.Logger.LogEnrollment("DUPLICATE", event.ID, pet.ID, "already enrolled")
			return &Result{Status: StatusAlreadyEnrolled, Event: event, Pet: pet}, nil
		}
		return nil, rejected
	}

	token := uuid.New().String()
	locked, err := s.Lock.LockPair(ctx, event.ID, pet.ID, token)
	if err != nil {
		return nil, fail(StatusFailed, err)
	}
	if !locked {
		return nil, fail(StatusFailed, ErrEnrollmentInProgress)
	}
	defer func() {
		if err := s.Lock.UnlockPair(context.WithoutCancel(ctx), event.ID, pet.ID, token); err != nil {
			s.Logger.Warn("REDIS", fmt.Sprintf("Failed to release pair lock %s/%s: %v", event.ID, pet.ID, err))
		}
	}()

	exists, err := s.DB.EnrollmentExists(ctx, event.ID, pet.ID)
	if err != nil {
		return nil, fail(StatusFailed, err)
	}
	if exists {
		s.Logger.LogEnrollment("DUPLICATE", event.ID, pet.ID, "already enrolled")
		return &Result{Status: StatusAlreadyEnrolled, Event: event, Pet: pet}, nil
	}

	enrollment := models.Enrollment{
		ID:        uuid.New().String(),
		EventID:   event.ID,
		PetID:     pet.ID,
		OwnerID:   actorID,
		CreatedAt: now,
	}
	count, err := s.DB.CreateEnrollment(ctx, enrollment)
	switch {
	case errors.Is(err, models.ErrDuplicateEnrollment):
		s.Logger.LogEnrollment("DUPLICATE", event.ID, pet.ID, "insert conflicted")
		return &Result{Status: StatusAlreadyEnrolled, Event: event, Pet: pet}, nil
	case errors.Is(err, models.ErrEventFull):
		return nil, fail(StatusEventFull, ErrEventFull)
	case errors.Is(err, models.ErrNotFound):
		return nil, fail(StatusEventNotFound, ErrEventNotFound)
	case err != nil:
		s.Logger.Error("ENROLL", fmt.Sprintf("Enrollment of pet %s in event %s failed: %v", pet.ID, event.ID, err))
		return nil, fail(StatusFailed, err)
	}

	event.EnrolledCount = count
	s.afterEnroll(ctx, enrollment, count)
	return &Result{Status: StatusEnrolled, Enrollment: &enrollment, Event: event, Pet: pet}, nil
}

func (s *EnrollmentService) afterEnroll(ctx context.Context, enrollment models.Enrollment, count int) {
	s.Logger.LogEnrollment("ENROLLED", enrollment.EventID, enrollment.PetID, fmt.Sprintf("owner=%s count=%d", enrollment.OwnerID, count))

	msg := models.EnrollmentCreatedMessage{
		EnrollmentID:  enrollment.ID,
		EventID:       enrollment.EventID,
		PetID:         enrollment.PetID,
		OwnerID:       enrollment.OwnerID,
		EnrolledCount: count,
		CreatedAt:     enrollment.CreatedAt,
	}
	if err := s.Kafka.PublishEnrollmentCreated(ctx, msg); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish enrollment %s: %v", enrollment.ID, err))
	}

	if s.Counts != nil {
		s.Counts.Emit(models.EnrollmentCount{EventID: enrollment.EventID, EnrolledCount: count})
	}
}

// admission reports why the pet may not join the event now, or nil.
func admission(event *models.Event, pet *models.Pet, now time.Time) error {
	if !events.IsUpcoming(*event, now) {
		return fail(StatusEventClosed, ErrEventClosed)
	}
	if err := checkEligibility(event, pet); err != nil {
		return fail(StatusPetIneligible, err)
	}
	return nil
}

// selectPet picks the requested pet, or the actor's oldest pet when none is named.
func (s *EnrollmentService) selectPet(ctx context.Context, actorID, petID string) (*models.Pet, error) {
	pets, err := s.Pets.ListPetsByOwner(ctx, actorID, false)
	if err != nil {
		return nil, fail(StatusFailed, err)
	}
	if len(pets) == 0 {
		return nil, fail(StatusNoPetRegistered, ErrNoPetRegistered)
	}
	if petID == "" {
		return &pets[0], nil
	}
	for i := range pets {
		if pets[i].ID == petID {
			return &pets[i], nil
		}
	}
	return nil, fail(StatusPetNotFound, ErrPetNotFound)
}

func checkEligibility(event *models.Event, pet *models.Pet) error {
	if event.SpeciesRestriction != "" && !strings.EqualFold(event.SpeciesRestriction, pet.Species) {
		return fmt.Errorf("%w: event is for %s only", ErrPetIneligible, event.SpeciesRestriction)
	}
	if event.SizeRestriction != "" && !strings.EqualFold(event.SizeRestriction, pet.Size) {
		return fmt.Errorf("%w: event is for %s pets only", ErrPetIneligible, event.SizeRestriction)
	}
	return nil
}

// ReconcileCount recomputes the event's enrolled_count from its enrollment
// rows. Subscribers are told about a repaired count.
func (s *EnrollmentService) ReconcileCount(ctx context.Context, eventID string) (stored, actual int, err error) {
	stored, actual, err = s.DB.ReconcileCount(ctx, eventID)
	if errors.Is(err, models.ErrNotFound) {
		return 0, 0, ErrEventNotFound
	}
	if err != nil {
		return 0, 0, err
	}

	if stored != actual {
		s.Logger.Warn("ENROLL", fmt.Sprintf("Event %s enrolled_count drifted: stored=%d actual=%d, repaired", eventID, stored, actual))
		if s.Metrics != nil {
			s.Metrics.ObserveDrift()
		}
		if s.Counts != nil {
			s.Counts.Emit(models.EnrollmentCount{EventID: eventID, EnrolledCount: actual})
		}
	}
	return stored, actual, nil
}

// Reconcile is ReconcileCount restricted to the event's organizer.
func (s *EnrollmentService) Reconcile(ctx context.Context, actorID, eventID string) (*Reconciliation, error) {
	if _, err := s.organizedEvent(ctx, actorID, eventID); err != nil {
		return nil, err
	}
	stored, actual, err := s.ReconcileCount(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &Reconciliation{EventID: eventID, Stored: stored, Actual: actual, Repaired: stored != actual}, nil
}

// HandleEnrollmentCreated reconciles the event named by a consumed
// enrollment message. Events deleted since are skipped.
func (s *EnrollmentService) HandleEnrollmentCreated(ctx context.Context, msg models.EnrollmentCreatedMessage) error {
	_, _, err := s.ReconcileCount(ctx, msg.EventID)
	if errors.Is(err, ErrEventNotFound) {
		return nil
	}
	return err
}

// Roster lists the enrollments of an event for its organizer, oldest first.
func (s *EnrollmentService) Roster(ctx context.Context, actorID, eventID string) ([]models.Enrollment, error) {
	if _, err := s.organizedEvent(ctx, actorID, eventID); err != nil {
		return nil, err
	}
	return s.DB.ListEnrollmentsByEvent(ctx, eventID)
}

// Pass renders the enrollment's check-in QR code for the enrolling owner.
func (s *EnrollmentService) Pass(ctx context.Context, actorID, enrollmentID string) ([]byte, error) {
	if actorID == "" {
		return nil, ErrUnauthenticated
	}
	if _, err := uuid.Parse(enrollmentID); err != nil {
		return nil, ErrEnrollmentNotFound
	}
	enrollment, err := s.DB.GetEnrollment(ctx, enrollmentID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, err
	}
	if enrollment.OwnerID != actorID {
		return nil, ErrNotEnrollmentOwner
	}

	png, _, err := s.Passes.GenerateEncryptedQR(PassPayload{
		EnrollmentID: enrollment.ID,
		EventID:      enrollment.EventID,
		PetID:        enrollment.PetID,
		IssuedAt:     utils.NormalizeTime(s.Now()),
	})
	if err != nil {
		return nil, fmt.Errorf("generate pass %s: %w", enrollmentID, err)
	}
	return png, nil
}

// VerifyPass lets the organizer check a scanned pass token against the event.
func (s *EnrollmentService) VerifyPass(ctx context.Context, actorID, eventID, token string) (*models.Enrollment, error) {
	if _, err := s.organizedEvent(ctx, actorID, eventID); err != nil {
		return nil, err
	}

	enrollment, err := s.openPass(ctx, eventID, token)
	if errors.Is(err, ErrInvalidPass) {
		s.Logger.LogSecurity("PASS_REJECTED", actorID, fmt.Sprintf("event=%s: %v", eventID, err))
	}
	return enrollment, err
}

func (s *EnrollmentService) openPass(ctx context.Context, eventID, token string) (*models.Enrollment, error) {
	var payload PassPayload
	if err := s.Passes.Open(token, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPass, err)
	}
	if payload.EventID != eventID {
		return nil, fmt.Errorf("%w: pass is for another event", ErrInvalidPass)
	}

	enrollment, err := s.DB.GetEnrollment(ctx, payload.EnrollmentID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: enrollment no longer exists", ErrInvalidPass)
	}
	if err != nil {
		return nil, err
	}
	if enrollment.EventID != eventID || enrollment.PetID != payload.PetID {
		return nil, fmt.Errorf("%w: pass does not match enrollment", ErrInvalidPass)
	}
	return enrollment, nil
}

func (s *EnrollmentService) organizedEvent(ctx context.Context, actorID, eventID string) (*models.Event, error) {
	if actorID == "" {
		return nil, ErrUnauthenticated
	}
	if _, err := uuid.Parse(eventID); err != nil {
		return nil, ErrEventNotFound
	}
	event, err := s.Events.GetEvent(ctx, eventID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != actorID {
		return nil, ErrNotOrganizer
	}
	return event, nil
}

// CurrentCount reads the stored enrolled_count of a visible event.
func (s *EnrollmentService) CurrentCount(ctx context.Context, eventID string) (models.EnrollmentCount, error) {
	if _, err := uuid.Parse(eventID); err != nil {
		return models.EnrollmentCount{}, ErrEventNotFound
	}
	event, err := s.Events.GetEvent(ctx, eventID)
	if errors.Is(err, models.ErrNotFound) || (err == nil && !event.Visible) {
		return models.EnrollmentCount{}, ErrEventNotFound
	}
	if err != nil {
		return models.EnrollmentCount{}, err
	}
	return models.EnrollmentCount{EventID: event.ID, EnrolledCount: event.EnrolledCount}, nil
}
