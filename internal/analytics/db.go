package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-petevents/internal/models"
)

// DB runs the read-only aggregate queries behind the organizer dashboards.
type DB struct {
	bun *bun.DB
}

func NewDB(db *bun.DB) *DB {
	return &DB{bun: db}
}

func (db *DB) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	var event models.Event
	err := db.bun.NewSelect().
		Model(&event).
		Where("id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", eventID, err)
	}
	return &event, nil
}

// EnrollmentTimes returns the creation time of every enrollment of the event, oldest first.
func (db *DB) EnrollmentTimes(ctx context.Context, eventID string) ([]time.Time, error) {
	var rows []models.Enrollment
	err := db.bun.NewSelect().
		Model(&rows).
		Column("created_at").
		Where("event_id = ?", eventID).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("enrollment times for event %s: %w", eventID, err)
	}

	times := make([]time.Time, 0, len(rows))
	for _, r := range rows {
		times = append(times, r.CreatedAt)
	}
	return times, nil
}

func (db *DB) EnrollmentsBySpecies(ctx context.Context, eventID string) ([]SpeciesBreakdown, error) {
	out := []SpeciesBreakdown{}
	err := db.bun.NewSelect().
		TableExpr("event_pet_enrollments AS e").
		Join("JOIN pets AS p ON p.id = e.pet_id").
		ColumnExpr("p.species AS species").
		ColumnExpr("COUNT(*) AS enrollments").
		Where("e.event_id = ?", eventID).
		GroupExpr("p.species").
		OrderExpr("enrollments DESC, species ASC").
		Scan(ctx, &out)
	if err != nil {
		return nil, fmt.Errorf("species breakdown for event %s: %w", eventID, err)
	}
	return out, nil
}

func (db *DB) ReviewStats(ctx context.Context, eventID string) (count int, average float64, err error) {
	err = db.bun.NewSelect().
		Model((*models.Review)(nil)).
		ColumnExpr("COUNT(*)").
		ColumnExpr("COALESCE(AVG(rating * 1.0), 0.0)").
		Where("event_id = ?", eventID).
		Scan(ctx, &count, &average)
	if err != nil {
		return 0, 0, fmt.Errorf("review stats for event %s: %w", eventID, err)
	}
	return count, average, nil
}

// OrganizerEvents returns every event the owner organizes, latest start first.
func (db *DB) OrganizerEvents(ctx context.Context, organizerID string) ([]models.Event, error) {
	events := []models.Event{}
	err := db.bun.NewSelect().
		Model(&events).
		Where("organizer_id = ?", organizerID).
		OrderExpr("start_at DESC").
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("events of organizer %s: %w", organizerID, err)
	}
	return events, nil
}

func (db *DB) OrganizerReviewStats(ctx context.Context, organizerID string) (count int, average float64, err error) {
	err = db.bun.NewSelect().
		TableExpr("reviews AS r").
		Join("JOIN events AS ev ON ev.id = r.event_id").
		ColumnExpr("COUNT(*)").
		ColumnExpr("COALESCE(AVG(r.rating * 1.0), 0.0)").
		Where("ev.organizer_id = ?", organizerID).
		Scan(ctx, &count, &average)
	if err != nil {
		return 0, 0, fmt.Errorf("review stats for organizer %s: %w", organizerID, err)
	}
	return count, average, nil
}
