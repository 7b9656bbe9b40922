package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-petevents/internal/models"
	"ms-petevents/internal/utils"
)

type DB struct {
	Bun *bun.DB
}

// EventQuery filters the events table. Upcoming selects start_at >= Now
// ordered ascending; otherwise start_at < Now ordered descending.
type EventQuery struct {
	OrganizerID        string
	ExcludeOrganizerID string
	VisibleOnly        bool
	Upcoming           bool
	Now                time.Time
	Limit              int
}

func (d *DB) CreateEvent(ctx context.Context, event models.Event) error {
	event.StartAt = utils.NormalizeTime(event.StartAt)
	if _, err := d.Bun.NewInsert().Model(&event).Exec(ctx); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return &event, nil
}

// UpdateEvent writes the editable fields. enrolled_count, status and
// organizer are never touched here.
func (d *DB) UpdateEvent(ctx context.Context, event models.Event) error {
	event.StartAt = utils.NormalizeTime(event.StartAt)
	res, err := d.Bun.NewUpdate().
		Model(&event).
		Column("title", "description", "category", "start_at", "duration_minutes", "address",
			"maps_url", "capacity", "price", "species_restriction", "size_restriction",
			"cover_photo_url", "allow_comments", "visible").
		Where("id = ?", event.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update event %s: %w", event.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteEvent removes the event together with its enrollments and reviews.
func (d *DB) DeleteEvent(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.Enrollment)(nil)).
			Where("event_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete enrollments of event %s: %w", id, err)
		}
		if _, err := tx.NewDelete().
			Model((*models.Review)(nil)).
			Where("event_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete reviews of event %s: %w", id, err)
		}

		res, err := tx.NewDelete().
			Model((*models.Event)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete event %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return models.ErrNotFound
		}
		return nil
	})
}

func (d *DB) ListEvents(ctx context.Context, q EventQuery) ([]models.Event, error) {
	now := utils.NormalizeTime(q.Now)

	events := []models.Event{}
	query := d.Bun.NewSelect().Model(&events)

	if q.VisibleOnly {
		query = query.Where("visible = ?", true)
	}
	if q.OrganizerID != "" {
		query = query.Where("organizer_id = ?", q.OrganizerID)
	}
	if q.ExcludeOrganizerID != "" {
		query = query.Where("organizer_id != ?", q.ExcludeOrganizerID)
	}
	if q.Upcoming {
		query = query.Where("start_at >= ?", now).OrderExpr("start_at ASC")
	} else {
		query = query.Where("start_at < ?", now).OrderExpr("start_at DESC")
	}
	query = query.OrderExpr("id ASC")
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// ListEnrolledEvents returns the visible events the owner's pets are enrolled in.
func (d *DB) ListEnrolledEvents(ctx context.Context, ownerID string) ([]models.Event, error) {
	events := []models.Event{}
	err := d.Bun.NewSelect().
		Model(&events).
		Where("visible = ?", true).
		Where("id IN (?)", d.Bun.NewSelect().
			Table("event_pet_enrollments").
			Column("event_id").
			Where("owner_id = ?", ownerID)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enrolled events for %s: %w", ownerID, err)
	}
	return events, nil
}
