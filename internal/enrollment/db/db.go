package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-petevents/internal/models"
	"ms-petevents/internal/utils"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) EnrollmentExists(ctx context.Context, eventID, petID string) (bool, error) {
	exists, err := d.Bun.NewSelect().
		Model((*models.Enrollment)(nil)).
		Where("event_id = ?", eventID).
		Where("pet_id = ?", petID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check enrollment %s/%s: %w", eventID, petID, err)
	}
	return exists, nil
}

// CreateEnrollment inserts the row and bumps the event's enrolled_count in
// one transaction and returns the new count. A row already present for the
// pair yields models.ErrDuplicateEnrollment; a capped event with no room
// left yields models.ErrEventFull. Either way nothing is written.
func (d *DB) CreateEnrollment(ctx context.Context, enrollment models.Enrollment) (int, error) {
	enrollment.CreatedAt = utils.NormalizeTime(enrollment.CreatedAt)

	var count int
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewInsert().
			Model(&enrollment).
			On("CONFLICT (event_id, pet_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert enrollment: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return models.ErrDuplicateEnrollment
		}

		res, err = tx.NewUpdate().
			Model((*models.Event)(nil)).
			Set("enrolled_count = enrolled_count + 1").
			Where("id = ?", enrollment.EventID).
			Where("capacity IS NULL OR enrolled_count < capacity").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("increment enrolled_count: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			exists, err := tx.NewSelect().Model((*models.Event)(nil)).Where("id = ?", enrollment.EventID).Exists(ctx)
			if err != nil {
				return err
			}
			if !exists {
				return models.ErrNotFound
			}
			return models.ErrEventFull
		}

		return tx.NewSelect().
			Table("events").
			Column("enrolled_count").
			Where("id = ?", enrollment.EventID).
			Scan(ctx, &count)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (d *DB) GetEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := d.Bun.NewSelect().
		Model(&enrollment).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get enrollment %s: %w", id, err)
	}
	return &enrollment, nil
}

func (d *DB) ListEnrollmentsByEvent(ctx context.Context, eventID string) ([]models.Enrollment, error) {
	list := []models.Enrollment{}
	err := d.Bun.NewSelect().
		Model(&list).
		Relation("Pet").
		Where("enrollment.event_id = ?", eventID).
		Order("enrollment.created_at ASC", "enrollment.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enrollments for event %s: %w", eventID, err)
	}
	return list, nil
}

// ReconcileCount recomputes enrolled_count from the enrollment rows and
// stores it when it differs. It returns the previously stored value and the
// row count.
func (d *DB) ReconcileCount(ctx context.Context, eventID string) (stored, actual int, err error) {
	err = d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Table("events").
			Column("enrolled_count").
			Where("id = ?", eventID).
			Scan(ctx, &stored)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read enrolled_count: %w", err)
		}

		actual, err = tx.NewSelect().
			Model((*models.Enrollment)(nil)).
			Where("event_id = ?", eventID).
			Count(ctx)
		if err != nil {
			return fmt.Errorf("count enrollments: %w", err)
		}

		if stored == actual {
			return nil
		}
		_, err = tx.NewUpdate().
			Model((*models.Event)(nil)).
			Set("enrolled_count = ?", actual).
			Where("id = ?", eventID).
			Exec(ctx)
		return err
	})
	return stored, actual, err
}
