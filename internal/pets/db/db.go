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

func (d *DB) CreatePet(ctx context.Context, pet models.Pet) error {
	if _, err := d.Bun.NewInsert().Model(&pet).Exec(ctx); err != nil {
		return fmt.Errorf("create pet: %w", err)
	}
	return nil
}

func (d *DB) GetPet(ctx context.Context, id string) (*models.Pet, error) {
	var pet models.Pet
	err := d.Bun.NewSelect().
		Model(&pet).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pet %s: %w", id, err)
	}
	return &pet, nil
}

// ListPetsByOwner orders by creation time, oldest first unless newestFirst.
// Ties on created_at are broken by id so the order is stable.
func (d *DB) ListPetsByOwner(ctx context.Context, ownerID string, newestFirst bool) ([]models.Pet, error) {
	dir := "ASC"
	if newestFirst {
		dir = "DESC"
	}

	pets := []models.Pet{}
	err := d.Bun.NewSelect().
		Model(&pets).
		Where("owner_id = ?", ownerID).
		OrderExpr("created_at " + dir).
		OrderExpr("id " + dir).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pets for owner %s: %w", ownerID, err)
	}
	return pets, nil
}

// DeletePet removes a pet that has no enrollment in an upcoming event.
// Its past enrollments are removed and the affected events' counters
// decremented in the same transaction.
func (d *DB) DeletePet(ctx context.Context, petID string, now time.Time) error {
	now = utils.NormalizeTime(now)

	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		upcoming, err := tx.NewSelect().
			Model((*models.Enrollment)(nil)).
			Join("JOIN events AS ev ON ev.id = enrollment.event_id").
			Where("enrollment.pet_id = ?", petID).
			Where("ev.start_at >= ?", now).
			Count(ctx)
		if err != nil {
			return fmt.Errorf("count upcoming enrollments: %w", err)
		}
		if upcoming > 0 {
			return models.ErrPetHasActiveEnrollments
		}

		var eventIDs []string
		err = tx.NewSelect().
			Column("event_id").
			Table("event_pet_enrollments").
			Where("pet_id = ?", petID).
			Scan(ctx, &eventIDs)
		if err != nil {
			return fmt.Errorf("list past enrollments: %w", err)
		}

		if len(eventIDs) > 0 {
			if _, err := tx.NewDelete().
				Model((*models.Enrollment)(nil)).
				Where("pet_id = ?", petID).
				Exec(ctx); err != nil {
				return fmt.Errorf("delete enrollments: %w", err)
			}

			if _, err := tx.NewUpdate().
				Model((*models.Event)(nil)).
				Set("enrolled_count = enrolled_count - 1").
				Where("id IN (?)", bun.In(eventIDs)).
				Where("enrolled_count > 0").
				Exec(ctx); err != nil {
				return fmt.Errorf("decrement enrolled counts: %w", err)
			}
		}

		res, err := tx.NewDelete().
			Model((*models.Pet)(nil)).
			Where("id = ?", petID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete pet %s: %w", petID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return models.ErrNotFound
		}
		return nil
	})
}
