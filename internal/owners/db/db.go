package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-petevents/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetOwner(ctx context.Context, id string) (*models.Owner, error) {
	var owner models.Owner
	err := d.Bun.NewSelect().
		Model(&owner).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get owner %s: %w", id, err)
	}
	return &owner, nil
}

// CreateOwner inserts owner unless a row with the same id already exists.
func (d *DB) CreateOwner(ctx context.Context, owner models.Owner) error {
	_, err := d.Bun.NewInsert().
		Model(&owner).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create owner %s: %w", owner.ID, err)
	}
	return nil
}

func (d *DB) UpdateOwner(ctx context.Context, owner models.Owner) error {
	res, err := d.Bun.NewUpdate().
		Model(&owner).
		Column("display_name", "photo_url", "updated_at").
		Where("id = ?", owner.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update owner %s: %w", owner.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}
