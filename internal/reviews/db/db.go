package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-petevents/internal/models"
	"ms-petevents/internal/utils"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateReview(ctx context.Context, review models.Review) error {
	review.CreatedAt = utils.NormalizeTime(review.CreatedAt)
	if _, err := d.Bun.NewInsert().Model(&review).Exec(ctx); err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// ListReviews returns the event's reviews newest first.
func (d *DB) ListReviews(ctx context.Context, eventID string) ([]models.Review, error) {
	reviews := []models.Review{}
	err := d.Bun.NewSelect().
		Model(&reviews).
		Where("event_id = ?", eventID).
		OrderExpr("created_at DESC").
		OrderExpr("id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reviews for event %s: %w", eventID, err)
	}
	return reviews, nil
}

func (d *DB) Summary(ctx context.Context, eventID string) (models.ReviewSummary, error) {
	summary := models.ReviewSummary{EventID: eventID}
	err := d.Bun.NewSelect().
		Model((*models.Review)(nil)).
		ColumnExpr("COUNT(*)").
		ColumnExpr("COALESCE(AVG(rating * 1.0), 0.0)").
		Where("event_id = ?", eventID).
		Scan(ctx, &summary.Count, &summary.AverageRating)
	if err != nil {
		return summary, fmt.Errorf("summarize reviews for event %s: %w", eventID, err)
	}
	return summary, nil
}
