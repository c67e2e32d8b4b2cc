package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tariff-service/internal/models"
	"tariff-service/shared/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type IRateRepository interface {
	InsertRateDateWithRates(ctx context.Context, effectiveDate models.Date, rates []models.RateBase) (*models.RateDate, []models.Rate, error)
}

type RateRepository struct {
	db *sqlx.DB
}

func NewRateRepository(db *sqlx.DB) IRateRepository {
	return &RateRepository{db: db}
}

func (r *RateRepository) InsertRateDateWithRates(ctx context.Context, effectiveDate models.Date, rates []models.RateBase) (*models.RateDate, []models.Rate, error) {
	now := time.Now().UTC()
	rateDate := models.RateDate{
		ID:            uuid.New(),
		EffectiveDate: effectiveDate,
		CreatedAt:     now,
	}

	rows := make([]models.Rate, 0, len(rates))
	for _, rb := range rates {
		rows = append(rows, models.Rate{
			ID:           uuid.New(),
			RateDateID:   rateDate.ID,
			CategoryType: rb.CategoryType,
			Rate:         rb.Rate,
			CreatedAt:    now,
		})
	}

	err := utils.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO rate_dates (id, effective_date, created_at)
			VALUES (:id, :effective_date, :created_at)`, rateDate); err != nil {
			return fmt.Errorf("failed to insert rate date: %w", err)
		}
		for _, row := range rows {
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO rates (id, rate_date_id, category_type, rate, created_at)
				VALUES (:id, :rate_date_id, :category_type, :rate, :created_at)`, row); err != nil {
				return fmt.Errorf("failed to insert rate %s: %w", row.CategoryType, err)
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("Failed to create rates",
			"effective_date", effectiveDate.String(),
			"error", err)
		return nil, nil, fmt.Errorf("%w: %w", models.ErrStorage, err)
	}

	slog.Info("Successfully created rates",
		"rate_date_id", rateDate.ID,
		"effective_date", effectiveDate.String(),
		"count", len(rows))
	return &rateDate, rows, nil
}
