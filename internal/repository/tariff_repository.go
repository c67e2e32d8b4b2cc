package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tariff-service/internal/models"
	"tariff-service/shared/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ITariffRepository interface {
	InsertGroupWithEntries(ctx context.Context, publishedAt models.Date, tariffs []models.TariffBase) (*models.TariffGroup, []models.TariffEntry, error)
	FindEntry(ctx context.Context, publishedAt models.Date, categoryType string) (*models.TariffEntry, error)
	FindEntryByID(ctx context.Context, id uuid.UUID) (*models.TariffEntry, error)
	UpdateEntry(ctx context.Context, entry *models.TariffEntry) (*models.TariffEntry, error)
	DeleteEntry(ctx context.Context, entry *models.TariffEntry) error
	Ping(ctx context.Context) error
}

type TariffRepository struct {
	db *sqlx.DB
}

func NewTariffRepository(db *sqlx.DB) ITariffRepository {
	return &TariffRepository{
		db: db,
	}
}

const (
	insertTariffGroupQuery = `
		INSERT INTO tariff_groups (id, published_at, created_at)
		VALUES (:id, :published_at, :created_at)`

	insertTariffEntryQuery = `
		INSERT INTO tariff_entries (id, group_id, category_type, rate, created_at)
		VALUES (:id, :group_id, :category_type, :rate, :created_at)`

	selectTariffEntryColumns = `
		SELECT e.id, e.group_id, e.category_type, e.rate, e.created_at, g.published_at
		FROM tariff_entries e
		JOIN tariff_groups g ON g.id = e.group_id`
)

// InsertGroupWithEntries writes one group and all of its entries in a single
// transaction. Nothing is persisted when any insert fails.
func (r *TariffRepository) InsertGroupWithEntries(ctx context.Context, publishedAt models.Date, tariffs []models.TariffBase) (*models.TariffGroup, []models.TariffEntry, error) {
	now := time.Now().UTC()
	group := models.TariffGroup{
		ID:          uuid.New(),
		PublishedAt: publishedAt,
		CreatedAt:   now,
	}

	entries := make([]models.TariffEntry, 0, len(tariffs))
	for _, t := range tariffs {
		entries = append(entries, models.TariffEntry{
			ID:           uuid.New(),
			GroupID:      group.ID,
			CategoryType: t.CategoryType,
			Rate:         t.Rate,
			CreatedAt:    now,
			PublishedAt:  publishedAt,
		})
	}

	err := utils.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, insertTariffGroupQuery, group); err != nil {
			return fmt.Errorf("failed to insert tariff group: %w", err)
		}
		for _, entry := range entries {
			if _, err := tx.NamedExecContext(ctx, insertTariffEntryQuery, entry); err != nil {
				return fmt.Errorf("failed to insert tariff entry %s: %w", entry.CategoryType, err)
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("Failed to create tariff group",
			"published_at", publishedAt.String(),
			"entries", len(entries),
			"error", err)
		return nil, nil, fmt.Errorf("%w: %w", models.ErrStorage, err)
	}

	slog.Info("Successfully created tariff group",
		"group_id", group.ID,
		"published_at", publishedAt.String(),
		"entries", len(entries))
	return &group, entries, nil
}

// FindEntry returns the first entry (by insertion order) matching the group
// date and category, or nil when there is none.
func (r *TariffRepository) FindEntry(ctx context.Context, publishedAt models.Date, categoryType string) (*models.TariffEntry, error) {
	query := selectTariffEntryColumns + `
		WHERE g.published_at = $1 AND e.category_type = $2
		ORDER BY e.seq
		LIMIT 1`

	entry, err := r.getOne(ctx, query, publishedAt, categoryType)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to find tariff for %s/%s: %w", models.ErrStorage, publishedAt, categoryType, err)
	}
	return entry, nil
}

func (r *TariffRepository) FindEntryByID(ctx context.Context, id uuid.UUID) (*models.TariffEntry, error) {
	query := selectTariffEntryColumns + `
		WHERE e.id = $1`

	entry, err := r.getOne(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tariff %s: %w", models.ErrStorage, id, err)
	}
	return entry, nil
}

func (r *TariffRepository) getOne(ctx context.Context, query string, args ...any) (*models.TariffEntry, error) {
	var (
		entry models.TariffEntry
		found bool
	)
	err := utils.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &entry, query, args...)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &entry, nil
}

// UpdateEntry persists the category and rate of an already loaded entry.
func (r *TariffRepository) UpdateEntry(ctx context.Context, entry *models.TariffEntry) (*models.TariffEntry, error) {
	query := `UPDATE tariff_entries SET category_type = $1, rate = $2 WHERE id = $3`

	err := utils.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return utils.ExecWithCheck(ctx, tx, query, utils.ExecUpdate, entry.CategoryType, entry.Rate, entry.ID)
	})
	if errors.Is(err, utils.ErrNoRowsAffected) {
		return nil, fmt.Errorf("%w: tariff %s no longer exists", models.ErrStorage, entry.ID)
	}
	if err != nil {
		slog.Error("Failed to update tariff", "tariff_id", entry.ID, "error", err)
		return nil, fmt.Errorf("%w: failed to update tariff %s: %w", models.ErrStorage, entry.ID, err)
	}

	slog.Info("Successfully updated tariff", "tariff_id", entry.ID)
	return entry, nil
}

func (r *TariffRepository) DeleteEntry(ctx context.Context, entry *models.TariffEntry) error {
	query := `DELETE FROM tariff_entries WHERE id = $1`

	err := utils.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return utils.ExecWithCheck(ctx, tx, query, utils.ExecDelete, entry.ID)
	})
	if errors.Is(err, utils.ErrNoRowsAffected) {
		return fmt.Errorf("%w: tariff %s no longer exists", models.ErrStorage, entry.ID)
	}
	if err != nil {
		slog.Error("Failed to delete tariff", "tariff_id", entry.ID, "error", err)
		return fmt.Errorf("%w: failed to delete tariff %s: %w", models.ErrStorage, entry.ID, err)
	}

	slog.Info("Successfully deleted tariff", "tariff_id", entry.ID)
	return nil
}

func (r *TariffRepository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.GetContext(ctx, &one, `SELECT 1`); err != nil {
		return fmt.Errorf("%w: database not ready: %w", models.ErrStorage, err)
	}
	return nil
}
