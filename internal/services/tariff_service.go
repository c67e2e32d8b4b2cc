package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tariff-service/internal/event"
	"tariff-service/internal/models"
	"tariff-service/internal/repository"
	"tariff-service/shared/utils"

	"github.com/google/uuid"
)

// TariffCache is a read-through cache for (published_at, category) lookups.
type TariffCache interface {
	GetEntry(ctx context.Context, publishedAt models.Date, category string) (*models.TariffEntry, bool, error)
	SetEntry(ctx context.Context, entry *models.TariffEntry) error
	Invalidate(ctx context.Context, publishedAt models.Date, categories ...string) error
}

// UploadArchive keeps a copy of every uploaded bulk file.
type UploadArchive interface {
	ArchiveUpload(ctx context.Context, kind, filename string, data []byte) (string, error)
}

type TariffService struct {
	tariffRepo repository.ITariffRepository
	sink       event.Sink
	cache      TariffCache
	archive    UploadArchive
	now        func() time.Time
}

// NewTariffService wires the store and the audit sink. cache and archive are
// optional and may be nil.
func NewTariffService(tariffRepo repository.ITariffRepository, sink event.Sink, cache TariffCache, archive UploadArchive) *TariffService {
	if cache == nil {
		cache = noopCache{}
	}
	return &TariffService{
		tariffRepo: tariffRepo,
		sink:       sink,
		cache:      cache,
		archive:    archive,
		now:        time.Now,
	}
}

// ============================================================================
// BULK CREATE
// ============================================================================

// CreateTariffs stores one group per date key, in input order. Each key is its
// own transaction: when a later key fails, the keys before it stay committed
// and their responses are returned alongside the error.
func (s *TariffService) CreateTariffs(ctx context.Context, groups []models.TariffGroupInput) ([]models.TariffResponse, error) {
	responses := make([]models.TariffResponse, 0, len(groups))

	for _, g := range groups {
		if err := validateTariffGroup(g); err != nil {
			return responses, err
		}

		group, entries, err := s.tariffRepo.InsertGroupWithEntries(ctx, g.PublishedAt, g.Tariffs)
		if err != nil {
			return responses, err
		}

		tariffs := make([]models.TariffBase, 0, len(entries))
		for _, e := range entries {
			tariffs = append(tariffs, models.TariffBase{CategoryType: e.CategoryType, Rate: e.Rate})
		}
		responses = append(responses, models.TariffResponse{
			ID:          group.ID,
			PublishedAt: group.PublishedAt,
			Tariffs:     tariffs,
		})

		if err := s.publish(ctx, event.ActionCreateTariff, group.ID); err != nil {
			return responses, err
		}
	}

	return responses, nil
}

// IngestBulk parses a raw bulk document and creates its groups.
func (s *TariffService) IngestBulk(ctx context.Context, raw []byte) ([]models.TariffResponse, error) {
	groups, err := ParseTariffPayload(raw)
	if err != nil {
		return nil, err
	}
	return s.CreateTariffs(ctx, groups)
}

func (s *TariffService) UploadTariffs(ctx context.Context, filename string, raw []byte) ([]models.TariffResponse, error) {
	archiveUpload(ctx, s.archive, "tariffs", filename, raw)
	return s.IngestBulk(ctx, raw)
}

func validateTariffGroup(g models.TariffGroupInput) error {
	if g.PublishedAt.IsZero() {
		return fmt.Errorf("%w: published_at is required", models.ErrMalformedInput)
	}
	for i := range g.Tariffs {
		if errs := utils.ValidateStruct(g.Tariffs[i]); len(errs) > 0 {
			return fmt.Errorf("%w: %s entry %d: %s", models.ErrMalformedInput, g.PublishedAt, i+1, utils.JoinValidationErrors(errs))
		}
	}
	return nil
}

// ============================================================================
// INSURANCE COST
// ============================================================================

func (s *TariffService) CalculateInsuranceCost(ctx context.Context, req models.InsuranceCostRequest) (*models.InsuranceCostResponse, error) {
	errs := utils.ValidateStruct(req)
	if req.PublishedAt.IsZero() {
		errs = append(errs, utils.ValidationError{Field: "published_at", Message: "is required"})
	}
	if len(errs) > 0 {
		return nil, models.NewFieldsError("invalid insurance cost request", errs)
	}
	declared, category := *req.DeclaredValue, *req.CategoryType

	entry, err := s.lookupEntry(ctx, req.PublishedAt, category)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: no tariff for category %q published at %s", models.ErrNotFound, category, req.PublishedAt)
	}

	resp := &models.InsuranceCostResponse{
		DeclaredValue: declared,
		CategoryType:  category,
		PublishedAt:   req.PublishedAt,
		Rate:          entry.Rate,
		InsuranceCost: declared * entry.Rate,
	}

	if err := s.publish(ctx, event.ActionCalculateInsuranceCost, uuid.Nil); err != nil {
		return nil, err
	}
	return resp, nil
}

// lookupEntry reads through the cache. Cache failures only cost a store hit.
func (s *TariffService) lookupEntry(ctx context.Context, publishedAt models.Date, category string) (*models.TariffEntry, error) {
	entry, ok, err := s.cache.GetEntry(ctx, publishedAt, category)
	if err != nil {
		slog.Warn("tariff cache read failed", "published_at", publishedAt.String(), "category_type", category, "error", err)
	}
	if ok {
		return entry, nil
	}

	entry, err = s.tariffRepo.FindEntry(ctx, publishedAt, category)
	if err != nil || entry == nil {
		return nil, err
	}

	if err := s.cache.SetEntry(ctx, entry); err != nil {
		slog.Warn("tariff cache write failed", "tariff_id", entry.ID, "error", err)
	}
	return entry, nil
}

// ============================================================================
// SINGLE ENTRY
// ============================================================================

func (s *TariffService) GetTariff(ctx context.Context, id uuid.UUID) (*models.TariffEntry, error) {
	entry, err := s.tariffRepo.FindEntryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: tariff %s", models.ErrNotFound, id)
	}
	return entry, nil
}

func (s *TariffService) UpdateTariff(ctx context.Context, id uuid.UUID, req models.UpdateTariffRequest) (*models.TariffResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, models.NewFieldsError("invalid tariff", errs)
	}

	entry, err := s.GetTariff(ctx, id)
	if err != nil {
		return nil, err
	}
	oldCategory := entry.CategoryType

	entry.CategoryType = *req.CategoryType
	entry.Rate = *req.Rate
	updated, err := s.tariffRepo.UpdateEntry(ctx, entry)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, updated.PublishedAt, oldCategory, updated.CategoryType)

	if err := s.publish(ctx, event.ActionUpdateTariff, updated.ID); err != nil {
		return nil, err
	}

	return &models.TariffResponse{
		ID:          updated.ID,
		PublishedAt: updated.PublishedAt,
		Tariffs: []models.TariffBase{
			{CategoryType: updated.CategoryType, Rate: updated.Rate},
		},
	}, nil
}

func (s *TariffService) DeleteTariff(ctx context.Context, id uuid.UUID) (*models.DeleteTariffResponse, error) {
	entry, err := s.GetTariff(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.tariffRepo.DeleteEntry(ctx, entry); err != nil {
		return nil, err
	}

	s.invalidate(ctx, entry.PublishedAt, entry.CategoryType)

	if err := s.publish(ctx, event.ActionDeleteTariff, entry.ID); err != nil {
		return nil, err
	}

	return &models.DeleteTariffResponse{
		Message: fmt.Sprintf("Tariff with ID %s has been deleted.", id),
	}, nil
}

// Ready reports whether the tariff store answers.
func (s *TariffService) Ready(ctx context.Context) error {
	return s.tariffRepo.Ping(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *TariffService) invalidate(ctx context.Context, publishedAt models.Date, categories ...string) {
	if err := s.cache.Invalidate(ctx, publishedAt, categories...); err != nil {
		slog.Warn("tariff cache invalidation failed", "published_at", publishedAt.String(), "error", err)
	}
}

// publish enqueues the audit message for a committed action. A failed batch
// flush keeps the message queued and does not fail the action; a sink that
// is not running does.
func (s *TariffService) publish(ctx context.Context, action event.ActionType, subject uuid.UUID) error {
	err := s.sink.Enqueue(ctx, event.NewAuditMessage(action, subject, s.now()))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, event.ErrFlushFailed):
		slog.Warn("audit event queued but batch flush failed", "action", action, "error", err)
		return nil
	default:
		slog.Error("failed to enqueue audit event", "action", action, "error", err)
		return fmt.Errorf("failed to enqueue %s event: %w", action, err)
	}
}

func archiveUpload(ctx context.Context, archive UploadArchive, kind, filename string, raw []byte) {
	if archive == nil {
		return
	}
	object, err := archive.ArchiveUpload(ctx, kind, filename, raw)
	if err != nil {
		slog.Warn("failed to archive upload", "kind", kind, "filename", filename, "error", err)
		return
	}
	slog.Info("Archived upload", "kind", kind, "filename", filename, "object", object)
}

type noopCache struct{}

func (noopCache) GetEntry(context.Context, models.Date, string) (*models.TariffEntry, bool, error) {
	return nil, false, nil
}

func (noopCache) SetEntry(context.Context, *models.TariffEntry) error { return nil }

func (noopCache) Invalidate(context.Context, models.Date, ...string) error { return nil }
