package services

import (
	"context"
	"fmt"

	"tariff-service/internal/models"
	"tariff-service/internal/repository"
	"tariff-service/shared/utils"
)

// RateService manages rate sets keyed by effective date. Rates are not
// audited.
type RateService struct {
	rateRepo repository.IRateRepository
	archive  UploadArchive
}

func NewRateService(rateRepo repository.IRateRepository, archive UploadArchive) *RateService {
	return &RateService{
		rateRepo: rateRepo,
		archive:  archive,
	}
}

// CreateRates stores one rate set per effective date, in input order, with
// the same per-date commit behaviour as CreateTariffs.
func (s *RateService) CreateRates(ctx context.Context, inputs []models.RateDateInput) ([]models.RateResponse, error) {
	responses := make([]models.RateResponse, 0, len(inputs))

	for _, in := range inputs {
		if err := validateRateDate(in); err != nil {
			return responses, err
		}

		rateDate, rates, err := s.rateRepo.InsertRateDateWithRates(ctx, in.EffectiveDate, in.Rates)
		if err != nil {
			return responses, err
		}

		out := make([]models.RateBase, 0, len(rates))
		for _, r := range rates {
			out = append(out, models.RateBase{CategoryType: r.CategoryType, Rate: r.Rate})
		}
		responses = append(responses, models.RateResponse{
			ID:            rateDate.ID,
			EffectiveDate: rateDate.EffectiveDate,
			Rates:         out,
		})
	}

	return responses, nil
}

func (s *RateService) IngestBulk(ctx context.Context, raw []byte) ([]models.RateResponse, error) {
	inputs, err := ParseRatePayload(raw)
	if err != nil {
		return nil, err
	}
	return s.CreateRates(ctx, inputs)
}

func (s *RateService) UploadRates(ctx context.Context, filename string, raw []byte) ([]models.RateResponse, error) {
	archiveUpload(ctx, s.archive, "rates", filename, raw)
	return s.IngestBulk(ctx, raw)
}

func validateRateDate(in models.RateDateInput) error {
	if in.EffectiveDate.IsZero() {
		return fmt.Errorf("%w: effective_date is required", models.ErrMalformedInput)
	}
	for i := range in.Rates {
		if errs := utils.ValidateStruct(in.Rates[i]); len(errs) > 0 {
			return fmt.Errorf("%w: %s rate %d: %s", models.ErrMalformedInput, in.EffectiveDate, i+1, utils.JoinValidationErrors(errs))
		}
	}
	return nil
}
