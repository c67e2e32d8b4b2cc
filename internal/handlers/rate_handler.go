package handlers

import (
	"context"
	"net/http"

	"tariff-service/internal/models"
	"tariff-service/shared/utils"

	"github.com/gofiber/fiber/v3"
)

type RateService interface {
	IngestBulk(ctx context.Context, raw []byte) ([]models.RateResponse, error)
	UploadRates(ctx context.Context, filename string, raw []byte) ([]models.RateResponse, error)
}

type RateHandler struct {
	rateService RateService
}

func NewRateHandler(rateService RateService) *RateHandler {
	return &RateHandler{
		rateService: rateService,
	}
}

func (h *RateHandler) Register(app *fiber.App) {
	rateGroup := app.Group("/rates")
	rateGroup.Post("/", h.CreateRates)
	rateGroup.Post("/upload", h.UploadRates)
}

func (h *RateHandler) CreateRates(c fiber.Ctx) error {
	resp, err := h.rateService.IngestBulk(c.Context(), c.Body())
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(resp)
}

func (h *RateHandler) UploadRates(c fiber.Ctx) error {
	filename, raw, err := readUpload(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "A JSON file is required in the 'file' form field"))
	}

	resp, err := h.rateService.UploadRates(c.Context(), filename, raw)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(resp)
}
