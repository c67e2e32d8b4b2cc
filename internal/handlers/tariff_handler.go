package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"tariff-service/internal/models"
	"tariff-service/shared/utils"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type TariffService interface {
	IngestBulk(ctx context.Context, raw []byte) ([]models.TariffResponse, error)
	UploadTariffs(ctx context.Context, filename string, raw []byte) ([]models.TariffResponse, error)
	CalculateInsuranceCost(ctx context.Context, req models.InsuranceCostRequest) (*models.InsuranceCostResponse, error)
	GetTariff(ctx context.Context, id uuid.UUID) (*models.TariffEntry, error)
	UpdateTariff(ctx context.Context, id uuid.UUID, req models.UpdateTariffRequest) (*models.TariffResponse, error)
	DeleteTariff(ctx context.Context, id uuid.UUID) (*models.DeleteTariffResponse, error)
}

type TariffHandler struct {
	tariffService TariffService
}

func NewTariffHandler(tariffService TariffService) *TariffHandler {
	return &TariffHandler{
		tariffService: tariffService,
	}
}

func (h *TariffHandler) Register(app *fiber.App) {
	tariffGroup := app.Group("/tariffs")
	tariffGroup.Post("/", h.CreateTariffs)
	tariffGroup.Post("/upload", h.UploadTariffs)
	tariffGroup.Post("/calculate", h.CalculateInsuranceCost)
	tariffGroup.Get("/:id", h.GetTariff)
	tariffGroup.Put("/:id", h.UpdateTariff)
	tariffGroup.Delete("/:id", h.DeleteTariff)
}

// CreateTariffs reads the raw body so the date keys keep their order.
func (h *TariffHandler) CreateTariffs(c fiber.Ctx) error {
	resp, err := h.tariffService.IngestBulk(c.Context(), c.Body())
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(resp)
}

func (h *TariffHandler) UploadTariffs(c fiber.Ctx) error {
	filename, raw, err := readUpload(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "A JSON file is required in the 'file' form field"))
	}

	resp, err := h.tariffService.UploadTariffs(c.Context(), filename, raw)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(resp)
}

func (h *TariffHandler) CalculateInsuranceCost(c fiber.Ctx) error {
	var req models.InsuranceCostRequest
	if err := c.Bind().JSON(&req); err != nil {
		slog.Error("error parsing request", "error", err)
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
	}

	resp, err := h.tariffService.CalculateInsuranceCost(c.Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(resp)
}

func (h *TariffHandler) GetTariff(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_ID", "Invalid tariff ID format"))
	}

	entry, err := h.tariffService.GetTariff(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(entry)
}

func (h *TariffHandler) UpdateTariff(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_ID", "Invalid tariff ID format"))
	}

	var req models.UpdateTariffRequest
	if err := c.Bind().JSON(&req); err != nil {
		slog.Error("error parsing request", "error", err)
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
	}

	resp, err := h.tariffService.UpdateTariff(c.Context(), id, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(resp)
}

func (h *TariffHandler) DeleteTariff(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_ID", "Invalid tariff ID format"))
	}

	resp, err := h.tariffService.DeleteTariff(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(resp)
}

func readUpload(c fiber.Ctx) (string, []byte, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return "", nil, err
	}
	file, err := header.Open()
	if err != nil {
		return "", nil, err
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return "", nil, err
	}
	return header.Filename, raw, nil
}
