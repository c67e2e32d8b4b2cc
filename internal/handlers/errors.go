package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"tariff-service/internal/models"
	"tariff-service/shared/utils"

	"github.com/gofiber/fiber/v3"
)

// respondError is the only place domain errors become HTTP statuses.
// Internal error text is logged and never sent to the client.
func respondError(c fiber.Ctx, err error) error {
	var fieldsErr *models.FieldsError
	switch {
	case errors.As(err, &fieldsErr):
		return c.Status(http.StatusBadRequest).JSON(utils.CreateValidationErrorResponse(err.Error(), fieldsErr.Fields))
	case errors.Is(err, models.ErrMalformedInput):
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", err.Error()))
	case errors.Is(err, models.ErrNotFound):
		return c.Status(http.StatusNotFound).JSON(utils.CreateErrorResponse("NOT_FOUND", err.Error()))
	default:
		slog.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err)
		return c.Status(http.StatusInternalServerError).JSON(utils.CreateErrorResponse("INTERNAL_ERROR", "Internal server error"))
	}
}

// ErrorHandler renders errors returned from handlers and middleware (unknown
// routes, panics caught by recover) in the common envelope.
func ErrorHandler(c fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < http.StatusInternalServerError {
		code := "INVALID_REQUEST"
		if fe.Code == http.StatusNotFound {
			code = "NOT_FOUND"
		}
		return c.Status(fe.Code).JSON(utils.CreateErrorResponse(code, fe.Message))
	}
	return respondError(c, err)
}
