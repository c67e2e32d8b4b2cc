package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"tariff-service/shared/utils"

	"github.com/gofiber/fiber/v3"
)

type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

type DefaultHandler struct {
	readiness ReadinessChecker
}

func NewDefaultHandler(readiness ReadinessChecker) *DefaultHandler {
	return &DefaultHandler{
		readiness: readiness,
	}
}

func (h *DefaultHandler) Register(app *fiber.App) {
	defaultGroup := app.Group("/default")
	defaultGroup.Get("/ping", h.Ping)
	defaultGroup.Get("/ready", h.Ready)
}

func (h *DefaultHandler) Ping(c fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON("pong")
}

func (h *DefaultHandler) Ready(c fiber.Ctx) error {
	if err := h.readiness.Ready(c.Context()); err != nil {
		slog.Error("readiness check failed", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(utils.CreateErrorResponse("INTERNAL_ERROR", "Database is not ready"))
	}
	return c.Status(http.StatusOK).JSON(true)
}
