package handlers

import (
	"fmt"
	"regexp"

	"tariff-service/internal/metrics"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

type Registrar interface {
	Register(app *fiber.App)
}

// NewApp builds the fiber app with the shared middleware chain and mounts
// every registrar. m may be nil.
func NewApp(corsOriginRegex string, m *metrics.Metrics, registrars ...Registrar) (*fiber.App, error) {
	originPattern, err := regexp.Compile(`^(?:` + corsOriginRegex + `)$`)
	if err != nil {
		return nil, fmt.Errorf("invalid CORS origin regex: %w", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      "tariff-service",
		ErrorHandler: ErrorHandler,
	})

	app.Use(recoverer.New())
	app.Use(requestid.New())
	if m != nil {
		app.Use(m.Middleware())
	}
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: originPattern.MatchString,
		AllowCredentials: true,
		AllowMethods:     []string{fiber.MethodGet, fiber.MethodPost, fiber.MethodPut, fiber.MethodDelete, fiber.MethodPatch, fiber.MethodOptions},
	}))

	if m != nil {
		app.Get("/metrics", m.Handler())
	}
	for _, r := range registrars {
		r.Register(app)
	}
	return app, nil
}
