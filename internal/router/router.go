package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nexochat/hub-api/internal/config"
	"github.com/nexochat/hub-api/internal/handler"
	"github.com/nexochat/hub-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	HubHandler    *handler.HubHandler
	RoomHandler   *handler.RoomHandler
	JWTMiddleware fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	hub := app.Group("/api/v1/hub", jwtMiddleware)
	if deps.HubHandler != nil {
		deps.HubHandler.Register(hub)
	}
	if deps.RoomHandler != nil {
		deps.RoomHandler.Register(hub)
	}
}
