package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sebastianDLL/notification-svc/internal/handlers"
)

// SetupRoutes configures all application routes with dependencies.
// deliveriesHandler is nil when the failed-delivery outbox is disabled.
func SetupRoutes(app *fiber.App, healthHandler *handlers.HealthHandler, deliveriesHandler *handlers.DeliveriesHandler) {
	app.Get("/health", healthHandler.HealthCheck)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Servicio de Notificaciones activo",
			"status":  "running",
		})
	})

	api := app.Group("/api/v1")
	if deliveriesHandler != nil {
		api.Get("/failed-deliveries", deliveriesHandler.GetFailedDeliveries)
	}
}
