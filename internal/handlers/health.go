package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/sebastianDLL/notification-svc/internal/database"
	"github.com/sebastianDLL/notification-svc/internal/rabbitmq"
)

// HealthHandler reports broker (and, when the outbox is enabled, database)
// connectivity.
type HealthHandler struct {
	RMQ *rabbitmq.Client
	DB  *gorm.DB // nil when the outbox is disabled
}

func NewHealthHandler(rmq *rabbitmq.Client, db *gorm.DB) *HealthHandler {
	return &HealthHandler{RMQ: rmq, DB: db}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// HealthCheck handles GET /health. A connection lost to the broker reports
// unhealthy here while the client's monitor reconnects in the background, so
// the probe heals on its own once the broker returns.
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	services := make(map[string]string)
	status := "healthy"

	if h.RMQ == nil || !h.RMQ.IsHealthy() {
		services["rabbitmq"] = "unhealthy: connection closed"
		status = "unhealthy"
	} else {
		services["rabbitmq"] = "healthy"
	}

	if h.DB != nil {
		if err := database.HealthCheck(ctx, h.DB); err != nil {
			services["database"] = "unhealthy: " + err.Error()
			status = "unhealthy"
		} else {
			services["database"] = "healthy"
		}
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	}

	if status == "unhealthy" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}
	return c.JSON(response)
}
