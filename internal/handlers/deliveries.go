package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sebastianDLL/notification-svc/internal/models"
)

// DeliveriesHandler lists failed notification deliveries for operators.
type DeliveriesHandler struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

func NewDeliveriesHandler(db *gorm.DB, logger *zap.Logger) *DeliveriesHandler {
	return &DeliveriesHandler{DB: db, Logger: logger}
}

type FailedDeliveriesResponse struct {
	Deliveries []FailedDeliveryDTO `json:"deliveries"`
	HasMore    bool                `json:"has_more"`
}

type FailedDeliveryDTO struct {
	ID            string `json:"id"`
	ReservationID string `json:"reservation_id"`
	Recipient     string `json:"recipient"`
	Subject       string `json:"subject"`
	Reason        string `json:"reason"`
	AttemptedAt   string `json:"attempted_at"`
}

// GetFailedDeliveries handles GET /api/v1/failed-deliveries.
// Query parameters:
//   - limit (optional, default 25)
//   - offset (optional, default 0)
func (h *DeliveriesHandler) GetFailedDeliveries(c *fiber.Ctx) error {
	limit := 25
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > 100 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be an integer between 1 and 100",
			})
		}
		limit = parsed
	}

	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		parsed, err := strconv.Atoi(offsetStr)
		if err != nil || parsed < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "offset must be a non-negative integer",
			})
		}
		offset = parsed
	}

	var rows []models.FailedDelivery
	// Fetch one extra row to compute has_more without a count query.
	err := h.DB.
		Order("attempted_at DESC").
		Limit(limit + 1).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		h.Logger.Error("failed to list failed deliveries", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list failed deliveries",
		})
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	dtos := make([]FailedDeliveryDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, FailedDeliveryDTO{
			ID:            row.ID.String(),
			ReservationID: row.ReservationID,
			Recipient:     row.Recipient,
			Subject:       row.Subject,
			Reason:        row.Reason,
			AttemptedAt:   row.AttemptedAt.UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(FailedDeliveriesResponse{
		Deliveries: dtos,
		HasMore:    hasMore,
	})
}
