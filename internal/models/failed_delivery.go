package models

import (
	"time"

	"github.com/google/uuid"
)

// FailedDelivery is an outbox row for a notification email whose send
// failed. The queue message itself is still acked; these rows exist so a
// mail-transport outage does not silently lose notifications.
type FailedDelivery struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ReservationID string    `gorm:"not null" json:"reservation_id"`
	Recipient     string    `gorm:"not null" json:"recipient"`
	Subject       string    `gorm:"not null" json:"subject"`
	Body          string    `gorm:"type:text;not null" json:"body"`
	Reason        string    `gorm:"not null" json:"reason"`
	AttemptedAt   time.Time `gorm:"not null" json:"attempted_at"`
	CreatedAt     time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (FailedDelivery) TableName() string {
	return "failed_deliveries"
}
