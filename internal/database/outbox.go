package database

import (
	"context"

	"gorm.io/gorm"

	"github.com/sebastianDLL/notification-svc/internal/models"
)

// Outbox persists failed notification deliveries.
type Outbox struct {
	db *gorm.DB
}

func NewOutbox(db *gorm.DB) *Outbox {
	return &Outbox{db: db}
}

// Record inserts one failed-delivery row.
func (o *Outbox) Record(ctx context.Context, fd *models.FailedDelivery) error {
	return o.db.WithContext(ctx).Create(fd).Error
}
