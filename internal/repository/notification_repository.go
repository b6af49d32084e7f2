package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/homease/service-booking/internal/domain/notification"
)

// NotificationModel is the GORM model for the notifications table. The
// table is owned by the notification service; the booking engine only
// inserts rows into it, inside the transaction of the state change each
// row describes.
type NotificationModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID       `gorm:"type:uuid;index;not null"`
	Type      string          `gorm:"not null;size:50"`
	Title     string          `gorm:"not null;size:200"`
	Body      string          `gorm:"size:1000"`
	Payload   json.RawMessage `gorm:"type:jsonb"`
	ReadAt    *time.Time      `gorm:""`
	CreatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (NotificationModel) TableName() string {
	return "notifications"
}

// GormNotificationSink writes notification rows through GORM.
type GormNotificationSink struct {
	db *gorm.DB
}

// NewGormNotificationSink creates a new GormNotificationSink.
func NewGormNotificationSink(db *gorm.DB) *GormNotificationSink {
	return &GormNotificationSink{db: db}
}

// CreateNotification inserts a notification row, joining any ambient
// transaction.
func (s *GormNotificationSink) CreateNotification(ctx context.Context, n *notification.Notification) error {
	var payload json.RawMessage
	if n.Payload != nil {
		data, err := json.Marshal(n.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal notification payload: %w", err)
		}
		payload = data
	}

	model := NotificationModel{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		Title:     n.Title,
		Body:      n.Body,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := conn(ctx, s.db).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}
