package models

import (
	"time"

	"github.com/tichatapp/tichat_backend/config"
)

// SaleMessageRecord is the transactional outbox row for a finalized sale's
// WhatsApp notification. It is written in the same transaction as the Sale
// so a crash can never lose (or invent) a notification; the dispatcher
// publishes after commit.
type SaleMessageRecord struct {
	ID               int        `gorm:"primary_key" json:"id"`
	SaleId           int        `gorm:"index;not null" json:"sale_id"`
	Phone            string     `gorm:"size:20;not null" json:"phone"`
	Body             string     `gorm:"type:text;not null" json:"body"`
	DeepLink         string     `gorm:"size:1024" json:"deep_link"`
	CorrelationId    string     `gorm:"size:64" json:"correlation_id"`
	IsProcessed      bool       `gorm:"not null;default:false;index" json:"is_processed"`
	PublishStatus    string     `gorm:"size:20;not null;default:'PENDING';index" json:"publish_status"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	NextAttemptAt    *time.Time `json:"next_attempt_at"`
	LockedAt         *time.Time `json:"locked_at"`
	LockedBy         *string    `gorm:"size:64" json:"locked_by"`
	PublishedAt      *time.Time `json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:64" json:"pub_sub_message_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ConvertToNotificationMessage maps an outbox row to the published event.
func ConvertToNotificationMessage(rec SaleMessageRecord) config.NotificationMessage {
	return config.NotificationMessage{
		ID:            rec.ID,
		SaleID:        rec.SaleId,
		Phone:         rec.Phone,
		Body:          rec.Body,
		DeepLink:      rec.DeepLink,
		CreatedAt:     rec.CreatedAt,
		CorrelationId: rec.CorrelationId,
	}
}
