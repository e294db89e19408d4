package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent - журнал входящих событий шлюза, id события = ключ идемпотентности
type WebhookEvent struct {
	ID           string         `gorm:"size:255;primaryKey" json:"id"`
	Type         string         `gorm:"size:100;not null;index" json:"type"`
	Payload      datatypes.JSON `json:"-"`
	Processed    bool           `gorm:"not null;default:false" json:"processed"`
	ProcessedAt  *time.Time     `json:"processed_at,omitempty"`
	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`
	Attempts     int            `gorm:"not null;default:0" json:"attempts"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
