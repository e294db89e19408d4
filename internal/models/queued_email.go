package models

import (
	"time"

	"gorm.io/datatypes"
)

type QueuedEmail struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	RecipientEmail string            `gorm:"size:255;not null" json:"recipient_email"`
	RecipientName  string            `gorm:"size:255" json:"recipient_name"`
	TemplateKey    string            `gorm:"size:100;not null" json:"template_key"`
	TemplateVars   datatypes.JSONMap `json:"template_vars"`
	MemberID       *uint             `gorm:"index" json:"member_id,omitempty"`
	Priority       EmailPriority     `gorm:"size:10;not null;default:'normal'" json:"priority"`
	Status         EmailStatus       `gorm:"size:10;not null;default:'queued';index" json:"status"`
	Attempts       int               `gorm:"not null;default:0" json:"attempts"`
	LastError      string            `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt      time.Time         `gorm:"index" json:"created_at"`
	SentAt         *time.Time        `json:"sent_at,omitempty"`
}

func (QueuedEmail) TableName() string {
	return "email_queue"
}
