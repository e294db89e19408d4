package models

import (
	"time"

	"gorm.io/datatypes"
)

// Transaction - зеркало платежа в шлюзе. Никогда не удаляется.
type Transaction struct {
	BaseModel
	GatewayRef      string            `gorm:"size:255;not null;uniqueIndex" json:"gateway_ref"` // id checkout-сессии или payment intent
	PaymentIntentID string            `gorm:"size:255;index" json:"payment_intent_id,omitempty"`
	MemberID        *uint             `gorm:"index" json:"member_id,omitempty"`
	Kind            TransactionKind   `gorm:"size:20;not null;default:'checkout'" json:"kind"`
	Amount          float64           `json:"amount"`
	Currency        string            `gorm:"size:3" json:"currency"`
	Status          TransactionStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ErrorMessage    string            `gorm:"type:text" json:"error_message,omitempty"`
	RawPayload      datatypes.JSON    `json:"-"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}
