package models

// BalanceAllocation - на что потрачены оплаченные деньги участника
type BalanceAllocation struct {
	BaseModel
	MemberID       uint           `gorm:"not null;index" json:"member_id"`
	Kind           AllocationKind `gorm:"size:20;not null" json:"kind"`
	Amount         float64        `gorm:"not null" json:"amount"`
	TransactionRef *string        `gorm:"size:255;uniqueIndex" json:"transaction_ref,omitempty"` // checkout учитывается один раз
	Years          int            `json:"years,omitempty"`
}
