package models

import "time"

type Member struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	Email               string         `gorm:"not null;uniqueIndex;size:255" json:"email"`
	Name                string         `gorm:"size:255" json:"name"`
	MembershipType      MembershipType `gorm:"size:20;not null;default:'free'" json:"membership_type"`
	MembershipStartDate *time.Time     `gorm:"type:date" json:"membership_start_date"`
	MembershipEndDate   *time.Time     `gorm:"type:date;index" json:"membership_end_date"`
	PaymentStatus       PaymentStatus  `gorm:"size:20;not null;default:'unpaid'" json:"payment_status"`
	PaymentAmount       float64        `json:"payment_amount"`
	LastPaymentDate     *time.Time     `gorm:"type:date" json:"last_payment_date"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// IsActiveOn - членство действует в указанный день (включительно)
func (m *Member) IsActiveOn(day time.Time) bool {
	return m.MembershipEndDate != nil && !m.MembershipEndDate.Before(day)
}
