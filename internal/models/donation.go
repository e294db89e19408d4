package models

type Donation struct {
	BaseModel
	MemberID         uint    `gorm:"not null;index" json:"member_id"`
	Amount           float64 `gorm:"not null" json:"amount"`
	DeductionAmount  float64 `json:"deduction_amount"`
	NetCost          float64 `json:"net_cost"`
	IsRecurringDonor bool    `json:"is_recurring_donor"`
	FiscalYear       int     `gorm:"not null;index" json:"fiscal_year"`
}
