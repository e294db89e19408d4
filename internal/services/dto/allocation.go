package dto

import "membership_backend/internal/algorithms"

type ApplyAllocationRequest struct {
	AllocationType  string `json:"allocation_type" validate:"required,is-allocation-type"`
	AllocationYears int    `json:"allocation_years" validate:"omitempty,min=1,max=50"`
}

type AllocationSummaryResponse struct {
	TotalBalance       float64                       `json:"total_balance"`
	AllocatedBalance   float64                       `json:"allocated_balance"`
	UnallocatedBalance float64                       `json:"unallocated_balance"`
	MembershipType     string                        `json:"membership_type"`
	MembershipEndDate  string                        `json:"membership_end_date,omitempty"`
	Options            []algorithms.AllocationOption `json:"options"`
}

type DonationResponse struct {
	ID              string  `json:"id"`
	Amount          float64 `json:"amount"`
	DeductionAmount float64 `json:"deduction_amount"`
	NetCost         float64 `json:"net_cost"`
	FiscalYear      int     `json:"fiscal_year"`
}

type ApplyAllocationResponse struct {
	Success           bool              `json:"success"`
	Message           string            `json:"message"`
	MembershipEndDate string            `json:"membership_end_date,omitempty"`
	Donation          *DonationResponse `json:"donation,omitempty"`
}

type QueueStatsResponse struct {
	Queued  int64 `json:"queued"`
	Sending int64 `json:"sending"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
}
