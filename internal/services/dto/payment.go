package dto

// ======================
// Request DTOs
// ======================

type CreateCheckoutRequest struct {
	MembershipType string   `json:"membership_type" validate:"required,is-membership-type"`
	Amount         *float64 `json:"amount,omitempty" validate:"omitempty,gt=0"`
}

type ConfirmCheckoutRequest struct {
	SessionID string `json:"session_id" validate:"required,max=255"`
}

// ======================
// Response DTOs
// ======================

type CheckoutResponse struct {
	SessionID      string  `json:"session_id"`
	CheckoutURL    string  `json:"checkout_url"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	MembershipType string  `json:"membership_type"`
}

type ConfirmCheckoutResponse struct {
	MembershipType      string  `json:"membership_type"`
	Amount              float64 `json:"amount"`
	MembershipStartDate string  `json:"membership_start_date"`
	MembershipEndDate   string  `json:"membership_end_date"`
}

type WebhookResponse struct {
	Received bool   `json:"received"`
	EventID  string `json:"event_id,omitempty"`
	Message  string `json:"message,omitempty"`
}
