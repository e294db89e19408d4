package gateway

import (
	"encoding/json"
	"math"
	"time"
)

// EventKind - тип события шлюза, который умеет обрабатывать сверка
type EventKind int

const (
	EventUnknown EventKind = iota
	EventCheckoutCompleted
	EventPaymentSucceeded
	EventPaymentFailed
	EventChargeRefunded
)

const (
	TypeCheckoutCompleted = "checkout.session.completed"
	TypePaymentSucceeded  = "payment_intent.succeeded"
	TypePaymentFailed     = "payment_intent.payment_failed"
	TypeChargeRefunded    = "charge.refunded"
)

// Ключи metadata, которые мы кладем в checkout-сессию
const (
	MetaMemberID            = "member_id"
	MetaMembershipType      = "membership_type"
	MetaMembershipStartDate = "membership_start_date"
	MetaMembershipEndDate   = "membership_end_date"
	MetaSource              = "source"

	SourceCheckout = "checkout"
)

func KindOf(eventType string) EventKind {
	switch eventType {
	case TypeCheckoutCompleted:
		return EventCheckoutCompleted
	case TypePaymentSucceeded:
		return EventPaymentSucceeded
	case TypePaymentFailed:
		return EventPaymentFailed
	case TypeChargeRefunded:
		return EventChargeRefunded
	}
	return EventUnknown
}

func (k EventKind) String() string {
	switch k {
	case EventCheckoutCompleted:
		return "checkout_completed"
	case EventPaymentSucceeded:
		return "payment_succeeded"
	case EventPaymentFailed:
		return "payment_failed"
	case EventChargeRefunded:
		return "charge_refunded"
	}
	return "unknown"
}

// CheckoutSession - то, что сервисам нужно от checkout-сессии шлюза
type CheckoutSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"` // paid, unpaid, no_payment_required
	PaymentIntent string            `json:"payment_intent,omitempty"`
	CustomerEmail string            `json:"customer_email"`
	Metadata      map[string]string `json:"metadata"`

	// Raw - исходный JSON сессии, сохраняется в транзакции
	Raw json.RawMessage `json:"-"`
}

func (s *CheckoutSession) IsPaid() bool {
	return s.PaymentStatus == "paid"
}

// CheckoutParams - параметры новой checkout-сессии
type CheckoutParams struct {
	MemberID       uint
	MembershipType string
	Amount         float64
	Currency       string
	StartDate      time.Time
	EndDate        time.Time
	SuccessURL     string
	CancelURL      string
	CustomerEmail  string
}

// AmountToCents переводит евро в минимальные единицы шлюза
func AmountToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func CentsToAmount(cents int64) float64 {
	return float64(cents) / 100
}
