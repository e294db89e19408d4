package models

type MembershipType string
type PaymentStatus string
type TransactionStatus string
type TransactionKind string
type WebhookEventKind string
type EmailPriority string
type EmailStatus string
type AllocationKind string
type ReminderThreshold string

const (
	MembershipTypeFree     MembershipType = "free"
	MembershipTypeBasic    MembershipType = "basic"
	MembershipTypeSponsor  MembershipType = "sponsor"
	MembershipTypeLifetime MembershipType = "lifetime"

	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusOverdue PaymentStatus = "overdue"

	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"

	TransactionKindCheckout TransactionKind = "checkout"
	TransactionKindCredit   TransactionKind = "credit"

	EmailPriorityHigh   EmailPriority = "high"
	EmailPriorityNormal EmailPriority = "normal"
	EmailPriorityLow    EmailPriority = "low"

	EmailStatusQueued  EmailStatus = "queued"
	EmailStatusSending EmailStatus = "sending"
	EmailStatusSent    EmailStatus = "sent"
	EmailStatusFailed  EmailStatus = "failed"

	AllocationKindCheckout        AllocationKind = "checkout"
	AllocationKindMembershipYears AllocationKind = "membership_years"
	AllocationKindDonation        AllocationKind = "donation"

	ReminderThreshold7d      ReminderThreshold = "7d"
	ReminderThreshold3d      ReminderThreshold = "3d"
	ReminderThreshold1d      ReminderThreshold = "1d"
	ReminderThresholdExpired ReminderThreshold = "expired"
)

func (t MembershipType) IsValid() bool {
	switch t {
	case MembershipTypeFree, MembershipTypeBasic, MembershipTypeSponsor, MembershipTypeLifetime:
		return true
	}
	return false
}

func (p EmailPriority) IsValid() bool {
	switch p {
	case EmailPriorityHigh, EmailPriorityNormal, EmailPriorityLow:
		return true
	}
	return false
}

// allowedTransitions - статус транзакции двигается только вперед.
// failed -> completed: после отказа карты участник может оплатить ту же сессию другой картой.
var allowedTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusCompleted: {TransactionStatusPending, TransactionStatusFailed},
	TransactionStatusFailed:    {TransactionStatusPending},
	TransactionStatusRefunded:  {TransactionStatusPending, TransactionStatusCompleted},
}

// AllowedPredecessors возвращает статусы, из которых можно перейти в target
func AllowedPredecessors(target TransactionStatus) []TransactionStatus {
	return allowedTransitions[target]
}

func CanTransition(from, to TransactionStatus) bool {
	for _, s := range allowedTransitions[to] {
		if s == from {
			return true
		}
	}
	return false
}
