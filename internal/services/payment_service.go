package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"membership_backend/internal/algorithms"
	"membership_backend/internal/email"
	"membership_backend/internal/gateway"
	"membership_backend/internal/logger"
	"membership_backend/internal/models"
	"membership_backend/internal/repositories"
	"membership_backend/internal/utils"
	"membership_backend/pkg/apperrors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentSettings - настройки применения платежей
type PaymentSettings struct {
	Currency       string
	ImmediateDrain int
}

// PaymentOutcome - итог применения оплаченной сессии
type PaymentOutcome struct {
	MemberID       uint
	MembershipType models.MembershipType
	Amount         float64
	StartDate      time.Time
	EndDate        time.Time
	// Transitioned - именно этот вызов перевел транзакцию в completed (и поставил письма)
	Transitioned bool
	// Refunded - сессия уже возвращена, участник не изменен
	Refunded bool
}

type PaymentService interface {
	// ApplyCompletedPayment общий для webhook и подтверждения из браузера:
	// повторный или параллельный вызов дает то же состояние без дублей писем.
	ApplyCompletedPayment(ctx context.Context, db *gorm.DB, sessionID string, metadata map[string]string,
		amountInCents int64, rawSession []byte, paymentIntentID string) (*PaymentOutcome, error)
}

type paymentService struct {
	transactionRepo repositories.TransactionRepository
	memberRepo      repositories.MemberRepository
	allocationRepo  repositories.AllocationRepository
	queue           NotificationQueueService
	settings        PaymentSettings
	now             func() time.Time
}

func NewPaymentService(
	transactionRepo repositories.TransactionRepository,
	memberRepo repositories.MemberRepository,
	allocationRepo repositories.AllocationRepository,
	queue NotificationQueueService,
	settings PaymentSettings,
) PaymentService {
	return &paymentService{
		transactionRepo: transactionRepo,
		memberRepo:      memberRepo,
		allocationRepo:  allocationRepo,
		queue:           queue,
		settings:        settings,
		now:             time.Now,
	}
}

func (s *paymentService) ApplyCompletedPayment(
	ctx context.Context,
	db *gorm.DB,
	sessionID string,
	metadata map[string]string,
	amountInCents int64,
	rawSession []byte,
	paymentIntentID string,
) (*PaymentOutcome, error) {
	memberID, err := parseMemberID(metadata)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithMemberID(ctx, strconv.FormatUint(uint64(memberID), 10))

	today := utils.DateOf(s.now())
	amount := gateway.CentsToAmount(amountInCents)
	outcome := &PaymentOutcome{
		MemberID:       memberID,
		Amount:         amount,
		MembershipType: membershipTypeFromMetadata(ctx, metadata, amount),
	}
	outcome.StartDate, outcome.EndDate = membershipDatesFromMetadata(ctx, metadata, today)

	err = db.Transaction(func(tx *gorm.DB) error {
		changed, err := s.transactionRepo.RecordOrUpdateTransaction(tx, repositories.TransactionUpdate{
			GatewayRef:      sessionID,
			Status:          models.TransactionStatusCompleted,
			RawPayload:      rawJSON(rawSession),
			MemberID:        &memberID,
			Amount:          amount,
			Currency:        s.settings.Currency,
			PaymentIntentID: paymentIntentID,
			Kind:            models.TransactionKindCheckout,
		})
		if err != nil {
			return apperrors.DatabaseError(err)
		}

		// возвращенный платеж не продлевает членство повторно
		if !changed {
			current, err := s.transactionRepo.FindByGatewayRef(tx, sessionID)
			if err != nil {
				return apperrors.DatabaseError(err)
			}
			if current.Status == models.TransactionStatusRefunded {
				outcome.Refunded = true
				return nil
			}
		}

		err = s.memberRepo.ApplyPayment(tx, memberID, repositories.PaymentApplication{
			MembershipType: outcome.MembershipType,
			StartDate:      outcome.StartDate,
			EndDate:        outcome.EndDate,
			Amount:         amount,
			PaidOn:         today,
		})
		if err != nil {
			if errors.Is(err, repositories.ErrMemberNotFound) {
				return apperrors.ErrMemberNotFound
			}
			return apperrors.DatabaseError(err)
		}

		if !changed {
			return nil
		}
		outcome.Transitioned = true
		return s.recordFirstCompletion(tx, sessionID, outcome, today)
	})
	if err != nil {
		return nil, err
	}

	if outcome.Transitioned {
		logger.CtxInfo(ctx, "Payment applied",
			"session_id", sessionID,
			"membership_type", outcome.MembershipType,
			"amount", amount,
		)
	} else if outcome.Refunded {
		logger.CtxWarn(ctx, "Completion for refunded session ignored", "session_id", sessionID)
	} else {
		logger.CtxDebug(ctx, "Payment already applied", "session_id", sessionID)
	}

	// Письма уже в очереди, ошибка отправки не ломает платеж
	if outcome.Transitioned && s.settings.ImmediateDrain > 0 {
		if _, err := s.queue.Drain(ctx, db, s.settings.ImmediateDrain); err != nil {
			logger.CtxWithError(ctx, "Immediate email drain failed", err)
		}
	}

	return outcome, nil
}

// recordFirstCompletion выполняется только вызовом, который перевел транзакцию в completed
func (s *paymentService) recordFirstCompletion(tx *gorm.DB, sessionID string, outcome *PaymentOutcome, today time.Time) error {
	ref := sessionID
	if _, err := s.allocationRepo.CreateAllocation(tx, &models.BalanceAllocation{
		MemberID:       outcome.MemberID,
		Kind:           models.AllocationKindCheckout,
		Amount:         outcome.Amount,
		TransactionRef: &ref,
	}); err != nil {
		return apperrors.DatabaseError(err)
	}

	member, err := s.memberRepo.FindByID(tx, outcome.MemberID)
	if err != nil {
		return apperrors.DatabaseError(err)
	}

	previous, err := s.transactionRepo.CountPaymentHistory(tx, outcome.MemberID, sessionID)
	if err != nil {
		return apperrors.DatabaseError(err)
	}

	vars := map[string]interface{}{
		"name":                  member.Name,
		"membership_type":       string(outcome.MembershipType),
		"amount":                outcome.Amount,
		"membership_start_date": utils.FormatDate(outcome.StartDate),
		"membership_end_date":   utils.FormatDate(outcome.EndDate),
	}

	emails := make([]EnqueueRequest, 0, 3)
	if previous == 0 {
		emails = append(emails, EnqueueRequest{TemplateKey: email.TemplateWelcome, Priority: models.EmailPriorityHigh})
	}
	emails = append(emails, EnqueueRequest{TemplateKey: email.TemplatePaymentConfirmation, Priority: models.EmailPriorityHigh})
	if algorithms.NeedsSponsorTaxReceipt(string(outcome.MembershipType), outcome.Amount) {
		receiptVars := copyVars(vars)
		receiptVars["deductible_amount"] = algorithms.SponsorDeductibleAmount(outcome.Amount)
		receiptVars["fiscal_year"] = today.Year()
		emails = append(emails, EnqueueRequest{
			TemplateKey:  email.TemplateSponsorTaxReceipt,
			Priority:     models.EmailPriorityNormal,
			TemplateVars: receiptVars,
		})
	}

	for _, req := range emails {
		req.RecipientEmail = member.Email
		req.RecipientName = member.Name
		req.MemberID = &member.ID
		if req.TemplateVars == nil {
			req.TemplateVars = vars
		}
		if _, err := s.queue.Enqueue(tx, req); err != nil {
			return err
		}
	}
	return nil
}

func parseMemberID(metadata map[string]string) (uint, error) {
	raw := metadata[gateway.MetaMemberID]
	if raw == "" {
		return 0, apperrors.ErrMissingMetadata
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.ErrMissingMetadata.WithDetails(map[string]string{"member_id": raw})
	}
	return uint(id), nil
}

// membershipTypeFromMetadata - metadata главнее, без нее тип выводится из суммы
func membershipTypeFromMetadata(ctx context.Context, metadata map[string]string, amount float64) models.MembershipType {
	t := models.MembershipType(metadata[gateway.MetaMembershipType])
	if t.IsValid() {
		return t
	}
	if t != "" {
		logger.CtxWarn(ctx, "Unknown membership type in metadata, deriving from amount", "membership_type", t)
	}
	return algorithms.MembershipTypeForAmount(amount)
}

// membershipDatesFromMetadata: без даты начала - сегодня, без даты окончания - год от начала
func membershipDatesFromMetadata(ctx context.Context, metadata map[string]string, today time.Time) (time.Time, time.Time) {
	start := today
	if raw := metadata[gateway.MetaMembershipStartDate]; raw != "" {
		if parsed, err := utils.ParseDate(raw); err == nil {
			start = parsed
		} else {
			logger.CtxWarn(ctx, "Invalid membership start date in metadata", "value", raw)
		}
	}

	end := utils.MembershipYearEnd(start)
	if raw := metadata[gateway.MetaMembershipEndDate]; raw != "" {
		if parsed, err := utils.ParseDate(raw); err == nil && !parsed.Before(start) {
			end = parsed
		} else {
			logger.CtxWarn(ctx, "Invalid membership end date in metadata", "value", raw)
		}
	}
	return start, end
}

func rawJSON(raw []byte) datatypes.JSON {
	if len(raw) == 0 || !json.Valid(raw) {
		return nil
	}
	return datatypes.JSON(raw)
}

func copyVars(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}
