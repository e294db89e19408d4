package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"membership_backend/internal/gateway"
	"membership_backend/internal/logger"
	"membership_backend/internal/models"
	"membership_backend/internal/repositories"
	"membership_backend/internal/utils"
	"membership_backend/pkg/apperrors"

	"github.com/stripe/stripe-go/v82"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RefundPolicy - что делать с членством после возврата платежа
type RefundPolicy string

const (
	RefundPolicyManual RefundPolicy = "manual" // только лог для администратора
	RefundPolicyRevoke RefundPolicy = "revoke" // членство закрывается сегодняшним днем
)

type WebhookResult struct {
	EventID          string
	EventType        string
	AlreadyProcessed bool
	Message          string
}

type WebhookService interface {
	HandleWebhook(ctx context.Context, db *gorm.DB, payload []byte, signature string) (*WebhookResult, error)
}

type webhookService struct {
	gateway         gateway.Client
	eventRepo       repositories.WebhookEventRepository
	transactionRepo repositories.TransactionRepository
	memberRepo      repositories.MemberRepository
	payments        PaymentService
	refundPolicy    RefundPolicy
	now             func() time.Time
}

func NewWebhookService(
	gatewayClient gateway.Client,
	eventRepo repositories.WebhookEventRepository,
	transactionRepo repositories.TransactionRepository,
	memberRepo repositories.MemberRepository,
	payments PaymentService,
	refundPolicy RefundPolicy,
) WebhookService {
	if refundPolicy == "" {
		refundPolicy = RefundPolicyManual
	}
	return &webhookService{
		gateway:         gatewayClient,
		eventRepo:       eventRepo,
		transactionRepo: transactionRepo,
		memberRepo:      memberRepo,
		payments:        payments,
		refundPolicy:    refundPolicy,
		now:             time.Now,
	}
}

// HandleWebhook: подпись -> разбор -> атомарная запись события -> обработчик -> итог в журнал.
// Обработанное событие повторно не обрабатывается, необработанное (сбой) переигрывается.
func (s *webhookService) HandleWebhook(ctx context.Context, db *gorm.DB, payload []byte, signature string) (*WebhookResult, error) {
	if len(payload) == 0 {
		return nil, apperrors.NewBadRequestError("empty webhook payload")
	}

	if err := s.gateway.VerifyWebhookSignature(payload, signature); err != nil {
		logger.CtxSecurityAudit(ctx, "Webhook signature rejected", "reason", err.Error())
		return nil, apperrors.ErrSignatureInvalid.WithError(err)
	}

	event, err := gateway.ParseEvent(payload)
	if err != nil {
		return nil, apperrors.NewBadRequestError("invalid webhook payload").WithError(err)
	}
	ctx = logger.WithEventID(ctx, event.ID)
	eventType := string(event.Type)
	result := &WebhookResult{EventID: event.ID, EventType: eventType}

	inserted, err := s.eventRepo.InsertIfAbsent(db, &models.WebhookEvent{
		ID:      event.ID,
		Type:    eventType,
		Payload: datatypes.JSON(payload),
	})
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	if !inserted {
		existing, err := s.eventRepo.FindByID(db, event.ID)
		if err != nil {
			return nil, apperrors.DatabaseError(err)
		}
		if existing.Processed {
			logger.CtxInfo(ctx, "Webhook event already processed", "type", eventType)
			result.AlreadyProcessed = true
			result.Message = "already processed"
			return result, nil
		}
		logger.CtxWarn(ctx, "Re-attempting unprocessed webhook event",
			"type", eventType,
			"attempts", existing.Attempts,
			"last_error", existing.ErrorMessage,
		)
	}

	if handleErr := s.dispatch(ctx, db, event); handleErr != nil {
		logger.CtxWithError(ctx, "Webhook handler failed", handleErr, "type", eventType)
		if err := s.eventRepo.MarkFailed(db, event.ID, handleErr.Error()); err != nil {
			logger.CtxWithError(ctx, "Failed to record webhook failure", err)
		}
		return nil, apperrors.Wrap(handleErr, apperrors.CodeHandlerFailed, "webhook",
			"Webhook handler failed: "+handlerMessage(handleErr), http.StatusInternalServerError)
	}

	if err := s.eventRepo.MarkProcessed(db, event.ID, s.now()); err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	result.Message = "processed"
	return result, nil
}

func (s *webhookService) dispatch(ctx context.Context, db *gorm.DB, event *stripe.Event) error {
	switch gateway.Kind(event) {
	case gateway.EventCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, db, event)
	case gateway.EventPaymentSucceeded:
		return s.handlePaymentSucceeded(ctx, db, event)
	case gateway.EventPaymentFailed:
		return s.handlePaymentFailed(ctx, db, event)
	case gateway.EventChargeRefunded:
		return s.handleChargeRefunded(ctx, db, event)
	default:
		logger.CtxInfo(ctx, "Ignoring unhandled webhook event type", "type", event.Type)
		return nil
	}
}

func (s *webhookService) handleCheckoutCompleted(ctx context.Context, db *gorm.DB, event *stripe.Event) error {
	session, err := gateway.DecodeCheckoutSession(event)
	if err != nil {
		return err
	}
	if session.Metadata[gateway.MetaMemberID] == "" {
		return apperrors.ErrMissingMetadata
	}

	_, err = s.payments.ApplyCompletedPayment(ctx, db, session.ID, session.Metadata,
		session.AmountTotal, event.Data.Raw, gateway.IntentID(session.PaymentIntent))
	return err
}

// handlePaymentSucceeded - вторичное подтверждение, участника не трогает.
// Checkout-транзакцию переводит в completed только завершение сессии (оно же ставит письма).
// Платеж не из checkout (например, платежная ссылка) становится нераспределенным балансом.
func (s *webhookService) handlePaymentSucceeded(ctx context.Context, db *gorm.DB, event *stripe.Event) error {
	intent, err := gateway.DecodePaymentIntent(event)
	if err != nil {
		return err
	}

	memberID, err := parseMemberID(intent.Metadata)
	if err != nil {
		logger.CtxDebug(ctx, "Payment intent without member_id, nothing to do", "payment_intent", intent.ID)
		return nil
	}

	existing, err := s.transactionRepo.FindByRefOrIntent(db, intent.ID)
	switch {
	case err == nil:
		if existing.Kind == models.TransactionKindCheckout {
			logger.CtxDebug(ctx, "Checkout payment intent succeeded, waiting for session completion",
				"payment_intent", intent.ID,
				"transaction", existing.GatewayRef,
				"status", existing.Status,
			)
			return nil
		}
		_, err = s.transactionRepo.RecordOrUpdateTransaction(db, repositories.TransactionUpdate{
			GatewayRef:      existing.GatewayRef,
			Status:          models.TransactionStatusCompleted,
			PaymentIntentID: intent.ID,
		})
		return err
	case !errors.Is(err, repositories.ErrTransactionNotFound):
		return err
	}

	if intent.Metadata[gateway.MetaSource] == gateway.SourceCheckout {
		logger.CtxDebug(ctx, "Checkout payment intent succeeded before session completion", "payment_intent", intent.ID)
		return nil
	}

	cents := intent.AmountReceived
	if cents == 0 {
		cents = intent.Amount
	}
	changed, err := s.transactionRepo.RecordOrUpdateTransaction(db, repositories.TransactionUpdate{
		GatewayRef:      intent.ID,
		Status:          models.TransactionStatusCompleted,
		RawPayload:      rawJSON(event.Data.Raw),
		MemberID:        &memberID,
		Amount:          gateway.CentsToAmount(cents),
		Currency:        string(intent.Currency),
		PaymentIntentID: intent.ID,
		Kind:            models.TransactionKindCredit,
	})
	if err != nil {
		return err
	}
	if changed {
		logger.CtxInfo(ctx, "Credit payment recorded", "payment_intent", intent.ID, "member_id", memberID, "amount", gateway.CentsToAmount(cents))
	}
	return nil
}

// handlePaymentFailed ищет транзакцию по id платежа. Сессия может быть создана раньше,
// чем шлюз завел платеж: тогда берется последняя ожидающая checkout-транзакция участника.
func (s *webhookService) handlePaymentFailed(ctx context.Context, db *gorm.DB, event *stripe.Event) error {
	intent, err := gateway.DecodePaymentIntent(event)
	if err != nil {
		return err
	}

	existing, err := s.transactionRepo.FindByRefOrIntent(db, intent.ID)
	if errors.Is(err, repositories.ErrTransactionNotFound) {
		existing, err = s.pendingCheckoutFor(db, intent)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			logger.CtxInfo(ctx, "Failed payment intent has no local transaction", "payment_intent", intent.ID)
			return nil
		}
		return err
	}

	changed, err := s.transactionRepo.RecordOrUpdateTransaction(db, repositories.TransactionUpdate{
		GatewayRef:      existing.GatewayRef,
		Status:          models.TransactionStatusFailed,
		ErrorMessage:    gateway.FailureMessage(intent),
		PaymentIntentID: intent.ID,
	})
	if err != nil {
		return err
	}
	if changed {
		logger.CtxInfo(ctx, "Payment marked failed",
			"transaction", existing.GatewayRef,
			"payment_intent", intent.ID,
			"reason", gateway.FailureMessage(intent),
		)
	}
	return nil
}

func (s *webhookService) pendingCheckoutFor(db *gorm.DB, intent *stripe.PaymentIntent) (*models.Transaction, error) {
	if intent.Metadata[gateway.MetaSource] != gateway.SourceCheckout {
		return nil, repositories.ErrTransactionNotFound
	}
	memberID, err := parseMemberID(intent.Metadata)
	if err != nil {
		return nil, repositories.ErrTransactionNotFound
	}
	return s.transactionRepo.FindLatestPendingCheckout(db, memberID)
}

func (s *webhookService) handleChargeRefunded(ctx context.Context, db *gorm.DB, event *stripe.Event) error {
	charge, err := gateway.DecodeCharge(event)
	if err != nil {
		return err
	}
	intentID := gateway.IntentID(charge.PaymentIntent)
	if intentID == "" {
		logger.CtxWarn(ctx, "Refunded charge has no payment intent", "charge", charge.ID)
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		existing, err := s.transactionRepo.FindByRefOrIntent(tx, intentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTransactionNotFound) {
				logger.CtxWarn(ctx, "Refund for unknown transaction", "payment_intent", intentID, "charge", charge.ID)
				return nil
			}
			return err
		}

		changed, err := s.transactionRepo.RecordOrUpdateTransaction(tx, repositories.TransactionUpdate{
			GatewayRef: existing.GatewayRef,
			Status:     models.TransactionStatusRefunded,
		})
		if err != nil || !changed || existing.MemberID == nil {
			return err
		}

		if s.refundPolicy == RefundPolicyRevoke {
			if err := s.memberRepo.RevokeMembership(tx, *existing.MemberID, utils.DateOf(s.now())); err != nil &&
				!errors.Is(err, repositories.ErrMemberNotFound) {
				return err
			}
			logger.CtxInfo(ctx, "Membership revoked after refund", "member_id", *existing.MemberID, "transaction", existing.GatewayRef)
			return nil
		}

		logger.CtxWarn(ctx, "Payment refunded, membership needs manual review",
			"member_id", *existing.MemberID,
			"transaction", existing.GatewayRef,
			"amount_refunded", gateway.CentsToAmount(charge.AmountRefunded),
		)
		return nil
	})
}

func handlerMessage(err error) string {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}
