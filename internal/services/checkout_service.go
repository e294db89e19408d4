package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"membership_backend/internal/algorithms"
	"membership_backend/internal/gateway"
	"membership_backend/internal/logger"
	"membership_backend/internal/models"
	"membership_backend/internal/repositories"
	"membership_backend/internal/services/dto"
	"membership_backend/internal/utils"
	"membership_backend/pkg/apperrors"

	"gorm.io/gorm"
)

type CheckoutSettings struct {
	Currency   string
	SuccessURL string
	CancelURL  string
}

type CheckoutService interface {
	CreateCheckout(ctx context.Context, db *gorm.DB, memberID uint, req *dto.CreateCheckoutRequest) (*dto.CheckoutResponse, error)
	// ConfirmCheckout - подтверждение после редиректа из шлюза. sessionMemberID - участник из локальной сессии, если есть.
	ConfirmCheckout(ctx context.Context, db *gorm.DB, sessionID string, sessionMemberID *uint) (*dto.ConfirmCheckoutResponse, error)
}

type checkoutService struct {
	gateway         gateway.Client
	memberRepo      repositories.MemberRepository
	transactionRepo repositories.TransactionRepository
	payments        PaymentService
	settings        CheckoutSettings
	now             func() time.Time
}

func NewCheckoutService(
	gatewayClient gateway.Client,
	memberRepo repositories.MemberRepository,
	transactionRepo repositories.TransactionRepository,
	payments PaymentService,
	settings CheckoutSettings,
) CheckoutService {
	return &checkoutService{
		gateway:         gatewayClient,
		memberRepo:      memberRepo,
		transactionRepo: transactionRepo,
		payments:        payments,
		settings:        settings,
		now:             time.Now,
	}
}

func (s *checkoutService) CreateCheckout(ctx context.Context, db *gorm.DB, memberID uint, req *dto.CreateCheckoutRequest) (*dto.CheckoutResponse, error) {
	member, err := s.memberRepo.FindByID(db, memberID)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return nil, apperrors.ErrMemberNotFound
		}
		return nil, apperrors.DatabaseError(err)
	}

	amount, err := checkoutAmount(models.MembershipType(req.MembershipType), req.Amount)
	if err != nil {
		return nil, err
	}
	membershipType := algorithms.MembershipTypeForAmount(amount)

	today := utils.DateOf(s.now())
	start := today
	if member.IsActiveOn(today) {
		start = utils.DateOf(*member.MembershipEndDate).AddDate(0, 0, 1)
	}
	end := utils.MembershipYearEnd(start)

	session, err := s.gateway.CreateCheckoutSession(ctx, gateway.CheckoutParams{
		MemberID:       member.ID,
		MembershipType: string(membershipType),
		Amount:         amount,
		Currency:       s.settings.Currency,
		StartDate:      start,
		EndDate:        end,
		SuccessURL:     s.settings.SuccessURL,
		CancelURL:      s.settings.CancelURL,
		CustomerEmail:  member.Email,
	})
	if err != nil {
		logger.CtxWithError(ctx, "Failed to create checkout session", err, "member_id", member.ID)
		return nil, apperrors.ErrGatewayUnavailable.WithError(err)
	}

	// id платежа есть не всегда: шлюз может завести его позже, тогда отказ
	// найдет транзакцию по участнику
	if _, err := s.transactionRepo.RecordOrUpdateTransaction(db, repositories.TransactionUpdate{
		GatewayRef:      session.ID,
		Status:          models.TransactionStatusPending,
		RawPayload:      rawJSON(session.Raw),
		MemberID:        &member.ID,
		Amount:          amount,
		Currency:        s.settings.Currency,
		Kind:            models.TransactionKindCheckout,
		PaymentIntentID: session.PaymentIntent,
	}); err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	logger.CtxInfo(ctx, "Checkout session created",
		"session_id", session.ID,
		"membership_type", membershipType,
		"amount", amount,
	)

	return &dto.CheckoutResponse{
		SessionID:      session.ID,
		CheckoutURL:    session.URL,
		Amount:         amount,
		Currency:       s.settings.Currency,
		MembershipType: string(membershipType),
	}, nil
}

// checkoutAmount проверяет запрошенный тип и сумму: минимум 20, спонсору сумма обязательна
func checkoutAmount(requested models.MembershipType, amount *float64) (float64, error) {
	switch requested {
	case models.MembershipTypeBasic:
		if amount == nil {
			return algorithms.BasicAnnualFee, nil
		}
	case models.MembershipTypeSponsor:
		if amount == nil {
			return 0, apperrors.ErrSponsorAmountRequired
		}
	default:
		return 0, apperrors.ErrMembershipNotPurchasable
	}

	value := algorithms.Round2(*amount)
	if value < algorithms.MinimumPayment {
		return 0, apperrors.ErrAmountBelowMinimum.WithDetails(map[string]float64{"minimum": algorithms.MinimumPayment})
	}
	return value, nil
}

func (s *checkoutService) ConfirmCheckout(ctx context.Context, db *gorm.DB, sessionID string, sessionMemberID *uint) (*dto.ConfirmCheckoutResponse, error) {
	session, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		logger.CtxWithError(ctx, "Failed to fetch checkout session", err, "session_id", sessionID)
		return nil, apperrors.ErrGatewayUnavailable.WithError(err)
	}
	if session == nil {
		return nil, apperrors.ErrCheckoutSessionNotFound
	}
	if !session.IsPaid() {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("payment not completed, status: %s", session.PaymentStatus))
	}

	// metadata сессии главнее локальной сессии браузера
	if sessionMemberID != nil {
		if metaID := session.Metadata[gateway.MetaMemberID]; metaID != strconv.FormatUint(uint64(*sessionMemberID), 10) {
			logger.CtxSecurityAudit(ctx, "Checkout confirmed by a different member",
				"session_id", session.ID,
				"session_member_id", *sessionMemberID,
				"metadata_member_id", metaID,
			)
		}
	}

	outcome, err := s.payments.ApplyCompletedPayment(ctx, db, session.ID, session.Metadata,
		session.AmountTotal, session.Raw, session.PaymentIntent)
	if err != nil {
		return nil, err
	}

	return &dto.ConfirmCheckoutResponse{
		MembershipType:      string(outcome.MembershipType),
		Amount:              outcome.Amount,
		MembershipStartDate: utils.FormatDate(outcome.StartDate),
		MembershipEndDate:   utils.FormatDate(outcome.EndDate),
	}, nil
}
