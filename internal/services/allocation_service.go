package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"membership_backend/internal/algorithms"
	"membership_backend/internal/email"
	"membership_backend/internal/logger"
	"membership_backend/internal/models"
	"membership_backend/internal/repositories"
	"membership_backend/internal/services/dto"
	"membership_backend/internal/utils"
	"membership_backend/pkg/apperrors"

	"gorm.io/gorm"
)

type AllocationService interface {
	GetAllocationSummary(ctx context.Context, db *gorm.DB, memberID uint) (*dto.AllocationSummaryResponse, error)
	ApplyAllocation(ctx context.Context, db *gorm.DB, memberID uint, optionType string, years int) (*dto.ApplyAllocationResponse, error)
}

type allocationService struct {
	memberRepo      repositories.MemberRepository
	transactionRepo repositories.TransactionRepository
	allocationRepo  repositories.AllocationRepository
	queue           NotificationQueueService
	now             func() time.Time
}

func NewAllocationService(
	memberRepo repositories.MemberRepository,
	transactionRepo repositories.TransactionRepository,
	allocationRepo repositories.AllocationRepository,
	queue NotificationQueueService,
) AllocationService {
	return &allocationService{
		memberRepo:      memberRepo,
		transactionRepo: transactionRepo,
		allocationRepo:  allocationRepo,
		queue:           queue,
		now:             time.Now,
	}
}

type balances struct {
	total       float64
	allocated   float64
	unallocated float64
}

func (s *allocationService) balances(db *gorm.DB, memberID uint) (*balances, error) {
	total, err := s.transactionRepo.SumCompletedForMember(db, memberID)
	if err != nil {
		return nil, err
	}
	allocated, err := s.allocationRepo.SumAllocated(db, memberID)
	if err != nil {
		return nil, err
	}

	b := &balances{
		total:     algorithms.Round2(total),
		allocated: algorithms.Round2(allocated),
	}
	b.unallocated = algorithms.Round2(b.total - b.allocated)
	if b.unallocated < 0 {
		b.unallocated = 0
	}
	return b, nil
}

func (s *allocationService) options(db *gorm.DB, member *models.Member, today time.Time) (*balances, []algorithms.AllocationOption, bool, error) {
	b, err := s.balances(db, member.ID)
	if err != nil {
		return nil, nil, false, err
	}
	recurring, err := s.allocationRepo.HasDonationBefore(db, member.ID, today.Year())
	if err != nil {
		return nil, nil, false, err
	}

	options := algorithms.BuildAllocationOptions(b.unallocated, algorithms.MembershipSnapshot{
		Type:              member.MembershipType,
		LastPaymentAmount: member.PaymentAmount,
		IsRecurringDonor:  recurring,
	})
	return b, options, recurring, nil
}

func (s *allocationService) GetAllocationSummary(ctx context.Context, db *gorm.DB, memberID uint) (*dto.AllocationSummaryResponse, error) {
	member, err := s.memberRepo.FindByID(db, memberID)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return nil, apperrors.ErrMemberNotFound
		}
		return nil, apperrors.DatabaseError(err)
	}

	b, options, _, err := s.options(db, member, utils.DateOf(s.now()))
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	return &dto.AllocationSummaryResponse{
		TotalBalance:       b.total,
		AllocatedBalance:   b.allocated,
		UnallocatedBalance: b.unallocated,
		MembershipType:     string(member.MembershipType),
		MembershipEndDate:  utils.FormatDatePtr(member.MembershipEndDate),
		Options:            options,
	}, nil
}

// ApplyAllocation заново считает варианты внутри транзакции: устаревший запрос
// после того, как баланс уже потрачен, отклоняется.
func (s *allocationService) ApplyAllocation(ctx context.Context, db *gorm.DB, memberID uint, optionType string, years int) (*dto.ApplyAllocationResponse, error) {
	today := utils.DateOf(s.now())
	var response *dto.ApplyAllocationResponse

	err := db.Transaction(func(tx *gorm.DB) error {
		member, err := s.memberRepo.FindByIDForUpdate(tx, memberID)
		if err != nil {
			if errors.Is(err, repositories.ErrMemberNotFound) {
				return apperrors.ErrMemberNotFound
			}
			return apperrors.DatabaseError(err)
		}

		_, options, recurring, err := s.options(tx, member, today)
		if err != nil {
			return apperrors.DatabaseError(err)
		}

		option, ok := algorithms.FindOption(options, optionType)
		if !ok {
			return apperrors.ErrAllocationUnavailable
		}

		switch option.Type {
		case algorithms.OptionMembershipYears:
			response, err = s.extendMembership(tx, member, option, years, today)
		case algorithms.OptionDonation:
			response, err = s.donate(tx, member, option, recurring, today)
		default:
			err = apperrors.ErrAllocationUnavailable
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.CtxInfo(ctx, "Balance allocated", "member_id", memberID, "type", optionType, "years", years)
	return response, nil
}

func (s *allocationService) extendMembership(tx *gorm.DB, member *models.Member, option algorithms.AllocationOption, years int, today time.Time) (*dto.ApplyAllocationResponse, error) {
	if years == 0 {
		years = option.Years
	}
	if years < 1 || years > option.Years {
		return nil, apperrors.ErrAllocationUnavailable.WithDetails(map[string]int{"max_years": option.Years})
	}

	base := today
	if member.MembershipEndDate != nil && member.MembershipEndDate.After(today) {
		base = utils.DateOf(*member.MembershipEndDate)
	}
	newEnd := base.AddDate(years, 0, 0)

	if err := s.memberRepo.SetMembershipEndDate(tx, member.ID, newEnd); err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if _, err := s.allocationRepo.CreateAllocation(tx, &models.BalanceAllocation{
		MemberID: member.ID,
		Kind:     models.AllocationKindMembershipYears,
		Amount:   algorithms.Round2(float64(years) * option.AnnualPrice),
		Years:    years,
	}); err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	return &dto.ApplyAllocationResponse{
		Success:           true,
		Message:           fmt.Sprintf("Membership extended by %d year(s)", years),
		MembershipEndDate: utils.FormatDate(newEnd),
	}, nil
}

func (s *allocationService) donate(tx *gorm.DB, member *models.Member, option algorithms.AllocationOption, recurring bool, today time.Time) (*dto.ApplyAllocationResponse, error) {
	deduction := algorithms.ComputeTaxDeduction(option.Cost, recurring)
	donation := &models.Donation{
		MemberID:         member.ID,
		Amount:           option.Cost,
		DeductionAmount:  deduction.DeductionAmount,
		NetCost:          deduction.NetCost,
		IsRecurringDonor: recurring,
		FiscalYear:       today.Year(),
	}
	if err := s.allocationRepo.CreateDonation(tx, donation); err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if _, err := s.allocationRepo.CreateAllocation(tx, &models.BalanceAllocation{
		MemberID: member.ID,
		Kind:     models.AllocationKindDonation,
		Amount:   option.Cost,
	}); err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	if _, err := s.queue.Enqueue(tx, EnqueueRequest{
		RecipientEmail: member.Email,
		RecipientName:  member.Name,
		TemplateKey:    email.TemplateDonationTaxReceipt,
		MemberID:       &member.ID,
		Priority:       models.EmailPriorityNormal,
		TemplateVars: map[string]interface{}{
			"name":             member.Name,
			"amount":           donation.Amount,
			"deduction_amount": donation.DeductionAmount,
			"net_cost":         donation.NetCost,
			"fiscal_year":      donation.FiscalYear,
		},
	}); err != nil {
		return nil, err
	}

	return &dto.ApplyAllocationResponse{
		Success: true,
		Message: fmt.Sprintf("Donation of %.2f EUR recorded", donation.Amount),
		Donation: &dto.DonationResponse{
			ID:              donation.ID,
			Amount:          donation.Amount,
			DeductionAmount: donation.DeductionAmount,
			NetCost:         donation.NetCost,
			FiscalYear:      donation.FiscalYear,
		},
	}, nil
}
