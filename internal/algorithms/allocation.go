package algorithms

import (
	"fmt"

	"membership_backend/internal/models"
)

const (
	// BasicAnnualFee - базовый годовой взнос и минимальная сумма оплаты
	BasicAnnualFee = 20.00
	MinimumPayment = BasicAnnualFee
)

const (
	OptionMembershipYears = "membership_years"
	OptionDonation        = "donation"
)

// MembershipSnapshot - то, что калькулятору нужно знать об участнике
type MembershipSnapshot struct {
	Type              models.MembershipType
	LastPaymentAmount float64
	IsRecurringDonor  bool
}

type AllocationOption struct {
	Type         string        `json:"type"`
	Cost         float64       `json:"cost"`
	Years        int           `json:"years,omitempty"`
	AnnualPrice  float64       `json:"annual_price,omitempty"`
	Description  string        `json:"description"`
	TaxDeduction *TaxDeduction `json:"tax_deduction,omitempty"`
}

// MembershipTypeForAmount: до 20 евро включительно - basic, больше - sponsor
func MembershipTypeForAmount(amount float64) models.MembershipType {
	if toCents(amount) <= toCents(BasicAnnualFee) {
		return models.MembershipTypeBasic
	}
	return models.MembershipTypeSponsor
}

// AnnualPrice - цена года для текущего типа. Спонсор продлевается по своему последнему взносу.
func AnnualPrice(t models.MembershipType, lastPaymentAmount float64) float64 {
	if t == models.MembershipTypeSponsor && toCents(lastPaymentAmount) > toCents(BasicAnnualFee) {
		return Round2(lastPaymentAmount)
	}
	return BasicAnnualFee
}

// IsSponsorEligible - пожертвование доступно спонсорам и пожизненным участникам
func IsSponsorEligible(t models.MembershipType) bool {
	return t == models.MembershipTypeSponsor || t == models.MembershipTypeLifetime
}

// BuildAllocationOptions строит варианты распределения баланса.
// Стоимость любого варианта не превышает баланс.
func BuildAllocationOptions(balance float64, m MembershipSnapshot) []AllocationOption {
	balance = Round2(balance)
	if balance <= 0 {
		return []AllocationOption{}
	}

	options := make([]AllocationOption, 0, 2)

	if m.Type != models.MembershipTypeLifetime {
		price := AnnualPrice(m.Type, m.LastPaymentAmount)
		if years := int(toCents(balance) / toCents(price)); years >= 1 {
			options = append(options, AllocationOption{
				Type:        OptionMembershipYears,
				Cost:        Round2(float64(years) * price),
				Years:       years,
				AnnualPrice: price,
				Description: fmt.Sprintf("Extend membership by %d year(s) at %.2f EUR/year", years, price),
			})
		}
	}

	if IsSponsorEligible(m.Type) {
		deduction := ComputeTaxDeduction(balance, m.IsRecurringDonor)
		options = append(options, AllocationOption{
			Type:         OptionDonation,
			Cost:         balance,
			Description:  fmt.Sprintf("Donate %.2f EUR (estimated tax deduction %.2f EUR)", balance, deduction.DeductionAmount),
			TaxDeduction: &deduction,
		})
	}

	return options
}

// FindOption ищет вариант по типу
func FindOption(options []AllocationOption, optionType string) (AllocationOption, bool) {
	for _, o := range options {
		if o.Type == optionType {
			return o, true
		}
	}
	return AllocationOption{}, false
}
