package algorithms

const (
	taxFirstBracket        = 250.00
	taxFirstBracketRate    = 0.80
	taxAboveRate           = 0.40
	taxAboveRateRecurring  = 0.45
	sponsorReceiptMinimum  = 40.00
	sponsorDeductibleStart = BasicAnnualFee
)

type TaxBreakdown struct {
	First250 float64 `json:"first_250"` // вычет с первых 250 евро
	Above250 float64 `json:"above_250"` // вычет с остатка
}

type TaxDeduction struct {
	DeductionAmount      float64      `json:"deduction_amount"`
	NetCost              float64      `json:"net_cost"`
	EffectiveDiscountPct float64      `json:"effective_discount_pct"`
	Breakdown            TaxBreakdown `json:"breakdown"`
}

// ComputeTaxDeduction считает налоговый вычет за пожертвование:
// 80% с первых 250 евро, 40% с остатка (45% для повторного донора).
func ComputeTaxDeduction(amount float64, isRecurringDonor bool) TaxDeduction {
	if amount <= 0 {
		return TaxDeduction{}
	}

	first := amount
	if first > taxFirstBracket {
		first = taxFirstBracket
	}
	above := amount - first

	rate := taxAboveRate
	if isRecurringDonor {
		rate = taxAboveRateRecurring
	}

	firstDeduction := first * taxFirstBracketRate
	aboveDeduction := above * rate
	deduction := Round2(firstDeduction + aboveDeduction)

	return TaxDeduction{
		DeductionAmount:      deduction,
		NetCost:              Round2(amount - deduction),
		EffectiveDiscountPct: round1(deduction / amount * 100),
		Breakdown: TaxBreakdown{
			First250: Round2(firstDeduction),
			Above250: Round2(aboveDeduction),
		},
	}
}

// SponsorDeductibleAmount - часть спонсорского взноса сверх базового, которая считается пожертвованием
func SponsorDeductibleAmount(amount float64) float64 {
	if amount <= sponsorDeductibleStart {
		return 0
	}
	return Round2(amount - sponsorDeductibleStart)
}

// NeedsSponsorTaxReceipt - квитанция положена спонсору с взносом больше 40 евро
func NeedsSponsorTaxReceipt(membershipType string, amount float64) bool {
	return membershipType == "sponsor" && toCents(amount) > toCents(sponsorReceiptMinimum)
}
