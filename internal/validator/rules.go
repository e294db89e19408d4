package validator

import (
	"log"

	"membership_backend/internal/algorithms"
	"membership_backend/internal/models"

	"github.com/go-playground/validator/v10"
)

// ruleMessages - тексты ошибок собственных правил
var ruleMessages = map[string]string{
	"is-membership-type": "Must be one of: free, basic, sponsor, lifetime",
	"is-allocation-type": "Must be one of: membership_years, donation",
}

func registerCustomRules(v *validator.Validate) {
	rules := map[string]validator.Func{
		"is-membership-type": validateMembershipType,
		"is-allocation-type": validateAllocationType,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			log.Fatalf("failed to register validation rule %q: %v", tag, err)
		}
	}
}

// Пустые значения пропускаются: обязательность задает 'required'

func validateMembershipType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "" || models.MembershipType(value).IsValid()
}

func validateAllocationType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "", algorithms.OptionMembershipYears, algorithms.OptionDonation:
		return true
	}
	return false
}
