package email

// Email представляет структуру email сообщения
type Email struct {
	From     string
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

// TemplateData представляет данные для шаблонов писем
type TemplateData map[string]interface{}

// Ключи шаблонов, которые умеет отправлять очередь
const (
	TemplateWelcome             = "welcome"
	TemplatePaymentConfirmation = "payment_confirmation"
	TemplateSponsorTaxReceipt   = "sponsor_tax_receipt"
	TemplateDonationTaxReceipt  = "donation_tax_receipt"
	TemplateMembershipExpiring  = "membership_expiring"
	TemplateMembershipExpired   = "membership_expired"
)

// KnownTemplates - допустимые ключи для постановки в очередь
var KnownTemplates = []string{
	TemplateWelcome,
	TemplatePaymentConfirmation,
	TemplateSponsorTaxReceipt,
	TemplateDonationTaxReceipt,
	TemplateMembershipExpiring,
	TemplateMembershipExpired,
}

func IsKnownTemplate(key string) bool {
	for _, k := range KnownTemplates {
		if k == key {
			return true
		}
	}
	return false
}
