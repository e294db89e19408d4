package email

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTemplates_RenderAllKnown(t *testing.T) {
	tm, err := NewDefaultTemplateManager()
	require.NoError(t, err)

	data := TemplateData{
		"name":                  "Alice",
		"membership_type":       "sponsor",
		"amount":                100.0,
		"membership_start_date": "2026-01-01",
		"membership_end_date":   "2026-12-31",
		"deductible_amount":     80.0,
		"deduction_amount":      75.0,
		"net_cost":              25.0,
		"fiscal_year":           2026,
		"days_left":             3,
	}

	for _, key := range []string{
		TemplateWelcome, TemplatePaymentConfirmation, TemplateSponsorTaxReceipt,
		TemplateDonationTaxReceipt, TemplateMembershipExpiring, TemplateMembershipExpired,
	} {
		t.Run(key, func(t *testing.T) {
			require.True(t, IsKnownTemplate(key))
			require.True(t, tm.Has(key))

			subject, body, err := tm.Render(key, data)
			require.NoError(t, err)
			assert.NotEmpty(t, subject)
			assert.Contains(t, body, "Alice")
		})
	}

	subject, body, err := tm.Render(TemplatePaymentConfirmation, data)
	require.NoError(t, err)
	assert.Equal(t, "Payment received: 100.00 EUR", subject)
	assert.Contains(t, body, "2026-12-31")
}

func TestRender_EscapesAndUnknown(t *testing.T) {
	tm, err := NewDefaultTemplateManager()
	require.NoError(t, err)

	_, body, err := tm.Render(TemplateWelcome, TemplateData{"name": "<script>x</script>"})
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")

	_, _, err = tm.Render("newsletter", TemplateData{})
	assert.Error(t, err)
}

func TestAddTemplate_RequiresSubjectAndBody(t *testing.T) {
	tm := NewTemplateManager()
	assert.Error(t, tm.AddTemplate("broken", `{{define "body"}}only body{{end}}`))
	assert.Error(t, tm.AddTemplate("invalid", `{{define "subject"}}{{.x`))
	assert.NoError(t, tm.AddTemplate("ok", `{{define "subject"}}Hi{{end}}{{define "body"}}Body{{end}}`))
	assert.ElementsMatch(t, []string{"ok"}, tm.TemplateNames())
}

func TestLoadTemplates_OverridesEmbedded(t *testing.T) {
	dir := t.TempDir()
	override := `{{define "subject"}}Bienvenue{{end}}{{define "body"}}Bonjour {{.name}}{{end}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "welcome.html"), []byte(override), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	tm, err := NewDefaultTemplateManager()
	require.NoError(t, err)
	require.NoError(t, tm.LoadTemplates(dir))

	subject, body, err := tm.Render(TemplateWelcome, TemplateData{"name": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "Bienvenue", subject)
	assert.Equal(t, "Bonjour Alice", body)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "20.00", formatMoney(20.0))
	assert.Equal(t, "20.00", formatMoney(20))
	assert.Equal(t, "12.50", formatMoney("12.50"))
}
