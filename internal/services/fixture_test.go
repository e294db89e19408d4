package services_test

import (
	"context"
	"testing"

	"membership_backend/internal/app"
	"membership_backend/internal/auth"
	"membership_backend/internal/config"
	"membership_backend/internal/email"
	"membership_backend/internal/gateway"
	"membership_backend/internal/services"
	"membership_backend/test/helpers"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	cfg    *config.Config
	gw     *gateway.MemoryClient
	mailer *email.MockEmailProvider
	svc    *services.ServiceContainer
}

func newFixture(t *testing.T, configure ...func(*config.Config)) *fixture {
	t.Helper()

	cfg := helpers.TestConfig()
	for _, fn := range configure {
		fn(cfg)
	}

	renderer, err := email.NewDefaultTemplateManager()
	require.NoError(t, err)

	f := &fixture{
		db:     helpers.NewTestDB(t),
		cfg:    cfg,
		gw:     gateway.NewMemoryClient(cfg.Gateway.WebhookSecret),
		mailer: email.NewMockEmailProvider(),
	}
	f.svc = app.NewServiceContainer(cfg, &app.Dependencies{
		Gateway:       f.gw,
		EmailProvider: f.mailer,
		Renderer:      renderer,
		Tokens:        auth.NewTokenManager(cfg.JWT.Secret),
	})
	return f
}

// paidSession создает оплаченную сессию на 2026 год
func (f *fixture) paidSession(t *testing.T, memberID uint, membershipType string, amount float64) string {
	t.Helper()
	session, err := f.gw.CreateCheckoutSession(context.Background(), gateway.CheckoutParams{
		MemberID:       memberID,
		MembershipType: membershipType,
		Amount:         amount,
		Currency:       "eur",
		StartDate:      helpers.Date(2026, 1, 1),
		EndDate:        helpers.Date(2026, 12, 31),
	})
	require.NoError(t, err)
	require.NoError(t, f.gw.MarkPaid(session.ID))
	return session.ID
}

func (f *fixture) completedEvent(t *testing.T, eventID, sessionID string) []byte {
	t.Helper()
	payload, err := f.gw.CompletedEvent(eventID, sessionID)
	require.NoError(t, err)
	return payload
}

func (f *fixture) deliver(payload []byte) (*services.WebhookResult, error) {
	return f.svc.WebhookService.HandleWebhook(context.Background(), f.db, payload, f.gw.SignedHeader(payload))
}

// sentTo - получатели отправленных писем в порядке отправки
func (f *fixture) sentTo() []string {
	out := make([]string, 0)
	for _, e := range f.mailer.Sent() {
		out = append(out, e.To...)
	}
	return out
}
