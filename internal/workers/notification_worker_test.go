package workers_test

import (
	"context"
	"testing"
	"time"

	"membership_backend/internal/app"
	"membership_backend/internal/auth"
	"membership_backend/internal/email"
	"membership_backend/internal/gateway"
	"membership_backend/internal/models"
	"membership_backend/internal/services"
	"membership_backend/internal/utils"
	"membership_backend/internal/workers"
	"membership_backend/test/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newQueue(t *testing.T) (*gorm.DB, services.NotificationQueueService, *email.MockEmailProvider) {
	t.Helper()
	cfg := helpers.TestConfig()
	renderer, err := email.NewDefaultTemplateManager()
	require.NoError(t, err)
	mailer := email.NewMockEmailProvider()

	container := app.NewServiceContainer(cfg, &app.Dependencies{
		Gateway:       gateway.NewMemoryClient(cfg.Gateway.WebhookSecret),
		EmailProvider: mailer,
		Renderer:      renderer,
		Tokens:        auth.NewTokenManager(cfg.JWT.Secret),
	})
	return helpers.NewTestDB(t), container.NotificationQueueService, mailer
}

func TestNotificationWorker_TickSendsRemindersOncePerDay(t *testing.T) {
	db, queue, mailer := newQueue(t)
	today := utils.DateOf(time.Now())
	member := helpers.CreateMember(t, db, helpers.WithMembership(models.MembershipTypeBasic, today.AddDate(0, 0, 3)))

	worker := workers.NewNotificationWorker(db, queue, workers.NotificationWorkerConfig{BatchSize: 10})
	worker.Tick(context.Background())

	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{member.Email}, sent[0].To)
	assert.Contains(t, sent[0].Subject, "3 day(s)")

	// второй проход в тот же день напоминаний не добавляет
	worker.Tick(context.Background())
	assert.Len(t, mailer.Sent(), 1)
}

func TestNotificationWorker_RequeueIsOptIn(t *testing.T) {
	tests := []struct {
		name        string
		maxAttempts int
		wantStatus  models.EmailStatus
	}{
		{"выключено", 0, models.EmailStatusFailed},
		{"включено", 3, models.EmailStatusSent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, queue, mailer := newQueue(t)
			mailer.FailFor["flaky@test.org"] = assert.AnError

			queued, err := queue.Enqueue(db, services.EnqueueRequest{
				RecipientEmail: "flaky@test.org",
				TemplateKey:    email.TemplateMembershipExpired,
			})
			require.NoError(t, err)

			worker := workers.NewNotificationWorker(db, queue, workers.NotificationWorkerConfig{BatchSize: 10, MaxAttempts: tt.maxAttempts})
			worker.Tick(context.Background())

			delete(mailer.FailFor, "flaky@test.org")
			worker.Tick(context.Background())

			var row models.QueuedEmail
			require.NoError(t, db.First(&row, queued.ID).Error)
			assert.Equal(t, tt.wantStatus, row.Status)
		})
	}
}
