package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"membership_backend/internal/email"
	"membership_backend/internal/logger"
	"membership_backend/internal/models"
	"membership_backend/internal/repositories"
	"membership_backend/internal/utils"
	"membership_backend/pkg/apperrors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EnqueueRequest - письмо для постановки в очередь
type EnqueueRequest struct {
	RecipientEmail string
	RecipientName  string
	TemplateKey    string
	TemplateVars   map[string]interface{}
	MemberID       *uint
	Priority       models.EmailPriority
}

type DrainResult struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"` // забраны параллельным drain
}

type NotificationQueueService interface {
	Enqueue(db *gorm.DB, req EnqueueRequest) (*models.QueuedEmail, error)
	Drain(ctx context.Context, db *gorm.DB, maxCount int) (*DrainResult, error)
	RequeueFailed(db *gorm.DB, maxAttempts int) (int64, error)
	CheckExpiringMemberships(ctx context.Context, db *gorm.DB, today time.Time) (int, error)
	Stats(db *gorm.DB) (map[models.EmailStatus]int64, error)
}

type notificationQueueService struct {
	queueRepo    repositories.EmailQueueRepository
	memberRepo   repositories.MemberRepository
	reminderRepo repositories.ReminderRepository
	provider     email.Provider
	renderer     email.TemplateRenderer
}

func NewNotificationQueueService(
	queueRepo repositories.EmailQueueRepository,
	memberRepo repositories.MemberRepository,
	reminderRepo repositories.ReminderRepository,
	provider email.Provider,
	renderer email.TemplateRenderer,
) NotificationQueueService {
	return &notificationQueueService{
		queueRepo:    queueRepo,
		memberRepo:   memberRepo,
		reminderRepo: reminderRepo,
		provider:     provider,
		renderer:     renderer,
	}
}

// Enqueue только вставляет строку, отправка - в Drain
func (s *notificationQueueService) Enqueue(db *gorm.DB, req EnqueueRequest) (*models.QueuedEmail, error) {
	if strings.TrimSpace(req.RecipientEmail) == "" {
		return nil, apperrors.NewBadRequestError("recipient email is required")
	}
	if !email.IsKnownTemplate(req.TemplateKey) {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("unknown email template: %s", req.TemplateKey))
	}
	if req.Priority == "" {
		req.Priority = models.EmailPriorityNormal
	}
	if !req.Priority.IsValid() {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("invalid email priority: %s", req.Priority))
	}

	vars := datatypes.JSONMap{}
	for k, v := range req.TemplateVars {
		vars[k] = v
	}

	queued := &models.QueuedEmail{
		RecipientEmail: req.RecipientEmail,
		RecipientName:  req.RecipientName,
		TemplateKey:    req.TemplateKey,
		TemplateVars:   vars,
		MemberID:       req.MemberID,
		Priority:       req.Priority,
		Status:         models.EmailStatusQueued,
	}
	if err := s.queueRepo.Create(db, queued); err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return queued, nil
}

// Drain отправляет до maxCount писем: high, normal, low, затем FIFO.
// Каждая строка сначала захватывается (queued -> sending), поэтому параллельные drain не шлют дважды.
// Повторов внутри Drain нет: ошибка отправки переводит письмо в failed.
func (s *notificationQueueService) Drain(ctx context.Context, db *gorm.DB, maxCount int) (*DrainResult, error) {
	result := &DrainResult{}
	if maxCount <= 0 {
		return result, nil
	}

	emails, err := s.queueRepo.FindQueued(db, maxCount)
	if err != nil {
		return result, apperrors.DatabaseError(err)
	}

	for i := range emails {
		if ctx.Err() != nil {
			break
		}
		queued := &emails[i]

		claimed, err := s.queueRepo.Claim(db, queued.ID)
		if err != nil {
			return result, apperrors.DatabaseError(err)
		}
		if !claimed {
			result.Skipped++
			continue
		}

		if sendErr := s.send(ctx, queued); sendErr != nil {
			logger.CtxWarn(ctx, "Email send failed",
				"email_id", queued.ID,
				"template", queued.TemplateKey,
				"error", sendErr.Error(),
			)
			if err := s.queueRepo.MarkFailed(db, queued.ID, sendErr.Error()); err != nil {
				return result, apperrors.DatabaseError(err)
			}
			result.Failed++
			continue
		}

		if err := s.queueRepo.MarkSent(db, queued.ID, time.Now()); err != nil {
			return result, apperrors.DatabaseError(err)
		}
		result.Sent++
	}

	if result.Sent+result.Failed > 0 {
		logger.CtxInfo(ctx, "Email queue drained", "sent", result.Sent, "failed", result.Failed, "skipped", result.Skipped)
	}
	return result, nil
}

func (s *notificationQueueService) send(ctx context.Context, queued *models.QueuedEmail) error {
	data := email.TemplateData{}
	for k, v := range queued.TemplateVars {
		data[k] = v
	}
	if _, ok := data["name"]; !ok {
		data["name"] = queued.RecipientName
	}

	subject, body, err := s.renderer.Render(queued.TemplateKey, data)
	if err != nil {
		return err
	}

	return s.provider.Send(ctx, &email.Email{
		To:       []string{queued.RecipientEmail},
		Subject:  subject,
		HTMLBody: body,
	})
}

// RequeueFailed возвращает в очередь упавшие письма, у которых attempts < maxAttempts.
// maxAttempts <= 0 - переотправка выключена.
func (s *notificationQueueService) RequeueFailed(db *gorm.DB, maxAttempts int) (int64, error) {
	if maxAttempts <= 0 {
		return 0, nil
	}
	n, err := s.queueRepo.RequeueFailed(db, maxAttempts)
	if err != nil {
		return 0, apperrors.DatabaseError(err)
	}
	return n, nil
}

// reminderThreshold - порог напоминания для числа оставшихся дней, false если напоминать рано
func reminderThreshold(daysLeft int) (models.ReminderThreshold, bool) {
	switch {
	case daysLeft < 0:
		return models.ReminderThresholdExpired, true
	case daysLeft <= 1:
		return models.ReminderThreshold1d, true
	case daysLeft <= 3:
		return models.ReminderThreshold3d, true
	case daysLeft <= 7:
		return models.ReminderThreshold7d, true
	}
	return "", false
}

// CheckExpiringMemberships ставит в очередь напоминания о продлении.
// Каждый порог срабатывает один раз на дату окончания. Возвращает число новых писем.
func (s *notificationQueueService) CheckExpiringMemberships(ctx context.Context, db *gorm.DB, today time.Time) (int, error) {
	today = utils.DateOf(today)

	members, err := s.memberRepo.FindPaidWithEndDate(db)
	if err != nil {
		return 0, apperrors.DatabaseError(err)
	}

	enqueued := 0
	for i := range members {
		member := &members[i]
		endDate := utils.DateOf(*member.MembershipEndDate)
		daysLeft := utils.DaysBetween(today, endDate)

		threshold, ok := reminderThreshold(daysLeft)
		if !ok {
			continue
		}

		var sent bool
		err := db.Transaction(func(tx *gorm.DB) error {
			inserted, err := s.reminderRepo.InsertIfAbsent(tx, &models.MembershipReminder{
				MemberID:          member.ID,
				Threshold:         threshold,
				MembershipEndDate: endDate,
			})
			if err != nil {
				return err
			}

			if threshold == models.ReminderThresholdExpired {
				if _, err := s.memberRepo.MarkOverdue(tx, member.ID); err != nil {
					return err
				}
			}
			if !inserted {
				return nil
			}

			req := EnqueueRequest{
				RecipientEmail: member.Email,
				RecipientName:  member.Name,
				TemplateKey:    email.TemplateMembershipExpiring,
				MemberID:       &member.ID,
				Priority:       models.EmailPriorityNormal,
				TemplateVars: map[string]interface{}{
					"name":                member.Name,
					"membership_type":     string(member.MembershipType),
					"membership_end_date": utils.FormatDate(endDate),
					"days_left":           daysLeft,
				},
			}
			if threshold == models.ReminderThresholdExpired {
				req.TemplateKey = email.TemplateMembershipExpired
				delete(req.TemplateVars, "days_left")
			}
			if _, err := s.Enqueue(tx, req); err != nil {
				return err
			}
			sent = true
			return nil
		})
		if err != nil {
			logger.CtxWithError(ctx, "Failed to process membership reminder", err, "member_id", member.ID)
			return enqueued, apperrors.DatabaseError(err)
		}
		if sent {
			enqueued++
		}
	}

	if enqueued > 0 {
		logger.CtxInfo(ctx, "Membership reminders enqueued", "count", enqueued)
	}
	return enqueued, nil
}

func (s *notificationQueueService) Stats(db *gorm.DB) (map[models.EmailStatus]int64, error) {
	stats, err := s.queueRepo.CountByStatus(db)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return stats, nil
}
