package repositories

import (
	"errors"
	"time"

	"membership_backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrWebhookEventNotFound = errors.New("webhook event not found")
)

type WebhookEventRepository interface {
	// InsertIfAbsent - атомарная вставка по id события, inserted=false если событие уже было
	InsertIfAbsent(db *gorm.DB, event *models.WebhookEvent) (bool, error)
	FindByID(db *gorm.DB, id string) (*models.WebhookEvent, error)
	MarkProcessed(db *gorm.DB, id string, at time.Time) error
	MarkFailed(db *gorm.DB, id string, reason string) error
	FindUnprocessed(db *gorm.DB, limit int) ([]models.WebhookEvent, error)
}

type WebhookEventRepositoryImpl struct{}

func NewWebhookEventRepository() WebhookEventRepository {
	return &WebhookEventRepositoryImpl{}
}

func (r *WebhookEventRepositoryImpl) InsertIfAbsent(db *gorm.DB, event *models.WebhookEvent) (bool, error) {
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *WebhookEventRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := db.First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWebhookEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (r *WebhookEventRepositoryImpl) MarkProcessed(db *gorm.DB, id string, at time.Time) error {
	return db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"processed":     true,
		"processed_at":  at,
		"error_message": "",
		"attempts":      gorm.Expr("attempts + 1"),
	}).Error
}

// MarkFailed оставляет событие необработанным, чтобы повторная доставка его переиграла
func (r *WebhookEventRepositoryImpl) MarkFailed(db *gorm.DB, id string, reason string) error {
	return db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"processed":     false,
		"error_message": reason,
		"attempts":      gorm.Expr("attempts + 1"),
	}).Error
}

func (r *WebhookEventRepositoryImpl) FindUnprocessed(db *gorm.DB, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := db.Where("processed = ?", false).Order("created_at").Limit(limit).Find(&events).Error
	return events, err
}
