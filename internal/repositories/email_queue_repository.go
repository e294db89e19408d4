package repositories

import (
	"time"

	"membership_backend/internal/models"

	"gorm.io/gorm"
)

// priorityOrder - high, normal, low; внутри приоритета FIFO
const priorityOrder = "CASE priority WHEN 'high' THEN 0 WHEN 'normal' THEN 1 ELSE 2 END"

type EmailQueueRepository interface {
	Create(db *gorm.DB, email *models.QueuedEmail) error
	FindQueued(db *gorm.DB, limit int) ([]models.QueuedEmail, error)
	// Claim переводит queued -> sending, false если строку уже забрал другой drain
	Claim(db *gorm.DB, id uint) (bool, error)
	MarkSent(db *gorm.DB, id uint, at time.Time) error
	MarkFailed(db *gorm.DB, id uint, reason string) error
	RequeueFailed(db *gorm.DB, maxAttempts int) (int64, error)
	CountByStatus(db *gorm.DB) (map[models.EmailStatus]int64, error)
}

type EmailQueueRepositoryImpl struct{}

func NewEmailQueueRepository() EmailQueueRepository {
	return &EmailQueueRepositoryImpl{}
}

func (r *EmailQueueRepositoryImpl) Create(db *gorm.DB, email *models.QueuedEmail) error {
	return db.Create(email).Error
}

func (r *EmailQueueRepositoryImpl) FindQueued(db *gorm.DB, limit int) ([]models.QueuedEmail, error) {
	var emails []models.QueuedEmail
	err := db.Where("status = ?", models.EmailStatusQueued).
		Order(priorityOrder).
		Order("created_at").
		Order("id").
		Limit(limit).
		Find(&emails).Error
	return emails, err
}

func (r *EmailQueueRepositoryImpl) Claim(db *gorm.DB, id uint) (bool, error) {
	result := db.Model(&models.QueuedEmail{}).
		Where("id = ? AND status = ?", id, models.EmailStatusQueued).
		Updates(map[string]interface{}{
			"status":   models.EmailStatusSending,
			"attempts": gorm.Expr("attempts + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *EmailQueueRepositoryImpl) MarkSent(db *gorm.DB, id uint, at time.Time) error {
	return db.Model(&models.QueuedEmail{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     models.EmailStatusSent,
		"sent_at":    at,
		"last_error": "",
	}).Error
}

func (r *EmailQueueRepositoryImpl) MarkFailed(db *gorm.DB, id uint, reason string) error {
	return db.Model(&models.QueuedEmail{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     models.EmailStatusFailed,
		"last_error": reason,
	}).Error
}

func (r *EmailQueueRepositoryImpl) RequeueFailed(db *gorm.DB, maxAttempts int) (int64, error) {
	result := db.Model(&models.QueuedEmail{}).
		Where("status = ? AND attempts < ?", models.EmailStatusFailed, maxAttempts).
		Update("status", models.EmailStatusQueued)
	return result.RowsAffected, result.Error
}

func (r *EmailQueueRepositoryImpl) CountByStatus(db *gorm.DB) (map[models.EmailStatus]int64, error) {
	var rows []struct {
		Status models.EmailStatus
		Count  int64
	}
	err := db.Model(&models.QueuedEmail{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := make(map[models.EmailStatus]int64, len(rows))
	for _, row := range rows {
		stats[row.Status] = row.Count
	}
	return stats, nil
}
