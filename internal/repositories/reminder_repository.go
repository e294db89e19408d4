package repositories

import (
	"membership_backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReminderRepository interface {
	// InsertIfAbsent - true только при первой отметке порога для этой даты окончания
	InsertIfAbsent(db *gorm.DB, reminder *models.MembershipReminder) (bool, error)
}

type ReminderRepositoryImpl struct{}

func NewReminderRepository() ReminderRepository {
	return &ReminderRepositoryImpl{}
}

func (r *ReminderRepositoryImpl) InsertIfAbsent(db *gorm.DB, reminder *models.MembershipReminder) (bool, error) {
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(reminder)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
