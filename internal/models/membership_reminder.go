package models

import "time"

// MembershipReminder - отметка об отправленном напоминании.
// Продление меняет дату окончания, и все пороги срабатывают заново.
type MembershipReminder struct {
	BaseModel
	MemberID          uint              `gorm:"not null;uniqueIndex:idx_reminder_once" json:"member_id"`
	Threshold         ReminderThreshold `gorm:"size:10;not null;uniqueIndex:idx_reminder_once" json:"threshold"`
	MembershipEndDate time.Time         `gorm:"type:date;not null;uniqueIndex:idx_reminder_once" json:"membership_end_date"`
}
