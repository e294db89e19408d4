package repositories

import (
	"errors"
	"time"

	"membership_backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrMemberNotFound = errors.New("member not found")
)

// PaymentApplication - итог оплаченной сессии для записи в участника
type PaymentApplication struct {
	MembershipType models.MembershipType
	StartDate      time.Time
	EndDate        time.Time
	Amount         float64
	PaidOn         time.Time
}

type MemberRepository interface {
	Create(db *gorm.DB, member *models.Member) error
	FindByID(db *gorm.DB, id uint) (*models.Member, error)
	// FindByIDForUpdate блокирует строку до конца транзакции (в SQLite блокировка не нужна)
	FindByIDForUpdate(db *gorm.DB, id uint) (*models.Member, error)
	ApplyPayment(db *gorm.DB, id uint, p PaymentApplication) error
	SetMembershipEndDate(db *gorm.DB, id uint, endDate time.Time) error
	RevokeMembership(db *gorm.DB, id uint, today time.Time) error
	MarkOverdue(db *gorm.DB, id uint) (bool, error)
	FindPaidWithEndDate(db *gorm.DB) ([]models.Member, error)
}

type MemberRepositoryImpl struct{}

func NewMemberRepository() MemberRepository {
	return &MemberRepositoryImpl{}
}

func (r *MemberRepositoryImpl) Create(db *gorm.DB, member *models.Member) error {
	return db.Create(member).Error
}

func (r *MemberRepositoryImpl) FindByID(db *gorm.DB, id uint) (*models.Member, error) {
	var member models.Member
	if err := db.First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

func (r *MemberRepositoryImpl) FindByIDForUpdate(db *gorm.DB, id uint) (*models.Member, error) {
	var member models.Member
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&member, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

// ApplyPayment - одно UPDATE без чтения: повтор с теми же данными ничего не меняет
func (r *MemberRepositoryImpl) ApplyPayment(db *gorm.DB, id uint, p PaymentApplication) error {
	result := db.Model(&models.Member{}).Where("id = ?", id).Updates(map[string]interface{}{
		"membership_type":       p.MembershipType,
		"membership_start_date": p.StartDate,
		"membership_end_date":   p.EndDate,
		"payment_status":        models.PaymentStatusPaid,
		"payment_amount":        p.Amount,
		"last_payment_date":     p.PaidOn,
	})
	if result.Error != nil {
		return result.Error
	}
	return r.ensureUpdated(db, id, result.RowsAffected)
}

func (r *MemberRepositoryImpl) SetMembershipEndDate(db *gorm.DB, id uint, endDate time.Time) error {
	result := db.Model(&models.Member{}).Where("id = ?", id).Update("membership_end_date", endDate)
	if result.Error != nil {
		return result.Error
	}
	return r.ensureUpdated(db, id, result.RowsAffected)
}

func (r *MemberRepositoryImpl) RevokeMembership(db *gorm.DB, id uint, today time.Time) error {
	result := db.Model(&models.Member{}).Where("id = ?", id).Updates(map[string]interface{}{
		"payment_status":      models.PaymentStatusUnpaid,
		"membership_end_date": today,
	})
	if result.Error != nil {
		return result.Error
	}
	return r.ensureUpdated(db, id, result.RowsAffected)
}

// MarkOverdue переводит оплаченного участника в overdue, true - если статус изменился
func (r *MemberRepositoryImpl) MarkOverdue(db *gorm.DB, id uint) (bool, error) {
	result := db.Model(&models.Member{}).
		Where("id = ? AND payment_status = ?", id, models.PaymentStatusPaid).
		Update("payment_status", models.PaymentStatusOverdue)
	return result.RowsAffected == 1, result.Error
}

// FindPaidWithEndDate - кандидаты на напоминание о продлении (пожизненные не истекают)
func (r *MemberRepositoryImpl) FindPaidWithEndDate(db *gorm.DB) ([]models.Member, error) {
	var members []models.Member
	err := db.Where("payment_status = ? AND membership_type <> ? AND membership_end_date IS NOT NULL",
		models.PaymentStatusPaid, models.MembershipTypeLifetime).
		Order("id").
		Find(&members).Error
	return members, err
}

// ensureUpdated отличает "нет такой строки" от "значения не изменились" (MySQL считает только измененные строки)
func (r *MemberRepositoryImpl) ensureUpdated(db *gorm.DB, id uint, affected int64) error {
	if affected > 0 {
		return nil
	}
	var count int64
	if err := db.Model(&models.Member{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrMemberNotFound
	}
	return nil
}
