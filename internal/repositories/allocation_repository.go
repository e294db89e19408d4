package repositories

import (
	"membership_backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AllocationRepository interface {
	// CreateAllocation - inserted=false если checkout с этим transaction_ref уже учтен
	CreateAllocation(db *gorm.DB, allocation *models.BalanceAllocation) (bool, error)
	// SumAllocated не считает checkout-распределения возвращенных платежей
	SumAllocated(db *gorm.DB, memberID uint) (float64, error)
	CreateDonation(db *gorm.DB, donation *models.Donation) error
	HasDonationBefore(db *gorm.DB, memberID uint, fiscalYear int) (bool, error)
}

type AllocationRepositoryImpl struct{}

func NewAllocationRepository() AllocationRepository {
	return &AllocationRepositoryImpl{}
}

func (r *AllocationRepositoryImpl) CreateAllocation(db *gorm.DB, allocation *models.BalanceAllocation) (bool, error) {
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(allocation)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *AllocationRepositoryImpl) SumAllocated(db *gorm.DB, memberID uint) (float64, error) {
	var total float64
	err := db.Table("balance_allocations AS a").
		Select("COALESCE(SUM(a.amount), 0)").
		Joins("LEFT JOIN transactions t ON t.gateway_ref = a.transaction_ref").
		Where("a.member_id = ?", memberID).
		Where("(t.status IS NULL OR t.status <> ?)", models.TransactionStatusRefunded).
		Scan(&total).Error
	return total, err
}

func (r *AllocationRepositoryImpl) CreateDonation(db *gorm.DB, donation *models.Donation) error {
	return db.Create(donation).Error
}

// HasDonationBefore - повторный донор: есть пожертвование в более раннем финансовом году
func (r *AllocationRepositoryImpl) HasDonationBefore(db *gorm.DB, memberID uint, fiscalYear int) (bool, error) {
	var count int64
	err := db.Model(&models.Donation{}).
		Where("member_id = ? AND fiscal_year < ?", memberID, fiscalYear).
		Count(&count).Error
	return count > 0, err
}
