package repositories

import (
	"errors"
	"time"

	"membership_backend/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidTransaction  = errors.New("invalid transaction update")
)

// TransactionUpdate - желаемое состояние транзакции. Пустые поля не перезаписываются.
type TransactionUpdate struct {
	GatewayRef      string
	Status          models.TransactionStatus
	ErrorMessage    string
	RawPayload      datatypes.JSON
	MemberID        *uint
	Amount          float64
	Currency        string
	PaymentIntentID string
	Kind            models.TransactionKind
}

type TransactionRepository interface {
	// RecordOrUpdateTransaction - единственный путь записи транзакций.
	// changed=true только у того вызова, который реально перевел строку в новый статус.
	RecordOrUpdateTransaction(db *gorm.DB, u TransactionUpdate) (bool, error)
	FindByGatewayRef(db *gorm.DB, ref string) (*models.Transaction, error)
	// FindByRefOrIntent ищет по id сессии либо по связанному payment intent
	FindByRefOrIntent(db *gorm.DB, ref string) (*models.Transaction, error)
	// CountPaymentHistory - прочие завершенные или возвращенные платежи участника
	CountPaymentHistory(db *gorm.DB, memberID uint, excludeRef string) (int64, error)
	// FindLatestPendingCheckout - последняя неоплаченная checkout-сессия участника
	FindLatestPendingCheckout(db *gorm.DB, memberID uint) (*models.Transaction, error)
	SumCompletedForMember(db *gorm.DB, memberID uint) (float64, error)
}

type TransactionRepositoryImpl struct{}

func NewTransactionRepository() TransactionRepository {
	return &TransactionRepositoryImpl{}
}

func (r *TransactionRepositoryImpl) RecordOrUpdateTransaction(db *gorm.DB, u TransactionUpdate) (bool, error) {
	if u.GatewayRef == "" || u.Status == "" {
		return false, ErrInvalidTransaction
	}

	now := time.Now()
	tx := models.Transaction{
		GatewayRef:      u.GatewayRef,
		PaymentIntentID: u.PaymentIntentID,
		MemberID:        u.MemberID,
		Kind:            u.Kind,
		Amount:          u.Amount,
		Currency:        u.Currency,
		Status:          u.Status,
		ErrorMessage:    u.ErrorMessage,
		RawPayload:      u.RawPayload,
	}
	if tx.Kind == "" {
		tx.Kind = models.TransactionKindCheckout
	}
	if u.Status == models.TransactionStatusCompleted {
		tx.CompletedAt = &now
	}

	inserted := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&tx)
	if inserted.Error != nil {
		return false, inserted.Error
	}
	if inserted.RowsAffected == 1 {
		return true, nil
	}

	// Строка уже есть: применяем только разрешенный переход
	from := models.AllowedPredecessors(u.Status)
	if len(from) == 0 {
		return false, nil
	}

	updates := map[string]interface{}{
		"status":     u.Status,
		"updated_at": now,
	}
	if u.ErrorMessage != "" {
		updates["error_message"] = u.ErrorMessage
	}
	if len(u.RawPayload) > 0 {
		updates["raw_payload"] = u.RawPayload
	}
	if u.MemberID != nil {
		updates["member_id"] = *u.MemberID
	}
	if u.Amount > 0 {
		updates["amount"] = u.Amount
	}
	if u.Currency != "" {
		updates["currency"] = u.Currency
	}
	if u.PaymentIntentID != "" {
		updates["payment_intent_id"] = u.PaymentIntentID
	}
	if u.Status == models.TransactionStatusCompleted {
		updates["completed_at"] = now
	}

	result := db.Model(&models.Transaction{}).
		Where("gateway_ref = ? AND status IN ?", u.GatewayRef, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *TransactionRepositoryImpl) FindByGatewayRef(db *gorm.DB, ref string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := db.Where("gateway_ref = ?", ref).First(&tx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (r *TransactionRepositoryImpl) FindByRefOrIntent(db *gorm.DB, ref string) (*models.Transaction, error) {
	var tx models.Transaction
	err := db.Where("gateway_ref = ? OR payment_intent_id = ?", ref, ref).
		Order("created_at").
		First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (r *TransactionRepositoryImpl) CountPaymentHistory(db *gorm.DB, memberID uint, excludeRef string) (int64, error) {
	var count int64
	err := db.Model(&models.Transaction{}).
		Where("member_id = ? AND gateway_ref <> ?", memberID, excludeRef).
		Where("status IN ?", []models.TransactionStatus{models.TransactionStatusCompleted, models.TransactionStatusRefunded}).
		Count(&count).Error
	return count, err
}

func (r *TransactionRepositoryImpl) FindLatestPendingCheckout(db *gorm.DB, memberID uint) (*models.Transaction, error) {
	var tx models.Transaction
	err := db.Where("member_id = ? AND kind = ? AND status = ?",
		memberID, models.TransactionKindCheckout, models.TransactionStatusPending).
		Order("created_at DESC").
		First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (r *TransactionRepositoryImpl) SumCompletedForMember(db *gorm.DB, memberID uint) (float64, error) {
	var total float64
	err := db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("member_id = ? AND status = ?", memberID, models.TransactionStatusCompleted).
		Scan(&total).Error
	return total, err
}
