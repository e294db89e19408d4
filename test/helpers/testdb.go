package helpers

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"membership_backend/database"
	"membership_backend/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// NewTestDB - отдельная in-memory sqlite база на тест, со всеми миграциями
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	db, err := database.Open(database.DriverSQLite, dsn)
	require.NoError(t, err, "Не удалось открыть тестовую БД")
	require.NoError(t, database.AutoMigrate(db), "Не удалось выполнить AutoMigrate")

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// MemberOption меняет поля создаваемого участника
type MemberOption func(*models.Member)

func WithMembership(t models.MembershipType, end time.Time) MemberOption {
	return func(m *models.Member) {
		m.MembershipType = t
		m.MembershipEndDate = &end
		m.PaymentStatus = models.PaymentStatusPaid
	}
}

func WithID(id uint) MemberOption {
	return func(m *models.Member) { m.ID = id }
}

// CreateMember создает участника с уникальным email
func CreateMember(t *testing.T, db *gorm.DB, opts ...MemberOption) *models.Member {
	t.Helper()

	member := &models.Member{
		Email:          fmt.Sprintf("member_%d@test.org", dbSeq.Add(1)),
		Name:           "Test Member",
		MembershipType: models.MembershipTypeFree,
		PaymentStatus:  models.PaymentStatusUnpaid,
	}
	for _, opt := range opts {
		opt(member)
	}
	require.NoError(t, db.Create(member).Error, "Не удалось создать участника")
	return member
}

// ReloadMember перечитывает участника из БД
func ReloadMember(t *testing.T, db *gorm.DB, id uint) *models.Member {
	t.Helper()
	var member models.Member
	require.NoError(t, db.First(&member, id).Error)
	return &member
}

// QueuedTemplates - ключи шаблонов в очереди в порядке вставки
func QueuedTemplates(t *testing.T, db *gorm.DB) []string {
	t.Helper()
	var rows []models.QueuedEmail
	require.NoError(t, db.Order("id").Find(&rows).Error)
	keys := make([]string, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, r.TemplateKey)
	}
	return keys
}

// Date - дата в UTC без времени
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
