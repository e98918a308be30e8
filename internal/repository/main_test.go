package repository

import (
	"regexp"
	"testing"
	"time"

	"donasi/internal/database"
	"donasi/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a migrated in-memory sqlite database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return db
}

// setupMockDB creates a GORM *gorm.DB backed by sqlmock for exact-SQL tests.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return gormDB, mock
}

func quote(sql string) string {
	return regexp.QuoteMeta(sql)
}

func createProgram(t *testing.T, db *gorm.DB, target string) *models.Program {
	t.Helper()
	p := &models.Program{
		Title:        "Sumur Bor",
		Status:       models.ProgramStatusActive,
		TargetAmount: decimal.RequireFromString(target),
		CreatorID:    1,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func createDonation(t *testing.T, db *gorm.DB, programID uint, amount string, status models.DonationStatus, paidAt *time.Time) *models.Donation {
	t.Helper()
	d := &models.Donation{
		ProgramID:       programID,
		DonorName:       "Donatur",
		Amount:          decimal.RequireFromString(amount),
		Status:          status,
		ExternalOrderID: "ORD-" + uuid.NewString(),
		PaidAt:          paidAt,
	}
	require.NoError(t, db.Create(d).Error)
	return d
}
