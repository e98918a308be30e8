package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"donasi/internal/database"
	"donasi/internal/models"
	"donasi/internal/notifications"
	"donasi/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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

func createUser(t *testing.T, db *gorm.DB, role models.UserRole, active bool) *models.User {
	t.Helper()
	u := &models.User{
		Name:     string(role) + " " + uuid.NewString()[:8],
		Email:    uuid.NewString() + "@donasi.test",
		Password: "x",
		Role:     role,
		IsActive: active,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func createDraftProgram(t *testing.T, db *gorm.DB, creatorID uint) *models.Program {
	t.Helper()
	p := &models.Program{
		Title:        "Air Bersih Desa",
		Status:       models.ProgramStatusDraft,
		TargetAmount: decimal.NewFromInt(10_000_000),
		CreatorID:    creatorID,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []notifications.ApprovalEvent
}

func (p *recordingPublisher) PublishApprovalEvent(_ context.Context, e notifications.ApprovalEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func newApprovalService(db *gorm.DB, opts ...ApprovalOption) *ApprovalService {
	return NewApprovalService(db, repository.NewApprovalRepository(db), repository.NewUserRepository(db), opts...)
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError %s, got %v", code, err)
	require.Equal(t, code, appErr.Code, appErr.Message)
}
