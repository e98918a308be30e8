package repository

import (
	"context"
	"errors"

	"donasi/internal/models"

	"gorm.io/gorm"
)

// RoleUpgradeRepository reads pengusul requests. Requests are created inside
// the approval transaction, not here.
type RoleUpgradeRepository interface {
	GetByID(ctx context.Context, id uint) (*models.RoleUpgradeRequest, error)
	FindPendingByUser(ctx context.Context, userID uint) (*models.RoleUpgradeRequest, error)
	ListByUser(ctx context.Context, userID uint) ([]models.RoleUpgradeRequest, error)
}

type roleUpgradeRepository struct {
	db *gorm.DB
}

// NewRoleUpgradeRepository returns a new RoleUpgradeRepository implementation.
func NewRoleUpgradeRepository(db *gorm.DB) RoleUpgradeRepository {
	return &roleUpgradeRepository{db: db}
}

func (r *roleUpgradeRepository) GetByID(ctx context.Context, id uint) (*models.RoleUpgradeRequest, error) {
	var req models.RoleUpgradeRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("RoleUpgradeRequest", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

func (r *roleUpgradeRepository) FindPendingByUser(ctx context.Context, userID uint) (*models.RoleUpgradeRequest, error) {
	var req models.RoleUpgradeRequest
	err := r.db.WithContext(ctx).
		Where("pending_key = ?", models.RoleUpgradePendingKeyFor(userID)).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

func (r *roleUpgradeRepository) ListByUser(ctx context.Context, userID uint) ([]models.RoleUpgradeRequest, error) {
	var reqs []models.RoleUpgradeRequest
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}
