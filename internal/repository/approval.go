package repository

import (
	"context"
	"errors"

	"donasi/internal/models"

	"gorm.io/gorm"
)

// ApprovalFilter narrows approval history listings.
type ApprovalFilter struct {
	ActionType models.ActionType
	Status     models.ApprovalStatus
	EntityID   uint
	Limit      int
	Offset     int
}

// ApprovalRepository reads approval records and their audit trail.
type ApprovalRepository interface {
	// GetByID loads the approval with requester and actions (with approvers).
	GetByID(ctx context.Context, id uint) (*models.Approval, error)
	// FindPending returns the open approval for an entity, or nil.
	FindPending(ctx context.Context, actionType models.ActionType, entityID uint) (*models.Approval, error)
	List(ctx context.Context, filter ApprovalFilter) ([]models.Approval, error)
	HasVoted(ctx context.Context, approvalID, approverID uint) (bool, error)
}

type approvalRepository struct {
	db *gorm.DB
}

// NewApprovalRepository returns a new ApprovalRepository implementation.
func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

func withAudit(db *gorm.DB) *gorm.DB {
	return db.Preload("Requester").
		Preload("Actions", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Actions.Approver")
}

func (r *approvalRepository) GetByID(ctx context.Context, id uint) (*models.Approval, error) {
	var approval models.Approval
	if err := withAudit(r.db.WithContext(ctx)).First(&approval, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Approval", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &approval, nil
}

func (r *approvalRepository) FindPending(ctx context.Context, actionType models.ActionType, entityID uint) (*models.Approval, error) {
	var approval models.Approval
	err := withAudit(r.db.WithContext(ctx)).
		Where("pending_key = ?", models.PendingKeyFor(actionType, entityID)).
		First(&approval).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &approval, nil
}

func (r *approvalRepository) List(ctx context.Context, filter ApprovalFilter) ([]models.Approval, error) {
	q := withAudit(r.db.WithContext(ctx)).Model(&models.Approval{})
	if filter.ActionType != "" {
		q = q.Where("action_type = ?", filter.ActionType)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.EntityID != 0 {
		q = q.Where("entity_id = ?", filter.EntityID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var approvals []models.Approval
	if err := q.Order("created_at DESC, id DESC").Find(&approvals).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return approvals, nil
}

func (r *approvalRepository) HasVoted(ctx context.Context, approvalID, approverID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ApprovalAction{}).
		Where("approval_id = ? AND approver_id = ?", approvalID, approverID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}
