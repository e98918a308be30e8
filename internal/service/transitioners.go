package service

import (
	"context"
	"errors"
	"fmt"

	"donasi/internal/models"

	"gorm.io/gorm"
)

// ProgramRef is the program an approval concerns, as shown in audit views.
type ProgramRef struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

// EntityTransitioner moves one kind of approval-gated entity through its
// lifecycle. Every method runs on the caller's transaction.
type EntityTransitioner interface {
	// Owner returns the user who may submit the entity.
	Owner(ctx context.Context, tx *gorm.DB, entityID uint) (uint, error)
	// MarkPending freezes the entity while an approval is open.
	MarkPending(ctx context.Context, tx *gorm.DB, entityID uint) error
	// Finalize applies the terminal outcome of the approval.
	Finalize(ctx context.Context, tx *gorm.DB, entityID uint, outcome models.ApprovalStatus) error
	// Describe returns the program shown next to the approval, if any.
	Describe(ctx context.Context, tx *gorm.DB, entityID uint) (*ProgramRef, error)
}

// DefaultTransitioners registers the built-in entity kinds.
func DefaultTransitioners() map[models.ActionType]EntityTransitioner {
	return map[models.ActionType]EntityTransitioner{
		models.ActionProgramPublish: programTransitioner{},
		models.ActionArticlePublish: articleTransitioner{},
		models.ActionRoleUpgrade:    roleUpgradeTransitioner{},
	}
}

// guardedUpdate applies updates only while the row is in one of from. When
// nothing matched it distinguishes a missing row from a wrong state.
func guardedUpdate(tx *gorm.DB, model any, resource string, id uint, from []string, updates map[string]interface{}) error {
	res := tx.Model(model).Where("id = ? AND status IN ?", id, from).Updates(updates)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return models.NewInternalError(err)
	}
	if count == 0 {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewConflictError(fmt.Sprintf("%s %d is not in a state that allows this change", resource, id))
}

func notFoundOr(err error, resource string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}

type programTransitioner struct{}

func (programTransitioner) Owner(ctx context.Context, tx *gorm.DB, id uint) (uint, error) {
	var p models.Program
	if err := tx.WithContext(ctx).Select("id", "creator_id").First(&p, id).Error; err != nil {
		return 0, notFoundOr(err, "Program", id)
	}
	return p.CreatorID, nil
}

func (programTransitioner) MarkPending(ctx context.Context, tx *gorm.DB, id uint) error {
	return guardedUpdate(tx.WithContext(ctx), &models.Program{}, "Program", id,
		[]string{string(models.ProgramStatusDraft), string(models.ProgramStatusRejected)},
		map[string]interface{}{"status": models.ProgramStatusPendingApproval})
}

func (programTransitioner) Finalize(ctx context.Context, tx *gorm.DB, id uint, outcome models.ApprovalStatus) error {
	next := models.ProgramStatusRejected
	if outcome == models.ApprovalStatusApproved {
		next = models.ProgramStatusActive
	}
	return guardedUpdate(tx.WithContext(ctx), &models.Program{}, "Program", id,
		[]string{string(models.ProgramStatusPendingApproval)},
		map[string]interface{}{"status": next})
}

func (programTransitioner) Describe(ctx context.Context, tx *gorm.DB, id uint) (*ProgramRef, error) {
	var p models.Program
	err := tx.WithContext(ctx).Select("id", "title").First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &ProgramRef{ID: p.ID, Title: p.Title}, nil
}

type articleTransitioner struct{}

func (articleTransitioner) Owner(ctx context.Context, tx *gorm.DB, id uint) (uint, error) {
	var a models.Article
	if err := tx.WithContext(ctx).Select("id", "author_id").First(&a, id).Error; err != nil {
		return 0, notFoundOr(err, "Article", id)
	}
	return a.AuthorID, nil
}

func (articleTransitioner) MarkPending(ctx context.Context, tx *gorm.DB, id uint) error {
	return guardedUpdate(tx.WithContext(ctx), &models.Article{}, "Article", id,
		[]string{string(models.ArticleStatusDraft), string(models.ArticleStatusRejected)},
		map[string]interface{}{"status": models.ArticleStatusPendingApproval})
}

func (articleTransitioner) Finalize(ctx context.Context, tx *gorm.DB, id uint, outcome models.ApprovalStatus) error {
	next := models.ArticleStatusRejected
	if outcome == models.ApprovalStatusApproved {
		next = models.ArticleStatusPublished
	}
	return guardedUpdate(tx.WithContext(ctx), &models.Article{}, "Article", id,
		[]string{string(models.ArticleStatusPendingApproval)},
		map[string]interface{}{"status": next})
}

func (articleTransitioner) Describe(ctx context.Context, tx *gorm.DB, id uint) (*ProgramRef, error) {
	var a models.Article
	err := tx.WithContext(ctx).Preload("Program").Select("id", "program_id").First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if a.Program == nil {
		return nil, nil
	}
	return &ProgramRef{ID: a.Program.ID, Title: a.Program.Title}, nil
}

type roleUpgradeTransitioner struct{}

func (roleUpgradeTransitioner) Owner(ctx context.Context, tx *gorm.DB, id uint) (uint, error) {
	var req models.RoleUpgradeRequest
	if err := tx.WithContext(ctx).Select("id", "user_id").First(&req, id).Error; err != nil {
		return 0, notFoundOr(err, "RoleUpgradeRequest", id)
	}
	return req.UserID, nil
}

// MarkPending checks the request is still open and its user is still a
// donatur. The request itself is created PENDING.
func (roleUpgradeTransitioner) MarkPending(ctx context.Context, tx *gorm.DB, id uint) error {
	var req models.RoleUpgradeRequest
	if err := tx.WithContext(ctx).Preload("User").First(&req, id).Error; err != nil {
		return notFoundOr(err, "RoleUpgradeRequest", id)
	}
	if req.Status != models.RoleUpgradeStatusPending {
		return models.NewConflictError(fmt.Sprintf("role upgrade request %d is %s", id, req.Status))
	}
	if req.User == nil || req.User.Role != models.RoleDonatur {
		return models.NewConflictError("only donatur accounts can be upgraded to pengusul")
	}
	return nil
}

func (roleUpgradeTransitioner) Finalize(ctx context.Context, tx *gorm.DB, id uint, outcome models.ApprovalStatus) error {
	tx = tx.WithContext(ctx)
	var req models.RoleUpgradeRequest
	if err := tx.First(&req, id).Error; err != nil {
		return notFoundOr(err, "RoleUpgradeRequest", id)
	}

	next := models.RoleUpgradeStatusRejected
	if outcome == models.ApprovalStatusApproved {
		next = models.RoleUpgradeStatusApproved
		res := tx.Model(&models.User{}).
			Where("id = ? AND role = ?", req.UserID, models.RoleDonatur).
			Update("role", models.RolePengusul)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewConflictError(fmt.Sprintf("user %d is no longer a donatur", req.UserID))
		}
	}

	return guardedUpdate(tx, &models.RoleUpgradeRequest{}, "RoleUpgradeRequest", id,
		[]string{string(models.RoleUpgradeStatusPending)},
		map[string]interface{}{"status": next, "pending_key": nil})
}

func (roleUpgradeTransitioner) Describe(context.Context, *gorm.DB, uint) (*ProgramRef, error) {
	return nil, nil
}
