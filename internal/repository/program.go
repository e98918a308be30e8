package repository

import (
	"context"
	"errors"

	"donasi/internal/models"

	"gorm.io/gorm"
)

// ProgramRepository defines persistence operations for programs.
type ProgramRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Program, error)
	Create(ctx context.Context, program *models.Program) error
	// UpdateDraft saves content fields only while the program is still editable.
	UpdateDraft(ctx context.Context, program *models.Program) error
}

type programRepository struct {
	db *gorm.DB
}

// NewProgramRepository returns a new ProgramRepository implementation.
func NewProgramRepository(db *gorm.DB) ProgramRepository {
	return &programRepository{db: db}
}

func (r *programRepository) GetByID(ctx context.Context, id uint) (*models.Program, error) {
	var program models.Program
	if err := r.db.WithContext(ctx).First(&program, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Program", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &program, nil
}

func (r *programRepository) Create(ctx context.Context, program *models.Program) error {
	if err := r.db.WithContext(ctx).Create(program).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *programRepository) UpdateDraft(ctx context.Context, program *models.Program) error {
	res := r.db.WithContext(ctx).Model(&models.Program{}).
		Where("id = ? AND status IN ?", program.ID, []models.ProgramStatus{models.ProgramStatusDraft, models.ProgramStatusRejected}).
		Updates(map[string]interface{}{
			"title":         program.Title,
			"description":   program.Description,
			"target_amount": program.TargetAmount,
		})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewConflictError("program can only be edited while DRAFT or REJECTED")
	}
	return nil
}
