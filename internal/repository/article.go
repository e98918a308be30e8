package repository

import (
	"context"
	"errors"

	"donasi/internal/models"

	"gorm.io/gorm"
)

// ArticleRepository defines persistence operations for articles.
type ArticleRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Article, error)
	Create(ctx context.Context, article *models.Article) error
	UpdateDraft(ctx context.Context, article *models.Article) error
}

type articleRepository struct {
	db *gorm.DB
}

// NewArticleRepository returns a new ArticleRepository implementation.
func NewArticleRepository(db *gorm.DB) ArticleRepository {
	return &articleRepository{db: db}
}

func (r *articleRepository) GetByID(ctx context.Context, id uint) (*models.Article, error) {
	var article models.Article
	if err := r.db.WithContext(ctx).First(&article, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Article", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &article, nil
}

func (r *articleRepository) Create(ctx context.Context, article *models.Article) error {
	if err := r.db.WithContext(ctx).Create(article).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *articleRepository) UpdateDraft(ctx context.Context, article *models.Article) error {
	res := r.db.WithContext(ctx).Model(&models.Article{}).
		Where("id = ? AND status IN ?", article.ID, []models.ArticleStatus{models.ArticleStatusDraft, models.ArticleStatusRejected}).
		Updates(map[string]interface{}{
			"title":      article.Title,
			"body":       article.Body,
			"program_id": article.ProgramID,
		})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewConflictError("article can only be edited while DRAFT or REJECTED")
	}
	return nil
}
