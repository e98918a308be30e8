package service

import (
	"context"
	"strings"

	"donasi/internal/cache"
	"donasi/internal/models"
	"donasi/internal/repository"
	"donasi/internal/rolegate"

	"github.com/shopspring/decimal"
)

const maxTitleLength = 200

// ProgramInput is the editable part of a program.
type ProgramInput struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	TargetAmount decimal.Decimal `json:"target_amount"`
}

func (in *ProgramInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" || len(in.Title) > maxTitleLength {
		return models.NewValidationError("title is required and must be at most 200 characters")
	}
	if !in.TargetAmount.IsPositive() {
		return models.NewValidationError("target_amount must be greater than zero")
	}
	in.TargetAmount = in.TargetAmount.Round(2)
	return nil
}

// ArticleInput is the editable part of an article.
type ArticleInput struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	ProgramID *uint  `json:"program_id"`
}

func (in *ArticleInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" || len(in.Title) > maxTitleLength {
		return models.NewValidationError("title is required and must be at most 200 characters")
	}
	if strings.TrimSpace(in.Body) == "" {
		return models.NewValidationError("body is required")
	}
	return nil
}

// ContentService manages program and article drafts. Publishing goes
// through ApprovalService.
type ContentService struct {
	programs repository.ProgramRepository
	articles repository.ArticleRepository
	users    repository.UserRepository
}

// NewContentService returns a new ContentService.
func NewContentService(programs repository.ProgramRepository, articles repository.ArticleRepository, users repository.UserRepository) *ContentService {
	return &ContentService{programs: programs, articles: articles, users: users}
}

func (s *ContentService) activeUser(ctx context.Context, id uint) (*models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, models.NewForbiddenError("account is inactive")
	}
	return u, nil
}

// CreateProgram saves a DRAFT program owned by userID.
func (s *ContentService) CreateProgram(ctx context.Context, userID uint, in ProgramInput) (*models.Program, error) {
	if _, err := s.activeUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	program := &models.Program{
		Title:           in.Title,
		Description:     in.Description,
		TargetAmount:    in.TargetAmount,
		CollectedAmount: decimal.Zero,
		Status:          models.ProgramStatusDraft,
		CreatorID:       userID,
	}
	if err := s.programs.Create(ctx, program); err != nil {
		return nil, err
	}
	return program, nil
}

// UpdateProgram edits a program while it is DRAFT or REJECTED.
func (s *ContentService) UpdateProgram(ctx context.Context, userID, programID uint, in ProgramInput) (*models.Program, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	program, err := s.programs.GetByID(ctx, programID)
	if err != nil {
		return nil, err
	}
	if program.CreatorID != userID {
		return nil, models.NewForbiddenError("only the creator can edit this program")
	}
	if !program.Editable() {
		return nil, models.NewConflictError("program can only be edited while DRAFT or REJECTED")
	}

	program.Title = in.Title
	program.Description = in.Description
	program.TargetAmount = in.TargetAmount
	if err := s.programs.UpdateDraft(ctx, program); err != nil {
		return nil, err
	}
	// Cached summaries carry the target and percentage.
	cache.Invalidate(ctx, cache.ProgramSummaryKey(programID))
	return s.programs.GetByID(ctx, programID)
}

// CreateArticle saves a DRAFT article. Only roles that may submit articles
// can write them.
func (s *ContentService) CreateArticle(ctx context.Context, userID uint, in ArticleInput) (*models.Article, error) {
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := rolegate.AuthorizeSubmit(models.ActionArticlePublish, user); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if in.ProgramID != nil {
		if _, err := s.programs.GetByID(ctx, *in.ProgramID); err != nil {
			return nil, err
		}
	}
	article := &models.Article{
		Title:     in.Title,
		Body:      in.Body,
		ProgramID: in.ProgramID,
		Status:    models.ArticleStatusDraft,
		AuthorID:  userID,
	}
	if err := s.articles.Create(ctx, article); err != nil {
		return nil, err
	}
	return article, nil
}

// UpdateArticle edits an article while it is DRAFT or REJECTED.
func (s *ContentService) UpdateArticle(ctx context.Context, userID, articleID uint, in ArticleInput) (*models.Article, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	article, err := s.articles.GetByID(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if article.AuthorID != userID {
		return nil, models.NewForbiddenError("only the author can edit this article")
	}
	if !article.Editable() {
		return nil, models.NewConflictError("article can only be edited while DRAFT or REJECTED")
	}
	if in.ProgramID != nil {
		if _, err := s.programs.GetByID(ctx, *in.ProgramID); err != nil {
			return nil, err
		}
	}

	article.Title = in.Title
	article.Body = in.Body
	article.ProgramID = in.ProgramID
	if err := s.articles.UpdateDraft(ctx, article); err != nil {
		return nil, err
	}
	return s.articles.GetByID(ctx, articleID)
}
