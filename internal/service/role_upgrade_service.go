package service

import (
	"context"
	"errors"
	"strings"

	"donasi/internal/database"
	"donasi/internal/models"
	"donasi/internal/repository"
	"donasi/internal/rolegate"
	"donasi/internal/storage"

	"gorm.io/gorm"
)

// RoleUpgradeInput is a donatur's application to become a pengusul.
type RoleUpgradeInput struct {
	FullName       string   `json:"full_name"`
	IdentityNumber string   `json:"identity_number"`
	DocumentKeys   []string `json:"document_keys"`
	Reason         string   `json:"reason"`
}

func (in *RoleUpgradeInput) normalize() error {
	in.FullName = strings.TrimSpace(in.FullName)
	in.IdentityNumber = strings.TrimSpace(in.IdentityNumber)
	if in.FullName == "" {
		return models.NewValidationError("full_name is required")
	}
	if in.IdentityNumber == "" || len(in.IdentityNumber) > 32 {
		return models.NewValidationError("identity_number is required and must be at most 32 characters")
	}
	keys := in.DocumentKeys[:0]
	for _, k := range in.DocumentKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return models.NewValidationError("at least one identity document is required")
	}
	in.DocumentKeys = keys
	return nil
}

// RoleUpgradeResult pairs the stored request with its approval.
type RoleUpgradeResult struct {
	Request  *models.RoleUpgradeRequest `json:"request"`
	Approval *ApprovalView              `json:"approval"`
}

// RoleUpgradeService creates role upgrade requests and opens their approval.
type RoleUpgradeService struct {
	approvals *ApprovalService
	requests  repository.RoleUpgradeRepository
	documents storage.DocumentVerifier
}

// NewRoleUpgradeService returns a new RoleUpgradeService. A nil verifier
// accepts every document key.
func NewRoleUpgradeService(approvals *ApprovalService, requests repository.RoleUpgradeRepository, documents storage.DocumentVerifier) *RoleUpgradeService {
	if documents == nil {
		documents = storage.AcceptAll{}
	}
	return &RoleUpgradeService{approvals: approvals, requests: requests, documents: documents}
}

// Create stores the request and opens its ROLE_UPGRADE approval in one
// transaction. A user with an open request gets that request's approval
// back with DUPLICATE_PENDING_APPROVAL.
func (s *RoleUpgradeService) Create(ctx context.Context, userID uint, in RoleUpgradeInput) (*RoleUpgradeResult, error) {
	user, err := s.approvals.loadActor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := rolegate.AuthorizeSubmit(models.ActionRoleUpgrade, user); err != nil {
		return nil, err
	}
	if user.Role != models.RoleDonatur {
		return nil, models.NewConflictError("only donatur accounts can request the pengusul role")
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	if existing, err := s.requests.FindPendingByUser(ctx, userID); err != nil {
		return nil, err
	} else if existing != nil {
		return s.duplicate(ctx, existing)
	}

	if err := s.documents.VerifyDocuments(ctx, in.DocumentKeys); err != nil {
		return nil, err
	}

	pendingKey := models.RoleUpgradePendingKeyFor(userID)
	req := &models.RoleUpgradeRequest{
		UserID:         userID,
		Status:         models.RoleUpgradeStatusPending,
		FullName:       in.FullName,
		IdentityNumber: in.IdentityNumber,
		DocumentKeys:   in.DocumentKeys,
		Reason:         strings.TrimSpace(in.Reason),
		PendingKey:     &pendingKey,
	}

	var approvalID uint
	txErr := s.approvals.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return err
		}
		a, err := s.approvals.openInTx(ctx, tx, models.ActionRoleUpgrade, req.ID, userID)
		if err != nil {
			return err
		}
		approvalID = a.ID
		return nil
	})
	if txErr != nil {
		var appErr *models.AppError
		if errors.As(txErr, &appErr) {
			return nil, appErr
		}
		if !database.IsUniqueConstraintError(txErr) {
			return nil, models.NewInternalError(txErr)
		}
		winner, err := s.requests.FindPendingByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if winner == nil {
			return nil, models.NewConflictError("role upgrade request was resolved while this one was in flight")
		}
		return s.duplicate(ctx, winner)
	}

	view, err := s.approvals.afterOpen(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	stored, err := s.requests.GetByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return &RoleUpgradeResult{Request: stored, Approval: view}, nil
}

func (s *RoleUpgradeService) duplicate(ctx context.Context, req *models.RoleUpgradeRequest) (*RoleUpgradeResult, error) {
	approval, err := s.approvals.approvals.FindPending(ctx, models.ActionRoleUpgrade, req.ID)
	if err != nil {
		return nil, err
	}
	result := &RoleUpgradeResult{Request: req}
	if approval != nil {
		result.Approval = s.approvals.view(ctx, approval)
	}
	return result, models.NewDuplicatePendingApprovalError(models.ActionRoleUpgrade, req.ID)
}

// ListMine returns the user's requests, newest first.
func (s *RoleUpgradeService) ListMine(ctx context.Context, userID uint) ([]models.RoleUpgradeRequest, error) {
	return s.requests.ListByUser(ctx, userID)
}
