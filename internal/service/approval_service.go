package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"donasi/internal/database"
	"donasi/internal/models"
	"donasi/internal/notifications"
	"donasi/internal/observability"
	"donasi/internal/repository"
	"donasi/internal/rolegate"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubmitInput opens an approval for an entity.
type SubmitInput struct {
	ActionType  models.ActionType
	EntityID    uint
	RequesterID uint
}

// DecideInput records one reviewer vote. Reauthenticated is true when the
// approver verified their credential within the configured window.
type DecideInput struct {
	ApprovalID      uint
	ApproverID      uint
	Action          models.DecisionAction
	Comment         string
	Reauthenticated bool
}

// ApprovalService is the approval registry: it opens approvals, records
// decisions and drives the gated entity to its outcome.
type ApprovalService struct {
	db            *gorm.DB
	approvals     repository.ApprovalRepository
	users         repository.UserRepository
	transitioners map[models.ActionType]EntityTransitioner
	required      map[models.ActionType]int
	publisher     notifications.Publisher
	log           *observability.WorkflowLogger
	now           func() time.Time
}

// ApprovalOption customises an ApprovalService.
type ApprovalOption func(*ApprovalService)

// WithRequiredApprovers sets how many APPROVE votes each action type needs.
// Missing or non-positive entries mean one.
func WithRequiredApprovers(counts map[models.ActionType]int) ApprovalOption {
	return func(s *ApprovalService) {
		for k, v := range counts {
			s.required[k] = v
		}
	}
}

// WithPublisher sets where lifecycle events go after commit.
func WithPublisher(p notifications.Publisher) ApprovalOption {
	return func(s *ApprovalService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithTransitioner registers or replaces the transitioner for actionType.
func WithTransitioner(actionType models.ActionType, t EntityTransitioner) ApprovalOption {
	return func(s *ApprovalService) { s.transitioners[actionType] = t }
}

// NewApprovalService returns a new ApprovalService.
func NewApprovalService(db *gorm.DB, approvals repository.ApprovalRepository, users repository.UserRepository, opts ...ApprovalOption) *ApprovalService {
	s := &ApprovalService{
		db:            db,
		approvals:     approvals,
		users:         users,
		transitioners: DefaultTransitioners(),
		required:      map[models.ActionType]int{},
		publisher:     notifications.Noop{},
		log:           observability.NewWorkflowLogger(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequiredApprovers returns the APPROVE votes needed for actionType.
func (s *ApprovalService) RequiredApprovers(actionType models.ActionType) int {
	if n := s.required[actionType]; n > 0 {
		return n
	}
	return 1
}

// loadActor returns the user or nil when the id is unknown.
func (s *ApprovalService) loadActor(ctx context.Context, id uint) (*models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

// Submit opens an approval for an entity owned by the requester. When one is
// already pending it returns that approval with DUPLICATE_PENDING_APPROVAL.
func (s *ApprovalService) Submit(ctx context.Context, in SubmitInput) (view *ApprovalView, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "ApprovalService", "Submit",
		attribute.String("action_type", string(in.ActionType)),
		attribute.Int64("entity.id", int64(in.EntityID)))
	defer func() {
		observability.EndSpan(span, err)
		s.recordSubmit(ctx, in, err)
	}()

	transitioner, ok := s.transitioners[in.ActionType]
	if !ok {
		return nil, models.NewValidationError(fmt.Sprintf("unknown action type %q", in.ActionType))
	}

	requester, err := s.loadActor(ctx, in.RequesterID)
	if err != nil {
		return nil, err
	}
	if err := rolegate.AuthorizeSubmit(in.ActionType, requester); err != nil {
		return nil, err
	}

	ownerID, err := transitioner.Owner(ctx, s.db, in.EntityID)
	if err != nil {
		return nil, err
	}
	if ownerID != requester.ID && requester.Role != models.RoleSuperAdmin {
		return nil, models.NewForbiddenError("only the owner can submit this entity")
	}

	existing, err := s.approvals.FindPending(ctx, in.ActionType, in.EntityID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.view(ctx, existing), models.NewDuplicatePendingApprovalError(in.ActionType, in.EntityID)
	}

	var created *models.Approval
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := s.openInTx(ctx, tx, in.ActionType, in.EntityID, requester.ID)
		created = a
		return err
	})
	if txErr != nil {
		return s.resolveOpenError(ctx, in.ActionType, in.EntityID, txErr)
	}

	return s.afterOpen(ctx, created.ID)
}

// openInTx marks the entity pending and inserts the approval. Insert errors
// are returned raw so callers can detect a lost pending-key race.
func (s *ApprovalService) openInTx(ctx context.Context, tx *gorm.DB, actionType models.ActionType, entityID, requesterID uint) (*models.Approval, error) {
	if err := s.transitioners[actionType].MarkPending(ctx, tx, entityID); err != nil {
		return nil, err
	}
	key := models.PendingKeyFor(actionType, entityID)
	approval := &models.Approval{
		ActionType:            actionType,
		EntityID:              entityID,
		RequesterID:           requesterID,
		Status:                models.ApprovalStatusPending,
		RequiredApproverCount: s.RequiredApprovers(actionType),
		PendingKey:            &key,
	}
	if err := tx.Create(approval).Error; err != nil {
		return nil, err
	}
	return approval, nil
}

// resolveOpenError maps a failed open transaction. Losing a race shows up
// either as a unique violation on the pending key or as a CONFLICT from
// MarkPending because the winner already moved the entity; both return the
// winner as the duplicate when one is pending.
func (s *ApprovalService) resolveOpenError(ctx context.Context, actionType models.ActionType, entityID uint, err error) (*ApprovalView, error) {
	var appErr *models.AppError
	lostRace := database.IsUniqueConstraintError(err)
	if errors.As(err, &appErr) {
		if appErr.Code != models.CodeConflict {
			return nil, appErr
		}
		lostRace = true
	}
	if !lostRace {
		return nil, models.NewInternalError(err)
	}

	winner, findErr := s.approvals.FindPending(ctx, actionType, entityID)
	if findErr != nil {
		return nil, findErr
	}
	if winner == nil {
		if appErr != nil {
			return nil, appErr
		}
		return nil, models.NewConflictError("approval was resolved while this submission was in flight")
	}
	return s.view(ctx, winner), models.NewDuplicatePendingApprovalError(actionType, entityID)
}

func (s *ApprovalService) afterOpen(ctx context.Context, approvalID uint) (*ApprovalView, error) {
	approval, err := s.approvals.GetByID(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	s.log.LogSubmitted(ctx, approval.ID, string(approval.ActionType), approval.EntityID, approval.RequesterID)
	s.publish(ctx, notifications.EventApprovalSubmitted, approval, approval.RequesterID)
	return s.view(ctx, approval), nil
}

// Decide records a vote. Checks run in this order: approval exists, role
// may decide, re-authentication for sensitive actions, approval still
// pending, approver is not the requester, approver has not voted.
func (s *ApprovalService) Decide(ctx context.Context, in DecideInput) (view *ApprovalView, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "ApprovalService", "Decide",
		attribute.Int64("approval.id", int64(in.ApprovalID)),
		attribute.String("action", string(in.Action)))
	var actionType models.ActionType
	defer func() {
		observability.EndSpan(span, err)
		s.recordDecision(ctx, in, actionType, view, err)
	}()

	if in.Action != models.DecisionApprove && in.Action != models.DecisionReject {
		return nil, models.NewValidationError("action must be APPROVE or REJECT")
	}

	approver, err := s.loadActor(ctx, in.ApproverID)
	if err != nil {
		return nil, err
	}

	var resolved bool
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var approval models.Approval
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&approval, in.ApprovalID).Error; err != nil {
			return notFoundOr(err, "Approval", in.ApprovalID)
		}
		actionType = approval.ActionType

		if err := rolegate.AuthorizeDecide(approval.ActionType, approver); err != nil {
			return err
		}
		if rolegate.IsSensitive(approval.ActionType) && !in.Reauthenticated {
			return models.NewReauthenticationRequiredError(approval.ActionType)
		}
		if approval.Status != models.ApprovalStatusPending {
			return models.NewApprovalNotPendingError(approval.ID, approval.Status)
		}
		if approval.RequesterID == approver.ID {
			return models.NewSelfApprovalError()
		}

		voted, err := repository.NewApprovalRepository(tx).HasVoted(ctx, approval.ID, approver.ID)
		if err != nil {
			return err
		}
		if voted {
			return models.NewDuplicateVoteError(approver.ID)
		}

		action := models.ApprovalAction{
			ApprovalID:   approval.ID,
			ApproverID:   approver.ID,
			ApproverRole: approver.Role,
			Action:       in.Action,
			Comment:      in.Comment,
		}
		if err := tx.Create(&action).Error; err != nil {
			if database.IsUniqueConstraintError(err) {
				return models.NewDuplicateVoteError(approver.ID)
			}
			return models.NewInternalError(err)
		}

		updates := map[string]interface{}{}
		outcome := models.ApprovalStatusPending
		switch in.Action {
		case models.DecisionReject:
			outcome = models.ApprovalStatusRejected
		case models.DecisionApprove:
			updates["approval_count"] = approval.ApprovalCount + 1
			if approval.ApprovalCount+1 >= approval.RequiredApproverCount {
				outcome = models.ApprovalStatusApproved
			}
		}
		if outcome != models.ApprovalStatusPending {
			now := s.now().UTC()
			updates["status"] = outcome
			updates["pending_key"] = nil
			updates["resolved_at"] = &now
		}

		res := tx.Model(&models.Approval{}).
			Where("id = ? AND status = ? AND approval_count = ?",
				approval.ID, models.ApprovalStatusPending, approval.ApprovalCount).
			Updates(updates)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewConflictError(fmt.Sprintf("approval %d changed while deciding", approval.ID))
		}

		if outcome == models.ApprovalStatusPending {
			return nil
		}
		resolved = true
		return s.transitioners[approval.ActionType].Finalize(ctx, tx, approval.EntityID, outcome)
	})
	if txErr != nil {
		var appErr *models.AppError
		if errors.As(txErr, &appErr) {
			return nil, appErr
		}
		return nil, models.NewInternalError(txErr)
	}

	approval, err := s.approvals.GetByID(ctx, in.ApprovalID)
	if err != nil {
		return nil, err
	}
	s.log.LogDecision(ctx, approval.ID, approver.ID, string(in.Action), string(approval.Status))
	if resolved {
		s.publish(ctx, notifications.EventApprovalResolved, approval, approver.ID)
	}
	return s.view(ctx, approval), nil
}

func canReadApprovals(u *models.User) bool {
	if u == nil || !u.IsActive {
		return false
	}
	if rolegate.CanObserve(u.Role) {
		return true
	}
	for _, at := range []models.ActionType{models.ActionProgramPublish, models.ActionArticlePublish, models.ActionRoleUpgrade} {
		if rolegate.CanDecide(at, u.Role) {
			return true
		}
	}
	return false
}

// Get returns one approval with its audit trail. Observers, deciders and the
// requester may read it.
func (s *ApprovalService) Get(ctx context.Context, viewerID, approvalID uint) (*ApprovalView, error) {
	viewer, err := s.loadActor(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	approval, err := s.approvals.GetByID(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if !canReadApprovals(viewer) && (viewer == nil || viewer.ID != approval.RequesterID) {
		return nil, models.NewForbiddenError("not permitted to read approval history")
	}
	return s.view(ctx, approval), nil
}

// List returns approvals newest first.
func (s *ApprovalService) List(ctx context.Context, viewerID uint, filter repository.ApprovalFilter) ([]*ApprovalView, error) {
	viewer, err := s.loadActor(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if !canReadApprovals(viewer) {
		return nil, models.NewForbiddenError("not permitted to read approval history")
	}
	if filter.ActionType != "" && !filter.ActionType.Valid() {
		return nil, models.NewValidationError(fmt.Sprintf("unknown action type %q", filter.ActionType))
	}
	switch filter.Status {
	case "", models.ApprovalStatusPending, models.ApprovalStatusApproved, models.ApprovalStatusRejected:
	default:
		return nil, models.NewValidationError(fmt.Sprintf("unknown status %q", filter.Status))
	}

	approvals, err := s.approvals.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]*ApprovalView, 0, len(approvals))
	for i := range approvals {
		views = append(views, s.view(ctx, &approvals[i]))
	}
	return views, nil
}

func (s *ApprovalService) view(ctx context.Context, a *models.Approval) *ApprovalView {
	var program *ProgramRef
	if t, ok := s.transitioners[a.ActionType]; ok {
		ref, err := t.Describe(ctx, s.db, a.EntityID)
		if err != nil {
			slog.WarnContext(ctx, "approval entity lookup failed",
				slog.Uint64("approval_id", uint64(a.ID)),
				slog.String("error", err.Error()))
		}
		program = ref
	}
	return toApprovalView(a, program)
}

// publish runs after commit. Delivery failures are logged, never returned:
// the approval is already durable.
func (s *ApprovalService) publish(ctx context.Context, eventType string, a *models.Approval, actorID uint) {
	event := notifications.NewApprovalEvent(eventType, a, actorID)
	if err := s.publisher.PublishApprovalEvent(ctx, event); err != nil {
		slog.WarnContext(ctx, "approval event publish failed",
			slog.String("event", eventType),
			slog.Uint64("approval_id", uint64(a.ID)),
			slog.String("error", err.Error()))
	}
}

func outcomeLabel(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return models.CodeInternal
}

func (s *ApprovalService) recordSubmit(ctx context.Context, in SubmitInput, err error) {
	if err == nil {
		observability.ApprovalsSubmitted.WithLabelValues(string(in.ActionType), "created").Inc()
		return
	}
	observability.ApprovalsSubmitted.WithLabelValues(string(in.ActionType), outcomeLabel(err)).Inc()
	if !errors.Is(err, models.ErrDuplicatePendingApproval) {
		s.log.LogRejected(ctx, "submit", err, map[string]interface{}{
			"action_type":  string(in.ActionType),
			"entity_id":    in.EntityID,
			"requester_id": in.RequesterID,
		})
	}
}

func (s *ApprovalService) recordDecision(ctx context.Context, in DecideInput, actionType models.ActionType, view *ApprovalView, err error) {
	if err == nil {
		observability.ApprovalDecisions.WithLabelValues(string(actionType), string(in.Action), string(view.Status)).Inc()
		return
	}
	observability.ApprovalDecisions.WithLabelValues(string(actionType), string(in.Action), outcomeLabel(err)).Inc()
	s.log.LogRejected(ctx, "decide", err, map[string]interface{}{
		"approval_id": in.ApprovalID,
		"approver_id": in.ApproverID,
	})
}
