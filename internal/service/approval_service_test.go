package service

import (
	"context"
	"sync"
	"testing"

	"donasi/internal/models"
	"donasi/internal/notifications"
	"donasi/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type approvalFixture struct {
	db       *gorm.DB
	svc      *ApprovalService
	pub      *recordingPublisher
	pengusul *models.User
	manager  *models.User
	manager2 *models.User
	program  *models.Program
}

func newApprovalFixture(t *testing.T, required int) *approvalFixture {
	db := setupTestDB(t)
	pub := &recordingPublisher{}
	f := &approvalFixture{
		db:       db,
		pub:      pub,
		pengusul: createUser(t, db, models.RolePengusul, true),
		manager:  createUser(t, db, models.RoleManager, true),
		manager2: createUser(t, db, models.RoleManager, true),
	}
	f.svc = newApprovalService(db,
		WithPublisher(pub),
		WithRequiredApprovers(map[models.ActionType]int{models.ActionProgramPublish: required}))
	f.program = createDraftProgram(t, db, f.pengusul.ID)
	return f
}

func (f *approvalFixture) submit(t *testing.T) *ApprovalView {
	t.Helper()
	view, err := f.svc.Submit(context.Background(), SubmitInput{
		ActionType:  models.ActionProgramPublish,
		EntityID:    f.program.ID,
		RequesterID: f.pengusul.ID,
	})
	require.NoError(t, err)
	return view
}

func (f *approvalFixture) decide(approvalID, approverID uint, action models.DecisionAction) (*ApprovalView, error) {
	return f.svc.Decide(context.Background(), DecideInput{
		ApprovalID:      approvalID,
		ApproverID:      approverID,
		Action:          action,
		Comment:         "checked",
		Reauthenticated: true,
	})
}

func (f *approvalFixture) programStatus(t *testing.T) models.ProgramStatus {
	t.Helper()
	var p models.Program
	require.NoError(t, f.db.First(&p, f.program.ID).Error)
	return p.Status
}

func TestSubmit_OpensApprovalAndFreezesProgram(t *testing.T) {
	f := newApprovalFixture(t, 1)

	view := f.submit(t)
	assert.Equal(t, models.ApprovalStatusPending, view.Status)
	assert.Equal(t, models.ActionProgramPublish, view.ActionType)
	assert.Equal(t, 1, view.RequiredApproverCount)
	assert.Equal(t, f.pengusul.ID, view.Requester.ID)
	assert.Equal(t, f.pengusul.Name, view.Requester.Name)
	assert.Equal(t, models.RolePengusul, view.Requester.Role)
	require.NotNil(t, view.Program)
	assert.Equal(t, "Air Bersih Desa", view.Program.Title)
	assert.Empty(t, view.Actions)

	assert.Equal(t, models.ProgramStatusPendingApproval, f.programStatus(t))
	assert.Equal(t, []string{notifications.EventApprovalSubmitted}, f.pub.types())
}

func TestSubmit_DuplicateReturnsExisting(t *testing.T) {
	f := newApprovalFixture(t, 1)
	first := f.submit(t)

	again, err := f.svc.Submit(context.Background(), SubmitInput{
		ActionType:  models.ActionProgramPublish,
		EntityID:    f.program.ID,
		RequesterID: f.pengusul.ID,
	})
	requireCode(t, err, models.CodeDuplicatePendingApproval)
	require.NotNil(t, again)
	assert.Equal(t, first.ID, again.ID)

	var count int64
	require.NoError(t, f.db.Model(&models.Approval{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

// staleApprovals misses the first pending lookup, as a submit does when a
// concurrent one commits between its check and its own transaction.
type staleApprovals struct {
	repository.ApprovalRepository
	mu     sync.Mutex
	missed bool
}

func (r *staleApprovals) FindPending(ctx context.Context, actionType models.ActionType, entityID uint) (*models.Approval, error) {
	r.mu.Lock()
	miss := !r.missed
	r.missed = true
	r.mu.Unlock()
	if miss {
		return nil, nil
	}
	return r.ApprovalRepository.FindPending(ctx, actionType, entityID)
}

func TestSubmit_LosingRaceReturnsWinner(t *testing.T) {
	f := newApprovalFixture(t, 1)
	first := f.submit(t)

	racing := NewApprovalService(f.db,
		&staleApprovals{ApprovalRepository: repository.NewApprovalRepository(f.db)},
		repository.NewUserRepository(f.db),
		WithPublisher(f.pub))

	again, err := racing.Submit(context.Background(), SubmitInput{
		ActionType:  models.ActionProgramPublish,
		EntityID:    f.program.ID,
		RequesterID: f.pengusul.ID,
	})
	requireCode(t, err, models.CodeDuplicatePendingApproval)
	require.NotNil(t, again)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, models.ProgramStatusPendingApproval, f.programStatus(t))

	var count int64
	require.NoError(t, f.db.Model(&models.Approval{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSubmit_Forbidden(t *testing.T) {
	f := newApprovalFixture(t, 1)

	tests := []struct {
		name string
		user *models.User
	}{
		{"donatur", createUser(t, f.db, models.RoleDonatur, true)},
		{"supervisor", createUser(t, f.db, models.RoleSupervisor, true)},
		{"finance", createUser(t, f.db, models.RoleFinance, true)},
		{"inactive pengusul", createUser(t, f.db, models.RolePengusul, false)},
		{"not the owner", createUser(t, f.db, models.RolePengusul, true)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(context.Background(), SubmitInput{
				ActionType:  models.ActionProgramPublish,
				EntityID:    f.program.ID,
				RequesterID: tt.user.ID,
			})
			requireCode(t, err, models.CodeForbidden)
		})
	}
	assert.Equal(t, models.ProgramStatusDraft, f.programStatus(t))
}

func TestSubmit_UnknownEntityAndState(t *testing.T) {
	f := newApprovalFixture(t, 1)

	_, err := f.svc.Submit(context.Background(), SubmitInput{
		ActionType:  models.ActionProgramPublish,
		EntityID:    9999,
		RequesterID: f.pengusul.ID,
	})
	requireCode(t, err, models.CodeNotFound)

	require.NoError(t, f.db.Model(&models.Program{}).Where("id = ?", f.program.ID).
		Update("status", models.ProgramStatusActive).Error)
	_, err = f.svc.Submit(context.Background(), SubmitInput{
		ActionType:  models.ActionProgramPublish,
		EntityID:    f.program.ID,
		RequesterID: f.pengusul.ID,
	})
	requireCode(t, err, models.CodeConflict)

	_, err = f.svc.Submit(context.Background(), SubmitInput{
		ActionType:  models.ActionType("PAYOUT"),
		EntityID:    f.program.ID,
		RequesterID: f.pengusul.ID,
	})
	requireCode(t, err, models.CodeValidation)
}

func TestDecide_SingleApproverPublishes(t *testing.T) {
	f := newApprovalFixture(t, 1)
	submitted := f.submit(t)

	view, err := f.decide(submitted.ID, f.manager.ID, models.DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, view.Status)
	assert.Equal(t, 1, view.ApprovalCount)
	assert.NotNil(t, view.ResolvedAt)
	require.Len(t, view.Actions, 1)
	assert.Equal(t, f.manager.Name, view.Actions[0].Approver.Name)
	assert.Equal(t, models.RoleManager, view.Actions[0].ApproverRole)
	assert.Equal(t, models.DecisionApprove, view.Actions[0].Action)
	assert.Equal(t, "checked", view.Actions[0].Comment)

	assert.Equal(t, models.ProgramStatusActive, f.programStatus(t))

	var stored models.Approval
	require.NoError(t, f.db.First(&stored, submitted.ID).Error)
	assert.Nil(t, stored.PendingKey)
	assert.Equal(t,
		[]string{notifications.EventApprovalSubmitted, notifications.EventApprovalResolved},
		f.pub.types())
}

func TestDecide_RequiresConfiguredApprovals(t *testing.T) {
	f := newApprovalFixture(t, 2)
	submitted := f.submit(t)
	assert.Equal(t, 2, submitted.RequiredApproverCount)

	view, err := f.decide(submitted.ID, f.manager.ID, models.DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusPending, view.Status)
	assert.Equal(t, 1, view.ApprovalCount)
	assert.Equal(t, models.ProgramStatusPendingApproval, f.programStatus(t))

	view, err = f.decide(submitted.ID, f.manager2.ID, models.DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, view.Status)
	assert.Equal(t, 2, view.ApprovalCount)
	assert.Len(t, view.Actions, 2)
	assert.Equal(t, models.ProgramStatusActive, f.programStatus(t))
}

func TestDecide_RejectAfterApprove(t *testing.T) {
	f := newApprovalFixture(t, 2)
	submitted := f.submit(t)

	_, err := f.decide(submitted.ID, f.manager.ID, models.DecisionApprove)
	require.NoError(t, err)

	view, err := f.decide(submitted.ID, f.manager2.ID, models.DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusRejected, view.Status)
	assert.Equal(t, 1, view.ApprovalCount)
	assert.Equal(t, models.ProgramStatusRejected, f.programStatus(t))

	third := createUser(t, f.db, models.RoleManager, true)
	_, err = f.decide(submitted.ID, third.ID, models.DecisionApprove)
	requireCode(t, err, models.CodeApprovalNotPending)
}

func TestDecide_ResubmitAfterReject(t *testing.T) {
	f := newApprovalFixture(t, 1)
	first := f.submit(t)
	_, err := f.decide(first.ID, f.manager.ID, models.DecisionReject)
	require.NoError(t, err)

	second := f.submit(t)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, models.ProgramStatusPendingApproval, f.programStatus(t))
}

func TestDecide_SelfApprovalForbidden(t *testing.T) {
	f := newApprovalFixture(t, 1)
	program := createDraftProgram(t, f.db, f.manager.ID)
	view, err := f.svc.Submit(context.Background(), SubmitInput{
		ActionType:  models.ActionProgramPublish,
		EntityID:    program.ID,
		RequesterID: f.manager.ID,
	})
	require.NoError(t, err)

	_, err = f.decide(view.ID, f.manager.ID, models.DecisionApprove)
	requireCode(t, err, models.CodeSelfApprovalForbidden)
}

func TestDecide_DuplicateVote(t *testing.T) {
	f := newApprovalFixture(t, 2)
	submitted := f.submit(t)

	_, err := f.decide(submitted.ID, f.manager.ID, models.DecisionApprove)
	require.NoError(t, err)
	_, err = f.decide(submitted.ID, f.manager.ID, models.DecisionApprove)
	requireCode(t, err, models.CodeDuplicateVote)

	var count int64
	require.NoError(t, f.db.Model(&models.ApprovalAction{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDecide_ErrorOrder(t *testing.T) {
	f := newApprovalFixture(t, 1)
	submitted := f.submit(t)
	supervisor := createUser(t, f.db, models.RoleSupervisor, true)
	inactive := createUser(t, f.db, models.RoleManager, false)

	_, err := f.decide(9999, f.manager.ID, models.DecisionApprove)
	requireCode(t, err, models.CodeNotFound)

	_, err = f.decide(submitted.ID, supervisor.ID, models.DecisionApprove)
	requireCode(t, err, models.CodeForbidden)

	_, err = f.decide(submitted.ID, inactive.ID, models.DecisionApprove)
	requireCode(t, err, models.CodeForbidden)

	_, err = f.svc.Decide(context.Background(), DecideInput{
		ApprovalID: submitted.ID,
		ApproverID: f.manager.ID,
		Action:     models.DecisionApprove,
	})
	requireCode(t, err, models.CodeReauthenticationRequired)

	_, err = f.decide(submitted.ID, f.manager.ID, models.DecisionApprove)
	require.NoError(t, err)

	// Once resolved: role is still checked before status, and re-auth before status.
	_, err = f.decide(submitted.ID, supervisor.ID, models.DecisionApprove)
	requireCode(t, err, models.CodeForbidden)
	_, err = f.svc.Decide(context.Background(), DecideInput{
		ApprovalID: submitted.ID,
		ApproverID: f.manager2.ID,
		Action:     models.DecisionReject,
	})
	requireCode(t, err, models.CodeReauthenticationRequired)
	_, err = f.decide(submitted.ID, f.manager2.ID, models.DecisionReject)
	requireCode(t, err, models.CodeApprovalNotPending)
}

func TestDecide_InvalidAction(t *testing.T) {
	f := newApprovalFixture(t, 1)
	submitted := f.submit(t)
	_, err := f.decide(submitted.ID, f.manager.ID, models.DecisionAction("MAYBE"))
	requireCode(t, err, models.CodeValidation)
}

func TestDecide_ConcurrentDecisionsCrossThresholdOnce(t *testing.T) {
	f := newApprovalFixture(t, 1)
	submitted := f.submit(t)

	managers := []*models.User{f.manager, f.manager2}
	for i := 0; i < 4; i++ {
		managers = append(managers, createUser(t, f.db, models.RoleManager, true))
	}

	var wg sync.WaitGroup
	errs := make([]error, len(managers))
	for i, m := range managers {
		wg.Add(1)
		go func(i int, m *models.User) {
			defer wg.Done()
			_, errs[i] = f.decide(submitted.ID, m.ID, models.DecisionApprove)
		}(i, m)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		requireCode(t, err, models.CodeApprovalNotPending)
	}
	assert.Equal(t, 1, successes)

	var stored models.Approval
	require.NoError(t, f.db.Preload("Actions").First(&stored, submitted.ID).Error)
	assert.Equal(t, models.ApprovalStatusApproved, stored.Status)
	assert.Equal(t, 1, stored.ApprovalCount)
	assert.Len(t, stored.Actions, 1)
	assert.Equal(t, models.ProgramStatusActive, f.programStatus(t))
}

func TestDecide_ArticleLinksProgram(t *testing.T) {
	f := newApprovalFixture(t, 1)
	author := createUser(t, f.db, models.RoleAuthor, true)
	article := &models.Article{
		Title:     "Laporan Penyaluran",
		Body:      "Sumur selesai dibangun.",
		Status:    models.ArticleStatusDraft,
		AuthorID:  author.ID,
		ProgramID: &f.program.ID,
	}
	require.NoError(t, f.db.Create(article).Error)

	view, err := f.svc.Submit(context.Background(), SubmitInput{
		ActionType:  models.ActionArticlePublish,
		EntityID:    article.ID,
		RequesterID: author.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, view.Program)
	assert.Equal(t, f.program.ID, view.Program.ID)

	_, err = f.decide(view.ID, f.manager.ID, models.DecisionApprove)
	require.NoError(t, err)

	var stored models.Article
	require.NoError(t, f.db.First(&stored, article.ID).Error)
	assert.Equal(t, models.ArticleStatusPublished, stored.Status)
}

func TestApprovalReads_Permissions(t *testing.T) {
	f := newApprovalFixture(t, 1)
	submitted := f.submit(t)
	supervisor := createUser(t, f.db, models.RoleSupervisor, true)
	donatur := createUser(t, f.db, models.RoleDonatur, true)

	list, err := f.svc.List(context.Background(), supervisor.ID, repository.ApprovalFilter{Status: models.ApprovalStatusPending})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, submitted.ID, list[0].ID)

	_, err = f.svc.List(context.Background(), donatur.ID, repository.ApprovalFilter{})
	requireCode(t, err, models.CodeForbidden)

	_, err = f.svc.List(context.Background(), f.manager.ID, repository.ApprovalFilter{Status: "OPEN"})
	requireCode(t, err, models.CodeValidation)

	got, err := f.svc.Get(context.Background(), f.pengusul.ID, submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, submitted.ID, got.ID)

	_, err = f.svc.Get(context.Background(), donatur.ID, submitted.ID)
	requireCode(t, err, models.CodeForbidden)
}
