package service

import (
	"time"

	"donasi/internal/models"
)

// RequesterView identifies who opened an approval.
type RequesterView struct {
	ID   uint            `json:"id"`
	Name string          `json:"name"`
	Role models.UserRole `json:"role"`
}

// ApproverView identifies who cast a vote.
type ApproverView struct {
	Name string `json:"name"`
}

// ActionView is one vote in the audit trail.
type ActionView struct {
	Approver     ApproverView          `json:"approver"`
	ApproverRole models.UserRole       `json:"approver_role"`
	Action       models.DecisionAction `json:"action"`
	Comment      string                `json:"comment,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}

// ApprovalView is the audit shape returned by every approval endpoint.
type ApprovalView struct {
	ID                    uint                  `json:"id"`
	ActionType            models.ActionType     `json:"action_type"`
	EntityID              uint                  `json:"entity_id"`
	Status                models.ApprovalStatus `json:"status"`
	RequiredApproverCount int                   `json:"required_approver_count"`
	ApprovalCount         int                   `json:"approval_count"`
	Requester             RequesterView         `json:"requester"`
	Program               *ProgramRef           `json:"program,omitempty"`
	Actions               []ActionView          `json:"actions"`
	CreatedAt             time.Time             `json:"created_at"`
	ResolvedAt            *time.Time            `json:"resolved_at,omitempty"`
}

func toApprovalView(a *models.Approval, program *ProgramRef) *ApprovalView {
	view := &ApprovalView{
		ID:                    a.ID,
		ActionType:            a.ActionType,
		EntityID:              a.EntityID,
		Status:                a.Status,
		RequiredApproverCount: a.RequiredApproverCount,
		ApprovalCount:         a.ApprovalCount,
		Requester:             RequesterView{ID: a.RequesterID},
		Program:               program,
		Actions:               make([]ActionView, 0, len(a.Actions)),
		CreatedAt:             a.CreatedAt,
		ResolvedAt:            a.ResolvedAt,
	}
	if a.Requester != nil {
		view.Requester.Name = a.Requester.Name
		view.Requester.Role = a.Requester.Role
	}
	for _, act := range a.Actions {
		av := ActionView{
			ApproverRole: act.ApproverRole,
			Action:       act.Action,
			Comment:      act.Comment,
			CreatedAt:    act.CreatedAt,
		}
		if act.Approver != nil {
			av.Approver.Name = act.Approver.Name
		}
		view.Actions = append(view.Actions, av)
	}
	return view
}
