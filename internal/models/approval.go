package models

import (
	"fmt"
	"time"
)

// ActionType tags the entity kind and operation an approval gates.
type ActionType string

const (
	ActionProgramPublish ActionType = "PROGRAM_PUBLISH"
	ActionArticlePublish ActionType = "ARTICLE_PUBLISH"
	ActionRoleUpgrade    ActionType = "ROLE_UPGRADE"
)

// Valid reports whether a is a known action type.
func (a ActionType) Valid() bool {
	switch a {
	case ActionProgramPublish, ActionArticlePublish, ActionRoleUpgrade:
		return true
	}
	return false
}

// ApprovalStatus defines the lifecycle of an approval record.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

// DecisionAction is a single reviewer vote.
type DecisionAction string

const (
	DecisionApprove DecisionAction = "APPROVE"
	DecisionReject  DecisionAction = "REJECT"
)

// Approval gates one submission of an entity. PendingKey is set only while
// the approval is PENDING; its unique index allows at most one pending
// approval per (action type, entity).
type Approval struct {
	ID                    uint             `gorm:"primaryKey" json:"id"`
	ActionType            ActionType       `gorm:"type:varchar(32);not null;index:idx_approvals_entity" json:"action_type"`
	EntityID              uint             `gorm:"not null;index:idx_approvals_entity" json:"entity_id"`
	RequesterID           uint             `gorm:"not null;index" json:"requester_id"`
	Requester             *User            `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	Status                ApprovalStatus   `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	RequiredApproverCount int              `gorm:"not null;default:1" json:"required_approver_count"`
	ApprovalCount         int              `gorm:"not null;default:0" json:"approval_count"`
	PendingKey            *string          `gorm:"size:64;uniqueIndex" json:"-"`
	Actions               []ApprovalAction `gorm:"foreignKey:ApprovalID" json:"actions,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
	ResolvedAt            *time.Time       `json:"resolved_at,omitempty"`
}

// PendingKeyFor builds the uniqueness key held by a pending approval.
func PendingKeyFor(actionType ActionType, entityID uint) string {
	return fmt.Sprintf("%s:%d", actionType, entityID)
}

// ApprovalAction is an immutable audit record of one reviewer decision.
type ApprovalAction struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	ApprovalID   uint           `gorm:"not null;uniqueIndex:idx_approval_actions_vote" json:"approval_id"`
	ApproverID   uint           `gorm:"not null;uniqueIndex:idx_approval_actions_vote" json:"approver_id"`
	Approver     *User          `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
	ApproverRole UserRole       `gorm:"type:varchar(20);not null" json:"approver_role"`
	Action       DecisionAction `gorm:"type:varchar(10);not null" json:"action"`
	Comment      string         `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
