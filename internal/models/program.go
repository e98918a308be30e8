package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProgramStatus defines the lifecycle states of a fundraising program.
type ProgramStatus string

const (
	// ProgramStatusDraft is editable by its creator and invisible to donors.
	ProgramStatusDraft ProgramStatus = "DRAFT"
	// ProgramStatusPendingApproval is frozen until a reviewer decides.
	ProgramStatusPendingApproval ProgramStatus = "PENDING_APPROVAL"
	// ProgramStatusActive is publicly visible and accepts donations.
	ProgramStatusActive ProgramStatus = "ACTIVE"
	// ProgramStatusRejected may be edited and resubmitted.
	ProgramStatusRejected ProgramStatus = "REJECTED"
	// ProgramStatusClosed no longer accepts donations.
	ProgramStatusClosed ProgramStatus = "CLOSED"
)

// Program is a fundraising program proposed by a pengusul.
type Program struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Title           string          `gorm:"size:200;not null" json:"title"`
	Description     string          `gorm:"type:text" json:"description"`
	Status          ProgramStatus   `gorm:"type:varchar(20);not null;default:'DRAFT';index" json:"status"`
	TargetAmount    decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"target_amount"`
	CollectedAmount decimal.Decimal `gorm:"type:numeric(15,2);not null;default:0" json:"collected_amount"`
	CreatorID       uint            `gorm:"not null;index" json:"creator_id"`
	Creator         *User           `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Editable reports whether the owner may still change the program.
func (p *Program) Editable() bool {
	return p.Status == ProgramStatusDraft || p.Status == ProgramStatusRejected
}
