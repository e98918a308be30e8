package models

import (
	"fmt"
	"time"
)

// RoleUpgradeStatus defines lifecycle states for pengusul requests.
type RoleUpgradeStatus string

const (
	// RoleUpgradeStatusPending indicates the request is awaiting review.
	RoleUpgradeStatusPending RoleUpgradeStatus = "PENDING"
	// RoleUpgradeStatusApproved indicates the user was promoted.
	RoleUpgradeStatusApproved RoleUpgradeStatus = "APPROVED"
	// RoleUpgradeStatusRejected indicates the request was denied.
	RoleUpgradeStatusRejected RoleUpgradeStatus = "REJECTED"
)

// RoleUpgradeRequest is a donor's request to become a pengusul. PendingKey
// is set while the request is PENDING so a user holds at most one open request.
type RoleUpgradeRequest struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	UserID         uint              `gorm:"not null;index" json:"user_id"`
	User           *User             `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Status         RoleUpgradeStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	FullName       string            `gorm:"size:120;not null" json:"full_name"`
	IdentityNumber string            `gorm:"size:32;not null" json:"identity_number"`
	DocumentKeys   []string          `gorm:"serializer:json;type:text" json:"document_keys"`
	Reason         string            `gorm:"type:text" json:"reason"`
	PendingKey     *string           `gorm:"size:64;uniqueIndex" json:"-"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// RoleUpgradePendingKeyFor builds the uniqueness key held by a user's open request.
func RoleUpgradePendingKeyFor(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}
