// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// UserRole is the single authorization attribute consulted by the role gate.
type UserRole string

const (
	// RoleDonatur is the ordinary donor role every signup starts with.
	RoleDonatur UserRole = "donatur"
	// RolePengusul is a verified user allowed to propose fundraising programs.
	RolePengusul UserRole = "pengusul"
	// RoleAuthor writes program reports (articles).
	RoleAuthor UserRole = "author"
	// RoleManager reviews and decides approvals.
	RoleManager UserRole = "manager"
	// RoleSupervisor observes everything and decides nothing.
	RoleSupervisor UserRole = "supervisor"
	// RoleFinance reads fund reports.
	RoleFinance UserRole = "finance"
	// RoleSuperAdmin is implicitly authorized for every action.
	RoleSuperAdmin UserRole = "super_admin"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleDonatur, RolePengusul, RoleAuthor, RoleManager, RoleSupervisor, RoleFinance, RoleSuperAdmin:
		return true
	}
	return false
}

// User represents an account on the platform.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"size:120;not null" json:"name"`
	Email     string         `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password  string         `gorm:"not null" json:"-"`
	Role      UserRole       `gorm:"type:varchar(20);not null;default:'donatur';index" json:"role"`
	IsActive  bool           `gorm:"not null" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
