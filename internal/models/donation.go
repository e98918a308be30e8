package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts go to dashboards as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// DonationStatus is set by the payment collaborator.
type DonationStatus string

const (
	DonationStatusPending DonationStatus = "PENDING"
	DonationStatusSuccess DonationStatus = "SUCCESS"
	DonationStatusFailed  DonationStatus = "FAILED"
)

// Donation is one donation attempt. Rows are written by the payment webhook
// and only read here.
type Donation struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	ProgramID       uint            `gorm:"not null;index" json:"program_id"`
	UserID          *uint           `gorm:"index" json:"user_id"`
	DonorName       string          `gorm:"size:120" json:"donor_name"`
	DonorEmail      string          `gorm:"size:255" json:"donor_email"`
	Amount          decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"amount"`
	Status          DonationStatus  `gorm:"type:varchar(10);not null;default:'PENDING';index" json:"status"`
	IsAnonymous     bool            `gorm:"not null;default:false" json:"is_anonymous"`
	ExternalOrderID string          `gorm:"size:100;not null;uniqueIndex" json:"external_order_id"`
	PaidAt          *time.Time      `gorm:"index" json:"paid_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
