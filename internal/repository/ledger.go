// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"time"

	"donasi/internal/models"
	"donasi/internal/observability"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DonationLedger is the read side of the donation log. Rows are written by the
// payment collaborator; the only write here is the collected amount cache on
// programs.
type DonationLedger interface {
	// ListSuccessfulByProgram returns SUCCESS donations of one program in id order.
	ListSuccessfulByProgram(ctx context.Context, programID uint) ([]models.Donation, error)
	// ListSuccessful returns every SUCCESS donation in id order.
	ListSuccessful(ctx context.Context) ([]models.Donation, error)
	// ListSuccessfulPaidSince returns SUCCESS donations paid at or after since.
	ListSuccessfulPaidSince(ctx context.Context, since time.Time) ([]models.Donation, error)
	// RecomputeCollectedAmount sets programs.collected_amount to the full SUCCESS
	// sum and returns it.
	RecomputeCollectedAmount(ctx context.Context, programID uint) (decimal.Decimal, error)
	// ProgramIDs lists every program id, for bulk recomputation.
	ProgramIDs(ctx context.Context) ([]uint, error)
}

const recomputeCollectedSQL = `UPDATE programs SET collected_amount = ` +
	`(SELECT COALESCE(SUM(amount), 0) FROM donations WHERE donations.program_id = ? AND donations.status = ?) ` +
	`WHERE id = ?`

const selectCollectedSQL = `SELECT collected_amount FROM programs WHERE id = ?`

type donationLedger struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewDonationLedger returns the GORM-backed DonationLedger.
func NewDonationLedger(db *gorm.DB) DonationLedger {
	return &donationLedger{db: db, log: observability.NewRepoLogger("programs")}
}

func (l *donationLedger) ListSuccessfulByProgram(ctx context.Context, programID uint) ([]models.Donation, error) {
	defer observability.TrackQuery("select", "donations")()
	var donations []models.Donation
	err := l.db.WithContext(ctx).
		Where("program_id = ? AND status = ?", programID, models.DonationStatusSuccess).
		Order("id ASC").
		Find(&donations).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return donations, nil
}

func (l *donationLedger) ListSuccessful(ctx context.Context) ([]models.Donation, error) {
	defer observability.TrackQuery("select", "donations")()
	var donations []models.Donation
	err := l.db.WithContext(ctx).
		Where("status = ?", models.DonationStatusSuccess).
		Order("id ASC").
		Find(&donations).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return donations, nil
}

func (l *donationLedger) ListSuccessfulPaidSince(ctx context.Context, since time.Time) ([]models.Donation, error) {
	defer observability.TrackQuery("select", "donations")()
	var donations []models.Donation
	err := l.db.WithContext(ctx).
		Where("status = ? AND paid_at IS NOT NULL AND paid_at >= ?", models.DonationStatusSuccess, since.UTC()).
		Order("id ASC").
		Find(&donations).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return donations, nil
}

// RecomputeCollectedAmount runs the sum and the write as one statement so a
// later recompute always sees every donation committed before it started.
func (l *donationLedger) RecomputeCollectedAmount(ctx context.Context, programID uint) (decimal.Decimal, error) {
	defer observability.TrackQuery("update", "programs")()

	res := l.db.WithContext(ctx).Exec(recomputeCollectedSQL, programID, models.DonationStatusSuccess, programID)
	if res.Error != nil {
		l.log.LogError(ctx, res.Error, "recompute_collected_amount")
		return decimal.Zero, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, models.NewNotFoundError("Program", programID)
	}

	var collected decimal.Decimal
	if err := l.db.WithContext(ctx).Raw(selectCollectedSQL, programID).Row().Scan(&collected); err != nil {
		l.log.LogError(ctx, err, "read_collected_amount")
		return decimal.Zero, models.NewInternalError(err)
	}

	l.log.LogUpdate(ctx, map[string]interface{}{
		"program_id":       programID,
		"collected_amount": collected.StringFixed(2),
	})
	return collected, nil
}

func (l *donationLedger) ProgramIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	if err := l.db.WithContext(ctx).Model(&models.Program{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
