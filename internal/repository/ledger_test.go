package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"donasi/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecomputeCollectedAmount_SQL(t *testing.T) {
	db, mock := setupMockDB(t)
	ledger := NewDonationLedger(db)

	mock.ExpectExec(quote(`UPDATE programs SET collected_amount = (SELECT COALESCE(SUM(amount), 0) FROM donations WHERE donations.program_id = $1 AND donations.status = $2) WHERE id = $3`)).
		WithArgs(7, "SUCCESS", 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(quote(`SELECT collected_amount FROM programs WHERE id = $1`)).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"collected_amount"}).AddRow("60000.00"))

	got, err := ledger.RecomputeCollectedAmount(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(60000).Equal(got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecomputeCollectedAmount_MissingProgram(t *testing.T) {
	db, mock := setupMockDB(t)
	ledger := NewDonationLedger(db)

	mock.ExpectExec(quote(`UPDATE programs SET collected_amount`)).
		WithArgs(99, "SUCCESS", 99).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := ledger.RecomputeCollectedAmount(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecomputeCollectedAmount_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewDonationLedger(db)
	ctx := context.Background()
	paid := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	program := createProgram(t, db, "100000")
	other := createProgram(t, db, "100000")
	createDonation(t, db, program.ID, "10000", models.DonationStatusSuccess, &paid)
	createDonation(t, db, program.ID, "20000", models.DonationStatusSuccess, &paid)
	createDonation(t, db, program.ID, "50000", models.DonationStatusFailed, nil)
	createDonation(t, db, program.ID, "70000", models.DonationStatusPending, nil)
	createDonation(t, db, other.ID, "5000", models.DonationStatusSuccess, &paid)

	first, err := ledger.RecomputeCollectedAmount(ctx, program.ID)
	require.NoError(t, err)
	second, err := ledger.RecomputeCollectedAmount(ctx, program.ID)
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(30000).Equal(first), first.String())
	assert.True(t, first.Equal(second))

	var stored models.Program
	require.NoError(t, db.First(&stored, program.ID).Error)
	assert.True(t, decimal.NewFromInt(30000).Equal(stored.CollectedAmount))
}

func TestRecomputeCollectedAmount_NoDonations(t *testing.T) {
	db := setupTestDB(t)
	program := createProgram(t, db, "100000")

	got, err := NewDonationLedger(db).RecomputeCollectedAmount(context.Background(), program.ID)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestListSuccessfulPaidSince(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewDonationLedger(db)
	program := createProgram(t, db, "100000")

	old := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)
	createDonation(t, db, program.ID, "1000", models.DonationStatusSuccess, &old)
	want := createDonation(t, db, program.ID, "2000", models.DonationStatusSuccess, &recent)
	createDonation(t, db, program.ID, "3000", models.DonationStatusFailed, &recent)
	createDonation(t, db, program.ID, "4000", models.DonationStatusSuccess, nil)

	got, err := ledger.ListSuccessfulPaidSince(context.Background(), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want.ID, got[0].ID)
}

func TestListSuccessfulByProgram_IDOrder(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewDonationLedger(db)
	program := createProgram(t, db, "100000")
	a := createDonation(t, db, program.ID, "1000", models.DonationStatusSuccess, nil)
	b := createDonation(t, db, program.ID, "2000", models.DonationStatusSuccess, nil)

	got, err := ledger.ListSuccessfulByProgram(context.Background(), program.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []uint{a.ID, b.ID}, []uint{got[0].ID, got[1].ID})

	ids, err := ledger.ProgramIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint{program.ID}, ids)
}
