package server

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"donasi/internal/models"
	"donasi/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) addDonation(t *testing.T, programID uint, userID *uint, amount int64, anonymous bool) {
	t.Helper()
	paidAt := time.Now().UTC().Add(-time.Hour)
	d := &models.Donation{
		ProgramID:       programID,
		UserID:          userID,
		DonorName:       "Budi",
		Amount:          decimal.NewFromInt(amount),
		Status:          models.DonationStatusSuccess,
		IsAnonymous:     anonymous,
		ExternalOrderID: fmt.Sprintf("ORD-%d-%d", programID, time.Now().UnixNano()),
		PaidAt:          &paidAt,
	}
	require.NoError(t, e.db.Create(d).Error)
}

func TestCreateProgram_Validation(t *testing.T) {
	env := newTestEnv(t)
	pengusul := env.createUser(t, models.RolePengusul)

	var body models.ErrorResponse
	status := env.do(t, http.MethodPost, "/api/programs", token(t, pengusul.ID, false),
		map[string]any{"title": "", "target_amount": 100}, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeValidation, body.Code)

	status = env.do(t, http.MethodPost, "/api/programs", token(t, pengusul.ID, false),
		map[string]any{"title": "Zero", "target_amount": 0}, &body)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUpdateProgram_OwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, models.RolePengusul)
	other := env.createUser(t, models.RolePengusul)
	programID := env.createProgram(t, owner)
	path := fmt.Sprintf("/api/programs/%d", programID)
	payload := map[string]any{"title": "Sumur Wakaf Baru", "target_amount": 7500000}

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPut, path, token(t, other.ID, false), payload, nil))

	var program models.Program
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, path, token(t, owner.ID, false), payload, &program))
	assert.Equal(t, "Sumur Wakaf Baru", program.Title)
}

func TestGetProgramSummary(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, models.RolePengusul)
	donor := env.createUser(t, models.RoleDonatur)
	programID := env.createProgram(t, owner)

	env.addDonation(t, programID, &donor.ID, 1000000, false)
	env.addDonation(t, programID, &donor.ID, 500000, true)
	env.addDonation(t, programID, nil, 250000, true)

	var summary service.ProgramSummary
	status := env.do(t, http.MethodGet, fmt.Sprintf("/api/programs/%d/summary", programID), "", nil, &summary)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decimal.NewFromInt(1750000).Equal(summary.CollectedAmount))
	assert.True(t, decimal.NewFromInt(35).Equal(summary.Percentage))
	assert.Equal(t, 3, summary.DonationCount)
	assert.Len(t, summary.RecentDonations, 3)
}

func TestGetProgramSummary_UnknownProgram(t *testing.T) {
	env := newTestEnv(t)

	var summary service.ProgramSummary
	status := env.do(t, http.MethodGet, "/api/programs/999/summary", "", nil, &summary)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, summary.CollectedAmount.IsZero())
	assert.Equal(t, 0, summary.DonorCount)
	assert.Empty(t, summary.DonorBuckets)
}

func TestGetProgramDonors_ObserversOnly(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, models.RolePengusul)
	finance := env.createUser(t, models.RoleFinance)
	programID := env.createProgram(t, owner)
	env.addDonation(t, programID, &owner.ID, 100000, false)

	path := fmt.Sprintf("/api/programs/%d/donors", programID)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, path, token(t, owner.ID, false), nil, nil))

	var rows []service.ProgramDonorRow
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path, token(t, finance.ID, false), nil, &rows))
	require.Len(t, rows, 1)
	assert.True(t, decimal.NewFromInt(100000).Equal(rows[0].TotalAmount))
}
