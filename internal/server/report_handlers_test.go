package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"donasi/internal/models"
	"donasi/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecomputeProgramFund_WebhookSecret(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, models.RolePengusul)
	programID := env.createProgram(t, owner)
	env.addDonation(t, programID, &owner.ID, 300000, false)
	env.addDonation(t, programID, nil, 200000, true)

	path := fmt.Sprintf("/api/internal/programs/%d/recompute", programID)

	t.Run("missing secret", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, path, "", nil, nil))
	})

	t.Run("valid secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("X-Webhook-Secret", testWebhookSecret)
		resp, err := env.app.Test(req, -1)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var program models.Program
		require.NoError(t, env.db.First(&program, programID).Error)
		assert.True(t, decimal.NewFromInt(500000).Equal(program.CollectedAmount))
	})

	t.Run("unknown program", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/internal/programs/999/recompute", nil)
		req.Header.Set("X-Webhook-Secret", testWebhookSecret)
		resp, err := env.app.Test(req, -1)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestGetTopDonors_Public(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, models.RolePengusul)
	donor := env.createUser(t, models.RoleDonatur)
	programID := env.createProgram(t, owner)
	env.addDonation(t, programID, &donor.ID, 400000, false)
	env.addDonation(t, programID, nil, 900000, true)

	var entries []service.DonorLeaderboardEntry
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/reports/top-donors?limit=5", "", nil, &entries))
	require.Len(t, entries, 1)
	assert.True(t, decimal.NewFromInt(400000).Equal(entries[0].TotalAmount))
	assert.NotEmpty(t, entries[0].Tier)
}

func TestGetTrends(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, models.RolePengusul)
	finance := env.createUser(t, models.RoleFinance)
	programID := env.createProgram(t, owner)
	env.addDonation(t, programID, nil, 100000, true)

	assert.Equal(t, http.StatusForbidden,
		env.do(t, http.MethodGet, "/api/reports/trends", token(t, owner.ID, false), nil, nil))
	assert.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodGet, "/api/reports/trends?period=hourly", token(t, finance.ID, false), nil, nil))

	var body struct {
		Period  string                `json:"period"`
		Buckets []service.TrendBucket `json:"buckets"`
	}
	require.Equal(t, http.StatusOK,
		env.do(t, http.MethodGet, "/api/reports/trends?period=monthly&days=7", token(t, finance.ID, false), nil, &body))
	assert.Equal(t, "monthly", body.Period)
	require.NotEmpty(t, body.Buckets)
	total := 0
	for _, b := range body.Buckets {
		total += b.Count
	}
	assert.Equal(t, 1, total)

	assert.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodGet, "/api/reports/trends?days=-1", token(t, finance.ID, false), nil, nil))
	require.Equal(t, http.StatusOK,
		env.do(t, http.MethodGet, "/api/reports/trends?period=monthly&days=3650", token(t, finance.ID, false), nil, &body))
	require.NotEmpty(t, body.Buckets)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/live", "", nil, nil))

	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/ready", "", nil, &ready))
	assert.Equal(t, "healthy", ready.Status)
	assert.Equal(t, "unavailable", ready.Checks["redis"])
}
