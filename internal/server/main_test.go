package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"donasi/internal/cache"
	"donasi/internal/config"
	"donasi/internal/database"
	"donasi/internal/middleware"
	"donasi/internal/models"
	"donasi/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testJWTSecret     = "test-secret"
	testWebhookSecret = "webhook-secret"
)

type testEnv struct {
	server *Server
	app    *fiber.App
	db     *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	cache.SetClient(nil)

	cfg := &config.Config{
		JWTSecret:           testJWTSecret,
		WebhookSecret:       testWebhookSecret,
		Env:                 "test",
		ReauthWindowMinutes: 5,
		EventsBackend:       "none",
	}
	s, err := NewServerWithDeps(cfg, db, nil, WithPublisher(notifications.Noop{}))
	require.NoError(t, err)
	return &testEnv{server: s, app: s.NewApp(), db: db}
}

func (e *testEnv) createUser(t *testing.T, role models.UserRole) *models.User {
	t.Helper()
	u := &models.User{
		Name:     string(role) + " " + uuid.NewString()[:8],
		Email:    uuid.NewString() + "@donasi.test",
		Password: "x",
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

// token issues an access token. reauth marks the credential as freshly verified.
func token(t *testing.T, userID uint, reauth bool) string {
	t.Helper()
	var reauthAt time.Time
	if reauth {
		reauthAt = time.Now()
	}
	tok, err := middleware.IssueToken(testJWTSecret, userID, reauthAt, time.Hour)
	require.NoError(t, err)
	return tok
}

// do sends a request and decodes a JSON response body into out when non-nil.
func (e *testEnv) do(t *testing.T, method, path, tok string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (e *testEnv) createProgram(t *testing.T, owner *models.User) uint {
	t.Helper()
	var program models.Program
	status := e.do(t, http.MethodPost, "/api/programs", token(t, owner.ID, false), map[string]any{
		"title":         "Sumur Wakaf",
		"description":   "Sumur untuk desa",
		"target_amount": 5000000,
	}, &program)
	require.Equal(t, http.StatusCreated, status)
	return program.ID
}
