// Package server contains the HTTP handlers for the donasi API.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"donasi/internal/bootstrap"
	"donasi/internal/config"
	"donasi/internal/middleware"
	"donasi/internal/models"
	"donasi/internal/notifications"
	"donasi/internal/repository"
	"donasi/internal/rolegate"
	"donasi/internal/service"
	"donasi/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	publisher      notifications.Publisher
	documents      storage.DocumentVerifier
	userRepo       repository.UserRepository

	approvalService    *service.ApprovalService
	aggregationService *service.AggregationService
	contentService     *service.ContentService
	roleUpgradeService *service.RoleUpgradeService

	now func() time.Time
}

// Option overrides a collaborator built by NewServerWithDeps.
type Option func(*Server)

// WithPublisher replaces the event publisher chosen from configuration.
func WithPublisher(p notifications.Publisher) Option {
	return func(s *Server) { s.publisher = p }
}

// WithDocumentVerifier replaces the identity document check.
func WithDocumentVerifier(v storage.DocumentVerifier) Option {
	return func(s *Server) { s.documents = v }
}

// WithClock replaces time.Now for re-authentication checks.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		return nil, err
	}

	var opts []Option
	if cfg.DocumentBucket != "" {
		verifier, err := storage.NewS3Verifier(context.Background(), cfg.AWSRegion, cfg.DocumentBucket)
		if err != nil {
			return nil, fmt.Errorf("document storage: %w", err)
		}
		opts = append(opts, WithDocumentVerifier(verifier))
	}

	return NewServerWithDeps(cfg, db, rdb, opts...)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB and Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, opts ...Option) (*Server, error) {
	required, err := cfg.RequiredApprovers()
	if err != nil {
		return nil, err
	}
	tiers, err := service.LoadTiers(cfg.LeaderboardTiersFile)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("donasi-api"),
		documents:      storage.AcceptAll{},
		userRepo:       repository.NewUserRepository(db),
		now:            time.Now,
	}
	s.publisher = notifications.NewPublisher(cfg.EventsBackend, redisClient, cfg.KafkaBrokerList(), cfg.KafkaTopic)
	for _, opt := range opts {
		opt(s)
	}

	programRepo := repository.NewProgramRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)

	s.approvalService = service.NewApprovalService(db, approvalRepo, s.userRepo,
		service.WithRequiredApprovers(required),
		service.WithPublisher(s.publisher))
	s.aggregationService = service.NewAggregationService(
		repository.NewDonationLedger(db), programRepo, tiers,
		service.WithCacheTTL(cfg.CacheTTL()))
	s.contentService = service.NewContentService(programRepo, repository.NewArticleRepository(db), s.userRepo)
	s.roleUpgradeService = service.NewRoleUpgradeService(s.approvalService,
		repository.NewRoleUpgradeRepository(db), s.documents)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := strings.Join(s.config.Origins(), ",")
	if origins == "" || origins == "*" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || c.Path() == "/metrics"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")

	// Public reports
	api.Get("/programs/:id/summary", s.GetProgramSummary)
	api.Get("/reports/top-donors", s.GetTopDonors)

	// Payment webhook collaborator
	internal := api.Group("/internal", s.WebhookSecretRequired())
	internal.Post("/programs/:id/recompute", s.RecomputeProgramFund)

	protected := api.Group("", s.AuthRequired())

	programs := protected.Group("/programs")
	programs.Post("/", s.CreateProgram)
	programs.Post("/:id/submit", middleware.RateLimit(
		s.redis, 10, time.Minute, "submit"), s.SubmitProgram)
	programs.Get("/:id/donors", s.ObserverRequired(), s.GetProgramDonors)
	programs.Put("/:id", s.UpdateProgram)

	articles := protected.Group("/articles")
	articles.Post("/", s.CreateArticle)
	articles.Post("/:id/submit", middleware.RateLimit(
		s.redis, 10, time.Minute, "submit"), s.SubmitArticle)
	articles.Put("/:id", s.UpdateArticle)

	roleUpgrades := protected.Group("/role-upgrades")
	roleUpgrades.Post("/", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "role_upgrade"), s.CreateRoleUpgrade)
	roleUpgrades.Get("/me", s.GetMyRoleUpgrades)

	approvals := protected.Group("/approvals")
	approvals.Get("/", s.ListApprovals)
	approvals.Post("/:id/decide", middleware.RateLimit(
		s.redis, 30, time.Minute, "decide"), s.DecideApproval)
	approvals.Get("/:id", s.GetApproval)

	reports := protected.Group("/reports", s.ObserverRequired())
	reports.Get("/trends", s.GetTrends)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional: the
// cache and rate limiter degrade without it.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := middleware.BearerToken(c)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := middleware.ParseToken(s.config.JWTSecret, tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		if claims.JTI != "" && s.redis != nil {
			revoked, err := s.redis.Exists(c.Context(), "blacklist:"+claims.JTI).Result()
			if err == nil && revoked > 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		c.Locals(middleware.LocalUserID, claims.UserID)
		c.Locals(middleware.LocalReauthAt, claims.ReauthAt)
		ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, claims.UserID)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// ObserverRequired rejects users who may not read finance reports.
// Must be placed after AuthRequired.
func (s *Server) ObserverRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := middleware.UserID(c)
		user, err := s.userRepo.GetByID(c.UserContext(), userID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return s.respondServiceError(c, err)
		}
		if user == nil || !user.IsActive || !rolegate.CanObserve(user.Role) {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("finance reports are restricted"))
		}
		return c.Next()
	}
}

// WebhookSecretRequired guards endpoints called by the payment webhook.
func (s *Server) WebhookSecretRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get("X-Webhook-Secret")
		if s.config.WebhookSecret == "" ||
			subtle.ConstantTimeCompare([]byte(got), []byte(s.config.WebhookSecret)) != 1 {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("invalid webhook secret"))
		}
		return c.Next()
	}
}

// NewApp builds the Fiber app with middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Donasi API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			slog.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	s.app = s.NewApp()
	slog.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			slog.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.publisher.Close(); err != nil {
		slog.Error("error closing event publisher", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			slog.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			slog.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	slog.Info("Server shutdown complete")
	return nil
}
