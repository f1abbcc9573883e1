// Package server contains the HTTP handlers for the travel diary API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/traveldairy2025nju/td-backend/internal/bootstrap"
	"github.com/traveldairy2025nju/td-backend/internal/config"
	"github.com/traveldairy2025nju/td-backend/internal/featureflags"
	"github.com/traveldairy2025nju/td-backend/internal/middleware"
	"github.com/traveldairy2025nju/td-backend/internal/models"
	"github.com/traveldairy2025nju/td-backend/internal/notifications"
	"github.com/traveldairy2025nju/td-backend/internal/repository"
	"github.com/traveldairy2025nju/td-backend/internal/review"
	"github.com/traveldairy2025nju/td-backend/internal/service"
	"github.com/traveldairy2025nju/td-backend/internal/storage"

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
	userRepo       repository.UserRepository
	notifier       *notifications.Notifier
	featureFlags   *featureflags.Manager
	reviewer       review.Reviewer
	blobStore      storage.BlobStore

	entryService      *service.EntryService
	moderationService *service.ModerationService
	engagementService *service.EngagementService
	commentService    *service.CommentService
	discoveryService  *service.DiscoveryService
	mediaService      *service.MediaService
}

// Option overrides a collaborator built from config.
type Option func(*Server)

// WithReviewer replaces the content screening client.
func WithReviewer(r review.Reviewer) Option {
	return func(s *Server) { s.reviewer = r }
}

// WithBlobStore replaces the media store.
func WithBlobStore(b storage.BlobStore) Option {
	return func(s *Server) { s.blobStore = b }
}

// NewServer creates a new server instance with all dependencies
func NewServer(ctx context.Context, cfg *config.Config, opts bootstrap.Options) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, opts ...Option) (*Server, error) {
	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("travel-diary-api"),
		userRepo:       repository.NewUserRepository(db),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
	}
	if cfg.ReviewAPIURL != "" {
		s.reviewer = review.NewClient(review.ConfigFromApp(cfg), nil)
	}
	if cfg.BlobBucket != "" {
		store, err := storage.NewS3Store(storage.S3ConfigFromApp(cfg))
		if err != nil {
			return nil, fmt.Errorf("blob store: %w", err)
		}
		s.blobStore = store
	}
	for _, opt := range opts {
		opt(s)
	}

	entryRepo := repository.NewEntryRepository(db)
	engagementRepo := repository.NewEngagementRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	var notifier service.DecisionNotifier
	if s.notifier != nil {
		notifier = s.notifier
	}

	s.entryService = service.NewEntryService(entryRepo, s.userRepo, s.featureFlags, s.isAdminByUserID, s.canModerateByUserID)
	s.moderationService = service.NewModerationService(entryRepo, s.userRepo, s.reviewer, notifier)
	s.engagementService = service.NewEngagementService(entryRepo, engagementRepo, s.userRepo)
	s.commentService = service.NewCommentService(commentRepo, entryRepo, s.userRepo, s.isAdminByUserID, s.canModerateByUserID)
	s.discoveryService = service.NewDiscoveryService(entryRepo, s.userRepo)
	s.mediaService = service.NewMediaService(s.blobStore, cfg.UploadMaxSizeMB)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Propagate request ID into the user context for logging.
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so throttled responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
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
			return c.Method() == fiber.MethodOptions
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
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	authed := s.AuthRequired()
	optional := middleware.OptionalJWTAuth(s.config.JWTSecret)

	// Entries. Static segments are registered before /:id.
	entries := api.Group("/entries")
	entries.Get("/", optional, s.ListEntries)
	entries.Get("/search", middleware.RateLimit(s.redis, 30, time.Minute, "search"), s.SearchEntries)
	entries.Get("/nearby", s.NearbyEntries)
	entries.Get("/:id/comments", optional, s.ListComments)
	entries.Get("/:id", optional, s.GetEntry)

	entries.Post("/", authed, middleware.RateLimit(s.redis, 10, 5*time.Minute, "create_entry"), s.CreateEntry)
	entries.Put("/:id", authed, s.UpdateEntry)
	entries.Delete("/:id", authed, s.DeleteEntry)
	entries.Post("/:id/like", authed, s.ToggleLike)
	entries.Post("/:id/favorite", authed, s.ToggleFavorite)
	entries.Post("/:id/comments", authed, middleware.RateLimit(s.redis, 10, time.Minute, "create_comment"), s.CreateComment)

	comments := api.Group("/comments", authed)
	comments.Post("/:id/like", s.ToggleCommentLike)
	comments.Delete("/:id", s.DeleteComment)

	me := api.Group("/users/me", authed)
	me.Get("/", s.GetMyProfile)
	me.Get("/entries", s.GetMyEntries)
	me.Get("/favorites", s.GetMyFavorites)

	api.Post("/uploads", authed, middleware.RateLimit(s.redis, 30, time.Minute, "upload"), s.UploadMedia)

	admin := api.Group("/admin", authed, s.ReviewerRequired())
	admin.Get("/entries/pending", s.ListPendingEntries)
	admin.Put("/entries/:id/approve", s.ApproveEntry)
	admin.Put("/entries/:id/reject", s.RejectEntry)
	admin.Post("/entries/:id/ai-review", middleware.RateLimit(s.redis, 20, time.Minute, "ai_review"), s.ReviewEntryWithOracle)
	admin.Delete("/entries/:id", s.AdminRequired(), s.DeleteEntry)
	admin.Get("/feature-flags", s.GetFeatureFlags)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and cache health. Redis is optional: the
// service runs uncached without it.
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

	reviewStatus := "disabled"
	if rc, ok := s.reviewer.(*review.Client); ok {
		reviewStatus = rc.State()
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database":      dbStatus,
			"redis":         redisStatus,
			"review_oracle": reviewStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired rejects requests without a valid bearer token.
func (s *Server) AuthRequired() fiber.Handler {
	return middleware.JWTAuth(s.config.JWTSecret)
}

// ReviewerRequired rejects callers whose role cannot moderate.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) ReviewerRequired() fiber.Handler {
	return s.requireRole(s.canModerateByUserID, "Reviewer access required")
}

// AdminRequired rejects non-admin users with 403.
func (s *Server) AdminRequired() fiber.Handler {
	return s.requireRole(s.isAdminByUserID, "Admin access required")
}

func (s *Server) requireRole(check func(context.Context, uint) (bool, error), message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("userID").(uint)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		allowed, err := check(c.UserContext(), userID)
		if err != nil {
			return respondServiceError(c, err)
		}
		if !allowed {
			return models.RespondWithError(c, fiber.StatusForbidden, models.NewForbiddenError(message))
		}
		return c.Next()
	}
}

// App returns the configured Fiber application, building it on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}

	bodyLimit := 4 * 1024 * 1024
	if s.mediaService != nil {
		bodyLimit = int(s.mediaService.MaxBytes()) + 1024*1024
	}

	app := fiber.New(fiber.Config{
		AppName:   "Travel Diary API",
		BodyLimit: bodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			slog.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// Start starts the server
func (s *Server) Start() error {
	app := s.App()
	slog.Info("server starting", "port", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			slog.Error("error shutting down HTTP server", "error", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			slog.Error("error closing sql DB", "error", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			slog.Error("error closing redis", "error", rerr)
		}
	}

	slog.Info("server shutdown complete")
	return nil
}
