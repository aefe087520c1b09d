// Package server contains HTTP and WebSocket handlers for the contest API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dailyshot/internal/cache"
	"dailyshot/internal/config"
	"dailyshot/internal/contest"
	"dailyshot/internal/database"
	"dailyshot/internal/middleware"
	"dailyshot/internal/models"
	"dailyshot/internal/notifications"
	"dailyshot/internal/repository"
	"dailyshot/internal/scheduler"
	"dailyshot/internal/service"

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
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	calendar       *contest.Calendar
	tokens         *middleware.TokenManager
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	queue          *notifications.QueuePublisher
	events         *notifications.Dispatcher
	resolver       *scheduler.DailyResolver
	postService    *service.PostService
	voteService    *service.VoteService
	winnerService  *service.WinnerService
	userService    *service.UserService
	uploadService  *service.UploadService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	redisClient := cache.InitRedis(cfg.RedisURL)

	var queue *notifications.QueuePublisher
	if cfg.RabbitMQURL != "" {
		queue, err = notifications.DialQueue(cfg.RabbitMQURL, "")
		if err != nil {
			middleware.Logger.Warn("winners queue unavailable, continuing without it",
				slog.String("error", err.Error()))
			queue = nil
		}
	}

	return newServer(cfg, db, redisClient, queue, nil)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis itself.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	return newServer(cfg, db, redisClient, nil, nil)
}

func newServer(
	cfg *config.Config,
	db *gorm.DB,
	redisClient *redis.Client,
	queue *notifications.QueuePublisher,
	calendar *contest.Calendar,
) (*Server, error) {
	if calendar == nil {
		loc, err := cfg.Location()
		if err != nil {
			return nil, fmt.Errorf("contest timezone: %w", err)
		}
		calendar = contest.NewCalendar(loc)
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	voteRepo := repository.NewVoteRepository(db)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("dailyshot-api"),
		calendar:       calendar,
		tokens:         middleware.NewTokenManager(cfg.JWTSecret, redisClient),
		hub:            notifications.NewHub(),
		queue:          queue,
	}
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
	}

	var q notifications.Queue
	if queue != nil {
		q = queue
	}
	server.events = notifications.NewDispatcher(server.notifier, server.hub, q)

	policy := service.PolicyFromConfig(cfg)
	server.postService = service.NewPostService(postRepo, server.calendar, policy, server.events)
	server.voteService = service.NewVoteService(voteRepo, postRepo, server.events)
	server.winnerService = service.NewWinnerService(postRepo, server.calendar, policy, server.events)
	server.userService = service.NewUserService(userRepo, cfg.AdminEmailList())
	server.uploadService = service.NewUploadService(cfg.UploadDir, cfg.UploadMaxSizeMB)

	if cfg.SchedulerEnabled {
		var err error
		server.resolver, err = scheduler.NewDailyResolver(server.winnerService, server.calendar, cfg.ResolveCron)
		if err != nil {
			return nil, err
		}
	}

	return server, nil
}

// App returns the Fiber application, building it on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}

	app := fiber.New(fiber.Config{
		AppName:   "Daily Shot API",
		BodyLimit: int(s.uploadService.MaxSizeBytes()) + 1024*1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok && fe.Code < fiber.StatusInternalServerError {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
				slog.String("path", c.Path()),
				slog.String("error", err.Error()),
			)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())

	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected browser requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Cron-Secret, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
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

	app.Static("/uploads", s.uploadService.Dir(), fiber.Static{
		MaxAge: 86400,
	})

	api := app.Group("/api")
	auth := middleware.AuthRequired(s.tokens)

	authRoutes := api.Group("/auth")
	authRoutes.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	authRoutes.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	authRoutes.Post("/logout", auth, s.Logout)

	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Post("/", auth, middleware.RateLimit(
		s.redis, 5, time.Hour, "create_post"), s.CreatePost)
	// Specific /:id/<resource> routes are registered before the bare /:id route.
	posts.Post("/:id/vote", auth, middleware.RateLimit(
		s.redis, 60, time.Minute, "vote"), s.ToggleVote)
	posts.Get("/:id/votes", s.GetVoteCount)
	posts.Post("/:id/mark-winner", auth, s.AdminRequired(), s.MarkWinner)
	posts.Get("/:id", s.GetPost)
	posts.Delete("/:id", auth, s.DeletePost)

	api.Get("/user/votes", auth, s.GetMyVotes)
	api.Get("/users/me", auth, s.GetMyProfile)
	api.Get("/users/me/posts", auth, s.GetMyPosts)

	api.Get("/winner", s.GetWinner)
	api.Post("/winner", middleware.OptionalAuth(s.tokens), s.ResolveWinner)
	api.Get("/winners", s.GetWinners)

	admin := api.Group("/admin", auth, s.AdminRequired())
	admin.Get("/days", s.GetDaySummaries)

	api.Post("/uploads", auth, middleware.RateLimit(
		s.redis, 20, time.Hour, "upload"), s.UploadImage)

	api.Get("/ws", middleware.OptionalAuth(s.tokens), s.upgradeOnly, s.WebSocketHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings the database and Redis. Redis is optional for this service, so a
// missing client is reported but does not fail readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"contest_day": contest.Format(s.calendar.Today()),
		"time":        time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := middleware.UserID(c)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		admin, err := s.userService.IsAdmin(c.UserContext(), userID)
		if err != nil {
			return respondServiceError(c, err)
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}

		return c.Next()
	}
}

// Start wires the live feed, optionally starts the in-process resolver and listens.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	if s.notifier != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start live feed wiring", slog.String("error", err.Error()))
			}
		}()
	}

	if s.resolver != nil {
		s.resolver.Start(s.shutdownCtx)
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	// Closing the feed first lets open websocket handlers return before the listener drains.
	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down live feed", slog.String("error", err.Error()))
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.resolver != nil {
		if err := s.resolver.Stop(ctx); err != nil {
			middleware.Logger.Error("error stopping resolver", slog.String("error", err.Error()))
		}
	}

	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			middleware.Logger.Error("error closing winners queue", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
