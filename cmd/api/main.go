package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	pkgvalidator "github.com/meetpoll-team/meetpoll/pkg/validator"

	"github.com/meetpoll-team/meetpoll/internal/adapter/handler"
	"github.com/meetpoll-team/meetpoll/internal/adapter/repository"
	"github.com/meetpoll-team/meetpoll/internal/infrastructure/cache"
	"github.com/meetpoll-team/meetpoll/internal/infrastructure/database"
	"github.com/meetpoll-team/meetpoll/internal/infrastructure/external/mail"
	"github.com/meetpoll-team/meetpoll/internal/infrastructure/storage"
	"github.com/meetpoll-team/meetpoll/internal/usecase/invite"
	pollUsecase "github.com/meetpoll-team/meetpoll/internal/usecase/poll"
	"github.com/meetpoll-team/meetpoll/pkg/config"
	"github.com/meetpoll-team/meetpoll/pkg/ics"
)

// @title           MeetPoll API
// @version         1.0
// @description     API for scheduling meetings by polling attendees over candidate time slots

// @host      localhost:8080
// @BasePath  /v1

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Echo instance
	e := echo.New()

	// Register validator for request validation
	e.Validator = pkgvalidator.New()

	// Configure Echo
	e.HideBanner = true
	e.HidePort = false

	// Custom logger format
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))

	// Recover from panics
	e.Use(middleware.Recover())

	// CORS middleware
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "X-User-ID"},
	}))

	// Initialize dependencies
	log.Println("🔧 Initializing dependencies...")

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Database
	log.Println("📦 Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	// Run migrations only when explicitly enabled in config.
	// Production deployments should manage schema via sql-migrate.
	if cfg.Database.AutoMigrate {
		if cfg.Server.Environment == "production" {
			log.Fatalf("AutoMigrate is enabled in production. Disable DB_AUTO_MIGRATE or manage schema with sql-migrate.")
		}
		log.Println("🔄 Applying migrations (development only) ...")
		if err := database.AutoMigrate(db); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	} else {
		log.Println("🔄 Skipping migrations; use sql-migrate for schema migrations in CI/CD/production")
	}

	// Initialize the finalize locker: Redis when configured, otherwise the
	// in-process fallback for single-instance deployments.
	var locker pollUsecase.Locker
	if cfg.Redis.Enabled {
		log.Println("📦 Connecting to Redis...")
		redisClient, err := cache.NewRedisClient(cfg.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		locker = cache.NewRedisLocker(redisClient)
	} else {
		log.Println("⚠️  Redis disabled, using in-process finalize locking")
		locker = cache.NewMemoryLocker()
	}

	// Initialize repositories
	log.Println("⚙️  Initializing repositories...")
	userRepo := repository.NewUserRepository(db)
	pollRepo := repository.NewPollRepository(db)
	responseRepo := repository.NewResponseRepository(db)
	eventRepo := repository.NewEventRepository(db)
	eventAttendeeRepo := repository.NewEventAttendeeRepository(db)

	// Initialize mail transport
	log.Println("📧 Initializing SMTP sender...")
	mailSender := mail.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From)

	// Initialize the calendar-file archive when configured
	var archive pollUsecase.Archiver
	if cfg.Storage.Enabled {
		log.Println("🗄️  Initializing invite archive...")
		inviteArchive, err := storage.NewInviteArchive(
			cfg.Storage.Endpoint,
			cfg.Storage.AccessKeyID,
			cfg.Storage.SecretAccessKey,
			cfg.Storage.BucketName,
			cfg.Storage.UseSSL,
		)
		if err != nil {
			log.Fatalf("Failed to initialize invite archive: %v", err)
		}
		archive = inviteArchive
	}

	// Initialize invite dispatcher
	log.Println("📨 Initializing invite dispatcher...")
	dispatcher := invite.NewDispatcher(eventAttendeeRepo, mailSender, logger, invite.Config{
		Workers:        cfg.Dispatch.Workers,
		MaxRetries:     uint64(cfg.Dispatch.MaxRetries),
		InitialBackoff: cfg.Dispatch.InitialBackoff,
		MaxBackoff:     cfg.Dispatch.MaxBackoff,
		AttemptTimeout: cfg.Dispatch.AttemptTimeout,
	})

	// Initialize poll service
	log.Println("🗳️  Initializing poll service...")
	pollService := pollUsecase.NewService(
		pollRepo,
		responseRepo,
		eventRepo,
		eventAttendeeRepo,
		userRepo,
		dispatcher,
		ics.NewEncoder(""),
		archive,
		locker,
		logger,
	)

	// Start the voting-deadline sweeper
	deadlineWorker := pollUsecase.NewDeadlineWorker(pollRepo, logger, cfg.Deadline.Interval)
	deadlineWorker.Start()
	defer deadlineWorker.Stop()

	// Initialize handlers
	log.Println("🚀 Initializing handlers...")
	pollHandler := handler.NewPollHandler(pollService)
	eventHandler := handler.NewEventHandler(pollService)

	// Setup router with handlers
	log.Println("🛣️  Setting up routes...")
	router := handler.NewRouter(cfg, pollHandler, eventHandler)
	router.Setup(e)

	// Start server
	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Printf("🚀 Starting server on %s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)
		log.Printf("🔗 Health check: http://%s/health", addr)

		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
}
