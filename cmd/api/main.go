package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"examcraft/internal/cache"
	"examcraft/internal/config"
	"examcraft/internal/database"
	"examcraft/internal/eventbus"
	"examcraft/internal/handler"
	"examcraft/internal/logger"
	"examcraft/internal/middleware"
	"examcraft/internal/queue"
	"examcraft/internal/repository"
	"examcraft/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// requestLogger logs every HTTP request with method, path, status and timing.
func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		path := c.Path()
		method := c.Method()

		err := c.Next()

		duration := time.Since(start)
		status := c.Response().StatusCode()

		logger.Get().Info("HTTP Request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("ip", c.IP()),
			zap.String("user_agent", c.Get("User-Agent")),
		)

		return err
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		panic(err)
	}
	appLogger := logger.Get()
	defer logger.Sync()

	db, err := database.NewSQLXDB(cfg.Database.Path)
	if err != nil {
		appLogger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	// Migrations are idempotent, so applying them on startup keeps a fresh
	// SQLite file usable without a separate migrate run.
	if err := database.RunMigrations(db, "database/migrations"); err != nil {
		appLogger.Fatal("Failed to run migrations", zap.Error(err))
	}

	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("Successfully connected to Redis")

	// Repositories
	sourceRepo := repository.NewSourceDatabaseAdapter(db)
	paperRepo := repository.NewPaperDatabaseAdapter(db)
	attemptRepo := repository.NewAttemptDatabaseAdapter(db)
	txManager := repository.NewTransactionManager(db)

	// Jobs go out through Redis; status updates come back over pub/sub.
	jobQueue := queue.NewRedisQueue(redisClient, cfg.Queue.MaxAttempts)
	transport := eventbus.NewRedisTransport(redisClient)
	defer transport.Close()
	registry := eventbus.NewRegistry(transport)

	// Services
	sourceService := service.NewSourceService(sourceRepo, txManager, jobQueue)
	paperService := service.NewPaperService(paperRepo, sourceRepo, jobQueue)
	attemptService := service.NewAttemptService(attemptRepo, paperRepo, txManager, jobQueue)

	// Handlers
	sourceHandler := handler.NewSourceHandler(sourceService, registry)
	paperHandler := handler.NewPaperHandler(paperService, registry)
	attemptHandler := handler.NewAttemptHandler(attemptService, registry)

	// No WriteTimeout: the event-stream endpoints hold their connection open
	// and are kept alive by periodic comments instead.
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		BodyLimit:    10 * 1024 * 1024,
	})

	app.Use(requestLogger())
	app.Use(cors.New(cors.Config{AllowOrigins: "*", AllowMethods: "GET,POST,PUT,DELETE,OPTIONS", AllowHeaders: "Origin,Content-Type,Accept,Authorization", MaxAge: 300}))
	app.Use(recover.New())

	handler.RegisterRoutes(app, sourceHandler, paperHandler, attemptHandler)

	go func() {
		appLogger.Info("Starting server", zap.Int("port", cfg.Server.Port), zap.String("env", cfg.Logger.Env))
		if err := app.Listen(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		appLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	appLogger.Info("Server exited gracefully")
}
