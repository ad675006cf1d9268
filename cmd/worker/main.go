package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"examcraft/internal/adapter"
	"examcraft/internal/adapter/embedding"
	"examcraft/internal/adapter/llm"
	"examcraft/internal/cache"
	"examcraft/internal/config"
	"examcraft/internal/database"
	"examcraft/internal/eventbus"
	"examcraft/internal/github"
	"examcraft/internal/logger"
	"examcraft/internal/queue"
	"examcraft/internal/repository"
	"examcraft/internal/service"
	"examcraft/internal/worker"

	"go.uber.org/zap"
)

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

	jobQueue := queue.NewRedisQueue(redisClient, cfg.Queue.MaxAttempts)
	publisher := eventbus.NewRedisPublisher(redisClient)

	// A missing credential yields a nil embedder; ingestion then stores
	// chunks without vectors instead of failing.
	cacheAdapter := adapter.NewRedisCacheAdapter(redisClient)
	embedder, err := embedding.NewEmbeddingService(cfg, cacheAdapter)
	if err != nil {
		appLogger.Fatal("Failed to create embedding service", zap.Error(err))
	}
	if embedder == nil {
		appLogger.Warn("Embedding service disabled: no credentials configured")
	}

	chatModel := llm.NewOpenAIChatModel(cfg.LLM)
	if !chatModel.Available() {
		appLogger.Warn("Chat model unavailable: OPENAI_API_KEY missing; generation and short-answer grading will fail their entities")
	}

	// Pipeline services
	svcs := worker.Services{
		Ingest:     service.NewIngestService(sourceRepo, txManager, embedder, publisher, cfg),
		Fetch:      service.NewFetchService(sourceRepo, txManager, github.NewClient(), jobQueue, publisher),
		Generation: service.NewGenerationService(paperRepo, sourceRepo, txManager, chatModel, publisher, cfg),
		Grading:    service.NewGradingService(attemptRepo, paperRepo, sourceRepo, txManager, chatModel, publisher, cfg),
	}

	w := worker.New(jobQueue, cfg.Queue)
	worker.RegisterHandlers(w, svcs, sourceRepo, attemptRepo, publisher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		appLogger.Fatal("Worker stopped unexpectedly", zap.Error(err))
	}
	appLogger.Info("Worker exited gracefully")
}
