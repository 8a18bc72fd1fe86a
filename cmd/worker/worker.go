package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"claims-intake-platform/internal/app"
	"claims-intake-platform/internal/config"
	"claims-intake-platform/internal/logger"
	"claims-intake-platform/internal/queue"
	"claims-intake-platform/internal/telemetry"

	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
		metrics = nil
	}

	components, err := app.Build(context.Background(), cfg, metrics)
	if err != nil {
		log.Fatal("Failed to initialize storage:", err)
	}
	defer components.Close()

	// Redis options for Asynq
	redisOpt, err := config.RedisOptions(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration:", err)
	}
	clientOpt := asynq.RedisClientOpt{
		Addr:      redisOpt.Addr,
		Username:  redisOpt.Username,
		Password:  redisOpt.Password,
		DB:        redisOpt.DB,
		TLSConfig: redisOpt.TLSConfig,
	}

	server := asynq.NewServer(
		clientOpt,
		asynq.Config{
			Concurrency:    cfg.WorkerConcurrency,
			Queues:         queue.Queues,
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Error("Task failed", "type", task.Type(), "retry", retried, "max_retry", maxRetry, "error", err)
			}),
		},
	)

	// indexer stays nil without embeddings; the handler then skips the task
	var indexer queue.PrecedentIndexer
	if components.Indexer != nil {
		indexer = components.Indexer
	}
	processor := queue.NewTaskProcessor(components.ClaimFiles, indexer)

	mux := asynq.NewServeMux()
	processor.Register(mux)

	scheduler := queue.NewScheduler()
	if cfg.IntegrityCron != "" {
		if err := scheduler.ScheduleIntegrityCheck(cfg.IntegrityCron, components.Chunks, components.Files); err != nil {
			log.Fatal("Invalid INTEGRITY_CRON:", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	logger.Info("Starting worker",
		"concurrency", cfg.WorkerConcurrency,
		"queues", queue.Queues,
		"redis", clientOpt.Addr,
		"integrity_cron", cfg.IntegrityCron)

	if err := server.Start(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	server.Shutdown()
}
