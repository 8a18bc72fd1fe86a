package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"claims-intake-platform/internal/app"
	"claims-intake-platform/internal/auth"
	"claims-intake-platform/internal/config"
	"claims-intake-platform/internal/logger"
	"claims-intake-platform/internal/queue"
	"claims-intake-platform/internal/telemetry"
	"claims-intake-platform/middleware"
	"claims-intake-platform/routes"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const serviceName = "claims-intake-platform"

// a multi-file upload may carry this many files of MaxFileSize
const maxFilesPerRequest = 10

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	endpoint := ""
	if cfg.TracingEnabled {
		endpoint = cfg.OTelExporterEndpoint
	}
	shutdownTracer, err := telemetry.InitTracer(telemetry.TracerConfig{
		ServiceName: serviceName,
		Endpoint:    endpoint,
		Environment: cfg.Environment,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		log.Fatal("Failed to initialize tracing:", err)
	}
	defer shutdownTracer()

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

	readiness := map[string]routes.ReadinessCheck{"storage": components.Ping}

	// Redis is optional: without it there is no rate limiting, token
	// revocation or background processing.
	var rdb redis.Cmdable
	var enqueuer *queue.Enqueuer
	if client, err := config.NewRedisClient(cfg); err != nil {
		logger.Warn("Redis unavailable, rate limiting and background tasks disabled", "error", err)
	} else {
		defer client.Close()
		rdb = client
		readiness["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }

		opt := client.Options()
		enqueuer = queue.NewEnqueuer(asynq.RedisClientOpt{
			Addr:      opt.Addr,
			Username:  opt.Username,
			Password:  opt.Password,
			DB:        opt.DB,
			TLSConfig: opt.TLSConfig,
		})
		defer enqueuer.Close()
	}

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	if cfg.TracingEnabled {
		router.Use(middleware.TracingMiddleware(serviceName), middleware.EnrichTrace())
	}
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.RequestSizeLimit(cfg.MaxFileSize * maxFilesPerRequest))

	deps := routes.Dependencies{
		Claims:     components.Claims,
		Intake:     components.Intake,
		Processing: components.Processing,
		Export:     components.Export,
		Readiness:  readiness,
		Middleware: []gin.HandlerFunc{middleware.AuditMiddleware()},
	}
	if enqueuer != nil {
		deps.Queue = enqueuer
	}
	if rdb != nil {
		deps.Middleware = append(deps.Middleware,
			middleware.RateLimitMiddleware(rdb, cfg.RateLimitReqs, time.Duration(cfg.RateLimitWindow)*time.Second))
	}

	if cfg.AccessSecret != "" {
		tokens, err := auth.NewTokens(cfg.AccessSecret, rdb)
		if err != nil {
			log.Fatal("Failed to initialize auth:", err)
		}
		deps.Auth = middleware.NewAuthMiddleware(tokens, cfg.AuthRequired)
	}

	routes.SetupRoutes(router, deps)

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "storage", cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
