// Package app wires storage, AI clients and services from configuration.
// The API server, the worker and the command line tools share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"claims-intake-platform/internal/ai"
	"claims-intake-platform/internal/blobstore"
	"claims-intake-platform/internal/claims"
	"claims-intake-platform/internal/config"
	"claims-intake-platform/internal/logger"
	"claims-intake-platform/internal/precedent"
	"claims-intake-platform/internal/telemetry"
	"claims-intake-platform/services"

	"go.mongodb.org/mongo-driver/mongo"
)

// Components holds every long-lived dependency built from a Config.
// Generator, Embedder and Indexer are nil when their provider is not configured.
type Components struct {
	Mongo *mongo.Client

	Chunks    blobstore.ChunkRepository
	Files     blobstore.FileRepository
	Blobs     *blobstore.ChunkStore
	BlobIndex *blobstore.Index

	ClaimRepo claims.Repository
	Linkage   *claims.Linkage
	Claims    *claims.Service

	Precedents precedent.Store
	Generator  ai.Generator
	Embedder   ai.Embedder
	Indexer    *precedent.Indexer

	Intake     *services.IntakeService
	Processing *services.ProcessingService
	Export     *services.ExportService
	ClaimFiles *services.ClaimFileProcessor

	closers []func(context.Context) error
}

// Build connects the configured storage driver and constructs the services
func Build(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (*Components, error) {
	c := &Components{}

	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		blobRepo := blobstore.NewMemoryRepository()
		c.Chunks, c.Files = blobRepo, blobRepo
		c.ClaimRepo = claims.NewMemoryRepository()
		c.Precedents = precedent.NewMemoryStore()
		logger.Warn("Using in-memory storage, data is lost on restart")

	default:
		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			return nil, err
		}
		c.Mongo = client
		c.closers = append(c.closers, client.Disconnect)

		db := client.Database(cfg.DBName)
		c.Chunks = blobstore.NewMongoChunkRepository(db.Collection(config.BlobChunksCollection))
		c.Files = blobstore.NewMongoFileRepository(db.Collection(config.BlobFilesCollection))
		c.ClaimRepo = claims.NewMongoRepository(db.Collection(config.ClaimsCollection), metrics)
		c.Precedents = precedent.NewMongoStore(db.Collection(cfg.PrecedentCollection), cfg.VectorIndexName, metrics)
	}

	c.Blobs = blobstore.NewChunkStore(c.Chunks, c.Files, blobstore.Options{
		ChunkSize:        cfg.BlobChunkSize,
		WriteConcurrency: cfg.BlobWriteConcurrency,
		Metrics:          metrics,
	})
	c.BlobIndex = blobstore.NewIndex(c.Files)

	c.Linkage = claims.NewLinkage(c.ClaimRepo)
	c.Claims = claims.NewService(c.ClaimRepo, c.Linkage, claims.ServiceOptions{
		StrictTransitions: cfg.StrictStatusTransitions,
	})

	c.buildAI(ctx, cfg, metrics)

	c.Intake = services.NewIntakeService(c.Blobs, c.BlobIndex, c.Linkage, cfg.MaxFileSize)
	c.Processing = services.NewProcessingService(services.NewPDFExtractor(metrics), c.Generator, c.Embedder, c.Precedents, cfg.PrecedentTopK)
	c.Export = services.NewExportService(c.Claims)
	c.ClaimFiles = services.NewClaimFileProcessor(c.Linkage, c.Blobs, c.Processing, c.Claims)

	return c, nil
}

// buildAI sets the providers that have credentials. A missing key only
// disables the endpoints that need it.
func (c *Components) buildAI(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) {
	generator, err := ai.NewGenerator(ctx, cfg, metrics)
	switch {
	case err == nil:
		c.Generator = generator
		c.addCloser(generator)
	case errors.Is(err, ai.ErrNotConfigured):
		logger.Warn("LLM provider not configured, extraction endpoints disabled", "provider", cfg.LLMProvider, "error", err)
	default:
		logger.Error("Failed to initialize LLM provider", "provider", cfg.LLMProvider, "error", err)
	}

	embedder, err := ai.NewEmbedder(ctx, cfg, metrics)
	if err != nil {
		logger.Warn("Embeddings not configured, precedent search disabled", "error", err)
		return
	}
	c.Embedder = embedder
	c.addCloser(embedder)
	c.Indexer = precedent.NewIndexer(c.Precedents, embedder)
}

func (c *Components) addCloser(v interface{}) {
	if closer, ok := v.(io.Closer); ok {
		c.closers = append(c.closers, func(context.Context) error { return closer.Close() })
	}
}

// Ping checks the storage backend
func (c *Components) Ping(ctx context.Context) error {
	if c.Mongo == nil {
		return nil
	}
	return c.Mongo.Ping(ctx, nil)
}

// Close releases clients in reverse order of creation
func (c *Components) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close components: %w", errors.Join(errs...))
	}
	return nil
}
