// Package queue defines the background tasks served by cmd/worker and the
// client used by the API to schedule them.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"claims-intake-platform/internal/ai"
	"claims-intake-platform/internal/claims"
	"claims-intake-platform/internal/logger"
	"claims-intake-platform/models"
)

const (
	TaskProcessClaimFiles = "claim:process-files"
	TaskIndexPrecedents   = "precedent:index"
)

// Queue names and their weights on the worker
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

// Queues is the priority table passed to the asynq server
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
}

type ClaimFilesPayload struct {
	ClaimID string `json:"claim_id"`
}

type PrecedentIndexPayload struct {
	Precedents []models.Precedent `json:"precedents"`
}

// Task creators
func NewClaimFilesTask(claimID string) (*asynq.Task, error) {
	if claimID == "" {
		return nil, errors.New("claim id is required")
	}
	payload, err := json.Marshal(ClaimFilesPayload{ClaimID: claimID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskProcessClaimFiles,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue(QueueCritical),
	), nil
}

func NewPrecedentIndexTask(precedents []models.Precedent) (*asynq.Task, error) {
	payload, err := json.Marshal(PrecedentIndexPayload{Precedents: precedents})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIndexPrecedents,
		payload,
		asynq.MaxRetry(5),
		asynq.Timeout(5*time.Minute),
		asynq.Queue(QueueDefault),
	), nil
}

// ClaimFileProcessor extracts structured records from a claim's documents
type ClaimFileProcessor interface {
	Process(ctx context.Context, identifier string) ([]models.FileExtraction, error)
}

// PrecedentIndexer embeds and stores precedent records
type PrecedentIndexer interface {
	Index(ctx context.Context, precedents []models.Precedent) (int64, error)
}

// Task handlers
type TaskProcessor struct {
	files   ClaimFileProcessor
	indexer PrecedentIndexer
}

func NewTaskProcessor(files ClaimFileProcessor, indexer PrecedentIndexer) *TaskProcessor {
	return &TaskProcessor{
		files:   files,
		indexer: indexer,
	}
}

// Register installs the task handlers on mux
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskProcessClaimFiles, p.ProcessClaimFiles)
	mux.HandleFunc(TaskIndexPrecedents, p.IndexPrecedents)
}

func (p *TaskProcessor) ProcessClaimFiles(ctx context.Context, t *asynq.Task) error {
	var payload ClaimFilesPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	logger.Info("Processing claim files", "claim_id", payload.ClaimID)

	results, err := p.files.Process(ctx, payload.ClaimID)
	if err != nil {
		// Neither a deleted claim nor a missing provider gets better on retry
		if errors.Is(err, claims.ErrNotFound) || errors.Is(err, ai.ErrNotConfigured) {
			logger.Warn("Claim processing skipped", "claim_id", payload.ClaimID, "error", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	logger.Info("Claim files processed", "claim_id", payload.ClaimID, "files", len(results), "failed", failed)
	return nil
}

func (p *TaskProcessor) IndexPrecedents(ctx context.Context, t *asynq.Task) error {
	var payload PrecedentIndexPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if p.indexer == nil {
		return fmt.Errorf("%w: precedent indexing: %w", ai.ErrNotConfigured, asynq.SkipRetry)
	}

	n, err := p.indexer.Index(ctx, payload.Precedents)
	if err != nil {
		return err
	}

	logger.Info("Precedents indexed", "received", len(payload.Precedents), "written", n)
	return nil
}

// Enqueuer schedules tasks on Redis
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(opt asynq.RedisConnOpt) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(opt)}
}

// EnqueueClaimProcessing schedules extraction of every file attached to a claim
func (e *Enqueuer) EnqueueClaimProcessing(ctx context.Context, claimID string) (string, error) {
	task, err := NewClaimFilesTask(claimID)
	if err != nil {
		return "", err
	}
	return e.enqueue(ctx, task)
}

// EnqueuePrecedentIndex schedules embedding and upsert of precedents
func (e *Enqueuer) EnqueuePrecedentIndex(ctx context.Context, precedents []models.Precedent) (string, error) {
	task, err := NewPrecedentIndexTask(precedents)
	if err != nil {
		return "", err
	}
	return e.enqueue(ctx, task)
}

func (e *Enqueuer) enqueue(ctx context.Context, task *asynq.Task) (string, error) {
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	logger.Debug("Task enqueued", "type", task.Type(), "id", info.ID, "queue", info.Queue)
	return info.ID, nil
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}
