package queue

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"claims-intake-platform/internal/blobstore"
	"claims-intake-platform/internal/logger"
)

const integrityJobTag = "blob-integrity"

// integrityTimeout bounds a single integrity scan
const integrityTimeout = 30 * time.Minute

// Scheduler runs periodic maintenance jobs on the worker
type Scheduler struct {
	scheduler *gocron.Scheduler
	cancel    context.CancelFunc
	ctx       context.Context
}

func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	// a slow scan is never overlapped by the next tick
	s.SingletonModeAll()

	return &Scheduler{
		scheduler: s,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and cancels running jobs
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	if s.cancel != nil {
		s.cancel()
	}
}

// ScheduleJob runs job on a cron expression
func (s *Scheduler) ScheduleJob(tag, cronExpr string, job func(ctx context.Context) error) error {
	_, err := s.scheduler.Cron(cronExpr).Tag(tag).Do(func() {
		if err := job(s.ctx); err != nil {
			logger.Error("Scheduled job failed", "job", tag, "error", err)
		}
	})
	return err
}

// Tags returns the tags of every scheduled job
func (s *Scheduler) Tags() []string {
	var tags []string
	for _, job := range s.scheduler.Jobs() {
		tags = append(tags, job.Tags()...)
	}
	return tags
}

// ScheduleIntegrityCheck reports orphaned chunk groups on cronExpr.
// Orphans are only logged; removing them is left to an operator.
func (s *Scheduler) ScheduleIntegrityCheck(cronExpr string, chunks blobstore.ChunkRepository, files blobstore.FileRepository) error {
	return s.ScheduleJob(integrityJobTag, cronExpr, func(ctx context.Context) error {
		return RunIntegrityCheck(ctx, chunks, files)
	})
}

// RunIntegrityCheck performs one scan and logs the result
func RunIntegrityCheck(ctx context.Context, chunks blobstore.ChunkRepository, files blobstore.FileRepository) error {
	ctx, cancel := context.WithTimeout(ctx, integrityTimeout)
	defer cancel()

	started := time.Now()
	report, err := blobstore.CheckIntegrity(ctx, chunks, files)
	if err != nil {
		return err
	}

	if len(report.OrphanBlobs) > 0 {
		logger.Warn("Orphaned blob chunks found",
			"checked", report.CheckedBlobs,
			"orphans", len(report.OrphanBlobs),
			"blob_ids", report.OrphanBlobs,
			"duration", time.Since(started))
		return nil
	}
	logger.Info("Blob integrity check passed", "checked", report.CheckedBlobs, "duration", time.Since(started))
	return nil
}
