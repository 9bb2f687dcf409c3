package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/agrimentor/agrimentor/internal/domain"
)

const (
	// MaxRetries is the maximum number of attempts for a failed job
	MaxRetries = 3
)

// ProcessingJobRepository defines the interface for pipeline job persistence
type ProcessingJobRepository interface {
	// ClaimPending retrieves and claims pending jobs for this worker
	ClaimPending(ctx context.Context, limit int) ([]*domain.ProcessingJob, error)

	// UpdateJobStatus updates the status of a processing job
	UpdateJobStatus(ctx context.Context, jobID string, status domain.ProcessingJobStatus, errMsg string) error

	// RequeueForRetry bumps the retry counter and returns the job to pending
	RequeueForRetry(ctx context.Context, jobID string, errMsg string) error
}

// DocumentPipeline defines the interface for running the ingest pipeline
type DocumentPipeline interface {
	ProcessDocument(ctx context.Context, documentID string) error
}

// ProcessingWorker drives document pipeline jobs. Delivery is at-least-once:
// a crash between pipeline completion and the status write replays the job,
// which the pipeline tolerates by replacing chunks.
type ProcessingWorker struct {
	repo     ProcessingJobRepository
	pipeline DocumentPipeline
}

// NewProcessingWorker creates a new ProcessingWorker instance
func NewProcessingWorker(repo ProcessingJobRepository, pipeline DocumentPipeline) *ProcessingWorker {
	return &ProcessingWorker{
		repo:     repo,
		pipeline: pipeline,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *ProcessingWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.ClaimPending(ctx, 100)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending document jobs", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *ProcessingWorker) processJob(ctx context.Context, job *domain.ProcessingJob) error {
	log.Printf("Processing job %s for document %s", job.ID, job.DocumentID)

	if err := w.pipeline.ProcessDocument(ctx, job.DocumentID); err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.ProcessingJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("Job %s completed successfully", job.ID)
	return nil
}

// handleJobFailure handles a failed job with retry logic
func (w *ProcessingWorker) handleJobFailure(ctx context.Context, job *domain.ProcessingJob, jobErr error) error {
	log.Printf("Job %s failed: %v", job.ID, jobErr)

	if job.Retries+1 >= MaxRetries {
		log.Printf("Job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.ProcessingJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("Job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.RequeueForRetry(ctx, job.ID, errMsg); err != nil {
		return fmt.Errorf("failed to requeue job for retry: %w", err)
	}

	return nil
}
