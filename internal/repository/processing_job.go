package repository

import (
	"context"
	"errors"
	"time"

	"github.com/agrimentor/agrimentor/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrProcessingJobNotFound = errors.New("processing job not found")

// ProcessingJobRepository handles persistence of document pipeline jobs.
type ProcessingJobRepository struct {
	db dbtx
}

func NewProcessingJobRepository(pool *pgxpool.Pool) *ProcessingJobRepository {
	return &ProcessingJobRepository{db: pool}
}

func NewProcessingJobRepositoryWithTx(tx pgx.Tx) *ProcessingJobRepository {
	return &ProcessingJobRepository{db: tx}
}

func (r *ProcessingJobRepository) CreateJob(ctx context.Context, job *domain.ProcessingJob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO processing_jobs (id, document_id, status, retries, error, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.DocumentID, job.Status, job.Retries, nullableString(job.Error), job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *ProcessingJobRepository) GetByID(ctx context.Context, id string) (*domain.ProcessingJob, error) {
	var job domain.ProcessingJob
	var errMsg *string
	err := r.db.QueryRow(ctx,
		`SELECT id, document_id, status, retries, error, created_at, processed_at
		 FROM processing_jobs WHERE id = $1`,
		id,
	).Scan(&job.ID, &job.DocumentID, &job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProcessingJobNotFound
		}
		return nil, err
	}
	if errMsg != nil {
		job.Error = *errMsg
	}
	return &job, nil
}

// ClaimPending atomically moves a batch of pending jobs to processing and
// returns them. SKIP LOCKED keeps concurrent workers from claiming the same
// job.
func (r *ProcessingJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.ProcessingJob, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM processing_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE processing_jobs
		 SET status = $3,
		     error = NULL,
		     processed_at = NULL
		 FROM cte
		 WHERE processing_jobs.id = cte.id
		 RETURNING processing_jobs.id, processing_jobs.document_id, processing_jobs.status,
		           processing_jobs.retries, processing_jobs.error, processing_jobs.created_at, processing_jobs.processed_at`,
		domain.ProcessingJobStatusPending, limit, domain.ProcessingJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobRows(rows)
}

func (r *ProcessingJobRepository) UpdateJobStatus(ctx context.Context, id string, status domain.ProcessingJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.ProcessingJobStatusCompleted || status == domain.ProcessingJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE processing_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProcessingJobNotFound
	}
	return nil
}

// RequeueForRetry bumps the retry counter and returns the job to the pending
// queue so the next poll picks it up again.
func (r *ProcessingJobRepository) RequeueForRetry(ctx context.Context, id string, errMsg string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE processing_jobs SET status = $1, retries = retries + 1, error = $2 WHERE id = $3`,
		domain.ProcessingJobStatusPending, nullableString(errMsg), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProcessingJobNotFound
	}
	return nil
}

func scanJobRows(rows pgx.Rows) ([]*domain.ProcessingJob, error) {
	var jobs []*domain.ProcessingJob
	for rows.Next() {
		var job domain.ProcessingJob
		var errMsg *string
		if err := rows.Scan(&job.ID, &job.DocumentID, &job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt); err != nil {
			return nil, err
		}
		if errMsg != nil {
			job.Error = *errMsg
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}
