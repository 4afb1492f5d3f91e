package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/HR-AR/Project-Conductor-sub007/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const jobColumns = `id, direction, operation, status, progress,
	total_items, processed_items, failed_items,
	target_ids, target_keys, auto_resolve, strategy,
	retry_count, max_retries, metadata, error_message,
	created_by, created_at, started_at, completed_at`

type PostgresSyncJobRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresSyncJobRepository(pool *pgxpool.Pool) *PostgresSyncJobRepository {
	return &PostgresSyncJobRepository{pool: pool}
}

func (r *PostgresSyncJobRepository) Create(ctx context.Context, job *models.SyncJob) error {
	targetIDs, targetKeys, metadata, err := encodeJobBlobs(job)
	if err != nil {
		return err
	}

	query := `INSERT INTO sync_jobs
	          (direction, operation, status, progress,
	           total_items, processed_items, failed_items,
	           target_ids, target_keys, auto_resolve, strategy,
	           retry_count, max_retries, metadata, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	          RETURNING id, created_at`

	err = r.pool.QueryRow(ctx, query,
		job.Direction,
		job.Operation,
		job.Status,
		job.Progress,
		job.TotalItems,
		job.ProcessedItems,
		job.FailedItems,
		targetIDs,
		targetKeys,
		job.AutoResolve,
		job.Strategy,
		job.RetryCount,
		job.MaxRetries,
		metadata,
		job.CreatedBy,
	).Scan(&job.ID, &job.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *PostgresSyncJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SyncJob, error) {
	query := `SELECT ` + jobColumns + ` FROM sync_jobs WHERE id = $1`
	return scanJob(r.pool.QueryRow(ctx, query, id))
}

// Update persists the full mutable state of a job. Jobs are only ever mutated
// by the worker executing them, so a blind write is safe.
func (r *PostgresSyncJobRepository) Update(ctx context.Context, job *models.SyncJob) error {
	targetIDs, targetKeys, metadata, err := encodeJobBlobs(job)
	if err != nil {
		return err
	}

	query := `UPDATE sync_jobs
	          SET status = $1,
	              progress = $2,
	              total_items = $3,
	              processed_items = $4,
	              failed_items = $5,
	              target_ids = $6,
	              target_keys = $7,
	              retry_count = $8,
	              metadata = $9,
	              error_message = $10,
	              started_at = $11,
	              completed_at = $12
	          WHERE id = $13`

	result, err := r.pool.Exec(ctx, query,
		job.Status,
		job.Progress,
		job.TotalItems,
		job.ProcessedItems,
		job.FailedItems,
		targetIDs,
		targetKeys,
		job.RetryCount,
		metadata,
		job.ErrorMessage,
		job.StartedAt,
		job.CompletedAt,
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresSyncJobRepository) ListByStatus(ctx context.Context, status models.JobStatus) ([]*models.SyncJob, error) {
	query := `SELECT ` + jobColumns + ` FROM sync_jobs WHERE status = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.SyncJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (*models.SyncJob, error) {
	var job models.SyncJob
	var targetIDs, targetKeys, metadata []byte
	err := row.Scan(
		&job.ID,
		&job.Direction,
		&job.Operation,
		&job.Status,
		&job.Progress,
		&job.TotalItems,
		&job.ProcessedItems,
		&job.FailedItems,
		&targetIDs,
		&targetKeys,
		&job.AutoResolve,
		&job.Strategy,
		&job.RetryCount,
		&job.MaxRetries,
		&metadata,
		&job.ErrorMessage,
		&job.CreatedBy,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	if len(targetIDs) > 0 {
		if err := json.Unmarshal(targetIDs, &job.TargetIDs); err != nil {
			return nil, fmt.Errorf("failed to decode target ids: %w", err)
		}
	}
	if len(targetKeys) > 0 {
		if err := json.Unmarshal(targetKeys, &job.TargetKeys); err != nil {
			return nil, fmt.Errorf("failed to decode target keys: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &job.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode job metadata: %w", err)
		}
	}
	return &job, nil
}

func encodeJobBlobs(job *models.SyncJob) (targetIDs, targetKeys, metadata []byte, err error) {
	if len(job.TargetIDs) > 0 {
		if targetIDs, err = json.Marshal(job.TargetIDs); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encode target ids: %w", err)
		}
	}
	if len(job.TargetKeys) > 0 {
		if targetKeys, err = json.Marshal(job.TargetKeys); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encode target keys: %w", err)
		}
	}
	if len(job.Metadata) > 0 {
		if metadata, err = json.Marshal(job.Metadata); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encode job metadata: %w", err)
		}
	}
	return targetIDs, targetKeys, metadata, nil
}
