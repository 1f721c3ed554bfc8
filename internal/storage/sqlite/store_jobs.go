package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/potaudit/potaudit/internal/storage"
)

// EnqueueImportJob inserts a job into the import queue.
func (s *Store) EnqueueImportJob(ctx context.Context, job storage.ImportJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return enqueueImportJob(ctx, s.sqlDB, job)
}

// GetImportJob returns one import job by ID.
func (s *Store) GetImportJob(ctx context.Context, id string) (storage.ImportJob, error) {
	if err := ctx.Err(); err != nil {
		return storage.ImportJob{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ImportJob{}, fmt.Errorf("storage is not configured")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return storage.ImportJob{}, fmt.Errorf("job id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT
	id,
	batch_id,
	dedupe_key,
	status,
	attempt_count,
	next_attempt_at,
	lease_owner,
	lease_expires_at,
	last_error,
	processed_at,
	created_at,
	updated_at
FROM import_jobs
WHERE id = ?
`, id)
	job, err := scanImportJob(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ImportJob{}, storage.ErrNotFound
		}
		return storage.ImportJob{}, fmt.Errorf("get import job: %w", err)
	}
	return job, nil
}

// ListImportJobs returns the jobs of one batch, oldest first.
func (s *Store) ListImportJobs(ctx context.Context, batchID string) ([]storage.ImportJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, fmt.Errorf("batch id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	id,
	batch_id,
	dedupe_key,
	status,
	attempt_count,
	next_attempt_at,
	lease_owner,
	lease_expires_at,
	last_error,
	processed_at,
	created_at,
	updated_at
FROM import_jobs
WHERE batch_id = ?
ORDER BY created_at ASC, id ASC
`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	jobs := []storage.ImportJob{}
	for rows.Next() {
		job, scanErr := scanImportJob(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan import job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate import jobs: %w", err)
	}
	return jobs, nil
}

// LeaseImportJobs leases due import jobs for one worker.
func (s *Store) LeaseImportJobs(ctx context.Context, consumer string, limit int, now time.Time, leaseTTL time.Duration) ([]storage.ImportJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return nil, fmt.Errorf("consumer is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	if leaseTTL <= 0 {
		return nil, fmt.Errorf("lease ttl must be greater than zero")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	now = now.UTC()
	leaseExpiresAt := now.Add(leaseTTL)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("start lease transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
SELECT id
FROM import_jobs
WHERE (
	(status = ? AND next_attempt_at <= ?)
	OR
	(status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at <= ?)
)
ORDER BY next_attempt_at ASC, created_at ASC, id ASC
LIMIT ?
`,
		storage.JobStatusPending,
		toMillis(now),
		storage.JobStatusLeased,
		toMillis(now),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select lease candidates: %w", err)
	}
	candidateIDs := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan lease candidate: %w", scanErr)
		}
		candidateIDs = append(candidateIDs, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate lease candidates: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close lease candidates: %w", err)
	}
	if len(candidateIDs) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit empty lease transaction: %w", err)
		}
		return []storage.ImportJob{}, nil
	}

	leased := make([]storage.ImportJob, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		result, updateErr := tx.ExecContext(ctx, `
UPDATE import_jobs
SET
	status = ?,
	lease_owner = ?,
	lease_expires_at = ?,
	updated_at = ?
WHERE id = ?
AND (
	(status = ? AND next_attempt_at <= ?)
	OR
	(status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at <= ?)
)
`,
			storage.JobStatusLeased,
			consumer,
			toMillis(leaseExpiresAt),
			toMillis(now),
			id,
			storage.JobStatusPending,
			toMillis(now),
			storage.JobStatusLeased,
			toMillis(now),
		)
		if updateErr != nil {
			return nil, fmt.Errorf("lease import job %s: %w", id, updateErr)
		}
		rowsAffected, rowsErr := result.RowsAffected()
		if rowsErr != nil {
			return nil, fmt.Errorf("lease rows affected for %s: %w", id, rowsErr)
		}
		if rowsAffected == 0 {
			continue
		}

		row := tx.QueryRowContext(ctx, `
SELECT
	id,
	batch_id,
	dedupe_key,
	status,
	attempt_count,
	next_attempt_at,
	lease_owner,
	lease_expires_at,
	last_error,
	processed_at,
	created_at,
	updated_at
FROM import_jobs
WHERE id = ?
`, id)
		job, scanErr := scanImportJob(row.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan leased import job %s: %w", id, scanErr)
		}
		leased = append(leased, job)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit lease transaction: %w", err)
	}
	return leased, nil
}

// MarkImportJobSucceeded marks one leased import job as succeeded and frees
// its dedupe key.
func (s *Store) MarkImportJobSucceeded(ctx context.Context, id string, consumer string, processedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	id = strings.TrimSpace(id)
	consumer = strings.TrimSpace(consumer)
	if id == "" {
		return fmt.Errorf("job id is required")
	}
	if consumer == "" {
		return fmt.Errorf("consumer is required")
	}
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}
	processedAt = processedAt.UTC()

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE import_jobs
SET
	status = ?,
	dedupe_key = '',
	lease_owner = '',
	lease_expires_at = NULL,
	last_error = '',
	processed_at = ?,
	updated_at = ?
WHERE id = ?
AND status = ?
AND lease_owner = ?
`,
		storage.JobStatusSucceeded,
		toMillis(processedAt),
		toMillis(processedAt),
		id,
		storage.JobStatusLeased,
		consumer,
	)
	if err != nil {
		return fmt.Errorf("mark import job succeeded: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark import job succeeded rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkImportJobRetry marks one leased import job for retry.
func (s *Store) MarkImportJobRetry(ctx context.Context, id string, consumer string, nextAttemptAt time.Time, lastError string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	id = strings.TrimSpace(id)
	consumer = strings.TrimSpace(consumer)
	lastError = strings.TrimSpace(lastError)
	if id == "" {
		return fmt.Errorf("job id is required")
	}
	if consumer == "" {
		return fmt.Errorf("consumer is required")
	}
	if nextAttemptAt.IsZero() {
		return fmt.Errorf("next attempt at is required")
	}
	now := time.Now().UTC()
	nextAttemptAt = nextAttemptAt.UTC()

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE import_jobs
SET
	status = ?,
	attempt_count = attempt_count + 1,
	next_attempt_at = ?,
	lease_owner = '',
	lease_expires_at = NULL,
	last_error = ?,
	processed_at = NULL,
	updated_at = ?
WHERE id = ?
AND status = ?
AND lease_owner = ?
`,
		storage.JobStatusPending,
		toMillis(nextAttemptAt),
		lastError,
		toMillis(now),
		id,
		storage.JobStatusLeased,
		consumer,
	)
	if err != nil {
		return fmt.Errorf("mark import job retry: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark import job retry rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkImportJobDead marks one leased import job as dead and frees its dedupe
// key.
func (s *Store) MarkImportJobDead(ctx context.Context, id string, consumer string, lastError string, processedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	id = strings.TrimSpace(id)
	consumer = strings.TrimSpace(consumer)
	lastError = strings.TrimSpace(lastError)
	if id == "" {
		return fmt.Errorf("job id is required")
	}
	if consumer == "" {
		return fmt.Errorf("consumer is required")
	}
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}
	processedAt = processedAt.UTC()

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE import_jobs
SET
	status = ?,
	dedupe_key = '',
	attempt_count = attempt_count + 1,
	lease_owner = '',
	lease_expires_at = NULL,
	last_error = ?,
	processed_at = ?,
	updated_at = ?
WHERE id = ?
AND status = ?
AND lease_owner = ?
`,
		storage.JobStatusDead,
		lastError,
		toMillis(processedAt),
		toMillis(processedAt),
		id,
		storage.JobStatusLeased,
		consumer,
	)
	if err != nil {
		return fmt.Errorf("mark import job dead: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark import job dead rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ReleaseImportJob hands one leased import job back to the queue without
// counting an attempt.
func (s *Store) ReleaseImportJob(ctx context.Context, id string, consumer string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	id = strings.TrimSpace(id)
	consumer = strings.TrimSpace(consumer)
	if id == "" {
		return fmt.Errorf("job id is required")
	}
	if consumer == "" {
		return fmt.Errorf("consumer is required")
	}
	now := time.Now().UTC()

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE import_jobs
SET
	status = ?,
	lease_owner = '',
	lease_expires_at = NULL,
	updated_at = ?
WHERE id = ?
AND status = ?
AND lease_owner = ?
`,
		storage.JobStatusPending,
		toMillis(now),
		id,
		storage.JobStatusLeased,
		consumer,
	)
	if err != nil {
		return fmt.Errorf("release import job: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("release import job rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type importJobScanner func(dest ...any) error

func scanImportJob(scan importJobScanner) (storage.ImportJob, error) {
	var job storage.ImportJob
	var nextAttemptAt int64
	var createdAt int64
	var updatedAt int64
	var leaseExpiresAt sql.NullInt64
	var processedAt sql.NullInt64
	if err := scan(
		&job.ID,
		&job.BatchID,
		&job.DedupeKey,
		&job.Status,
		&job.AttemptCount,
		&nextAttemptAt,
		&job.LeaseOwner,
		&leaseExpiresAt,
		&job.LastError,
		&processedAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.ImportJob{}, err
	}
	job.NextAttemptAt = fromMillis(nextAttemptAt)
	job.CreatedAt = fromMillis(createdAt)
	job.UpdatedAt = fromMillis(updatedAt)
	if leaseExpiresAt.Valid {
		value := fromMillis(leaseExpiresAt.Int64)
		job.LeaseExpiresAt = &value
	}
	if processedAt.Valid {
		value := fromMillis(processedAt.Int64)
		job.ProcessedAt = &value
	}
	return job, nil
}

func normalizeImportJob(job storage.ImportJob) (storage.ImportJob, error) {
	job.ID = strings.TrimSpace(job.ID)
	job.BatchID = strings.TrimSpace(job.BatchID)
	job.DedupeKey = strings.TrimSpace(job.DedupeKey)
	job.Status = strings.TrimSpace(job.Status)
	job.LeaseOwner = strings.TrimSpace(job.LeaseOwner)
	job.LastError = strings.TrimSpace(job.LastError)
	if job.ID == "" {
		return storage.ImportJob{}, fmt.Errorf("job id is required")
	}
	if job.BatchID == "" {
		return storage.ImportJob{}, fmt.Errorf("batch id is required")
	}
	if job.Status == "" {
		job.Status = storage.JobStatusPending
	}
	if job.AttemptCount < 0 {
		return storage.ImportJob{}, fmt.Errorf("attempt count must be greater than or equal to zero")
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}
	if job.NextAttemptAt.IsZero() {
		job.NextAttemptAt = job.CreatedAt
	}
	return job, nil
}

func enqueueImportJob(ctx context.Context, target execContexter, job storage.ImportJob) error {
	normalized, err := normalizeImportJob(job)
	if err != nil {
		return err
	}

	var leaseExpiresAt sql.NullInt64
	if normalized.LeaseExpiresAt != nil {
		leaseExpiresAt = sql.NullInt64{Int64: toMillis(normalized.LeaseExpiresAt.UTC()), Valid: true}
	}
	var processedAt sql.NullInt64
	if normalized.ProcessedAt != nil {
		processedAt = sql.NullInt64{Int64: toMillis(normalized.ProcessedAt.UTC()), Valid: true}
	}

	_, err = target.ExecContext(ctx, `
INSERT INTO import_jobs (
	id,
	batch_id,
	dedupe_key,
	status,
	attempt_count,
	next_attempt_at,
	lease_owner,
	lease_expires_at,
	last_error,
	processed_at,
	created_at,
	updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(dedupe_key) WHERE dedupe_key <> '' DO NOTHING
`,
		normalized.ID,
		normalized.BatchID,
		normalized.DedupeKey,
		normalized.Status,
		normalized.AttemptCount,
		toMillis(normalized.NextAttemptAt),
		normalized.LeaseOwner,
		leaseExpiresAt,
		normalized.LastError,
		processedAt,
		toMillis(normalized.CreatedAt),
		toMillis(normalized.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("enqueue import job: %w", err)
	}
	return nil
}
