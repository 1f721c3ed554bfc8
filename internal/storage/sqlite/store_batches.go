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

// CreateBatch registers one uploaded batch.
func (s *Store) CreateBatch(ctx context.Context, batch storage.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	normalized, err := normalizeBatch(batch)
	if err != nil {
		return err
	}

	var importedAt sql.NullInt64
	if normalized.ImportedAt != nil {
		importedAt = sql.NullInt64{Int64: toMillis(normalized.ImportedAt.UTC()), Valid: true}
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO batches (
	id,
	name,
	source,
	accounts_source,
	status,
	error,
	created_by,
	record_count,
	account_count,
	imported_at,
	created_at,
	updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		normalized.ID,
		normalized.Name,
		normalized.Source,
		normalized.AccountsSource,
		normalized.Status,
		normalized.Error,
		normalized.CreatedBy,
		normalized.RecordCount,
		normalized.AccountCount,
		importedAt,
		toMillis(normalized.CreatedAt),
		toMillis(normalized.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

// GetBatch returns one batch by ID.
func (s *Store) GetBatch(ctx context.Context, id string) (storage.Batch, error) {
	if err := ctx.Err(); err != nil {
		return storage.Batch{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Batch{}, fmt.Errorf("storage is not configured")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Batch{}, fmt.Errorf("batch id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, source, accounts_source, status, error, created_by, record_count, account_count, imported_at, created_at, updated_at
FROM batches
WHERE id = ?
`, id)
	batch, err := scanBatch(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Batch{}, storage.ErrNotFound
		}
		return storage.Batch{}, fmt.Errorf("get batch: %w", err)
	}
	return batch, nil
}

// ListBatches returns the most recently created batches, newest first.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]storage.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, name, source, accounts_source, status, error, created_by, record_count, account_count, imported_at, created_at, updated_at
FROM batches
ORDER BY created_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	batches := []storage.Batch{}
	for rows.Next() {
		batch, scanErr := scanBatch(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan batch: %w", scanErr)
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return batches, nil
}

// MarkBatchProcessing moves one batch into the processing state.
func (s *Store) MarkBatchProcessing(ctx context.Context, id string, now time.Time) error {
	return s.updateBatchStatus(ctx, id, storage.BatchStatusProcessing, "", now)
}

// MarkBatchReady records a successful import and its row counts.
func (s *Store) MarkBatchReady(ctx context.Context, id string, recordCount int, accountCount int, importedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("batch id is required")
	}
	if recordCount < 0 || accountCount < 0 {
		return fmt.Errorf("counts must be greater than or equal to zero")
	}
	if importedAt.IsZero() {
		importedAt = time.Now().UTC()
	}
	importedAt = importedAt.UTC()

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE batches
SET
	status = ?,
	error = '',
	record_count = ?,
	account_count = ?,
	imported_at = ?,
	updated_at = ?
WHERE id = ?
`,
		storage.BatchStatusReady,
		recordCount,
		accountCount,
		toMillis(importedAt),
		toMillis(importedAt),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark batch ready: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark batch ready rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkBatchFailed records a failed import and its reason.
func (s *Store) MarkBatchFailed(ctx context.Context, id string, reason string, now time.Time) error {
	return s.updateBatchStatus(ctx, id, storage.BatchStatusFailed, strings.TrimSpace(reason), now)
}

// ResetBatch puts a batch back into the pending state before a reprocess.
func (s *Store) ResetBatch(ctx context.Context, id string, now time.Time) error {
	return s.updateBatchStatus(ctx, id, storage.BatchStatusPending, "", now)
}

func (s *Store) updateBatchStatus(ctx context.Context, id string, status string, reason string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("batch id is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE batches
SET status = ?, error = ?, updated_at = ?
WHERE id = ?
`, status, reason, toMillis(now), id)
	if err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update batch status rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type batchScanner func(dest ...any) error

func scanBatch(scan batchScanner) (storage.Batch, error) {
	var batch storage.Batch
	var importedAt sql.NullInt64
	var createdAt int64
	var updatedAt int64
	if err := scan(
		&batch.ID,
		&batch.Name,
		&batch.Source,
		&batch.AccountsSource,
		&batch.Status,
		&batch.Error,
		&batch.CreatedBy,
		&batch.RecordCount,
		&batch.AccountCount,
		&importedAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.Batch{}, err
	}
	if importedAt.Valid {
		value := fromMillis(importedAt.Int64)
		batch.ImportedAt = &value
	}
	batch.CreatedAt = fromMillis(createdAt)
	batch.UpdatedAt = fromMillis(updatedAt)
	return batch, nil
}

func normalizeBatch(batch storage.Batch) (storage.Batch, error) {
	batch.ID = strings.TrimSpace(batch.ID)
	batch.Name = strings.TrimSpace(batch.Name)
	batch.Source = strings.TrimSpace(batch.Source)
	batch.AccountsSource = strings.TrimSpace(batch.AccountsSource)
	batch.Status = strings.TrimSpace(batch.Status)
	batch.Error = strings.TrimSpace(batch.Error)
	batch.CreatedBy = strings.TrimSpace(batch.CreatedBy)
	if batch.ID == "" {
		return storage.Batch{}, fmt.Errorf("batch id is required")
	}
	if batch.Source == "" {
		return storage.Batch{}, fmt.Errorf("batch source is required")
	}
	if batch.Name == "" {
		batch.Name = batch.Source
	}
	if batch.Status == "" {
		batch.Status = storage.BatchStatusPending
	}
	switch batch.Status {
	case storage.BatchStatusPending, storage.BatchStatusProcessing, storage.BatchStatusReady, storage.BatchStatusFailed:
	default:
		return storage.Batch{}, fmt.Errorf("unknown batch status %q", batch.Status)
	}
	if batch.RecordCount < 0 || batch.AccountCount < 0 {
		return storage.Batch{}, fmt.Errorf("counts must be greater than or equal to zero")
	}
	now := time.Now().UTC()
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}
	if batch.UpdatedAt.IsZero() {
		batch.UpdatedAt = batch.CreatedAt
	}
	return batch, nil
}
