package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/potaudit/potaudit/internal/audit"
	"github.com/potaudit/potaudit/internal/storage"
)

// PutMetrics stores the analysis snapshot of one batch.
func (s *Store) PutMetrics(ctx context.Context, batchID string, metrics audit.Metrics) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return fmt.Errorf("batch id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO batch_metrics (
	batch_id,
	total_records,
	total_payments,
	invalid_records,
	unique_beneficiaries,
	unique_accounts,
	active_projects,
	total_cents,
	duplicate_payments,
	duplicate_cents,
	duplicate_cpfs,
	accounts_opened,
	beneficiaries_with_accounts,
	pending_payments,
	pending_cents,
	cpf_empty,
	cpf_invalid_chars,
	cpf_bad_length,
	cpf_bad_check_digit,
	updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (batch_id) DO UPDATE SET
	total_records = excluded.total_records,
	total_payments = excluded.total_payments,
	invalid_records = excluded.invalid_records,
	unique_beneficiaries = excluded.unique_beneficiaries,
	unique_accounts = excluded.unique_accounts,
	active_projects = excluded.active_projects,
	total_cents = excluded.total_cents,
	duplicate_payments = excluded.duplicate_payments,
	duplicate_cents = excluded.duplicate_cents,
	duplicate_cpfs = excluded.duplicate_cpfs,
	accounts_opened = excluded.accounts_opened,
	beneficiaries_with_accounts = excluded.beneficiaries_with_accounts,
	pending_payments = excluded.pending_payments,
	pending_cents = excluded.pending_cents,
	cpf_empty = excluded.cpf_empty,
	cpf_invalid_chars = excluded.cpf_invalid_chars,
	cpf_bad_length = excluded.cpf_bad_length,
	cpf_bad_check_digit = excluded.cpf_bad_check_digit,
	updated_at = excluded.updated_at
`,
		batchID,
		metrics.TotalRecords,
		metrics.TotalPayments,
		metrics.InvalidRecords,
		metrics.UniqueBeneficiaries,
		metrics.UniqueAccounts,
		metrics.ActiveProjects,
		metrics.TotalCents,
		metrics.DuplicatePayments,
		metrics.DuplicateCents,
		metrics.DuplicateCPFs,
		metrics.AccountsOpened,
		metrics.BeneficiariesWithAccounts,
		metrics.PendingPayments,
		metrics.PendingCents,
		metrics.CPFEmpty,
		metrics.CPFInvalidChars,
		metrics.CPFBadLength,
		metrics.CPFBadCheckDigit,
		toMillis(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("put metrics: %w", err)
	}
	return nil
}

// GetMetrics returns the analysis snapshot of one batch.
func (s *Store) GetMetrics(ctx context.Context, batchID string) (audit.Metrics, error) {
	if err := ctx.Err(); err != nil {
		return audit.Metrics{}, err
	}
	if s == nil || s.sqlDB == nil {
		return audit.Metrics{}, fmt.Errorf("storage is not configured")
	}

	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return audit.Metrics{}, fmt.Errorf("batch id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT
	total_records,
	total_payments,
	invalid_records,
	unique_beneficiaries,
	unique_accounts,
	active_projects,
	total_cents,
	duplicate_payments,
	duplicate_cents,
	duplicate_cpfs,
	accounts_opened,
	beneficiaries_with_accounts,
	pending_payments,
	pending_cents,
	cpf_empty,
	cpf_invalid_chars,
	cpf_bad_length,
	cpf_bad_check_digit
FROM batch_metrics
WHERE batch_id = ?
`, batchID)

	var metrics audit.Metrics
	if err := row.Scan(
		&metrics.TotalRecords,
		&metrics.TotalPayments,
		&metrics.InvalidRecords,
		&metrics.UniqueBeneficiaries,
		&metrics.UniqueAccounts,
		&metrics.ActiveProjects,
		&metrics.TotalCents,
		&metrics.DuplicatePayments,
		&metrics.DuplicateCents,
		&metrics.DuplicateCPFs,
		&metrics.AccountsOpened,
		&metrics.BeneficiariesWithAccounts,
		&metrics.PendingPayments,
		&metrics.PendingCents,
		&metrics.CPFEmpty,
		&metrics.CPFInvalidChars,
		&metrics.CPFBadLength,
		&metrics.CPFBadCheckDigit,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return audit.Metrics{}, storage.ErrNotFound
		}
		return audit.Metrics{}, fmt.Errorf("get metrics: %w", err)
	}
	return metrics, nil
}

// GetOverview aggregates batch counts and ready-batch metrics for the
// dashboard.
func (s *Store) GetOverview(ctx context.Context) (storage.Overview, error) {
	if err := ctx.Err(); err != nil {
		return storage.Overview{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Overview{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT
	COUNT(*),
	COALESCE(SUM(CASE WHEN b.status = ?1 THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(m.total_records), 0),
	COALESCE(SUM(m.total_payments), 0),
	COALESCE(SUM(m.total_cents), 0),
	COALESCE(SUM(m.duplicate_payments), 0),
	COALESCE(SUM(m.cpf_empty + m.cpf_invalid_chars + m.cpf_bad_length + m.cpf_bad_check_digit), 0),
	COALESCE(SUM(m.pending_payments), 0)
FROM batches b
LEFT JOIN batch_metrics m ON m.batch_id = b.id AND b.status = ?1
`, storage.BatchStatusReady)

	var overview storage.Overview
	if err := row.Scan(
		&overview.Batches,
		&overview.ReadyBatches,
		&overview.TotalRecords,
		&overview.TotalPayments,
		&overview.TotalCents,
		&overview.DuplicatePayments,
		&overview.ProblemCPFs,
		&overview.PendingPayments,
	); err != nil {
		return storage.Overview{}, fmt.Errorf("get overview: %w", err)
	}
	return overview, nil
}
