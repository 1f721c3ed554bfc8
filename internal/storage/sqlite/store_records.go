package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/potaudit/potaudit/internal/audit"
	"github.com/potaudit/potaudit/internal/storage"
)

// ReplacePayments swaps the payment rows of one batch in a single
// transaction, so readers never observe a half-imported batch.
func (s *Store) ReplacePayments(ctx context.Context, batchID string, payments []audit.Payment) error {
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

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start replace payments transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE batch_id = ?`, batchID); err != nil {
		return fmt.Errorf("clear payments: %w", err)
	}
	for _, p := range payments {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO payments (
	batch_id,
	line,
	cpf_original,
	cpf,
	cpf_padded,
	rg_original,
	rg,
	beneficiary,
	account_number,
	project,
	status,
	payment_date,
	amount_raw,
	amount_cents
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
			batchID,
			p.Line,
			p.CPFOriginal,
			p.CPF,
			p.CPFPadded,
			p.RGOriginal,
			p.RG,
			p.Beneficiary,
			p.AccountNumber,
			p.Project,
			p.Status,
			p.PaymentDate,
			p.AmountRaw,
			p.AmountCents,
		); err != nil {
			return fmt.Errorf("insert payment line %d: %w", p.Line, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace payments: %w", err)
	}
	return nil
}

// ListPayments returns the payment rows of one batch in spreadsheet order.
func (s *Store) ListPayments(ctx context.Context, batchID string) ([]audit.Payment, error) {
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
SELECT line, cpf_original, cpf, cpf_padded, rg_original, rg, beneficiary, account_number, project, status, payment_date, amount_raw, amount_cents
FROM payments
WHERE batch_id = ?
ORDER BY line ASC
`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	payments := []audit.Payment{}
	for rows.Next() {
		p, scanErr := scanPayment(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan payment: %w", scanErr)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return payments, nil
}

// ReplaceAccounts swaps the account rows of one batch in a single transaction.
func (s *Store) ReplaceAccounts(ctx context.Context, batchID string, accounts []audit.Account) error {
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

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start replace accounts transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE batch_id = ?`, batchID); err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}
	for _, a := range accounts {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO accounts (batch_id, line, cpf_original, cpf, holder, account_number)
VALUES (?, ?, ?, ?, ?, ?)
`,
			batchID,
			a.Line,
			a.CPFOriginal,
			a.CPF,
			a.Holder,
			a.AccountNumber,
		); err != nil {
			return fmt.Errorf("insert account line %d: %w", a.Line, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace accounts: %w", err)
	}
	return nil
}

// ListAccounts returns the account rows of one batch in spreadsheet order.
func (s *Store) ListAccounts(ctx context.Context, batchID string) ([]audit.Account, error) {
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
SELECT line, cpf_original, cpf, holder, account_number
FROM accounts
WHERE batch_id = ?
ORDER BY line ASC
`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	accounts := []audit.Account{}
	for rows.Next() {
		var a audit.Account
		if scanErr := rows.Scan(&a.Line, &a.CPFOriginal, &a.CPF, &a.Holder, &a.AccountNumber); scanErr != nil {
			return nil, fmt.Errorf("scan account: %w", scanErr)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// FindPaymentsByCPF matches a normalized CPF across all batches.
func (s *Store) FindPaymentsByCPF(ctx context.Context, cpf string, limit int) ([]storage.PaymentHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	cpf = strings.TrimSpace(cpf)
	if cpf == "" {
		return nil, fmt.Errorf("cpf is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT batch_id, line, cpf_original, cpf, cpf_padded, rg_original, rg, beneficiary, account_number, project, status, payment_date, amount_raw, amount_cents
FROM payments
WHERE cpf = ?
ORDER BY batch_id ASC, line ASC
LIMIT ?
`, cpf, limit)
	if err != nil {
		return nil, fmt.Errorf("find payments by cpf: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	hits := []storage.PaymentHit{}
	for rows.Next() {
		var hit storage.PaymentHit
		p, scanErr := scanPayment(func(dest ...any) error {
			return rows.Scan(append([]any{&hit.BatchID}, dest...)...)
		})
		if scanErr != nil {
			return nil, fmt.Errorf("scan payment hit: %w", scanErr)
		}
		hit.Payment = p
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment hits: %w", err)
	}
	return hits, nil
}

type paymentScanner func(dest ...any) error

func scanPayment(scan paymentScanner) (audit.Payment, error) {
	var p audit.Payment
	if err := scan(
		&p.Line,
		&p.CPFOriginal,
		&p.CPF,
		&p.CPFPadded,
		&p.RGOriginal,
		&p.RG,
		&p.Beneficiary,
		&p.AccountNumber,
		&p.Project,
		&p.Status,
		&p.PaymentDate,
		&p.AmountRaw,
		&p.AmountCents,
	); err != nil {
		return audit.Payment{}, err
	}
	return p, nil
}
