package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/potaudit/potaudit/internal/audit"
)

// ReplaceFindings swaps the findings of one batch, preserving emission order
// through the seq column.
func (s *Store) ReplaceFindings(ctx context.Context, batchID string, findings []audit.Finding) error {
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
		return fmt.Errorf("start replace findings transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM findings WHERE batch_id = ?`, batchID); err != nil {
		return fmt.Errorf("clear findings: %w", err)
	}
	for seq, f := range findings {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO findings (batch_id, seq, kind, code, line, cpf_original, cpf, account_number, beneficiary, detail)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
			batchID,
			seq,
			string(f.Kind),
			f.Code,
			f.Line,
			f.CPFOriginal,
			f.CPFProcessed,
			f.AccountNumber,
			f.Beneficiary,
			f.Detail,
		); err != nil {
			return fmt.Errorf("insert finding %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace findings: %w", err)
	}
	return nil
}

// ListFindings returns the findings of one batch in emission order. A
// non-empty code restricts the result to that finding code.
func (s *Store) ListFindings(ctx context.Context, batchID string, code string) ([]audit.Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	batchID = strings.TrimSpace(batchID)
	code = strings.TrimSpace(code)
	if batchID == "" {
		return nil, fmt.Errorf("batch id is required")
	}

	query := `
SELECT kind, code, line, cpf_original, cpf, account_number, beneficiary, detail
FROM findings
WHERE batch_id = ?
ORDER BY seq ASC
`
	args := []any{batchID}
	if code != "" {
		query = `
SELECT kind, code, line, cpf_original, cpf, account_number, beneficiary, detail
FROM findings
WHERE batch_id = ? AND code = ?
ORDER BY seq ASC
`
		args = append(args, code)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	findings := []audit.Finding{}
	for rows.Next() {
		var f audit.Finding
		var kind string
		if scanErr := rows.Scan(
			&kind,
			&f.Code,
			&f.Line,
			&f.CPFOriginal,
			&f.CPFProcessed,
			&f.AccountNumber,
			&f.Beneficiary,
			&f.Detail,
		); scanErr != nil {
			return nil, fmt.Errorf("scan finding: %w", scanErr)
		}
		f.Kind = audit.FindingKind(kind)
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate findings: %w", err)
	}
	return findings, nil
}
