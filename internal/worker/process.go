package worker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/potaudit/potaudit/internal/audit"
	"github.com/potaudit/potaudit/internal/ingest"
	"github.com/potaudit/potaudit/internal/spool"
)

// processBatch runs the audit pipeline for one batch: parse the spooled
// spreadsheets, standardize and analyze the rows, persist everything and
// mark the batch ready.
func (w *Worker) processBatch(ctx context.Context, batchID string) error {
	ctx, span := w.tracer.Start(ctx, "worker.process_batch",
		trace.WithAttributes(attribute.String("batch.id", batchID)))
	defer span.End()

	if err := w.store.MarkBatchProcessing(ctx, batchID, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark batch processing: %w", err)
	}

	paymentsResult, accountsResult, err := w.parseSpool(ctx, batchID)
	if err != nil {
		return err
	}

	_, analyzeSpan := w.tracer.Start(ctx, "worker.analyze")
	payments, _, _ := audit.Standardize(paymentsResult.Payments)
	accounts := audit.StandardizeAccounts(accountsResult.Accounts)
	result := audit.Analyze(audit.Input{
		Payments:       payments,
		Accounts:       accounts,
		MissingColumns: paymentsResult.MissingColumns,
	})
	findings := append(result.Findings, problemFindings(paymentsResult.Problems)...)
	analyzeSpan.End()

	persistCtx, persistSpan := w.tracer.Start(ctx, "worker.persist")
	defer persistSpan.End()
	if err := w.store.ReplacePayments(persistCtx, batchID, payments); err != nil {
		return fmt.Errorf("persist payments: %w", err)
	}
	if err := w.store.ReplaceAccounts(persistCtx, batchID, accounts); err != nil {
		return fmt.Errorf("persist accounts: %w", err)
	}
	if err := w.store.ReplaceFindings(persistCtx, batchID, findings); err != nil {
		return fmt.Errorf("persist findings: %w", err)
	}
	if err := w.store.PutMetrics(persistCtx, batchID, result.Metrics); err != nil {
		return fmt.Errorf("persist metrics: %w", err)
	}
	if err := w.store.MarkBatchReady(persistCtx, batchID, len(payments), len(accounts), time.Now().UTC()); err != nil {
		return fmt.Errorf("mark batch ready: %w", err)
	}
	return nil
}

// parseSpool decodes the payments and accounts spreadsheets in parallel.
// A missing accounts file is fine; a missing payments file is not.
func (w *Worker) parseSpool(ctx context.Context, batchID string) (ingest.PaymentsResult, ingest.AccountsResult, error) {
	_, span := w.tracer.Start(ctx, "worker.parse")
	defer span.End()

	var payments ingest.PaymentsResult
	var accounts ingest.AccountsResult

	var g errgroup.Group
	g.Go(func() error {
		file, err := w.spool.Open(batchID, spool.KindPayments)
		if err != nil {
			return fmt.Errorf("open payments spreadsheet: %w", err)
		}
		defer func() { _ = file.Close() }()

		format, ok := ingest.DetectFormat(file.Name())
		if !ok {
			return fmt.Errorf("payments spreadsheet %s: %w", filepath.Base(file.Name()), ingest.ErrUnsupportedFormat)
		}
		result, err := ingest.ParsePayments(file, format)
		if err != nil {
			return fmt.Errorf("parse payments spreadsheet: %w", err)
		}
		payments = result
		return nil
	})
	g.Go(func() error {
		file, err := w.spool.Open(batchID, spool.KindAccounts)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("open accounts spreadsheet: %w", err)
		}
		defer func() { _ = file.Close() }()

		format, ok := ingest.DetectFormat(file.Name())
		if !ok {
			return fmt.Errorf("accounts spreadsheet %s: %w", filepath.Base(file.Name()), ingest.ErrUnsupportedFormat)
		}
		result, err := ingest.ParseAccounts(file, format)
		if err != nil {
			return fmt.Errorf("parse accounts spreadsheet: %w", err)
		}
		accounts = result
		return nil
	})
	if err := g.Wait(); err != nil {
		return ingest.PaymentsResult{}, ingest.AccountsResult{}, err
	}
	return payments, accounts, nil
}

// problemFindings turns row-level decode problems into persisted findings.
func problemFindings(problems []ingest.Problem) []audit.Finding {
	findings := make([]audit.Finding, 0, len(problems))
	for _, p := range problems {
		findings = append(findings, audit.Finding{
			Kind:   audit.KindParse,
			Code:   audit.CodeInvalidAmount,
			Line:   p.Line,
			Detail: p.Detail,
		})
	}
	return findings
}
