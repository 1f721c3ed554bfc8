// Package batch coordinates batch registration: the spool files, the batch
// row and its import job are created together so the worker always finds a
// complete batch behind a queued job.
package batch

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/potaudit/potaudit/internal/ingest"
	"github.com/potaudit/potaudit/internal/platform/id"
	"github.com/potaudit/potaudit/internal/spool"
	"github.com/potaudit/potaudit/internal/storage"
)

// Store is the storage surface registration needs.
type Store interface {
	storage.BatchStore
	storage.JobStore
}

// Registrar registers spreadsheet batches and queues their processing.
type Registrar struct {
	store Store
	spool *spool.Dir
}

// New builds a Registrar over a store and a spool directory.
func New(store Store, dir *spool.Dir) *Registrar {
	return &Registrar{store: store, spool: dir}
}

// Input describes one upload. The accounts spreadsheet is optional.
type Input struct {
	Name           string
	Source         string // payments filename as provided by the operator
	AccountsSource string
	CreatedBy      string // empty for watch-folder imports
	Payments       io.Reader
	Accounts       io.Reader
}

// Register stores the upload in the spool, creates the batch row and queues
// an import job. A batch whose job cannot be queued is marked failed so it
// never sits pending forever.
func (r *Registrar) Register(ctx context.Context, input Input) (storage.Batch, error) {
	if r == nil || r.store == nil || r.spool == nil {
		return storage.Batch{}, fmt.Errorf("registrar is not configured")
	}
	if input.Payments == nil {
		return storage.Batch{}, fmt.Errorf("payments spreadsheet is required")
	}

	source := filepath.Base(strings.TrimSpace(input.Source))
	if source == "" || source == "." {
		return storage.Batch{}, fmt.Errorf("payments file name is required")
	}
	if _, ok := ingest.DetectFormat(source); !ok {
		return storage.Batch{}, fmt.Errorf("payments spreadsheet %s: %w", source, ingest.ErrUnsupportedFormat)
	}

	accountsSource := ""
	if input.Accounts != nil {
		accountsSource = filepath.Base(strings.TrimSpace(input.AccountsSource))
		if accountsSource == "" || accountsSource == "." {
			return storage.Batch{}, fmt.Errorf("accounts file name is required")
		}
		if _, ok := ingest.DetectFormat(accountsSource); !ok {
			return storage.Batch{}, fmt.Errorf("accounts spreadsheet %s: %w", accountsSource, ingest.ErrUnsupportedFormat)
		}
	}

	batchID, err := id.NewID()
	if err != nil {
		return storage.Batch{}, fmt.Errorf("mint batch id: %w", err)
	}

	if _, err := r.spool.Save(batchID, spool.KindPayments, filepath.Ext(source), input.Payments); err != nil {
		return storage.Batch{}, fmt.Errorf("spool payments spreadsheet: %w", err)
	}
	if input.Accounts != nil {
		if _, err := r.spool.Save(batchID, spool.KindAccounts, filepath.Ext(accountsSource), input.Accounts); err != nil {
			r.discardSpool(batchID)
			return storage.Batch{}, fmt.Errorf("spool accounts spreadsheet: %w", err)
		}
	}

	now := time.Now().UTC()
	record := storage.Batch{
		ID:             batchID,
		Name:           strings.TrimSpace(input.Name),
		Source:         source,
		AccountsSource: accountsSource,
		Status:         storage.BatchStatusPending,
		CreatedBy:      strings.TrimSpace(input.CreatedBy),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.store.CreateBatch(ctx, record); err != nil {
		r.discardSpool(batchID)
		return storage.Batch{}, fmt.Errorf("create batch: %w", err)
	}

	if err := r.enqueue(ctx, batchID, now); err != nil {
		if markErr := r.store.MarkBatchFailed(ctx, batchID, err.Error(), now); markErr != nil {
			return storage.Batch{}, fmt.Errorf("%w (mark batch failed: %v)", err, markErr)
		}
		return storage.Batch{}, err
	}

	created, err := r.store.GetBatch(ctx, batchID)
	if err != nil {
		return storage.Batch{}, fmt.Errorf("load created batch: %w", err)
	}
	return created, nil
}

// Reprocess resets a batch and queues a fresh import job against its original
// spool files. Queuing is a no-op when a job for the batch is already queued.
func (r *Registrar) Reprocess(ctx context.Context, batchID string) (storage.Batch, error) {
	if r == nil || r.store == nil || r.spool == nil {
		return storage.Batch{}, fmt.Errorf("registrar is not configured")
	}
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return storage.Batch{}, fmt.Errorf("batch id is required")
	}

	if _, err := r.store.GetBatch(ctx, batchID); err != nil {
		return storage.Batch{}, fmt.Errorf("load batch: %w", err)
	}
	if _, err := r.spool.Find(batchID, spool.KindPayments); err != nil {
		return storage.Batch{}, fmt.Errorf("original upload is gone from the spool: %w", err)
	}

	now := time.Now().UTC()
	if err := r.store.ResetBatch(ctx, batchID, now); err != nil {
		return storage.Batch{}, fmt.Errorf("reset batch: %w", err)
	}
	if err := r.enqueue(ctx, batchID, now); err != nil {
		return storage.Batch{}, err
	}

	reset, err := r.store.GetBatch(ctx, batchID)
	if err != nil {
		return storage.Batch{}, fmt.Errorf("load reset batch: %w", err)
	}
	return reset, nil
}

func (r *Registrar) enqueue(ctx context.Context, batchID string, now time.Time) error {
	jobID, err := id.NewID()
	if err != nil {
		return fmt.Errorf("mint job id: %w", err)
	}
	job := storage.ImportJob{
		ID:        jobID,
		BatchID:   batchID,
		DedupeKey: batchID,
		CreatedAt: now,
	}
	if err := r.store.EnqueueImportJob(ctx, job); err != nil {
		return fmt.Errorf("queue import job: %w", err)
	}
	return nil
}

func (r *Registrar) discardSpool(batchID string) {
	// Best-effort cleanup of a registration that never became a batch.
	_ = r.spool.Remove(batchID)
}
