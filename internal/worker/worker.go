// Package worker consumes the import job queue: it leases queued batches,
// runs the audit pipeline over their spooled spreadsheets and persists the
// results. An optional hot-folder watcher registers batches from files
// dropped into a directory.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/potaudit/potaudit/internal/platform/timeouts"
	"github.com/potaudit/potaudit/internal/spool"
	"github.com/potaudit/potaudit/internal/storage"
)

const (
	defaultConsumer     = "import-worker"
	defaultPollInterval = 2 * time.Second
	defaultBatchLimit   = 4
	defaultMaxAttempts  = 8
	defaultRetryBackoff = 5 * time.Second
	defaultRetryMax     = 5 * time.Minute
	releaseTimeout      = 5 * time.Second
)

// Store is the storage surface batch processing needs.
type Store interface {
	storage.BatchStore
	storage.RecordStore
	storage.FindingStore
	storage.MetricsStore
	storage.JobStore
}

// Config controls the processing loop.
type Config struct {
	Consumer      string
	PollInterval  time.Duration
	LeaseTTL      time.Duration
	BatchLimit    int
	MaxAttempts   int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
}

// normalized fills zero fields with defaults.
func (c Config) normalized() Config {
	c.Consumer = strings.TrimSpace(c.Consumer)
	if c.Consumer == "" {
		c.Consumer = defaultConsumer
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = timeouts.JobLease
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = defaultBatchLimit
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = defaultRetryMax
	}
	return c
}

// Worker is the import job consumer.
type Worker struct {
	store  Store
	spool  *spool.Dir
	config Config
	tracer trace.Tracer
}

// New builds a Worker over a store and a spool directory.
func New(store Store, dir *spool.Dir, config Config) *Worker {
	return &Worker{
		store:  store,
		spool:  dir,
		config: config.normalized(),
		tracer: otel.Tracer("potaudit/worker"),
	}
}

// Run polls the queue until ctx is cancelled. Cancellation is a clean stop.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.store == nil || w.spool == nil {
		return fmt.Errorf("worker is not configured")
	}
	log.Printf("worker: consumer %s polling every %s", w.config.Consumer, w.config.PollInterval)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()
	for {
		w.runOnce(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// runOnce leases one round of due jobs and processes them in order.
func (w *Worker) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	jobs, err := w.store.LeaseImportJobs(ctx, w.config.Consumer, w.config.BatchLimit, time.Now().UTC(), w.config.LeaseTTL)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("worker: lease import jobs: %v", err)
		}
		return
	}

	for i, job := range jobs {
		if ctx.Err() != nil {
			w.releaseJobs(jobs[i:])
			return
		}
		w.processJob(ctx, job)
	}
}

// processJob runs one leased job and settles it: ack on success, retry with
// backoff on failure, dead-letter after the attempt budget, handback on
// shutdown.
func (w *Worker) processJob(ctx context.Context, job storage.ImportJob) {
	start := time.Now()
	err := w.processBatch(ctx, job.BatchID)
	if err == nil {
		if ackErr := w.store.MarkImportJobSucceeded(ctx, job.ID, w.config.Consumer, time.Now().UTC()); ackErr != nil {
			log.Printf("worker: ack job %s: %v", job.ID, ackErr)
			return
		}
		log.Printf("worker: batch %s processed in %s", job.BatchID, time.Since(start).Round(time.Millisecond))
		return
	}

	if ctx.Err() != nil {
		w.releaseJobs([]storage.ImportJob{job})
		return
	}

	attempt := job.AttemptCount + 1
	log.Printf("worker: batch %s attempt %d failed: %v", job.BatchID, attempt, err)

	now := time.Now().UTC()
	if markErr := w.store.MarkBatchFailed(ctx, job.BatchID, err.Error(), now); markErr != nil && !errors.Is(markErr, storage.ErrNotFound) {
		log.Printf("worker: mark batch %s failed: %v", job.BatchID, markErr)
	}

	if attempt >= w.config.MaxAttempts {
		if deadErr := w.store.MarkImportJobDead(ctx, job.ID, w.config.Consumer, err.Error(), now); deadErr != nil {
			log.Printf("worker: dead-letter job %s: %v", job.ID, deadErr)
		}
		return
	}
	delay := retryDelay(w.config, attempt)
	if retryErr := w.store.MarkImportJobRetry(ctx, job.ID, w.config.Consumer, now.Add(delay), err.Error()); retryErr != nil {
		log.Printf("worker: schedule retry for job %s: %v", job.ID, retryErr)
	}
}

// releaseJobs hands leased jobs back on shutdown without burning an attempt.
// The writes run on a fresh context because the loop's is already cancelled.
func (w *Worker) releaseJobs(jobs []storage.ImportJob) {
	if len(jobs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	for _, job := range jobs {
		if err := w.store.ReleaseImportJob(ctx, job.ID, w.config.Consumer); err != nil {
			log.Printf("worker: release job %s: %v", job.ID, err)
		}
	}
}

// retryDelay doubles the backoff per attempt up to the configured ceiling.
func retryDelay(config Config, attempt int) time.Duration {
	delay := config.RetryBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= config.RetryMaxDelay || delay <= 0 {
			return config.RetryMaxDelay
		}
	}
	if delay > config.RetryMaxDelay {
		return config.RetryMaxDelay
	}
	return delay
}
