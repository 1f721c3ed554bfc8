package worker

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/potaudit/potaudit/internal/audit"
	"github.com/potaudit/potaudit/internal/platform/timeouts"
	"github.com/potaudit/potaudit/internal/spool"
	"github.com/potaudit/potaudit/internal/storage"
	"github.com/potaudit/potaudit/internal/storage/sqlite"
)

// Four rows: a duplicate pair, a short CPF that pads to a bad check digit,
// and a row with no account and an unparseable amount.
const paymentsFixture = `cpf;nome;conta;projeto;status;data;valor
529.982.247-25;Maria Silva;12345-6;POT Centro;Pago;10/03/2026;150,00
529.982.247-25;Maria Silva;12345-6;POT Centro;Pago;10/03/2026;150,00
123;José Santos;55555-1;POT Leste;Pendente;11/03/2026;50,00
nan;Ana Souza;;POT Leste;Pago;12/03/2026;abc
`

// One CPF holding two accounts.
const accountsFixture = `cpf;titular;conta
529.982.247-25;Maria Silva;12345-6
52998224725;Maria Silva;99999-9
`

func TestConfigNormalizedDefaults(t *testing.T) {
	got := Config{}.normalized()

	want := Config{
		Consumer:      defaultConsumer,
		PollInterval:  defaultPollInterval,
		LeaseTTL:      timeouts.JobLease,
		BatchLimit:    defaultBatchLimit,
		MaxAttempts:   defaultMaxAttempts,
		RetryBackoff:  defaultRetryBackoff,
		RetryMaxDelay: defaultRetryMax,
	}
	if got != want {
		t.Fatalf("normalized config = %+v, want %+v", got, want)
	}
}

func TestConfigNormalizedKeepsExplicitValues(t *testing.T) {
	config := Config{
		Consumer:      " ops-1 ",
		PollInterval:  time.Second,
		LeaseTTL:      time.Minute,
		BatchLimit:    1,
		MaxAttempts:   3,
		RetryBackoff:  2 * time.Second,
		RetryMaxDelay: time.Minute,
	}

	got := config.normalized()
	if got.Consumer != "ops-1" {
		t.Fatalf("consumer = %q, want ops-1", got.Consumer)
	}
	config.Consumer = "ops-1"
	if got != config {
		t.Fatalf("normalized config = %+v, want %+v", got, config)
	}
}

func TestRetryDelay(t *testing.T) {
	defaults := Config{}.normalized()
	tight := Config{RetryBackoff: time.Second, RetryMaxDelay: 4 * time.Second}.normalized()

	tests := []struct {
		name    string
		config  Config
		attempt int
		want    time.Duration
	}{
		{"first attempt", defaults, 1, 5 * time.Second},
		{"second doubles", defaults, 2, 10 * time.Second},
		{"third doubles again", defaults, 3, 20 * time.Second},
		{"capped at ceiling", defaults, 10, 5 * time.Minute},
		{"tight ceiling", tight, 3, 4 * time.Second},
		{"tight ceiling holds", tight, 20, 4 * time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := retryDelay(tc.config, tc.attempt); got != tc.want {
				t.Fatalf("retryDelay(%d) = %s, want %s", tc.attempt, got, tc.want)
			}
		})
	}
}

func TestProcessBatchPersistsAnalysis(t *testing.T) {
	ctx := context.Background()
	store, dir := openWorkerDeps(t)
	seedSpooledBatch(t, store, dir, "batch-1", paymentsFixture, accountsFixture)
	w := New(store, dir, Config{Consumer: "worker-1"})

	if err := w.processBatch(ctx, "batch-1"); err != nil {
		t.Fatalf("process batch: %v", err)
	}

	got, err := store.GetBatch(ctx, "batch-1")
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if got.Status != storage.BatchStatusReady {
		t.Fatalf("status = %q, want %q", got.Status, storage.BatchStatusReady)
	}
	if got.RecordCount != 4 || got.AccountCount != 2 {
		t.Fatalf("counts = %d/%d, want 4/2", got.RecordCount, got.AccountCount)
	}
	if got.ImportedAt == nil {
		t.Fatal("expected imported timestamp")
	}

	payments, err := store.ListPayments(ctx, "batch-1")
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 4 {
		t.Fatalf("payments = %d, want 4", len(payments))
	}
	if payments[0].CPF != "52998224725" || payments[0].AmountCents != 15000 {
		t.Fatalf("unexpected first row: %+v", payments[0])
	}
	if payments[2].CPF != "00000000123" || !payments[2].CPFPadded {
		t.Fatalf("expected padded CPF on row 3: %+v", payments[2])
	}
	if payments[3].CPF != "" || payments[3].AmountCents != 0 {
		t.Fatalf("unexpected last row: %+v", payments[3])
	}

	accounts, err := store.ListAccounts(ctx, "batch-1")
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(accounts) != 2 || accounts[1].CPF != "52998224725" {
		t.Fatalf("unexpected accounts: %+v", accounts)
	}

	metrics, err := store.GetMetrics(ctx, "batch-1")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	want := audit.Metrics{
		TotalRecords:              4,
		TotalPayments:             3,
		InvalidRecords:            1,
		UniqueBeneficiaries:       2,
		UniqueAccounts:            2,
		ActiveProjects:            2,
		TotalCents:                35000,
		DuplicatePayments:         1,
		DuplicateCents:            15000,
		DuplicateCPFs:             1,
		AccountsOpened:            2,
		BeneficiariesWithAccounts: 1,
		PendingPayments:           1,
		PendingCents:              5000,
		CPFEmpty:                  1,
		CPFBadCheckDigit:          1,
	}
	if metrics != want {
		t.Fatalf("metrics = %+v, want %+v", metrics, want)
	}

	findings, err := store.ListFindings(ctx, "batch-1", "")
	if err != nil {
		t.Fatalf("list findings: %v", err)
	}
	if len(findings) != 6 {
		t.Fatalf("findings = %d, want 6: %+v", len(findings), findings)
	}
	last := findings[len(findings)-1]
	if last.Kind != audit.KindParse || last.Code != audit.CodeInvalidAmount || last.Line != 5 {
		t.Fatalf("expected trailing parse finding, got %+v", last)
	}

	duplicates, err := store.ListFindings(ctx, "batch-1", audit.CodeDuplicatePayment)
	if err != nil {
		t.Fatalf("list duplicate findings: %v", err)
	}
	if len(duplicates) != 1 || duplicates[0].Detail != "2 ocorrências nas linhas 2, 3" {
		t.Fatalf("unexpected duplicate findings: %+v", duplicates)
	}
}

func TestProcessBatchWithoutAccountsFile(t *testing.T) {
	ctx := context.Background()
	store, dir := openWorkerDeps(t)
	seedSpooledBatch(t, store, dir, "batch-1", paymentsFixture, "")
	w := New(store, dir, Config{})

	if err := w.processBatch(ctx, "batch-1"); err != nil {
		t.Fatalf("process batch: %v", err)
	}

	metrics, err := store.GetMetrics(ctx, "batch-1")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	if metrics.AccountsOpened != 0 || metrics.DuplicateCPFs != 0 {
		t.Fatalf("expected no account metrics, got %+v", metrics)
	}
}

func TestProcessBatchMissingSpool(t *testing.T) {
	ctx := context.Background()
	store, dir := openWorkerDeps(t)
	seedSpooledBatch(t, store, dir, "batch-1", "", "")
	w := New(store, dir, Config{})

	err := w.processBatch(ctx, "batch-1")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected missing spool error, got %v", err)
	}
}

func TestProcessJobAcksOnSuccess(t *testing.T) {
	ctx := context.Background()
	store, dir := openWorkerDeps(t)
	seedSpooledBatch(t, store, dir, "batch-1", paymentsFixture, accountsFixture)
	w := New(store, dir, Config{Consumer: "worker-1"})

	enqueueTestJob(t, store, "job-1", "batch-1")
	jobs, err := store.LeaseImportJobs(ctx, "worker-1", 1, time.Now().UTC(), time.Minute)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("lease = %v jobs, err %v", len(jobs), err)
	}

	w.processJob(ctx, jobs[0])

	job, err := store.GetImportJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != storage.JobStatusSucceeded || job.ProcessedAt == nil {
		t.Fatalf("unexpected job after success: %+v", job)
	}
	batch, err := store.GetBatch(ctx, "batch-1")
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if batch.Status != storage.BatchStatusReady {
		t.Fatalf("batch status = %q, want %q", batch.Status, storage.BatchStatusReady)
	}
}

func TestProcessJobRetriesThenDead(t *testing.T) {
	ctx := context.Background()
	store, dir := openWorkerDeps(t)
	// No spool file, so every attempt fails.
	seedSpooledBatch(t, store, dir, "batch-1", "", "")
	w := New(store, dir, Config{Consumer: "worker-1", MaxAttempts: 2, RetryBackoff: time.Second})

	enqueueTestJob(t, store, "job-1", "batch-1")
	jobs, err := store.LeaseImportJobs(ctx, "worker-1", 1, time.Now().UTC(), time.Minute)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("lease = %v jobs, err %v", len(jobs), err)
	}

	w.processJob(ctx, jobs[0])

	job, err := store.GetImportJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != storage.JobStatusPending || job.AttemptCount != 1 {
		t.Fatalf("expected retry scheduled, got %+v", job)
	}
	if job.LastError == "" {
		t.Fatal("expected last error recorded")
	}
	batch, err := store.GetBatch(ctx, "batch-1")
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if batch.Status != storage.BatchStatusFailed || batch.Error == "" {
		t.Fatalf("expected failed batch, got %+v", batch)
	}

	jobs, err = store.LeaseImportJobs(ctx, "worker-1", 1, time.Now().UTC().Add(time.Minute), time.Minute)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("second lease = %v jobs, err %v", len(jobs), err)
	}

	w.processJob(ctx, jobs[0])

	job, err = store.GetImportJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != storage.JobStatusDead || job.AttemptCount != 2 || job.ProcessedAt == nil {
		t.Fatalf("expected dead job, got %+v", job)
	}
}

func TestProcessJobReleasesOnCancelledContext(t *testing.T) {
	ctx := context.Background()
	store, dir := openWorkerDeps(t)
	seedSpooledBatch(t, store, dir, "batch-1", "", "")
	w := New(store, dir, Config{Consumer: "worker-1"})

	enqueueTestJob(t, store, "job-1", "batch-1")
	jobs, err := store.LeaseImportJobs(ctx, "worker-1", 1, time.Now().UTC(), time.Minute)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("lease = %v jobs, err %v", len(jobs), err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	w.processJob(cancelled, jobs[0])

	job, err := store.GetImportJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != storage.JobStatusPending || job.AttemptCount != 0 {
		t.Fatalf("expected released job, got %+v", job)
	}
	if job.LeaseOwner != "" {
		t.Fatalf("lease owner = %q, want empty", job.LeaseOwner)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store, dir := openWorkerDeps(t)
	w := New(store, dir, Config{PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func enqueueTestJob(t *testing.T, store *sqlite.Store, id, batchID string) {
	t.Helper()
	err := store.EnqueueImportJob(context.Background(), storage.ImportJob{
		ID:        id,
		BatchID:   batchID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("enqueue job: %v", err)
	}
}

func seedSpooledBatch(t *testing.T, store *sqlite.Store, dir *spool.Dir, id, payments, accounts string) {
	t.Helper()
	ctx := context.Background()
	err := store.CreateBatch(ctx, storage.Batch{
		ID:        id,
		Source:    "pagamentos.csv",
		Status:    storage.BatchStatusPending,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if payments != "" {
		if _, err := dir.Save(id, spool.KindPayments, ".csv", strings.NewReader(payments)); err != nil {
			t.Fatalf("spool payments: %v", err)
		}
	}
	if accounts != "" {
		if _, err := dir.Save(id, spool.KindAccounts, ".csv", strings.NewReader(accounts)); err != nil {
			t.Fatalf("spool accounts: %v", err)
		}
	}
}

func openWorkerDeps(t *testing.T) (*sqlite.Store, *spool.Dir) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "potaudit.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	dir, err := spool.New(filepath.Join(t.TempDir(), "spool"))
	if err != nil {
		t.Fatalf("new spool: %v", err)
	}
	return store, dir
}
