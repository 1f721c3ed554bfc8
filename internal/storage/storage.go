package storage

import (
	"context"
	"time"

	"github.com/potaudit/potaudit/internal/audit"
	"github.com/potaudit/potaudit/internal/platform/errors"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// Operator roles.
const (
	RoleAdmin   = "admin"
	RoleAnalyst = "analyst"
)

// User is an operator account. Usernames are stored lowercase.
type User struct {
	ID           string
	Username     string
	DisplayName  string
	PasswordHash string
	Role         string
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserStore persists operator accounts.
type UserStore interface {
	PutUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	SetUserDisabled(ctx context.Context, id string, disabled bool, now time.Time) error
}

// Session is one logged-in operator session backing the browser cookie.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionStore persists login sessions.
type SessionStore interface {
	PutSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteUserSessions(ctx context.Context, userID string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) error
}

// Batch lifecycle states.
const (
	BatchStatusPending    = "pending"
	BatchStatusProcessing = "processing"
	BatchStatusReady      = "ready"
	BatchStatusFailed     = "failed"
)

// Batch is one uploaded payment spreadsheet, optionally paired with a bank
// account spreadsheet, moving through the ingest pipeline.
type Batch struct {
	ID             string
	Name           string
	Source         string // payments filename as uploaded
	AccountsSource string // accounts filename as uploaded, empty when absent
	Status         string
	Error          string
	CreatedBy      string // operator user id; empty for watch-folder imports
	RecordCount    int
	AccountCount   int
	ImportedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BatchStore persists batch lifecycle state.
type BatchStore interface {
	CreateBatch(ctx context.Context, batch Batch) error
	GetBatch(ctx context.Context, id string) (Batch, error)
	// ListBatches returns the most recently created batches, newest first.
	ListBatches(ctx context.Context, limit int) ([]Batch, error)
	MarkBatchProcessing(ctx context.Context, id string, now time.Time) error
	MarkBatchReady(ctx context.Context, id string, recordCount int, accountCount int, importedAt time.Time) error
	MarkBatchFailed(ctx context.Context, id string, reason string, now time.Time) error
	// ResetBatch puts a batch back into the pending state before a reprocess.
	ResetBatch(ctx context.Context, id string, now time.Time) error
}

// PaymentHit is one payment row matched across batches.
type PaymentHit struct {
	BatchID string
	Payment audit.Payment
}

// RecordStore persists the standardized rows of a batch.
type RecordStore interface {
	ReplacePayments(ctx context.Context, batchID string, payments []audit.Payment) error
	ListPayments(ctx context.Context, batchID string) ([]audit.Payment, error)
	ReplaceAccounts(ctx context.Context, batchID string, accounts []audit.Account) error
	ListAccounts(ctx context.Context, batchID string) ([]audit.Account, error)
	// FindPaymentsByCPF matches a normalized CPF across all batches.
	FindPaymentsByCPF(ctx context.Context, cpf string, limit int) ([]PaymentHit, error)
}

// FindingStore persists analysis findings in emission order.
type FindingStore interface {
	ReplaceFindings(ctx context.Context, batchID string, findings []audit.Finding) error
	// ListFindings returns the findings of a batch in emission order. A
	// non-empty code restricts the result to that finding code.
	ListFindings(ctx context.Context, batchID string, code string) ([]audit.Finding, error)
}

// Overview aggregates ready batches for the dashboard.
type Overview struct {
	Batches           int
	ReadyBatches      int
	TotalRecords      int
	TotalPayments     int
	TotalCents        int64
	DuplicatePayments int
	ProblemCPFs       int
	PendingPayments   int
}

// MetricsStore persists the per-batch analysis snapshot.
type MetricsStore interface {
	PutMetrics(ctx context.Context, batchID string, metrics audit.Metrics) error
	GetMetrics(ctx context.Context, batchID string) (audit.Metrics, error)
	GetOverview(ctx context.Context) (Overview, error)
}

// Import job states.
const (
	JobStatusPending   = "pending"
	JobStatusLeased    = "leased"
	JobStatusSucceeded = "succeeded"
	JobStatusDead      = "dead"
)

// ImportJob is one queued request to process a batch. Jobs are leased by
// workers and survive process restarts.
type ImportJob struct {
	ID             string
	BatchID        string
	DedupeKey      string
	Status         string
	AttemptCount   int
	NextAttemptAt  time.Time
	LeaseOwner     string
	LeaseExpiresAt *time.Time
	LastError      string
	ProcessedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// JobStore persists the import job queue.
type JobStore interface {
	// EnqueueImportJob inserts a job. While a queued job holds the same
	// non-empty dedupe key the insert is a no-op; the key is released when
	// the job leaves the queue.
	EnqueueImportJob(ctx context.Context, job ImportJob) error
	GetImportJob(ctx context.Context, id string) (ImportJob, error)
	ListImportJobs(ctx context.Context, batchID string) ([]ImportJob, error)
	// LeaseImportJobs leases due pending jobs, or jobs whose lease expired,
	// for one worker.
	LeaseImportJobs(ctx context.Context, consumer string, limit int, now time.Time, leaseTTL time.Duration) ([]ImportJob, error)
	MarkImportJobSucceeded(ctx context.Context, id string, consumer string, processedAt time.Time) error
	MarkImportJobRetry(ctx context.Context, id string, consumer string, nextAttemptAt time.Time, lastError string) error
	MarkImportJobDead(ctx context.Context, id string, consumer string, lastError string, processedAt time.Time) error
	// ReleaseImportJob hands a leased job back to the queue without counting
	// an attempt. Used on worker shutdown.
	ReleaseImportJob(ctx context.Context, id string, consumer string) error
}
