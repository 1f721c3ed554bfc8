package mcpserver

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/potaudit/potaudit/internal/audit"
	"github.com/potaudit/potaudit/internal/auth"
	"github.com/potaudit/potaudit/internal/report"
	"github.com/potaudit/potaudit/internal/storage"
)

const (
	defaultBatchLimit   = 20
	defaultFindingLimit = 100
	lookupLimit         = 200
)

// ListBatchesInput represents the MCP tool input for listing batches.
type ListBatchesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of batches to return (default 20)"`
}

// BatchSummary represents one batch in MCP tool output.
type BatchSummary struct {
	ID           string `json:"id" jsonschema:"batch identifier"`
	Name         string `json:"name,omitempty" jsonschema:"operator-given batch name"`
	Source       string `json:"source" jsonschema:"payments spreadsheet filename"`
	Status       string `json:"status" jsonschema:"batch status (pending, processing, ready, failed)"`
	Error        string `json:"error,omitempty" jsonschema:"failure reason when status is failed"`
	RecordCount  int    `json:"record_count" jsonschema:"number of payment rows"`
	AccountCount int    `json:"account_count" jsonschema:"number of bank account rows"`
	CreatedAt    string `json:"created_at" jsonschema:"RFC3339 timestamp when the batch was registered"`
	ImportedAt   string `json:"imported_at,omitempty" jsonschema:"RFC3339 timestamp when processing finished"`
}

// ListBatchesResult represents the MCP tool output for listing batches.
type ListBatchesResult struct {
	Batches []BatchSummary `json:"batches"`
}

// BatchMetricsInput represents the MCP tool input for batch metrics.
type BatchMetricsInput struct {
	BatchID string `json:"batch_id" jsonschema:"batch identifier"`
}

// BatchMetricsResult represents the MCP tool output for batch metrics.
type BatchMetricsResult struct {
	BatchID                   string `json:"batch_id"`
	Status                    string `json:"status"`
	TotalRecords              int    `json:"total_records"`
	TotalPayments             int    `json:"total_payments"`
	InvalidRecords            int    `json:"invalid_records"`
	UniqueBeneficiaries       int    `json:"unique_beneficiaries"`
	UniqueAccounts            int    `json:"unique_accounts"`
	ActiveProjects            int    `json:"active_projects"`
	TotalCents                int64  `json:"total_cents"`
	TotalFormatted            string `json:"total_formatted" jsonschema:"total amount formatted as Brazilian reais"`
	ProblemCPFs               int    `json:"problem_cpfs"`
	DuplicatePayments         int    `json:"duplicate_payments"`
	DuplicateCents            int64  `json:"duplicate_cents"`
	DuplicateCPFs             int    `json:"duplicate_cpfs"`
	AccountsOpened            int    `json:"accounts_opened"`
	BeneficiariesWithAccounts int    `json:"beneficiaries_with_accounts"`
	PendingPayments           int    `json:"pending_payments"`
	PendingCents              int64  `json:"pending_cents"`
	CPFEmpty                  int    `json:"cpf_empty"`
	CPFInvalidChars           int    `json:"cpf_invalid_chars"`
	CPFBadLength              int    `json:"cpf_bad_length"`
	CPFBadCheckDigit          int    `json:"cpf_bad_check_digit"`
}

// ListFindingsInput represents the MCP tool input for listing findings.
type ListFindingsInput struct {
	BatchID string `json:"batch_id" jsonschema:"batch identifier"`
	Code    string `json:"code,omitempty" jsonschema:"optional finding code filter (e.g. cpf_empty, duplicate_payment)"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of findings to return (default 100)"`
}

// FindingEntry represents one audit finding in MCP tool output.
type FindingEntry struct {
	Kind          string `json:"kind" jsonschema:"finding kind (cpf, absence, duplicate, parse)"`
	Code          string `json:"code" jsonschema:"finding code"`
	Line          int    `json:"line,omitempty" jsonschema:"1-based spreadsheet line"`
	CPFOriginal   string `json:"cpf_original,omitempty" jsonschema:"CPF as it appeared in the spreadsheet"`
	CPFProcessed  string `json:"cpf_processed,omitempty" jsonschema:"CPF after normalization"`
	AccountNumber string `json:"account_number,omitempty"`
	Beneficiary   string `json:"beneficiary,omitempty"`
	Detail        string `json:"detail,omitempty"`
}

// ListFindingsResult represents the MCP tool output for listing findings.
type ListFindingsResult struct {
	BatchID  string         `json:"batch_id"`
	Total    int            `json:"total" jsonschema:"total findings matching the filter, before the limit"`
	Findings []FindingEntry `json:"findings"`
}

// LookupBeneficiaryInput represents the MCP tool input for CPF lookups.
type LookupBeneficiaryInput struct {
	CPF string `json:"cpf" jsonschema:"beneficiary CPF, with or without punctuation"`
}

// PaymentEntry represents one payment row in MCP tool output.
type PaymentEntry struct {
	BatchID       string `json:"batch_id"`
	Line          int    `json:"line" jsonschema:"1-based spreadsheet line"`
	Beneficiary   string `json:"beneficiary"`
	AccountNumber string `json:"account_number,omitempty"`
	Project       string `json:"project,omitempty"`
	Status        string `json:"status,omitempty"`
	PaymentDate   string `json:"payment_date,omitempty"`
	Amount        string `json:"amount" jsonschema:"amount formatted as Brazilian reais"`
	AmountCents   int64  `json:"amount_cents"`
}

// LookupBeneficiaryResult represents the MCP tool output for CPF lookups.
type LookupBeneficiaryResult struct {
	CPFDigest string         `json:"cpf_digest" jsonschema:"salted digest of the CPF, safe for logs and follow-up questions"`
	Payments  []PaymentEntry `json:"payments"`
}

// ListBatchesTool defines the MCP tool schema for listing batches.
func ListBatchesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_batches",
		Description: "Lists payment batches, newest first",
	}
}

// BatchMetricsTool defines the MCP tool schema for batch metrics.
func BatchMetricsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "batch_metrics",
		Description: "Returns the audit metrics of a processed batch",
	}
}

// ListFindingsTool defines the MCP tool schema for listing findings.
func ListFindingsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_findings",
		Description: "Lists audit findings of a batch, optionally filtered by code",
	}
}

// LookupBeneficiaryTool defines the MCP tool schema for CPF lookups.
func LookupBeneficiaryTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "lookup_beneficiary",
		Description: "Finds payments to a beneficiary by CPF across all batches",
	}
}

// ListBatchesHandler lists recent batches.
func ListBatchesHandler(store Store) mcp.ToolHandlerFor[ListBatchesInput, ListBatchesResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListBatchesInput) (*mcp.CallToolResult, ListBatchesResult, error) {
		limit := input.Limit
		if limit <= 0 {
			limit = defaultBatchLimit
		}
		batches, err := store.ListBatches(ctx, limit)
		if err != nil {
			return nil, ListBatchesResult{}, fmt.Errorf("list batches: %w", err)
		}

		result := ListBatchesResult{Batches: make([]BatchSummary, 0, len(batches))}
		for _, b := range batches {
			result.Batches = append(result.Batches, toBatchSummary(b))
		}
		return nil, result, nil
	}
}

// BatchMetricsHandler returns the metrics of a processed batch.
func BatchMetricsHandler(store Store) mcp.ToolHandlerFor[BatchMetricsInput, BatchMetricsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input BatchMetricsInput) (*mcp.CallToolResult, BatchMetricsResult, error) {
		b, err := store.GetBatch(ctx, input.BatchID)
		if err != nil {
			return nil, BatchMetricsResult{}, fmt.Errorf("load batch: %w", err)
		}
		if b.Status != storage.BatchStatusReady {
			return nil, BatchMetricsResult{}, fmt.Errorf("batch %s is not processed yet (status %s)", b.ID, b.Status)
		}
		metrics, err := store.GetMetrics(ctx, b.ID)
		if err != nil {
			return nil, BatchMetricsResult{}, fmt.Errorf("load metrics: %w", err)
		}

		return nil, BatchMetricsResult{
			BatchID:                   b.ID,
			Status:                    b.Status,
			TotalRecords:              metrics.TotalRecords,
			TotalPayments:             metrics.TotalPayments,
			InvalidRecords:            metrics.InvalidRecords,
			UniqueBeneficiaries:       metrics.UniqueBeneficiaries,
			UniqueAccounts:            metrics.UniqueAccounts,
			ActiveProjects:            metrics.ActiveProjects,
			TotalCents:                metrics.TotalCents,
			TotalFormatted:            report.FormatCents(metrics.TotalCents),
			ProblemCPFs:               metrics.ProblemCPFs(),
			DuplicatePayments:         metrics.DuplicatePayments,
			DuplicateCents:            metrics.DuplicateCents,
			DuplicateCPFs:             metrics.DuplicateCPFs,
			AccountsOpened:            metrics.AccountsOpened,
			BeneficiariesWithAccounts: metrics.BeneficiariesWithAccounts,
			PendingPayments:           metrics.PendingPayments,
			PendingCents:              metrics.PendingCents,
			CPFEmpty:                  metrics.CPFEmpty,
			CPFInvalidChars:           metrics.CPFInvalidChars,
			CPFBadLength:              metrics.CPFBadLength,
			CPFBadCheckDigit:          metrics.CPFBadCheckDigit,
		}, nil
	}
}

// ListFindingsHandler lists the findings of a batch.
func ListFindingsHandler(store Store) mcp.ToolHandlerFor[ListFindingsInput, ListFindingsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListFindingsInput) (*mcp.CallToolResult, ListFindingsResult, error) {
		b, err := store.GetBatch(ctx, input.BatchID)
		if err != nil {
			return nil, ListFindingsResult{}, fmt.Errorf("load batch: %w", err)
		}
		findings, err := store.ListFindings(ctx, b.ID, input.Code)
		if err != nil {
			return nil, ListFindingsResult{}, fmt.Errorf("list findings: %w", err)
		}

		limit := input.Limit
		if limit <= 0 {
			limit = defaultFindingLimit
		}
		result := ListFindingsResult{BatchID: b.ID, Total: len(findings)}
		if len(findings) > limit {
			findings = findings[:limit]
		}
		result.Findings = make([]FindingEntry, 0, len(findings))
		for _, f := range findings {
			result.Findings = append(result.Findings, FindingEntry{
				Kind:          string(f.Kind),
				Code:          f.Code,
				Line:          f.Line,
				CPFOriginal:   f.CPFOriginal,
				CPFProcessed:  f.CPFProcessed,
				AccountNumber: f.AccountNumber,
				Beneficiary:   f.Beneficiary,
				Detail:        f.Detail,
			})
		}
		return nil, result, nil
	}
}

// LookupBeneficiaryHandler finds payments by CPF. The CPF is validated before
// the store is touched, and only its salted digest reaches the log.
func LookupBeneficiaryHandler(store Store, pseudonyms *auth.Pseudonymizer) mcp.ToolHandlerFor[LookupBeneficiaryInput, LookupBeneficiaryResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input LookupBeneficiaryInput) (*mcp.CallToolResult, LookupBeneficiaryResult, error) {
		normalized, _ := audit.NormalizeCPF(input.CPF)
		if issue := audit.ClassifyCPF(normalized); issue != audit.CPFOK {
			return nil, LookupBeneficiaryResult{}, fmt.Errorf("cpf is not structurally valid: %s", issue)
		}
		digest := pseudonyms.CPFDigest(normalized)
		log.Printf("mcp: beneficiary lookup cpf=%s", digest)

		hits, err := store.FindPaymentsByCPF(ctx, normalized, lookupLimit)
		if err != nil {
			return nil, LookupBeneficiaryResult{}, fmt.Errorf("find payments: %w", err)
		}

		result := LookupBeneficiaryResult{CPFDigest: digest, Payments: make([]PaymentEntry, 0, len(hits))}
		for _, hit := range hits {
			result.Payments = append(result.Payments, PaymentEntry{
				BatchID:       hit.BatchID,
				Line:          hit.Payment.Line,
				Beneficiary:   hit.Payment.Beneficiary,
				AccountNumber: hit.Payment.AccountNumber,
				Project:       hit.Payment.Project,
				Status:        hit.Payment.Status,
				PaymentDate:   hit.Payment.PaymentDate,
				Amount:        report.FormatCents(hit.Payment.AmountCents),
				AmountCents:   hit.Payment.AmountCents,
			})
		}
		return nil, result, nil
	}
}

func toBatchSummary(b storage.Batch) BatchSummary {
	summary := BatchSummary{
		ID:           b.ID,
		Name:         b.Name,
		Source:       b.Source,
		Status:       b.Status,
		Error:        b.Error,
		RecordCount:  b.RecordCount,
		AccountCount: b.AccountCount,
		CreatedAt:    b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.ImportedAt != nil {
		summary.ImportedAt = b.ImportedAt.UTC().Format(time.RFC3339)
	}
	return summary
}
