package web

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/potaudit/potaudit/internal/audit"
	apperrors "github.com/potaudit/potaudit/internal/platform/errors"
	"github.com/potaudit/potaudit/internal/platform/timeouts"
	"github.com/potaudit/potaudit/internal/report"
	"github.com/potaudit/potaudit/internal/storage"
	"github.com/potaudit/potaudit/internal/web/routepath"
)

// apiListLimit caps the batch listing returned by the API.
const apiListLimit = 100

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type batchPayload struct {
	ID             string     `json:"id"`
	Name           string     `json:"name,omitempty"`
	Source         string     `json:"source"`
	AccountsSource string     `json:"accounts_source,omitempty"`
	Status         string     `json:"status"`
	Error          string     `json:"error,omitempty"`
	RecordCount    int        `json:"record_count"`
	AccountCount   int        `json:"account_count"`
	CreatedAt      time.Time  `json:"created_at"`
	ImportedAt     *time.Time `json:"imported_at,omitempty"`
}

type findingPayload struct {
	Kind        string `json:"kind"`
	Code        string `json:"code"`
	Line        int    `json:"line,omitempty"`
	CPFOriginal string `json:"cpf_original,omitempty"`
	CPF         string `json:"cpf,omitempty"`
	Account     string `json:"account,omitempty"`
	Beneficiary string `json:"beneficiary,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

type metricsPayload struct {
	TotalRecords              int   `json:"total_records"`
	TotalPayments             int   `json:"total_payments"`
	InvalidRecords            int   `json:"invalid_records"`
	UniqueBeneficiaries       int   `json:"unique_beneficiaries"`
	UniqueAccounts            int   `json:"unique_accounts"`
	ActiveProjects            int   `json:"active_projects"`
	TotalCents                int64 `json:"total_cents"`
	DuplicatePayments         int   `json:"duplicate_payments"`
	DuplicateCents            int64 `json:"duplicate_cents"`
	DuplicateCPFs             int   `json:"duplicate_cpfs"`
	AccountsOpened            int   `json:"accounts_opened"`
	BeneficiariesWithAccounts int   `json:"beneficiaries_with_accounts"`
	PendingPayments           int   `json:"pending_payments"`
	PendingCents              int64 `json:"pending_cents"`
	CPFEmpty                  int   `json:"cpf_empty"`
	CPFInvalidChars           int   `json:"cpf_invalid_chars"`
	CPFBadLength              int   `json:"cpf_bad_length"`
	CPFBadCheckDigit          int   `json:"cpf_bad_check_digit"`
}

type reportLinkPayload struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("web: encode response: %v", err)
	}
}

// writeError renders err as {code, message} with a locale-aware message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("web: %s %s: %v", r.Method, r.URL.Path, err)
	}
	s.writeJSON(w, status, errorPayload{
		Code:    string(apperrors.CodeOf(err)),
		Message: s.errorMessage(r, err),
	})
}

func toBatchPayload(b storage.Batch) batchPayload {
	return batchPayload{
		ID:             b.ID,
		Name:           b.Name,
		Source:         b.Source,
		AccountsSource: b.AccountsSource,
		Status:         b.Status,
		Error:          b.Error,
		RecordCount:    b.RecordCount,
		AccountCount:   b.AccountCount,
		CreatedAt:      b.CreatedAt,
		ImportedAt:     b.ImportedAt,
	}
}

func (s *Server) handleAPIBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.store.ListBatches(r.Context(), apiListLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	payload := make([]batchPayload, 0, len(batches))
	for _, b := range batches {
		payload = append(payload, toBatchPayload(b))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"batches": payload})
}

func (s *Server) handleAPIBatch(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.GetBatch(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toBatchPayload(b))
}

func (s *Server) handleAPIBatchMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.store.GetMetrics(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toMetricsPayload(metrics))
}

func toMetricsPayload(m audit.Metrics) metricsPayload {
	return metricsPayload{
		TotalRecords:              m.TotalRecords,
		TotalPayments:             m.TotalPayments,
		InvalidRecords:            m.InvalidRecords,
		UniqueBeneficiaries:       m.UniqueBeneficiaries,
		UniqueAccounts:            m.UniqueAccounts,
		ActiveProjects:            m.ActiveProjects,
		TotalCents:                m.TotalCents,
		DuplicatePayments:         m.DuplicatePayments,
		DuplicateCents:            m.DuplicateCents,
		DuplicateCPFs:             m.DuplicateCPFs,
		AccountsOpened:            m.AccountsOpened,
		BeneficiariesWithAccounts: m.BeneficiariesWithAccounts,
		PendingPayments:           m.PendingPayments,
		PendingCents:              m.PendingCents,
		CPFEmpty:                  m.CPFEmpty,
		CPFInvalidChars:           m.CPFInvalidChars,
		CPFBadLength:              m.CPFBadLength,
		CPFBadCheckDigit:          m.CPFBadCheckDigit,
	}
}

func (s *Server) handleAPIBatchFindings(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")
	if _, err := s.store.GetBatch(r.Context(), batchID); err != nil {
		s.writeError(w, r, err)
		return
	}

	code := r.URL.Query().Get(routepath.FindingCodeQueryKey)
	findings, err := s.store.ListFindings(r.Context(), batchID, code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	payload := make([]findingPayload, 0, len(findings))
	for _, f := range findings {
		payload = append(payload, findingPayload{
			Kind:        string(f.Kind),
			Code:        f.Code,
			Line:        f.Line,
			CPFOriginal: f.CPFOriginal,
			CPF:         f.CPFProcessed,
			Account:     f.AccountNumber,
			Beneficiary: f.Beneficiary,
			Detail:      f.Detail,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"findings": payload})
}

func (s *Server) handleAPIBatchReprocess(w http.ResponseWriter, r *http.Request) {
	reset, err := s.registrar.Reprocess(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, toBatchPayload(reset))
}

// handleAPIReportLink mints a signed download link for one report of one
// batch.
func (s *Server) handleAPIReportLink(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")

	kind, err := report.ParseKind(r.PathValue("kind"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.store.GetBatch(r.Context(), batchID); err != nil {
		s.writeError(w, r, fmt.Errorf("load batch: %w", err))
		return
	}

	now := s.clock()
	token, err := s.grants.Issue(batchID, string(kind), now)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, reportLinkPayload{
		URL:       routepath.BatchReport(batchID, string(kind)) + "?" + routepath.GrantQueryKey + "=" + url.QueryEscape(token),
		ExpiresAt: now.UTC().Add(timeouts.DownloadGrant),
	})
}
