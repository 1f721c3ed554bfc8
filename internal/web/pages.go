package web

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/potaudit/potaudit/internal/audit"
	"github.com/potaudit/potaudit/internal/batch"
	"github.com/potaudit/potaudit/internal/ingest"
	apperrors "github.com/potaudit/potaudit/internal/platform/errors"
	"github.com/potaudit/potaudit/internal/report"
	"github.com/potaudit/potaudit/internal/storage"
	"github.com/potaudit/potaudit/internal/web/routepath"
)

// maxUploadBytes caps one multipart upload kept in memory before spilling
// to disk.
const maxUploadBytes = 32 << 20

type loginView struct {
	page
	Username string
	Error    string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessionUser(r); ok {
		http.Redirect(w, r, routepath.Batches, http.StatusSeeOther)
		return
	}
	s.render(w, r, "login.html", loginView{page: s.newPage(r, "web.signin.title")})
}

func (s *Server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, r, "login.html", loginView{
			page:  s.newPage(r, "web.signin.title"),
			Error: s.errorMessage(r, apperrors.New(apperrors.CodeUnknown, "bad form")),
		})
		return
	}
	username := r.PostFormValue("usuario")
	password := r.PostFormValue("senha")

	session, _, err := s.auth.Login(r.Context(), username, password)
	if err != nil {
		s.render(w, r, "login.html", loginView{
			page:     s.newPage(r, "web.signin.title"),
			Username: username,
			Error:    s.errorMessage(r, err),
		})
		return
	}

	writeSessionCookie(w, r, session.ID)
	http.Redirect(w, r, routepath.Batches, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sessionID, ok := readSessionCookie(r); ok {
		if err := s.auth.Logout(r.Context(), sessionID); err != nil {
			s.renderErrorPage(w, r, err)
			return
		}
	}
	clearSessionCookie(w, r)
	http.Redirect(w, r, routepath.Login, http.StatusSeeOther)
}

type batchRow struct {
	Name        string
	Source      string
	StatusLabel string
	CreatedAt   string
	ImportedAt  string
	Records     string
	URL         string
}

type batchesView struct {
	page
	Overview    storage.Overview
	TotalAmount string
	Rows        []batchRow
	UploadError string
}

func (s *Server) handleBatches(w http.ResponseWriter, r *http.Request) {
	view, err := s.loadBatchesView(r, "")
	if err != nil {
		s.renderErrorPage(w, r, err)
		return
	}
	s.render(w, r, "batches.html", view)
}

func (s *Server) loadBatchesView(r *http.Request, uploadError string) (batchesView, error) {
	view := batchesView{
		page:        s.newPage(r, "web.batches.title"),
		UploadError: uploadError,
	}

	overview, err := s.store.GetOverview(r.Context())
	if err != nil {
		return batchesView{}, err
	}
	view.Overview = overview
	view.TotalAmount = report.FormatCents(overview.TotalCents)

	batches, err := s.store.ListBatches(r.Context(), 50)
	if err != nil {
		return batchesView{}, err
	}
	view.Rows = make([]batchRow, 0, len(batches))
	for _, b := range batches {
		row := batchRow{
			Name:        b.Name,
			Source:      b.Source,
			StatusLabel: view.T(statusKey(b.Status)),
			CreatedAt:   report.FormatTimestamp(b.CreatedAt),
			Records:     report.FormatCount(b.RecordCount),
			URL:         routepath.Batch(b.ID),
		}
		if row.Name == "" {
			row.Name = b.Source
		}
		if b.ImportedAt != nil {
			row.ImportedAt = report.FormatTimestamp(*b.ImportedAt)
		}
		view.Rows = append(view.Rows, row)
	}
	return view, nil
}

func (s *Server) handleBatchUpload(w http.ResponseWriter, r *http.Request) {
	input, cleanup, err := parseUploadForm(r)
	if cleanup != nil {
		defer cleanup()
	}
	if err == nil {
		if user, ok := userFrom(r.Context()); ok {
			input.CreatedBy = user.ID
		}
		var created storage.Batch
		created, err = s.registrar.Register(r.Context(), input)
		if err == nil {
			http.Redirect(w, r, routepath.Batch(created.ID), http.StatusSeeOther)
			return
		}
		err = classifyUploadError(err, input.Source, input.AccountsSource)
	}

	view, loadErr := s.loadBatchesView(r, s.errorMessage(r, err))
	if loadErr != nil {
		s.renderErrorPage(w, r, loadErr)
		return
	}
	s.render(w, r, "batches.html", view)
}

// parseUploadForm reads the multipart upload form. The cleanup closes the
// spilled file handles and must run after the registrar consumed them.
func parseUploadForm(r *http.Request) (batch.Input, func(), error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return batch.Input{}, nil, apperrors.Wrap(apperrors.CodeBatchSourceEmpty, "parse upload form", err)
	}

	payments, paymentsHeader, err := r.FormFile("pagamentos")
	if err != nil {
		return batch.Input{}, nil, apperrors.Wrap(apperrors.CodeBatchSourceEmpty, "payments spreadsheet is required", err)
	}
	cleanup := func() { _ = payments.Close() }
	if paymentsHeader.Size == 0 {
		return batch.Input{}, cleanup, apperrors.New(apperrors.CodeImportFileEmpty, "payments spreadsheet is empty")
	}

	input := batch.Input{
		Name:     r.PostFormValue("nome"),
		Source:   paymentsHeader.Filename,
		Payments: payments,
	}

	accounts, accountsHeader, err := r.FormFile("contas")
	switch {
	case err == nil:
		closePayments := cleanup
		cleanup = func() {
			closePayments()
			_ = accounts.Close()
		}
		if accountsHeader.Size == 0 {
			return batch.Input{}, cleanup, apperrors.New(apperrors.CodeImportFileEmpty, "accounts spreadsheet is empty")
		}
		input.Accounts = accounts
		input.AccountsSource = accountsHeader.Filename
	case errors.Is(err, http.ErrMissingFile):
		// accounts spreadsheet is optional
	default:
		return batch.Input{}, cleanup, apperrors.Wrap(apperrors.CodeUnknown, "read accounts spreadsheet", err)
	}

	return input, cleanup, nil
}

// classifyUploadError maps registrar failures onto domain codes so the form
// shows a localized message.
func classifyUploadError(err error, sources ...string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.FromError(err); ok {
		return err
	}
	if errors.Is(err, ingest.ErrUnsupportedFormat) {
		format := ""
		for _, source := range sources {
			if source == "" {
				continue
			}
			if _, ok := ingest.DetectFormat(source); !ok {
				format = filepath.Ext(source)
				break
			}
		}
		return apperrors.WrapWithMetadata(apperrors.CodeImportFormatUnsupported, "unsupported spreadsheet format",
			map[string]string{"Format": format}, err)
	}
	return apperrors.Wrap(apperrors.CodeUnknown, "register batch", err)
}

type findingRow struct {
	Line        int
	CPFOriginal string
	CPF         string
	Account     string
	Beneficiary string
	Label       string
	Detail      string
}

type metricCard struct {
	Label string
	Value string
}

type reportLink struct {
	Label string
	URL   string
}

type batchView struct {
	page
	Batch       storage.Batch
	StatusLabel string
	CreatedAt   string
	ImportedAt  string
	Ready       bool
	Failed      bool
	Cards       []metricCard
	CPFCounts   []metricCard
	Analysis    []findingRow
	Duplicates  []findingRow
	Absences    []findingRow
	Reports     []reportLink
	BackURL     string
}

func (s *Server) handleBatchDetail(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")

	b, err := s.store.GetBatch(r.Context(), batchID)
	if err != nil {
		s.renderErrorPage(w, r, err)
		return
	}

	view := batchView{
		page:      s.newPage(r, "web.batch.title"),
		Batch:     b,
		CreatedAt: report.FormatTimestamp(b.CreatedAt),
		Ready:     b.Status == storage.BatchStatusReady,
		Failed:    b.Status == storage.BatchStatusFailed,
		BackURL:   routepath.Batches,
	}
	view.StatusLabel = view.T(statusKey(b.Status))
	if b.ImportedAt != nil {
		view.ImportedAt = report.FormatTimestamp(*b.ImportedAt)
	}

	if view.Ready {
		if err := s.loadBatchAnalysis(r, &view); err != nil {
			s.renderErrorPage(w, r, err)
			return
		}
	}

	s.render(w, r, "batch.html", view)
}

func (s *Server) loadBatchAnalysis(r *http.Request, view *batchView) error {
	metrics, err := s.store.GetMetrics(r.Context(), view.Batch.ID)
	if err != nil {
		return err
	}
	findings, err := s.store.ListFindings(r.Context(), view.Batch.ID, "")
	if err != nil {
		return err
	}

	view.Cards = metricCards(*view, metrics)
	view.CPFCounts = cpfCountCards(*view, metrics)
	for _, f := range findings {
		row := findingRow{
			Line:        f.Line,
			CPFOriginal: f.CPFOriginal,
			CPF:         f.CPFProcessed,
			Account:     f.AccountNumber,
			Beneficiary: f.Beneficiary,
			Label:       view.T("web.finding." + f.Code),
			Detail:      f.Detail,
		}
		switch f.Kind {
		case audit.KindDuplicate:
			view.Duplicates = append(view.Duplicates, row)
		case audit.KindAbsence:
			view.Absences = append(view.Absences, row)
		default:
			view.Analysis = append(view.Analysis, row)
		}
	}

	for _, kind := range []struct {
		kind  report.Kind
		label string
	}{
		{report.KindAdjustments, "web.batch.reports.adjustments"},
		{report.KindFullData, "web.batch.reports.data"},
		{report.KindExecutive, "web.batch.reports.summary"},
		{report.KindFindings, "web.batch.reports.findings_csv"},
	} {
		view.Reports = append(view.Reports, reportLink{
			Label: view.T(kind.label),
			URL:   routepath.BatchReport(view.Batch.ID, string(kind.kind)),
		})
	}
	return nil
}

func metricCards(view batchView, m audit.Metrics) []metricCard {
	return []metricCard{
		{view.T("web.batch.metrics.total_records"), report.FormatCount(m.TotalRecords)},
		{view.T("web.batch.metrics.valid_payments"), report.FormatCount(m.TotalPayments)},
		{view.T("web.batch.metrics.invalid_records"), report.FormatCount(m.InvalidRecords)},
		{view.T("web.batch.metrics.total_amount"), report.FormatCents(m.TotalCents)},
		{view.T("web.batch.metrics.unique_cpfs"), report.FormatCount(m.UniqueBeneficiaries)},
		{view.T("web.batch.metrics.duplicate_payments"), report.FormatCount(m.DuplicatePayments)},
		{view.T("web.batch.metrics.duplicate_amount"), report.FormatCents(m.DuplicateCents)},
		{view.T("web.batch.metrics.duplicate_cpfs"), report.FormatCount(m.DuplicateCPFs)},
		{view.T("web.batch.metrics.pending_payments"), report.FormatCount(m.PendingPayments)},
		{view.T("web.batch.metrics.pending_amount"), report.FormatCents(m.PendingCents)},
		{view.T("web.batch.metrics.projects"), report.FormatCount(m.ActiveProjects)},
		{view.T("web.batch.metrics.accounts_opened"), report.FormatCount(m.AccountsOpened)},
		{view.T("web.batch.metrics.with_accounts"), report.FormatCount(m.BeneficiariesWithAccounts)},
	}
}

func cpfCountCards(view batchView, m audit.Metrics) []metricCard {
	counts := []struct {
		code  string
		count int
	}{
		{audit.CodeCPFEmpty, m.CPFEmpty},
		{audit.CodeCPFInvalidChars, m.CPFInvalidChars},
		{audit.CodeCPFBadLength, m.CPFBadLength},
		{audit.CodeCPFBadCheckDigit, m.CPFBadCheckDigit},
	}
	cards := make([]metricCard, 0, len(counts))
	for _, c := range counts {
		if c.count == 0 {
			continue
		}
		cards = append(cards, metricCard{view.T("web.finding." + c.code), report.FormatCount(c.count)})
	}
	return cards
}

func statusKey(status string) string {
	return "web.batch.status." + status
}
