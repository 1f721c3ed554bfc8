// Package report renders batch exports: the CPF adjustments workbook, the
// full-data workbook, the executive PDF and the findings CSV. Reports are
// computed on demand from persisted rows and rendered in pt-BR, the language
// of the payment operator receiving them.
package report

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/potaudit/potaudit/internal/audit"
	"github.com/potaudit/potaudit/internal/platform/errors"
	"github.com/potaudit/potaudit/internal/storage"
)

// Kind identifies one export. Kinds appear in download URLs and grant
// scopes.
type Kind string

const (
	// KindAdjustments is the CPF adjustments workbook (XLSX).
	KindAdjustments Kind = "ajustes"
	// KindFullData is the processed rows workbook (XLSX).
	KindFullData Kind = "dados"
	// KindExecutive is the executive summary (PDF).
	KindExecutive Kind = "relatorio"
	// KindFindings is the findings export (CSV).
	KindFindings Kind = "problemas"
)

// ErrUnknownKind flags a report kind outside the catalog.
var ErrUnknownKind = errors.New(errors.CodeReportKindInvalid, "unknown report kind")

// ParseKind validates a report kind from a URL or grant scope.
func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindAdjustments, KindFullData, KindExecutive, KindFindings:
		return Kind(raw), nil
	default:
		return "", errors.WithMetadata(errors.CodeReportKindInvalid, "unknown report kind", map[string]string{"kind": raw})
	}
}

// brasilia is the timezone of report filenames. Fallback is the fixed legal
// offset; Brazil has not observed DST since 2019.
var brasilia = func() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		return time.FixedZone("-03", -3*60*60)
	}
	return loc
}()

// Filename returns the download name for a report generated at now.
func Filename(kind Kind, now time.Time) string {
	stamp := now.In(brasilia).Format("20060102_150405")
	switch kind {
	case KindAdjustments:
		return "ajustes_pot_" + stamp + ".xlsx"
	case KindFullData:
		return "dados_pot_" + stamp + ".xlsx"
	case KindExecutive:
		return "relatorio_pot_" + stamp + ".pdf"
	case KindFindings:
		return "problemas_pot_" + stamp + ".csv"
	default:
		return "pot_" + stamp
	}
}

// ContentType returns the MIME type served with a report download.
func ContentType(kind Kind) string {
	switch kind {
	case KindExecutive:
		return "application/pdf"
	case KindFindings:
		return "text/csv; charset=utf-8"
	default:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
}

// ptBR formats numbers with Brazilian grouping and decimal marks.
var ptBR = message.NewPrinter(language.MustParse("pt-BR"))

// FormatCents renders centavos as a pt-BR currency string, e.g. 123456789
// becomes "R$ 1.234.567,89".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return ptBR.Sprintf("%sR$ %d,%02d", sign, cents/100, cents%100)
}

// FormatCount renders an integer with pt-BR grouping.
func FormatCount(n int) string {
	return ptBR.Sprintf("%d", n)
}

// FormatTimestamp renders a timestamp the way operators read it, in Brasília
// time.
func FormatTimestamp(t time.Time) string {
	return t.In(brasilia).Format("02/01/2006 15:04")
}

// codeLabels are the pt-BR finding descriptions printed on reports. The web
// UI localizes findings through the message catalogs instead; reports always
// ship in the operator's language.
var codeLabels = map[string]string{
	audit.CodeCPFEmpty:            "CPF vazio",
	audit.CodeCPFInvalidChars:     "CPF com caracteres inválidos",
	audit.CodeCPFBadLength:        "CPF com tamanho incorreto",
	audit.CodeCPFBadCheckDigit:    "CPF com dígito verificador inválido",
	audit.CodeMissingCPF:          "CPF ausente",
	audit.CodeMissingName:         "Nome ausente",
	audit.CodeMissingAccount:      "Conta bancária ausente",
	audit.CodeMissingAmount:       "Valor ausente",
	audit.CodeMissingColumn:       "Coluna obrigatória ausente",
	audit.CodeDuplicatePayment:    "Pagamento duplicado",
	audit.CodeDuplicateCPFAccount: "CPF com múltiplas contas",
	audit.CodeInvalidAmount:       "Valor não reconhecido",
}

func codeLabel(code string) string {
	if label, ok := codeLabels[code]; ok {
		return label
	}
	return code
}

func boolLabel(v bool) string {
	if v {
		return "Sim"
	}
	return "Não"
}

// Store is the storage surface report generation reads from.
type Store interface {
	storage.BatchStore
	storage.RecordStore
	storage.FindingStore
	storage.MetricsStore
}

// Document is one rendered report ready to stream to the operator.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Service renders reports from persisted batch data.
type Service struct {
	store Store
}

// NewService builds a report Service over a store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Generate renders one report for a processed batch. The timestamp feeds the
// filename only; content comes from the store.
func (s *Service) Generate(ctx context.Context, batchID string, kind Kind, now time.Time) (Document, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return Document{}, err
	}
	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return Document{}, fmt.Errorf("load batch: %w", err)
	}
	if batch.Status != storage.BatchStatusReady {
		return Document{}, errors.WithMetadata(errors.CodeBatchNotReady, "batch has not been processed",
			map[string]string{"batch": batchID, "status": batch.Status})
	}

	var buf bytes.Buffer
	switch kind {
	case KindAdjustments:
		err = s.generateAdjustments(ctx, batch, &buf)
	case KindFullData:
		err = s.generateFullData(ctx, batch, &buf)
	case KindExecutive:
		err = s.generateExecutive(ctx, batch, &buf, now)
	case KindFindings:
		err = s.generateFindings(ctx, batch, &buf)
	}
	if err != nil {
		return Document{}, err
	}

	return Document{
		Filename:    Filename(kind, now),
		ContentType: ContentType(kind),
		Data:        buf.Bytes(),
	}, nil
}

func (s *Service) generateAdjustments(ctx context.Context, batch storage.Batch, buf *bytes.Buffer) error {
	payments, err := s.store.ListPayments(ctx, batch.ID)
	if err != nil {
		return fmt.Errorf("load payments: %w", err)
	}
	findings, err := s.store.ListFindings(ctx, batch.ID, "")
	if err != nil {
		return fmt.Errorf("load findings: %w", err)
	}
	return WriteAdjustments(buf, payments, findings)
}

func (s *Service) generateFullData(ctx context.Context, batch storage.Batch, buf *bytes.Buffer) error {
	payments, err := s.store.ListPayments(ctx, batch.ID)
	if err != nil {
		return fmt.Errorf("load payments: %w", err)
	}
	accounts, err := s.store.ListAccounts(ctx, batch.ID)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	metrics, err := s.store.GetMetrics(ctx, batch.ID)
	if err != nil {
		return fmt.Errorf("load metrics: %w", err)
	}
	return WriteFullData(buf, batch, payments, accounts, metrics)
}

func (s *Service) generateExecutive(ctx context.Context, batch storage.Batch, buf *bytes.Buffer, now time.Time) error {
	metrics, err := s.store.GetMetrics(ctx, batch.ID)
	if err != nil {
		return fmt.Errorf("load metrics: %w", err)
	}
	findings, err := s.store.ListFindings(ctx, batch.ID, "")
	if err != nil {
		return fmt.Errorf("load findings: %w", err)
	}
	return WriteExecutive(buf, batch, metrics, findings, now)
}

func (s *Service) generateFindings(ctx context.Context, batch storage.Batch, buf *bytes.Buffer) error {
	findings, err := s.store.ListFindings(ctx, batch.ID, "")
	if err != nil {
		return fmt.Errorf("load findings: %w", err)
	}
	return WriteFindingsCSV(buf, findings)
}
