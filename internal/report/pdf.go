package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/potaudit/potaudit/internal/audit"
	"github.com/potaudit/potaudit/internal/storage"
)

// WriteExecutive renders the executive summary PDF: batch header, the
// metrics table and the per-code occurrence counts. Core fonts only, so
// text goes through the cp1252 translator.
func WriteExecutive(w io.Writer, batch storage.Batch, metrics audit.Metrics, findings []audit.Finding, generatedAt time.Time) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Relatório Executivo - Auditoria POT", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr("Auditoria POT"), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 7, tr("Relatório executivo de conferência de pagamentos"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 10)
	for _, pair := range batchRows(batch) {
		pdf.CellFormat(48, 6, tr(pair[0]+":"), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, tr(pair[1]), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(48, 6, tr("Gerado em:"), "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, FormatTimestamp(generatedAt), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, tr("Métricas do lote"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetFillColor(240, 240, 240)
	for i, pair := range metricRows(metrics) {
		fill := i%2 == 0
		pdf.CellFormat(120, 7, tr(pair[0]), "1", 0, "L", fill, 0, "")
		pdf.CellFormat(60, 7, tr(pair[1]), "1", 1, "R", fill, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, tr("Ocorrências"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	if len(findings) == 0 {
		pdf.CellFormat(0, 7, tr("Nenhuma ocorrência identificada."), "", 1, "L", false, 0, "")
	} else {
		counts := countByCode(findings)
		for i, code := range orderedCodes(counts) {
			fill := i%2 == 0
			pdf.CellFormat(120, 7, tr(codeLabel(code)), "1", 0, "L", fill, 0, "")
			pdf.CellFormat(60, 7, FormatCount(counts[code]), "1", 1, "R", fill, 0, "")
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write executive report: %w", err)
	}
	return nil
}

// orderedCodes sorts finding codes by count, highest first, ties by code.
func orderedCodes(counts map[string]int) []string {
	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if counts[codes[i]] != counts[codes[j]] {
			return counts[codes[i]] > counts[codes[j]]
		}
		return codes[i] < codes[j]
	})
	return codes
}
