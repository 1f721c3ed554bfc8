package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/potaudit/potaudit/internal/audit"
)

// utf8BOM makes Excel open the export as UTF-8 instead of guessing latin-1.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// kindLabels are the pt-BR names of the finding groups.
var kindLabels = map[audit.FindingKind]string{
	audit.KindCPF:       "CPF",
	audit.KindAbsence:   "Ausência",
	audit.KindDuplicate: "Duplicidade",
	audit.KindParse:     "Leitura",
}

// WriteFindingsCSV renders the findings export, ";"-separated the same way
// the uploads arrive.
func WriteFindingsCSV(w io.Writer, findings []audit.Finding) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write byte order mark: %w", err)
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'

	header := []string{"Tipo", "Código", "Problema", "Linha", "CPF Original", "CPF Processado", "Conta", "Beneficiário", "Detalhe"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write findings header: %w", err)
	}
	for _, f := range findings {
		line := ""
		if f.Line > 0 {
			line = strconv.Itoa(f.Line)
		}
		record := []string{
			kindLabel(f.Kind),
			f.Code,
			codeLabel(f.Code),
			line,
			f.CPFOriginal,
			f.CPFProcessed,
			f.AccountNumber,
			f.Beneficiary,
			f.Detail,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write finding row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush findings export: %w", err)
	}
	return nil
}

func kindLabel(kind audit.FindingKind) string {
	if label, ok := kindLabels[kind]; ok {
		return label
	}
	return string(kind)
}
