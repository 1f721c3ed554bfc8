package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/potaudit/potaudit/internal/audit"
	"github.com/potaudit/potaudit/internal/storage"
)

const (
	sheetAdjustments    = "Ajustes_CPF"
	sheetAdjustmentsSum = "Resumo_Ajustes"
	sheetAbsences       = "Problemas_Identificados"
	sheetProblemCPFs    = "CPFs_Problematicos"

	sheetPayments = "Pagamentos"
	sheetAccounts = "Contas"
	sheetMetrics  = "Metricas"
)

// absenceCodes is the fixed row order of the absence summary sheet.
var absenceCodes = []string{
	audit.CodeMissingName,
	audit.CodeMissingAccount,
	audit.CodeMissingAmount,
	audit.CodeMissingColumn,
}

// WriteAdjustments renders the CPF adjustments workbook: the per-row
// adjustment trail, its summary, the absence summary and the problem-CPF
// details. The trail is recomputed from the persisted rows.
func WriteAdjustments(w io.Writer, payments []audit.Payment, findings []audit.Finding) error {
	adjustments, summary := audit.Adjustments(payments)

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetAdjustments); err != nil {
		return fmt.Errorf("name sheet %s: %w", sheetAdjustments, err)
	}
	for _, sheet := range []string{sheetAdjustmentsSum, sheetAbsences, sheetProblemCPFs} {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("add sheet %s: %w", sheet, err)
		}
	}

	if err := setRow(f, sheetAdjustments, 1, []any{"Linha", "CPF Original", "CPF Processado", "Alterado", "Conta", "Nome"}); err != nil {
		return err
	}
	for i, adj := range adjustments {
		p := payments[i]
		row := []any{adj.Line, adj.Original, adj.Processed, boolLabel(adj.Changed), p.AccountNumber, p.Beneficiary}
		if err := setRow(f, sheetAdjustments, i+2, row); err != nil {
			return err
		}
	}

	summaryRows := [][2]any{
		{"CPFs formatados", summary.CPFsFormatted},
		{"Documentos processados", summary.DocumentsProcessed},
		{"CPFs com zeros adicionados", summary.ZerosPadded},
		{"RGs com letras preservadas", summary.RGLettersKept},
	}
	if err := setRow(f, sheetAdjustmentsSum, 1, []any{"Ajuste", "Quantidade"}); err != nil {
		return err
	}
	for i, pair := range summaryRows {
		if err := setRow(f, sheetAdjustmentsSum, i+2, []any{pair[0], pair[1]}); err != nil {
			return err
		}
	}

	counts := countByCode(findings)
	if err := setRow(f, sheetAbsences, 1, []any{"Problema", "Quantidade"}); err != nil {
		return err
	}
	for i, code := range absenceCodes {
		if err := setRow(f, sheetAbsences, i+2, []any{codeLabel(code), counts[code]}); err != nil {
			return err
		}
	}

	if err := setRow(f, sheetProblemCPFs, 1, []any{"Linha", "CPF Original", "CPF Processado", "Problema", "Conta", "Nome"}); err != nil {
		return err
	}
	row := 2
	for _, finding := range findings {
		if finding.Kind != audit.KindCPF {
			continue
		}
		values := []any{finding.Line, finding.CPFOriginal, finding.CPFProcessed, codeLabel(finding.Code), finding.AccountNumber, finding.Beneficiary}
		if err := setRow(f, sheetProblemCPFs, row, values); err != nil {
			return err
		}
		row++
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write adjustments workbook: %w", err)
	}
	return nil
}

// WriteFullData renders the processed-rows workbook: every standardized
// payment and account row plus the metrics snapshot.
func WriteFullData(w io.Writer, batch storage.Batch, payments []audit.Payment, accounts []audit.Account, metrics audit.Metrics) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetPayments); err != nil {
		return fmt.Errorf("name sheet %s: %w", sheetPayments, err)
	}
	for _, sheet := range []string{sheetAccounts, sheetMetrics} {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("add sheet %s: %w", sheet, err)
		}
	}

	header := []any{"Linha", "CPF", "RG", "Nome", "Conta", "Projeto", "Situação", "Data", "Valor (R$)"}
	if err := setRow(f, sheetPayments, 1, header); err != nil {
		return err
	}
	for i, p := range payments {
		row := []any{p.Line, p.CPF, p.RG, p.Beneficiary, p.AccountNumber, p.Project, p.Status, p.PaymentDate, FormatCents(p.AmountCents)}
		if err := setRow(f, sheetPayments, i+2, row); err != nil {
			return err
		}
	}

	if err := setRow(f, sheetAccounts, 1, []any{"Linha", "CPF", "Titular", "Conta"}); err != nil {
		return err
	}
	for i, a := range accounts {
		if err := setRow(f, sheetAccounts, i+2, []any{a.Line, a.CPF, a.Holder, a.AccountNumber}); err != nil {
			return err
		}
	}

	if err := setRow(f, sheetMetrics, 1, []any{"Métrica", "Valor"}); err != nil {
		return err
	}
	rows := batchRows(batch)
	rows = append(rows, metricRows(metrics)...)
	for i, pair := range rows {
		if err := setRow(f, sheetMetrics, i+2, []any{pair[0], pair[1]}); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write data workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell for row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// batchRows renders the identifying header rows of the metrics sheet.
func batchRows(batch storage.Batch) [][2]string {
	rows := [][2]string{
		{"Lote", batch.Name},
		{"Arquivo de pagamentos", batch.Source},
	}
	if batch.AccountsSource != "" {
		rows = append(rows, [2]string{"Arquivo de contas", batch.AccountsSource})
	}
	if batch.ImportedAt != nil {
		rows = append(rows, [2]string{"Importado em", FormatTimestamp(*batch.ImportedAt)})
	}
	return rows
}

// metricRows renders the metrics snapshot as label/value pairs, shared by
// the workbook sheet and the executive PDF.
func metricRows(m audit.Metrics) [][2]string {
	return [][2]string{
		{"Total de registros", FormatCount(m.TotalRecords)},
		{"Pagamentos válidos", FormatCount(m.TotalPayments)},
		{"Registros inválidos", FormatCount(m.InvalidRecords)},
		{"Beneficiários únicos", FormatCount(m.UniqueBeneficiaries)},
		{"Contas únicas", FormatCount(m.UniqueAccounts)},
		{"Projetos ativos", FormatCount(m.ActiveProjects)},
		{"Valor total", FormatCents(m.TotalCents)},
		{"Pagamentos duplicados", FormatCount(m.DuplicatePayments)},
		{"Valor em duplicidade", FormatCents(m.DuplicateCents)},
		{"CPFs com múltiplas contas", FormatCount(m.DuplicateCPFs)},
		{"Contas abertas", FormatCount(m.AccountsOpened)},
		{"Beneficiários com conta", FormatCount(m.BeneficiariesWithAccounts)},
		{"Pagamentos pendentes", FormatCount(m.PendingPayments)},
		{"Valor pendente", FormatCents(m.PendingCents)},
		{"CPFs problemáticos", FormatCount(m.ProblemCPFs())},
	}
}

// countByCode tallies findings per code.
func countByCode(findings []audit.Finding) map[string]int {
	counts := map[string]int{}
	for _, f := range findings {
		counts[f.Code]++
	}
	return counts
}
