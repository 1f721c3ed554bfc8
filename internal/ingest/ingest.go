// Package ingest decodes payment and account spreadsheets into audit
// records. It understands the ";"-separated CSV exports and XLSX workbooks
// the program's payment operator hands over.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/potaudit/potaudit/internal/audit"
)

var (
	// ErrEmptyFile indicates the upload held no rows at all.
	ErrEmptyFile = errors.New("spreadsheet has no rows")
	// ErrUnsupportedFormat indicates the filename extension is not handled.
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
)

// Format identifies the spreadsheet encoding.
type Format string

const (
	// FormatCSV is a ";"-separated text export.
	FormatCSV Format = "csv"
	// FormatXLSX is an Office Open XML workbook.
	FormatXLSX Format = "xlsx"
)

// DetectFormat infers the spreadsheet format from a filename.
func DetectFormat(filename string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return FormatXLSX, true
	case ".csv", ".txt":
		return FormatCSV, true
	default:
		return "", false
	}
}

// Problem is one row-level decoding issue. Line counts the header as 1.
type Problem struct {
	Line   int
	Column string
	Detail string
}

// PaymentsResult is the outcome of decoding a payments spreadsheet.
type PaymentsResult struct {
	Payments       []audit.Payment
	Problems       []Problem
	MissingColumns []string
}

// AccountsResult is the outcome of decoding an accounts spreadsheet.
type AccountsResult struct {
	Accounts       []audit.Account
	Problems       []Problem
	MissingColumns []string
}

// paymentColumns are required for a payments sheet to be analyzable.
var paymentColumns = []string{ColumnCPF, ColumnName, ColumnAccount, ColumnAmount}

// accountColumns are required for an accounts sheet to be analyzable.
var accountColumns = []string{ColumnCPF, ColumnAccount}

// ParsePayments decodes a payments spreadsheet. Rows keep their original
// spreadsheet line numbers; fully blank rows are skipped. Unparseable
// amounts become Problems and the row keeps a zero amount.
func ParsePayments(r io.Reader, format Format) (PaymentsResult, error) {
	table, err := readTable(r, format)
	if err != nil {
		return PaymentsResult{}, err
	}
	if len(table) == 0 {
		return PaymentsResult{}, ErrEmptyFile
	}

	columns := ResolveColumns(table[0])
	result := PaymentsResult{
		MissingColumns: columns.Missing(paymentColumns...),
	}

	for i, row := range table[1:] {
		if rowBlank(row) {
			continue
		}
		line := i + 2

		payment := audit.Payment{
			Line:          line,
			CPFOriginal:   columns.Value(row, ColumnCPF),
			RGOriginal:    columns.Value(row, ColumnRG),
			Beneficiary:   columns.Value(row, ColumnName),
			AccountNumber: columns.Value(row, ColumnAccount),
			Project:       columns.Value(row, ColumnProject),
			Status:        columns.Value(row, ColumnStatus),
			PaymentDate:   columns.Value(row, ColumnDate),
			AmountRaw:     columns.Value(row, ColumnAmount),
		}

		cents, err := audit.ParseAmount(payment.AmountRaw)
		if err != nil {
			result.Problems = append(result.Problems, Problem{
				Line:   line,
				Column: ColumnAmount,
				Detail: err.Error(),
			})
		} else {
			payment.AmountCents = cents
		}

		result.Payments = append(result.Payments, payment)
	}

	return result, nil
}

// ParseAccounts decodes a bank accounts spreadsheet.
func ParseAccounts(r io.Reader, format Format) (AccountsResult, error) {
	table, err := readTable(r, format)
	if err != nil {
		return AccountsResult{}, err
	}
	if len(table) == 0 {
		return AccountsResult{}, ErrEmptyFile
	}

	columns := ResolveColumns(table[0])
	result := AccountsResult{
		MissingColumns: columns.Missing(accountColumns...),
	}

	for i, row := range table[1:] {
		if rowBlank(row) {
			continue
		}
		result.Accounts = append(result.Accounts, audit.Account{
			Line:          i + 2,
			CPFOriginal:   columns.Value(row, ColumnCPF),
			Holder:        columns.Value(row, ColumnHolder),
			AccountNumber: columns.Value(row, ColumnAccount),
		})
	}

	return result, nil
}

func readTable(r io.Reader, format Format) ([][]string, error) {
	switch format {
	case FormatCSV:
		return readCSVTable(r)
	case FormatXLSX:
		return readXLSXTable(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
