// Package audit implements document normalization and batch analysis for
// POT payment spreadsheets.
//
// The package is pure domain logic: it never touches storage or transport.
//
// # Records
//
// A Payment is one row of the payments spreadsheet and an Account is one row
// of the bank accounts spreadsheet. Records keep both the value as read
// (CPFOriginal, AmountRaw) and the normalized value, so reports can show
// what changed during standardization.
//
// # Standardization
//
// Standardize normalizes beneficiary documents the way clerks expect them:
// CPFs are reduced to digits and left-padded with zeros to 11 positions, RGs
// keep letters and digits. Every touched field yields an Adjustment row for
// the review workbook.
//
// # Analysis
//
// Analyze classifies problematic CPFs, detects duplicate payments and CPFs
// shared across accounts, flags rows with missing required data, and computes
// the batch metrics shown on the dashboard. Monetary values are handled as
// int64 centavos throughout.
package audit
