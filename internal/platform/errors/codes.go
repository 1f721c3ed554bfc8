// Package errors provides structured error handling with i18n support.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Auth errors
	CodeAuthUsernameEmpty    Code = "AUTH_USERNAME_EMPTY"
	CodeAuthPasswordTooShort Code = "AUTH_PASSWORD_TOO_SHORT"
	CodeAuthCredentialsBad   Code = "AUTH_CREDENTIALS_INVALID"
	CodeAuthSessionInvalid   Code = "AUTH_SESSION_INVALID"

	// Download grant errors
	CodeGrantInvalid  Code = "GRANT_INVALID"
	CodeGrantExpired  Code = "GRANT_EXPIRED"
	CodeGrantMismatch Code = "GRANT_MISMATCH"

	// Batch errors
	CodeBatchSourceEmpty Code = "BATCH_SOURCE_EMPTY"
	CodeBatchNotReady    Code = "BATCH_NOT_READY"

	// Import errors
	CodeImportFileEmpty         Code = "IMPORT_FILE_EMPTY"
	CodeImportFormatUnsupported Code = "IMPORT_FORMAT_UNSUPPORTED"
	CodeImportColumnMissing     Code = "IMPORT_COLUMN_MISSING"
	CodeImportJobNotPending     Code = "IMPORT_JOB_NOT_PENDING"

	// Report errors
	CodeReportKindInvalid Code = "REPORT_KIND_INVALID"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeAuthUsernameEmpty,
		CodeAuthPasswordTooShort,
		CodeBatchSourceEmpty,
		CodeImportFileEmpty,
		CodeImportFormatUnsupported,
		CodeImportColumnMissing,
		CodeReportKindInvalid:
		return http.StatusBadRequest

	// Unauthorized - caller must sign in again
	case CodeAuthCredentialsBad,
		CodeAuthSessionInvalid:
		return http.StatusUnauthorized

	// Forbidden - signed link no longer grants access
	case CodeGrantInvalid,
		CodeGrantExpired,
		CodeGrantMismatch:
		return http.StatusForbidden

	// Not found - resource doesn't exist
	case CodeNotFound:
		return http.StatusNotFound

	// Conflict - state doesn't allow operation
	case CodeBatchNotReady,
		CodeImportJobNotPending:
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}
