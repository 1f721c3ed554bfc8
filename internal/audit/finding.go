package audit

// FindingKind groups finding codes for filtering and display.
type FindingKind string

const (
	// KindCPF marks findings raised by CPF classification.
	KindCPF FindingKind = "cpf"
	// KindAbsence marks findings for missing required data.
	KindAbsence FindingKind = "absence"
	// KindDuplicate marks findings for duplicated payments or shared CPFs.
	KindDuplicate FindingKind = "duplicate"
	// KindParse marks findings for values that could not be decoded.
	KindParse FindingKind = "parse"
)

// Finding codes. Codes are stable identifiers persisted with each finding;
// display text comes from the locale catalogs.
const (
	CodeCPFEmpty         = "cpf_empty"
	CodeCPFInvalidChars  = "cpf_invalid_chars"
	CodeCPFBadLength     = "cpf_bad_length"
	CodeCPFBadCheckDigit = "cpf_bad_check_digit"

	CodeMissingCPF     = "missing_cpf"
	CodeMissingName    = "missing_name"
	CodeMissingAccount = "missing_account"
	CodeMissingAmount  = "missing_amount"
	CodeMissingColumn  = "missing_column"

	CodeDuplicatePayment    = "duplicate_payment"
	CodeDuplicateCPFAccount = "duplicate_cpf_accounts"

	CodeInvalidAmount = "invalid_amount"
)

// Finding is one classified data problem in a batch.
type Finding struct {
	Kind          FindingKind
	Code          string
	Line          int
	CPFOriginal   string
	CPFProcessed  string
	AccountNumber string
	Beneficiary   string
	Detail        string
}
