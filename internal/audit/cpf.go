package audit

import "strings"

// CPFIssue classifies a normalized CPF value.
type CPFIssue int

const (
	// CPFOK indicates a structurally valid CPF.
	CPFOK CPFIssue = iota
	// CPFEmpty indicates a blank CPF.
	CPFEmpty
	// CPFInvalidChars indicates non-digit characters survived normalization.
	CPFInvalidChars
	// CPFBadLength indicates a digit count other than 11.
	CPFBadLength
	// CPFBadCheckDigit indicates the verification digits do not match.
	CPFBadCheckDigit
)

// String returns the finding code for the issue.
func (i CPFIssue) String() string {
	switch i {
	case CPFOK:
		return "ok"
	case CPFEmpty:
		return "cpf_empty"
	case CPFInvalidChars:
		return "cpf_invalid_chars"
	case CPFBadLength:
		return "cpf_bad_length"
	case CPFBadCheckDigit:
		return "cpf_bad_check_digit"
	default:
		return "unknown"
	}
}

// blankish values show up when spreadsheets round-trip through other tools.
var blankishValues = map[string]bool{
	"":     true,
	"nan":  true,
	"none": true,
	"null": true,
}

func isBlankish(value string) bool {
	return blankishValues[strings.ToLower(strings.TrimSpace(value))]
}

// NormalizeCPF reduces raw to CPF digits. Blank-ish values ("", "nan",
// "none", "null" in any case) normalize to the empty string. Inputs with
// fewer than 11 digits are left-padded with zeros; longer inputs are kept
// untruncated so classification can flag them. The bool reports whether
// zeros were added.
func NormalizeCPF(raw string) (string, bool) {
	if isBlankish(raw) {
		return "", false
	}

	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	value := digits.String()
	if value == "" {
		return "", false
	}
	if len(value) < 11 {
		return strings.Repeat("0", 11-len(value)) + value, true
	}
	return value, false
}

// ClassifyCPF classifies a normalized CPF value.
func ClassifyCPF(normalized string) CPFIssue {
	if normalized == "" {
		return CPFEmpty
	}
	for _, r := range normalized {
		if r < '0' || r > '9' {
			return CPFInvalidChars
		}
	}
	if len(normalized) != 11 {
		return CPFBadLength
	}
	if !validCheckDigits(normalized) {
		return CPFBadCheckDigit
	}
	return CPFOK
}

// validCheckDigits verifies the two mod-11 verification digits. Repeated
// digit sequences (000… through 999…) satisfy the arithmetic but are not
// assignable CPFs, so they are rejected explicitly.
func validCheckDigits(cpf string) bool {
	repeated := true
	for i := 1; i < len(cpf); i++ {
		if cpf[i] != cpf[0] {
			repeated = false
			break
		}
	}
	if repeated {
		return false
	}

	digit := func(i int) int { return int(cpf[i] - '0') }

	sum := 0
	for i := 0; i < 9; i++ {
		sum += digit(i) * (10 - i)
	}
	first := 11 - sum%11
	if first >= 10 {
		first = 0
	}
	if digit(9) != first {
		return false
	}

	sum = 0
	for i := 0; i < 10; i++ {
		sum += digit(i) * (11 - i)
	}
	second := 11 - sum%11
	if second >= 10 {
		second = 0
	}
	return digit(10) == second
}
