package audit

// NormalizeRG keeps letters, digits and the issuing-body slash. RGs are not
// purely numeric: Xs and state suffixes like "SSP/SP" carry meaning.
func NormalizeRG(raw string) string {
	if isBlankish(raw) {
		return ""
	}
	out := make([]rune, 0, len(raw))
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '/':
			out = append(out, r)
		}
	}
	return string(out)
}

// NormalizeDocument keeps word characters only. Used for document columns
// with no dedicated rule.
func NormalizeDocument(raw string) string {
	if isBlankish(raw) {
		return ""
	}
	out := make([]rune, 0, len(raw))
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			out = append(out, r)
		}
	}
	return string(out)
}

// Adjustment records one document field touched during standardization.
type Adjustment struct {
	Line      int
	Field     string // "cpf" or "rg"
	Original  string
	Processed string
	Changed   bool
}

// AdjustmentSummary aggregates standardization work for the review workbook.
type AdjustmentSummary struct {
	CPFsFormatted      int // CPFs whose stored form changed
	DocumentsProcessed int // document fields examined
	ZerosPadded        int // CPFs left-padded to 11 digits
	RGLettersKept      int // RGs that kept at least one letter
}

// Standardize normalizes the document fields of every payment row and
// returns the rows with CPF and RG filled in, one Adjustment per examined
// CPF field, and the aggregate summary. The input slice is not modified.
func Standardize(payments []Payment) ([]Payment, []Adjustment, AdjustmentSummary) {
	out := make([]Payment, len(payments))
	for i, p := range payments {
		normalized, padded := NormalizeCPF(p.CPFOriginal)
		p.CPF = normalized
		p.CPFPadded = padded
		p.RG = NormalizeRG(p.RGOriginal)
		out[i] = p
	}

	adjustments, summary := Adjustments(out)
	return out, adjustments, summary
}

// Adjustments rebuilds the adjustment trail from rows that already went
// through Standardize. Reports run on persisted rows rather than a second
// pass over the upload, so the trail must be derivable after the fact.
func Adjustments(payments []Payment) ([]Adjustment, AdjustmentSummary) {
	adjustments := make([]Adjustment, 0, len(payments))
	summary := AdjustmentSummary{}

	for _, p := range payments {
		summary.DocumentsProcessed++
		changed := p.CPF != trimmedOriginal(p.CPFOriginal)
		if changed {
			summary.CPFsFormatted++
		}
		if p.CPFPadded {
			summary.ZerosPadded++
		}
		if p.RGOriginal != "" {
			summary.DocumentsProcessed++
			if hasLetter(p.RG) {
				summary.RGLettersKept++
			}
		}

		adjustments = append(adjustments, Adjustment{
			Line:      p.Line,
			Field:     "cpf",
			Original:  p.CPFOriginal,
			Processed: p.CPF,
			Changed:   changed,
		})
	}

	return adjustments, summary
}

// StandardizeAccounts normalizes account-holder CPFs. Account rows do not
// feed the adjustments workbook, only the cross-checks.
func StandardizeAccounts(accounts []Account) []Account {
	out := make([]Account, len(accounts))
	for i, a := range accounts {
		a.CPF, _ = NormalizeCPF(a.CPFOriginal)
		out[i] = a
	}
	return out
}

func trimmedOriginal(raw string) string {
	if isBlankish(raw) {
		return ""
	}
	return raw
}

func hasLetter(value string) bool {
	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}
