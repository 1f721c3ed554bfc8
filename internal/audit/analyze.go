package audit

import (
	"fmt"
	"sort"
	"strings"
)

// Metrics is the batch snapshot shown on the dashboard and the executive
// report. Monetary fields are centavos.
type Metrics struct {
	TotalRecords              int
	TotalPayments             int
	InvalidRecords            int
	UniqueBeneficiaries       int
	UniqueAccounts            int
	ActiveProjects            int
	TotalCents                int64
	DuplicatePayments         int
	DuplicateCents            int64
	DuplicateCPFs             int
	AccountsOpened            int
	BeneficiariesWithAccounts int
	PendingPayments           int
	PendingCents              int64
	CPFEmpty                  int
	CPFInvalidChars           int
	CPFBadLength              int
	CPFBadCheckDigit          int
}

// ProblemCPFs returns the total count of CPF findings.
func (m Metrics) ProblemCPFs() int {
	return m.CPFEmpty + m.CPFInvalidChars + m.CPFBadLength + m.CPFBadCheckDigit
}

// DuplicateGroup is a set of valid payments sharing CPF and amount.
type DuplicateGroup struct {
	CPF         string
	AmountCents int64
	Occurrences int
	Lines       []int
}

// Input carries everything Analyze needs. MissingColumns lists required
// payment columns the ingest step could not resolve from the header.
type Input struct {
	Payments       []Payment
	Accounts       []Account
	MissingColumns []string
}

// Result is the full outcome of a batch analysis.
type Result struct {
	Metrics    Metrics
	Findings   []Finding
	Duplicates []DuplicateGroup
}

// Analyze runs every batch check over standardized records. It is pure:
// the same input in the same order yields the same result.
func Analyze(in Input) Result {
	res := Result{}
	res.Metrics.TotalRecords = len(in.Payments)
	res.Metrics.AccountsOpened = len(in.Accounts)

	for _, column := range in.MissingColumns {
		res.Findings = append(res.Findings, Finding{
			Kind:   KindAbsence,
			Code:   CodeMissingColumn,
			Detail: column,
		})
	}

	beneficiaries := map[string]bool{}
	accountNumbers := map[string]bool{}
	projects := map[string]bool{}

	for _, p := range in.Payments {
		res.Findings = append(res.Findings, classifyRow(p, &res.Metrics)...)

		if !ValidPayment(p) {
			res.Metrics.InvalidRecords++
			continue
		}

		res.Metrics.TotalPayments++
		res.Metrics.TotalCents += p.AmountCents
		if p.CPF != "" {
			beneficiaries[p.CPF] = true
		}
		accountNumbers[p.AccountNumber] = true
		if project := strings.TrimSpace(p.Project); project != "" {
			projects[project] = true
		}

		if strings.Contains(strings.ToLower(p.Status), "pendente") {
			res.Metrics.PendingPayments++
			res.Metrics.PendingCents += p.AmountCents
		}
	}

	res.Metrics.UniqueBeneficiaries = len(beneficiaries)
	res.Metrics.UniqueAccounts = len(accountNumbers)
	res.Metrics.ActiveProjects = len(projects)

	res.Duplicates = DuplicateGroups(in.Payments)
	for _, group := range res.Duplicates {
		extra := group.Occurrences - 1
		res.Metrics.DuplicatePayments += extra
		res.Metrics.DuplicateCents += int64(extra) * group.AmountCents
		res.Findings = append(res.Findings, Finding{
			Kind:         KindDuplicate,
			Code:         CodeDuplicatePayment,
			Line:         group.Lines[0],
			CPFProcessed: group.CPF,
			Detail:       fmt.Sprintf("%d ocorrências nas linhas %s", group.Occurrences, joinLines(group.Lines)),
		})
	}

	res.Findings = append(res.Findings, crossCheckAccounts(in, &res.Metrics)...)

	return res
}

// DuplicateGroups groups valid payments by normalized CPF and amount and
// returns the groups seen more than once, ordered by first appearance.
// Rows without a CPF never form a group.
func DuplicateGroups(payments []Payment) []DuplicateGroup {
	groups := map[string]*DuplicateGroup{}
	keys := []string{}

	for _, p := range payments {
		if !ValidPayment(p) || p.CPF == "" {
			continue
		}
		key := fmt.Sprintf("%s|%d", p.CPF, p.AmountCents)
		group, ok := groups[key]
		if !ok {
			group = &DuplicateGroup{CPF: p.CPF, AmountCents: p.AmountCents}
			groups[key] = group
			keys = append(keys, key)
		}
		group.Occurrences++
		group.Lines = append(group.Lines, p.Line)
	}

	var out []DuplicateGroup
	for _, key := range keys {
		if groups[key].Occurrences < 2 {
			continue
		}
		out = append(out, *groups[key])
	}
	return out
}

// classifyRow emits CPF and absence findings for one payment row.
func classifyRow(p Payment, metrics *Metrics) []Finding {
	var findings []Finding

	issue := ClassifyCPF(p.CPF)
	switch issue {
	case CPFEmpty:
		metrics.CPFEmpty++
	case CPFInvalidChars:
		metrics.CPFInvalidChars++
	case CPFBadLength:
		metrics.CPFBadLength++
	case CPFBadCheckDigit:
		metrics.CPFBadCheckDigit++
	}
	if issue != CPFOK {
		findings = append(findings, Finding{
			Kind:          KindCPF,
			Code:          issue.String(),
			Line:          p.Line,
			CPFOriginal:   p.CPFOriginal,
			CPFProcessed:  p.CPF,
			AccountNumber: p.AccountNumber,
			Beneficiary:   p.Beneficiary,
		})
	}

	absence := func(code string) Finding {
		return Finding{
			Kind:          KindAbsence,
			Code:          code,
			Line:          p.Line,
			CPFOriginal:   p.CPFOriginal,
			CPFProcessed:  p.CPF,
			AccountNumber: p.AccountNumber,
			Beneficiary:   p.Beneficiary,
		}
	}

	// CPFEmpty already covers a missing CPF; absence checks watch the rest.
	if strings.TrimSpace(p.Beneficiary) == "" {
		findings = append(findings, absence(CodeMissingName))
	}
	if p.AccountNumber == "" {
		findings = append(findings, absence(CodeMissingAccount))
	}
	if isBlankish(p.AmountRaw) {
		findings = append(findings, absence(CodeMissingAmount))
	}

	return findings
}

// crossCheckAccounts correlates payment CPFs with account-holder CPFs.
func crossCheckAccounts(in Input, metrics *Metrics) []Finding {
	var findings []Finding

	holders := map[string]map[string]bool{}
	for _, a := range in.Accounts {
		if a.CPF == "" {
			continue
		}
		if holders[a.CPF] == nil {
			holders[a.CPF] = map[string]bool{}
		}
		if a.AccountNumber != "" {
			holders[a.CPF][a.AccountNumber] = true
		}
	}

	sharedCPFs := make([]string, 0)
	for cpf, accounts := range holders {
		if len(accounts) > 1 {
			sharedCPFs = append(sharedCPFs, cpf)
		}
	}
	sort.Strings(sharedCPFs)
	metrics.DuplicateCPFs = len(sharedCPFs)
	for _, cpf := range sharedCPFs {
		findings = append(findings, Finding{
			Kind:         KindDuplicate,
			Code:         CodeDuplicateCPFAccount,
			CPFProcessed: cpf,
			Detail:       fmt.Sprintf("%d contas para o mesmo CPF", len(holders[cpf])),
		})
	}

	seen := map[string]bool{}
	for _, p := range in.Payments {
		if !ValidPayment(p) || p.CPF == "" || seen[p.CPF] {
			continue
		}
		seen[p.CPF] = true
		if _, ok := holders[p.CPF]; ok {
			metrics.BeneficiariesWithAccounts++
		}
	}

	return findings
}

func joinLines(lines []int) string {
	parts := make([]string, len(lines))
	for i, line := range lines {
		parts[i] = fmt.Sprintf("%d", line)
	}
	return strings.Join(parts, ", ")
}
