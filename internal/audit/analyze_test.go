package audit

import "testing"

func analyzeFixture() Input {
	payments, _, _ := Standardize([]Payment{
		{Line: 2, CPFOriginal: "529.982.247-25", Beneficiary: "Ana Souza", AccountNumber: "123", Project: "Frente Norte", Status: "Pago", AmountRaw: "100,00", AmountCents: 10000},
		{Line: 3, CPFOriginal: "529.982.247-25", Beneficiary: "Ana Souza", AccountNumber: "123", Project: "Frente Norte", Status: "Pago", AmountRaw: "100,00", AmountCents: 10000},
		{Line: 4, CPFOriginal: "", Beneficiary: "Bia Lima", AccountNumber: "456", Project: "Frente Sul", Status: "Pendente", AmountRaw: "50,00", AmountCents: 5000},
		{Line: 5, CPFOriginal: "123", Beneficiary: "", AccountNumber: "", AmountRaw: ""},
	})
	accounts := StandardizeAccounts([]Account{
		{Line: 2, CPFOriginal: "52998224725", AccountNumber: "123"},
		{Line: 3, CPFOriginal: "52998224725", AccountNumber: "999"},
		{Line: 4, CPFOriginal: "111.444.777-35", AccountNumber: "777"},
	})
	return Input{Payments: payments, Accounts: accounts, MissingColumns: []string{"rg"}}
}

func TestAnalyzeMetrics(t *testing.T) {
	res := Analyze(analyzeFixture())
	m := res.Metrics

	if m.TotalRecords != 4 {
		t.Fatalf("TotalRecords = %d, want 4", m.TotalRecords)
	}
	if m.TotalPayments != 3 {
		t.Fatalf("TotalPayments = %d, want 3", m.TotalPayments)
	}
	if m.InvalidRecords != 1 {
		t.Fatalf("InvalidRecords = %d, want 1", m.InvalidRecords)
	}
	if m.TotalCents != 25000 {
		t.Fatalf("TotalCents = %d, want 25000", m.TotalCents)
	}
	if m.UniqueBeneficiaries != 1 {
		t.Fatalf("UniqueBeneficiaries = %d, want 1", m.UniqueBeneficiaries)
	}
	if m.UniqueAccounts != 2 {
		t.Fatalf("UniqueAccounts = %d, want 2", m.UniqueAccounts)
	}
	if m.ActiveProjects != 2 {
		t.Fatalf("ActiveProjects = %d, want 2", m.ActiveProjects)
	}
	if m.PendingPayments != 1 || m.PendingCents != 5000 {
		t.Fatalf("Pending = %d/%d, want 1/5000", m.PendingPayments, m.PendingCents)
	}
	if m.DuplicatePayments != 1 || m.DuplicateCents != 10000 {
		t.Fatalf("Duplicates = %d/%d, want 1/10000", m.DuplicatePayments, m.DuplicateCents)
	}
	if m.DuplicateCPFs != 1 {
		t.Fatalf("DuplicateCPFs = %d, want 1", m.DuplicateCPFs)
	}
	if m.AccountsOpened != 3 {
		t.Fatalf("AccountsOpened = %d, want 3", m.AccountsOpened)
	}
	if m.BeneficiariesWithAccounts != 1 {
		t.Fatalf("BeneficiariesWithAccounts = %d, want 1", m.BeneficiariesWithAccounts)
	}
	if m.CPFEmpty != 1 || m.CPFBadCheckDigit != 1 || m.CPFInvalidChars != 0 || m.CPFBadLength != 0 {
		t.Fatalf("CPF counters = %d/%d/%d/%d", m.CPFEmpty, m.CPFInvalidChars, m.CPFBadLength, m.CPFBadCheckDigit)
	}
	if m.ProblemCPFs() != 2 {
		t.Fatalf("ProblemCPFs = %d, want 2", m.ProblemCPFs())
	}
}

func TestAnalyzeFindings(t *testing.T) {
	res := Analyze(analyzeFixture())

	byCode := map[string]int{}
	for _, f := range res.Findings {
		byCode[f.Code]++
	}

	want := map[string]int{
		CodeMissingColumn:       1,
		CodeCPFEmpty:            1,
		CodeCPFBadCheckDigit:    1,
		CodeMissingName:         1,
		CodeMissingAccount:      1,
		CodeMissingAmount:       1,
		CodeDuplicatePayment:    1,
		CodeDuplicateCPFAccount: 1,
	}
	for code, count := range want {
		if byCode[code] != count {
			t.Fatalf("findings[%s] = %d, want %d", code, byCode[code], count)
		}
	}
	if len(res.Findings) != 8 {
		t.Fatalf("total findings = %d, want 8", len(res.Findings))
	}
}

func TestAnalyzeDuplicateGroups(t *testing.T) {
	res := Analyze(analyzeFixture())

	if len(res.Duplicates) != 1 {
		t.Fatalf("duplicate groups = %d, want 1", len(res.Duplicates))
	}
	group := res.Duplicates[0]
	if group.CPF != "52998224725" {
		t.Fatalf("group CPF = %q", group.CPF)
	}
	if group.AmountCents != 10000 {
		t.Fatalf("group amount = %d", group.AmountCents)
	}
	if group.Occurrences != 2 {
		t.Fatalf("group occurrences = %d", group.Occurrences)
	}
	if len(group.Lines) != 2 || group.Lines[0] != 2 || group.Lines[1] != 3 {
		t.Fatalf("group lines = %v", group.Lines)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	first := Analyze(analyzeFixture())
	second := Analyze(analyzeFixture())

	if len(first.Findings) != len(second.Findings) {
		t.Fatal("finding count differs between runs")
	}
	for i := range first.Findings {
		if first.Findings[i] != second.Findings[i] {
			t.Fatalf("finding %d differs between runs", i)
		}
	}
}

func TestAnalyzeEmptyInput(t *testing.T) {
	res := Analyze(Input{})
	if res.Metrics.TotalRecords != 0 {
		t.Fatalf("TotalRecords = %d, want 0", res.Metrics.TotalRecords)
	}
	if len(res.Findings) != 0 {
		t.Fatalf("findings = %d, want 0", len(res.Findings))
	}
	if len(res.Duplicates) != 0 {
		t.Fatalf("duplicates = %d, want 0", len(res.Duplicates))
	}
}

func TestValidPayment(t *testing.T) {
	if ValidPayment(Payment{}) {
		t.Fatal("payment without account must be invalid")
	}
	if !ValidPayment(Payment{AccountNumber: "1"}) {
		t.Fatal("payment with account must be valid")
	}
}

func TestDuplicateGroupsSkipsMissingCPF(t *testing.T) {
	groups := DuplicateGroups([]Payment{
		{Line: 2, CPF: "", AccountNumber: "1", AmountCents: 5000},
		{Line: 3, CPF: "", AccountNumber: "2", AmountCents: 5000},
		{Line: 4, CPF: "52998224725", AccountNumber: "3", AmountCents: 5000},
		{Line: 5, CPF: "52998224725", AmountCents: 5000},
	})
	if len(groups) != 0 {
		t.Fatalf("groups = %d, want 0", len(groups))
	}
}
