package audit

// Payment is one row of a payments spreadsheet. Line is the original
// spreadsheet line number, counting the header as line 1.
type Payment struct {
	Line          int
	CPFOriginal   string
	CPF           string
	CPFPadded     bool
	RGOriginal    string
	RG            string
	Beneficiary   string
	AccountNumber string
	Project       string
	Status        string
	PaymentDate   string
	AmountRaw     string
	AmountCents   int64
}

// Account is one row of a bank accounts spreadsheet.
type Account struct {
	Line          int
	CPFOriginal   string
	CPF           string
	Holder        string
	AccountNumber string
}

// ValidPayment reports whether the payment row can be settled: it must name
// a bank account.
func ValidPayment(p Payment) bool {
	return p.AccountNumber != ""
}
